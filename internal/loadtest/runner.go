package loadtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/fairshare/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete load test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting fairshare load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("teams", config.NumTeams),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.String("logFile", config.LogFile),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate team submissions
	teams, err := generateTeams(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("team generation failed: %w", err)
	}

	// Step 3: Submit teams concurrently
	if err := submitTeams(ctx, config, teams, stats); err != nil {
		return fmt.Errorf("team submission failed: %w", err)
	}

	// Step 4: Wait for the pipeline to drain
	logger.Get().Info(ctx, "waiting for submissions to be scored")
	time.Sleep(ProcessingWait)

	// Step 5: Retrieve member standings concurrently
	rows, err := retrieveStandings(ctx, config, teams, stats)
	if err != nil {
		return fmt.Errorf("standing retrieval failed: %w", err)
	}

	// Step 6: Get the standings table
	table, err := getStandingsTable(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("standings table retrieval failed: %w", err)
	}

	// Step 7: Verify results
	if err := verifyResults(ctx, config, rows, table, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 8: Save submissions to file
	if err := saveTeamsToFile(ctx, config, teams); err != nil {
		logger.Get().Warn(ctx, "failed to save submissions to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "load test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveTeamsToFile saves the generated submissions to a JSON file. The file
// is valid input for the offline score-teams tool.
func saveTeamsToFile(ctx context.Context, config *Config, teams []TeamSubmission) error {
	if len(teams) == 0 {
		return fmt.Errorf("no submissions to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_teams_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write submissions to file
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	// Write JSON array
	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i, team := range teams {
		jsonData, err := marshalJSON(team)
		if err != nil {
			return fmt.Errorf("failed to marshal submission %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write submission %d: %w", i, err)
		}

		// Add comma except for last submission
		if i < len(teams)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "submissions saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final load test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, teamsPerSecond float64

	if stats.TeamsSubmitted > 0 {
		successRate = float64(stats.TeamsSuccessful) / float64(stats.TeamsSubmitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		teamsPerSecond = float64(stats.TeamsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("teamsGenerated", stats.TeamsGenerated),
		logger.Int("membersGenerated", stats.MembersGenerated),
		logger.Int("teamsSubmitted", stats.TeamsSubmitted),
		logger.Int("teamsSuccessful", stats.TeamsSuccessful),
		logger.Int("teamsDuplicate", stats.TeamsDuplicate),
		logger.Int("teamsFailed", stats.TeamsFailed),
		logger.Int("standingsRetrieved", stats.StandingsRetrieved),
		logger.Int("tableRows", stats.TableRows),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("teamsPerSecond", teamsPerSecond))
}
