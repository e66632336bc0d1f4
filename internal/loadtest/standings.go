package loadtest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// memberKey addresses one standings row by its composite identity.
type memberKey struct {
	teamID   string
	memberID string
}

// retrieveStandings fetches the standing of every submitted member concurrently.
func retrieveStandings(ctx context.Context, config *Config, teams []TeamSubmission, stats *Stats) ([]Row, error) {
	// Flatten submissions into one lookup per member
	keys := make([]memberKey, 0, len(teams))
	for _, team := range teams {
		for _, member := range team.Members {
			keys = append(keys, memberKey{teamID: team.TeamID, memberID: member.MemberID})
		}
	}

	log.Printf("🏆 Retrieving standings for %d members with %d workers...", len(keys), config.Workers)

	client := newHTTPClient(config.Timeout)

	// Results storage
	rows := make([]Row, len(keys))
	var (
		retrieved int64
		failed    int64
	)

	reporter := &progressReporter{interval: progressInterval}

	// Create worker pool
	keyChan := make(chan int, config.Workers*WorkerChannelMultiplier) // Send indices instead of keys
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range keyChan {
				select {
				case <-ctx.Done():
					return
				default:
					key := keys[index]
					row, err := retrieveSingleStanding(ctx, client, config.BaseURL, key)

					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("⚠️  Failed to get standing for %s/%s: %v", key.teamID, key.memberID, err)
						}
					} else {
						rows[index] = row
						atomic.AddInt64(&retrieved, 1)
					}

					// Progress reporting
					if reporter.tick() {
						total := atomic.LoadInt64(&retrieved) + atomic.LoadInt64(&failed)
						ret := atomic.LoadInt64(&retrieved)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("📊 Standing progress: %d/%d retrieved (success: %d, failed: %d)",
								total, len(keys), ret, fail)
						} else {
							log.Printf("\r🏆 Standings: %d/%d retrieved (success: %d, failed: %d)",
								total, len(keys), ret, fail)
						}
					}
				}
			}
		}()
	}

	// Send lookup indices to workers
	go func() {
		defer close(keyChan)
		for i := range keys {
			select {
			case <-ctx.Done():
				return
			case keyChan <- i:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		log.Println() // New line after progress indicator
	}

	// Filter out empty rows (failed retrievals)
	validRows := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.TeamID != "" { // Empty TeamID indicates failed retrieval
			validRows = append(validRows, row)
		}
	}

	// Update stats
	stats.StandingsRetrieved = len(validRows)

	log.Printf(`✅ Standing retrieval completed:
   Retrieved: %d
   Failed: %d
`, len(validRows), int(atomic.LoadInt64(&failed)))

	return validRows, nil
}

// retrieveSingleStanding fetches the standing of one member.
func retrieveSingleStanding(ctx context.Context, client *HTTPClient, baseURL string, key memberKey) (Row, error) {
	url := fmt.Sprintf("%s/standings/%s/%s", baseURL, key.teamID, key.memberID)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return Row{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != StatusOK {
		body, _ := readResponseBody(resp)
		return Row{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return Row{}, fmt.Errorf("failed to read response: %w", err)
	}

	var row Row
	if err := unmarshalJSON(body, &row); err != nil {
		return Row{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return row, nil
}

// getStandingsTable retrieves the top N standings rows.
func getStandingsTable(ctx context.Context, config *Config, stats *Stats) ([]Row, error) {
	log.Printf("🥇 Getting top %d standings rows...", config.TopN)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/standings?limit=%d", config.BaseURL, config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != StatusOK {
		body, _ := readResponseBody(resp)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var table []Row
	if err := unmarshalJSON(body, &table); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.TableRows = len(table)
	log.Printf("✅ Retrieved %d standings rows", len(table))

	return table, nil
}
