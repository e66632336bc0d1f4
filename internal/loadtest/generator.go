package loadtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fairshare/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	submissionDivisor  = 10000
	scoreCaseDivisor   = 8
	weightCaseDivisor  = 4
	sizeCaseDivisor    = 10
)

// Constants for raw score generation ranges.
const (
	averageScoreMin    = 60.0
	averageScoreRange  = 30.0
	strongScoreMin     = 90.0
	strongScoreRange   = 20.0
	weakScoreMin       = 10.0
	weakScoreRange     = 50.0
	eliteScoreMin      = 110.0
	eliteScoreRange    = 40.0
	strugglingScoreMin = 0.5
	strugglingRange    = 9.5
	solidScoreMin      = 80.0
	solidScoreRange    = 20.0
	modestScoreMin     = 40.0
	modestScoreRange   = 30.0
	wideScoreMin       = 0.5
	wideScoreRange     = 199.5
)

// Constants for raw score cases.
const (
	caseAverageTeam = 0
	caseStrongTeam  = 1
	caseWeakTeam    = 2
	caseEliteTeam   = 3
	caseStruggling  = 4
	caseSolidTeam   = 5
	caseModestTeam  = 6
	caseWideRange   = 7
)

// Constants for weight profile cases.
const (
	caseEqualSplit  = 0
	caseMildSkew    = 1
	caseDominant    = 2
	caseRandomSplit = 3
)

// Constants for team sizing.
const (
	minGroupSize    = 2
	groupSizeSpread = 7 // sizes minGroupSize..minGroupSize+spread-1
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, limit) using crypto/rand.
func getRandomInt(limit int64) int64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(limit))
	return n.Int64()
}

// generateTeams creates the specified number of team submissions with
// unique team IDs.
func generateTeams(ctx context.Context, config *Config, stats *Stats) ([]TeamSubmission, error) {
	logger.Get().Info(ctx, "generating team submissions with unique team IDs", logger.Int("numTeams", config.NumTeams))

	teams := make([]TeamSubmission, config.NumTeams)

	// Pre-allocate team IDs to ensure uniqueness
	teamIDs := make([]string, config.NumTeams)
	for i := 0; i < config.NumTeams; i++ {
		teamIDs[i] = uuid.New().String()
	}

	// Generate submissions concurrently
	type teamResult struct {
		index int
		team  TeamSubmission
		err   error
	}

	resultChan := make(chan teamResult, config.NumTeams)

	// Use worker pool for generation
	workerCount := minInt(config.Workers, config.NumTeams)
	teamsPerWorker := config.NumTeams / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * teamsPerWorker
		end := start + teamsPerWorker
		if worker == workerCount-1 {
			end = config.NumTeams // Last worker gets remaining teams
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- teamResult{index: i, err: ctx.Err()}
					return
				default:
					team := generateSingleTeam(i, teamIDs[i])
					resultChan <- teamResult{index: i, team: team, err: nil}
				}
			}
		}(start, end)
	}

	// Collect results
	members := 0
	for i := 0; i < config.NumTeams; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during team generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate team %d: %w", result.index, result.err)
			}
			teams[result.index] = result.team
			members += len(result.team.Members)
		}
	}

	stats.TeamsGenerated = len(teams)
	stats.MembersGenerated = members
	logger.Get().Info(ctx, "generated team submissions successfully",
		logger.Int("teams", len(teams)),
		logger.Int("members", members))

	return teams, nil
}

// generateSingleTeam creates a single submission with the given index and team ID.
func generateSingleTeam(index int, teamID string) TeamSubmission {
	size := generateGroupSize()
	weights := generateWeights(size)
	rawScore := generateVariedScore()

	members := make([]MemberShare, size)
	for i := 0; i < size; i++ {
		members[i] = MemberShare{
			MemberID: "m" + strconv.Itoa(i+1),
			Weight:   weights[i],
		}
	}

	// Generate unique submission ID
	randNum, _ := rand.Int(rand.Reader, big.NewInt(submissionDivisor))
	submissionID := "sub_" + strconv.FormatInt(int64(index), 10) + "_" + strconv.FormatInt(time.Now().Unix(), 10) + "_" + strconv.FormatInt(randNum.Int64(), 10)

	return TeamSubmission{
		SubmissionID: submissionID,
		TeamID:       teamID,
		RawScore:     rawScore,
		Members:      members,
	}
}

// generateGroupSize picks a member count; solo teams are rare.
func generateGroupSize() int {
	if getRandomInt(sizeCaseDivisor) == 0 {
		return 1
	}
	return minGroupSize + int(getRandomInt(groupSizeSpread))
}

// generateWeights produces a contribution vector that sums to one.
func generateWeights(size int) []float64 {
	weights := make([]float64, size)
	if size == 1 {
		weights[0] = 1.0
		return weights
	}

	switch getRandomInt(weightCaseDivisor) {
	case caseEqualSplit:
		for i := range weights {
			weights[i] = 1.0
		}
	case caseMildSkew:
		// Everyone close to an equal pull
		for i := range weights {
			weights[i] = 0.5 + getRandomFloat()
		}
	case caseDominant:
		// One member carries most of the work
		weights[0] = 3.0 + getRandomFloat()*2.0
		for i := 1; i < size; i++ {
			weights[i] = 0.2 + getRandomFloat()*0.8
		}
	default:
		// Fully random spread; offset keeps every share non-zero
		for i := range weights {
			weights[i] = 0.05 + getRandomFloat()
		}
	}

	return normalizeWeights(weights)
}

// normalizeWeights scales the vector so the shares sum to one.
func normalizeWeights(weights []float64) []float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// generateVariedScore creates a raw team score with varied distribution.
func generateVariedScore() float64 {
	switch getRandomInt(scoreCaseDivisor) {
	case caseAverageTeam:
		// Average teams (60 - 90) - most common
		return averageScoreMin + getRandomFloat()*averageScoreRange
	case caseStrongTeam:
		// Strong teams (90 - 110)
		return strongScoreMin + getRandomFloat()*strongScoreRange
	case caseWeakTeam:
		// Weak teams (10 - 60)
		return weakScoreMin + getRandomFloat()*weakScoreRange
	case caseEliteTeam:
		// Elite teams (110 - 150); skewed members hit the cap
		return eliteScoreMin + getRandomFloat()*eliteScoreRange
	case caseStruggling:
		// Struggling teams (0.5 - 10) - rare
		return strugglingScoreMin + getRandomFloat()*strugglingRange
	case caseSolidTeam:
		// Solid teams (80 - 100)
		return solidScoreMin + getRandomFloat()*solidScoreRange
	case caseModestTeam:
		// Modest teams (40 - 70)
		return modestScoreMin + getRandomFloat()*modestScoreRange
	case caseWideRange:
		// Random across the full range (0.5 - 200)
		return wideScoreMin + getRandomFloat()*wideScoreRange
	default:
		return wideScoreMin + getRandomFloat()*wideScoreRange
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
