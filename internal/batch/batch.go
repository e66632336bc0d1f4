// Package batch scores team files offline with the same computation the
// service applies, for one-shot runs that never touch the HTTP pipeline.
package batch

import (
	"context"
	"fmt"

	"github.com/okian/fairshare/internal/domain/scoring"
	"github.com/okian/fairshare/pkg/logger"
)

// Options configures a single batch run.
type Options struct {
	InputPath  string // JSON array of team records
	OutputPath string // result destination; stdout when empty
	Floor      bool   // clamp negative member scores to zero
	Summary    bool   // log per-team weight and score spreads
}

// Run scores every team in the input file. Teams that fail validation are
// reported and skipped; the valid remainder is still scored and written.
// When any team was rejected, Run returns ErrInvalidTeams after the output
// is complete so callers can exit non-zero without losing the good rows.
func Run(ctx context.Context, opts Options) error {
	log := logger.Get().Named("batch")

	teams, err := readTeams(opts.InputPath)
	if err != nil {
		return err
	}

	var scorerOpts []scoring.Option
	if opts.Floor {
		scorerOpts = append(scorerOpts, scoring.WithZeroFloor())
	}
	scorer := scoring.NewWeightedScorer(scorerOpts...)

	results := make([]TeamScores, 0, len(teams))
	invalid := 0
	for _, record := range teams {
		team := record.team()
		scores, err := scorer.Score(ctx, team)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("scoring interrupted: %w", err)
			}
			invalid++
			log.Error(ctx, "team rejected",
				logger.String("team_id", record.TeamID),
				logger.Error(err),
			)
			continue
		}

		out := TeamScores{
			TeamID:   team.ID,
			RawScore: team.RawScore,
			Scores:   make([]MemberScoreRecord, len(scores)),
		}
		for i, s := range scores {
			out.Scores[i] = MemberScoreRecord{
				MemberID: s.MemberID,
				Weight:   s.Weight,
				Score:    s.Score,
				Capped:   s.Capped,
			}
		}
		results = append(results, out)

		if opts.Summary {
			logSummary(ctx, log, team, scores)
		}
	}

	if err := writeResults(opts.OutputPath, results); err != nil {
		return err
	}

	log.Info(ctx, "batch completed",
		logger.Int("teams", len(teams)),
		logger.Int("scored", len(results)),
		logger.Int("invalid", invalid),
	)

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d team(s) failed validation", ErrInvalidTeams, invalid, len(teams))
	}
	return nil
}
