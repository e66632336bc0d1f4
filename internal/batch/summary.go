package batch

import (
	"context"
	"time"

	"github.com/okian/fairshare/internal/domain/model"
	"github.com/okian/fairshare/internal/domain/teamstats"
	"github.com/okian/fairshare/pkg/logger"
)

// logSummary emits the weight and score spreads of one scored team.
func logSummary(ctx context.Context, log logger.Logger, team model.Team, scores []model.MemberScore) {
	weights, err := teamstats.Weights(team)
	if err != nil {
		log.Warn(ctx, "weight summary unavailable",
			logger.String("team_id", team.ID),
			logger.Error(err),
		)
		return
	}

	result := model.TeamResult{
		TeamID:     team.ID,
		RawScore:   team.RawScore,
		Scores:     scores,
		ComputedAt: time.Now(),
	}
	spread, err := teamstats.Scores(result)
	if err != nil {
		log.Warn(ctx, "score summary unavailable",
			logger.String("team_id", team.ID),
			logger.Error(err),
		)
		return
	}

	log.Info(ctx, "team summary",
		logger.String("team_id", team.ID),
		logger.Int("members", team.Size()),
		logger.Float64("raw_score", team.RawScore),
		logger.Float64("equal_share", weights.EqualShare),
		logger.Float64("weight_max_skew", weights.MaxSkew),
		logger.Float64("weight_stddev", weights.StdDev),
		logger.Float64("score_min", spread.Min),
		logger.Float64("score_max", spread.Max),
		logger.Float64("score_mean", spread.Mean),
		logger.Float64("score_stddev", spread.StdDev),
		logger.Int("capped", spread.CappedCount),
	)
}
