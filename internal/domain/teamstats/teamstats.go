// Package teamstats derives summary statistics over declared weights and
// computed scores, backing the per-team stats endpoint.
package teamstats

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/okian/fairshare/internal/domain/model"
)

// WeightSpread describes how a team's declared weights are distributed
// around the equal share 1/N.
type WeightSpread struct {
	EqualShare float64 `json:"equal_share"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"std_dev"`
	Variance   float64 `json:"variance"`
	MaxSkew    float64 `json:"max_skew"` // largest |w - equal share|
}

// ScoreSpread summarizes the computed member scores of one team result.
type ScoreSpread struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	Median      float64 `json:"median"`
	StdDev      float64 `json:"std_dev"`
	CappedCount int     `json:"capped_count"`
}

// Weights computes the weight distribution of a team. Teams without
// members yield ErrNoData.
func Weights(team model.Team) (WeightSpread, error) {
	if team.Size() == 0 {
		return WeightSpread{}, fmt.Errorf("%w: team %q has no members", ErrNoData, team.ID)
	}

	data := make([]float64, len(team.Members))
	for i, m := range team.Members {
		data[i] = m.Weight
	}

	sp := WeightSpread{EqualShare: 1 / float64(team.Size())}
	for _, w := range data {
		if skew := math.Abs(w - sp.EqualShare); skew > sp.MaxSkew {
			sp.MaxSkew = skew
		}
	}

	var err error
	if sp.Min, err = stats.Min(data); err != nil {
		return WeightSpread{}, fmt.Errorf("weight min: %w", err)
	}
	if sp.Max, err = stats.Max(data); err != nil {
		return WeightSpread{}, fmt.Errorf("weight max: %w", err)
	}
	if sp.Mean, err = stats.Mean(data); err != nil {
		return WeightSpread{}, fmt.Errorf("weight mean: %w", err)
	}
	if sp.Median, err = stats.Median(data); err != nil {
		return WeightSpread{}, fmt.Errorf("weight median: %w", err)
	}
	if sp.StdDev, err = stats.StandardDeviation(data); err != nil {
		return WeightSpread{}, fmt.Errorf("weight stddev: %w", err)
	}
	if sp.Variance, err = stats.Variance(data); err != nil {
		return WeightSpread{}, fmt.Errorf("weight variance: %w", err)
	}

	return sp, nil
}

// Scores computes the score distribution of one team result. Results
// without scores yield ErrNoData.
func Scores(result model.TeamResult) (ScoreSpread, error) {
	if len(result.Scores) == 0 {
		return ScoreSpread{}, fmt.Errorf("%w: result for team %q has no scores", ErrNoData, result.TeamID)
	}

	data := make([]float64, len(result.Scores))
	capped := 0
	for i, s := range result.Scores {
		data[i] = s.Score
		if s.Capped {
			capped++
		}
	}

	sp := ScoreSpread{CappedCount: capped}
	var err error
	if sp.Min, err = stats.Min(data); err != nil {
		return ScoreSpread{}, fmt.Errorf("score min: %w", err)
	}
	if sp.Max, err = stats.Max(data); err != nil {
		return ScoreSpread{}, fmt.Errorf("score max: %w", err)
	}
	if sp.Mean, err = stats.Mean(data); err != nil {
		return ScoreSpread{}, fmt.Errorf("score mean: %w", err)
	}
	if sp.Median, err = stats.Median(data); err != nil {
		return ScoreSpread{}, fmt.Errorf("score median: %w", err)
	}
	if sp.StdDev, err = stats.StandardDeviation(data); err != nil {
		return ScoreSpread{}, fmt.Errorf("score stddev: %w", err)
	}

	return sp, nil
}
