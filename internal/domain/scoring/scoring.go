// Package scoring redistributes a team's raw score across its members
// according to their declared contribution weights.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/fairshare/internal/domain/model"
)

// Scoring configuration constants.
const (
	// shareBoost amplifies the deviation of a member's weight from the
	// equal share 1/N. A member at exactly the equal share receives the
	// raw team score unchanged.
	shareBoost = 1.1
	// DefaultScoreCap is the ceiling applied to individual scores unless
	// overridden via WithScoreCap.
	DefaultScoreCap = 120.0
	// weightSumTolerance bounds the accepted drift of the weight sum
	// from 1, absorbing float accumulation error only.
	weightSumTolerance = 1e-6
)

// Option applies a configuration option to the WeightedScorer.
type Option func(*WeightedScorer)

// WithScoreCap overrides the ceiling for individual scores. Values <= 0
// are ignored and the default cap stays in effect.
func WithScoreCap(cap float64) Option {
	return func(s *WeightedScorer) {
		if cap > 0 {
			s.cap = cap
		}
	}
}

// WithZeroFloor clamps negative scores to zero. Off by default: low
// weights on a high raw score can legitimately push a member below zero,
// and the raw outcome stays visible unless a deployment opts in.
func WithZeroFloor() Option {
	return func(s *WeightedScorer) {
		s.floorAtZero = true
	}
}

// Scorer computes individual member scores for a team.
type Scorer interface {
	// Score validates the team and returns one score per member, in
	// member order. It honors ctx for cancellation.
	Score(ctx context.Context, team model.Team) ([]model.MemberScore, error)
}

// WeightedScorer implements Scorer with the contribution-weighted formula.
// The computation is deterministic: same team in, same scores out.
type WeightedScorer struct {
	cap         float64
	floorAtZero bool
}

// NewWeightedScorer creates a scorer with the default cap and no floor.
func NewWeightedScorer(opts ...Option) *WeightedScorer {
	s := &WeightedScorer{
		cap: DefaultScoreCap,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score computes per-member scores. Each member receives
//
//	raw * (1 + 1.1*(weight - 1/N))
//
// capped at the configured ceiling. Invalid teams are rejected whole;
// no partial results are produced.
func (s *WeightedScorer) Score(ctx context.Context, team model.Team) ([]model.MemberScore, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := Validate(team); err != nil {
		return nil, err
	}

	equalShare := 1 / float64(team.Size())
	out := make([]model.MemberScore, len(team.Members))
	for i, m := range team.Members {
		value := team.RawScore * (1 + shareBoost*(m.Weight-equalShare))
		capped := false
		if value > s.cap {
			value = s.cap
			capped = true
		}
		if s.floorAtZero && value < 0 {
			value = 0
		}
		out[i] = model.MemberScore{
			MemberID: m.ID,
			Weight:   m.Weight,
			Score:    value,
			Capped:   capped,
		}
	}

	return out, nil
}

// Validate checks a team against the computation's preconditions and
// reports the first violation wrapped in ErrInvalidInput. It never
// mutates the team; weights are not renormalized on the caller's behalf.
func Validate(team model.Team) error {
	if team.ID == "" {
		return fmt.Errorf("%w: team id is empty", ErrInvalidInput)
	}
	if len(team.Members) == 0 {
		return fmt.Errorf("%w: team %q has no members", ErrInvalidInput, team.ID)
	}
	if math.IsNaN(team.RawScore) || math.IsInf(team.RawScore, 0) {
		return fmt.Errorf("%w: team %q raw score is not finite", ErrInvalidInput, team.ID)
	}
	if team.RawScore < 0 {
		return fmt.Errorf("%w: team %q raw score %v is negative", ErrInvalidInput, team.ID, team.RawScore)
	}

	seen := make(map[string]struct{}, len(team.Members))
	sum := 0.0
	for _, m := range team.Members {
		if m.ID == "" {
			return fmt.Errorf("%w: team %q has a member with empty id", ErrInvalidInput, team.ID)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("%w: team %q member id %q appears more than once", ErrInvalidInput, team.ID, m.ID)
		}
		seen[m.ID] = struct{}{}
		if math.IsNaN(m.Weight) || math.IsInf(m.Weight, 0) {
			return fmt.Errorf("%w: team %q member %q weight is not finite", ErrInvalidInput, team.ID, m.ID)
		}
		if m.Weight < 0 || m.Weight > 1 {
			return fmt.Errorf("%w: team %q member %q weight %v is outside [0,1]", ErrInvalidInput, team.ID, m.ID, m.Weight)
		}
		sum += m.Weight
	}

	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: team %q weights sum to %.9f, want 1 within %v", ErrInvalidInput, team.ID, sum, weightSumTolerance)
	}

	return nil
}
