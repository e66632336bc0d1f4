// Package repository defines the results and standings store interface and errors.
package repository

import (
	"context"

	"github.com/okian/fairshare/internal/domain/model"
	"github.com/okian/fairshare/internal/domain/types"
)

// Store provides read/write access to computed team results and the
// member standings built from them.
type Store interface {
	// Apply replaces a team's standings rows with the scores in result and
	// records it as the team's latest result. A recomputation supersedes the
	// previous result set entirely, including members no longer present.
	Apply(ctx context.Context, result model.TeamResult) error

	// Latest returns the most recent result computed for a team.
	// Returns ErrTeamNotFound if the team has never been scored.
	Latest(ctx context.Context, teamID string) (model.TeamResult, error)

	// RankOf returns the standing for one member of one team.
	// Returns ErrNotFound if the pair is unknown.
	RankOf(ctx context.Context, teamID, memberID string) (types.Standing, error)

	// TopN returns the top-N standings ordered by score desc.
	TopN(ctx context.Context, n int) ([]types.Standing, error)

	// Count returns the number of member standings rows tracked.
	Count(ctx context.Context) int

	// TeamCount returns the number of teams with a stored result.
	TeamCount(ctx context.Context) int
}
