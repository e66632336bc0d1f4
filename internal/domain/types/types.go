// Package types contains common types used across the application
package types

// Standing represents one row of the standings: a member's computed score
// together with its position across all teams. Member IDs are only unique
// within a team, so a row is addressed by the (team, member) pair.
type Standing struct {
	Rank     int     `json:"rank"`
	TeamID   string  `json:"team_id"`
	MemberID string  `json:"member_id"`
	Score    float64 `json:"score"`
	Capped   bool    `json:"capped,omitempty"`
}

// Key returns the composite identity of the row.
func (s Standing) Key() string {
	return Key(s.TeamID, s.MemberID)
}

// Key joins a team and member ID into the composite standings key.
func Key(teamID, memberID string) string {
	return teamID + "/" + memberID
}
