package batch

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/okian/fairshare/internal/domain/model"
)

const outputFilePermission = 0o644

// TeamRecord is one team in the input file. The JSON shape mirrors the
// HTTP submission payload so the same files can be replayed against
// either surface.
type TeamRecord struct {
	TeamID   string         `json:"team_id"`
	RawScore float64        `json:"raw_score"`
	Members  []MemberRecord `json:"members"`
}

// MemberRecord pairs a member with their declared contribution weight.
type MemberRecord struct {
	MemberID string  `json:"member_id"`
	Weight   float64 `json:"weight"`
}

func (r TeamRecord) team() model.Team {
	members := make([]model.Member, len(r.Members))
	for i, m := range r.Members {
		members[i] = model.Member{ID: m.MemberID, Weight: m.Weight}
	}
	return model.Team{ID: r.TeamID, RawScore: r.RawScore, Members: members}
}

// TeamScores holds one team's computed rows in the output file.
type TeamScores struct {
	TeamID   string              `json:"team_id"`
	RawScore float64             `json:"raw_score"`
	Scores   []MemberScoreRecord `json:"scores"`
}

// MemberScoreRecord is a single member's computed score.
type MemberScoreRecord struct {
	MemberID string  `json:"member_id"`
	Weight   float64 `json:"weight"`
	Score    float64 `json:"score"`
	Capped   bool    `json:"capped,omitempty"`
}

// readTeams loads an input file holding a JSON array of team records.
func readTeams(path string) ([]TeamRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}

	var teams []TeamRecord
	if err := json.Unmarshal(data, &teams); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadInput, path, err)
	}
	return teams, nil
}

// writeResults renders the computed scores as indented JSON. An empty path
// selects stdout so results can be piped without touching the filesystem.
func writeResults(path string, results []TeamScores) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	data = append(data, '\n')

	if path == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, outputFilePermission); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}
