package loadtest

import "time"

// Config holds configuration for the load test.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumTeams   int           // Number of team submissions to generate
	TopN       int           // Number of standings rows to fetch
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for submissions
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// TeamSubmission is one scoring request posted to the service. The shape
// matches the POST /teams payload, and the fields the offline batch tool
// reads, so generated files can be replayed either way.
type TeamSubmission struct {
	SubmissionID string        `json:"submission_id"`
	TeamID       string        `json:"team_id"`
	RawScore     float64       `json:"raw_score"`
	Members      []MemberShare `json:"members"`
}

// MemberShare pairs a member with their declared contribution weight.
type MemberShare struct {
	MemberID string  `json:"member_id"`
	Weight   float64 `json:"weight"`
}

// Row is a standings table entry.
type Row struct {
	Rank     int     `json:"rank"`
	TeamID   string  `json:"team_id"`
	MemberID string  `json:"member_id"`
	Score    float64 `json:"score"`
	Capped   bool    `json:"capped"`
}

// AckResponse is the response from a team submission.
type AckResponse struct {
	Status       string `json:"status"`
	Duplicate    bool   `json:"duplicate"`
	SubmissionID string `json:"submission_id"`
}

// Stats holds load test statistics.
type Stats struct {
	TeamsGenerated     int
	MembersGenerated   int
	TeamsSubmitted     int
	TeamsSuccessful    int
	TeamsDuplicate     int
	TeamsFailed        int
	StandingsRetrieved int
	TableRows          int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
