// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/okian/fairshare/internal/adapters/archive"
	"github.com/okian/fairshare/internal/adapters/repository"
	"github.com/okian/fairshare/internal/domain/dedupe"
	"github.com/okian/fairshare/internal/domain/model"
	"github.com/okian/fairshare/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Tracker

	// Enqueue pushes a submission for async scoring. Returns false on backpressure.
	Enqueue(ctx context.Context, sub model.Submission) bool

	// Read operations expose computed results and standings.
	Latest(ctx context.Context, teamID string) (model.TeamResult, error)
	History(ctx context.Context, teamID string, limit int) ([]ArchivedResult, error)
	TopN(ctx context.Context, n int) ([]Standing, error)
	RankOf(ctx context.Context, teamID, memberID string) (Standing, error)
}

// Standing mirrors the read shape returned by standings queries.
type Standing = types.Standing

// ArchivedResult mirrors the shape stored by the result archive.
type ArchivedResult = archive.Result

// validate screens request shape before domain validation sees the payload.
var validate = validator.New()

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	teamsHandler     *TeamsHandler
	standingsHandler *StandingsHandler
	rankHandler      *RankHandler
	limiter          *rate.Limiter
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimit bounds accepted submissions per second. Non-positive
// values leave the API unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// limit query parameter accepted by list endpoints.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int, opts ...Option) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		teamsHandler:     NewTeamsHandler(deps, maxLimit),
		standingsHandler: NewStandingsHandler(deps, maxLimit),
		rankHandler:      NewRankHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/teams", MetricsMiddleware(RateLimitMiddleware(s.limiter, s.teamsHandler.HandleSubmitTeam, "teams"), "teams"))
	mux.HandleFunc("/teams/", MetricsMiddleware(s.teamsHandler.HandleTeamRead, "team_detail"))
	mux.HandleFunc("/standings", MetricsMiddleware(s.standingsHandler.HandleGetStandings, "standings"))
	mux.HandleFunc("/standings/", MetricsMiddleware(s.rankHandler.HandleGetStanding, "standing"))
}

// submitTeamRequest mirrors the OpenAPI schema for POST /teams. Structural
// checks live in validate tags; numeric invariants belong to the scoring
// domain so its error detail reaches the client.
type submitTeamRequest struct {
	TeamID       string          `json:"team_id"       validate:"required"`
	SubmissionID string          `json:"submission_id"`
	RawScore     float64         `json:"raw_score"`
	Members      []memberPayload `json:"members"       validate:"required,min=1,dive"`
}

type memberPayload struct {
	MemberID string  `json:"member_id" validate:"required"`
	Weight   float64 `json:"weight"`
}

// team converts the request payload into the domain shape.
func (r submitTeamRequest) team() model.Team {
	members := make([]model.Member, len(r.Members))
	for i, m := range r.Members {
		members[i] = model.Member{ID: m.MemberID, Weight: m.Weight}
	}
	return model.Team{ID: r.TeamID, RawScore: r.RawScore, Members: members}
}

type ackResponse struct {
	Status       string `json:"status"`
	Duplicate    bool   `json:"duplicate,omitempty"`
	SubmissionID string `json:"submission_id"`
}

type memberScorePayload struct {
	MemberID string  `json:"member_id"`
	Weight   float64 `json:"weight"`
	Score    float64 `json:"score"`
	Capped   bool    `json:"capped,omitempty"`
}

type teamResultResponse struct {
	TeamID       string               `json:"team_id"`
	SubmissionID string               `json:"submission_id"`
	RawScore     float64              `json:"raw_score"`
	Scores       []memberScorePayload `json:"scores"`
	ComputedAt   time.Time            `json:"computed_at"`
}

func resultResponse(res model.TeamResult) teamResultResponse {
	scores := make([]memberScorePayload, len(res.Scores))
	for i, s := range res.Scores {
		scores[i] = memberScorePayload{
			MemberID: s.MemberID,
			Weight:   s.Weight,
			Score:    s.Score,
			Capped:   s.Capped,
		}
	}
	return teamResultResponse{
		TeamID:       res.TeamID,
		SubmissionID: res.SubmissionID,
		RawScore:     res.RawScore,
		Scores:       scores,
		ComputedAt:   res.ComputedAt,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrTeamNotFound)
}
