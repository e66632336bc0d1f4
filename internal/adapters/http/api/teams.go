// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fairshare/internal/adapters/archive"
	"github.com/okian/fairshare/internal/domain/dedupe"
	"github.com/okian/fairshare/internal/domain/model"
	"github.com/okian/fairshare/internal/domain/scoring"
	"github.com/okian/fairshare/internal/domain/teamstats"
)

// TeamDependencies defines the interface for team submission and read endpoints.
type TeamDependencies interface {
	dedupe.Tracker
	Enqueue(ctx context.Context, sub model.Submission) bool
	Latest(ctx context.Context, teamID string) (model.TeamResult, error)
	History(ctx context.Context, teamID string, limit int) ([]ArchivedResult, error)
}

// TeamsHandler handles team submissions and per-team reads.
type TeamsHandler struct {
	deps       TeamDependencies
	maxHistory int
}

// NewTeamsHandler creates a new teams handler. maxHistory caps the limit
// query parameter on the history endpoint.
func NewTeamsHandler(deps TeamDependencies, maxHistory int) *TeamsHandler {
	return &TeamsHandler{deps: deps, maxHistory: maxHistory}
}

// HandleSubmitTeam handles POST /teams requests.
func (h *TeamsHandler) HandleSubmitTeam(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_team"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req submitTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Numeric invariants (weight range, weight sum, raw score) fail here
	// with the violation named, before anything is queued.
	team := req.team()
	if err := scoring.Validate(team); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", Wrap(op, err))
		return
	}

	subID := strings.TrimSpace(req.SubmissionID)
	if subID == "" {
		subID = uuid.NewString()
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), subID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, SubmissionID: subID})
		return
	}

	sub := model.Submission{SubmissionID: subID, Team: team, ReceivedAt: time.Now()}
	if ok := h.deps.Enqueue(r.Context(), sub); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), subID)
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SubmissionID: subID})
}

// HandleTeamRead dispatches GET /teams/{team_id}, /teams/{team_id}/stats
// and /teams/{team_id}/history requests.
func (h *TeamsHandler) HandleTeamRead(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_team"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/teams/")
	teamID, sub, _ := strings.Cut(rest, "/")
	if teamID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	switch sub {
	case "":
		h.serveLatest(w, r, teamID)
	case "stats":
		h.serveStats(w, r, teamID)
	case "history":
		h.serveHistory(w, r, teamID)
	default:
		http.NotFound(w, r)
	}
}

func (h *TeamsHandler) serveLatest(w http.ResponseWriter, r *http.Request, teamID string) {
	res, err := h.deps.Latest(r.Context(), teamID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse(res))
}

func (h *TeamsHandler) serveStats(w http.ResponseWriter, r *http.Request, teamID string) {
	const op = "api.get_team_stats"
	res, err := h.deps.Latest(r.Context(), teamID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	weights, err := teamstats.Weights(teamOf(res))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	scores, err := teamstats.Scores(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, teamStatsResponse{
		TeamID:  teamID,
		Members: len(res.Scores),
		Weights: weights,
		Scores:  scores,
	})
}

func (h *TeamsHandler) serveHistory(w http.ResponseWriter, r *http.Request, teamID string) {
	const op = "api.get_team_history"
	limit := 0 // archive applies its own default
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxHistory {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	results, err := h.deps.History(r.Context(), teamID, limit)
	if err != nil {
		if errors.Is(err, archive.ErrDisabled) {
			writeError(w, http.StatusNotImplemented, "archive_disabled", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type teamStatsResponse struct {
	TeamID  string                 `json:"team_id"`
	Members int                    `json:"members"`
	Weights teamstats.WeightSpread `json:"weights"`
	Scores  teamstats.ScoreSpread  `json:"scores"`
}

// teamOf rebuilds the weight roster recorded on a result.
func teamOf(res model.TeamResult) model.Team {
	members := make([]model.Member, len(res.Scores))
	for i, s := range res.Scores {
		members[i] = model.Member{ID: s.MemberID, Weight: s.Weight}
	}
	return model.Team{ID: res.TeamID, RawScore: res.RawScore, Members: members}
}
