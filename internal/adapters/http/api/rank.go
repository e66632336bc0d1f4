// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
)

// RankDependencies defines the interface for member standing lookups.
type RankDependencies interface {
	RankOf(ctx context.Context, teamID, memberID string) (Standing, error)
}

// RankHandler handles single-member standing requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetStanding handles GET /standings/{team_id}/{member_id} requests.
func (h *RankHandler) HandleGetStanding(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameters after /standings/
	path := strings.TrimPrefix(r.URL.Path, "/standings/")
	teamID, memberID, ok := strings.Cut(path, "/")
	if !ok || teamID == "" || memberID == "" || strings.Contains(memberID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	standing, err := h.deps.RankOf(r.Context(), teamID, memberID)
	if err != nil {
		// If upstream exposes not-found, translate; otherwise 500
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, standing)
}
