// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"time"
)

// StatsProvider defines the interface for service runtime counters
// (queue depth, worker pool size, standings size, archive rows).
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// statsResponse envelopes the live counters with the collection time so
// polling dashboards can align samples.
type statsResponse struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Counters    map[string]interface{} `json:"counters"`
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		GeneratedAt: time.Now().UTC(),
		Counters:    h.statsProvider.GetStats(),
	})
}
