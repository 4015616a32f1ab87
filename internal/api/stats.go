package api

import (
	"net/http"

	"occtitles/pkg/tracker"
)

// StatsHandler reports remote call counters and job outcomes.
type StatsHandler struct {
	tracker  *tracker.Tracker
	sessions func() int
}

// NewStatsHandler creates a StatsHandler. sessions may be nil.
func NewStatsHandler(t *tracker.Tracker, sessions func() int) *StatsHandler {
	return &StatsHandler{tracker: t, sessions: sessions}
}

type StatsResponse struct {
	Operations     map[string]tracker.OperationStats `json:"operations"`
	Jobs           map[string]int64                  `json:"jobs"`
	ActiveSessions int                               `json:"active_sessions"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Operations: map[string]tracker.OperationStats{},
		Jobs:       map[string]int64{},
	}
	if h.tracker != nil {
		snap := h.tracker.Snapshot()
		resp.Operations = snap.Operations
		resp.Jobs = snap.Jobs
	}
	if h.sessions != nil {
		resp.ActiveSessions = h.sessions()
	}
	writeJSON(w, http.StatusOK, resp)
}
