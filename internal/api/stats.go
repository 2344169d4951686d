package api

import (
	"net/http"

	"github.com/glyphlab/woffle/internal/pool"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	ByRoute         map[string]int `json:"by_route"`
	AvgDurationMS   float64        `json:"avg_duration_ms"`
	BytesSaved      int64          `json:"bytes_saved"`
	FallbackEngaged bool           `json:"fallback_engaged"`
	Pool            pool.Stats     `json:"pool"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetJobStats(r.Context())
	if err != nil {
		s.logger.Error("get job stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:           stats.Total,
		ByStatus:        stats.CountByStatus,
		ByRoute:         stats.CountByRoute,
		AvgDurationMS:   stats.AvgDurationMS,
		BytesSaved:      stats.BytesSaved,
		FallbackEngaged: s.subsetter.FallbackEngaged(),
		Pool:            s.subsetter.PoolStats(),
	})
}
