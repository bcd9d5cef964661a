package http

import (
	"net/http"

	"outlay/internal/auth"
)

// handleQuickStats serves the aggregated dashboard summary for the
// authenticated owner. Summaries are cached briefly per owner and
// invalidated on every mutation.
func (s *Server) handleQuickStats(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	stats, err := s.cachedStats(r.Context(), id.Email)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
