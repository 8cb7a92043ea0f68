package api

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler answers 200 when the database responds. Used by deployment
// orchestration for zero-downtime rollouts.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if s.db != nil {
			if err := s.db.Ping(ctx); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}
