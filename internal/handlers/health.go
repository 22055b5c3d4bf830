// internal/handlers/health.go
package handlers

import "net/http"

// HealthHandler answers liveness probes with a couple of gauge-ish numbers.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": s.Hub.ConnCount(),
		"queue_depth": s.Queue.Len(),
	})
}
