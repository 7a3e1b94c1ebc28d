package httpapi

import (
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	writeData(w, start, http.StatusOK, map[string]any{
		"status":        "ok",
		"backend":       s.Backend,
		"uptimeSeconds": int64(time.Since(s.StartedAt).Seconds()),
	})
}
