package handlers

import (
	"net/http"
	"time"

	"github.com/apex/log"
)

type HealthHandler struct {
	started time.Time
	probes  *ProbeHandler
	logger  log.Interface
}

func NewHealthHandler(probes *ProbeHandler, logger log.Interface) *HealthHandler {
	return &HealthHandler{started: time.Now(), probes: probes, logger: logger}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, map[string]interface{}{
		"status":         "ok",
		"uptime":         time.Since(h.started).Round(time.Second).String(),
		"cached_reports": h.probes.cache.Len(),
	})
}
