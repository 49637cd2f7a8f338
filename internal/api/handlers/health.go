package handlers

import (
	"locker-reservation-service/internal/api/dto"
	"net/http"
	"time"
)

type SweepReporter interface {
	LastRun() time.Time
}

// HealthHandler reports liveness and when the expiry sweep last completed.
type HealthHandler struct {
	Reclaimer SweepReporter
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	res := dto.HealthResponse{Status: "ok"}
	if h.Reclaimer != nil {
		if last := h.Reclaimer.LastRun(); !last.IsZero() {
			res.LastReclaim = &last
		}
	}
	writeJSON(w, r, http.StatusOK, res)
}
