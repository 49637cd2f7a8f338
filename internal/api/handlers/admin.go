package handlers

import (
	"context"
	"locker-reservation-service/internal/api/dto"
	"locker-reservation-service/internal/domain"
	"net/http"
	"time"
)

type Sweeper interface {
	ReclaimExpired(ctx context.Context) (int, error)
}

type SlotCatalog interface {
	Availability(ctx context.Context, locationID string) (map[domain.Size]int, error)
	SetMaintenance(ctx context.Context, slotID string, enabled bool) (*domain.Slot, error)
}

// AdminHandler serves operator endpoints: manual reclaim, availability and
// maintenance toggles.
type AdminHandler struct {
	Reclaimer Sweeper
	Catalog   SlotCatalog
}

// Reclaim runs one sweep on demand. Reservations expired before a failure
// stay expired.
func (h *AdminHandler) Reclaim(w http.ResponseWriter, r *http.Request) {
	n, err := h.Reclaimer.ReclaimExpired(r.Context())
	if err != nil {
		writeServiceError(w, r, "reclaim expired", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ReclaimResponse{Reclaimed: n, RanAt: time.Now().UTC()})
}

func (h *AdminHandler) Availability(w http.ResponseWriter, r *http.Request) {
	locationID := r.PathValue("id")

	counts, err := h.Catalog.Availability(r.Context(), locationID)
	if err != nil {
		writeServiceError(w, r, "availability", err)
		return
	}

	res := dto.AvailabilityResponse{LocationID: locationID, Available: make(map[string]int, len(counts))}
	for size, n := range counts {
		res.Available[string(size)] = n
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *AdminHandler) Maintenance(w http.ResponseWriter, r *http.Request) {
	var req dto.MaintenanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	slot, err := h.Catalog.SetMaintenance(r.Context(), r.PathValue("id"), req.Enabled)
	if err != nil {
		writeServiceError(w, r, "set maintenance", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toSlotResponse(slot))
}
