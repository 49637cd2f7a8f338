package handlers

import (
	"context"
	"locker-reservation-service/internal/api/dto"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/services"
	"net/http"
)

type Reserver interface {
	Reserve(ctx context.Context, in services.ReserveInput) (*services.Allocation, error)
}

type ReservationLifecycle interface {
	ConfirmDropOff(ctx context.Context, reservationID string) (*domain.Reservation, error)
	Pickup(ctx context.Context, in services.PickupInput) (*domain.Reservation, error)
	Cancel(ctx context.Context, reservationID string) (*domain.Reservation, error)
	Status(ctx context.Context, reservationID string) (*domain.Reservation, error)
}

// ReservationHandler exposes the reservation lifecycle over HTTP.
type ReservationHandler struct {
	Allocator Reserver
	Lifecycle ReservationLifecycle
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ReserveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.Allocator.Reserve(r.Context(), services.ReserveInput{
		ParcelID:      req.ParcelID,
		LocationID:    req.LocationID,
		WindowMinutes: req.WindowMinutes,
	})
	if err != nil {
		writeServiceError(w, r, "reserve", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.ReserveResponse{
		Reservation: toReservationResponse(a.Reservation),
		Slot:        toSlotResponse(a.Slot),
	})
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.Lifecycle.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "reservation status", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toReservationResponse(res))
}

// DropOff confirms the parcel is in its slot. The pickup code goes to the
// recipient through the notifier only.
func (h *ReservationHandler) DropOff(w http.ResponseWriter, r *http.Request) {
	res, err := h.Lifecycle.ConfirmDropOff(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "confirm drop-off", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	res, err := h.Lifecycle.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "cancel", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	var req dto.PickupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LocationID == "" || req.Contact == "" {
		writeError(w, r, http.StatusBadRequest, "location_id and contact are required")
		return
	}

	res, err := h.Lifecycle.Pickup(r.Context(), services.PickupInput{
		LocationID: req.LocationID,
		Code:       req.Code,
		Contact:    req.Contact,
	})
	if err != nil {
		writeServiceError(w, r, "pickup", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toReservationResponse(res))
}
