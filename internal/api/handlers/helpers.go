package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"locker-reservation-service/internal/api/dto"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/platform/obs"
	"log"
	"net/http"
)

// Request bodies are small; anything larger is rejected.
const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, dto.ErrorResponse{Error: msg})
}

// decodeJSON reads exactly one JSON object into v, answering 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

type errorMapping struct {
	err    error
	status int
	msg    string
}

// Checked in order; specific conflicts precede the generic ErrConflict.
var errorMappings = []errorMapping{
	{domain.ErrParcelNotFound, http.StatusNotFound, "parcel not found"},
	{domain.ErrReservationNotFound, http.StatusNotFound, "reservation not found"},
	{domain.ErrSlotNotFound, http.StatusNotFound, "slot not found"},
	{domain.ErrLocationNotFound, http.StatusNotFound, "location not found"},
	{domain.ErrNotFound, http.StatusNotFound, "not found"},
	{domain.ErrNoCapacity, http.StatusConflict, "no locker slots available"},
	{domain.ErrParcelAlreadyReserved, http.StatusConflict, "parcel already has an open reservation"},
	{domain.ErrParcelNotReservable, http.StatusConflict, "parcel cannot be reserved in its current state"},
	{domain.ErrAlreadyDelivered, http.StatusConflict, "drop-off already confirmed"},
	{domain.ErrAlreadyPickedUp, http.StatusConflict, "parcel already picked up"},
	{domain.ErrAlreadyTerminal, http.StatusConflict, "reservation is no longer active"},
	{domain.ErrReservationExpired, http.StatusGone, "reservation window has expired"},
	{domain.ErrCodeExpired, http.StatusGone, "pickup window has expired"},
	{domain.ErrInvalidCode, http.StatusUnprocessableEntity, "invalid pickup code"},
	{domain.ErrRecipientMismatch, http.StatusForbidden, "contact does not match recipient"},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, "too many failed pickup attempts, try again later"},
	{domain.ErrConflict, http.StatusConflict, "reservation changed concurrently, retry"},
}

// writeServiceError maps a domain error to its HTTP status and message.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, domain.ErrInvalidArgument) {
		writeError(w, r, http.StatusBadRequest, argumentMessage(err))
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeError(w, r, m.status, m.msg)
			return
		}
	}

	log.Printf("req_id=%s %s failed: %v", obs.RequestID(r.Context()), op, err)
	writeError(w, r, http.StatusInternalServerError, "internal server error")
}

// argumentMessage returns the message of the error that wraps
// domain.ErrInvalidArgument directly, without the operation prefixes above it.
func argumentMessage(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if errors.Unwrap(e) == domain.ErrInvalidArgument {
			return e.Error()
		}
	}
	return domain.ErrInvalidArgument.Error()
}

func toReservationResponse(r *domain.Reservation) dto.ReservationResponse {
	return dto.ReservationResponse{
		ReservationID:       r.ReservationID,
		ParcelID:            r.ParcelID,
		SlotID:              r.SlotID,
		LocationID:          r.LocationID,
		Status:              string(r.Status),
		ReservedAt:          r.ReservedAt,
		ReservationDeadline: r.ReservationDeadline,
		DeliveredAt:         r.DeliveredAt,
		PickupDeadline:      r.PickupDeadline,
		PickedUpAt:          r.PickedUpAt,
		ClosedAt:            r.ClosedAt,
	}
}

func toSlotResponse(s *domain.Slot) dto.SlotResponse {
	return dto.SlotResponse{
		SlotID:     s.SlotID,
		LocationID: s.LocationID,
		LockerID:   s.LockerID,
		Number:     s.Number,
		Size:       string(s.Size),
		Status:     string(s.Status),
	}
}
