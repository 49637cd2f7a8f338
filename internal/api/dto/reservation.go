package dto

import "time"

type ReserveRequest struct {
	ParcelID      string `json:"parcel_id"`
	LocationID    string `json:"location_id"`
	WindowMinutes int    `json:"window_minutes"`
}

type SlotResponse struct {
	SlotID     string `json:"slot_id"`
	LocationID string `json:"location_id"`
	LockerID   string `json:"locker_id"`
	Number     int    `json:"number"`
	Size       string `json:"size"`
	Status     string `json:"status"`
}

// ReservationResponse never carries the pickup code.
type ReservationResponse struct {
	ReservationID       string     `json:"reservation_id"`
	ParcelID            string     `json:"parcel_id"`
	SlotID              string     `json:"slot_id"`
	LocationID          string     `json:"location_id"`
	Status              string     `json:"status"`
	ReservedAt          time.Time  `json:"reserved_at"`
	ReservationDeadline time.Time  `json:"reservation_deadline"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	PickupDeadline      *time.Time `json:"pickup_deadline,omitempty"`
	PickedUpAt          *time.Time `json:"picked_up_at,omitempty"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
}

type ReserveResponse struct {
	Reservation ReservationResponse `json:"reservation"`
	Slot        SlotResponse        `json:"slot"`
}

type PickupRequest struct {
	LocationID string `json:"location_id"`
	Code       string `json:"code"`
	Contact    string `json:"contact"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
