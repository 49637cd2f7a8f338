package domain

import "time"

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "AVAILABLE"
	SlotReserved    SlotStatus = "RESERVED"
	SlotOccupied    SlotStatus = "OCCUPIED"
	SlotMaintenance SlotStatus = "MAINTENANCE"
)

// Represents a single physically addressable locker compartment.
// A Slot is identified by (LocationID, LockerID, Number) and references the
// reservation currently holding it while RESERVED or OCCUPIED.
type Slot struct {
	SlotID               string
	LocationID           string
	LockerID             string
	Number               int
	Size                 Size
	Dimensions           Dimensions
	Status               SlotStatus
	CurrentReservationID string
	Version              int64
	UpdatedAt            time.Time
}

// Held reports whether the slot is bound to a reservation.
func (s *Slot) Held() bool {
	return s.Status == SlotReserved || s.Status == SlotOccupied
}
