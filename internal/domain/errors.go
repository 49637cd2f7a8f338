package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy of the reservation core. Callers match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrNoCapacity        = errors.New("no locker slot available")
	ErrInvalidCode       = errors.New("invalid pickup code")
	ErrCodeExpired       = errors.New("pickup window has expired")
	ErrRecipientMismatch = errors.New("contact does not match recipient")
	ErrAlreadyPickedUp   = errors.New("parcel already picked up")
	ErrAlreadyTerminal   = errors.New("reservation is no longer active")
	ErrTooManyAttempts   = errors.New("too many failed pickup attempts")
	ErrInvalidArgument   = errors.New("invalid argument")

	ErrReservationExpired = errors.New("reservation window has expired")

	ErrParcelNotFound      = fmt.Errorf("parcel %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)
	ErrSlotNotFound        = fmt.Errorf("slot %w", ErrNotFound)
	ErrLocationNotFound    = fmt.Errorf("location %w", ErrNotFound)

	ErrParcelAlreadyReserved = fmt.Errorf("parcel already has an open reservation: %w", ErrConflict)
	ErrParcelNotReservable   = fmt.Errorf("parcel is not pending: %w", ErrConflict)
	ErrAlreadyDelivered      = fmt.Errorf("reservation already delivered: %w", ErrConflict)
	ErrDuplicate             = fmt.Errorf("duplicate key: %w", ErrConflict)
)
