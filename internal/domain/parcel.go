package domain

import (
	"strings"
	"time"
)

type ParcelStatus string

const (
	ParcelPending   ParcelStatus = "PENDING"
	ParcelReserved  ParcelStatus = "RESERVED"
	ParcelInLocker  ParcelStatus = "IN_LOCKER"
	ParcelPickedUp  ParcelStatus = "PICKED_UP"
	ParcelExpired   ParcelStatus = "EXPIRED"
	ParcelCancelled ParcelStatus = "CANCELLED"
)

// Terminal reports whether the parcel can no longer enter a locker.
func (s ParcelStatus) Terminal() bool {
	return s == ParcelPickedUp || s == ParcelExpired || s == ParcelCancelled
}

// Contact details of a sender or recipient.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Matches reports whether proof (an email address or a phone number) identifies
// this contact. Emails compare case-insensitively, phones by digits only.
func (c Contact) Matches(proof string) bool {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return false
	}

	if strings.Contains(proof, "@") {
		email := strings.TrimSpace(c.Email)
		return email != "" && strings.EqualFold(email, proof)
	}

	want := digitsOnly(c.Phone)
	return want != "" && want == digitsOnly(proof)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Represents a shipment handed to the locker network.
// Parcels are created on registration and only change status here.
type Parcel struct {
	ParcelID       string
	TrackingNumber string
	Sender         Contact
	Recipient      Contact
	Size           Size
	Status         ParcelStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
