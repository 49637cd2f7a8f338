package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/ports"
	"strings"

	"github.com/google/uuid"
)

const (
	trackingPrefix   = "LK"
	trackingLength   = 10
	trackingAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	registerAttempts = 3
)

type RegisterParcelInput struct {
	Sender    domain.Contact
	Recipient domain.Contact
	Size      domain.Size
}

// Registry creates parcels in PENDING state with a generated tracking number.
type Registry struct {
	store ports.LockerStore
	clock ports.Clock
}

func (r *Registry) RegisterParcel(ctx context.Context, in RegisterParcelInput) (*domain.Parcel, error) {
	if !in.Size.Valid() {
		return nil, fmt.Errorf("register parcel: size %q: %w", in.Size, domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Recipient.Email) == "" && strings.TrimSpace(in.Recipient.Phone) == "" {
		return nil, fmt.Errorf("register parcel: recipient needs an email or phone: %w", domain.ErrInvalidArgument)
	}

	for attempt := 1; ; attempt++ {
		tracking, err := randomString(rand.Reader, trackingAlphabet, trackingLength)
		if err != nil {
			return nil, fmt.Errorf("register parcel: %w", err)
		}

		now := r.clock.Now()
		p := &domain.Parcel{
			ParcelID:       uuid.NewString(),
			TrackingNumber: trackingPrefix + tracking,
			Sender:         in.Sender,
			Recipient:      in.Recipient,
			Size:           in.Size,
			Status:         domain.ParcelPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		err = r.store.InTx(ctx, func(tx ports.LockerTx) error {
			return tx.InsertParcel(ctx, p)
		})
		if errors.Is(err, domain.ErrDuplicate) && attempt < registerAttempts {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("register parcel: %w", err)
		}

		return p, nil
	}
}
