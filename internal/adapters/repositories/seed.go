package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/ports"
	"os"
	"strings"
	"time"
)

type SlotSeed struct {
	SlotID   string `json:"slot_id"`
	LockerID string `json:"locker_id"`
	Number   int    `json:"number"`
	Size     string `json:"size"`
	WidthMM  int    `json:"width_mm"`
	HeightMM int    `json:"height_mm"`
	DepthMM  int    `json:"depth_mm"`
	Status   string `json:"status,omitempty"`
}

type LocationSeed struct {
	LocationID string     `json:"location_id"`
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	Lon        float64    `json:"lon"`
	Lat        float64    `json:"lat"`
	Slots      []SlotSeed `json:"slots"`
}

type ContactSeed struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ParcelSeed struct {
	ParcelID       string      `json:"parcel_id"`
	TrackingNumber string      `json:"tracking_number"`
	Sender         ContactSeed `json:"sender"`
	Recipient      ContactSeed `json:"recipient"`
	Size           string      `json:"size"`
}

type Seed struct {
	Locations []LocationSeed `json:"locations"`
	Parcels   []ParcelSeed   `json:"parcels"`
}

// Populate the store with locations, slots and demo parcels from a JSON file.
// Rows that already exist are left untouched, so seeding is repeatable.
// Locations given by address only are resolved through geo when it is non-nil.
func SeedFromJSON(
	ctx context.Context,
	store ports.LockerStore,
	jsonPath string,
	now time.Time,
	geo ports.Geocoder,
) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed lockers: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed lockers: parse json: %w", err)
	}

	locations, slots, parcels, err := data.toDomain(now)
	if err != nil {
		return fmt.Errorf("seed lockers: %w", err)
	}

	if geo != nil {
		if err := locateByAddress(ctx, geo, locations); err != nil {
			return fmt.Errorf("seed lockers: %w", err)
		}
	}

	return store.InTx(ctx, func(tx ports.LockerTx) error {
		for _, l := range locations {
			if _, err := tx.GetLocation(ctx, l.LocationID); err == nil {
				continue
			} else if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("seed lockers: %w", err)
			}
			if err := tx.InsertLocation(ctx, l); err != nil {
				return fmt.Errorf("seed lockers: %w", err)
			}
		}

		for _, s := range slots {
			if _, err := tx.GetSlot(ctx, s.SlotID); err == nil {
				continue
			} else if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("seed lockers: %w", err)
			}
			if err := tx.InsertSlot(ctx, s); err != nil {
				return fmt.Errorf("seed lockers: %w", err)
			}
		}

		for _, p := range parcels {
			if _, err := tx.GetParcel(ctx, p.ParcelID); err == nil {
				continue
			} else if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("seed lockers: %w", err)
			}
			if err := tx.InsertParcel(ctx, p); err != nil {
				return fmt.Errorf("seed lockers: %w", err)
			}
		}

		return nil
	})
}

// locateByAddress fills in coordinates for locations that have an address but none given.
func locateByAddress(ctx context.Context, geo ports.Geocoder, locations []*domain.Location) error {
	var missing []string
	for _, l := range locations {
		if l.Coords == (domain.Coordinates{}) && l.Address != "" {
			missing = append(missing, l.Address)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	coords, err := geo.Geocode(ctx, missing)
	if err != nil {
		return fmt.Errorf("geocode locations: %w", err)
	}
	for _, l := range locations {
		if c, ok := coords[l.Address]; ok && l.Coords == (domain.Coordinates{}) {
			l.Coords = c
		}
	}
	return nil
}

func (s Seed) toDomain(now time.Time) ([]*domain.Location, []*domain.Slot, []*domain.Parcel, error) {
	locations := make([]*domain.Location, 0, len(s.Locations))
	slots := make([]*domain.Slot, 0, 64)

	for i, item := range s.Locations {
		id := strings.TrimSpace(item.LocationID)
		if id == "" {
			return nil, nil, nil, fmt.Errorf("location at index %d: location_id cannot be empty", i+1)
		}
		locations = append(locations, &domain.Location{
			LocationID: id,
			Name:       strings.TrimSpace(item.Name),
			Address:    strings.TrimSpace(item.Address),
			Coords:     domain.Coordinates{Lon: item.Lon, Lat: item.Lat},
		})

		for j, ss := range item.Slots {
			size, err := domain.ParseSize(ss.Size)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("location %s slot at index %d: %w", id, j+1, err)
			}

			status := domain.SlotAvailable
			if strings.EqualFold(strings.TrimSpace(ss.Status), string(domain.SlotMaintenance)) {
				status = domain.SlotMaintenance
			}

			slotID := strings.TrimSpace(ss.SlotID)
			if slotID == "" {
				slotID = fmt.Sprintf("%s-%s-%02d", id, ss.LockerID, ss.Number)
			}
			if ss.Number <= 0 {
				return nil, nil, nil, fmt.Errorf("slot %s: invalid number %d", slotID, ss.Number)
			}

			slots = append(slots, &domain.Slot{
				SlotID:     slotID,
				LocationID: id,
				LockerID:   ss.LockerID,
				Number:     ss.Number,
				Size:       size,
				Dimensions: domain.Dimensions{WidthMM: ss.WidthMM, HeightMM: ss.HeightMM, DepthMM: ss.DepthMM},
				Status:     status,
				UpdatedAt:  now,
			})
		}
	}

	parcels := make([]*domain.Parcel, 0, len(s.Parcels))
	for i, item := range s.Parcels {
		id := strings.TrimSpace(item.ParcelID)
		if id == "" || strings.TrimSpace(item.TrackingNumber) == "" {
			return nil, nil, nil, fmt.Errorf("parcel at index %d: parcel_id and tracking_number are required", i+1)
		}
		size, err := domain.ParseSize(item.Size)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parcel %s: %w", id, err)
		}
		parcels = append(parcels, &domain.Parcel{
			ParcelID:       id,
			TrackingNumber: strings.TrimSpace(item.TrackingNumber),
			Sender:         domain.Contact(item.Sender),
			Recipient:      domain.Contact(item.Recipient),
			Size:           size,
			Status:         domain.ParcelPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	return locations, slots, parcels, nil
}
