package ports

import (
	"context"
	"locker-reservation-service/internal/domain"
)

// Port: resolves street addresses to coordinates. The result is keyed by the
// addresses as given; unresolvable addresses fail the whole call.
type Geocoder interface {
	Geocode(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
}
