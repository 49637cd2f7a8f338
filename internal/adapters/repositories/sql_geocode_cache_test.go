package repositories

import (
	"context"
	"locker-reservation-service/internal/domain"
	"os"
	"path/filepath"
	"testing"
)

func TestSQLGeocodeCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	c := NewSQLGeocodeCache(s.DB, SQLite)
	ctx := context.Background()

	got, err := c.GetMany(ctx, []string{"a", "b"})
	if err != nil || len(got) != 0 {
		t.Fatalf("GetMany on empty cache = %v, %v", got, err)
	}

	if err := c.PutMany(ctx, map[string]domain.Coordinates{
		"a": {Lon: 1, Lat: 2},
		"b": {Lon: 3, Lat: 4},
	}); err != nil {
		t.Fatalf("PutMany: %v", err)
	}
	if err := c.PutMany(ctx, map[string]domain.Coordinates{"a": {Lon: 5, Lat: 6}}); err != nil {
		t.Fatalf("PutMany overwrite: %v", err)
	}

	got, err = c.GetMany(ctx, []string{"a", "b", "a", " ", "missing"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 2 || got["a"] != (domain.Coordinates{Lon: 5, Lat: 6}) || got["b"] != (domain.Coordinates{Lon: 3, Lat: 4}) {
		t.Fatalf("GetMany = %v", got)
	}
}

type stubGeocoder struct {
	calls [][]string
}

func (g *stubGeocoder) Geocode(_ context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	g.calls = append(g.calls, addresses)
	out := make(map[string]domain.Coordinates, len(addresses))
	for _, a := range addresses {
		out[a] = domain.Coordinates{Lon: -111.94, Lat: 33.4255}
	}
	return out, nil
}

func TestSeedGeocodesLocationsWithoutCoordinates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `{
		"locations": [
			{"location_id": "GEO", "name": "By address", "address": "520 S Mill Ave, Tempe, AZ",
			 "slots": [{"locker_id": "A", "number": 1, "size": "SMALL"}]},
			{"location_id": "FIXED", "name": "Given", "address": "somewhere", "lon": -112.0, "lat": 33.0,
			 "slots": [{"locker_id": "A", "number": 1, "size": "SMALL"}]}
		]
	}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	geo := &stubGeocoder{}
	if err := SeedFromJSON(ctx, s, path, t0, geo); err != nil {
		t.Fatalf("SeedFromJSON: %v", err)
	}

	if len(geo.calls) != 1 || len(geo.calls[0]) != 1 || geo.calls[0][0] != "520 S Mill Ave, Tempe, AZ" {
		t.Fatalf("geocoder calls = %v", geo.calls)
	}

	l, err := s.GetLocation(ctx, "GEO")
	if err != nil || l.Coords != (domain.Coordinates{Lon: -111.94, Lat: 33.4255}) {
		t.Fatalf("GEO location = %+v, err %v", l, err)
	}
	l, err = s.GetLocation(ctx, "FIXED")
	if err != nil || l.Coords != (domain.Coordinates{Lon: -112.0, Lat: 33.0}) {
		t.Fatalf("FIXED location = %+v, err %v", l, err)
	}
}
