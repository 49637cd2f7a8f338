package geocode

import (
	"context"
	"errors"
	"locker-reservation-service/internal/domain"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memCache struct {
	mu sync.Mutex
	m  map[string]domain.Coordinates
}

func (c *memCache) GetMany(_ context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]domain.Coordinates{}
	for _, a := range addresses {
		if v, ok := c.m[a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

func (c *memCache) PutMany(_ context.Context, results map[string]domain.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range results {
		c.m[k] = v
	}
	return nil
}

const phoenixBody = `{"features":[{"geometry":{"coordinates":[-112.0999,33.4818]}}]}`

func newTestGeocoder(t *testing.T, h http.HandlerFunc, cache Cache) *ORSGeocoder {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewORSGeocoder("test-key", srv.URL, cache)
	if err != nil {
		t.Fatalf("NewORSGeocoder: %v", err)
	}
	g.backoff = time.Millisecond
	return g
}

func TestGeocodeUsesCacheAfterFirstLookup(t *testing.T) {
	var calls atomic.Int32
	cache := &memCache{m: map[string]domain.Coordinates{}}
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if got := r.URL.Query().Get("text"); got != "1901 W Madison St, Phoenix" {
			t.Errorf("text = %q", got)
		}
		_, _ = w.Write([]byte(phoenixBody))
	}, cache)

	addr := "1901  W Madison St,   Phoenix"
	for i := 0; i < 2; i++ {
		got, err := g.Geocode(context.Background(), []string{addr, addr})
		if err != nil {
			t.Fatalf("Geocode: %v", err)
		}
		if c := got[addr]; c.Lon != -112.0999 || c.Lat != 33.4818 {
			t.Fatalf("coords = %+v", c)
		}
	}

	if n := calls.Load(); n != 1 {
		t.Fatalf("remote calls = %d, want 1", n)
	}
}

func TestGeocodeRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(phoenixBody))
	}, nil)

	if _, err := g.Geocode(context.Background(), []string{"Phoenix"}); err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestGeocodeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusForbidden)
	}, nil)

	_, err := g.Geocode(context.Background(), []string{"Phoenix"})
	var he *httpStatusError
	if !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("err = %v, want 403 status error", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestGeocodeNoResults(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}, nil)

	if _, err := g.Geocode(context.Background(), []string{"Nowhere"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGeocodeRejectsEmptyAddress(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	}, nil)

	if _, err := g.Geocode(context.Background(), []string{"  "}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestNewORSGeocoderRequiresKey(t *testing.T) {
	if _, err := NewORSGeocoder(" ", "", nil); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
