package api

import (
	"locker-reservation-service/internal/api/handlers"
	"locker-reservation-service/internal/services"
	"net/http"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// metrics may be nil, in which case /metrics is not served.
func NewRouter(locker *services.Locker, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	resHandler := &handlers.ReservationHandler{
		Allocator: locker.Allocator,
		Lifecycle: locker.Lifecycle,
	}
	adminHandler := &handlers.AdminHandler{
		Reclaimer: locker.Reclaimer,
		Catalog:   locker.Catalog,
	}

	healthHandler := &handlers.HealthHandler{Reclaimer: locker.Reclaimer}

	mux.HandleFunc("/health", healthHandler.Health)

	mux.HandleFunc("POST /reservations", resHandler.Create)
	mux.HandleFunc("GET /reservations/{id}", resHandler.Get)
	mux.HandleFunc("POST /reservations/{id}/drop-off", resHandler.DropOff)
	mux.HandleFunc("POST /reservations/{id}/cancel", resHandler.Cancel)
	mux.HandleFunc("POST /pickups", resHandler.Pickup)

	mux.HandleFunc("POST /admin/reclaim", adminHandler.Reclaim)
	mux.HandleFunc("GET /locations/{id}/availability", adminHandler.Availability)
	mux.HandleFunc("POST /slots/{id}/maintenance", adminHandler.Maintenance)

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return requestIDMiddleware(loggingMiddleware(mux))
}
