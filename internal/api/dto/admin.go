package dto

import "time"

type ReclaimResponse struct {
	Reclaimed int       `json:"reclaimed"`
	RanAt     time.Time `json:"ran_at"`
}

type AvailabilityResponse struct {
	LocationID string         `json:"location_id"`
	Available  map[string]int `json:"available"`
}

type MaintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

type HealthResponse struct {
	Status      string     `json:"status"`
	LastReclaim *time.Time `json:"last_reclaim,omitempty"`
}
