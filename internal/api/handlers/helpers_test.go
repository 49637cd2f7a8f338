package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"locker-reservation-service/internal/api/dto"
	"locker-reservation-service/internal/domain"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "invalid argument keeps only the validating message",
			err:        fmt.Errorf("reserve: %w", fmt.Errorf("window 9000m outside 1..4h0m0s: %w", domain.ErrInvalidArgument)),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "window 9000m outside 1..4h0m0s: invalid argument",
		},
		{
			name:       "bare invalid argument",
			err:        domain.ErrInvalidArgument,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid argument",
		},
		{
			name:       "joined chain falls back to the sentinel",
			err:        fmt.Errorf("op: %w: %w", errors.New("internal detail"), domain.ErrInvalidArgument),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid argument",
		},
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("cancel x: %w", domain.ErrReservationNotFound),
			wantStatus: http.StatusNotFound,
			wantMsg:    "reservation not found",
		},
		{
			name:       "expired pickup",
			err:        fmt.Errorf("pickup r1: %w", domain.ErrCodeExpired),
			wantStatus: http.StatusGone,
			wantMsg:    "pickup window has expired",
		},
		{
			name:       "unknown error",
			err:        errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/reservations", nil)

			writeServiceError(rec, req, "test", tt.err)

			var body dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rec.Code != tt.wantStatus || body.Error != tt.wantMsg {
				t.Fatalf("got %d %q, want %d %q", rec.Code, body.Error, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}
