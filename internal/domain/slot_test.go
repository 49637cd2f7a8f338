package domain

import "testing"

func TestSlotHeld(t *testing.T) {
	tests := []struct {
		status SlotStatus
		want   bool
	}{
		{SlotAvailable, false},
		{SlotReserved, true},
		{SlotOccupied, true},
		{SlotMaintenance, false},
	}

	for _, tt := range tests {
		s := &Slot{Status: tt.status}
		if got := s.Held(); got != tt.want {
			t.Errorf("Held() for %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}
