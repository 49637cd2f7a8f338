package domain

import "testing"

func TestContactMatches(t *testing.T) {
	c := Contact{Name: "Ada", Email: "Ada@Example.com", Phone: "+1 (602) 555-0100"}

	tests := []struct {
		proof string
		want  bool
	}{
		{"ada@example.com", true},
		{"  ADA@EXAMPLE.COM ", true},
		{"other@example.com", false},
		{"16025550100", true},
		{"+1-602-555-0100", true},
		{"6025550100", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := c.Matches(tt.proof); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.proof, got, tt.want)
		}
	}

	empty := Contact{Name: "No Phone"}
	if empty.Matches("123") {
		t.Errorf("contact without phone matched digits")
	}
}

func TestParcelStatusTerminal(t *testing.T) {
	tests := []struct {
		status ParcelStatus
		want   bool
	}{
		{ParcelPending, false},
		{ParcelReserved, false},
		{ParcelInLocker, false},
		{ParcelPickedUp, true},
		{ParcelExpired, true},
		{ParcelCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
