package store

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"call_next", "waiting", true},
		{"call_next", "in_progress", false},
		{"call_next", "completed", false},
		{"call_next", "cancelled", false},
		{"complete", "in_progress", true},
		{"complete", "waiting", false},
		{"complete", "completed", false},
		{"complete", "cancelled", false},
		{"skip", "waiting", true},
		{"skip", "in_progress", false},
		{"skip", "completed", false},
		{"skip", "cancelled", false},
		{"unknown", "waiting", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}
