package accounts

import (
	"testing"
)

func TestDefaultAvailability(t *testing.T) {
	a := DefaultAvailability()
	if len(a) != 7 {
		t.Fatalf("got %d days, want 7", len(a))
	}
	if !a["monday"].Available || a["monday"].Start != "09:00" || a["monday"].End != "17:00" {
		t.Errorf("monday = %+v, want office hours", a["monday"])
	}
	if a["saturday"].Available || a["sunday"].Available {
		t.Error("weekend marked available by default")
	}
}

// TestParseAvailabilityMalformed verifies undecodable input falls back to the
// default schedule instead of failing.
func TestParseAvailabilityMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"monday": 42}`} {
		a := ParseAvailability(raw)
		if len(a) != 7 {
			t.Errorf("ParseAvailability(%q) returned %d days, want 7", raw, len(a))
		}
		if !a["monday"].Available {
			t.Errorf("ParseAvailability(%q) lost the monday default", raw)
		}
	}
}

func TestParseAvailabilityPartial(t *testing.T) {
	raw := `{"monday":{"available":false},"friday":{"available":true,"start":"10:00","end":"14:00"}}`
	a := ParseAvailability(raw)

	if a["monday"].Available {
		t.Error("monday override lost")
	}
	if a["friday"].Start != "10:00" || a["friday"].End != "14:00" {
		t.Errorf("friday = %+v, want stored hours", a["friday"])
	}
	// Missing days fill from defaults.
	if !a["tuesday"].Available || a["tuesday"].Start != "09:00" {
		t.Errorf("tuesday = %+v, want default", a["tuesday"])
	}
}

// TestParseAvailabilityInvalidClock verifies out-of-range times on an
// available day fall back to that day's default.
func TestParseAvailabilityInvalidClock(t *testing.T) {
	raw := `{"wednesday":{"available":true,"start":"25:00","end":"17:00"}}`
	a := ParseAvailability(raw)
	if a["wednesday"].Start != "09:00" {
		t.Errorf("wednesday = %+v, want default after invalid clock", a["wednesday"])
	}
}

func TestAvailabilityEncodeRoundTrip(t *testing.T) {
	orig := DefaultAvailability()
	raw, err := orig.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back := ParseAvailability(raw)
	for _, day := range weekdays {
		if back[day] != orig[day] {
			t.Errorf("%s changed in round trip: %+v vs %+v", day, back[day], orig[day])
		}
	}
}
