package accounts

import (
	"encoding/json"
	"fmt"
)

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// DaySlot is one weekday of a professional's schedule.
type DaySlot struct {
	Available bool   `json:"available"`
	Start     string `json:"start"` // "HH:MM", 24h
	End       string `json:"end"`
}

// Availability is a typed weekly schedule keyed by lowercase weekday name.
type Availability map[string]DaySlot

// DefaultAvailability is weekday office hours.
func DefaultAvailability() Availability {
	a := make(Availability, len(weekdays))
	for _, day := range weekdays {
		weekend := day == "saturday" || day == "sunday"
		a[day] = DaySlot{Available: !weekend, Start: "09:00", End: "17:00"}
	}
	return a
}

// ParseAvailability decodes a stored schedule. Malformed or partial data is a
// recoverable condition: unknown keys are dropped, missing days are filled
// from defaults, and undecodable input falls back to the default schedule
// entirely.
func ParseAvailability(raw string) Availability {
	defaults := DefaultAvailability()
	if raw == "" {
		return defaults
	}

	var stored map[string]DaySlot
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return defaults
	}

	a := make(Availability, len(weekdays))
	for _, day := range weekdays {
		slot, ok := stored[day]
		if !ok || !validSlot(slot) {
			slot = defaults[day]
		}
		a[day] = slot
	}
	return a
}

func validSlot(s DaySlot) bool {
	if !s.Available {
		return true
	}
	return validClock(s.Start) && validClock(s.End)
}

func validClock(s string) bool {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return false
	}
	return h >= 0 && h < 24 && m >= 0 && m < 60
}

// Encode serializes a schedule for storage.
func (a Availability) Encode() (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encoding availability: %w", err)
	}
	return string(b), nil
}
