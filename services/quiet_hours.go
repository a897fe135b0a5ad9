package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseClock turns "HH:MM" into minutes past midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// inQuietHours reports whether now falls inside the [start, end) window.
// A start after the end means the window crosses midnight (e.g. 22:00–07:00).
// Unset or malformed bounds disable the window.
func inQuietHours(start, end string, now time.Time) bool {
	if start == "" || end == "" {
		return false
	}
	s, err := parseClock(start)
	if err != nil {
		return false
	}
	e, err := parseClock(end)
	if err != nil {
		return false
	}
	if s == e {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if s < e {
		return cur >= s && cur < e
	}
	// overnight window
	return cur >= s || cur < e
}
