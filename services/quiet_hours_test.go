package services

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"07:30", 450, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"12", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseClock(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 14, hour, min, 0, 0, time.UTC)
}

func TestInQuietHours(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		now   time.Time
		want  bool
	}{
		{"inside daytime window", "13:00", "15:00", at(14, 0), true},
		{"before daytime window", "13:00", "15:00", at(12, 59), false},
		{"at start boundary", "13:00", "15:00", at(13, 0), true},
		{"at end boundary", "13:00", "15:00", at(15, 0), false},
		{"overnight late evening", "22:00", "07:00", at(23, 30), true},
		{"overnight early morning", "22:00", "07:00", at(3, 0), true},
		{"overnight midday", "22:00", "07:00", at(12, 0), false},
		{"overnight just before end", "22:00", "07:00", at(6, 59), true},
		{"overnight at end", "22:00", "07:00", at(7, 0), false},
		{"equal bounds disabled", "09:00", "09:00", at(9, 0), false},
		{"empty start disabled", "", "07:00", at(3, 0), false},
		{"empty end disabled", "22:00", "", at(23, 0), false},
		{"malformed start disabled", "late", "07:00", at(3, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inQuietHours(tt.start, tt.end, tt.now); got != tt.want {
				t.Errorf("inQuietHours(%q, %q, %v) = %v, want %v", tt.start, tt.end, tt.now, got, tt.want)
			}
		})
	}
}
