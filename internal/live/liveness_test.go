package live

import (
	"testing"
	"time"

	"tracker.transitlive.org/internal/models"
)

func TestStatus(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	threshold := 90 * time.Second

	tests := []struct {
		name        string
		lastUpdated time.Time
		want        string
	}{
		{"never reported", time.Time{}, models.StatusOffline},
		{"just now", now, models.StatusOnline},
		{"exactly at threshold", now.Add(-threshold), models.StatusOnline},
		{"one millisecond past threshold", now.Add(-threshold - time.Millisecond), models.StatusOffline},
		{"long gone", now.Add(-time.Hour), models.StatusOffline},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Status(tc.lastUpdated, now, threshold); got != tc.want {
				t.Errorf("Status(%v) = %q, want %q", tc.lastUpdated, got, tc.want)
			}
		})
	}
}
