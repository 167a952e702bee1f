package common

import (
	"testing"
	"time"
)

// warsawTime parses a local Warsaw timestamp for staleness tests
func warsawTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Fatalf("failed to load Warsaw timezone: %v", err)
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}
	return parsed
}

func TestIsNBPBusinessDay(t *testing.T) {
	tests := []struct {
		name string
		date string
		want bool
	}{
		{"monday", "2025-01-06 12:00", true},
		{"wednesday", "2025-01-08 12:00", true},
		{"friday", "2025-01-10 12:00", true},
		{"saturday", "2025-01-11 12:00", false},
		{"sunday", "2025-01-12 12:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNBPBusinessDay(warsawTime(t, tt.date))
			if got != tt.want {
				t.Errorf("IsNBPBusinessDay(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestCheckRateStaleness(t *testing.T) {
	tests := []struct {
		name      string
		rateDate  string
		now       string
		wantStale bool
	}{
		{
			name:      "fresh - yesterday's rate before today's publication",
			rateDate:  "2025-01-07 00:00", // Tuesday
			now:       "2025-01-08 10:00", // Wednesday before 12:15
			wantStale: false,
		},
		{
			name:      "stale - two days old before today's publication",
			rateDate:  "2025-01-06 00:00", // Monday
			now:       "2025-01-08 10:00", // Wednesday before 12:15
			wantStale: true,
		},
		{
			name:      "stale - yesterday's rate after today's publication",
			rateDate:  "2025-01-07 00:00", // Tuesday
			now:       "2025-01-08 14:00", // Wednesday after 12:15
			wantStale: true,
		},
		{
			name:      "fresh - today's rate after publication",
			rateDate:  "2025-01-08 00:00", // Wednesday
			now:       "2025-01-08 14:00",
			wantStale: false,
		},
		{
			name:      "fresh - friday rate checked on sunday",
			rateDate:  "2025-01-10 00:00", // Friday
			now:       "2025-01-12 10:00", // Sunday
			wantStale: false,
		},
		{
			name:      "fresh - friday rate checked monday morning",
			rateDate:  "2025-01-10 00:00", // Friday
			now:       "2025-01-13 09:00", // Monday before 12:15
			wantStale: false,
		},
		{
			name:      "stale - friday rate checked monday afternoon",
			rateDate:  "2025-01-10 00:00", // Friday
			now:       "2025-01-13 14:00", // Monday after 12:15
			wantStale: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckRateStaleness(warsawTime(t, tt.rateDate), warsawTime(t, tt.now))
			if result.IsStale != tt.wantStale {
				t.Errorf("CheckRateStaleness() IsStale = %v, want %v (reason: %s)", result.IsStale, tt.wantStale, result.Reason)
			}
		})
	}
}

func TestCheckRateStaleness_NextCheckTime(t *testing.T) {
	// Fresh rate on a Friday afternoon - next publication is Monday 12:15
	rateDate := warsawTime(t, "2025-01-10 00:00")
	now := warsawTime(t, "2025-01-10 14:00")

	result := CheckRateStaleness(rateDate, now)
	if result.IsStale {
		t.Fatalf("expected fresh rate, got stale (reason: %s)", result.Reason)
	}
	if result.NextCheckTime.IsZero() {
		t.Fatal("expected NextCheckTime to be set for fresh rate")
	}

	want := warsawTime(t, "2025-01-13 12:15")
	if !result.NextCheckTime.Equal(want) {
		t.Errorf("NextCheckTime = %v, want %v", result.NextCheckTime, want)
	}
	if !result.NextCheckTime.After(now) {
		t.Errorf("NextCheckTime %v should be after now %v", result.NextCheckTime, now)
	}
}
