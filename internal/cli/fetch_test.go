package cli

import (
	"testing"
	"time"
)

func TestValidStatus(t *testing.T) {
	for _, s := range []string{"all", "open", "closed", "acked"} {
		if !validStatus(s) {
			t.Errorf("validStatus(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "ALL", "snoozed", "acknowledged"} {
		if validStatus(s) {
			t.Errorf("validStatus(%q) = true, want false", s)
		}
	}
}

func TestResolveRange_Days(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	r, err := resolveRange(7, "", "", now)
	if err != nil {
		t.Fatalf("resolveRange() error = %v", err)
	}
	if !r.End.Equal(now) {
		t.Errorf("End = %v, want now", r.End)
	}
	if !r.Start.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("Start = %v, want 7 days back", r.Start)
	}
}

func TestResolveRange_ExplicitDates(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	r, err := resolveRange(7, "2026-08-01", "2026-08-15", now)
	if err != nil {
		t.Fatalf("resolveRange() error = %v", err)
	}

	wantStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !r.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", r.Start, wantStart)
	}
	// End is inclusive: last second of the end day.
	wantEnd := time.Date(2026, 8, 15, 23, 59, 59, 0, time.UTC)
	if !r.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", r.End, wantEnd)
	}
}

func TestResolveRange_Errors(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name  string
		days  int
		start string
		end   string
	}{
		{"start without end", 7, "2026-08-01", ""},
		{"end without start", 7, "", "2026-08-15"},
		{"bad start format", 7, "08/01/2026", "2026-08-15"},
		{"bad end format", 7, "2026-08-01", "next tuesday"},
		{"start after end", 7, "2026-08-15", "2026-08-01"},
		{"zero days", 0, "", ""},
		{"negative days", -3, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolveRange(tt.days, tt.start, tt.end, now); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestResolveRange_SingleDay(t *testing.T) {
	now := time.Now().UTC()

	r, err := resolveRange(7, "2026-08-10", "2026-08-10", now)
	if err != nil {
		t.Fatalf("resolveRange() error = %v", err)
	}
	if r.Duration() != 24*time.Hour-time.Second {
		t.Errorf("single-day range spans %v, want just under 24h", r.Duration())
	}
}

func TestFetchCommand_Registered(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "fetch" {
			return
		}
	}
	t.Error("fetch command is not registered on the root command")
}
