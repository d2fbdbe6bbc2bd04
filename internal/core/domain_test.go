package core

import (
	"errors"
	"testing"
)

func TestParseScopeType(t *testing.T) {
	cases := []struct {
		in   string
		want ScopeType
		ok   bool
	}{
		{"property", ScopeProperty, true},
		{"owner", ScopeOwner, true},
		{" owner ", ScopeOwner, true},
		{"tenant", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseScopeType(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseScopeType(%q) = %v, %v", tc.in, got, err)
			}
		} else if !errors.Is(err, ErrInvalidScopeType) {
			t.Fatalf("ParseScopeType(%q) expected ErrInvalidScopeType, got %v", tc.in, err)
		}
	}
}

func TestParseClockTime(t *testing.T) {
	ct, err := ParseClockTime("14:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if int(ct) != 14*60+30 {
		t.Fatalf("expected 870 minutes, got %d", int(ct))
	}
	if ct.String() != "14:30" {
		t.Fatalf("round trip failed: %q", ct.String())
	}
	if _, err := ParseClockTime("25:00"); err == nil {
		t.Fatal("expected error for 25:00")
	}
	if _, err := ParseClockTime("half past nine"); err == nil {
		t.Fatal("expected error for non-numeric input")
	}
}

func TestCleaningSessionDuration(t *testing.T) {
	start, _ := ParseClockTime("09:00")
	end, _ := ParseClockTime("12:30")

	s := CleaningSession{Start: start, End: end}
	if got := s.DurationMinutes(); got != 210 {
		t.Errorf("DurationMinutes = %d, want 210", got)
	}
	if got := s.DurationHours(); got != 3.5 {
		t.Errorf("DurationHours = %v, want 3.5", got)
	}

	// End before start is recorded data-entry noise, not an error:
	// the duration is defined as zero.
	s = CleaningSession{Start: end, End: start}
	if got := s.DurationMinutes(); got != 0 {
		t.Errorf("inverted session DurationMinutes = %d, want 0", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-08-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2026-08-15" {
		t.Fatalf("round trip failed: %q", d.String())
	}
	if _, err := ParseDate("15/08/2026"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestEventValidation(t *testing.T) {
	d := NewDate(2026, 8, 15)

	t.Run("linen quantity floor", func(t *testing.T) {
		e := LinenConsumption{PropertyID: 1, Date: d, Quantity: 0}
		if err := e.Validate(); err == nil {
			t.Fatal("expected error for zero quantity")
		}
		e.Quantity = 2
		if err := e.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("supply requires recorded spend", func(t *testing.T) {
		e := SupplyReplenishment{PropertyID: 1, Date: d, Quantity: 1}
		if err := e.Validate(); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
		e.AmountSpent = Money{Cents: 1500}
		if err := e.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("cleaning requires rate", func(t *testing.T) {
		s := CleaningSession{PropertyID: 1, Date: d}
		if err := s.Validate(); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
		s.HourlyRate = Money{Cents: 3000}
		if err := s.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
