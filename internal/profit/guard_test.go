package profit

import (
	"testing"
	"time"
)

func TestDecideWriteSuppressesZeroOverNonzero(t *testing.T) {
	proposed := DailyProfitSummary{}
	existing := &DailyProfitSummary{Revenue: 812.40, Orders: 9, Units: 21}
	if got := DecideWrite(proposed, existing, false); got != StateSuppressed {
		t.Fatalf("state = %v, want suppressed", got)
	}
}

func TestDecideWriteCommitsZeroOverZero(t *testing.T) {
	// A genuinely quiet day stays writable: only nonzero history is protected.
	existing := &DailyProfitSummary{PaidSpend: 14.20} // spend alone is not core
	if got := DecideWrite(DailyProfitSummary{}, existing, false); got != StateCommitted {
		t.Fatalf("state = %v, want committed", got)
	}
}

func TestDecideWriteCommitsWhenNoExistingRow(t *testing.T) {
	if got := DecideWrite(DailyProfitSummary{}, nil, false); got != StateCommitted {
		t.Fatalf("state = %v, want committed", got)
	}
}

func TestDecideWriteForceOverridesSuppression(t *testing.T) {
	existing := &DailyProfitSummary{Revenue: 500}
	if got := DecideWrite(DailyProfitSummary{}, existing, true); got != StateCommitted {
		t.Fatalf("state = %v, want committed under force", got)
	}
}

func TestDecideWriteNonzeroProposalAlwaysCommits(t *testing.T) {
	proposed := DailyProfitSummary{Revenue: 10}
	existing := &DailyProfitSummary{Revenue: 9999}
	if got := DecideWrite(proposed, existing, false); got != StateCommitted {
		t.Fatalf("state = %v, want committed", got)
	}
}

func TestClampWindowStart(t *testing.T) {
	today := day("2026-06-01")

	got := ClampWindowStart(day("2026-01-01"), today, 60, false)
	if want := day("2026-04-02"); !got.Equal(want) {
		t.Fatalf("clamped start = %s, want %s", got.Format(time.DateOnly), want.Format(time.DateOnly))
	}

	inRange := day("2026-05-15")
	if got := ClampWindowStart(inRange, today, 60, false); !got.Equal(inRange) {
		t.Fatalf("in-range start moved to %s", got.Format(time.DateOnly))
	}

	old := day("2025-01-01")
	if got := ClampWindowStart(old, today, 60, true); !got.Equal(old) {
		t.Fatalf("force run clamped to %s", got.Format(time.DateOnly))
	}
	if got := ClampWindowStart(old, today, 0, false); !got.Equal(old) {
		t.Fatalf("zero lookback clamped to %s", got.Format(time.DateOnly))
	}
}

func TestWriteStateString(t *testing.T) {
	if StateProposed.String() != "proposed" || StateCommitted.String() != "committed" || StateSuppressed.String() != "suppressed" {
		t.Fatalf("unexpected state names")
	}
}
