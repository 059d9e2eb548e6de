package profit

import "time"

// WriteState is the per-(client, date) state a freshly computed summary moves
// through during a run.
type WriteState int

const (
	// StateProposed is the initial state of a freshly computed summary.
	StateProposed WriteState = iota
	// StateCommitted means the summary replaces whatever row exists.
	StateCommitted
	// StateSuppressed means the summary is discarded and the persisted row
	// kept, because committing would wipe historical truth with zeros.
	StateSuppressed
)

func (s WriteState) String() string {
	switch s {
	case StateProposed:
		return "proposed"
	case StateCommitted:
		return "committed"
	case StateSuppressed:
		return "suppressed"
	}
	return "unknown"
}

// DecideWrite resolves a proposed summary against the persisted row for the
// same day. An all-zero proposal over a day that already holds any nonzero
// core metric is suppressed unless force is set: a narrowed or failed upstream
// fetch must not zero out a manually backfilled day or one computed while the
// upstream window was still available.
func DecideWrite(proposed DailyProfitSummary, existing *DailyProfitSummary, force bool) WriteState {
	if force {
		return StateCommitted
	}
	if proposed.CoreZero() && existing != nil && !existing.CoreZero() {
		return StateSuppressed
	}
	return StateCommitted
}

// ClampWindowStart pulls the requested start forward to the lookback cutoff
// (today − maxLookbackDays) unless force is set. Upstream order and refund
// APIs become unreliable past the cutoff, so default runs never touch days
// that old. The end date is returned unchanged.
func ClampWindowStart(start, today time.Time, maxLookbackDays int, force bool) time.Time {
	if force || maxLookbackDays <= 0 {
		return start
	}
	cutoff := today.AddDate(0, 0, -maxLookbackDays)
	if start.Before(cutoff) {
		return cutoff
	}
	return start
}
