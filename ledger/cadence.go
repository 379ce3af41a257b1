/*
cadence.go - The entitlement clock

PURPOSE:
  Decides, for a voucher's cadence and its last-applied date, whether the
  current date falls in a new period. This is the single source of truth
  for "is this entitlement due"; ApplyResets consults nothing else.

PERIOD SEMANTICS:
  daily:   a different calendar date
  weekly:  a different (ISO year, ISO week) pair
  monthly: a different (year, month) pair
  yearly:  a different year

  Weekly and monthly comparisons are year-qualified on purpose: comparing
  the week or month number alone would treat "week 52 of 2024" and
  "week 52 of 2025" as the same period and skip a due entitlement across
  a year boundary.

SEE ALSO:
  - allocator.go: ApplyResets uses PeriodElapsed per link
*/
package ledger

import "fmt"

// =============================================================================
// CADENCE - Fixed closed enumeration of renewal periods
// =============================================================================

type Cadence string

const (
	Daily   Cadence = "daily"
	Weekly  Cadence = "weekly"
	Monthly Cadence = "monthly"
	Yearly  Cadence = "yearly"
)

// Cadences lists every valid cadence, in renewal-frequency order.
var Cadences = []Cadence{Daily, Weekly, Monthly, Yearly}

// ParseCadence validates a cadence string.
func ParseCadence(s string) (Cadence, error) {
	switch Cadence(s) {
	case Daily, Weekly, Monthly, Yearly:
		return Cadence(s), nil
	}
	return "", fmt.Errorf("unknown cadence %q", s)
}

// =============================================================================
// ENTITLEMENT CLOCK
// =============================================================================

// PeriodElapsed reports whether today falls in a new period relative to
// lastApplied for the given cadence. Pure function, no side effects.
// A zero lastApplied (never applied) always counts as elapsed.
func PeriodElapsed(cadence Cadence, lastApplied, today Date) bool {
	if lastApplied.IsZero() {
		return true
	}

	switch cadence {
	case Daily:
		return !lastApplied.Equal(today)

	case Weekly:
		ly, lw := lastApplied.ISOWeek()
		ty, tw := today.ISOWeek()
		return ly != ty || lw != tw

	case Monthly:
		return lastApplied.Year() != today.Year() || lastApplied.Month() != today.Month()

	case Yearly:
		return lastApplied.Year() != today.Year()

	default:
		// Unknown cadences never elapse; the catalog validates on write.
		return false
	}
}
