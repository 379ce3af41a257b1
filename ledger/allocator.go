/*
allocator.go - Per-voucher reset and debit distribution

PURPOSE:
  A customer's voucher balance is the sum of individual VoucherLink
  balances. This file owns the two per-link computations:

  ApplyResets:      renew each link whose cadence has elapsed, returning
                    the new aggregate.
  DistributeDebit:  spread a purchase amount across link balances so a
                    later period reset cannot resurrect value that was
                    already spent.

WHY DISTRIBUTE DEBITS?
  A reset SETS a link's balance to the catalog value; it does not add.
  If debits were only tracked on the aggregate, a link that still showed
  its full stored value would be reset over the top of spend that was
  actually allocated to it, duplicating value. Decrementing the
  individual links keeps each stored value equal to the entitlement
  genuinely remaining on it.

DETERMINISM:
  Links are processed in assignment order (AssignedAt, then VoucherID as
  a tiebreak). Greedy first-fit: drain each link in turn until the
  amount is exhausted.

SEE ALSO:
  - cadence.go: PeriodElapsed
  - engine.go:  callers of both functions
*/
package ledger

import "sort"

// =============================================================================
// RESET DISTRIBUTION
// =============================================================================

// ResetResult reports the outcome of applying period resets.
type ResetResult struct {
	Links     []VoucherLink
	Aggregate Money // sum of all link balances after resets
	Delta     Money // Aggregate minus the previous aggregate; may be zero or negative
	Applied   int   // number of links that reset
}

// ApplyResets renews every link whose cadence has elapsed as of today:
// the link's balance is set to the catalog voucher's value and its
// LastApplied becomes today. Links whose period has not elapsed are
// untouched. The delta is computed as aggregate-after minus
// aggregate-before rather than a sum of increases, because a reset can
// lower a link that was over-provisioned by an earlier catalog change.
//
// Fails with CatalogError if a link references a voucher missing from
// the catalog.
func ApplyResets(links []VoucherLink, catalog Catalog, today Date, previousAggregate Money) (ResetResult, error) {
	updated := sortedByAssignment(links)
	applied := 0

	for i, link := range updated {
		voucher, ok := catalog[link.VoucherID]
		if !ok {
			return ResetResult{}, &CatalogError{CustomerID: link.CustomerID, VoucherID: link.VoucherID}
		}
		if !PeriodElapsed(voucher.Cadence, link.LastApplied, today) {
			continue
		}
		if voucher.Value.Currency != previousAggregate.Currency {
			return ResetResult{}, &CurrencyMismatchError{
				Left:  previousAggregate.Currency,
				Right: voucher.Value.Currency,
			}
		}
		updated[i].VoucherValue = voucher.Value
		updated[i].LastApplied = today
		applied++
	}

	aggregate, err := SumLinkValues(updated, previousAggregate.Currency)
	if err != nil {
		return ResetResult{}, err
	}
	delta, err := aggregate.Sub(previousAggregate)
	if err != nil {
		return ResetResult{}, err
	}

	return ResetResult{Links: updated, Aggregate: aggregate, Delta: delta, Applied: applied}, nil
}

// =============================================================================
// DEBIT DISTRIBUTION
// =============================================================================

// DistributeDebit deducts amount across the links in assignment order,
// greedy first-fit: each link is drained before the next is touched.
// The caller must already have capped amount at the aggregate voucher
// balance (the engine's voucher-first split does this); any residue left
// after draining every link indicates that precondition was violated.
func DistributeDebit(links []VoucherLink, amount Money) ([]VoucherLink, error) {
	updated := sortedByAssignment(links)
	remaining := amount

	for i := range updated {
		if remaining.IsZero() || remaining.IsNegative() {
			break
		}
		more, err := remaining.GreaterThan(updated[i].VoucherValue)
		if err != nil {
			return nil, err
		}
		if more {
			remaining, err = remaining.Sub(updated[i].VoucherValue)
			if err != nil {
				return nil, err
			}
			updated[i].VoucherValue = Zero(updated[i].VoucherValue.Currency)
		} else {
			updated[i].VoucherValue, err = updated[i].VoucherValue.Sub(remaining)
			if err != nil {
				return nil, err
			}
			remaining = Zero(remaining.Currency)
		}
	}

	return updated, nil
}

// =============================================================================
// ORDERING
// =============================================================================

// sortedByAssignment returns a copy of links in stable assignment order.
func sortedByAssignment(links []VoucherLink) []VoucherLink {
	out := make([]VoucherLink, len(links))
	copy(out, links)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].VoucherID < out[j].VoucherID
	})
	return out
}
