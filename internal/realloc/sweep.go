package realloc

import (
	"slices"

	"github.com/shopspring/decimal"

	"remanejo/internal/core"
	"remanejo/internal/ledger"
)

// splitByPrefix partitions donors into those sharing prefix and the rest,
// each ordered by current balance, largest first. Ties keep parse order.
func (r *Run) splitByPrefix(donors []ledger.NatureRef, prefix string) (same, other []ledger.NatureRef) {
	for _, ref := range donors {
		if r.Ledger.Nature(ref).Prefix == prefix {
			same = append(same, ref)
		} else {
			other = append(other, ref)
		}
	}
	r.sortByBalance(same)
	r.sortByBalance(other)
	return same, other
}

func (r *Run) sortByBalance(refs []ledger.NatureRef) {
	slices.SortStableFunc(refs, func(a, b ledger.NatureRef) int {
		return r.Ledger.Nature(b).Current.Cmp(r.Ledger.Nature(a).Current)
	})
}

// sweep takes min(need, capacity) from each donor in order until need is
// settled, and returns what is still missing. Donors whose capacity is within
// epsilon are skipped; rejected transfers do not reduce the need.
func (r *Run) sweep(dst ledger.NatureRef, need decimal.Decimal, donors []ledger.NatureRef, kind core.TransferKind) decimal.Decimal {
	for _, src := range donors {
		if core.Settled(need) {
			break
		}
		capacity := r.capacity(src)
		if core.Settled(capacity) {
			continue
		}
		committed, _ := r.Commit(src, dst, decimal.Min(need, capacity), kind)
		need = need.Sub(committed)
	}
	return need
}
