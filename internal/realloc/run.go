package realloc

import (
	"github.com/shopspring/decimal"

	"remanejo/internal/core"
	"remanejo/internal/ledger"
	"remanejo/internal/trace"
)

// Run is the per-run context owned by the pipeline and passed by reference
// to every stage. Nothing in it is shared with other runs.
type Run struct {
	Ledger    *ledger.Ledger
	Config    Config
	Trace     *trace.Trace
	Transfers []core.TransferRecord
}

// NewRun wraps a parsed ledger. A nil trace is replaced by a silent one.
func NewRun(l *ledger.Ledger, cfg Config, tr *trace.Trace) *Run {
	if tr == nil {
		tr = trace.New(nil)
	}
	return &Run{Ledger: l, Config: cfg, Trace: tr}
}

func (r *Run) unitProhibited(unit int) bool {
	return r.Config.IsProhibitedFund(r.Ledger.Unit(unit).Fund)
}

func (r *Run) excluded(ref ledger.NatureRef) bool {
	return r.Config.Excluded(r.Ledger.Nature(ref))
}

func (r *Run) capacity(ref ledger.NatureRef) decimal.Decimal {
	return Capacity(r.Ledger.Nature(ref), r.Config.ReservePct, r.Config.MaxPerOperationPct)
}

// surplus returns the eligible natures of a unit with a positive current balance.
func (r *Run) surplus(unit int) []ledger.NatureRef {
	var out []ledger.NatureRef
	for _, ref := range r.Ledger.Natures(unit) {
		if r.Ledger.Nature(ref).Current.IsPositive() && !r.excluded(ref) {
			out = append(out, ref)
		}
	}
	return out
}

// totalCurrent sums the current balances of refs.
func (r *Run) totalCurrent(refs []ledger.NatureRef) decimal.Decimal {
	total := decimal.Zero
	for _, ref := range refs {
		total = total.Add(r.Ledger.Nature(ref).Current)
	}
	return total
}
