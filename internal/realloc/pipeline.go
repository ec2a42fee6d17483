// Package realloc moves budget surplus onto deficits.
//
// A run goes through a fixed sequence of stages over one ledger: deficit
// scan, internal reallocation, external reallocation, validation and
// consolidation. Every balance change goes through Run.Commit. The order in
// which units, natures and donors are visited is part of the result: the
// same input and configuration always produce the same transfers.
package realloc

import (
	"errors"
	"fmt"

	"remanejo/internal/core"
	"remanejo/internal/ledger"
	"remanejo/internal/trace"
)

var ErrEmptyLedger = errors.New("ledger has no units")

// Result is everything a run produces for reporting.
type Result struct {
	Stats        core.Statistics       `json:"statistics"`
	Deficits     []core.Deficit        `json:"deficits"`
	Transfers    []core.TransferRecord `json:"-"`
	Consolidated []core.TransferRecord `json:"transfers"`
	Validation   Validation            `json:"validation"`
	Transcript   string                `json:"transcript"`
	Balances     []core.UnitBalance    `json:"balances"`

	Ledger *ledger.Ledger `json:"-"`
}

// Execute runs every stage over l with cfg. The ledger is modified in place.
func Execute(l *ledger.Ledger, cfg Config, tr *trace.Trace) (*Result, error) {
	if l == nil || l.UnitCount() == 0 {
		return nil, ErrEmptyLedger
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	run := NewRun(l, cfg, tr)
	run.describeConfig()

	deficits := run.ScanDeficits()
	eligible := eligibleDeficits(deficits)
	if eligible > 0 {
		run.ReallocateInternal()
		run.ReallocateExternal()
	}
	validation := run.Validate()
	if bad := reconcile(l, run.Transfers); len(bad) > 0 {
		validation.ConsistencyErrors = append(validation.ConsistencyErrors, bad...)
		run.Trace.Warn("balances do not reconcile with transfers", "count", len(bad))
	}
	consolidated := Consolidate(run.Transfers, run.Trace)

	stats := core.Statistics{Units: l.UnitCount(), Deficits: eligible}
	for _, rec := range run.Transfers {
		if rec.Kind.Internal() {
			stats.InternalTransfers++
		} else {
			stats.ExternalTransfers++
		}
	}
	run.Trace.Stage("summary")
	run.Trace.Info("run finished",
		"units", stats.Units, "deficits", stats.Deficits,
		"internal", stats.InternalTransfers, "external", stats.ExternalTransfers)

	return &Result{
		Stats:        stats,
		Deficits:     deficits,
		Transfers:    run.Transfers,
		Consolidated: consolidated,
		Validation:   validation,
		Transcript:   run.Trace.Transcript(),
		Balances:     l.Balances(),
		Ledger:       l,
	}, nil
}

func (r *Run) describeConfig() {
	r.Trace.Stage("config")
	if r.Config.ProhibitedFund.IsSet() {
		r.Trace.Info("prohibited fund", "fund", r.Config.ProhibitedFund.String())
	} else {
		r.Trace.Info("no prohibited fund")
	}
	if codes := r.Config.ProhibitedNatures.Sorted(); len(codes) > 0 {
		r.Trace.Info("prohibited natures", "codes", fmt.Sprint(codes))
	}
	r.Trace.Info("limits",
		"reserve_pct", r.Config.ReservePct.String(),
		"max_per_operation_pct", r.Config.MaxPerOperationPct.String(),
		"prefer_single_donor", r.Config.PreferSingleDonor)
}
