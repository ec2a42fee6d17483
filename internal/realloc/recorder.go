package realloc

import (
	"github.com/shopspring/decimal"

	"remanejo/internal/core"
	"remanejo/internal/ledger"
)

// RejectReason explains why the recorder refused a transfer. The empty
// reason means the transfer was committed.
type RejectReason string

const (
	Committed               RejectReason = ""
	RejectNotDonor          RejectReason = "source did not start with a surplus"
	RejectNotReceiver       RejectReason = "destination did not start with a deficit"
	RejectNonPositive       RejectReason = "amount is not positive"
	RejectInsufficientFunds RejectReason = "amount exceeds source balance"
	RejectReserve           RejectReason = "transfer would breach the source reserve"
	RejectProhibitedNature  RejectReason = "nature is prohibited"
	RejectProhibitedFund    RejectReason = "fund is prohibited"
	RejectLedger            RejectReason = "ledger refused the transfer"
	RejectInvalidRecord     RejectReason = "transfer record is invalid"
)

// Commit validates and applies one transfer of amount from src to dst. The
// amount is truncated to cents first, so the ledger and the record agree.
// A need with a third decimal is covered to the cent below it: -100.333
// ends at -0.003, which the validator treats as settled.
// It returns the committed amount, or zero and the reason for refusing.
func (r *Run) Commit(src, dst ledger.NatureRef, amount decimal.Decimal, kind core.TransferKind) (decimal.Decimal, RejectReason) {
	amount = core.Cents(amount)
	s := r.Ledger.Nature(src)
	d := r.Ledger.Nature(dst)

	if reason := r.check(src, dst, amount); reason != Committed {
		r.Trace.Reject("transfer rejected",
			"reason", string(reason),
			"source", s.UnitCode+"/"+s.Code,
			"dest", d.UnitCode+"/"+d.Code,
			"amount", core.FormatAmount(amount))
		return decimal.Zero, reason
	}

	r.Trace.Info("before transfer",
		"source", s.Code, "source_balance", core.FormatAmount(s.Current),
		"dest", d.Code, "dest_balance", core.FormatAmount(d.Current))

	rec := core.TransferRecord{
		Kind:             kind,
		Fund:             s.Fund,
		SourceUnitCode:   s.UnitCode,
		SourceNatureCode: s.Code,
		SourceNatureName: s.Name,
		DestUnitCode:     d.UnitCode,
		DestNatureCode:   d.Code,
		DestNatureName:   d.Name,
		Amount:           amount,
	}
	if err := rec.Validate(); err != nil {
		r.Trace.Reject("transfer rejected", "reason", string(RejectInvalidRecord), "error", err.Error())
		return decimal.Zero, RejectInvalidRecord
	}

	if err := r.Ledger.ApplyTransfer(src, dst, amount); err != nil {
		r.Trace.Reject("transfer rejected", "reason", string(RejectLedger), "error", err.Error())
		return decimal.Zero, RejectLedger
	}

	r.Transfers = append(r.Transfers, rec)
	r.Ledger.SetNecessity(dst, r.Ledger.Nature(dst).Current.Neg())

	s, d = r.Ledger.Nature(src), r.Ledger.Nature(dst)
	r.Trace.Info("transfer committed",
		"kind", string(kind),
		"fund", rec.Fund.String(),
		"source", s.UnitCode+"/"+s.Code,
		"dest", d.UnitCode+"/"+d.Code,
		"amount", core.FormatAmount(amount),
		"source_balance", core.FormatAmount(s.Current),
		"dest_balance", core.FormatAmount(d.Current))
	return amount, Committed
}

func (r *Run) check(src, dst ledger.NatureRef, amount decimal.Decimal) RejectReason {
	s, d := r.Ledger.Nature(src), r.Ledger.Nature(dst)
	switch {
	case !s.IsDonorCandidate():
		return RejectNotDonor
	case !d.IsReceiverCandidate():
		return RejectNotReceiver
	case !amount.IsPositive():
		return RejectNonPositive
	case amount.GreaterThan(s.Current):
		return RejectInsufficientFunds
	case s.Current.Sub(amount).LessThan(s.Original.Mul(r.Config.ReservePct)):
		return RejectReserve
	case r.Config.IsProhibitedNature(s.Code), r.Config.IsProhibitedNature(d.Code):
		return RejectProhibitedNature
	case r.Config.IsProhibitedFund(s.Fund), r.Config.IsProhibitedFund(d.Fund),
		r.unitProhibited(src.Unit), r.unitProhibited(dst.Unit):
		return RejectProhibitedFund
	}
	return Committed
}
