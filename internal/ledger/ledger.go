// Package ledger holds the units and natures of one reallocation run.
//
// Natures live in a flat arena addressed by NatureRef, so a nature refers to
// its unit by index instead of by pointer. The ledger is run-scoped and is not
// safe for concurrent use.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"remanejo/internal/core"
)

var (
	ErrDuplicateUnit   = errors.New("duplicate unit code")
	ErrUnknownUnit     = errors.New("unknown unit")
	ErrUnknownNature   = errors.New("unknown nature")
	ErrInvalidTransfer = errors.New("invalid transfer")
)

// NatureRef addresses a nature by (unit index, nature index) in parse order.
type NatureRef struct {
	Unit  int
	Index int
}

type unitEntry struct {
	unit    core.Unit
	natures []core.Nature
}

type Ledger struct {
	units  []unitEntry
	byCode map[string]int
}

func New() *Ledger {
	return &Ledger{byCode: make(map[string]int)}
}

// AddUnit appends a unit and returns its index.
func (l *Ledger) AddUnit(u core.Unit) (int, error) {
	if err := u.Validate(); err != nil {
		return 0, fmt.Errorf("unit %q: %w", u.Code, err)
	}
	if _, ok := l.byCode[u.Code]; ok {
		return 0, fmt.Errorf("unit %s: %w", u.Code, ErrDuplicateUnit)
	}
	l.units = append(l.units, unitEntry{unit: u})
	idx := len(l.units) - 1
	l.byCode[u.Code] = idx
	return idx, nil
}

// AddNature attaches a nature to the unit at index unit. The fund is
// inherited from the unit when the nature carries none; current balance
// starts at the original balance. A code may repeat within a unit, usually
// on another fund; each row is its own nature.
func (l *Ledger) AddNature(unit int, n core.Nature) (NatureRef, error) {
	if unit < 0 || unit >= len(l.units) {
		return NatureRef{}, ErrUnknownUnit
	}
	if err := n.Validate(); err != nil {
		return NatureRef{}, fmt.Errorf("nature %q: %w", n.Code, err)
	}
	e := &l.units[unit]
	n.UnitCode = e.unit.Code
	n.Fund = n.Fund.Or(e.unit.Fund)
	n.Prefix = core.CategoryPrefix(n.Code)
	n.Current = n.Original
	n.Necessity = decimal.Zero
	e.natures = append(e.natures, n)
	return NatureRef{Unit: unit, Index: len(e.natures) - 1}, nil
}

// UnitCount returns the number of units.
func (l *Ledger) UnitCount() int {
	return len(l.units)
}

// Unit returns the unit at index i.
func (l *Ledger) Unit(i int) core.Unit {
	return l.units[i].unit
}

// UnitByCode looks a unit up by its code.
func (l *Ledger) UnitByCode(code string) (int, bool) {
	i, ok := l.byCode[code]
	return i, ok
}

// Natures returns the refs of a unit's natures in parse order.
func (l *Ledger) Natures(unit int) []NatureRef {
	refs := make([]NatureRef, len(l.units[unit].natures))
	for i := range refs {
		refs[i] = NatureRef{Unit: unit, Index: i}
	}
	return refs
}

// All returns every nature ref in parse order.
func (l *Ledger) All() []NatureRef {
	var refs []NatureRef
	for u := range l.units {
		refs = append(refs, l.Natures(u)...)
	}
	return refs
}

// Nature returns a copy of the nature at ref.
func (l *Ledger) Nature(ref NatureRef) core.Nature {
	return l.units[ref.Unit].natures[ref.Index]
}

// NatureCount returns the total number of natures.
func (l *Ledger) NatureCount() int {
	n := 0
	for _, e := range l.units {
		n += len(e.natures)
	}
	return n
}

// SetNecessity records the outstanding need of a deficit nature.
func (l *Ledger) SetNecessity(ref NatureRef, need decimal.Decimal) {
	if need.IsNegative() {
		need = decimal.Zero
	}
	l.units[ref.Unit].natures[ref.Index].Necessity = need
}

// ApplyTransfer moves amount from src to dst. It is the only place current
// balances change; eligibility rules are enforced by the caller.
func (l *Ledger) ApplyTransfer(src, dst NatureRef, amount decimal.Decimal) error {
	if !l.valid(src) || !l.valid(dst) {
		return ErrUnknownNature
	}
	if !amount.IsPositive() || src == dst {
		return ErrInvalidTransfer
	}
	s := &l.units[src.Unit].natures[src.Index]
	d := &l.units[dst.Unit].natures[dst.Index]
	s.Current = s.Current.Sub(amount)
	d.Current = d.Current.Add(amount)
	return nil
}

// Balances snapshots the ledger for reporting: original total as parsed and
// adjusted total as the sum of adjusted nature balances, per unit.
func (l *Ledger) Balances() []core.UnitBalance {
	out := make([]core.UnitBalance, 0, len(l.units))
	for _, e := range l.units {
		ub := core.UnitBalance{
			Fund:     e.unit.Fund,
			Code:     e.unit.Code,
			Name:     e.unit.Name,
			Original: e.unit.Total,
			Adjusted: decimal.Zero,
			Natures:  make([]core.NatureBalance, 0, len(e.natures)),
		}
		for _, n := range e.natures {
			ub.Adjusted = ub.Adjusted.Add(n.Current)
			ub.Natures = append(ub.Natures, core.NatureBalance{
				Fund:     n.Fund,
				Code:     n.Code,
				Name:     n.Name,
				Original: n.Original,
				Adjusted: n.Current,
			})
		}
		out = append(out, ub)
	}
	return out
}

func (l *Ledger) valid(ref NatureRef) bool {
	if ref.Unit < 0 || ref.Unit >= len(l.units) {
		return false
	}
	return ref.Index >= 0 && ref.Index < len(l.units[ref.Unit].natures)
}
