package core

import "github.com/shopspring/decimal"

// Statistics summarises a reallocation run.
type Statistics struct {
	Units             int `json:"units"`
	Deficits          int `json:"deficits"`
	InternalTransfers int `json:"internal_transfers"`
	ExternalTransfers int `json:"external_transfers"`
}

// NatureBalance is one nature line of the final ledger.
type NatureBalance struct {
	Fund     FundCode        `json:"fund"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Original decimal.Decimal `json:"original"`
	Adjusted decimal.Decimal `json:"adjusted"`
}

// UnitBalance is one unit of the final ledger with its natures.
type UnitBalance struct {
	Fund     FundCode        `json:"fund"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Original decimal.Decimal `json:"original"` // total as parsed
	Adjusted decimal.Decimal `json:"adjusted"` // sum of adjusted nature balances
	Natures  []NatureBalance `json:"natures"`
}
