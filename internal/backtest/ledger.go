package backtest

import (
	"time"

	"basis-backtest/internal/model"
)

// LedgerRow is one row of per-snapshot output.
// This is the primary artifact for "what happened" in a backtest: cash is
// reconstructible row to row as prev + FundingPnl + BasisPnl - Fees.
type LedgerRow struct {
	Index int `json:"index"`

	Timestamp   time.Time `json:"timestamp"`
	FundingRate float64   `json:"funding_rate"`

	// Resolved prices; Spot falls back to Mark when the input was missing.
	Spot float64 `json:"spot_price"`
	Mark float64 `json:"mark_price"`

	BasisPct float64 `json:"basis_pct"`

	Action    model.Action    `json:"action"`
	Direction model.Direction `json:"direction,omitempty"` // empty when flat

	FundingPnl float64 `json:"funding_pnl"`
	BasisPnl   float64 `json:"basis_pnl"`
	Fees       float64 `json:"fees"`

	Cash   float64 `json:"cash"`
	CumPnl float64 `json:"cum_pnl"`
}

// Result bundles the full audit trail with its summary metrics.
type Result struct {
	Ledger  []LedgerRow `json:"ledger"`
	Summary Summary     `json:"summary"`
}
