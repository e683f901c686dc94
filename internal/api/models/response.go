package models

import (
	"math"

	"basis-backtest/internal/analysis"
	"basis-backtest/internal/backtest"
)

// BacktestResponse is the result of a backtest run. The ledger is only
// populated when the request asked for it.
type BacktestResponse struct {
	Status  string               `json:"status"`
	Summary backtest.Summary     `json:"summary"`
	Ledger  []backtest.LedgerRow `json:"ledger,omitempty"`
}

// SweepResponse carries the ranked threshold grid results.
type SweepResponse struct {
	Results []analysis.SweepPoint `json:"results"`
}

// PresetInfo describes one built-in engine configuration. The basis
// gates are pointers because a disabled gate is -Inf internally, which
// JSON cannot carry; a disabled gate is simply omitted.
type PresetInfo struct {
	Name   string       `json:"name"`
	Config PresetConfig `json:"config"`
}

// PresetConfig is the JSON-safe view of an engine configuration.
type PresetConfig struct {
	InitialCash           float64  `json:"initial_cash"`
	EntryFundingThreshold float64  `json:"entry_funding_threshold"`
	ExitFundingThreshold  float64  `json:"exit_funding_threshold"`
	EntryBasisThreshold   *float64 `json:"entry_basis_threshold,omitempty"`
	ExitBasisThreshold    *float64 `json:"exit_basis_threshold,omitempty"`
	SpotFeeRate           float64  `json:"spot_fee_rate"`
	PerpFeeRate           float64  `json:"perp_fee_rate"`
	FundingFeeRate        float64  `json:"funding_fee_rate"`
	EnableTwoSidedEntry   bool     `json:"enable_two_sided_entry"`
	FundingOnCash         bool     `json:"funding_on_cash"`
	UseLaggedFunding      bool     `json:"use_lagged_funding"`
}

// NewPresetInfo converts an engine configuration for JSON transport.
func NewPresetInfo(name string, cfg backtest.Config) PresetInfo {
	finite := func(v float64) *float64 {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil
		}
		return &v
	}
	return PresetInfo{
		Name: name,
		Config: PresetConfig{
			InitialCash:           cfg.InitialCash,
			EntryFundingThreshold: cfg.EntryFundingThreshold,
			ExitFundingThreshold:  cfg.ExitFundingThreshold,
			EntryBasisThreshold:   finite(cfg.EntryBasisThreshold),
			ExitBasisThreshold:    finite(cfg.ExitBasisThreshold),
			SpotFeeRate:           cfg.SpotFeeRate,
			PerpFeeRate:           cfg.PerpFeeRate,
			FundingFeeRate:        cfg.FundingFeeRate,
			EnableTwoSidedEntry:   cfg.EnableTwoSidedEntry,
			FundingOnCash:         cfg.FundingOnCash,
			UseLaggedFunding:      cfg.UseLaggedFunding,
		},
	}
}

// PresetsResponse lists the built-in presets.
type PresetsResponse struct {
	Presets []PresetInfo `json:"presets"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
