package models

import (
	"basis-backtest/internal/backtest"
	"basis-backtest/internal/model"
)

// BacktestRequest is the body for POST /api/v1/backtest. The series
// comes inline as snapshots or from a server-side CSV path (inline
// wins when both are set); the engine configuration comes from a named
// preset, field overrides, or both (overrides win).
type BacktestRequest struct {
	Snapshots []model.MarketSnapshot `json:"snapshots,omitempty"`
	CSVPath   string                 `json:"csv_path,omitempty"`
	Preset    string                 `json:"preset,omitempty"`
	Config    *ConfigOverrides       `json:"config,omitempty"`
	Options   BacktestOptions        `json:"options,omitempty"`
}

// ConfigOverrides carries engine parameters as pointers so that an
// absent field and an explicit zero are distinguishable. JSON cannot
// encode the -Inf the disabled basis gates default to, so only fields
// present in the request touch the base config.
type ConfigOverrides struct {
	InitialCash           *float64 `json:"initial_cash,omitempty"`
	EntryFundingThreshold *float64 `json:"entry_funding_threshold,omitempty"`
	ExitFundingThreshold  *float64 `json:"exit_funding_threshold,omitempty"`
	EntryBasisThreshold   *float64 `json:"entry_basis_threshold,omitempty"`
	ExitBasisThreshold    *float64 `json:"exit_basis_threshold,omitempty"`
	SpotFeeRate           *float64 `json:"spot_fee_rate,omitempty"`
	PerpFeeRate           *float64 `json:"perp_fee_rate,omitempty"`
	FundingFeeRate        *float64 `json:"funding_fee_rate,omitempty"`
	EnableTwoSidedEntry   *bool    `json:"enable_two_sided_entry,omitempty"`
	FundingOnCash         *bool    `json:"funding_on_cash,omitempty"`
	UseLaggedFunding      *bool    `json:"use_lagged_funding,omitempty"`
}

// Apply overlays the set fields onto base and returns the result.
func (o *ConfigOverrides) Apply(base backtest.Config) backtest.Config {
	if o == nil {
		return base
	}
	out := base
	if o.InitialCash != nil {
		out.InitialCash = *o.InitialCash
	}
	if o.EntryFundingThreshold != nil {
		out.EntryFundingThreshold = *o.EntryFundingThreshold
	}
	if o.ExitFundingThreshold != nil {
		out.ExitFundingThreshold = *o.ExitFundingThreshold
	}
	if o.EntryBasisThreshold != nil {
		out.EntryBasisThreshold = *o.EntryBasisThreshold
	}
	if o.ExitBasisThreshold != nil {
		out.ExitBasisThreshold = *o.ExitBasisThreshold
	}
	if o.SpotFeeRate != nil {
		out.SpotFeeRate = *o.SpotFeeRate
	}
	if o.PerpFeeRate != nil {
		out.PerpFeeRate = *o.PerpFeeRate
	}
	if o.FundingFeeRate != nil {
		out.FundingFeeRate = *o.FundingFeeRate
	}
	if o.EnableTwoSidedEntry != nil {
		out.EnableTwoSidedEntry = *o.EnableTwoSidedEntry
	}
	if o.FundingOnCash != nil {
		out.FundingOnCash = *o.FundingOnCash
	}
	if o.UseLaggedFunding != nil {
		out.UseLaggedFunding = *o.UseLaggedFunding
	}
	return out
}

// BacktestOptions contains optional run parameters.
type BacktestOptions struct {
	LimitSnapshots int  `json:"limit_snapshots,omitempty"` // 0 = all
	IncludeLedger  bool `json:"include_ledger,omitempty"`  // default: false
}

// SweepRequest is the body for POST /api/v1/sweep: one series, a base
// configuration, and the entry/exit funding threshold grid to scan.
type SweepRequest struct {
	Snapshots []model.MarketSnapshot `json:"snapshots" binding:"required"`
	Preset    string                 `json:"preset,omitempty"`
	Config    *ConfigOverrides       `json:"config,omitempty"`

	EntryFundingThresholds []float64 `json:"entry_funding_thresholds" binding:"required"`
	ExitFundingThresholds  []float64 `json:"exit_funding_thresholds" binding:"required"`
	Workers                int       `json:"workers,omitempty"`
	Top                    int       `json:"top,omitempty"` // 0 = all, ranked by yield
}
