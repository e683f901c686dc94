package backtest

import (
	"fmt"
	"math"
)

// Config parameterizes a single engine run. The historical strategy
// variants are presets over this one struct, not separate code paths.
type Config struct {
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash" mapstructure:"initial_cash"`

	// Entry/exit policy. Funding thresholds are fractional per-cycle
	// rates; basis thresholds gate on mark/spot - 1. A basis threshold of
	// -Inf disables the gate.
	EntryFundingThreshold float64 `json:"entry_funding_threshold" yaml:"entry_funding_threshold" mapstructure:"entry_funding_threshold"`
	ExitFundingThreshold  float64 `json:"exit_funding_threshold" yaml:"exit_funding_threshold" mapstructure:"exit_funding_threshold"`
	EntryBasisThreshold   float64 `json:"entry_basis_threshold" yaml:"entry_basis_threshold" mapstructure:"entry_basis_threshold"`
	ExitBasisThreshold    float64 `json:"exit_basis_threshold" yaml:"exit_basis_threshold" mapstructure:"exit_basis_threshold"`

	// EnableTwoSidedEntry allows the reverse trade (short spot, long perp)
	// when funding is negative and the perp trades below spot.
	EnableTwoSidedEntry bool `json:"enable_two_sided_entry" yaml:"enable_two_sided_entry" mapstructure:"enable_two_sided_entry"`

	// Costs, as fractions of traded notional. FundingFeeRate is charged
	// on each funding receipt.
	SpotFeeRate    float64 `json:"spot_fee_rate" yaml:"spot_fee_rate" mapstructure:"spot_fee_rate"`
	PerpFeeRate    float64 `json:"perp_fee_rate" yaml:"perp_fee_rate" mapstructure:"perp_fee_rate"`
	FundingFeeRate float64 `json:"funding_fee_rate" yaml:"funding_fee_rate" mapstructure:"funding_fee_rate"`

	// Accrual conventions. FundingOnCash switches the accrual base from
	// the frozen position notional to the live cash balance; the frozen
	// notional is the default because a cash base lets realized P&L
	// compound into subsequent accruals. UseLaggedFunding applies the
	// previous cycle's rate instead of the current one.
	FundingOnCash    bool `json:"funding_on_cash" yaml:"funding_on_cash" mapstructure:"funding_on_cash"`
	UseLaggedFunding bool `json:"use_lagged_funding" yaml:"use_lagged_funding" mapstructure:"use_lagged_funding"`
}

// DefaultConfig returns the baseline run configuration: enter on any
// positive funding, exit on the first non-positive cycle, taker-ish fees,
// no basis gates.
func DefaultConfig() Config {
	return Config{
		InitialCash:           1000,
		EntryFundingThreshold: 0,
		ExitFundingThreshold:  0,
		EntryBasisThreshold:   math.Inf(-1),
		ExitBasisThreshold:    math.Inf(-1),
		SpotFeeRate:           0.001,
		PerpFeeRate:           0.0005,
	}
}

// PresetNames lists the recognized presets in display order.
func PresetNames() []string {
	return []string{"default", "legacy", "two_sided", "costed", "basis_gated"}
}

// Preset returns a named configuration. Each preset reproduces one of the
// strategy variants this engine replaced:
//
//	legacy: frictionless single-sided carry, funding accrued on the
//	live cash balance.
//	two_sided: legacy plus the reverse trade in negative-funding regimes.
//	costed: cash-base accrual with fees on entry, exit and funding,
//	applying the previous cycle's rate.
//	basis_gated: notional-base accrual with funding and basis gates on
//	both entry and exit.
func Preset(name string) (Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "legacy":
		c := DefaultConfig()
		c.SpotFeeRate = 0
		c.PerpFeeRate = 0
		c.FundingOnCash = true
		return c, nil
	case "two_sided":
		c, _ := Preset("legacy")
		c.EnableTwoSidedEntry = true
		return c, nil
	case "costed":
		c := DefaultConfig()
		c.FundingFeeRate = 0.0015
		c.FundingOnCash = true
		c.UseLaggedFunding = true
		return c, nil
	case "basis_gated":
		c := DefaultConfig()
		c.EntryFundingThreshold = 0.0001
		c.EntryBasisThreshold = 0.0015
		c.ExitBasisThreshold = 0.0005
		return c, nil
	default:
		return Config{}, fmt.Errorf("unknown preset %q", name)
	}
}

// ConfigError marks an invalid run configuration. It is fatal: Run fails
// before a single ledger row is produced.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Validate rejects configurations the engine must never silently coerce.
func (c Config) Validate() error {
	if !(c.InitialCash > 0) || math.IsInf(c.InitialCash, 0) {
		return &ConfigError{Field: "initial_cash", Msg: "must be positive and finite"}
	}
	if c.SpotFeeRate < 0 || math.IsNaN(c.SpotFeeRate) {
		return &ConfigError{Field: "spot_fee_rate", Msg: "must be non-negative"}
	}
	if c.PerpFeeRate < 0 || math.IsNaN(c.PerpFeeRate) {
		return &ConfigError{Field: "perp_fee_rate", Msg: "must be non-negative"}
	}
	if c.FundingFeeRate < 0 || math.IsNaN(c.FundingFeeRate) {
		return &ConfigError{Field: "funding_fee_rate", Msg: "must be non-negative"}
	}
	if math.IsNaN(c.EntryFundingThreshold) || math.IsNaN(c.ExitFundingThreshold) {
		return &ConfigError{Field: "funding_thresholds", Msg: "must not be NaN"}
	}
	if math.IsNaN(c.EntryBasisThreshold) || math.IsNaN(c.ExitBasisThreshold) {
		return &ConfigError{Field: "basis_thresholds", Msg: "must not be NaN"}
	}
	return nil
}
