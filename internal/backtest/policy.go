package backtest

import "basis-backtest/internal/model"

// entrySignal decides whether a flat engine should open, and in which
// direction. The carry trade fires on funding above the entry threshold
// with the basis gate satisfied; with two-sided entry enabled, the
// reverse trade fires on funding below the negated threshold when the
// perp trades below spot (the basis sign that makes the reverse hedge
// profitable).
func entrySignal(cfg Config, rate, basisPct float64) (model.Direction, bool) {
	if rate > cfg.EntryFundingThreshold && basisPct >= cfg.EntryBasisThreshold {
		return model.LongSpotShortPerp, true
	}
	if cfg.EnableTwoSidedEntry && rate < -cfg.EntryFundingThreshold && basisPct < 0 {
		return model.ShortSpotLongPerp, true
	}
	return "", false
}

// shouldClose is evaluated on every in-position snapshot, before any
// funding accrues for that step. The carry trade closes when funding
// reverts below the exit threshold or the basis compresses below the
// exit gate; the reverse trade mirrors both conditions.
func shouldClose(cfg Config, dir model.Direction, rate, basisPct float64) bool {
	if dir == model.ShortSpotLongPerp {
		return rate >= -cfg.ExitFundingThreshold || basisPct > -cfg.ExitBasisThreshold
	}
	return rate <= cfg.ExitFundingThreshold || basisPct < cfg.ExitBasisThreshold
}
