package backtest

import (
	"math"
	"time"

	"basis-backtest/internal/model"
)

// Engine runs a cash-and-carry backtest over an aligned snapshot series.
// It is a two-state machine, FLAT or holding exactly one position, with
// no clock, no randomness and no I/O: the same series and config always
// produce the same ledger.
type Engine struct{}

func New() *Engine { return &Engine{} }

// state is the per-run mutable core. A nil pos means FLAT.
type state struct {
	cash   float64
	pos    *model.Position
	cumPnl float64
}

// Run executes one deterministic pass over the series.
//
// Per snapshot: resolve prices (spot falls back to mark), then either
// evaluate the exit and accrue funding while in a position, or evaluate
// the entry while flat. A snapshot whose resolved prices are not strictly
// positive and finite never mutates state; it passes through as a "none"
// row. Run fails before emitting anything if the config is invalid or the
// series is not time-ascending. A position still open when the series
// ends is left open.
func (e *Engine) Run(series model.Series, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, &ConfigError{Field: "series", Msg: err.Error()}
	}

	st := state{cash: cfg.InitialCash}
	ledger := make([]LedgerRow, 0, len(series))

	var prevRate float64
	havePrev := false

	for i, snap := range series {
		row := LedgerRow{
			Index:       i,
			Timestamp:   snap.Timestamp,
			FundingRate: snap.FundingRate,
			Action:      model.ActionNone,
		}

		spot, mark, ok := resolvePrices(snap)
		row.Spot, row.Mark = spot, mark
		if !ok {
			// Data-quality fault: skip without touching state.
			row.Cash = st.cash
			row.CumPnl = st.cumPnl
			ledger = append(ledger, row)
			continue
		}
		basisPct := mark/spot - 1
		row.BasisPct = basisPct

		accrualRate := snap.FundingRate
		if cfg.UseLaggedFunding {
			accrualRate = 0
			if havePrev {
				accrualRate = prevRate
			}
		}

		if st.pos != nil {
			if shouldClose(cfg, st.pos.Direction, snap.FundingRate, basisPct) {
				closePosition(&st, &row, cfg, spot, mark)
			} else {
				accrueFunding(&st, &row, cfg, accrualRate, model.ActionFunding)
			}
		} else if dir, enter := entrySignal(cfg, snap.FundingRate, basisPct); enter {
			if openPosition(&st, &row, cfg, dir, spot, mark, snap.Timestamp) && !cfg.UseLaggedFunding {
				// A fresh position earns the funding settled on its own
				// opening cycle. Under lagged accrual the applicable rate
				// settled before the position existed, so the open step
				// accrues nothing.
				accrueFunding(&st, &row, cfg, accrualRate, model.ActionOpen)
			}
		}

		row.Cash = st.cash
		row.CumPnl = st.cumPnl
		ledger = append(ledger, row)
		prevRate = snap.FundingRate
		havePrev = true
	}

	return &Result{
		Ledger:  ledger,
		Summary: Summarize(ledger, cfg.InitialCash),
	}, nil
}

// resolvePrices substitutes the mark for a missing spot observation and
// rejects snapshots whose prices are observed but unusable. A zero or
// negative spot is bad data, not a gap, so it gets no substitution.
func resolvePrices(snap model.MarketSnapshot) (spot, mark float64, ok bool) {
	mark = snap.MarkPrice
	spot = snap.SpotPrice
	if !snap.HasSpot() {
		spot = mark
	}
	return spot, mark, isPositiveFinite(spot) && isPositiveFinite(mark)
}

func isPositiveFinite(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}

// openPosition charges the entry fee on the allocated cash, sizes the
// hedge in perp terms and transitions to IN_POSITION. An entry that
// cannot afford its own fees, or that would produce a degenerate size,
// aborts as a no-op and the engine stays flat.
func openPosition(st *state, row *LedgerRow, cfg Config, dir model.Direction, spot, mark float64, at time.Time) bool {
	if st.cash <= 0 {
		return false
	}
	openFee := st.cash * (cfg.SpotFeeRate + cfg.PerpFeeRate)
	if openFee >= st.cash {
		return false
	}
	alloc := st.cash - openFee
	size := alloc / mark
	if !isPositiveFinite(size) {
		return false
	}

	st.cash = alloc
	st.cumPnl -= openFee
	st.pos = &model.Position{
		Direction: dir,
		EntrySpot: spot,
		EntryMark: mark,
		Size:      size,
		EntryCost: openFee,
		OpenedAt:  at,
	}

	row.Action = model.ActionOpen
	row.Direction = dir
	row.Fees += openFee
	return true
}

// accrueFunding settles one funding cycle into cash. The base is the
// frozen position notional unless the config opts into the cash base;
// the sign follows the direction, so the reverse trade collects when
// funding is negative.
func accrueFunding(st *state, row *LedgerRow, cfg Config, rate float64, action model.Action) {
	base := st.pos.Notional()
	if cfg.FundingOnCash {
		base = st.cash
	}
	gain := base * rate
	if st.pos.Direction == model.ShortSpotLongPerp {
		gain = -gain
	}
	fee := math.Abs(gain) * cfg.FundingFeeRate

	st.cash += gain - fee
	st.cumPnl += gain - fee

	row.Action = action
	row.Direction = st.pos.Direction
	row.FundingPnl = gain
	row.Fees += fee
}

// closePosition realizes the basis move against the frozen entry prices,
// charges the unwind fee and returns to FLAT. All P&L lands in cash; the
// position is discarded whole.
func closePosition(st *state, row *LedgerRow, cfg Config, spot, mark float64) {
	pos := st.pos
	st.pos = nil
	row.Action = model.ActionClose
	row.Direction = pos.Direction
	if pos.Size <= 0 {
		return
	}

	move := (spot - mark) - (pos.EntrySpot - pos.EntryMark)
	if pos.Direction == model.ShortSpotLongPerp {
		move = -move
	}
	basisPnl := pos.Size * move
	closeFee := pos.Size * mark * (cfg.SpotFeeRate + cfg.PerpFeeRate)

	st.cash += basisPnl - closeFee
	st.cumPnl += basisPnl - closeFee

	row.BasisPnl = basisPnl
	row.Fees += closeFee
}
