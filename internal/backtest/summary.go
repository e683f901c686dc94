package backtest

import (
	"math"
	"time"

	"basis-backtest/internal/model"
)

// Summary is the scalar outcome of a run.
type Summary struct {
	StartCash float64 `json:"start_cash"`
	EndCash   float64 `json:"end_cash"`

	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	DurationDays float64   `json:"duration_days"`

	TotalPnl float64 `json:"total_pnl"`
	Trades   int     `json:"trades"` // closed round trips

	// AnnualizedYield is (end/start)^(365/days) - 1, compounded to a
	// 365-day year. It is only meaningful when YieldDefined is true;
	// degenerate runs (empty series, zero duration, non-positive cash)
	// leave it zero rather than letting a NaN escape.
	AnnualizedYield float64 `json:"annualized_yield"`
	YieldDefined    bool    `json:"yield_defined"`
}

// Summarize is a pure function of the ledger and the starting cash.
func Summarize(ledger []LedgerRow, startCash float64) Summary {
	s := Summary{StartCash: startCash, EndCash: startCash}
	if len(ledger) == 0 {
		return s
	}

	first := ledger[0]
	last := ledger[len(ledger)-1]
	s.Start = first.Timestamp
	s.End = last.Timestamp
	s.DurationDays = last.Timestamp.Sub(first.Timestamp).Hours() / 24
	s.EndCash = last.Cash
	s.TotalPnl = last.CumPnl
	for _, r := range ledger {
		if r.Action == model.ActionClose {
			s.Trades++
		}
	}

	if s.DurationDays > 0 && startCash > 0 && s.EndCash > 0 {
		s.AnnualizedYield = math.Pow(s.EndCash/startCash, 365/s.DurationDays) - 1
		s.YieldDefined = true
	}
	return s
}
