package data

import (
	"math"
	"time"

	"basis-backtest/internal/model"
)

// BuildSeries joins spot and mark kline closes onto funding timestamps
// using the nearest kline at or before each funding time (a backward
// as-of join). Funding records must be ascending; klines must be
// ascending by open time. Spot with no preceding kline is NaN, the
// missing marker; missing mark is left at zero and the row stays
// unpriceable either way.
func BuildSeries(funding []FundingRate, spot, mark []Kline) model.Series {
	series := make(model.Series, 0, len(funding))
	var si, mi int
	for _, f := range funding {
		snap := model.MarketSnapshot{
			Timestamp:   f.Time,
			FundingRate: f.Rate,
			SpotPrice:   math.NaN(),
		}
		if px, ok := asofClose(spot, f.Time, &si); ok {
			snap.SpotPrice = px
		}
		if px, ok := asofClose(mark, f.Time, &mi); ok {
			snap.MarkPrice = px
		}
		series = append(series, snap)
	}
	return series
}

// asofClose returns the close of the last kline opening at or before t.
// idx is a cursor carried across calls so a full join stays linear.
func asofClose(klines []Kline, t time.Time, idx *int) (float64, bool) {
	if len(klines) == 0 {
		return 0, false
	}
	for *idx+1 < len(klines) && !klines[*idx+1].OpenTime.After(t) {
		*idx++
	}
	if klines[*idx].OpenTime.After(t) {
		return 0, false
	}
	return klines[*idx].Close, true
}
