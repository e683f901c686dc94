package backtest

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

func WriteLedgerCSV(path string, ledger []LedgerRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"index",
		"timestamp",
		"funding_rate",
		"spot_price",
		"mark_price",
		"basis_pct",
		"action",
		"direction",
		"funding_pnl",
		"basis_pnl",
		"fees",
		"cash",
		"cum_pnl",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range ledger {
		row := []string{
			strconv.Itoa(r.Index),
			fmtTime(r.Timestamp),
			fmtRate(r.FundingRate),
			fmtFloat(r.Spot),
			fmtFloat(r.Mark),
			fmtRate(r.BasisPct),
			string(r.Action),
			string(r.Direction),
			fmtFloat(r.FundingPnl),
			fmtFloat(r.BasisPnl),
			fmtFloat(r.Fees),
			fmtFloat(r.Cash),
			fmtFloat(r.CumPnl),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func WriteSummaryCSV(path string, s Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"start_cash",
		"end_cash",
		"start",
		"end",
		"duration_days",
		"total_pnl",
		"trades",
		"annualized_yield",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	yield := ""
	if s.YieldDefined {
		yield = fmtRate(s.AnnualizedYield)
	}
	row := []string{
		fmtFloat(s.StartCash),
		fmtFloat(s.EndCash),
		fmtTime(s.Start),
		fmtTime(s.End),
		fmtFloat(s.DurationDays),
		fmtFloat(s.TotalPnl),
		strconv.Itoa(s.Trades),
		yield,
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

// fmtRate keeps full precision for small fractional quantities such as
// funding rates and basis percentages.
func fmtRate(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
