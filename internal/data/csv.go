package data

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"basis-backtest/internal/model"
)

// Snapshot CSV layout, shared by the fetch and backtest commands:
// fundingTime,symbol,fundingRate,markPrice,spotPrice. A blank spotPrice
// marks a gap in the spot feed.
var seriesHeader = []string{"fundingTime", "symbol", "fundingRate", "markPrice", "spotPrice"}

const seriesTimeLayout = "2006-01-02 15:04:05"

var seriesTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05.999999",
	seriesTimeLayout,
}

// ReadSeriesCSV loads a snapshot series from path. It returns the series
// and the symbol column of the first row (empty when absent).
func ReadSeriesCSV(path string) (model.Series, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, "", fmt.Errorf("read %s: empty file", path)
	}
	if len(rows[0]) < len(seriesHeader) {
		return nil, "", fmt.Errorf("read %s: expected %d columns, got %d", path, len(seriesHeader), len(rows[0]))
	}

	symbol := ""
	series := make(model.Series, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ts, err := parseSeriesTime(row[0])
		if err != nil {
			return nil, "", fmt.Errorf("read %s: row %d: %w", path, i+1, err)
		}
		rate, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: row %d: bad funding rate %q", path, i+1, row[2])
		}
		mark := 0.0
		if row[3] != "" {
			mark, err = strconv.ParseFloat(row[3], 64)
			if err != nil {
				return nil, "", fmt.Errorf("read %s: row %d: bad mark price %q", path, i+1, row[3])
			}
		}
		// A blank spot column is a feed gap; NaN is the missing marker so
		// that an explicit zero stays distinguishable as bad data.
		spot := math.NaN()
		if row[4] != "" {
			spot, err = strconv.ParseFloat(row[4], 64)
			if err != nil {
				return nil, "", fmt.Errorf("read %s: row %d: bad spot price %q", path, i+1, row[4])
			}
		}
		if symbol == "" {
			symbol = row[1]
		}
		series = append(series, model.MarketSnapshot{
			Timestamp:   ts,
			FundingRate: rate,
			SpotPrice:   spot,
			MarkPrice:   mark,
		})
	}
	return series, symbol, nil
}

// WriteSeriesCSV persists a snapshot series to path in the shared layout.
func WriteSeriesCSV(path, symbol string, series model.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(seriesHeader); err != nil {
		return err
	}
	for _, s := range series {
		spot := ""
		if s.HasSpot() {
			spot = strconv.FormatFloat(s.SpotPrice, 'f', -1, 64)
		}
		mark := ""
		if s.MarkPrice != 0 {
			mark = strconv.FormatFloat(s.MarkPrice, 'f', -1, 64)
		}
		row := []string{
			s.Timestamp.UTC().Format(seriesTimeLayout),
			symbol,
			strconv.FormatFloat(s.FundingRate, 'g', -1, 64),
			mark,
			spot,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func parseSeriesTime(s string) (time.Time, error) {
	for _, layout := range seriesTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}
