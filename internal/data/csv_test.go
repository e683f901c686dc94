package data

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"basis-backtest/internal/model"
)

func TestSeriesCSV_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "series.csv")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := model.Series{
		{Timestamp: base, FundingRate: 0.0001, SpotPrice: 30000.5, MarkPrice: 30050.25},
		{Timestamp: base.Add(8 * time.Hour), FundingRate: -0.0002, SpotPrice: math.NaN(), MarkPrice: 30040},
	}

	if err := WriteSeriesCSV(path, "BTCUSD_PERP", in); err != nil {
		t.Fatalf("WriteSeriesCSV: %v", err)
	}
	out, symbol, err := ReadSeriesCSV(path)
	if err != nil {
		t.Fatalf("ReadSeriesCSV: %v", err)
	}

	if symbol != "BTCUSD_PERP" {
		t.Errorf("symbol = %q, want BTCUSD_PERP", symbol)
	}
	if len(out) != len(in) {
		t.Fatalf("rows = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].Timestamp.Equal(in[i].Timestamp) {
			t.Errorf("row %d timestamp = %v, want %v", i, out[i].Timestamp, in[i].Timestamp)
		}
		if out[i].FundingRate != in[i].FundingRate {
			t.Errorf("row %d rate = %v, want %v", i, out[i].FundingRate, in[i].FundingRate)
		}
		if out[i].HasSpot() != in[i].HasSpot() {
			t.Errorf("row %d spot presence = %v, want %v", i, out[i].HasSpot(), in[i].HasSpot())
		}
		if in[i].HasSpot() && out[i].SpotPrice != in[i].SpotPrice {
			t.Errorf("row %d spot = %v, want %v", i, out[i].SpotPrice, in[i].SpotPrice)
		}
		if out[i].MarkPrice != in[i].MarkPrice {
			t.Errorf("row %d mark = %v, want %v", i, out[i].MarkPrice, in[i].MarkPrice)
		}
	}
	// The gap survives the round trip as a missing value.
	if out[1].HasSpot() {
		t.Error("missing spot came back as a value")
	}
}

func TestReadSeriesCSV_PythonTimestamps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "series.csv")

	content := "fundingTime,symbol,fundingRate,markPrice,spotPrice\n" +
		"2024-01-01 08:00:00.000000,BTCUSD_PERP,0.0001,30050.0,30000.0\n"
	if err := writeFile(path, content); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	series, _, err := ReadSeriesCSV(path)
	if err != nil {
		t.Fatalf("ReadSeriesCSV: %v", err)
	}
	want := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	if !series[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", series[0].Timestamp, want)
	}
}

// A blank spot column is a gap; an explicit zero is kept as an observed
// (but invalid) price.
func TestReadSeriesCSV_BlankVersusZeroSpot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "series.csv")

	content := "fundingTime,symbol,fundingRate,markPrice,spotPrice\n" +
		"2024-01-01 00:00:00,BTCUSD_PERP,0.0001,30050.0,\n" +
		"2024-01-01 08:00:00,BTCUSD_PERP,0.0001,30050.0,0\n"
	if err := writeFile(path, content); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	series, _, err := ReadSeriesCSV(path)
	if err != nil {
		t.Fatalf("ReadSeriesCSV: %v", err)
	}
	if series[0].HasSpot() {
		t.Error("blank spot should read back as missing")
	}
	if !series[1].HasSpot() || series[1].SpotPrice != 0 {
		t.Errorf("zero spot should read back as observed 0, got %v", series[1].SpotPrice)
	}
}

func TestReadSeriesCSV_Faults(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"short header", "fundingTime,symbol\n"},
		{"bad rate", "fundingTime,symbol,fundingRate,markPrice,spotPrice\n2024-01-01 08:00:00,X,abc,1,1\n"},
		{"bad timestamp", "fundingTime,symbol,fundingRate,markPrice,spotPrice\nnope,X,0.1,1,1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".csv")
			if err := writeFile(path, tc.content); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			if _, _, err := ReadSeriesCSV(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
