package analysis

import (
	"reflect"
	"testing"
	"time"

	"basis-backtest/internal/backtest"
	"basis-backtest/internal/model"
)

func sweepSeries() model.Series {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rates := []float64{0.0004, 0.0006, -0.0002, 0.0008, 0.0001, -0.0005, 0.0007, 0.0002}
	s := make(model.Series, len(rates))
	for i, r := range rates {
		s[i] = model.MarketSnapshot{
			Timestamp:   base.Add(time.Duration(i) * 8 * time.Hour),
			FundingRate: r,
			SpotPrice:   30000 + 40*float64(i),
			MarkPrice:   30030 + 38*float64(i),
		}
	}
	return s
}

func TestRunSweep_FullGrid(t *testing.T) {
	series := sweepSeries()
	p := SweepParams{
		EntryFundingThresholds: []float64{0, 0.0003, 0.0005},
		ExitFundingThresholds:  []float64{0, 0.0001},
		Workers:                3,
	}

	points, err := RunSweep(series, backtest.DefaultConfig(), p)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(points) != 6 {
		t.Fatalf("points = %d, want 6", len(points))
	}
	// Grid order: entry-major, exit-minor.
	if points[0].EntryFundingThreshold != 0 || points[0].ExitFundingThreshold != 0 {
		t.Errorf("point 0 = %+v, want entry 0 exit 0", points[0])
	}
	if points[5].EntryFundingThreshold != 0.0005 || points[5].ExitFundingThreshold != 0.0001 {
		t.Errorf("point 5 = %+v", points[5])
	}
}

func TestRunSweep_Deterministic(t *testing.T) {
	series := sweepSeries()
	p := SweepParams{
		EntryFundingThresholds: []float64{0, 0.0002, 0.0004, 0.0006},
		ExitFundingThresholds:  []float64{0, 0.0001, 0.0002},
		Workers:                4,
	}

	a, err := RunSweep(series, backtest.DefaultConfig(), p)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	b, err := RunSweep(series, backtest.DefaultConfig(), p)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("parallel sweeps over the same grid differ")
	}
}

func TestRunSweep_EmptyGrid(t *testing.T) {
	if _, err := RunSweep(sweepSeries(), backtest.DefaultConfig(), SweepParams{}); err == nil {
		t.Error("expected error for empty grid")
	}
}

func TestRunSweep_InvalidBaseConfig(t *testing.T) {
	cfg := backtest.DefaultConfig()
	cfg.InitialCash = 0
	p := SweepParams{
		EntryFundingThresholds: []float64{0},
		ExitFundingThresholds:  []float64{0},
	}
	if _, err := RunSweep(sweepSeries(), cfg, p); err == nil {
		t.Error("expected config error")
	}
}

func TestRankByYield(t *testing.T) {
	points := []SweepPoint{
		{EntryFundingThreshold: 1, Summary: backtest.Summary{AnnualizedYield: 0.05, YieldDefined: true}},
		{EntryFundingThreshold: 2, Summary: backtest.Summary{YieldDefined: false}},
		{EntryFundingThreshold: 3, Summary: backtest.Summary{AnnualizedYield: 0.20, YieldDefined: true}},
	}

	ranked := RankByYield(points)
	if ranked[0].EntryFundingThreshold != 3 {
		t.Errorf("best point entry = %v, want 3", ranked[0].EntryFundingThreshold)
	}
	if ranked[2].EntryFundingThreshold != 2 {
		t.Errorf("undefined yield should rank last, got entry %v", ranked[2].EntryFundingThreshold)
	}
	// Input order untouched.
	if points[0].EntryFundingThreshold != 1 {
		t.Error("RankByYield mutated its input")
	}
}
