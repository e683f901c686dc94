package analysis

import (
	"fmt"
	"sort"
	"sync"

	"basis-backtest/internal/backtest"
	"basis-backtest/internal/model"
)

// SweepPoint is one grid cell of a threshold sweep: the thresholds tried
// and the summary they produced.
type SweepPoint struct {
	EntryFundingThreshold float64          `json:"entry_funding_threshold"`
	ExitFundingThreshold  float64          `json:"exit_funding_threshold"`
	Summary               backtest.Summary `json:"summary"`
}

// SweepParams defines the threshold grid. Workers bounds the number of
// concurrent runs; zero means one run per grid cell up to 4.
type SweepParams struct {
	EntryFundingThresholds []float64 `json:"entry_funding_thresholds"`
	ExitFundingThresholds  []float64 `json:"exit_funding_thresholds"`
	Workers                int       `json:"workers,omitempty"`
}

// RunSweep backtests every entry/exit threshold combination against the
// same series. Each grid cell gets its own engine run over an
// independent config; runs share nothing mutable, so they proceed in
// parallel. Results come back in deterministic grid order regardless of
// scheduling.
func RunSweep(series model.Series, base backtest.Config, p SweepParams) ([]SweepPoint, error) {
	if len(p.EntryFundingThresholds) == 0 || len(p.ExitFundingThresholds) == 0 {
		return nil, fmt.Errorf("sweep: empty threshold grid")
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	type cell struct {
		idx   int
		entry float64
		exit  float64
	}
	cells := make([]cell, 0, len(p.EntryFundingThresholds)*len(p.ExitFundingThresholds))
	for _, entry := range p.EntryFundingThresholds {
		for _, exit := range p.ExitFundingThresholds {
			cells = append(cells, cell{idx: len(cells), entry: entry, exit: exit})
		}
	}

	workers := p.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(cells) {
		workers = len(cells)
	}

	points := make([]SweepPoint, len(cells))
	errs := make([]error, len(cells))
	jobs := make(chan cell)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				cfg := base
				cfg.EntryFundingThreshold = c.entry
				cfg.ExitFundingThreshold = c.exit
				res, err := backtest.New().Run(series, cfg)
				if err != nil {
					errs[c.idx] = err
					continue
				}
				points[c.idx] = SweepPoint{
					EntryFundingThreshold: c.entry,
					ExitFundingThreshold:  c.exit,
					Summary:               res.Summary,
				}
			}
		}()
	}
	for _, c := range cells {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return points, nil
}

// RankByYield sorts sweep points descending by annualized yield.
// Undefined yields sink to the bottom; ties keep grid order.
func RankByYield(points []SweepPoint) []SweepPoint {
	out := make([]SweepPoint, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Summary, out[j].Summary
		if a.YieldDefined != b.YieldDefined {
			return a.YieldDefined
		}
		return a.AnnualizedYield > b.AnnualizedYield
	})
	return out
}
