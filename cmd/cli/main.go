package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"basis-backtest/internal/analysis"
	"basis-backtest/internal/backtest"
	"basis-backtest/internal/config"
	"basis-backtest/internal/data"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgPath    string
	presetName string

	cfg *config.Config
	log *logrus.Logger
)

func main() {
	root := &cobra.Command{
		Use:          "basisbt",
		Short:        "Spot-perp funding rate arbitrage backtester",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			if presetName != "" {
				cfg.Preset = presetName
			}
			log = config.NewLogger(cfg.Logging)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config")
	root.PersistentFlags().StringVar(&presetName, "preset", "", "Built-in engine preset (overrides config)")

	root.AddCommand(newBacktestCmd(), newFetchCmd(), newFillCmd(), newSweepCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newBacktestCmd() *cobra.Command {
	var (
		input      string
		out        string
		summaryOut string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the engine over a snapshot CSV and write the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			series, symbol, err := data.ReadSeriesCSV(input)
			if err != nil {
				return fmt.Errorf("read %s: %w", input, err)
			}
			if limit > 0 && limit < len(series) {
				series = series[:limit]
			}

			engineCfg, err := cfg.ResolveBacktest()
			if err != nil {
				return err
			}
			res, err := backtest.New().Run(series, engineCfg)
			if err != nil {
				return err
			}

			if err := writeCSV(out, res.Ledger, backtest.WriteLedgerCSV); err != nil {
				return err
			}
			if summaryOut != "" {
				if err := writeCSV(summaryOut, res.Summary, backtest.WriteSummaryCSV); err != nil {
					return err
				}
			}

			log.WithFields(logrus.Fields{
				"symbol":    symbol,
				"snapshots": len(series),
				"ledger":    out,
			}).Info("backtest complete")
			printSummary(res.Summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "data.csv", "Snapshot CSV path")
	cmd.Flags().StringVar(&out, "out", "results/ledger.csv", "Ledger CSV output path")
	cmd.Flags().StringVar(&summaryOut, "summary-out", "", "Optional summary CSV output path")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit to first N snapshots (0=all)")
	return cmd
}

func newFetchCmd() *cobra.Command {
	var (
		startStr string
		endStr   string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download funding, mark and spot history and write a snapshot CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", startStr)
			if err != nil {
				return fmt.Errorf("start must be YYYY-MM-DD: %w", err)
			}
			end, err := time.Parse("2006-01-02", endStr)
			if err != nil {
				return fmt.Errorf("end must be YYYY-MM-DD: %w", err)
			}

			ctx := cmd.Context()
			client := data.NewBinanceClient(log)

			funding, err := client.FundingHistory(ctx, cfg.Data.PerpSymbol, start, end)
			if err != nil {
				return fmt.Errorf("funding history: %w", err)
			}
			mark, err := client.Klines(ctx, data.MarkPriceMarket, cfg.Data.PerpSymbol, cfg.Data.Interval, start, end)
			if err != nil {
				return fmt.Errorf("mark klines: %w", err)
			}
			spot, err := client.Klines(ctx, data.SpotMarket, cfg.Data.SpotSymbol, cfg.Data.Interval, start, end)
			if err != nil {
				return fmt.Errorf("spot klines: %w", err)
			}

			series := data.BuildSeries(funding, spot, mark)
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := data.WriteSeriesCSV(out, cfg.Data.PerpSymbol, series); err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"funding_cycles": len(funding),
				"snapshots":      len(series),
				"out":            out,
			}).Info("fetch complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&startStr, "start", "", "Window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "Window end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&out, "out", "data.csv", "Snapshot CSV output path")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newFillCmd() *cobra.Command {
	var (
		input string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Backfill missing spot prices in a snapshot CSV from 1s klines",
		RunE: func(cmd *cobra.Command, args []string) error {
			series, symbol, err := data.ReadSeriesCSV(input)
			if err != nil {
				return fmt.Errorf("read %s: %w", input, err)
			}

			client := data.NewBinanceClient(log)
			filled, err := client.FillMissingSpot(cmd.Context(), cfg.Data.SpotSymbol, series)
			if err != nil {
				return err
			}

			if out == "" {
				out = input
			}
			if err := data.WriteSeriesCSV(out, symbol, series); err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"filled": filled,
				"out":    out,
			}).Info("fill complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "data.csv", "Snapshot CSV path")
	cmd.Flags().StringVar(&out, "out", "", "Output path (default: overwrite input)")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var (
		input   string
		entries []float64
		exits   []float64
		workers int
		top     int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Scan an entry/exit threshold grid and rank by annualized yield",
		RunE: func(cmd *cobra.Command, args []string) error {
			series, _, err := data.ReadSeriesCSV(input)
			if err != nil {
				return fmt.Errorf("read %s: %w", input, err)
			}

			base, err := cfg.ResolveBacktest()
			if err != nil {
				return err
			}
			points, err := analysis.RunSweep(series, base, analysis.SweepParams{
				EntryFundingThresholds: entries,
				ExitFundingThresholds:  exits,
				Workers:                workers,
			})
			if err != nil {
				return err
			}

			ranked := analysis.RankByYield(points)
			if top > 0 && top < len(ranked) {
				ranked = ranked[:top]
			}

			fmt.Printf("%-4s %-12s %-12s %-8s %-12s %-10s\n", "rank", "entry", "exit", "trades", "end_cash", "apy")
			for i, p := range ranked {
				apy := "n/a"
				if p.Summary.YieldDefined {
					apy = fmt.Sprintf("%.4f", p.Summary.AnnualizedYield)
				}
				fmt.Printf("%-4d %-12g %-12g %-8d %-12.2f %-10s\n",
					i+1,
					p.EntryFundingThreshold,
					p.ExitFundingThreshold,
					p.Summary.Trades,
					p.Summary.EndCash,
					apy,
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "data.csv", "Snapshot CSV path")
	cmd.Flags().Float64SliceVar(&entries, "entry", []float64{0}, "Entry funding thresholds")
	cmd.Flags().Float64SliceVar(&exits, "exit", []float64{0}, "Exit funding thresholds")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent runs (0=auto)")
	cmd.Flags().IntVar(&top, "top", 0, "Show only the top N cells (0=all)")
	return cmd
}

func writeCSV[T any](path string, v T, write func(string, T) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return write(path, v)
}

func printSummary(s backtest.Summary) {
	fmt.Printf("Start cash: %.2f  End cash: %.2f  PnL: %.2f  Trades: %d\n",
		s.StartCash, s.EndCash, s.TotalPnl, s.Trades)
	if s.YieldDefined {
		fmt.Printf("Annualized yield: %.4f over %.1f days\n", s.AnnualizedYield, s.DurationDays)
	} else {
		fmt.Println("Annualized yield: undefined for this run")
	}
}
