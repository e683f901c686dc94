package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"basis-backtest/internal/api/models"
	"basis-backtest/internal/backtest"
	"basis-backtest/internal/data"
	"basis-backtest/internal/model"

	"github.com/gin-gonic/gin"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	bh := NewBacktestHandler(nil)
	sh := NewSweepHandler(nil)
	ph := NewPresetHandler()
	r.POST("/backtest", bh.RunBacktest)
	r.POST("/sweep", sh.RunSweep)
	r.GET("/presets", ph.ListPresets)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleSnapshots() []map[string]any {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]map[string]any, 0, 4)
	for i, rate := range []float64{0.001, 0.001, -0.001, -0.001} {
		rows = append(rows, map[string]any{
			"timestamp":    base.Add(time.Duration(i) * 8 * time.Hour).Format(time.RFC3339),
			"funding_rate": rate,
			"spot_price":   100.0,
			"mark_price":   100.0,
		})
	}
	return rows
}

func TestRunBacktest_Completed(t *testing.T) {
	r := newTestRouter()

	w := postJSON(t, r, "/backtest", map[string]any{
		"snapshots": sampleSnapshots(),
		"preset":    "legacy",
		"options":   map[string]any{"include_ledger": true},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp models.BacktestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "completed" {
		t.Errorf("status = %q", resp.Status)
	}
	if len(resp.Ledger) != 4 {
		t.Errorf("ledger rows = %d, want 4", len(resp.Ledger))
	}
	if resp.Summary.Trades != 1 {
		t.Errorf("trades = %d, want 1", resp.Summary.Trades)
	}
	// Frictionless cash-base run: two positive cycles compound.
	want := 1000 * 1.001 * 1.001
	if diff := resp.Summary.EndCash - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("end cash = %v, want %v", resp.Summary.EndCash, want)
	}
}

func TestRunBacktest_LedgerOmittedByDefault(t *testing.T) {
	r := newTestRouter()

	w := postJSON(t, r, "/backtest", map[string]any{
		"snapshots": sampleSnapshots(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.BacktestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Ledger != nil {
		t.Errorf("ledger should be omitted, got %d rows", len(resp.Ledger))
	}
}

func TestRunBacktest_BadConfigAndSeries(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		name string
		body map[string]any
		code string
	}{
		{
			name: "unknown preset",
			body: map[string]any{"snapshots": sampleSnapshots(), "preset": "nope"},
			code: "INVALID_CONFIG",
		},
		{
			name: "negative cash override",
			body: map[string]any{
				"snapshots": sampleSnapshots(),
				"config":    map[string]any{"initial_cash": -1},
			},
			code: "INVALID_CONFIG",
		},
		{
			name: "missing snapshots",
			body: map[string]any{"preset": "legacy"},
			code: "INVALID_REQUEST",
		},
		{
			name: "non-ascending series",
			body: map[string]any{
				"snapshots": []map[string]any{
					{"timestamp": "2024-03-02T00:00:00Z", "funding_rate": 0.001, "spot_price": 100, "mark_price": 100},
					{"timestamp": "2024-03-01T00:00:00Z", "funding_rate": 0.001, "spot_price": 100, "mark_price": 100},
				},
			},
			code: "INVALID_SERIES",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, r, "/backtest", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			var resp models.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if resp.Error.Code != tc.code {
				t.Errorf("code = %q, want %q", resp.Error.Code, tc.code)
			}
		})
	}
}

func TestRunBacktest_OverridesApplied(t *testing.T) {
	r := newTestRouter()

	// Raise the entry threshold above every rate in the series; the run
	// must stay flat end to end.
	w := postJSON(t, r, "/backtest", map[string]any{
		"snapshots": sampleSnapshots(),
		"preset":    "legacy",
		"config":    map[string]any{"entry_funding_threshold": 0.01},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.BacktestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary.Trades != 0 {
		t.Errorf("trades = %d, want 0", resp.Summary.Trades)
	}
	if resp.Summary.EndCash != 1000 {
		t.Errorf("end cash = %v, want 1000", resp.Summary.EndCash)
	}
}

func TestRunBacktest_CSVPathInput(t *testing.T) {
	r := newTestRouter()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	series := model.Series{
		{Timestamp: base, FundingRate: 0.001, SpotPrice: 100, MarkPrice: 100},
		{Timestamp: base.Add(8 * time.Hour), FundingRate: -0.001, SpotPrice: 100, MarkPrice: 100},
	}
	path := filepath.Join(t.TempDir(), "series.csv")
	if err := data.WriteSeriesCSV(path, "BTCUSD_PERP", series); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	w := postJSON(t, r, "/backtest", map[string]any{
		"csv_path": path,
		"preset":   "legacy",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.BacktestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary.Trades != 1 {
		t.Errorf("trades = %d, want 1", resp.Summary.Trades)
	}
}

func TestRunSweep_RankedResults(t *testing.T) {
	r := newTestRouter()

	w := postJSON(t, r, "/sweep", map[string]any{
		"snapshots":                sampleSnapshots(),
		"preset":                   "legacy",
		"entry_funding_thresholds": []float64{0, 0.01},
		"exit_funding_thresholds":  []float64{0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.SweepResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	// The permissive entry threshold trades and earns; it must outrank
	// the cell that never enters.
	if resp.Results[0].EntryFundingThreshold != 0 {
		t.Errorf("top cell entry = %v, want 0", resp.Results[0].EntryFundingThreshold)
	}
}

func TestListPresets(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/presets", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp models.PresetsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Presets) != len(backtest.PresetNames()) {
		t.Fatalf("presets = %d, want %d", len(resp.Presets), len(backtest.PresetNames()))
	}
	byName := make(map[string]models.PresetInfo, len(resp.Presets))
	for _, p := range resp.Presets {
		byName[p.Name] = p
	}
	def, ok := byName["default"]
	if !ok {
		t.Fatal("default preset missing")
	}
	if def.Config.EntryBasisThreshold != nil {
		t.Errorf("default entry basis gate should be omitted, got %v", *def.Config.EntryBasisThreshold)
	}
	gated, ok := byName["basis_gated"]
	if !ok {
		t.Fatal("basis_gated preset missing")
	}
	if gated.Config.EntryBasisThreshold == nil {
		t.Error("basis_gated entry basis gate should be present")
	}
}
