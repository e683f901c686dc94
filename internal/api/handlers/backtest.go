package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"basis-backtest/internal/api/models"
	"basis-backtest/internal/backtest"
	"basis-backtest/internal/data"
	"basis-backtest/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BacktestHandler handles backtest-related requests
type BacktestHandler struct {
	log logrus.FieldLogger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(log logrus.FieldLogger) *BacktestHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BacktestHandler{log: log}
}

// RunBacktest handles POST /api/v1/backtest
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req models.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	cfg, err := resolveConfig(req.Preset, req.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_CONFIG",
				Message: err.Error(),
			},
		})
		return
	}

	series, err := resolveSeries(req.Snapshots, req.CSVPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}
	if req.Options.LimitSnapshots > 0 && req.Options.LimitSnapshots < len(series) {
		series = series[:req.Options.LimitSnapshots]
	}

	result, err := backtest.New().Run(series, cfg)
	if err != nil {
		var cfgErr *backtest.ConfigError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    "INVALID_SERIES",
					Message: cfgErr.Error(),
					Details: map[string]interface{}{"field": cfgErr.Field},
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "BACKTEST_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	h.log.WithFields(logrus.Fields{
		"snapshots": len(series),
		"trades":    result.Summary.Trades,
		"end_cash":  result.Summary.EndCash,
	}).Info("backtest completed")

	resp := models.BacktestResponse{
		Status:  "completed",
		Summary: result.Summary,
	}
	if req.Options.IncludeLedger {
		resp.Ledger = result.Ledger
	}
	c.JSON(http.StatusOK, resp)
}

// resolveSeries picks the input series: inline snapshots when present,
// otherwise a server-side CSV.
func resolveSeries(snapshots []model.MarketSnapshot, csvPath string) (model.Series, error) {
	if len(snapshots) > 0 {
		return model.Series(snapshots), nil
	}
	if csvPath == "" {
		return nil, fmt.Errorf("either snapshots or csv_path is required")
	}
	series, _, err := data.ReadSeriesCSV(csvPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", csvPath, err)
	}
	return series, nil
}

// resolveConfig builds the engine configuration for a request: the
// named preset (or the default config) with any overrides applied.
func resolveConfig(preset string, overrides *models.ConfigOverrides) (backtest.Config, error) {
	base := backtest.DefaultConfig()
	if preset != "" {
		p, err := backtest.Preset(preset)
		if err != nil {
			return backtest.Config{}, err
		}
		base = p
	}
	cfg := overrides.Apply(base)
	if err := cfg.Validate(); err != nil {
		return backtest.Config{}, err
	}
	return cfg, nil
}
