package handlers

import (
	"net/http"

	"basis-backtest/internal/analysis"
	"basis-backtest/internal/api/models"
	"basis-backtest/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SweepHandler handles threshold sweep requests
type SweepHandler struct {
	log logrus.FieldLogger
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(log logrus.FieldLogger) *SweepHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SweepHandler{log: log}
}

// RunSweep handles POST /api/v1/sweep
func (h *SweepHandler) RunSweep(c *gin.Context) {
	var req models.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	base, err := resolveConfig(req.Preset, req.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_CONFIG",
				Message: err.Error(),
			},
		})
		return
	}

	points, err := analysis.RunSweep(model.Series(req.Snapshots), base, analysis.SweepParams{
		EntryFundingThresholds: req.EntryFundingThresholds,
		ExitFundingThresholds:  req.ExitFundingThresholds,
		Workers:                req.Workers,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "SWEEP_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	ranked := analysis.RankByYield(points)
	if req.Top > 0 && req.Top < len(ranked) {
		ranked = ranked[:req.Top]
	}

	h.log.WithFields(logrus.Fields{
		"grid_cells": len(points),
		"returned":   len(ranked),
	}).Info("sweep completed")

	c.JSON(http.StatusOK, models.SweepResponse{Results: ranked})
}
