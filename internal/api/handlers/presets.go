package handlers

import (
	"net/http"

	"basis-backtest/internal/api/models"
	"basis-backtest/internal/backtest"

	"github.com/gin-gonic/gin"
)

// PresetHandler handles preset-related requests
type PresetHandler struct{}

// NewPresetHandler creates a new preset handler
func NewPresetHandler() *PresetHandler {
	return &PresetHandler{}
}

// ListPresets handles GET /api/v1/presets
func (h *PresetHandler) ListPresets(c *gin.Context) {
	names := backtest.PresetNames()
	presets := make([]models.PresetInfo, 0, len(names))
	for _, name := range names {
		cfg, err := backtest.Preset(name)
		if err != nil {
			continue
		}
		presets = append(presets, models.NewPresetInfo(name, cfg))
	}
	c.JSON(http.StatusOK, models.PresetsResponse{Presets: presets})
}
