package main

import (
	"flag"
	"fmt"
	"os"

	"basis-backtest/internal/api/handlers"
	"basis-backtest/internal/api/middleware"
	"basis-backtest/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config")
	flag.Parse()

	// A missing .env is fine; environment still wins over file values.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.Logging)

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler())

	backtestHandler := handlers.NewBacktestHandler(log)
	presetHandler := handlers.NewPresetHandler()
	sweepHandler := handlers.NewSweepHandler(log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/backtest", backtestHandler.RunBacktest)
		api.POST("/sweep", sweepHandler.RunSweep)
		api.GET("/presets", presetHandler.ListPresets)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.WithField("addr", addr).Info("starting API server")
	if err := router.Run(addr); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
