package config

import "github.com/sirupsen/logrus"

// NewLogger builds a logrus logger from the logging section. Unknown
// levels fall back to info rather than failing the run.
func NewLogger(cfg LoggingConfig) *logrus.Logger {
	log := logrus.New()

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
