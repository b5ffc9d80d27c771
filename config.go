package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

const (
	defaultRows   = 10
	defaultCols   = 6
	defaultRegion = "europe-west1"
	defaultModel  = "gemini-2.5-flash"
)

// Config holds the server settings.
type Config struct {
	Addr        string
	DefaultRows int
	DefaultCols int
	GCPProject  string
	GCPRegion   string
	GeminiModel string
	LogLevel    string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// configFromEnv reads the environment. Flags override it afterwards.
func configFromEnv() Config {
	return Config{
		Addr:        ":" + envOr("PORT", "8080"),
		DefaultRows: defaultRows,
		DefaultCols: defaultCols,
		GCPProject:  os.Getenv("GCP_PROJECT_ID"),
		GCPRegion:   envOr("GCP_REGION", defaultRegion),
		GeminiModel: envOr("GEMINI_MODEL", defaultModel),
		LogLevel:    envOr("SUMGRID_LOG_LEVEL", "info"),
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if err := checkSize(c.DefaultRows, c.DefaultCols); err != nil {
		return fmt.Errorf("default size: %w", err)
	}
	if c.GCPProject != "" && c.GeminiModel == "" {
		return fmt.Errorf("gemini model is empty")
	}
	if c.Addr == "" {
		return fmt.Errorf("listen address is empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}
