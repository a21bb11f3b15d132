package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"restodash/cmd"
	"restodash/internal/config"
	"restodash/internal/logger"
)

func main() {
	// A missing .env is normal, the environment may be set otherwise
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// The logger falls back to its defaults so that configuration errors
	// are still reported by the command that needs the configuration
	logCfg := logger.DefaultConfig()
	if cfg, err := config.Load(); err == nil {
		logCfg = cfg.GetLoggerConfig()
	}
	if err := logger.Setup(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting restodash")

	cmd.Execute()
}
