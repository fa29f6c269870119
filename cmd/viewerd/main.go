// Package main is the entry point for the venue viewer daemon.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/venueview/internal/api"
	"github.com/Faultbox/venueview/internal/config"
	"github.com/Faultbox/venueview/internal/logger"
	"github.com/Faultbox/venueview/internal/prefs"
	"github.com/Faultbox/venueview/internal/scene"
	"github.com/Faultbox/venueview/internal/venue"
	"github.com/Faultbox/venueview/internal/view"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== VenueView ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	prefStore, err := newPrefStore(cfg)
	if err != nil {
		logger.Error("failed to create preference store", zap.Error(err))
		os.Exit(1)
	}
	defer prefStore.Close()

	// The in-memory engine stands in for the real scene engine; the core
	// only talks to the scene.Engine contract either way.
	engine := scene.NewMemoryEngine()
	loader := venue.NewLoader(cfg.Data.Source, cfg.Data.FetchTimeout, engine)

	ctrl := view.NewController(engine, loader, prefStore, cfg.Viewer, cfg.Prefs.TTL)
	defer ctrl.Close()

	ctrl.RestoreSession(context.Background())

	server := api.NewServer(ctrl, cfg.Server.Addr)
	if err := server.Run(); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}

// newPrefStore picks the preference backend from config.
func newPrefStore(cfg *config.Config) (prefs.Store, error) {
	switch cfg.Prefs.Backend {
	case "redis":
		return prefs.NewRedis(context.Background(), cfg.Prefs.RedisAddr, cfg.Prefs.RedisDB)
	case "memory", "":
		return prefs.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown prefs backend %q", cfg.Prefs.Backend)
	}
}
