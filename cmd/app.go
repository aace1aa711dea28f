package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"kv-reconciler/core/config"
	"kv-reconciler/core/logger"
	"kv-reconciler/core/metrics"
	"kv-reconciler/feature/kv"

	"go.uber.org/zap"
)

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *kv.Service
}

func newApp(rec metrics.Recorder) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	reg, err := kv.NewRegistry(cfg.Backends(), cfg.Reconcile.DisabledProviders)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  l,
		service: kv.NewService(reg, cfg.Reconcile, l, rec),
	}, nil
}

// close releases provider connections and flushes the logger.
func (a *app) close() {
	if err := a.service.Close(); err != nil {
		a.logger.Warn("Failed to release provider connections", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
