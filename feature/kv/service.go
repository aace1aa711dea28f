package kv

import (
	"context"
	"io"
	"strings"
	"time"

	"kv-reconciler/core/metrics"
	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"

	"go.uber.org/zap"
)

// Service resolves providers and runs the reconcile engine for requests.
type Service struct {
	registry *registry.Registry
	cfg      Config
	logger   *zap.Logger
	metrics  metrics.Recorder
}

// NewService creates a new kv service. Nil logger and recorder are replaced with no-ops.
func NewService(reg *registry.Registry, cfg Config, logger *zap.Logger, rec metrics.Recorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = reconcile.DefaultMaxAttempts
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Service{registry: reg, cfg: cfg, logger: logger, metrics: rec}
}

// Providers lists the registered providers.
func (s *Service) Providers() []registry.Info {
	return s.registry.Providers()
}

// Reconcile validates req, resolves its provider and drives the key to the desired
// state within the request timeout. The Result is always populated; err is non-nil
// exactly when Result.Success is false.
func (s *Service) Reconcile(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	req = s.withDefaults(req)

	res := Result{
		State:    req.State,
		Provider: req.Provider,
		Key:      req.Key,
		Value:    req.Value,
		Delay:    req.Delay,
		DryRun:   req.DryRun,
		Action:   reconcile.ActionNone,
	}
	l := s.logger.With(
		zap.String("provider", req.Provider),
		zap.String("key", req.Key),
		zap.String("state", req.State),
	)

	finish := func(out reconcile.Outcome, err error) (Result, error) {
		res.Elapsed = time.Since(start).Seconds()
		res.Success = out.Success
		res.Changed = out.Changed
		res.Action = out.Action
		res.Attempts = out.Attempts
		result := "ok"
		if err != nil {
			res.Success = false
			res.err = err
			res.Failure = reconcile.KindOf(err)
			res.Msg = err.Error()
			result = string(res.Failure)
			l.Warn("Reconciliation failed", zap.String("failure", result), zap.Error(err))
		} else if res.Changed {
			l.Info("Key reconciled",
				zap.String("action", string(res.Action)),
				zap.Int("attempts", res.Attempts),
				zap.Bool("dry_run", req.DryRun),
			)
		} else {
			l.Debug("Key already in desired state")
		}
		s.metrics.ObserveReconcile(req.Provider, string(res.Action), result, res.Attempts, time.Since(start))
		return res, err
	}

	// Input defects are reported before any provider is constructed.
	desired, err := reconcile.Validate(reconcile.DesiredState{
		Key:      req.Key,
		Presence: reconcile.Presence(req.State),
		Value:    req.Value,
	})
	if err != nil {
		return finish(reconcile.Outcome{Failure: reconcile.KindOf(err)}, err)
	}
	res.State = string(desired.Presence)
	res.Value = desired.Value

	target := s.target(req)
	res.Host, res.Port = target.Host, target.Port
	backend, err := s.registry.Resolve(req.Provider, target)
	if err != nil {
		return finish(reconcile.Outcome{Failure: reconcile.KindOf(err)}, err)
	}
	if c, ok := backend.(io.Closer); ok {
		defer func() {
			if cerr := c.Close(); cerr != nil {
				l.Debug("Failed to close backend", zap.Error(cerr))
			}
		}()
	}

	if d := req.timeout(s.cfg.Timeout); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	engine := reconcile.NewEngine(reconcile.Options{MaxAttempts: req.MaxAttempts, DryRun: req.DryRun}, l)
	return finish(engine.Reconcile(ctx, backend, desired))
}

func (s *Service) withDefaults(req Request) Request {
	if strings.TrimSpace(req.Provider) == "" {
		req.Provider = s.cfg.Provider
	}
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if req.MaxAttempts < 1 {
		req.MaxAttempts = s.cfg.MaxAttempts
	}
	return req
}

// target picks the endpoint for req. Providers that own their endpoint only get
// one when the caller named a host; the reconcile host and port apply to the rest.
func (s *Service) target(req Request) registry.Target {
	t := registry.Target{Host: req.Host, Port: req.Port}
	p, ok := s.registry.Lookup(req.Provider)
	if ok && p.OwnsEndpoint && t.Host == "" {
		return registry.Target{}
	}

	if t.Host == "" {
		t.Host = s.cfg.Host
	}
	if t.Port == 0 {
		t.Port = s.cfg.Port
	}
	if ok && t.Port == 0 {
		t.Port = p.DefaultPort
	}
	return t
}

// Close releases connections the providers keep between calls.
func (s *Service) Close() error {
	return s.registry.Close()
}
