// Package undertow assembles the editorial pipeline from configuration.
//
// Usage:
//
//	cfg, err := config.NewLoader().WithConfigPath("undertow.yaml").Load()
//	sys, err := undertow.Build(cfg, logger, undertow.WithHeuristicAgents())
//	defer sys.Close()
//
//	result := sys.Controller.Run(ctx, story, nil)
//
// Build wires the full stack: budget tracker, response cache, retryer, agent
// gateway, gate registry, orchestrator, escalation desk, persistence, and the
// pipeline controller. Every collaborator is injected; there are no globals
// beyond the default Prometheus registerer, which WithRegisterer overrides.
package undertow

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/100PercentTuna/the-undertow-sub000/agent"
	"github.com/100PercentTuna/the-undertow-sub000/budget"
	"github.com/100PercentTuna/the-undertow-sub000/cache"
	"github.com/100PercentTuna/the-undertow-sub000/config"
	"github.com/100PercentTuna/the-undertow-sub000/escalation"
	"github.com/100PercentTuna/the-undertow-sub000/gate"
	"github.com/100PercentTuna/the-undertow-sub000/internal/metrics"
	"github.com/100PercentTuna/the-undertow-sub000/notify"
	"github.com/100PercentTuna/the-undertow-sub000/pipeline"
	"github.com/100PercentTuna/the-undertow-sub000/retry"
	"github.com/100PercentTuna/the-undertow-sub000/store"
)

// System is a fully wired pipeline instance. Fields are exported so callers
// can drive the controller, work the escalation desk, or register additional
// capabilities after Build.
type System struct {
	Config      *config.Config
	Controller  *pipeline.Controller
	Escalations *escalation.Manager
	Registry    *agent.Registry
	Gateway     *agent.Gateway
	Tracker     *budget.Tracker
	Collector   *metrics.Collector

	// Store is nil when the database is disabled; escalations then live in
	// a per-process memory store.
	Store *store.Store

	redis  *redis.Client
	logger *zap.Logger
}

type options struct {
	registerer prometheus.Registerer
	registrars []func(*agent.Registry)
}

// Option adjusts how Build assembles the system.
type Option func(*options)

// WithRegisterer registers the metrics collector on reg instead of the
// default Prometheus registerer. Tests pass a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithHeuristicAgents registers the built-in offline capability set, which
// runs a story end to end without any provider.
func WithHeuristicAgents() Option {
	return func(o *options) {
		o.registrars = append(o.registrars, agent.RegisterHeuristics)
	}
}

// WithCapabilities appends a custom capability registrar. Registrars run in
// option order, so later registrations replace earlier ones per agent ID.
func WithCapabilities(register func(*agent.Registry)) Option {
	return func(o *options) { o.registrars = append(o.registrars, register) }
}

// Build assembles a System from configuration. It opens external resources
// (Redis, the database) only when the configuration enables them; the
// returned System must be Closed.
func Build(cfg *config.Config, logger *zap.Logger, opts ...Option) (*System, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	collector := metrics.NewCollectorWith(o.registerer, "undertow", logger)

	tracker := budget.NewTracker(budget.Config{
		DailyCeiling:         cfg.Budget.DailyCeiling,
		MaxCostPerInvocation: cfg.Budget.MaxCostPerInvocation,
		AlertThreshold:       cfg.Budget.AlertThreshold,
	}, logger)
	tracker.OnAlert(func(alert budget.Alert) {
		logger.Warn("daily budget alert",
			zap.Float64("utilization", alert.Utilization),
			zap.Float64("threshold", alert.Threshold),
		)
	})

	var rdb *redis.Client
	if cfg.Cache.Enabled && cfg.Cache.EnableRedis && cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
	}

	var responseCache cache.ResponseCache
	if cfg.Cache.Enabled {
		responseCache = cache.NewMultiLevelCache(rdb, &cache.Config{
			LocalMaxSize: cfg.Cache.LocalMaxSize,
			LocalTTL:     cfg.Cache.LocalTTL,
			RedisTTL:     cfg.Cache.RedisTTL,
			EnableLocal:  true,
			EnableRedis:  rdb != nil,
		}, logger)
	}

	retryer := retry.NewBackoffRetryer(&retry.Policy{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Multiplier:   cfg.Retry.Multiplier,
		Jitter:       true,
	}, logger)

	registry := agent.NewRegistry(logger)
	for _, register := range o.registrars {
		register(registry)
	}

	gateway := agent.NewGateway(
		registry,
		tracker,
		responseCache,
		retryer,
		cfg.Cache,
		agent.PricingFromConfig(cfg.Budget),
		collector,
		logger,
	)

	orchestrator := pipeline.NewOrchestrator(gateway, gate.NewRegistry(cfg.Gates), collector, logger)

	var (
		dbStore     *store.Store
		escStore    escalation.Store
		resultStore pipeline.ResultStore
	)
	if cfg.Database.Enabled {
		s, err := store.Open(cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		dbStore = s
		escStore = s
		resultStore = s
	} else {
		escStore = escalation.NewMemoryStore()
	}

	notifier, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		if dbStore != nil {
			_ = dbStore.Close()
		}
		return nil, err
	}

	manager := escalation.NewManager(escStore, notifier, logger)
	decider := escalation.NewDecider(cfg.Escalation)

	controller := pipeline.NewController(cfg.Pipeline, cfg.Debate, pipeline.Deps{
		Orchestrator: orchestrator,
		Debaters:     agent.NewHeuristicDebaters,
		Decider:      decider,
		Escalations:  manager,
		Store:        resultStore,
		Collector:    collector,
		Logger:       logger,
	})

	return &System{
		Config:      cfg,
		Controller:  controller,
		Escalations: manager,
		Registry:    registry,
		Gateway:     gateway,
		Tracker:     tracker,
		Collector:   collector,
		Store:       dbStore,
		redis:       rdb,
		logger:      logger,
	}, nil
}

// Close releases the system's external resources. Safe to call once.
func (s *System) Close() error {
	var errs []error
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildNotifier(cfg config.NotifyConfig, logger *zap.Logger) (notify.Notifier, error) {
	logSink := notify.NewLogNotifier(logger)
	if cfg.WebhookURL == "" {
		return logSink, nil
	}
	webhook, err := notify.NewWebhookNotifier(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build webhook notifier: %w", err)
	}
	return notify.NewMulti(logSink, webhook), nil
}
