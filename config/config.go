package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config is the complete configuration of an Undertow process. Every value
// here is externally supplied; the pipeline core hardcodes none of them.
type Config struct {
	// Pipeline controls stage ordering knobs and final-score weighting.
	Pipeline PipelineConfig `yaml:"pipeline" env:"PIPELINE"`

	// Gates configures the quality gates by name. An empty list keeps the
	// four reference gates from DefaultConfig.
	Gates []GateConfig `yaml:"gates"`

	// Escalation configures human-review triggers.
	Escalation EscalationConfig `yaml:"escalation" env:"ESCALATION"`

	// Debate configures the adversarial review loop.
	Debate DebateConfig `yaml:"debate" env:"DEBATE"`

	// Budget configures the shared daily spend ceiling.
	Budget BudgetConfig `yaml:"budget" env:"BUDGET"`

	// Retry configures provider-error backoff.
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// Cache configures the low-temperature response cache.
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Redis configures the optional cache L2.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database configures the optional result/escalation store.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Notify configures the escalation webhook.
	Notify NotifyConfig `yaml:"notify" env:"NOTIFY"`

	// Metrics configures the Prometheus listener.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log configures zap.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures the OpenTelemetry SDK.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// PipelineConfig controls the pipeline controller.
type PipelineConfig struct {
	// StageWeights weight each named stage in the final score. Stages absent
	// from a run contribute zero weight; the score is normalized over the
	// stages actually present.
	StageWeights map[string]float64 `yaml:"stage_weights"`
	// StrictGates marks a run not clean on gate failure. The pipeline still
	// continues either way; there is no hard abort below the top-level
	// safety net.
	StrictGates bool `yaml:"strict_gates" env:"STRICT_GATES"`
	// EnableAdversarial toggles the debate stage.
	EnableAdversarial bool `yaml:"enable_adversarial" env:"ENABLE_ADVERSARIAL"`
	// EnableVerification toggles the fact-check stage.
	EnableVerification bool `yaml:"enable_verification" env:"ENABLE_VERIFICATION"`
	// StageTimeout bounds one stage end to end.
	StageTimeout time.Duration `yaml:"stage_timeout" env:"STAGE_TIMEOUT"`
}

// GateConfig configures one quality gate.
type GateConfig struct {
	Name      string             `yaml:"name"`
	Threshold float64            `yaml:"threshold"`
	Factors   []GateFactorConfig `yaml:"factors"`
}

// GateFactorConfig is one weighted factor inside a gate. Floor is advisory:
// scoring below it appends FloorIssue to the gate result without changing
// the score.
type GateFactorConfig struct {
	Name       string  `yaml:"name"`
	Weight     float64 `yaml:"weight"`
	Floor      float64 `yaml:"floor"`
	FloorIssue string  `yaml:"floor_issue"`
}

// EscalationConfig configures the human-escalation decider.
type EscalationConfig struct {
	MinOverallQuality float64  `yaml:"min_overall_quality" env:"MIN_OVERALL_QUALITY"`
	MinStageQuality   float64  `yaml:"min_stage_quality" env:"MIN_STAGE_QUALITY"`
	MinConfidence     float64  `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
	MaxDisputedRatio  float64  `yaml:"max_disputed_ratio" env:"MAX_DISPUTED_RATIO"`
	SensitiveTopics   []string `yaml:"sensitive_topics" env:"SENSITIVE_TOPICS"`
	SensitiveZones    []string `yaml:"sensitive_zones" env:"SENSITIVE_ZONES"`
	// SensitiveMargin tightens the quality bar for stories in sensitive
	// zones: a score within this margin above MinOverallQuality still
	// escalates.
	SensitiveMargin float64 `yaml:"sensitive_margin" env:"SENSITIVE_MARGIN"`
}

// DebateConfig configures the debate protocol engine.
type DebateConfig struct {
	MaxRounds             int `yaml:"max_rounds" env:"MAX_ROUNDS"`
	MaxChallengesPerRound int `yaml:"max_challenges_per_round" env:"MAX_CHALLENGES_PER_ROUND"`
}

// BudgetConfig configures the shared daily cost budget.
type BudgetConfig struct {
	DailyCeiling         float64 `yaml:"daily_ceiling" env:"DAILY_CEILING"`
	MaxCostPerInvocation float64 `yaml:"max_cost_per_invocation" env:"MAX_COST_PER_INVOCATION"`
	// AlertThreshold fires the budget alert once per day window when
	// utilization crosses it, 0.0-1.0.
	AlertThreshold float64 `yaml:"alert_threshold" env:"ALERT_THRESHOLD"`
	// TierPricing maps tier name to price per 1K tokens, used only for
	// pre-invocation estimates.
	TierPricing map[string]float64 `yaml:"tier_pricing"`
}

// RetryConfig configures transient-error backoff at the invocation boundary.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	Multiplier   float64       `yaml:"multiplier" env:"MULTIPLIER"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// TemperatureCeiling gates cacheability: only invocations sampled below
	// this temperature are deterministic enough to replay.
	TemperatureCeiling float64       `yaml:"temperature_ceiling" env:"TEMPERATURE_CEILING"`
	LocalMaxSize       int           `yaml:"local_max_size" env:"LOCAL_MAX_SIZE"`
	LocalTTL           time.Duration `yaml:"local_ttl" env:"LOCAL_TTL"`
	RedisTTL           time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
	EnableRedis        bool          `yaml:"enable_redis" env:"ENABLE_REDIS"`
}

// RedisConfig configures the Redis client backing cache L2.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig configures the optional persistence layer.
type DatabaseConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Driver selects postgres or sqlite. For sqlite, Name is the file path.
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// NotifyConfig configures the escalation webhook notifier. An empty
// WebhookURL disables outbound notifications.
type NotifyConfig struct {
	WebhookURL    string        `yaml:"webhook_url" env:"WEBHOOK_URL"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RatePerSecond float64       `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	Burst         int           `yaml:"burst" env:"BURST"`
}

// MetricsConfig configures the Prometheus /metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate checks cross-field invariants and reports every violation at
// once, joined with "; ".
func (c *Config) Validate() error {
	var errs []string

	for _, g := range c.Gates {
		if g.Name == "" {
			errs = append(errs, "gate name must not be empty")
			continue
		}
		if g.Threshold <= 0 || g.Threshold > 1 {
			errs = append(errs, fmt.Sprintf("gate %s: threshold must be in (0,1]", g.Name))
		}
		var sum float64
		for _, f := range g.Factors {
			if f.Weight < 0 {
				errs = append(errs, fmt.Sprintf("gate %s: factor %s has negative weight", g.Name, f.Name))
			}
			sum += f.Weight
		}
		if len(g.Factors) > 0 && math.Abs(sum-1.0) > 1e-6 {
			errs = append(errs, fmt.Sprintf("gate %s: factor weights sum to %.4f, want 1.0", g.Name, sum))
		}
	}

	for name, v := range map[string]float64{
		"escalation.min_overall_quality": c.Escalation.MinOverallQuality,
		"escalation.min_stage_quality":   c.Escalation.MinStageQuality,
		"escalation.min_confidence":      c.Escalation.MinConfidence,
		"escalation.max_disputed_ratio":  c.Escalation.MaxDisputedRatio,
		"escalation.sensitive_margin":    c.Escalation.SensitiveMargin,
		"cache.temperature_ceiling":      c.Cache.TemperatureCeiling,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in [0,1]", name))
		}
	}

	if c.Debate.MaxRounds < 0 {
		errs = append(errs, "debate.max_rounds must not be negative")
	}
	if c.Budget.DailyCeiling <= 0 {
		errs = append(errs, "budget.daily_ceiling must be positive")
	}
	if c.Budget.AlertThreshold < 0 || c.Budget.AlertThreshold > 1 {
		errs = append(errs, "budget.alert_threshold must be in [0,1]")
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, "retry.max_retries must not be negative")
	}
	if c.Retry.Multiplier < 1.0 {
		errs = append(errs, "retry.multiplier must be at least 1.0")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug/info/warn/error", c.Log.Level))
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case "postgres", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("database.driver %q is not one of postgres/sqlite", c.Database.Driver))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the database connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
