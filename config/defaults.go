package config

import "time"

// DefaultConfig returns the reference defaults. Gate thresholds, stage
// weights, and escalation triggers mirror the values the editorial pipeline
// was tuned with; everything can be overridden by YAML or environment.
func DefaultConfig() *Config {
	return &Config{
		Pipeline:   DefaultPipelineConfig(),
		Gates:      DefaultGates(),
		Escalation: DefaultEscalationConfig(),
		Debate:     DefaultDebateConfig(),
		Budget:     DefaultBudgetConfig(),
		Retry:      DefaultRetryConfig(),
		Cache:      DefaultCacheConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Notify:     DefaultNotifyConfig(),
		Metrics:    DefaultMetricsConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultPipelineConfig returns the default stage weighting and toggles.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		StageWeights: map[string]float64{
			"Foundation":    0.15,
			"Deep Analysis": 0.20,
			"Uncertainty":   0.10,
			"Synthesis":     0.20,
			"Adversarial":   0.10,
			"Verification":  0.10,
			"Writing":       0.10,
			"Editing":       0.05,
		},
		StrictGates:        false,
		EnableAdversarial:  true,
		EnableVerification: true,
		StageTimeout:       10 * time.Minute,
	}
}

// DefaultGates returns the four reference gates. Factor names match the
// quality factors emitted by the agent output types plus the synthetic
// stage_quality metric supplied by the orchestrator.
func DefaultGates() []GateConfig {
	return []GateConfig{
		{
			Name:      "Foundation",
			Threshold: 0.75,
			Factors: []GateFactorConfig{
				{Name: "stage_quality", Weight: 0.40},
				{Name: "actor_coverage", Weight: 0.20, Floor: 0.50, FloorIssue: "fewer than half of the primary actors were analyzed"},
				{Name: "motive_depth", Weight: 0.15},
				{Name: "chain_depth", Weight: 0.15, Floor: 0.34, FloorIssue: "consequence chains stop at first-order effects"},
				{Name: "branch_coverage", Weight: 0.10},
			},
		},
		{
			Name:      "Analysis",
			Threshold: 0.80,
			Factors: []GateFactorConfig{
				{Name: "stage_quality", Weight: 0.35},
				{Name: "signal_yield", Weight: 0.10},
				{Name: "alignment_clarity", Weight: 0.10},
				{Name: "context_depth", Weight: 0.10},
				{Name: "connection_breadth", Weight: 0.10},
				{Name: "claim_confidence", Weight: 0.15, Floor: 0.50, FloorIssue: "overall claim confidence below one half"},
				{Name: "thesis_support", Weight: 0.10},
			},
		},
		{
			Name:      "Adversarial",
			Threshold: 0.80,
			Factors: []GateFactorConfig{
				{Name: "stage_quality", Weight: 0.40},
				{Name: "challenge_survival", Weight: 0.35, Floor: 0.40, FloorIssue: "a majority of debate challenges were sustained"},
				{Name: "insight_yield", Weight: 0.25},
			},
		},
		{
			Name:      "Output",
			Threshold: 0.85,
			Factors: []GateFactorConfig{
				{Name: "stage_quality", Weight: 0.35},
				{Name: "completeness", Weight: 0.25, Floor: 0.99, FloorIssue: "article draft is missing its title or body"},
				{Name: "readability", Weight: 0.20},
				{Name: "verification_pass", Weight: 0.20, Floor: 0.60, FloorIssue: "fewer than three in five checked claims verified"},
			},
		},
	}
}

// DefaultEscalationConfig returns the reference escalation triggers.
func DefaultEscalationConfig() EscalationConfig {
	return EscalationConfig{
		MinOverallQuality: 0.70,
		MinStageQuality:   0.60,
		MinConfidence:     0.60,
		MaxDisputedRatio:  0.30,
		SensitiveTopics: []string{
			"coup", "nuclear", "assassination", "genocide",
			"chemical weapons", "ethnic cleansing", "insurrection", "annexation",
		},
		SensitiveZones: []string{
			"Taiwan Strait", "Kashmir", "South China Sea",
			"Korean Peninsula", "Donbas", "Sahel",
		},
		SensitiveMargin: 0.05,
	}
}

// DefaultDebateConfig returns the reference debate bounds.
func DefaultDebateConfig() DebateConfig {
	return DebateConfig{
		MaxRounds:             3,
		MaxChallengesPerRound: 4,
	}
}

// DefaultBudgetConfig returns the reference budget limits.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		DailyCeiling:         50.0,
		MaxCostPerInvocation: 5.0,
		AlertThreshold:       0.8,
		TierPricing: map[string]float64{
			"fast":     0.0005,
			"standard": 0.003,
			"high":     0.015,
			"frontier": 0.045,
		},
	}
}

// DefaultRetryConfig returns the reference backoff policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// DefaultCacheConfig returns the reference cache settings. Redis is opt-in.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:            true,
		TemperatureCeiling: 0.3,
		LocalMaxSize:       1000,
		LocalTTL:           5 * time.Minute,
		RedisTTL:           1 * time.Hour,
		EnableRedis:        false,
	}
}

// DefaultRedisConfig returns the default Redis client settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig returns the default store settings. Persistence is
// opt-in; a run without a database keeps everything in memory.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "undertow",
		Password:        "",
		Name:            "undertow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultNotifyConfig returns the default notifier settings. An empty
// webhook URL keeps notifications log-only.
func DefaultNotifyConfig() NotifyConfig {
	return NotifyConfig{
		WebhookURL:    "",
		Timeout:       10 * time.Second,
		RatePerSecond: 2,
		Burst:         4,
	}
}

// DefaultMetricsConfig returns the default Prometheus listener settings.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Addr:    ":9091",
	}
}

// DefaultLogConfig returns the default zap settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default OpenTelemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "undertow",
		SampleRate:   0.1,
	}
}
