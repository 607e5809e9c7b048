// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns the pipeline's Prometheus instruments. All Record methods
// are safe on a nil receiver, so components can treat metrics as optional.
type Collector struct {
	// Pipeline metrics
	pipelineRunsTotal   *prometheus.CounterVec
	pipelineRunDuration prometheus.Histogram
	pipelineRunCost     prometheus.Histogram

	// Stage metrics
	stageDuration *prometheus.HistogramVec
	stageQuality  *prometheus.HistogramVec

	// Gate metrics
	gateEvaluationsTotal *prometheus.CounterVec
	gateScore            *prometheus.HistogramVec

	// Agent invocation metrics
	agentInvocationsTotal *prometheus.CounterVec
	agentDuration         *prometheus.HistogramVec
	agentCostTotal        *prometheus.CounterVec
	tokensUsedTotal       *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Budget metrics
	budgetSpent     prometheus.Gauge
	budgetRemaining prometheus.Gauge

	// Review desk metrics
	escalationsTotal *prometheus.CounterVec
	debateRounds     prometheus.Histogram

	logger *zap.Logger
}

// NewCollector registers the instruments on the default Prometheus registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer, namespace, logger)
}

// NewCollectorWith registers the instruments on the given registerer. Tests
// pass a private registry so parallel packages never collide.
func NewCollectorWith(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.pipelineRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"status"},
	)
	c.pipelineRunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "End-to-end pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	c.pipelineRunCost = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_cost_dollars",
			Help:      "Total cost of one pipeline run in USD",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)
	c.stageQuality = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_quality",
			Help:      "Stage quality score in [0,1]",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		},
		[]string{"stage"},
	)

	c.gateEvaluationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_evaluations_total",
			Help:      "Total number of quality gate evaluations",
		},
		[]string{"gate", "result"},
	)
	c.gateScore = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gate_score",
			Help:      "Weighted gate score in [0,1]",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		},
		[]string{"gate"},
	)

	c.agentInvocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_invocations_total",
			Help:      "Total number of agent invocations",
		},
		[]string{"agent_id", "tier", "status"},
	)
	c.agentDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_invocation_duration_seconds",
			Help:      "Agent invocation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent_id", "tier"},
	)
	c.agentCostTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_cost_dollars_total",
			Help:      "Total agent spend in USD",
		},
		[]string{"agent_id", "tier"},
	)
	c.tokensUsedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Total tokens used by agent invocations",
		},
		[]string{"agent_id", "type"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)
	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	c.budgetSpent = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_spent_dollars",
			Help:      "Spend recorded in the current day window",
		},
	)
	c.budgetRemaining = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_remaining_dollars",
			Help:      "Remaining budget in the current day window",
		},
	)

	c.escalationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of escalations opened",
		},
		[]string{"priority"},
	)
	c.debateRounds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "debate_rounds",
			Help:      "Completed debate rounds per adversarial stage",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12},
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordPipelineRun records one terminal pipeline result.
func (c *Collector) RecordPipelineRun(status string, duration time.Duration, cost float64) {
	if c == nil {
		return
	}
	c.pipelineRunsTotal.WithLabelValues(status).Inc()
	c.pipelineRunDuration.Observe(duration.Seconds())
	c.pipelineRunCost.Observe(cost)
}

// RecordStage records one completed stage.
func (c *Collector) RecordStage(stage string, duration time.Duration, quality float64) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	c.stageQuality.WithLabelValues(stage).Observe(quality)
}

// RecordGateEvaluation records one gate decision.
func (c *Collector) RecordGateEvaluation(gate string, score float64, passed bool) {
	if c == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	c.gateEvaluationsTotal.WithLabelValues(gate, result).Inc()
	c.gateScore.WithLabelValues(gate).Observe(score)
}

// RecordAgentInvocation records one agent call outcome.
func (c *Collector) RecordAgentInvocation(agentID, tier, status string, duration time.Duration, cost float64) {
	if c == nil {
		return
	}
	c.agentInvocationsTotal.WithLabelValues(agentID, tier, status).Inc()
	c.agentDuration.WithLabelValues(agentID, tier).Observe(duration.Seconds())
	c.agentCostTotal.WithLabelValues(agentID, tier).Add(cost)
}

// RecordTokens records token consumption for one invocation.
func (c *Collector) RecordTokens(agentID string, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.tokensUsedTotal.WithLabelValues(agentID, "prompt").Add(float64(promptTokens))
	c.tokensUsedTotal.WithLabelValues(agentID, "completion").Add(float64(completionTokens))
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// SetBudget publishes the current day window's spend and headroom.
func (c *Collector) SetBudget(spent, remaining float64) {
	if c == nil {
		return
	}
	c.budgetSpent.Set(spent)
	c.budgetRemaining.Set(remaining)
}

// RecordEscalation counts one opened escalation.
func (c *Collector) RecordEscalation(priority string) {
	if c == nil {
		return
	}
	c.escalationsTotal.WithLabelValues(priority).Inc()
}

// RecordDebateRounds records how many rounds an adversarial stage completed.
func (c *Collector) RecordDebateRounds(rounds int) {
	if c == nil {
		return
	}
	c.debateRounds.Observe(float64(rounds))
}
