package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/100PercentTuna/the-undertow-sub000/budget"
	"github.com/100PercentTuna/the-undertow-sub000/cache"
	"github.com/100PercentTuna/the-undertow-sub000/config"
	"github.com/100PercentTuna/the-undertow-sub000/internal/metrics"
	"github.com/100PercentTuna/the-undertow-sub000/retry"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// completionAllowance pads the pre-call cost estimate for the tokens the
// completion has not produced yet.
const completionAllowance = 1024

// Gateway executes capabilities under the invocation contract: reserve
// budget, consult the response cache, retry transient provider errors,
// recover panics, score the output. Invoke never returns an error; failures
// come back as unsuccessful outcomes.
type Gateway struct {
	registry  *Registry
	tracker   *budget.Tracker
	cache     cache.ResponseCache
	retryer   retry.Retryer
	estimator *Estimator
	pricing   Pricing
	cacheCfg  config.CacheConfig
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewGateway wires the invocation boundary. The cache and collector may be
// nil; the tracker and registry must not be.
func NewGateway(
	registry *Registry,
	tracker *budget.Tracker,
	responseCache cache.ResponseCache,
	retryer retry.Retryer,
	cacheCfg config.CacheConfig,
	pricing Pricing,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Gateway {
	if retryer == nil {
		retryer = retry.NewBackoffRetryer(nil, logger)
	}
	if pricing == nil {
		pricing = PricingFromConfig(config.BudgetConfig{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		registry:  registry,
		tracker:   tracker,
		cache:     responseCache,
		retryer:   retryer,
		estimator: NewEstimator(),
		pricing:   pricing,
		cacheCfg:  cacheCfg,
		collector: collector,
		logger:    logger.With(zap.String("component", "agent_gateway")),
	}
}

// Invoke runs one capability against the input. The returned outcome is
// always usable: on any failure Success is false and Error explains why.
func (g *Gateway) Invoke(ctx context.Context, agentID string, in Input) types.AgentOutcome {
	start := time.Now()

	capability, ok := g.registry.Lookup(agentID)
	if !ok {
		err := types.NewError(types.ErrAgentNotFound, fmt.Sprintf("no capability registered for %q", agentID)).WithAgentID(agentID)
		g.observe(agentID, "", "failure", time.Since(start), 0)
		return types.FailedOutcome(agentID, err, 0, time.Since(start))
	}
	tier := capability.Tier()

	promptTokens := g.estimator.CountInput(in)
	estimated := g.pricing.CostOf(tier, promptTokens+completionAllowance)

	reservation, err := g.tracker.Reserve(estimated)
	if err != nil {
		budgetErr := types.NewBudgetError(err.Error()).WithAgentID(agentID)
		if !errors.Is(err, budget.ErrExceeded) {
			budgetErr = types.AsError(err).WithAgentID(agentID)
		}
		g.logger.Warn("invocation rejected by budget",
			zap.String("agent_id", agentID),
			zap.Float64("estimated", estimated),
			zap.Error(err),
		)
		g.observe(agentID, tier, "failure", time.Since(start), 0)
		return types.FailedOutcome(agentID, budgetErr, 0, time.Since(start))
	}

	cacheable := g.cacheable(capability)
	var key string
	if cacheable {
		key = cache.Key(agentID, in, capability.Temperature())
		if outcome, ok := g.replayCached(ctx, key, agentID, start); ok {
			reservation.Release()
			return outcome
		}
	}

	output, execErr := g.execute(ctx, capability, in)
	duration := time.Since(start)

	if execErr != nil {
		reservation.Release()
		failure := types.AsError(execErr).WithAgentID(agentID)
		g.logger.Warn("invocation failed",
			zap.String("agent_id", agentID),
			zap.String("code", string(failure.Code)),
			zap.Duration("duration", duration),
			zap.Error(execErr),
		)
		g.observe(agentID, tier, "failure", duration, 0)
		return types.FailedOutcome(agentID, failure, 0, duration)
	}

	completionTokens := g.estimator.CountOutput(output)
	usage := g.pricing.Usage(tier, promptTokens, completionTokens)
	reservation.Settle(usage.Cost)

	quality := types.MeanFactorScore(output)

	if cacheable {
		g.populateCache(ctx, key, agentID, output, quality)
	}

	g.observe(agentID, tier, "success", duration, usage.Cost)
	g.collector.RecordTokens(agentID, usage.PromptTokens, usage.CompletionTokens)

	g.logger.Debug("invocation completed",
		zap.String("agent_id", agentID),
		zap.Float64("quality", quality),
		zap.Float64("cost", usage.Cost),
		zap.Duration("duration", duration),
	)

	return types.AgentOutcome{
		AgentID:  agentID,
		Success:  true,
		Output:   output,
		Quality:  quality,
		Cost:     usage.Cost,
		Duration: duration,
	}
}

// execute runs the capability under the retry policy with per-attempt panic
// recovery. A recovered panic is a terminal internal error, never retried.
func (g *Gateway) execute(ctx context.Context, capability Capability, in Input) (types.AgentOutput, error) {
	result, err := g.retryer.DoWithResult(ctx, func() (out any, err error) {
		defer func() {
			if r := recover(); r != nil {
				out = nil
				err = types.NewError(types.ErrInternal, fmt.Sprintf("agent panicked: %v", r))
			}
		}()
		return capability.Execute(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	output, ok := result.(types.AgentOutput)
	if !ok || output == nil {
		return nil, types.NewParseError("agent returned no output")
	}
	return output, nil
}

// cacheable reports whether the capability's responses may be replayed.
// Only low-temperature sampling is deterministic enough to cache.
func (g *Gateway) cacheable(capability Capability) bool {
	return g.cache != nil &&
		g.cacheCfg.Enabled &&
		capability.Temperature() < g.cacheCfg.TemperatureCeiling
}

// replayCached serves a prior response. A hit costs nothing and keeps the
// original quality score.
func (g *Gateway) replayCached(ctx context.Context, key, agentID string, start time.Time) (types.AgentOutcome, bool) {
	entry, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			g.logger.Warn("cache lookup failed", zap.String("agent_id", agentID), zap.Error(err))
		}
		g.collector.RecordCacheMiss("response")
		return types.AgentOutcome{}, false
	}

	output, err := types.DecodeOutput(entry.Kind, entry.Output)
	if err != nil {
		g.logger.Warn("cached entry undecodable, treating as miss",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
		g.collector.RecordCacheMiss("response")
		return types.AgentOutcome{}, false
	}

	g.collector.RecordCacheHit("response")
	duration := time.Since(start)
	g.observe(agentID, "", "cache_hit", duration, 0)

	return types.AgentOutcome{
		AgentID:  agentID,
		Success:  true,
		Output:   output,
		Quality:  entry.Quality,
		Cost:     0,
		Duration: duration,
		CacheHit: true,
	}, true
}

func (g *Gateway) populateCache(ctx context.Context, key, agentID string, output types.AgentOutput, quality float64) {
	data, err := json.Marshal(output)
	if err != nil {
		g.logger.Warn("cache encode failed", zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	entry := &cache.Entry{
		AgentID: agentID,
		Kind:    output.Kind(),
		Output:  data,
		Quality: quality,
	}
	if err := g.cache.Set(ctx, key, entry); err != nil {
		g.logger.Warn("cache store failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}

func (g *Gateway) observe(agentID string, tier types.Tier, status string, duration time.Duration, cost float64) {
	g.collector.RecordAgentInvocation(agentID, string(tier), status, duration, cost)
	if g.tracker != nil {
		st := g.tracker.GetStatus()
		g.collector.SetBudget(st.Spent, st.Remaining)
	}
}
