package agent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/100PercentTuna/the-undertow-sub000/budget"
	"github.com/100PercentTuna/the-undertow-sub000/cache"
	"github.com/100PercentTuna/the-undertow-sub000/config"
	"github.com/100PercentTuna/the-undertow-sub000/retry"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

type scriptedCapability struct {
	id    string
	tier  types.Tier
	temp  float64
	fn    func(Input) (types.AgentOutput, error)
	calls atomic.Int32
}

func (s *scriptedCapability) ID() string           { return s.id }
func (s *scriptedCapability) Tier() types.Tier     { return s.tier }
func (s *scriptedCapability) Temperature() float64 { return s.temp }

func (s *scriptedCapability) Execute(_ context.Context, in Input) (types.AgentOutput, error) {
	s.calls.Add(1)
	return s.fn(in)
}

// fullVerification scores 1.0 on every quality factor: five claims, all
// verified, two sources each.
func fullVerification() *types.VerificationReport {
	report := &types.VerificationReport{}
	for _, claim := range []string{"a", "b", "c", "d", "e"} {
		report.Checked = append(report.Checked, types.CheckedClaim{
			Claim: claim, Verified: true, Sources: 2,
		})
	}
	return report
}

func quickRetryer() retry.Retryer {
	return retry.NewBackoffRetryer(&retry.Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   1.5,
	}, nil)
}

func testTracker(ceiling float64) *budget.Tracker {
	return budget.NewTracker(budget.Config{DailyCeiling: ceiling}, nil)
}

func testInput() Input {
	return Input{
		Story: &types.StoryContext{
			ID:       "story-1",
			Headline: "Country A Recognizes Territory B",
			Summary:  "Country A extended formal recognition to Territory B this morning.",
			Actors:   []string{"Country A", "Country C"},
			Zones:    []string{"Territory B"},
		},
	}
}

func newTestGateway(reg *Registry, tracker *budget.Tracker, responseCache cache.ResponseCache, cacheCfg config.CacheConfig) *Gateway {
	return NewGateway(reg, tracker, responseCache, quickRetryer(), cacheCfg, nil, nil, nil)
}

func TestGateway_UnknownAgentFailsWithoutPanic(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(NewRegistry(nil), testTracker(100), nil, config.CacheConfig{})

	outcome := gw.Invoke(context.Background(), "nobody-home", testInput())

	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, types.ErrAgentNotFound, outcome.Error.Code)
	assert.Equal(t, "nobody-home", outcome.AgentID)
}

func TestGateway_BudgetExhaustionSkipsExecution(t *testing.T) {
	t.Parallel()

	capability := &scriptedCapability{
		id: "writer", tier: types.TierFrontier, temp: 0.7,
		fn: func(Input) (types.AgentOutput, error) { return fullVerification(), nil },
	}
	reg := NewRegistry(nil)
	reg.Register(capability)

	gw := newTestGateway(reg, testTracker(0.0000001), nil, config.CacheConfig{})

	outcome := gw.Invoke(context.Background(), "writer", testInput())

	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, types.ErrBudgetExceeded, outcome.Error.Code)
	assert.Zero(t, capability.calls.Load(), "a rejected invocation must never reach the agent")
	assert.Zero(t, outcome.Cost)
}

func TestGateway_SuccessScoresSettlesAndReports(t *testing.T) {
	t.Parallel()

	output := fullVerification()
	capability := &scriptedCapability{
		id: "fact-checker", tier: types.TierFast, temp: 0.9,
		fn: func(Input) (types.AgentOutput, error) { return output, nil },
	}
	reg := NewRegistry(nil)
	reg.Register(capability)
	tracker := testTracker(100)

	gw := newTestGateway(reg, tracker, nil, config.CacheConfig{})

	outcome := gw.Invoke(context.Background(), "fact-checker", testInput())

	require.True(t, outcome.Success)
	assert.Equal(t, output, outcome.Output)
	assert.InDelta(t, 1.0, outcome.Quality, 1e-9)
	assert.Greater(t, outcome.Cost, 0.0)
	assert.InDelta(t, outcome.Cost, tracker.Spent(), 1e-9, "settled spend must equal the reported cost")
	assert.False(t, outcome.CacheHit)
}

func TestGateway_FailureReleasesReservation(t *testing.T) {
	t.Parallel()

	capability := &scriptedCapability{
		id: "flaky", tier: types.TierStandard, temp: 0.5,
		fn: func(Input) (types.AgentOutput, error) {
			return nil, types.NewParseError("model returned prose instead of JSON")
		},
	}
	reg := NewRegistry(nil)
	reg.Register(capability)
	tracker := testTracker(100)

	gw := newTestGateway(reg, tracker, nil, config.CacheConfig{})

	outcome := gw.Invoke(context.Background(), "flaky", testInput())

	assert.False(t, outcome.Success)
	assert.Zero(t, tracker.Spent(), "a failed invocation must not consume budget")
	assert.InDelta(t, 100.0, tracker.Remaining(), 1e-9)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, types.ErrOutputParse, outcome.Error.Code)
}

func TestGateway_CacheReplaysLowTemperatureCalls(t *testing.T) {
	t.Parallel()

	capability := &scriptedCapability{
		id: "fact-checker", tier: types.TierFast, temp: 0.0,
		fn: func(Input) (types.AgentOutput, error) { return fullVerification(), nil },
	}
	reg := NewRegistry(nil)
	reg.Register(capability)
	tracker := testTracker(100)

	responseCache := cache.NewMultiLevelCache(nil, &cache.Config{
		EnableLocal:  true,
		LocalMaxSize: 8,
		LocalTTL:     time.Minute,
	}, nil)
	gw := newTestGateway(reg, tracker, responseCache, config.CacheConfig{
		Enabled:            true,
		TemperatureCeiling: 0.3,
	})

	first := gw.Invoke(context.Background(), "fact-checker", testInput())
	require.True(t, first.Success)
	require.False(t, first.CacheHit)
	spentAfterFirst := tracker.Spent()

	second := gw.Invoke(context.Background(), "fact-checker", testInput())
	require.True(t, second.Success)
	assert.True(t, second.CacheHit)
	assert.Zero(t, second.Cost, "a replay costs nothing")
	assert.Equal(t, int32(1), capability.calls.Load(), "the second call must be served from cache")
	assert.InDelta(t, spentAfterFirst, tracker.Spent(), 1e-9, "a replay must not consume budget")
	assert.InDelta(t, first.Quality, second.Quality, 1e-9)
	assert.Equal(t, first.Output.Kind(), second.Output.Kind())
}

func TestGateway_HighTemperatureBypassesCache(t *testing.T) {
	t.Parallel()

	capability := &scriptedCapability{
		id: "staff-writer", tier: types.TierFrontier, temp: 0.7,
		fn: func(Input) (types.AgentOutput, error) { return fullVerification(), nil },
	}
	reg := NewRegistry(nil)
	reg.Register(capability)

	responseCache := cache.NewMultiLevelCache(nil, &cache.Config{
		EnableLocal:  true,
		LocalMaxSize: 8,
		LocalTTL:     time.Minute,
	}, nil)
	gw := newTestGateway(reg, testTracker(100), responseCache, config.CacheConfig{
		Enabled:            true,
		TemperatureCeiling: 0.3,
	})

	first := gw.Invoke(context.Background(), "staff-writer", testInput())
	second := gw.Invoke(context.Background(), "staff-writer", testInput())

	assert.False(t, first.CacheHit)
	assert.False(t, second.CacheHit)
	assert.Equal(t, int32(2), capability.calls.Load())
}

func TestGateway_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var failures atomic.Int32
	failures.Store(2)
	capability := &scriptedCapability{
		id: "rate-limited", tier: types.TierStandard, temp: 0.5,
		fn: func(Input) (types.AgentOutput, error) {
			if failures.Add(-1) >= 0 {
				return nil, types.NewRateLimitError("429 from provider")
			}
			return fullVerification(), nil
		},
	}
	reg := NewRegistry(nil)
	reg.Register(capability)

	gw := newTestGateway(reg, testTracker(100), nil, config.CacheConfig{})

	outcome := gw.Invoke(context.Background(), "rate-limited", testInput())

	assert.True(t, outcome.Success)
	assert.Equal(t, int32(3), capability.calls.Load(), "two transient failures then success")
}

func TestGateway_ParseErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	capability := &scriptedCapability{
		id: "malformed", tier: types.TierStandard, temp: 0.5,
		fn: func(Input) (types.AgentOutput, error) {
			return nil, types.NewParseError("unterminated JSON object")
		},
	}
	reg := NewRegistry(nil)
	reg.Register(capability)

	gw := newTestGateway(reg, testTracker(100), nil, config.CacheConfig{})

	outcome := gw.Invoke(context.Background(), "malformed", testInput())

	assert.False(t, outcome.Success)
	assert.Equal(t, int32(1), capability.calls.Load(), "a malformed response never improves on retry")
}

func TestGateway_RetryExhaustionKeepsErrorCode(t *testing.T) {
	t.Parallel()

	capability := &scriptedCapability{
		id: "always-429", tier: types.TierStandard, temp: 0.5,
		fn: func(Input) (types.AgentOutput, error) {
			return nil, types.NewRateLimitError("429 from provider")
		},
	}
	reg := NewRegistry(nil)
	reg.Register(capability)

	gw := newTestGateway(reg, testTracker(100), nil, config.CacheConfig{})

	outcome := gw.Invoke(context.Background(), "always-429", testInput())

	assert.False(t, outcome.Success)
	assert.Equal(t, int32(3), capability.calls.Load(), "initial attempt plus two retries")
	require.NotNil(t, outcome.Error)
	assert.Equal(t, types.ErrRateLimited, outcome.Error.Code)
}

func TestGateway_PanicBecomesFailedOutcome(t *testing.T) {
	t.Parallel()

	capability := &scriptedCapability{
		id: "bomb", tier: types.TierHigh, temp: 0.5,
		fn: func(Input) (types.AgentOutput, error) {
			panic("index out of range in prompt builder")
		},
	}
	reg := NewRegistry(nil)
	reg.Register(capability)
	tracker := testTracker(100)

	gw := newTestGateway(reg, tracker, nil, config.CacheConfig{})

	var outcome types.AgentOutcome
	require.NotPanics(t, func() {
		outcome = gw.Invoke(context.Background(), "bomb", testInput())
	})

	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, types.ErrInternal, outcome.Error.Code)
	assert.Contains(t, outcome.Error.Message, "panicked")
	assert.Equal(t, int32(1), capability.calls.Load(), "panics are terminal, not retried")
	assert.Zero(t, tracker.Spent())
}

func TestGateway_NilOutputIsAParseFailure(t *testing.T) {
	t.Parallel()

	capability := &scriptedCapability{
		id: "silent", tier: types.TierFast, temp: 0.5,
		fn: func(Input) (types.AgentOutput, error) { return nil, nil },
	}
	reg := NewRegistry(nil)
	reg.Register(capability)

	gw := newTestGateway(reg, testTracker(100), nil, config.CacheConfig{})

	outcome := gw.Invoke(context.Background(), "silent", testInput())

	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, types.ErrOutputParse, outcome.Error.Code)
}
