package types

import "time"

// Tier is the coarse cost/quality class of an agent invocation. The
// orchestration core never interprets tiers beyond pricing estimates; the
// external agent layer uses them to route to an appropriately capable model.
type Tier string

const (
	TierFast     Tier = "fast"
	TierStandard Tier = "standard"
	TierHigh     Tier = "high"
	TierFrontier Tier = "frontier"
)

// DefaultTierPricing returns the reference per-1K-token prices used for cost
// estimation when the configuration supplies none.
func DefaultTierPricing() map[Tier]float64 {
	return map[Tier]float64{
		TierFast:     0.0005,
		TierStandard: 0.003,
		TierHigh:     0.015,
		TierFrontier: 0.045,
	}
}

// AgentOutcome is the result of one agent invocation. It is created once per
// call and never mutated afterwards. Quality is meaningful only when Success
// is true; on failure Error carries the structured reason.
type AgentOutcome struct {
	AgentID  string        `json:"agent_id"`
	Success  bool          `json:"success"`
	Output   AgentOutput   `json:"output,omitempty"`
	Quality  float64       `json:"quality_score"`
	Cost     float64       `json:"cost"`
	Duration time.Duration `json:"duration"`
	CacheHit bool          `json:"cache_hit,omitempty"`
	Error    *Error        `json:"error,omitempty"`
}

// FailedOutcome builds the failure-shaped outcome the invocation boundary
// returns instead of raising. The orchestrator never sees a raw error from
// an agent call.
func FailedOutcome(agentID string, err *Error, cost float64, duration time.Duration) AgentOutcome {
	return AgentOutcome{
		AgentID:  agentID,
		Success:  false,
		Cost:     cost,
		Duration: duration,
		Error:    err,
	}
}

// FailureMessage returns the outcome's error text, or "" when successful.
func (o AgentOutcome) FailureMessage() string {
	if o.Error == nil {
		return ""
	}
	return o.Error.Error()
}
