package escalation

import (
	"strings"

	"github.com/100PercentTuna/the-undertow-sub000/config"
)

// Signals is the evidence the decider weighs for one finished run.
type Signals struct {
	Quality             float64
	StageScores         map[string]float64
	Confidence          float64
	DisputedRatio       float64
	Content             string
	Zones               []string
	AdversarialConcerns bool
	SystemError         bool
	ManualFlag          bool
}

// Decider applies the configured escalation triggers. It is pure: no side
// effects, deterministic for given signals and config.
type Decider struct {
	cfg config.EscalationConfig
}

// NewDecider creates a decider with the given trigger thresholds.
func NewDecider(cfg config.EscalationConfig) *Decider {
	return &Decider{cfg: cfg}
}

// ShouldEscalate reports whether any trigger fires and which reasons apply.
// Any single trigger suffices; reasons accumulate and are deduplicated.
func (d *Decider) ShouldEscalate(s Signals) (bool, []Reason) {
	var reasons []Reason
	add := func(r Reason) {
		for _, have := range reasons {
			if have == r {
				return
			}
		}
		reasons = append(reasons, r)
	}

	if s.SystemError {
		add(ReasonSystemError)
	}
	if s.Quality < d.cfg.MinOverallQuality {
		add(ReasonQualityGateFailed)
	}
	for _, score := range s.StageScores {
		if score < d.cfg.MinStageQuality {
			add(ReasonQualityGateFailed)
			break
		}
	}
	if s.Confidence < d.cfg.MinConfidence {
		add(ReasonLowConfidence)
	}
	if s.DisputedRatio > d.cfg.MaxDisputedRatio {
		add(ReasonDisputedClaims)
	}
	if d.containsSensitiveTopic(s.Content) {
		add(ReasonSensitiveTopic)
	}
	// Sensitive zones get a tighter quality bar: a score that clears the
	// normal minimum but sits within the margin still goes to a human.
	if d.inSensitiveZone(s.Zones) && s.Quality < d.cfg.MinOverallQuality+d.cfg.SensitiveMargin {
		add(ReasonSensitiveTopic)
	}
	if s.AdversarialConcerns {
		add(ReasonAdversarialConcerns)
	}
	if s.ManualFlag {
		add(ReasonManualFlag)
	}

	return len(reasons) > 0, reasons
}

// PriorityFor assigns the triage priority. Rules are checked in a fixed
// order and the first match wins.
func PriorityFor(reasons []Reason, quality float64) Priority {
	if hasReason(reasons, ReasonSystemError) {
		return PriorityCritical
	}
	if quality < 0.5 {
		return PriorityCritical
	}
	if hasReason(reasons, ReasonSensitiveTopic) || hasReason(reasons, ReasonAdversarialConcerns) {
		return PriorityHigh
	}
	if hasReason(reasons, ReasonQualityGateFailed) {
		return PriorityMedium
	}
	return PriorityLow
}

func (d *Decider) containsSensitiveTopic(content string) bool {
	if content == "" {
		return false
	}
	lowered := strings.ToLower(content)
	for _, topic := range d.cfg.SensitiveTopics {
		if topic == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(topic)) {
			return true
		}
	}
	return false
}

func (d *Decider) inSensitiveZone(zones []string) bool {
	for _, zone := range zones {
		for _, sensitive := range d.cfg.SensitiveZones {
			if strings.EqualFold(strings.TrimSpace(zone), sensitive) {
				return true
			}
		}
	}
	return false
}

func hasReason(reasons []Reason, want Reason) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
