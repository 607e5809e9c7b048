// Package gate evaluates stage quality against configured thresholds.
//
// A gate is a weighted sum over named factor scores compared to a threshold.
// Evaluation is pure: no retries, no side effects, and the same inputs always
// produce the same Result. Gate failure is a decision outcome consumed by the
// orchestrator, never an error.
package gate

import (
	"fmt"
	"math"
	"time"

	"github.com/100PercentTuna/the-undertow-sub000/config"
)

// FactorSpec is one weighted factor inside a gate. Floor is advisory: a
// factor scoring below it contributes its FloorIssue to the result without
// changing the score.
type FactorSpec struct {
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
	Floor      float64 `json:"floor,omitempty"`
	FloorIssue string  `json:"floor_issue,omitempty"`
}

// Spec defines one quality gate. Weights are expected to sum to 1.0, which
// config validation enforces at load time.
type Spec struct {
	Name      string       `json:"name"`
	Threshold float64      `json:"threshold"`
	Factors   []FactorSpec `json:"factors"`
}

// FactorScore is one factor's contribution in a Result, in spec order.
type FactorScore struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
	Missing  bool    `json:"missing,omitempty"`
}

// Result is the outcome of one gate evaluation. Immutable once returned.
type Result struct {
	Gate        string        `json:"gate"`
	Score       float64       `json:"score"`
	Threshold   float64       `json:"threshold"`
	Passed      bool          `json:"passed"`
	Issues      []string      `json:"issues,omitempty"`
	Breakdown   []FactorScore `json:"breakdown"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// Evaluate scores the supplied metrics against the spec. Metrics outside
// [0,1] are clamped. A factor with no metric scores zero and is reported as
// an issue; a factor below its floor appends the configured floor issue.
func Evaluate(spec Spec, metrics map[string]float64) Result {
	result := Result{
		Gate:        spec.Name,
		Threshold:   spec.Threshold,
		Breakdown:   make([]FactorScore, 0, len(spec.Factors)),
		EvaluatedAt: time.Now(),
	}

	var score float64
	for _, f := range spec.Factors {
		raw, ok := metrics[f.Name]
		fs := FactorScore{Name: f.Name, Weight: f.Weight, Missing: !ok}
		if ok {
			fs.Score = clamp01(raw)
		} else {
			result.Issues = append(result.Issues,
				fmt.Sprintf("no %s signal was supplied to the %s gate", f.Name, spec.Name))
		}
		fs.Weighted = fs.Score * f.Weight
		score += fs.Weighted

		if ok && f.Floor > 0 && fs.Score < f.Floor {
			issue := f.FloorIssue
			if issue == "" {
				issue = fmt.Sprintf("%s scored %.2f, below its %.2f floor", f.Name, fs.Score, f.Floor)
			}
			result.Issues = append(result.Issues, issue)
		}

		result.Breakdown = append(result.Breakdown, fs)
	}

	// Guard against float drift pushing a full-marks score past 1.
	result.Score = clamp01(score)
	result.Passed = result.Score >= spec.Threshold
	return result
}

// FromConfig converts one loaded gate configuration into a Spec.
func FromConfig(gc config.GateConfig) Spec {
	spec := Spec{
		Name:      gc.Name,
		Threshold: gc.Threshold,
		Factors:   make([]FactorSpec, 0, len(gc.Factors)),
	}
	for _, f := range gc.Factors {
		spec.Factors = append(spec.Factors, FactorSpec{
			Name:       f.Name,
			Weight:     f.Weight,
			Floor:      f.Floor,
			FloorIssue: f.FloorIssue,
		})
	}
	return spec
}

// Registry holds the configured gates by name. It is built once at startup
// and read-only afterwards.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry builds a registry from loaded gate configurations.
func NewRegistry(gates []config.GateConfig) *Registry {
	specs := make(map[string]Spec, len(gates))
	for _, gc := range gates {
		specs[gc.Name] = FromConfig(gc)
	}
	return &Registry{specs: specs}
}

// Lookup returns the spec for name. The second return reports whether a gate
// with that name is configured.
func (r *Registry) Lookup(name string) (Spec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Names returns the configured gate names, unordered.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	return names
}

// ValidateSpec checks that the spec's weights sum to 1.0 within tolerance
// and its threshold is usable. Mirrors config validation for specs built in
// code rather than loaded from file.
func ValidateSpec(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("gate name must not be empty")
	}
	if spec.Threshold <= 0 || spec.Threshold > 1 {
		return fmt.Errorf("gate %s: threshold %.4f must be in (0,1]", spec.Name, spec.Threshold)
	}
	var sum float64
	for _, f := range spec.Factors {
		if f.Weight < 0 {
			return fmt.Errorf("gate %s: factor %s has negative weight", spec.Name, f.Name)
		}
		sum += f.Weight
	}
	if len(spec.Factors) > 0 && math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("gate %s: factor weights sum to %.4f, want 1.0", spec.Name, sum)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
