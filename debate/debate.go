// Package debate runs the adversarial review protocol over an analysis's
// claims: a challenger attacks, an advocate responds, a judge rules. The
// protocol is best-effort end to end; individual role failures skip a pass
// or a challenge, never the whole debate, and a summary is always produced
// from whatever rounds completed.
package debate

import (
	"context"
	"time"
)

// Severity orders challenges by how much damage they would do if sustained.
type Severity string

const (
	SeverityMinor       Severity = "minor"
	SeverityModerate    Severity = "moderate"
	SeveritySignificant Severity = "significant"
	SeverityCritical    Severity = "critical"
)

// Rank returns the severity's position in the minor < critical order.
func (s Severity) Rank() int {
	switch s {
	case SeverityMinor:
		return 0
	case SeverityModerate:
		return 1
	case SeveritySignificant:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// ResponseType classifies how the advocate answered a challenge.
type ResponseType string

const (
	ResponseConcede        ResponseType = "concede"
	ResponsePartialConcede ResponseType = "partial_concede"
	ResponseDefend         ResponseType = "defend"
	ResponseRebut          ResponseType = "rebut"
)

// Verdict is the judge's ruling on one challenge.
type Verdict string

const (
	VerdictSustained Verdict = "sustained"
	VerdictOverruled Verdict = "overruled"
	VerdictPartial   Verdict = "partial"
)

// Challenge is one attack on a specific claim.
type Challenge struct {
	ID          string   `json:"id"`
	TargetClaim string   `json:"target_claim"`
	Text        string   `json:"text"`
	Severity    Severity `json:"severity"`
}

// Response is the advocate's answer to one challenge.
type Response struct {
	ChallengeID string       `json:"challenge_id"`
	Type        ResponseType `json:"type"`
	Text        string       `json:"text"`
	Evidence    []string     `json:"evidence,omitempty"`
}

// Ruling is the judge's decision on one challenge/response pair.
type Ruling struct {
	ChallengeID    string  `json:"challenge_id"`
	Verdict        Verdict `json:"verdict"`
	RequiredAction string  `json:"required_action,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// Round is one completed challenge/response/ruling triple. Rounds number
// sequentially across the whole debate, not per challenger pass.
type Round struct {
	Number    int       `json:"number"`
	Challenge Challenge `json:"challenge"`
	Response  Response  `json:"response"`
	Ruling    Ruling    `json:"ruling"`
}

// Summary aggregates the verdict distribution of a finished debate.
type Summary struct {
	Rounds               int      `json:"rounds"`
	Sustained            int      `json:"sustained"`
	Overruled            int      `json:"overruled"`
	Partial              int      `json:"partial"`
	ConfidenceAdjustment float64  `json:"confidence_adjustment"`
	AnalysisStrengthened bool     `json:"analysis_strengthened"`
	Insights             []string `json:"insights,omitempty"`
}

// Transcript is the debate engine's complete output.
type Transcript struct {
	Rounds   []Round       `json:"rounds"`
	Summary  Summary       `json:"summary"`
	Duration time.Duration `json:"duration"`
}

// Challenger generates challenges against the claims, seeing prior rounds so
// it does not repeat itself. Returning zero challenges signals convergence.
type Challenger interface {
	Challenge(ctx context.Context, claims []string, prior []Round) ([]Challenge, error)
}

// Advocate defends the analysis against one challenge.
type Advocate interface {
	Respond(ctx context.Context, challenge Challenge) (Response, error)
}

// Judge rules on one challenge given the advocate's response.
type Judge interface {
	Rule(ctx context.Context, challenge Challenge, response Response) (Ruling, error)
}

// Confidence adjustment coefficients. A sustained challenge costs more than
// an overruled one earns; the net adjustment is clamped to [-0.3, 0.1].
const (
	sustainedPenalty = -0.05
	overruledBonus   = 0.02
	partialPenalty   = -0.02
	adjustmentFloor  = -0.3
	adjustmentCeil   = 0.1
)

// Summarize derives the Summary for a set of completed rounds.
func Summarize(rounds []Round) Summary {
	s := Summary{Rounds: len(rounds)}
	for _, r := range rounds {
		switch r.Ruling.Verdict {
		case VerdictSustained:
			s.Sustained++
			if r.Ruling.RequiredAction != "" {
				s.Insights = append(s.Insights, r.Ruling.RequiredAction)
			}
		case VerdictOverruled:
			s.Overruled++
		case VerdictPartial:
			s.Partial++
		}
	}
	s.ConfidenceAdjustment = AdjustConfidence(s.Sustained, s.Overruled, s.Partial)
	s.AnalysisStrengthened = s.Overruled > s.Sustained
	return s
}

// AdjustConfidence computes the net confidence adjustment for the given
// verdict counts, clamped to [-0.3, 0.1].
func AdjustConfidence(sustained, overruled, partial int) float64 {
	adj := sustainedPenalty*float64(sustained) +
		overruledBonus*float64(overruled) +
		partialPenalty*float64(partial)
	if adj < adjustmentFloor {
		return adjustmentFloor
	}
	if adj > adjustmentCeil {
		return adjustmentCeil
	}
	return adj
}
