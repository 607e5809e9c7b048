package types

import "strings"

// Factor is one named quality signal in [0,1]. Agent outputs expose their
// own factors; the gate evaluator and the invocation layer only consume the
// resulting floats.
type Factor struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// AgentOutput is the tagged-variant interface implemented by every agent
// payload. Scoring is explicit per variant: each output type knows which
// completeness and calibration signals it can vouch for. No reflection.
type AgentOutput interface {
	// Kind returns the stable variant tag of the payload.
	Kind() string
	// QualityFactors returns the output's named quality signals, each in [0,1].
	QualityFactors() []Factor
}

// MeanFactorScore collapses an output's factors into the single quality
// score attached to its AgentOutcome. Outputs with no factors score zero.
func MeanFactorScore(out AgentOutput) float64 {
	if out == nil {
		return 0
	}
	factors := out.QualityFactors()
	if len(factors) == 0 {
		return 0
	}
	var sum float64
	for _, f := range factors {
		sum += clamp01(f.Score)
	}
	return sum / float64(len(factors))
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

// ratio scores count/target capped at 1. Targets encode the "enough" point
// of a coverage heuristic, not a hard requirement.
func ratio(count, target int) float64 {
	if target <= 0 {
		return 1
	}
	return clamp01(float64(count) / float64(target))
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// -----------------------------------------------------------------------------
// Foundation outputs
// -----------------------------------------------------------------------------

// ActorMotive is one actor's decoded position in a MotivationAnalysis.
type ActorMotive struct {
	Actor          string   `json:"actor"`
	StatedPosition string   `json:"stated_position"`
	ActualPosition string   `json:"actual_position"`
	Interests      []string `json:"interests"`
}

func (m ActorMotive) complete() bool {
	return m.StatedPosition != "" && m.ActualPosition != "" && len(m.Interests) > 0
}

// MotivationAnalysis decodes what each primary actor wants versus what it
// says it wants, plus a prose synthesis consumed by downstream stages.
type MotivationAnalysis struct {
	Motives         []ActorMotive `json:"motives"`
	RequestedActors int           `json:"requested_actors"`
	Synthesis       string        `json:"synthesis"`
}

func (a *MotivationAnalysis) Kind() string { return "motivation_analysis" }

func (a *MotivationAnalysis) QualityFactors() []Factor {
	complete := 0
	for _, m := range a.Motives {
		if m.complete() {
			complete++
		}
	}
	requested := a.RequestedActors
	if requested == 0 {
		requested = len(a.Motives)
	}
	return []Factor{
		{Name: "actor_coverage", Score: ratio(len(a.Motives), requested)},
		{Name: "motive_depth", Score: ratio(complete, len(a.Motives))},
		{Name: "synthesis_depth", Score: ratio(wordCount(a.Synthesis), 120)},
	}
}

// ConsequenceChain traces one trigger through ordered knock-on effects.
type ConsequenceChain struct {
	Trigger     string   `json:"trigger"`
	FirstOrder  []string `json:"first_order"`
	SecondOrder []string `json:"second_order"`
	ThirdOrder  []string `json:"third_order"`
	Probability float64  `json:"probability"`
}

// Depth returns how many orders of consequence the chain reaches, 0-3.
func (c ConsequenceChain) Depth() int {
	switch {
	case len(c.ThirdOrder) > 0:
		return 3
	case len(c.SecondOrder) > 0:
		return 2
	case len(c.FirstOrder) > 0:
		return 1
	default:
		return 0
	}
}

// ChainMap is the consequence-chaining output of the foundation stage.
type ChainMap struct {
	Chains []ConsequenceChain `json:"chains"`
}

func (c *ChainMap) Kind() string { return "chain_map" }

func (c *ChainMap) QualityFactors() []Factor {
	var depthSum float64
	calibrated := 0
	for _, ch := range c.Chains {
		depthSum += float64(ch.Depth()) / 3
		if ch.Probability > 0 && ch.Probability < 1 {
			calibrated++
		}
	}
	depth := 0.0
	if len(c.Chains) > 0 {
		depth = depthSum / float64(len(c.Chains))
	}
	return []Factor{
		{Name: "chain_depth", Score: depth},
		{Name: "branch_coverage", Score: ratio(len(c.Chains), 3)},
		{Name: "probability_calibration", Score: ratio(calibrated, len(c.Chains))},
	}
}

// -----------------------------------------------------------------------------
// Deep-analysis outputs (parallel fan-out)
// -----------------------------------------------------------------------------

// DecodedSignal is one piece of diplomatic language read for subtext.
type DecodedSignal struct {
	Source       string  `json:"source"`
	Surface      string  `json:"surface"`
	Reading      string  `json:"reading"`
	Significance float64 `json:"significance"`
}

// SubtletyReading decodes understatement, omission, and coded language.
type SubtletyReading struct {
	Signals       []DecodedSignal `json:"signals"`
	OmissionNotes []string        `json:"omission_notes"`
}

func (s *SubtletyReading) Kind() string { return "subtlety_reading" }

func (s *SubtletyReading) QualityFactors() []Factor {
	read := 0
	for _, sig := range s.Signals {
		if sig.Reading != "" && sig.Significance > 0 {
			read++
		}
	}
	return []Factor{
		{Name: "signal_yield", Score: ratio(len(s.Signals), 4)},
		{Name: "reading_depth", Score: ratio(read, len(s.Signals))},
		{Name: "omission_awareness", Score: ratio(len(s.OmissionNotes), 2)},
	}
}

// Alignment groups actors pulling in the same direction.
type Alignment struct {
	Actors    []string `json:"actors"`
	Basis     string   `json:"basis"`
	Stability float64  `json:"stability"`
}

// PowerGeometry maps alignments, pressure points, and asymmetries.
type PowerGeometry struct {
	Alignments     []Alignment `json:"alignments"`
	PressurePoints []string    `json:"pressure_points"`
	Asymmetries    []string    `json:"asymmetries"`
}

func (g *PowerGeometry) Kind() string { return "power_geometry" }

func (g *PowerGeometry) QualityFactors() []Factor {
	clear := 0
	for _, a := range g.Alignments {
		if len(a.Actors) >= 2 && a.Basis != "" {
			clear++
		}
	}
	return []Factor{
		{Name: "alignment_clarity", Score: ratio(clear, len(g.Alignments))},
		{Name: "pressure_mapping", Score: ratio(len(g.PressurePoints), 3)},
		{Name: "asymmetry_coverage", Score: ratio(len(g.Asymmetries), 2)},
	}
}

// HistoricalEcho is one past event whose shape rhymes with the story.
type HistoricalEcho struct {
	Period    string  `json:"period"`
	Event     string  `json:"event"`
	Parallel  string  `json:"parallel"`
	Relevance float64 `json:"relevance"`
}

// DeepContext grounds the story in history and regional dynamics.
type DeepContext struct {
	Echoes           []HistoricalEcho `json:"echoes"`
	RegionalDynamics string           `json:"regional_dynamics"`
	Precedents       []string         `json:"precedents"`
}

func (d *DeepContext) Kind() string { return "deep_context" }

func (d *DeepContext) QualityFactors() []Factor {
	var relevance float64
	for _, e := range d.Echoes {
		relevance += clamp01(e.Relevance)
	}
	if len(d.Echoes) > 0 {
		relevance /= float64(len(d.Echoes))
	}
	return []Factor{
		{Name: "context_depth", Score: ratio(len(d.Echoes), 3)},
		{Name: "echo_relevance", Score: relevance},
		{Name: "regional_grounding", Score: ratio(wordCount(d.RegionalDynamics), 80)},
	}
}

// Connection links the story to another running story or structural pattern.
type Connection struct {
	Story        string  `json:"story"`
	Relationship string  `json:"relationship"`
	Strength     float64 `json:"strength"`
}

// ConnectionMap relates the story to the wider news graph.
type ConnectionMap struct {
	Connections []Connection `json:"connections"`
	Patterns    []string     `json:"patterns"`
}

func (c *ConnectionMap) Kind() string { return "connection_map" }

func (c *ConnectionMap) QualityFactors() []Factor {
	var strength float64
	for _, conn := range c.Connections {
		strength += clamp01(conn.Strength)
	}
	if len(c.Connections) > 0 {
		strength /= float64(len(c.Connections))
	}
	return []Factor{
		{Name: "connection_breadth", Score: ratio(len(c.Connections), 3)},
		{Name: "link_strength", Score: strength},
		{Name: "pattern_detection", Score: ratio(len(c.Patterns), 2)},
	}
}

// -----------------------------------------------------------------------------
// Uncertainty and synthesis outputs
// -----------------------------------------------------------------------------

// ClaimConfidence is one claim with its calibrated confidence.
type ClaimConfidence struct {
	Claim      string  `json:"claim"`
	Confidence float64 `json:"confidence"`
	Disputed   bool    `json:"disputed"`
	Basis      string  `json:"basis"`
}

// UncertaintyReport makes the analysis's confidence explicit per claim.
type UncertaintyReport struct {
	Claims            []ClaimConfidence `json:"claims"`
	OverallConfidence float64           `json:"overall_confidence"`
	KnownUnknowns     []string          `json:"known_unknowns"`
}

func (u *UncertaintyReport) Kind() string { return "uncertainty_report" }

// DisputedRatio returns the fraction of claims marked disputed. An empty
// report has nothing in dispute.
func (u *UncertaintyReport) DisputedRatio() float64 {
	if len(u.Claims) == 0 {
		return 0
	}
	disputed := 0
	for _, c := range u.Claims {
		if c.Disputed {
			disputed++
		}
	}
	return float64(disputed) / float64(len(u.Claims))
}

func (u *UncertaintyReport) QualityFactors() []Factor {
	return []Factor{
		{Name: "claim_confidence", Score: clamp01(u.OverallConfidence)},
		{Name: "claim_coverage", Score: ratio(len(u.Claims), 5)},
		{Name: "unknowns_disclosed", Score: ratio(len(u.KnownUnknowns), 2)},
	}
}

// SynthesisDraft is the integrated analysis the writing stage works from.
type SynthesisDraft struct {
	Thesis    string   `json:"thesis"`
	Sections  []string `json:"sections"`
	KeyClaims []string `json:"key_claims"`
	WordCount int      `json:"word_count"`
}

func (s *SynthesisDraft) Kind() string { return "synthesis_draft" }

func (s *SynthesisDraft) QualityFactors() []Factor {
	thesis := 0.0
	if wordCount(s.Thesis) >= 8 {
		thesis = 1.0
	} else if s.Thesis != "" {
		thesis = 0.5
	}
	return []Factor{
		{Name: "thesis_support", Score: thesis * ratio(len(s.KeyClaims), 4)},
		{Name: "structure", Score: ratio(len(s.Sections), 3)},
		{Name: "synthesis_length", Score: ratio(s.WordCount, 800)},
	}
}

// -----------------------------------------------------------------------------
// Adversarial, verification, and writing outputs
// -----------------------------------------------------------------------------

// DebateTranscript summarizes the adversarial review for gate evaluation.
// The debate engine owns the full round-by-round record; this payload keeps
// only what quality gating needs.
type DebateTranscript struct {
	Rounds               int      `json:"rounds"`
	Sustained            int      `json:"sustained"`
	Overruled            int      `json:"overruled"`
	Partial              int      `json:"partial"`
	ConfidenceAdjustment float64  `json:"confidence_adjustment"`
	Strengthened         bool     `json:"strengthened"`
	Insights             []string `json:"insights"`
}

func (d *DebateTranscript) Kind() string { return "debate_transcript" }

func (d *DebateTranscript) QualityFactors() []Factor {
	total := d.Sustained + d.Overruled + d.Partial
	// Surviving a hard debate scores better than never being challenged at
	// all, but an unchallenged analysis is still a convergence signal.
	survival := 1.0
	if total > 0 {
		survival = 1 - float64(d.Sustained)/float64(total)
	}
	return []Factor{
		{Name: "challenge_survival", Score: survival},
		{Name: "ruling_coverage", Score: ratio(total, d.Rounds)},
		{Name: "insight_yield", Score: ratio(len(d.Insights), 2)},
	}
}

// CheckedClaim is one claim run through verification.
type CheckedClaim struct {
	Claim    string `json:"claim"`
	Verified bool   `json:"verified"`
	Sources  int    `json:"sources"`
	Note     string `json:"note,omitempty"`
}

// VerificationReport is the fact-check output.
type VerificationReport struct {
	Checked []CheckedClaim `json:"checked"`
}

func (v *VerificationReport) Kind() string { return "verification_report" }

func (v *VerificationReport) QualityFactors() []Factor {
	verified, sources := 0, 0
	for _, c := range v.Checked {
		if c.Verified {
			verified++
		}
		sources += c.Sources
	}
	meanSources := 0.0
	if len(v.Checked) > 0 {
		meanSources = float64(sources) / float64(len(v.Checked))
	}
	return []Factor{
		{Name: "verification_pass", Score: ratio(verified, len(v.Checked))},
		{Name: "source_depth", Score: clamp01(meanSources / 2)},
		{Name: "check_coverage", Score: ratio(len(v.Checked), 5)},
	}
}

// ArticleDraft is the writing stage's output.
type ArticleDraft struct {
	Title     string `json:"title"`
	Lede      string `json:"lede"`
	Body      string `json:"body"`
	WordCount int    `json:"word_count"`
}

func (a *ArticleDraft) Kind() string { return "article_draft" }

func (a *ArticleDraft) QualityFactors() []Factor {
	parts := 0
	if a.Title != "" {
		parts++
	}
	if a.Lede != "" {
		parts++
	}
	if a.Body != "" {
		parts++
	}
	return []Factor{
		{Name: "completeness", Score: ratio(parts, 3)},
		{Name: "draft_length", Score: ratio(a.WordCount, 900)},
	}
}

// EditedArticle is the editing stage's output and the pipeline's publishable
// artifact.
type EditedArticle struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	WordCount   int      `json:"word_count"`
	EditNotes   []string `json:"edit_notes"`
	Readability float64  `json:"readability"`
}

func (e *EditedArticle) Kind() string { return "edited_article" }

func (e *EditedArticle) QualityFactors() []Factor {
	parts := 0
	if e.Title != "" {
		parts++
	}
	if e.Body != "" {
		parts++
	}
	return []Factor{
		{Name: "completeness", Score: ratio(parts, 2)},
		{Name: "readability", Score: clamp01(e.Readability)},
		{Name: "edit_rigor", Score: ratio(len(e.EditNotes), 3)},
	}
}
