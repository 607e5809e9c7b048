package pipeline

import (
	"github.com/100PercentTuna/the-undertow-sub000/agent"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// Stage names. These key the configured stage weights, so renaming one here
// silently zeroes its weight in existing configs.
const (
	StageFoundation   = "Foundation"
	StageDeepAnalysis = "Deep Analysis"
	StageUncertainty  = "Uncertainty"
	StageSynthesis    = "Synthesis"
	StageAdversarial  = "Adversarial"
	StageVerification = "Verification"
	StageWriting      = "Writing"
	StageEditing      = "Editing"
)

// Gate names as configured by config.DefaultGates.
const (
	GateFoundation  = "Foundation"
	GateAnalysis    = "Analysis"
	GateAdversarial = "Adversarial"
	GateOutput      = "Output"
)

func baseInput(s *RunState) agent.Input {
	return agent.Input{
		Story:    s.Story,
		Analysis: s.Analysis,
		Prior:    s.Prior(),
	}
}

// FoundationStage analyzes motives first and consequence chains second; the
// chain mapping reads the motivation synthesis out of the prior outputs, so
// the two must not run concurrently.
func FoundationStage() StageSpec {
	return StageSpec{
		Name: StageFoundation,
		Mode: ModeSequential,
		Steps: []AgentStep{
			{AgentID: agent.AgentMotivation, Build: baseInput},
			{AgentID: agent.AgentChains, Build: baseInput},
		},
		Gate: GateFoundation,
	}
}

// DeepAnalysisStage fans out the four independent readings of the story.
// None of them consume a sibling's output.
func DeepAnalysisStage() StageSpec {
	return StageSpec{
		Name: StageDeepAnalysis,
		Mode: ModeParallel,
		Steps: []AgentStep{
			{AgentID: agent.AgentSubtlety, Build: baseInput},
			{AgentID: agent.AgentPower, Build: baseInput},
			{AgentID: agent.AgentContext, Build: baseInput},
			{AgentID: agent.AgentConnections, Build: baseInput},
		},
	}
}

// UncertaintyStage audits what the analysis actually knows.
func UncertaintyStage() StageSpec {
	return StageSpec{
		Name: StageUncertainty,
		Mode: ModeSequential,
		Steps: []AgentStep{
			{AgentID: agent.AgentUncertainty, Build: baseInput},
		},
	}
}

// SynthesisStage integrates everything produced so far. The analysis gate
// sits here rather than after deep analysis because claim confidence and
// thesis support only exist once uncertainty and synthesis have run.
func SynthesisStage() StageSpec {
	return StageSpec{
		Name: StageSynthesis,
		Mode: ModeSequential,
		Steps: []AgentStep{
			{AgentID: agent.AgentSynthesis, Build: baseInput},
		},
		Gate: GateAnalysis,
	}
}

// VerificationStage fact-checks the claims the uncertainty audit surfaced.
func VerificationStage() StageSpec {
	return StageSpec{
		Name: StageVerification,
		Mode: ModeSequential,
		Steps: []AgentStep{
			{AgentID: agent.AgentVerification, Build: func(s *RunState) agent.Input {
				in := baseInput(s)
				in.Claims = s.Claims()
				return in
			}},
		},
	}
}

// WritingStage turns the synthesis into a draft article.
func WritingStage() StageSpec {
	return StageSpec{
		Name: StageWriting,
		Mode: ModeSequential,
		Steps: []AgentStep{
			{AgentID: agent.AgentWriter, Build: baseInput},
		},
	}
}

// EditingStage polishes the draft and carries the output gate: nothing
// leaves the pipeline without the edited article clearing it.
func EditingStage() StageSpec {
	return StageSpec{
		Name: StageEditing,
		Mode: ModeSequential,
		Steps: []AgentStep{
			{AgentID: agent.AgentEditor, Build: func(s *RunState) agent.Input {
				in := baseInput(s)
				if out, ok := s.Output("article_draft"); ok {
					if draft, ok := out.(*types.ArticleDraft); ok {
						in.Draft = draft.Body
					}
				}
				return in
			}},
		},
		Gate: GateOutput,
	}
}
