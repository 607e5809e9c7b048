package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/100PercentTuna/the-undertow-sub000/agent"
	"github.com/100PercentTuna/the-undertow-sub000/gate"
	"github.com/100PercentTuna/the-undertow-sub000/internal/metrics"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// Mode selects how a stage runs its steps.
type Mode string

const (
	// ModeSequential runs steps in order; each sees its predecessors' output.
	ModeSequential Mode = "sequential"
	// ModeParallel fans steps out and joins all of them; no step sees a
	// sibling's output.
	ModeParallel Mode = "parallel"
)

// InputBuilder assembles one step's input from the accumulated run state.
// Builders run on the orchestrator goroutine, never concurrently.
type InputBuilder func(*RunState) agent.Input

// AgentStep binds one capability to its input.
type AgentStep struct {
	AgentID string
	Build   InputBuilder
}

// StageSpec declares one pipeline stage.
type StageSpec struct {
	Name  string
	Mode  Mode
	Steps []AgentStep
	// Gate names the quality gate evaluated after the stage, if any.
	Gate string
}

// Invoker is the slice of the gateway the orchestrator needs. Invoke never
// returns an error; failures travel inside the outcome.
type Invoker interface {
	Invoke(ctx context.Context, agentID string, in agent.Input) types.AgentOutcome
}

// RunState accumulates the outputs of one run. Only the orchestrator
// goroutine mutates it: parallel workers write into indexed slots and their
// outputs are recorded after the join, so no lock is needed.
type RunState struct {
	Story    *types.StoryContext
	Analysis *types.AnalysisContext

	outputs map[string]types.AgentOutput
	// ordered keeps insertion order so gate metrics are deterministic when
	// two outputs share a factor name: the later output wins.
	ordered []types.AgentOutput
}

// NewRunState starts the state for one story.
func NewRunState(story *types.StoryContext, analysis *types.AnalysisContext) *RunState {
	return &RunState{
		Story:    story,
		Analysis: analysis,
		outputs:  make(map[string]types.AgentOutput),
	}
}

// Record stores an output under its kind tag. Recording a kind twice keeps
// the newest output in both the map and the factor ordering.
func (s *RunState) Record(out types.AgentOutput) {
	if out == nil {
		return
	}
	s.outputs[out.Kind()] = out
	s.ordered = append(s.ordered, out)
}

// Output returns the most recent output of the given kind.
func (s *RunState) Output(kind string) (types.AgentOutput, bool) {
	out, ok := s.outputs[kind]
	return out, ok
}

// Prior returns a copy of the accumulated outputs keyed by kind. Builders
// attach this to inputs, and inputs outlive the stage that built them, so
// the live map is never shared.
func (s *RunState) Prior() map[string]types.AgentOutput {
	prior := make(map[string]types.AgentOutput, len(s.outputs))
	for kind, out := range s.outputs {
		prior[kind] = out
	}
	return prior
}

// Claims returns the claims the adversarial and verification stages work
// over: the uncertainty audit's claim list when present, the synthesis key
// claims as second choice, the raw key events as a floor.
func (s *RunState) Claims() []string {
	if out, ok := s.outputs["uncertainty_report"]; ok {
		if rep, ok := out.(*types.UncertaintyReport); ok && len(rep.Claims) > 0 {
			claims := make([]string, 0, len(rep.Claims))
			for _, c := range rep.Claims {
				claims = append(claims, c.Claim)
			}
			return claims
		}
	}
	if out, ok := s.outputs["synthesis_draft"]; ok {
		if draft, ok := out.(*types.SynthesisDraft); ok && len(draft.KeyClaims) > 0 {
			return append([]string(nil), draft.KeyClaims...)
		}
	}
	return append([]string(nil), s.Story.KeyEvents...)
}

// GateMetrics flattens every recorded output's quality factors into one
// metric map, later outputs overwriting earlier ones, plus the synthetic
// stage_quality metric for the stage under evaluation.
func (s *RunState) GateMetrics(stageQuality float64) map[string]float64 {
	m := make(map[string]float64)
	for _, out := range s.ordered {
		for _, f := range out.QualityFactors() {
			m[f.Name] = f.Score
		}
	}
	m["stage_quality"] = stageQuality
	return m
}

// Orchestrator runs stages against an invoker and evaluates their gates.
type Orchestrator struct {
	invoker   Invoker
	gates     *gate.Registry
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewOrchestrator wires a stage runner. The gate registry and collector may
// be nil; stages then run ungated and unmeasured.
func NewOrchestrator(invoker Invoker, gates *gate.Registry, collector *metrics.Collector, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		invoker:   invoker,
		gates:     gates,
		collector: collector,
		logger:    logger.With(zap.String("component", "orchestrator")),
	}
}

// RunStage executes one stage and returns its aggregate result. Failed steps
// become issues on the result, never errors: the pipeline decides what a
// failure means, not the stage.
func (o *Orchestrator) RunStage(ctx context.Context, spec StageSpec, state *RunState) StageResult {
	var outcomes []types.AgentOutcome
	if spec.Mode == ModeParallel {
		outcomes = o.fanOut(ctx, spec, state)
	} else {
		outcomes = o.sequence(ctx, spec, state)
	}

	result := aggregate(spec, outcomes)
	for i, oc := range outcomes {
		if oc.Success {
			continue
		}
		result.Issues = append(result.Issues,
			fmt.Sprintf("agent %s failed: %s", oc.AgentID, oc.FailureMessage()))
		if spec.Mode == ModeSequential && i < len(outcomes)-1 {
			result.Issues = append(result.Issues, "missing dependency: "+oc.AgentID)
		}
	}

	o.evaluateGate(spec, state, &result)

	o.collector.RecordStage(spec.Name, result.Duration, result.Quality)
	o.logger.Info("stage completed",
		zap.String("stage", spec.Name),
		zap.Bool("success", result.Success),
		zap.Float64("quality", result.Quality),
		zap.Float64("cost", result.Cost),
		zap.Duration("duration", result.Duration),
		zap.Int("issues", len(result.Issues)),
	)
	return result
}

// sequence runs steps in order. Successful outputs are recorded before the
// next step builds its input, so downstream steps see upstream work even
// inside one stage. A failed step does not stop the stage: later steps run
// with whatever context exists.
func (o *Orchestrator) sequence(ctx context.Context, spec StageSpec, state *RunState) []types.AgentOutcome {
	outcomes := make([]types.AgentOutcome, 0, len(spec.Steps))
	for _, step := range spec.Steps {
		in := step.Build(state)
		oc := o.invoker.Invoke(ctx, step.AgentID, in)
		if oc.Success {
			state.Record(oc.Output)
		}
		outcomes = append(outcomes, oc)
	}
	return outcomes
}

// fanOut runs every step concurrently and joins all of them. Workers return
// nil always; the invoker never errors, so the group exists for the join and
// the context plumbing, not for short-circuiting. Inputs are built before
// the goroutines start and outputs are recorded after the join, in
// declaration order, keeping RunState single-writer.
func (o *Orchestrator) fanOut(ctx context.Context, spec StageSpec, state *RunState) []types.AgentOutcome {
	outcomes := make([]types.AgentOutcome, len(spec.Steps))
	inputs := make([]agent.Input, len(spec.Steps))
	for i, step := range spec.Steps {
		inputs[i] = step.Build(state)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, step := range spec.Steps {
		g.Go(func() error {
			outcomes[i] = o.invoker.Invoke(gctx, step.AgentID, inputs[i])
			return nil
		})
	}
	_ = g.Wait()

	for i := range outcomes {
		if outcomes[i].Success {
			state.Record(outcomes[i].Output)
		}
	}
	return outcomes
}

func (o *Orchestrator) evaluateGate(spec StageSpec, state *RunState, result *StageResult) {
	if spec.Gate == "" || o.gates == nil {
		return
	}
	gspec, ok := o.gates.Lookup(spec.Gate)
	if !ok {
		result.Issues = append(result.Issues, fmt.Sprintf("gate %q is not configured", spec.Gate))
		return
	}
	gr := gate.Evaluate(gspec, state.GateMetrics(result.Quality))
	result.Gate = &gr
	o.collector.RecordGateEvaluation(gr.Gate, gr.Score, gr.Passed)
	if !gr.Passed {
		o.logger.Warn("gate failed",
			zap.String("gate", gr.Gate),
			zap.Float64("score", gr.Score),
			zap.Float64("threshold", gr.Threshold),
			zap.Strings("issues", gr.Issues),
		)
	}
}

// aggregate folds outcomes into the stage result. Sequential stages take the
// summed duration, parallel stages the longest worker; cost always sums and
// quality is the mean with failures counted at zero.
func aggregate(spec StageSpec, outcomes []types.AgentOutcome) StageResult {
	result := StageResult{Name: spec.Name, Success: true, Outcomes: outcomes}
	var qualitySum float64
	var longest time.Duration
	for _, oc := range outcomes {
		result.Cost += oc.Cost
		result.Duration += oc.Duration
		qualitySum += oc.Quality
		if oc.Duration > longest {
			longest = oc.Duration
		}
		if !oc.Success {
			result.Success = false
		}
	}
	if spec.Mode == ModeParallel {
		result.Duration = longest
	}
	if len(outcomes) > 0 {
		result.Quality = qualitySum / float64(len(outcomes))
	}
	return result
}
