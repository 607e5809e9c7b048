package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/100PercentTuna/the-undertow-sub000/config"
	"github.com/100PercentTuna/the-undertow-sub000/debate"
	"github.com/100PercentTuna/the-undertow-sub000/escalation"
	"github.com/100PercentTuna/the-undertow-sub000/internal/metrics"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// DebaterFactory builds a fresh challenger/advocate/judge bench for one run.
// A fresh bench per run keeps challenger state from leaking across stories.
type DebaterFactory func() (debate.Challenger, debate.Advocate, debate.Judge)

// ResultStore persists terminal pipeline results. Persistence failures are
// logged and swallowed: a finished analysis is worth more than its audit row.
type ResultStore interface {
	SavePipelineResult(ctx context.Context, result *PipelineResult) error
}

// Deps carries the controller's collaborators. Orchestrator is required;
// everything else degrades gracefully when nil.
type Deps struct {
	Orchestrator *Orchestrator
	Debaters     DebaterFactory
	Decider      *escalation.Decider
	Escalations  *escalation.Manager
	Store        ResultStore
	Collector    *metrics.Collector
	Logger       *zap.Logger
}

// Controller runs stories through the full editorial sequence. Run never
// returns an error and never panics outward; every run terminates in a
// PipelineResult.
type Controller struct {
	cfg          config.PipelineConfig
	debateCfg    config.DebateConfig
	orchestrator *Orchestrator
	debaters     DebaterFactory
	decider      *escalation.Decider
	escalations  *escalation.Manager
	store        ResultStore
	collector    *metrics.Collector
	tracer       trace.Tracer
	logger       *zap.Logger
}

// NewController wires a pipeline controller.
func NewController(cfg config.PipelineConfig, debateCfg config.DebateConfig, deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.StageWeights) == 0 {
		cfg.StageWeights = config.DefaultPipelineConfig().StageWeights
	}
	return &Controller{
		cfg:          cfg,
		debateCfg:    debateCfg,
		orchestrator: deps.Orchestrator,
		debaters:     deps.Debaters,
		decider:      deps.Decider,
		escalations:  deps.Escalations,
		store:        deps.Store,
		collector:    deps.Collector,
		tracer:       otel.Tracer("github.com/100PercentTuna/the-undertow-sub000/pipeline"),
		logger:       logger.With(zap.String("component", "pipeline")),
	}
}

// Run takes one story through every enabled stage and returns the terminal
// result. Gate failures flag the run for review and continue; the only hard
// stop is the top-level safety net, which converts a panic anywhere below
// into a failed result rather than letting it escape.
func (c *Controller) Run(ctx context.Context, story *types.StoryContext, analysis *types.AnalysisContext) (result *PipelineResult) {
	started := time.Now()
	result = &PipelineResult{
		RunID:     uuid.NewString(),
		StoryID:   story.ID,
		Headline:  story.Headline,
		StartedAt: started,
	}

	ctx, span := c.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", result.RunID),
		attribute.String("story_id", story.ID),
	))

	var panicked, invalid bool
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			reason := fmt.Sprintf("pipeline error: %v", r)
			result.RequiresHumanReview = true
			result.ReviewReasons = append(result.ReviewReasons, reason)
			span.SetStatus(codes.Error, reason)
			c.logger.Error("pipeline run panicked",
				zap.String("run_id", result.RunID),
				zap.String("story_id", result.StoryID),
				zap.Any("panic", r),
			)
		}
		result.TotalDuration = time.Since(started)
		result.CompletedAt = time.Now().UTC()
		c.finalize(ctx, story, result, panicked, invalid)
		span.SetAttributes(
			attribute.Bool("success", result.Success),
			attribute.Float64("final_quality", result.FinalQuality),
			attribute.Bool("requires_review", result.RequiresHumanReview),
		)
		span.End()
	}()

	if err := story.Validate(); err != nil {
		invalid = true
		result.RequiresHumanReview = true
		result.ReviewReasons = append(result.ReviewReasons, err.Error())
		return result
	}

	c.logger.Info("pipeline run started",
		zap.String("run_id", result.RunID),
		zap.String("story_id", story.ID),
		zap.String("headline", story.Headline),
	)

	state := NewRunState(story, analysis)

	c.runStage(ctx, FoundationStage(), state, result)
	c.runStage(ctx, DeepAnalysisStage(), state, result)
	c.runStage(ctx, UncertaintyStage(), state, result)

	if out, ok := state.Output("uncertainty_report"); ok {
		if rep, ok := out.(*types.UncertaintyReport); ok {
			result.Confidence = rep.OverallConfidence
			result.DisputedRatio = rep.DisputedRatio()
		}
	}

	c.runStage(ctx, SynthesisStage(), state, result)

	if c.cfg.EnableAdversarial && c.debaters != nil {
		c.runAdversarial(ctx, state, result)
	}
	if c.cfg.EnableVerification {
		c.runStage(ctx, VerificationStage(), state, result)
	}

	c.runStage(ctx, WritingStage(), state, result)
	c.runStage(ctx, EditingStage(), state, result)

	if out, ok := state.Output("edited_article"); ok {
		if art, ok := out.(*types.EditedArticle); ok {
			result.Article = art
		}
	}
	return result
}

// runStage executes one stage under its timeout and folds the result into
// the run.
func (c *Controller) runStage(ctx context.Context, spec StageSpec, state *RunState, result *PipelineResult) {
	sctx := ctx
	if c.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, c.cfg.StageTimeout)
		defer cancel()
	}
	sctx, span := c.tracer.Start(sctx, "pipeline.stage",
		trace.WithAttributes(attribute.String("stage", spec.Name)))
	sr := c.orchestrator.RunStage(sctx, spec, state)
	span.SetAttributes(
		attribute.Bool("success", sr.Success),
		attribute.Float64("quality", sr.Quality),
	)
	span.End()

	c.fold(result, sr)
}

// fold appends a stage result and applies the gate policy: a gate failure
// flags the run for review with a reason and the run continues. The output
// gate is not special-cased here because the flag it sets is the same; what
// makes it final is that nothing runs after the editing stage to dilute it.
func (c *Controller) fold(result *PipelineResult, sr StageResult) {
	result.Stages = append(result.Stages, sr)
	result.TotalCost += sr.Cost
	if sr.Gate != nil && !sr.Gate.Passed {
		result.RequiresHumanReview = true
		reason := fmt.Sprintf("%s gate failed: score %.2f below threshold %.2f",
			sr.Gate.Gate, sr.Gate.Score, sr.Gate.Threshold)
		if len(sr.Gate.Issues) > 0 {
			reason += " (" + strings.Join(sr.Gate.Issues, "; ") + ")"
		}
		result.ReviewReasons = append(result.ReviewReasons, reason)
	}
}

// runAdversarial drives the debate engine over the accumulated claims and
// folds the transcript in as a stage of its own. The confidence adjustment
// lands on the run's confidence, clamped to [0, 1].
func (c *Controller) runAdversarial(ctx context.Context, state *RunState, result *PipelineResult) {
	sctx := ctx
	if c.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, c.cfg.StageTimeout)
		defer cancel()
	}
	sctx, span := c.tracer.Start(sctx, "pipeline.stage",
		trace.WithAttributes(attribute.String("stage", StageAdversarial)))
	defer span.End()

	challenger, advocate, judge := c.debaters()
	engine := debate.NewEngine(challenger, advocate, judge, c.debateCfg, c.logger)
	transcript := engine.Run(sctx, state.Claims())

	output := &types.DebateTranscript{
		Rounds:               transcript.Summary.Rounds,
		Sustained:            transcript.Summary.Sustained,
		Overruled:            transcript.Summary.Overruled,
		Partial:              transcript.Summary.Partial,
		ConfidenceAdjustment: transcript.Summary.ConfidenceAdjustment,
		Strengthened:         transcript.Summary.AnalysisStrengthened,
		Insights:             transcript.Summary.Insights,
	}
	state.Record(output)

	quality := types.MeanFactorScore(output)
	sr := StageResult{
		Name:     StageAdversarial,
		Success:  true,
		Quality:  quality,
		Duration: transcript.Duration,
		Outcomes: []types.AgentOutcome{{
			AgentID:  "debate-bench",
			Success:  true,
			Output:   output,
			Quality:  quality,
			Duration: transcript.Duration,
		}},
	}
	c.orchestrator.evaluateGate(StageSpec{Name: StageAdversarial, Gate: GateAdversarial}, state, &sr)

	c.collector.RecordDebateRounds(transcript.Summary.Rounds)
	c.collector.RecordStage(StageAdversarial, sr.Duration, sr.Quality)
	span.SetAttributes(
		attribute.Int("rounds", transcript.Summary.Rounds),
		attribute.Float64("confidence_adjustment", transcript.Summary.ConfidenceAdjustment),
	)

	result.Confidence = clampUnit(result.Confidence + transcript.Summary.ConfidenceAdjustment)
	c.fold(result, sr)
}

// finalize computes the weighted score, decides success, and runs the
// terminal side effects: escalation, persistence, metrics. It is called from
// the Run defer so the panic path gets the same treatment as a clean finish.
func (c *Controller) finalize(ctx context.Context, story *types.StoryContext, result *PipelineResult, panicked, invalid bool) {
	result.FinalQuality = c.weightedQuality(result.Stages)

	allStagesOK := true
	gateFailed := false
	for _, s := range result.Stages {
		if !s.Success {
			allStagesOK = false
		}
		if s.Gate != nil && !s.Gate.Passed {
			gateFailed = true
		}
	}
	result.Success = !panicked && !invalid && allStagesOK &&
		(!c.cfg.StrictGates || !gateFailed)

	// Escalation is judged on analysis signals, so a story that never
	// entered analysis has nothing to judge.
	if !invalid && c.decider != nil {
		signals := escalation.Signals{
			Quality:             result.FinalQuality,
			StageScores:         result.StageScores(),
			Confidence:          result.Confidence,
			DisputedRatio:       result.DisputedRatio,
			Content:             story.Text(),
			Zones:               story.Zones,
			AdversarialConcerns: adversarialConcerns(result),
			SystemError:         panicked || !allStagesOK,
		}
		if escalate, reasons := c.decider.ShouldEscalate(signals); escalate {
			result.RequiresHumanReview = true
			result.ReviewReasons = append(result.ReviewReasons, describeReasons(reasons))
			c.createEscalation(ctx, result, reasons)
		}
	}

	c.collector.RecordPipelineRun(result.Status(), result.TotalDuration, result.TotalCost)
	c.persist(ctx, result)

	c.logger.Info("pipeline run finished",
		zap.String("run_id", result.RunID),
		zap.String("story_id", result.StoryID),
		zap.Bool("success", result.Success),
		zap.Float64("final_quality", result.FinalQuality),
		zap.Float64("confidence", result.Confidence),
		zap.Float64("total_cost", result.TotalCost),
		zap.Duration("total_duration", result.TotalDuration),
		zap.Bool("requires_review", result.RequiresHumanReview),
	)
}

// weightedQuality is the weighted mean over the stages present in the run.
// A stage with no configured weight contributes nothing, and a run with no
// weighted stages scores zero.
func (c *Controller) weightedQuality(stages []StageResult) float64 {
	var num, den float64
	for _, s := range stages {
		w, ok := c.cfg.StageWeights[s.Name]
		if !ok || w <= 0 {
			continue
		}
		num += w * s.Quality
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func (c *Controller) createEscalation(ctx context.Context, result *PipelineResult, reasons []escalation.Reason) {
	if c.escalations == nil {
		return
	}
	pkg, err := c.escalations.Create(ctx, escalation.CreateRequest{
		RunID:         result.RunID,
		StoryID:       result.StoryID,
		Headline:      result.Headline,
		Reasons:       reasons,
		Quality:       result.FinalQuality,
		Confidence:    result.Confidence,
		DisputedRatio: result.DisputedRatio,
		StageScores:   result.StageScores(),
		Issues:        append(result.Issues(), result.ReviewReasons...),
	})
	if err != nil {
		c.logger.Error("escalation create failed",
			zap.String("run_id", result.RunID),
			zap.Error(err),
		)
		return
	}
	result.EscalationID = pkg.ID
	c.collector.RecordEscalation(string(pkg.Priority))
}

func (c *Controller) persist(ctx context.Context, result *PipelineResult) {
	if c.store == nil {
		return
	}
	if err := c.store.SavePipelineResult(ctx, result); err != nil {
		c.logger.Warn("result persistence failed",
			zap.String("run_id", result.RunID),
			zap.Error(err),
		)
	}
}

// adversarialConcerns reports a debate that weakened the analysis: more
// challenges sustained against it than overruled.
func adversarialConcerns(result *PipelineResult) bool {
	sr := result.Stage(StageAdversarial)
	if sr == nil || len(sr.Outcomes) == 0 {
		return false
	}
	transcript, ok := sr.Outcomes[0].Output.(*types.DebateTranscript)
	if !ok {
		return false
	}
	return transcript.Sustained > transcript.Overruled
}

func describeReasons(reasons []escalation.Reason) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, string(r))
	}
	return "escalated for review: " + strings.Join(parts, ", ")
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
