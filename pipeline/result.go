package pipeline

import (
	"time"

	"github.com/100PercentTuna/the-undertow-sub000/gate"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// StageResult records one stage's aggregate outcome. Quality is the mean
// over every agent outcome in the stage, failures included at zero, so a
// stage cannot look healthy by dropping its failures from the average.
type StageResult struct {
	Name     string               `json:"name"`
	Success  bool                 `json:"success"`
	Quality  float64              `json:"quality"`
	Cost     float64              `json:"cost"`
	Duration time.Duration        `json:"duration"`
	Outcomes []types.AgentOutcome `json:"outcomes,omitempty"`
	Gate     *gate.Result         `json:"gate,omitempty"`
	Issues   []string             `json:"issues,omitempty"`
}

// PipelineResult is the terminal record of one run. The pipeline always
// returns one of these; there is no error path out of Run.
type PipelineResult struct {
	RunID    string `json:"run_id"`
	StoryID  string `json:"story_id"`
	Headline string `json:"headline"`

	// Success means every stage ran clean. Gate failures leave it true
	// unless strict gating is on; panics and invalid stories force it false.
	Success bool          `json:"success"`
	Stages  []StageResult `json:"stages"`

	// FinalQuality is the weighted mean over the stages actually present.
	FinalQuality  float64 `json:"final_quality"`
	Confidence    float64 `json:"confidence"`
	DisputedRatio float64 `json:"disputed_ratio"`

	TotalCost     float64       `json:"total_cost"`
	TotalDuration time.Duration `json:"total_duration"`

	RequiresHumanReview bool     `json:"requires_human_review"`
	ReviewReasons       []string `json:"review_reasons,omitempty"`
	EscalationID        string   `json:"escalation_id,omitempty"`

	Article *types.EditedArticle `json:"article,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Stage returns the named stage result, or nil when the stage did not run.
func (r *PipelineResult) Stage(name string) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// StageScores maps stage name to quality for the stages that ran.
func (r *PipelineResult) StageScores() map[string]float64 {
	scores := make(map[string]float64, len(r.Stages))
	for _, s := range r.Stages {
		scores[s.Name] = s.Quality
	}
	return scores
}

// Issues flattens every stage issue in run order.
func (r *PipelineResult) Issues() []string {
	var issues []string
	for _, s := range r.Stages {
		issues = append(issues, s.Issues...)
	}
	return issues
}

// Clean reports a run that succeeded without any review flag. This is the
// only state the publishing path accepts without a human in the loop.
func (r *PipelineResult) Clean() bool {
	return r.Success && !r.RequiresHumanReview
}

// Status collapses the terminal state into one word for metrics and
// persistence: failed beats review, review beats success.
func (r *PipelineResult) Status() string {
	switch {
	case !r.Success:
		return "failed"
	case r.RequiresHumanReview:
		return "review"
	default:
		return "success"
	}
}
