package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/100PercentTuna/the-undertow-sub000/escalation"
	"github.com/100PercentTuna/the-undertow-sub000/pipeline"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// PipelineRunRecord is the archived form of one pipeline run. Stage results,
// review reasons, and the edited article are stored as JSON text so the row
// stays portable across postgres and sqlite; the scalar columns carry
// everything the run list and triage queries filter on.
type PipelineRunRecord struct {
	RunID          string    `gorm:"primaryKey;size:36"`
	StoryID        string    `gorm:"size:100;not null;index"`
	Headline       string    `gorm:"size:500"`
	Status         string    `gorm:"size:20;index"`
	Success        bool
	RequiresReview bool      `gorm:"index"`
	FinalQuality   float64
	Confidence     float64
	DisputedRatio  float64
	TotalCost      float64
	DurationMS     int64
	EscalationID   string    `gorm:"size:36"`
	Stages         string    `gorm:"type:text"`
	ReviewReasons  string    `gorm:"type:text"`
	Article        string    `gorm:"type:text"`
	StartedAt      time.Time
	CompletedAt    time.Time `gorm:"index"`
	CreatedAt      time.Time
}

// TableName keeps the table name stable across GORM naming strategies.
func (PipelineRunRecord) TableName() string { return "pipeline_runs" }

// StageSummary is the compact per-stage row archived with a run. Full agent
// outcomes stay out of the archive; the summary keeps what a reviewer scans.
type StageSummary struct {
	Name       string       `json:"name"`
	Success    bool         `json:"success"`
	Quality    float64      `json:"quality"`
	Cost       float64      `json:"cost"`
	DurationMS int64        `json:"duration_ms"`
	Gate       *GateSummary `json:"gate,omitempty"`
	Issues     []string     `json:"issues,omitempty"`
}

// GateSummary carries a gate verdict without the factor breakdown.
type GateSummary struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

// StageSummaries decodes the archived stage rows.
func (r *PipelineRunRecord) StageSummaries() ([]StageSummary, error) {
	if r.Stages == "" {
		return nil, nil
	}
	var summaries []StageSummary
	if err := json.Unmarshal([]byte(r.Stages), &summaries); err != nil {
		return nil, fmt.Errorf("decode stage summaries for run %s: %w", r.RunID, err)
	}
	return summaries, nil
}

// ReviewReasonList decodes the archived review reasons.
func (r *PipelineRunRecord) ReviewReasonList() ([]string, error) {
	if r.ReviewReasons == "" {
		return nil, nil
	}
	var reasons []string
	if err := json.Unmarshal([]byte(r.ReviewReasons), &reasons); err != nil {
		return nil, fmt.Errorf("decode review reasons for run %s: %w", r.RunID, err)
	}
	return reasons, nil
}

// EditedArticle decodes the archived article, or nil when the run never
// produced one.
func (r *PipelineRunRecord) EditedArticle() (*types.EditedArticle, error) {
	if r.Article == "" {
		return nil, nil
	}
	var article types.EditedArticle
	if err := json.Unmarshal([]byte(r.Article), &article); err != nil {
		return nil, fmt.Errorf("decode article for run %s: %w", r.RunID, err)
	}
	return &article, nil
}

func runRecord(result *pipeline.PipelineResult) (*PipelineRunRecord, error) {
	summaries := make([]StageSummary, 0, len(result.Stages))
	for _, stage := range result.Stages {
		summary := StageSummary{
			Name:       stage.Name,
			Success:    stage.Success,
			Quality:    stage.Quality,
			Cost:       stage.Cost,
			DurationMS: stage.Duration.Milliseconds(),
			Issues:     stage.Issues,
		}
		if stage.Gate != nil {
			summary.Gate = &GateSummary{
				Name:      stage.Gate.Gate,
				Score:     stage.Gate.Score,
				Threshold: stage.Gate.Threshold,
				Passed:    stage.Gate.Passed,
			}
		}
		summaries = append(summaries, summary)
	}
	stages, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("encode stage summaries: %w", err)
	}

	reasons, err := json.Marshal(result.ReviewReasons)
	if err != nil {
		return nil, fmt.Errorf("encode review reasons: %w", err)
	}

	var article []byte
	if result.Article != nil {
		article, err = json.Marshal(result.Article)
		if err != nil {
			return nil, fmt.Errorf("encode article: %w", err)
		}
	}

	return &PipelineRunRecord{
		RunID:          result.RunID,
		StoryID:        result.StoryID,
		Headline:       result.Headline,
		Status:         result.Status(),
		Success:        result.Success,
		RequiresReview: result.RequiresHumanReview,
		FinalQuality:   result.FinalQuality,
		Confidence:     result.Confidence,
		DisputedRatio:  result.DisputedRatio,
		TotalCost:      result.TotalCost,
		DurationMS:     result.TotalDuration.Milliseconds(),
		EscalationID:   result.EscalationID,
		Stages:         string(stages),
		ReviewReasons:  string(reasons),
		Article:        string(article),
		StartedAt:      result.StartedAt,
		CompletedAt:    result.CompletedAt,
	}, nil
}

// EscalationRecord is the database row for one escalation package. The
// composite triage index matches the review queue order: priority rank, then
// oldest first.
type EscalationRecord struct {
	ID            string    `gorm:"primaryKey;size:36"`
	RunID         string    `gorm:"size:36;index"`
	StoryID       string    `gorm:"size:100;index"`
	Headline      string    `gorm:"size:500"`
	Priority      string    `gorm:"size:16"`
	PriorityRank  int       `gorm:"index:idx_escalations_triage,priority:1"`
	Status        string    `gorm:"size:16;index"`
	Reasons       string    `gorm:"type:text"`
	Quality       float64
	Confidence    float64
	DisputedRatio float64
	StageScores   string    `gorm:"type:text"`
	Issues        string    `gorm:"type:text"`
	Reviewer      string    `gorm:"size:120"`
	ReviewNotes   string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index:idx_escalations_triage,priority:2"`
	UpdatedAt     time.Time
	ResolvedAt    *time.Time
}

// TableName keeps the table name stable across GORM naming strategies.
func (EscalationRecord) TableName() string { return "escalations" }

func escalationRecord(pkg *escalation.Package) (*EscalationRecord, error) {
	reasons, err := json.Marshal(pkg.Reasons)
	if err != nil {
		return nil, fmt.Errorf("encode reasons: %w", err)
	}
	scores, err := json.Marshal(pkg.StageScores)
	if err != nil {
		return nil, fmt.Errorf("encode stage scores: %w", err)
	}
	issues, err := json.Marshal(pkg.Issues)
	if err != nil {
		return nil, fmt.Errorf("encode issues: %w", err)
	}
	return &EscalationRecord{
		ID:            pkg.ID,
		RunID:         pkg.RunID,
		StoryID:       pkg.StoryID,
		Headline:      pkg.Headline,
		Priority:      string(pkg.Priority),
		PriorityRank:  pkg.Priority.Rank(),
		Status:        string(pkg.Status),
		Reasons:       string(reasons),
		Quality:       pkg.Quality,
		Confidence:    pkg.Confidence,
		DisputedRatio: pkg.DisputedRatio,
		StageScores:   string(scores),
		Issues:        string(issues),
		Reviewer:      pkg.Reviewer,
		ReviewNotes:   pkg.ReviewNotes,
		CreatedAt:     pkg.CreatedAt,
		UpdatedAt:     pkg.UpdatedAt,
		ResolvedAt:    pkg.ResolvedAt,
	}, nil
}

func (r *EscalationRecord) toPackage() (*escalation.Package, error) {
	pkg := &escalation.Package{
		ID:            r.ID,
		RunID:         r.RunID,
		StoryID:       r.StoryID,
		Headline:      r.Headline,
		Priority:      escalation.Priority(r.Priority),
		Status:        escalation.Status(r.Status),
		Quality:       r.Quality,
		Confidence:    r.Confidence,
		DisputedRatio: r.DisputedRatio,
		Reviewer:      r.Reviewer,
		ReviewNotes:   r.ReviewNotes,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		ResolvedAt:    r.ResolvedAt,
	}
	if r.Reasons != "" {
		if err := json.Unmarshal([]byte(r.Reasons), &pkg.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons for escalation %s: %w", r.ID, err)
		}
	}
	if r.StageScores != "" {
		if err := json.Unmarshal([]byte(r.StageScores), &pkg.StageScores); err != nil {
			return nil, fmt.Errorf("decode stage scores for escalation %s: %w", r.ID, err)
		}
	}
	if r.Issues != "" {
		if err := json.Unmarshal([]byte(r.Issues), &pkg.Issues); err != nil {
			return nil, fmt.Errorf("decode issues for escalation %s: %w", r.ID, err)
		}
	}
	return pkg, nil
}
