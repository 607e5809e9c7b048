package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/100PercentTuna/the-undertow-sub000/pipeline"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned when no archived run carries the given id.
var ErrRunNotFound = errors.New("store: pipeline run not found")

// SavePipelineResult archives one terminal run result. The pipeline calls
// this on every run, panics included, so the archive is the full history.
func (s *Store) SavePipelineResult(ctx context.Context, result *pipeline.PipelineResult) error {
	rec, err := runRecord(result)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save pipeline run %s: %w", result.RunID, err)
	}
	s.logger.Debug("pipeline run archived",
		zap.String("run_id", rec.RunID),
		zap.String("status", rec.Status),
	)
	return nil
}

// Run returns the archived record for one run id.
func (s *Store) Run(ctx context.Context, runID string) (*PipelineRunRecord, error) {
	var rec PipelineRunRecord
	err := s.db.WithContext(ctx).First(&rec, "run_id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load pipeline run %s: %w", runID, err)
	}
	return &rec, nil
}

// RecentRuns returns the newest runs by completion time, capped at limit.
// A non-positive limit defaults to 20.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]PipelineRunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []PipelineRunRecord
	err := s.db.WithContext(ctx).
		Order("completed_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	return recs, nil
}
