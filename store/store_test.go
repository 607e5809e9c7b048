package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/100PercentTuna/the-undertow-sub000/config"
	"github.com/100PercentTuna/the-undertow-sub000/escalation"
	"github.com/100PercentTuna/the-undertow-sub000/gate"
	"github.com/100PercentTuna/the-undertow-sub000/pipeline"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// openTestStore opens an ephemeral sqlite store. MaxOpenConns is pinned to
// one because every sqlite ":memory:" connection is its own database.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver:       "sqlite",
		Name:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
	s, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePackage(id string, priority escalation.Priority, createdAt time.Time) *escalation.Package {
	return &escalation.Package{
		ID:            id,
		RunID:         "run-" + id,
		StoryID:       "story-7",
		Headline:      "Border Talks Stall Over Water Rights",
		Priority:      priority,
		Reasons:       []escalation.Reason{escalation.ReasonQualityGateFailed, escalation.ReasonLowConfidence},
		Status:        escalation.StatusPending,
		Quality:       0.55,
		Confidence:    0.48,
		DisputedRatio: 0.25,
		StageScores:   map[string]float64{"Foundation": 0.62, "Synthesis": 0.45},
		Issues:        []string{"thesis support below target"},
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")

	_, err = Open(config.DatabaseConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	pkg := samplePackage("esc-1", escalation.PriorityHigh, created)
	require.NoError(t, s.Save(ctx, pkg))

	loaded, err := s.Load(ctx, "esc-1")
	require.NoError(t, err)

	assert.Equal(t, pkg.ID, loaded.ID)
	assert.Equal(t, pkg.RunID, loaded.RunID)
	assert.Equal(t, pkg.StoryID, loaded.StoryID)
	assert.Equal(t, pkg.Headline, loaded.Headline)
	assert.Equal(t, escalation.PriorityHigh, loaded.Priority)
	assert.Equal(t, escalation.StatusPending, loaded.Status)
	assert.Equal(t, pkg.Reasons, loaded.Reasons)
	assert.Equal(t, pkg.StageScores, loaded.StageScores)
	assert.Equal(t, pkg.Issues, loaded.Issues)
	assert.InDelta(t, 0.55, loaded.Quality, 1e-9)
	assert.InDelta(t, 0.48, loaded.Confidence, 1e-9)
	assert.InDelta(t, 0.25, loaded.DisputedRatio, 1e-9)
	assert.WithinDuration(t, created, loaded.CreatedAt, time.Second)
	assert.Nil(t, loaded.ResolvedAt)
}

func TestStore_LoadMissingReturnsNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.Load(context.Background(), "no-such-id")
	require.ErrorIs(t, err, escalation.ErrNotFound)
}

func TestStore_UpdatePersistsResolution(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	pkg := samplePackage("esc-2", escalation.PriorityMedium, created)
	require.NoError(t, s.Save(ctx, pkg))

	resolved := created.Add(2 * time.Hour)
	pkg.Status = escalation.StatusApproved
	pkg.Reviewer = "desk-2"
	pkg.ReviewNotes = "sourcing holds up"
	pkg.UpdatedAt = resolved
	pkg.ResolvedAt = &resolved
	require.NoError(t, s.Update(ctx, pkg))

	loaded, err := s.Load(ctx, "esc-2")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusApproved, loaded.Status)
	assert.Equal(t, "desk-2", loaded.Reviewer)
	assert.Equal(t, "sourcing holds up", loaded.ReviewNotes)
	require.NotNil(t, loaded.ResolvedAt)
	assert.WithinDuration(t, resolved, *loaded.ResolvedAt, time.Second)
}

func TestStore_UpdateMissingReturnsNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	pkg := samplePackage("never-saved", escalation.PriorityLow, time.Now().UTC())
	err := s.Update(context.Background(), pkg)
	require.ErrorIs(t, err, escalation.ErrNotFound)
}

func TestStore_ListOrdersByTriage(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	save := func(id string, priority escalation.Priority, at time.Time) {
		t.Helper()
		require.NoError(t, s.Save(ctx, samplePackage(id, priority, at)))
	}
	save("medium-old", escalation.PriorityMedium, base)
	save("critical-new", escalation.PriorityCritical, base.Add(2*time.Minute))
	save("critical-old", escalation.PriorityCritical, base.Add(1*time.Minute))
	save("high", escalation.PriorityHigh, base.Add(3*time.Minute))

	approved := samplePackage("critical-done", escalation.PriorityCritical, base.Add(4*time.Minute))
	approved.Status = escalation.StatusApproved
	require.NoError(t, s.Save(ctx, approved))

	pending, err := s.List(ctx, escalation.StatusPending)
	require.NoError(t, err)
	ids := make([]string, 0, len(pending))
	for _, pkg := range pending {
		ids = append(ids, pkg.ID)
	}
	assert.Equal(t, []string{"critical-old", "critical-new", "high", "medium-old"}, ids)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

// The manager's claim/resolve flow must behave the same over SQL as over
// the in-memory store.
func TestStore_BacksEscalationManager(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	manager := escalation.NewManager(s, nil, zap.NewNop())

	pkg, err := manager.Create(ctx, escalation.CreateRequest{
		RunID:         "run-31",
		StoryID:       "story-31",
		Headline:      "Pipeline Consortium Splits Over Transit Fees",
		Reasons:       []escalation.Reason{escalation.ReasonQualityGateFailed},
		Quality:       0.58,
		Confidence:    0.62,
		DisputedRatio: 0.2,
		StageScores:   map[string]float64{"Foundation": 0.58},
		Issues:        []string{"actor coverage thin"},
	})
	require.NoError(t, err)
	assert.Equal(t, escalation.PriorityMedium, pkg.Priority)

	pending, err := manager.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, pkg.ID, pending[0].ID)

	claimed, err := manager.Claim(ctx, pkg.ID, "desk-1")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusInReview, claimed.Status)

	resolved, err := manager.Resolve(ctx, pkg.ID, escalation.StatusApproved, "desk-1", "claims check out")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = manager.Resolve(ctx, pkg.ID, escalation.StatusRejected, "desk-1", "")
	require.ErrorIs(t, err, escalation.ErrAlreadyResolved)

	pending, err = manager.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func sampleResult(runID string, completed time.Time) *pipeline.PipelineResult {
	return &pipeline.PipelineResult{
		RunID:    runID,
		StoryID:  "story-7",
		Headline: "Border Talks Stall Over Water Rights",
		Success:  true,
		Stages: []pipeline.StageResult{
			{
				Name:     "Foundation",
				Success:  true,
				Quality:  0.88,
				Cost:     0.02,
				Duration: 1500 * time.Millisecond,
				Gate: &gate.Result{
					Gate:      "Foundation",
					Score:     0.88,
					Threshold: 0.75,
					Passed:    true,
				},
			},
			{
				Name:     "Writing",
				Success:  true,
				Quality:  0.91,
				Cost:     0.04,
				Duration: 2 * time.Second,
				Issues:   []string{"draft ran long"},
			},
		},
		FinalQuality:        0.89,
		Confidence:          0.82,
		DisputedRatio:       0.1,
		TotalCost:           0.06,
		TotalDuration:       3500 * time.Millisecond,
		RequiresHumanReview: true,
		ReviewReasons:       []string{"escalated for review: low_confidence"},
		EscalationID:        "esc-9",
		Article: &types.EditedArticle{
			Title:       "What the Water Dispute Actually Signals",
			Body:        "The recall is the visible move; the leverage shift is the story.",
			WordCount:   12,
			EditNotes:   []string{"tightened lede"},
			Readability: 0.9,
		},
		StartedAt:   completed.Add(-4 * time.Second),
		CompletedAt: completed,
	}
}

func TestStore_SavePipelineResultRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	completed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.SavePipelineResult(ctx, sampleResult("run-abc", completed)))

	rec, err := s.Run(ctx, "run-abc")
	require.NoError(t, err)

	assert.Equal(t, "story-7", rec.StoryID)
	assert.Equal(t, "review", rec.Status)
	assert.True(t, rec.Success)
	assert.True(t, rec.RequiresReview)
	assert.InDelta(t, 0.89, rec.FinalQuality, 1e-9)
	assert.InDelta(t, 0.82, rec.Confidence, 1e-9)
	assert.Equal(t, int64(3500), rec.DurationMS)
	assert.Equal(t, "esc-9", rec.EscalationID)
	assert.WithinDuration(t, completed, rec.CompletedAt, time.Second)

	stages, err := rec.StageSummaries()
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "Foundation", stages[0].Name)
	require.NotNil(t, stages[0].Gate)
	assert.True(t, stages[0].Gate.Passed)
	assert.InDelta(t, 0.88, stages[0].Gate.Score, 1e-9)
	assert.Equal(t, int64(1500), stages[0].DurationMS)
	assert.Nil(t, stages[1].Gate)
	assert.Equal(t, []string{"draft ran long"}, stages[1].Issues)

	reasons, err := rec.ReviewReasonList()
	require.NoError(t, err)
	assert.Equal(t, []string{"escalated for review: low_confidence"}, reasons)

	article, err := rec.EditedArticle()
	require.NoError(t, err)
	require.NotNil(t, article)
	assert.Equal(t, "What the Water Dispute Actually Signals", article.Title)
	assert.Equal(t, []string{"tightened lede"}, article.EditNotes)
}

func TestStore_RunMissingReturnsNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.Run(context.Background(), "run-unknown")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_RecentRunsNewestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, s.SavePipelineResult(ctx, sampleResult(id, base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "run-3", recent[0].RunID)
	assert.Equal(t, "run-2", recent[1].RunID)
}

func TestStore_RunWithoutArticleArchivesEmpty(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	result := sampleResult("run-bare", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	result.Success = false
	result.Article = nil
	result.Stages = nil
	result.ReviewReasons = nil
	require.NoError(t, s.SavePipelineResult(ctx, result))

	rec, err := s.Run(ctx, "run-bare")
	require.NoError(t, err)
	assert.Equal(t, "failed", rec.Status)

	article, err := rec.EditedArticle()
	require.NoError(t, err)
	assert.Nil(t, article)

	stages, err := rec.StageSummaries()
	require.NoError(t, err)
	assert.Empty(t, stages)
}