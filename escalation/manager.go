package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/100PercentTuna/the-undertow-sub000/notify"
)

// CreateRequest carries the evidence for a new escalation package.
type CreateRequest struct {
	RunID         string
	StoryID       string
	Headline      string
	Reasons       []Reason
	Quality       float64
	Confidence    float64
	DisputedRatio float64
	StageScores   map[string]float64
	Issues        []string
}

// Manager is the sole writer of escalation packages. It persists through a
// Store, announces changes through a Notifier, and serializes state
// transitions so a package resolves exactly once.
type Manager struct {
	store    Store
	notifier notify.Notifier
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewManager creates a manager. A nil notifier keeps escalations silent.
func NewManager(store Store, notifier notify.Notifier, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		notifier: notifier,
		logger:   logger.With(zap.String("component", "escalation")),
	}
}

// Create opens a new pending package and notifies the review desk. A failed
// notification is logged, never propagated: the escalation stands on its own.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Package, error) {
	now := time.Now().UTC()
	pkg := &Package{
		ID:            uuid.NewString(),
		RunID:         req.RunID,
		StoryID:       req.StoryID,
		Headline:      req.Headline,
		Priority:      PriorityFor(req.Reasons, req.Quality),
		Reasons:       append([]Reason(nil), req.Reasons...),
		Status:        StatusPending,
		Quality:       req.Quality,
		Confidence:    req.Confidence,
		DisputedRatio: req.DisputedRatio,
		StageScores:   req.StageScores,
		Issues:        append([]string(nil), req.Issues...),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	m.mu.Lock()
	err := m.store.Save(ctx, pkg)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("save escalation: %w", err)
	}

	m.logger.Info("escalation created",
		zap.String("id", pkg.ID),
		zap.String("story_id", pkg.StoryID),
		zap.String("priority", string(pkg.Priority)),
		zap.Int("reasons", len(pkg.Reasons)),
	)

	// Announce after releasing the lock: a slow webhook must not serialize
	// other runs' escalations behind it.
	m.announce(ctx, notify.EventEscalationCreated, pkg.Clone())
	return pkg, nil
}

// Claim moves a pending package into review under the given reviewer.
func (m *Manager) Claim(ctx context.Context, id, reviewer string) (*Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pkg, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if pkg.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	}
	if pkg.Status != StatusPending {
		return nil, fmt.Errorf("escalation: package %s is already %s", id, pkg.Status)
	}

	pkg.Status = StatusInReview
	pkg.Reviewer = reviewer
	pkg.UpdatedAt = time.Now().UTC()

	if err := m.store.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("claim escalation: %w", err)
	}
	return pkg, nil
}

// Resolve closes a package one way: pending or in_review becomes approved,
// rejected, or revised. Resolving a resolved package returns
// ErrAlreadyResolved; a resolved record is immutable.
func (m *Manager) Resolve(ctx context.Context, id string, status Status, reviewer, notes string) (*Package, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("escalation: %q is not a resolution status", status)
	}

	pkg, err := m.transition(ctx, id, func(pkg *Package) {
		now := time.Now().UTC()
		pkg.Status = status
		pkg.Reviewer = reviewer
		pkg.ReviewNotes = notes
		pkg.UpdatedAt = now
		pkg.ResolvedAt = &now
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("escalation resolved",
		zap.String("id", pkg.ID),
		zap.String("status", string(status)),
		zap.String("reviewer", reviewer),
	)

	m.announce(ctx, notify.EventEscalationResolved, pkg.Clone())
	return pkg, nil
}

// transition applies a load-check-mutate-update cycle under the manager
// lock. The lock covers only the store round trip; callers log and notify
// after it is released.
func (m *Manager) transition(ctx context.Context, id string, mutate func(*Package)) (*Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pkg, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if pkg.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	}

	mutate(pkg)

	if err := m.store.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("update escalation: %w", err)
	}
	return pkg, nil
}

// Get loads one package by id.
func (m *Manager) Get(ctx context.Context, id string) (*Package, error) {
	return m.store.Load(ctx, id)
}

// Pending lists unclaimed packages in triage order: critical, high, medium,
// low, oldest first within a priority. Reviewers rely on this order.
func (m *Manager) Pending(ctx context.Context) ([]*Package, error) {
	pkgs, err := m.store.List(ctx, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending escalations: %w", err)
	}
	SortByTriage(pkgs)
	return pkgs, nil
}

func (m *Manager) announce(ctx context.Context, event notify.Event, pkg *Package) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, event, pkg); err != nil {
		m.logger.Warn("escalation notification failed",
			zap.String("id", pkg.ID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}
