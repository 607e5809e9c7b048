// Package escalation routes stories that the pipeline cannot clear on its
// own to a human review desk. A Package carries everything a reviewer needs
// to rule on a story; resolution is a one-way transition and the pending
// queue is ordered by priority, then age.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no package exists for the given id.
	ErrNotFound = errors.New("escalation: package not found")
	// ErrAlreadyResolved is returned when resolving a package twice.
	ErrAlreadyResolved = errors.New("escalation: package already resolved")
)

// Priority orders packages in the review queue. Critical sorts first.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the priority's triage position; lower sorts earlier.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Reason names why a story was escalated. One package can carry several.
type Reason string

const (
	ReasonQualityGateFailed   Reason = "quality_gate_failed"
	ReasonLowConfidence       Reason = "low_confidence"
	ReasonDisputedClaims      Reason = "disputed_claims"
	ReasonSensitiveTopic      Reason = "sensitive_topic"
	ReasonAdversarialConcerns Reason = "adversarial_concerns"
	ReasonSystemError         Reason = "system_error"
	ReasonManualFlag          Reason = "manual_flag"
)

// Status tracks a package through the review desk. Transitions are one way:
// pending may be claimed into in_review, and either state resolves into
// approved, rejected, or revised. Resolved packages are immutable.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRevised  Status = "revised"
)

// Terminal reports whether the status is a resolution.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusRevised:
		return true
	default:
		return false
	}
}

// Package is one escalated story with the evidence a reviewer needs.
type Package struct {
	ID            string             `json:"id"`
	RunID         string             `json:"run_id"`
	StoryID       string             `json:"story_id"`
	Headline      string             `json:"headline,omitempty"`
	Priority      Priority           `json:"priority"`
	Reasons       []Reason           `json:"reasons"`
	Status        Status             `json:"status"`
	Quality       float64            `json:"quality"`
	Confidence    float64            `json:"confidence"`
	DisputedRatio float64            `json:"disputed_ratio"`
	StageScores   map[string]float64 `json:"stage_scores,omitempty"`
	Issues        []string           `json:"issues,omitempty"`
	Reviewer      string             `json:"reviewer,omitempty"`
	ReviewNotes   string             `json:"review_notes,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (p *Package) Clone() *Package {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Reasons = append([]Reason(nil), p.Reasons...)
	cp.Issues = append([]string(nil), p.Issues...)
	if p.StageScores != nil {
		cp.StageScores = make(map[string]float64, len(p.StageScores))
		for k, v := range p.StageScores {
			cp.StageScores[k] = v
		}
	}
	if p.ResolvedAt != nil {
		t := *p.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

// Store persists escalation packages.
type Store interface {
	Save(ctx context.Context, pkg *Package) error
	Load(ctx context.Context, id string) (*Package, error)
	// List returns packages with the given status; an empty status lists all.
	List(ctx context.Context, status Status) ([]*Package, error)
	Update(ctx context.Context, pkg *Package) error
}

// SortByTriage orders packages by priority rank, then oldest first. The
// review queue contract lives here so every Store presents the same order.
func SortByTriage(pkgs []*Package) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		if pkgs[i].Priority.Rank() != pkgs[j].Priority.Rank() {
			return pkgs[i].Priority.Rank() < pkgs[j].Priority.Rank()
		}
		return pkgs[i].CreatedAt.Before(pkgs[j].CreatedAt)
	})
}

// MemoryStore keeps packages in a mutex-guarded map. It backs tests and
// offline runs where no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	pkgs map[string]*Package
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pkgs: make(map[string]*Package)}
}

func (s *MemoryStore) Save(_ context.Context, pkg *Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkgs[pkg.ID] = pkg.Clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pkg, ok := s.pkgs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return pkg.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, status Status) ([]*Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*Package
	for _, pkg := range s.pkgs {
		if status == "" || pkg.Status == status {
			results = append(results, pkg.Clone())
		}
	}
	return results, nil
}

func (s *MemoryStore) Update(_ context.Context, pkg *Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pkgs[pkg.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, pkg.ID)
	}
	s.pkgs[pkg.ID] = pkg.Clone()
	return nil
}
