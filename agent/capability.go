// Package agent is the invocation boundary between the pipeline and the
// models that do the editorial work. The Gateway wraps every call with
// budget reservation, response caching, transient-error retry, and panic
// recovery, and always returns an AgentOutcome: a failed agent is a value
// the orchestrator can reason about, never an error that stops the run.
package agent

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// Input is the request one capability receives. Every field except Story is
// optional; capabilities treat missing context as "work from the story
// alone". Inputs are JSON-normalized for cache keying, so two logically
// identical requests hash to the same key.
type Input struct {
	Story    *types.StoryContext          `json:"story"`
	Analysis *types.AnalysisContext       `json:"analysis,omitempty"`
	Prior    map[string]types.AgentOutput `json:"prior,omitempty"`
	Claims   []string                     `json:"claims,omitempty"`
	Draft    string                       `json:"draft,omitempty"`
}

// PriorOutput returns the prior output with the given kind tag, or nil.
func (in Input) PriorOutput(kind string) types.AgentOutput {
	if in.Prior == nil {
		return nil
	}
	return in.Prior[kind]
}

// Capability is one analysis or writing skill the pipeline can invoke. The
// tier routes to an appropriately capable model and prices the call; the
// sampling temperature decides cacheability.
type Capability interface {
	ID() string
	Tier() types.Tier
	Temperature() float64
	Execute(ctx context.Context, in Input) (types.AgentOutput, error)
}

// Registry holds the capabilities available to a pipeline instance. It is
// populated once at wiring time and read concurrently afterwards.
type Registry struct {
	mu     sync.RWMutex
	caps   map[string]Capability
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		caps:   make(map[string]Capability),
		logger: logger.With(zap.String("component", "agent_registry")),
	}
}

// Register adds a capability, replacing any previous one with the same id.
func (r *Registry) Register(cap Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[cap.ID()] = cap
	r.logger.Info("capability registered",
		zap.String("agent_id", cap.ID()),
		zap.String("tier", string(cap.Tier())),
	)
}

// Lookup returns the capability for id.
func (r *Registry) Lookup(id string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cap, ok := r.caps[id]
	return cap, ok
}

// IDs returns the registered capability ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.caps))
	for id := range r.caps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
