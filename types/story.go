package types

import (
	"fmt"
	"strings"
)

// StoryContext is the immutable input to one pipeline run. It is owned by
// the caller and passed by pointer through every stage; no stage mutates it.
type StoryContext struct {
	ID        string   `json:"id" yaml:"id"`
	Headline  string   `json:"headline" yaml:"headline"`
	Summary   string   `json:"summary" yaml:"summary"`
	KeyEvents []string `json:"key_events" yaml:"key_events"`
	Actors    []string `json:"actors" yaml:"actors"`
	Zones     []string `json:"zones" yaml:"zones"`
}

// Validate checks the structural invariants of a story before it enters the
// pipeline: a non-empty summary and at least one actor and one zone.
func (s *StoryContext) Validate() error {
	var errs []string
	if strings.TrimSpace(s.Summary) == "" {
		errs = append(errs, "summary must not be empty")
	}
	if len(s.Actors) == 0 {
		errs = append(errs, "at least one actor is required")
	}
	if len(s.Zones) == 0 {
		errs = append(errs, "at least one zone is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid story context: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Text returns the searchable text of the story, used for sensitive-topic
// keyword matching. Keyword matching is case-insensitive substring search,
// so the result is lowercased once here.
func (s *StoryContext) Text() string {
	parts := make([]string, 0, 3+len(s.KeyEvents))
	parts = append(parts, s.Headline, s.Summary)
	parts = append(parts, s.KeyEvents...)
	return strings.ToLower(strings.Join(parts, "\n"))
}

// AnalysisContext carries optional enrichment for a story. Every field may
// be empty; agents treat missing context as "analyze from the story alone".
type AnalysisContext struct {
	ActorProfiles     map[string]string `json:"actor_profiles,omitempty" yaml:"actor_profiles,omitempty"`
	HistoricalContext string            `json:"historical_context,omitempty" yaml:"historical_context,omitempty"`
	RegionalContext   string            `json:"regional_context,omitempty" yaml:"regional_context,omitempty"`
	Frames            []string          `json:"frames,omitempty" yaml:"frames,omitempty"`
}
