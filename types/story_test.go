package types

import (
	"strings"
	"testing"
)

func validStory() *StoryContext {
	return &StoryContext{
		ID:        "story-1",
		Headline:  "Country A Recognizes Territory B",
		Summary:   "Country A formally recognized the independence of Territory B.",
		KeyEvents: []string{"recognition announced", "emergency session called"},
		Actors:    []string{"Country A", "Country B"},
		Zones:     []string{"Eastern Region"},
	}
}

func TestStoryContext_Validate(t *testing.T) {
	t.Parallel()

	if err := validStory().Validate(); err != nil {
		t.Fatalf("valid story rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*StoryContext)
		want   string
	}{
		{"empty summary", func(s *StoryContext) { s.Summary = "  " }, "summary"},
		{"no actors", func(s *StoryContext) { s.Actors = nil }, "actor"},
		{"no zones", func(s *StoryContext) { s.Zones = nil }, "zone"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validStory()
			tc.mutate(s)
			err := s.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestStoryContext_TextIsLowercased(t *testing.T) {
	t.Parallel()

	s := validStory()
	s.KeyEvents = append(s.KeyEvents, "Military COUP rumors")
	text := s.Text()
	if !strings.Contains(text, "coup") {
		t.Fatalf("expected lowercased event text, got %q", text)
	}
	if strings.Contains(text, "COUP") {
		t.Fatalf("text must be fully lowercased")
	}
}
