package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/100PercentTuna/the-undertow-sub000/config"
	"github.com/100PercentTuna/the-undertow-sub000/debate"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

func heuristicInput() Input {
	return Input{
		Story: &types.StoryContext{
			ID:       "story-7",
			Headline: "Country A Recognizes Territory B",
			Summary:  "Country A extended formal recognition to Territory B. Country C recalled its ambassador within hours.",
			KeyEvents: []string{
				"recognition announced at dawn",
				"ambassador recalled",
				"emergency session requested",
			},
			Actors: []string{"Country A", "Country C"},
			Zones:  []string{"Territory B"},
		},
		Analysis: &types.AnalysisContext{
			ActorProfiles: map[string]string{
				"Country A": "Country A trades recognition for basing rights.",
			},
		},
	}
}

func TestRegisterHeuristics_CoversTheRoster(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	RegisterHeuristics(reg)

	for _, id := range []string{
		AgentMotivation, AgentChains, AgentSubtlety, AgentPower,
		AgentContext, AgentConnections, AgentUncertainty, AgentSynthesis,
		AgentVerification, AgentWriter, AgentEditor,
	} {
		_, ok := reg.Lookup(id)
		assert.True(t, ok, "missing capability %s", id)
	}
	assert.Len(t, reg.IDs(), 11)
}

func TestHeuristics_AreDeterministicAndScorable(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	RegisterHeuristics(reg)

	for _, id := range reg.IDs() {
		id := id
		t.Run(id, func(t *testing.T) {
			t.Parallel()

			capability, ok := reg.Lookup(id)
			require.True(t, ok)

			first, err := capability.Execute(context.Background(), heuristicInput())
			require.NoError(t, err)
			require.NotNil(t, first)

			second, err := capability.Execute(context.Background(), heuristicInput())
			require.NoError(t, err)

			a, err := json.Marshal(first)
			require.NoError(t, err)
			b, err := json.Marshal(second)
			require.NoError(t, err)
			assert.JSONEq(t, string(a), string(b), "same story must produce the same output")

			assert.NotEmpty(t, first.Kind())
			score := types.MeanFactorScore(first)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
			assert.Greater(t, score, 0.0, "a fully populated story should never score zero")
		})
	}
}

func TestHeuristics_SurviveAnEmptyStory(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	RegisterHeuristics(reg)

	for _, id := range reg.IDs() {
		capability, _ := reg.Lookup(id)
		assert.NotPanics(t, func() {
			out, err := capability.Execute(context.Background(), Input{})
			assert.NoError(t, err)
			assert.NotNil(t, out)
		}, "capability %s must tolerate a missing story", id)
	}
}

func TestSynthesis_FoldsInPriorOutputs(t *testing.T) {
	t.Parallel()

	motivation := buildMotivation(heuristicInput()).(*types.MotivationAnalysis)
	chains := buildChains(heuristicInput()).(*types.ChainMap)

	in := heuristicInput()
	in.Prior = map[string]types.AgentOutput{
		motivation.Kind(): motivation,
		chains.Kind():     chains,
	}

	draft := buildSynthesis(in).(*types.SynthesisDraft)

	require.Len(t, draft.Sections, 3)
	assert.Contains(t, draft.Sections[1], motivation.Synthesis[:40],
		"the why-it-matters section should build on the motivation synthesis")
	assert.Greater(t, draft.WordCount, 100)
}

func TestEditor_ReadabilityStaysInRange(t *testing.T) {
	t.Parallel()

	longDraft := Input{Draft: "This sentence runs on and on without any terminal punctuation to speak of and keeps adding clauses"}
	shortDraft := Input{Draft: "Short. Clear. Done."}

	for _, in := range []Input{longDraft, shortDraft, {}} {
		out := buildEdit(in).(*types.EditedArticle)
		assert.GreaterOrEqual(t, out.Readability, 0.0)
		assert.LessOrEqual(t, out.Readability, 1.0)
	}
}

func TestHeuristicDebaters_RunToConvergence(t *testing.T) {
	t.Parallel()

	challenger, advocate, judge := NewHeuristicDebaters()
	engine := debate.NewEngine(challenger, advocate, judge, config.DebateConfig{
		MaxRounds:             5,
		MaxChallengesPerRound: 8,
	}, nil)

	claims := []string{
		"Country A coordinated the recognition with Country D in advance",
		"Country C's recall is positioning, not a rupture",
		"the emergency session will produce a statement but no action",
		"markets already priced in the recognition a week ago",
		"basing rights were the real consideration",
		"the timing tracks Country A's domestic calendar",
	}

	transcript := engine.Run(context.Background(), claims)

	summary := transcript.Summary
	assert.Equal(t, len(transcript.Rounds), summary.Rounds)
	assert.Equal(t, summary.Rounds, summary.Sustained+summary.Overruled+summary.Partial,
		"every completed round carries a verdict")
	assert.GreaterOrEqual(t, summary.ConfidenceAdjustment, -0.3)
	assert.LessOrEqual(t, summary.ConfidenceAdjustment, 0.1)

	// Same bench, same claims, same transcript.
	c2, a2, j2 := NewHeuristicDebaters()
	again := debate.NewEngine(c2, a2, j2, config.DebateConfig{
		MaxRounds:             5,
		MaxChallengesPerRound: 8,
	}, nil).Run(context.Background(), claims)
	assert.Equal(t, summary, again.Summary)
}
