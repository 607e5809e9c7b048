package debate

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/100PercentTuna/the-undertow-sub000/config"
)

// scriptedChallenger returns a fixed slice of challenges per pass, or an
// error for passes listed in errs. Passes beyond the script converge.
type scriptedChallenger struct {
	passes [][]Challenge
	errs   map[int]error
	calls  int
}

func (c *scriptedChallenger) Challenge(_ context.Context, _ []string, _ []Round) ([]Challenge, error) {
	pass := c.calls
	c.calls++
	if err, ok := c.errs[pass]; ok {
		return nil, err
	}
	if pass < len(c.passes) {
		return c.passes[pass], nil
	}
	return nil, nil
}

type stubAdvocate struct {
	failFor map[string]bool
}

func (a *stubAdvocate) Respond(_ context.Context, ch Challenge) (Response, error) {
	if a.failFor[ch.ID] {
		return Response{}, errors.New("advocate unavailable")
	}
	return Response{ChallengeID: ch.ID, Type: ResponseDefend, Text: "the claim holds"}, nil
}

type stubJudge struct {
	verdicts map[string]Verdict
	actions  map[string]string
	failFor  map[string]bool
}

func (j *stubJudge) Rule(_ context.Context, ch Challenge, resp Response) (Ruling, error) {
	if j.failFor[ch.ID] {
		return Ruling{}, errors.New("judge unavailable")
	}
	verdict, ok := j.verdicts[ch.ID]
	if !ok {
		verdict = VerdictOverruled
	}
	return Ruling{
		ChallengeID:    resp.ChallengeID,
		Verdict:        verdict,
		RequiredAction: j.actions[ch.ID],
		Confidence:     0.8,
	}, nil
}

func newTestEngine(c Challenger, a Advocate, j Judge) *Engine {
	return NewEngine(c, a, j, config.DefaultDebateConfig(), nil)
}

func ch(id string, severity Severity) Challenge {
	return Challenge{ID: id, TargetClaim: "claim-" + id, Text: "challenge " + id, Severity: severity}
}

func TestEngine_ConvergesOnZeroChallenges(t *testing.T) {
	t.Parallel()

	challenger := &scriptedChallenger{}
	engine := newTestEngine(challenger, &stubAdvocate{}, &stubJudge{})

	transcript := engine.Run(context.Background(), []string{"the minister resigned under pressure"})

	assert.Empty(t, transcript.Rounds)
	assert.Equal(t, 1, challenger.calls, "convergence on the first pass stops further passes")
	assert.Zero(t, transcript.Summary.Rounds)
	assert.Zero(t, transcript.Summary.Sustained)
	assert.Zero(t, transcript.Summary.Overruled)
	assert.Zero(t, transcript.Summary.Partial)
	assert.Zero(t, transcript.Summary.ConfidenceAdjustment)
	assert.False(t, transcript.Summary.AnalysisStrengthened)
}

func TestEngine_RoundsAccumulateAcrossPasses(t *testing.T) {
	t.Parallel()

	challenger := &scriptedChallenger{
		passes: [][]Challenge{
			{ch("c1", SeverityModerate), ch("c2", SeveritySignificant)},
			{ch("c3", SeverityMinor)},
		},
	}
	judge := &stubJudge{verdicts: map[string]Verdict{
		"c1": VerdictSustained,
		"c2": VerdictOverruled,
		"c3": VerdictPartial,
	}}
	engine := newTestEngine(challenger, &stubAdvocate{}, judge)

	transcript := engine.Run(context.Background(), []string{"claim"})

	require.Len(t, transcript.Rounds, 3)
	for i, round := range transcript.Rounds {
		assert.Equal(t, i+1, round.Number, "round numbers are global, not per pass")
	}
	assert.Equal(t, 1, transcript.Summary.Sustained)
	assert.Equal(t, 1, transcript.Summary.Overruled)
	assert.Equal(t, 1, transcript.Summary.Partial)
}

func TestEngine_StopsAtMaxRounds(t *testing.T) {
	t.Parallel()

	challenger := &scriptedChallenger{
		passes: [][]Challenge{
			{ch("c1", SeverityMinor)},
			{ch("c2", SeverityMinor)},
			{ch("c3", SeverityMinor)},
			{ch("c4", SeverityMinor)},
		},
	}
	engine := NewEngine(challenger, &stubAdvocate{}, &stubJudge{},
		config.DebateConfig{MaxRounds: 3, MaxChallengesPerRound: 4}, nil)

	transcript := engine.Run(context.Background(), []string{"claim"})

	assert.Len(t, transcript.Rounds, 3)
	assert.Equal(t, 3, challenger.calls)
}

func TestEngine_SkipsFailedChallenges(t *testing.T) {
	t.Parallel()

	challenger := &scriptedChallenger{
		passes: [][]Challenge{
			{ch("c1", SeverityModerate), ch("c2", SeverityModerate), ch("c3", SeverityModerate)},
		},
	}
	advocate := &stubAdvocate{failFor: map[string]bool{"c2": true}}
	judge := &stubJudge{failFor: map[string]bool{"c3": true}}
	engine := newTestEngine(challenger, advocate, judge)

	transcript := engine.Run(context.Background(), []string{"claim"})

	require.Len(t, transcript.Rounds, 1)
	assert.Equal(t, "c1", transcript.Rounds[0].Challenge.ID)
	assert.Equal(t, 1, transcript.Summary.Rounds, "summary covers completed rounds only")
}

func TestEngine_SkipsFailedChallengerPass(t *testing.T) {
	t.Parallel()

	challenger := &scriptedChallenger{
		passes: [][]Challenge{
			nil,
			{ch("c1", SeverityCritical)},
		},
		errs: map[int]error{0: errors.New("challenger timed out")},
	}
	engine := newTestEngine(challenger, &stubAdvocate{}, &stubJudge{})

	transcript := engine.Run(context.Background(), []string{"claim"})

	require.Len(t, transcript.Rounds, 1)
	assert.Equal(t, "c1", transcript.Rounds[0].Challenge.ID)
}

func TestEngine_CapsChallengesBySeverity(t *testing.T) {
	t.Parallel()

	challenger := &scriptedChallenger{
		passes: [][]Challenge{{
			ch("c1", SeverityMinor),
			ch("c2", SeverityCritical),
			ch("c3", SeverityMinor),
			ch("c4", SeveritySignificant),
		}},
	}
	engine := NewEngine(challenger, &stubAdvocate{}, &stubJudge{},
		config.DebateConfig{MaxRounds: 1, MaxChallengesPerRound: 2}, nil)

	transcript := engine.Run(context.Background(), []string{"claim"})

	require.Len(t, transcript.Rounds, 2)
	ids := []string{transcript.Rounds[0].Challenge.ID, transcript.Rounds[1].Challenge.ID}
	assert.ElementsMatch(t, []string{"c2", "c4"}, ids, "the most severe challenges survive the cap")
}

func TestEngine_CancelledContextStillSummarizes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	challenger := &scriptedChallenger{passes: [][]Challenge{{ch("c1", SeverityCritical)}}}
	engine := newTestEngine(challenger, &stubAdvocate{}, &stubJudge{})

	transcript := engine.Run(ctx, []string{"claim"})

	assert.Empty(t, transcript.Rounds)
	assert.Zero(t, transcript.Summary.Rounds)
	assert.Zero(t, challenger.calls)
}

func TestSummarize_InsightsAndStrengthened(t *testing.T) {
	t.Parallel()

	rounds := []Round{
		{Number: 1, Ruling: Ruling{Verdict: VerdictSustained, RequiredAction: "qualify the timeline claim"}},
		{Number: 2, Ruling: Ruling{Verdict: VerdictOverruled}},
		{Number: 3, Ruling: Ruling{Verdict: VerdictOverruled}},
		{Number: 4, Ruling: Ruling{Verdict: VerdictPartial}},
	}

	summary := Summarize(rounds)

	assert.Equal(t, 4, summary.Rounds)
	assert.Equal(t, 1, summary.Sustained)
	assert.Equal(t, 2, summary.Overruled)
	assert.Equal(t, 1, summary.Partial)
	assert.Contains(t, summary.Insights, "qualify the timeline claim")
	assert.True(t, summary.AnalysisStrengthened, "more overruled than sustained strengthens the analysis")
	assert.InDelta(t, -0.05+0.04-0.02, summary.ConfidenceAdjustment, 1e-9)
}

func TestAdjustConfidence_KnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                          string
		sustained, overruled, partial int
		want                          float64
	}{
		{"no rounds", 0, 0, 0, 0},
		{"one sustained", 1, 0, 0, -0.05},
		{"one overruled", 0, 1, 0, 0.02},
		{"one partial", 0, 0, 1, -0.02},
		{"floor clamp", 10, 0, 0, -0.3},
		{"ceiling at exactly five overruled", 0, 5, 0, 0.1},
		{"ceiling clamp", 0, 20, 0, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, AdjustConfidence(tt.sustained, tt.overruled, tt.partial), 1e-9)
		})
	}
}

func TestProperty_AdjustmentAlwaysClamped(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	properties.Property("adjustment stays within [-0.3, 0.1]", prop.ForAll(
		func(sustained, overruled, partial int) bool {
			adj := AdjustConfidence(sustained, overruled, partial)
			return adj >= -0.3 && adj <= 0.1
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))
	properties.Property("strengthened only when overruled exceeds sustained", prop.ForAll(
		func(sustained, overruled int) bool {
			rounds := make([]Round, 0, sustained+overruled)
			for i := 0; i < sustained; i++ {
				rounds = append(rounds, Round{Ruling: Ruling{Verdict: VerdictSustained}})
			}
			for i := 0; i < overruled; i++ {
				rounds = append(rounds, Round{Ruling: Ruling{Verdict: VerdictOverruled}})
			}
			return Summarize(rounds).AnalysisStrengthened == (overruled > sustained)
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
	))
	properties.TestingRun(t)
}
