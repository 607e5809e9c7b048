package debate

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/100PercentTuna/the-undertow-sub000/config"
)

// Engine drives the challenge/respond/rule loop over an analysis's claims.
// It never returns an error: a failed challenger pass or a failed challenge
// is skipped and logged, and the transcript summarizes whatever completed.
type Engine struct {
	challenger Challenger
	advocate   Advocate
	judge      Judge
	cfg        config.DebateConfig
	logger     *zap.Logger
}

// NewEngine creates a debate engine with the given role implementations.
func NewEngine(challenger Challenger, advocate Advocate, judge Judge, cfg config.DebateConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = config.DefaultDebateConfig().MaxRounds
	}
	if cfg.MaxChallengesPerRound <= 0 {
		cfg.MaxChallengesPerRound = config.DefaultDebateConfig().MaxChallengesPerRound
	}
	return &Engine{
		challenger: challenger,
		advocate:   advocate,
		judge:      judge,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "debate")),
	}
}

// Run debates the claims for at most MaxRounds challenger passes, stopping
// early when the challenger produces zero challenges (convergence) or the
// context is done. Round numbers accumulate across passes.
func (e *Engine) Run(ctx context.Context, claims []string) Transcript {
	start := time.Now()
	var rounds []Round

	for pass := 1; pass <= e.cfg.MaxRounds; pass++ {
		if ctx.Err() != nil {
			e.logger.Warn("debate interrupted",
				zap.Int("pass", pass),
				zap.Error(ctx.Err()),
			)
			break
		}

		challenges, err := e.challenger.Challenge(ctx, claims, rounds)
		if err != nil {
			e.logger.Warn("challenger pass failed, skipping",
				zap.Int("pass", pass),
				zap.Error(err),
			)
			continue
		}
		if len(challenges) == 0 {
			e.logger.Info("debate converged",
				zap.Int("pass", pass),
				zap.Int("rounds", len(rounds)),
			)
			break
		}
		challenges = capBySeverity(challenges, e.cfg.MaxChallengesPerRound)

		for _, ch := range challenges {
			round, ok := e.resolve(ctx, pass, ch)
			if !ok {
				continue
			}
			round.Number = len(rounds) + 1
			rounds = append(rounds, round)
		}
	}

	summary := Summarize(rounds)
	e.logger.Info("debate completed",
		zap.Int("rounds", summary.Rounds),
		zap.Int("sustained", summary.Sustained),
		zap.Int("overruled", summary.Overruled),
		zap.Int("partial", summary.Partial),
		zap.Float64("adjustment", summary.ConfidenceAdjustment),
	)

	return Transcript{
		Rounds:   rounds,
		Summary:  summary,
		Duration: time.Since(start),
	}
}

// resolve runs one challenge through the advocate and the judge. A failure
// at either step drops the challenge.
func (e *Engine) resolve(ctx context.Context, pass int, ch Challenge) (Round, bool) {
	resp, err := e.advocate.Respond(ctx, ch)
	if err != nil {
		e.logger.Warn("advocate failed, dropping challenge",
			zap.Int("pass", pass),
			zap.String("challenge_id", ch.ID),
			zap.Error(err),
		)
		return Round{}, false
	}

	ruling, err := e.judge.Rule(ctx, ch, resp)
	if err != nil {
		e.logger.Warn("judge failed, dropping challenge",
			zap.Int("pass", pass),
			zap.String("challenge_id", ch.ID),
			zap.Error(err),
		)
		return Round{}, false
	}

	return Round{Challenge: ch, Response: resp, Ruling: ruling}, true
}

// capBySeverity keeps at most limit challenges, preferring the most severe.
// The original order is preserved among equals.
func capBySeverity(challenges []Challenge, limit int) []Challenge {
	if len(challenges) <= limit {
		return challenges
	}
	capped := make([]Challenge, len(challenges))
	copy(capped, challenges)
	sort.SliceStable(capped, func(i, j int) bool {
		return capped[i].Severity.Rank() > capped[j].Severity.Rank()
	})
	return capped[:limit]
}
