package agent

import (
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/100PercentTuna/the-undertow-sub000/config"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// Estimator counts tokens for cost estimation. It prefers a real tiktoken
// encoding and falls back to a character heuristic when the encoding data
// is unavailable (tiktoken fetches it lazily on first use).
type Estimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewEstimator creates a token estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Count estimates the token count of text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	e.once.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			e.enc = enc
		}
	})
	if e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	return estimateByChars(text)
}

// CountInput estimates the prompt tokens of one invocation input. The input
// is rendered to JSON the same way the prompt builder would serialize it.
func (e *Estimator) CountInput(in Input) int {
	data, err := json.Marshal(in)
	if err != nil {
		return 0
	}
	return e.Count(string(data))
}

// CountOutput estimates the completion tokens of one agent output.
func (e *Estimator) CountOutput(out types.AgentOutput) int {
	if out == nil {
		return 0
	}
	data, err := json.Marshal(out)
	if err != nil {
		return 0
	}
	return e.Count(string(data))
}

// estimateByChars approximates token counts from character classes: CJK
// text runs about 1.5 characters per token, everything else about 4.
func estimateByChars(text string) int {
	total, cjk := 0, 0
	for _, r := range text {
		total++
		if isCJK(r) {
			cjk++
		}
	}
	estimated := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF)
}

// Pricing maps tiers to their per-1K-token price.
type Pricing map[types.Tier]float64

// PricingFromConfig builds the pricing table, falling back to the reference
// prices for tiers the configuration leaves out.
func PricingFromConfig(cfg config.BudgetConfig) Pricing {
	pricing := Pricing{}
	for tier, rate := range types.DefaultTierPricing() {
		pricing[tier] = rate
	}
	for name, rate := range cfg.TierPricing {
		if rate > 0 {
			pricing[types.Tier(name)] = rate
		}
	}
	return pricing
}

// CostOf prices a token count at the tier's rate.
func (p Pricing) CostOf(tier types.Tier, tokens int) float64 {
	rate, ok := p[tier]
	if !ok {
		rate = types.DefaultTierPricing()[types.TierStandard]
	}
	return float64(tokens) / 1000.0 * rate
}

// Usage assembles the TokenUsage record for one invocation.
func (p Pricing) Usage(tier types.Tier, promptTokens, completionTokens int) types.TokenUsage {
	total := promptTokens + completionTokens
	return types.TokenUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      total,
		Cost:             p.CostOf(tier, total),
	}
}
