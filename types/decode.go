package types

import (
	"encoding/json"
	"fmt"
)

// DecodeOutput rebuilds a concrete AgentOutput from its kind tag and JSON
// payload. Used when replaying cached responses. The switch is the single
// place that enumerates output variants; adding a variant means adding a
// case here.
func DecodeOutput(kind string, data []byte) (AgentOutput, error) {
	var out AgentOutput
	switch kind {
	case "motivation_analysis":
		out = &MotivationAnalysis{}
	case "chain_map":
		out = &ChainMap{}
	case "subtlety_reading":
		out = &SubtletyReading{}
	case "power_geometry":
		out = &PowerGeometry{}
	case "deep_context":
		out = &DeepContext{}
	case "connection_map":
		out = &ConnectionMap{}
	case "uncertainty_report":
		out = &UncertaintyReport{}
	case "synthesis_draft":
		out = &SynthesisDraft{}
	case "debate_transcript":
		out = &DebateTranscript{}
	case "verification_report":
		out = &VerificationReport{}
	case "article_draft":
		out = &ArticleDraft{}
	case "edited_article":
		out = &EditedArticle{}
	default:
		return nil, fmt.Errorf("unknown output kind %q", kind)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode %s output: %w", kind, err)
	}
	return out, nil
}
