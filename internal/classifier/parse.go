package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

// wireVerdict is the JSON shape the oracle is instructed to return.
type wireVerdict struct {
	Intent             string       `json:"intent"`
	Confidence         *float64     `json:"confidence"`
	Reasoning          string       `json:"reasoning"`
	RecommendedActions []wireAction `json:"recommendedActions"`
	RiskLevel          string       `json:"riskLevel"`
}

type wireAction struct {
	Action        string `json:"action"`
	Priority      string `json:"priority"`
	EstimatedTime string `json:"estimatedTime"`
	RequiresHuman bool   `json:"requiresHuman"`
}

// ParseVerdict decodes an oracle response. Markdown code fences and prose
// around the object are ignored, and malformed JSON is repaired once before
// giving up.
func ParseVerdict(content string) (domain.Verdict, error) {
	raw := extractObject(content)
	if raw == "" {
		return domain.Verdict{}, errors.New("response contains no JSON object")
	}

	var w wireVerdict
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return domain.Verdict{}, fmt.Errorf("parse verdict: %w", err)
		}
		w = wireVerdict{}
		if err := json.Unmarshal([]byte(repaired), &w); err != nil {
			return domain.Verdict{}, fmt.Errorf("parse repaired verdict: %w", err)
		}
	}

	if strings.TrimSpace(w.Intent) == "" {
		return domain.Verdict{}, errors.New("verdict has no intent")
	}

	v := domain.Verdict{
		Intent:    domain.ParseIntent(w.Intent),
		Reasoning: w.Reasoning,
		RiskLevel: domain.ParseRiskLevel(w.RiskLevel),
	}
	if w.Confidence != nil {
		v.Confidence = domain.ClampConfidence(*w.Confidence)
	}
	for _, a := range w.RecommendedActions {
		if a.Action == "" {
			continue
		}
		v.RecommendedActions = append(v.RecommendedActions, domain.RecommendedAction{
			Action:        a.Action,
			Priority:      domain.ParsePriority(a.Priority),
			EstimatedTime: a.EstimatedTime,
			RequiresHuman: a.RequiresHuman,
		})
	}
	return v, nil
}

func extractObject(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	if end := strings.LastIndexByte(s, '}'); end > start {
		return strings.TrimSpace(s[start : end+1])
	}
	// Unterminated object; leave it to the repairer.
	return strings.TrimSpace(s[start:])
}
