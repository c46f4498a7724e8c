package policy

import (
	"strings"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/samber/lo"
)

// Evaluator maps detection findings to relay intents. It has no side effects
// and is safe for concurrent use.
type Evaluator struct {
	rules map[string][]models.ResponseRule
}

func normalizeClass(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NewEvaluator(rules []models.ResponseRule) *Evaluator {
	byClass := make(map[string][]models.ResponseRule, len(rules))
	for _, r := range rules {
		k := normalizeClass(r.ClassName)
		byClass[k] = append(byClass[k], r)
	}
	return &Evaluator{rules: byClass}
}

// Evaluate returns the relays to trigger, in first-seen order without
// duplicates. Unmapped classes are ignored; a finding qualifies when its
// confidence is at least the rule threshold.
func (e *Evaluator) Evaluate(rec models.DetectionRecord) []string {
	var intents []string
	for _, f := range rec.Findings {
		for _, r := range e.rules[normalizeClass(f.ClassName)] {
			if f.Confidence >= r.Threshold {
				intents = append(intents, r.RelayID)
			}
		}
	}
	return lo.Uniq(intents)
}

// Rules returns the configured rules.
func (e *Evaluator) Rules() []models.ResponseRule {
	return lo.Flatten(lo.Values(e.rules))
}
