package suggestion

import "github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"

// Prioritize applies the per-severity quota table in a single pass. A quota
// of zero means unlimited for that tier. Input order decides which
// suggestions win inside a tier when the quota is exceeded — first come,
// first prioritized; there is no sub-ranking within a tier.
//
// The input is not mutated; the returned slice carries the PriorityStatus
// marks.
func Prioritize(suggestions []model.CodeSuggestion, quotas model.SeverityQuotas) []model.CodeSuggestion {
	counts := make(map[model.SeverityTier]int, 4)

	out := make([]model.CodeSuggestion, len(suggestions))
	for i, s := range suggestions {
		out[i] = s

		tier := model.NormalizeSeverity(s.Severity)
		quota := quotas.ForTier(tier)
		if quota == 0 || counts[tier] < quota {
			out[i].PriorityStatus = model.PriorityStatusPrioritized
			counts[tier]++
			continue
		}
		out[i].PriorityStatus = model.PriorityStatusDiscardedByQuota
	}
	return out
}

// Prioritized filters a marked slice down to the selected suggestions,
// preserving input order.
func Prioritized(suggestions []model.CodeSuggestion) []model.CodeSuggestion {
	out := make([]model.CodeSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.PriorityStatus == model.PriorityStatusPrioritized {
			out = append(out, s)
		}
	}
	return out
}
