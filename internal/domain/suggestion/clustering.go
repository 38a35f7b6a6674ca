// Package suggestion groups duplicate review findings under their parent and
// applies the per-severity quota that decides which findings are surfaced.
package suggestion

import (
	"fmt"
	"strings"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

const occurrenceHeader = "This issue appears in multiple locations across the change:"

// ClusterRelated rewrites each PARENT suggestion's content to enumerate the
// locations of the parent and all of its RELATED duplicates. Suggestions
// without clustering information pass through unmodified, as does a RELATED
// suggestion whose parent is absent from the batch.
//
// The input is never mutated; the enriched content is recomputed from the
// original content on every call, so clustering the same input twice yields
// the same output.
//
// Complexity is O(n): one pass builds the parent-id index, a second pass
// rewrites parents via map lookups instead of a nested scan.
func ClusterRelated(suggestions []model.CodeSuggestion) []model.CodeSuggestion {
	relatedByParent := make(map[string][]model.CodeSuggestion)
	for _, s := range suggestions {
		ci := s.ClusteringInformation
		if ci == nil || ci.Type != model.ClusteringRelated || ci.ParentSuggestionID == "" {
			continue
		}
		relatedByParent[ci.ParentSuggestionID] = append(relatedByParent[ci.ParentSuggestionID], s)
	}

	out := make([]model.CodeSuggestion, len(suggestions))
	for i, s := range suggestions {
		out[i] = s
		ci := s.ClusteringInformation
		if ci == nil || ci.Type != model.ClusteringParent {
			continue
		}
		out[i].SuggestionContent = enrichParentContent(s, relatedByParent[s.ID])
	}
	return out
}

func enrichParentContent(parent model.CodeSuggestion, related []model.CodeSuggestion) string {
	var b strings.Builder
	b.WriteString(parent.SuggestionContent)

	b.WriteString("\n\n")
	b.WriteString(occurrenceHeader)
	b.WriteString("\n")
	b.WriteString(occurrenceLine(parent))
	for _, r := range related {
		b.WriteString("\n")
		b.WriteString(occurrenceLine(r))
	}
	return b.String()
}

func occurrenceLine(s model.CodeSuggestion) string {
	if s.Lines.End > 0 && s.Lines.End != s.Lines.Start {
		return fmt.Sprintf("- %s: Lines %d-%d", s.RelevantFile, s.Lines.Start, s.Lines.End)
	}
	return fmt.Sprintf("- %s: Line %d", s.RelevantFile, s.Lines.Start)
}
