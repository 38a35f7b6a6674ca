package model

import "strings"

// SeverityTier is one of the four tiers used for quota-based suggestion
// selection.
type SeverityTier string

const (
	// SeverityCritical is the highest severity tier.
	SeverityCritical SeverityTier = "critical"
	// SeverityHigh is the second severity tier.
	SeverityHigh SeverityTier = "high"
	// SeverityMedium is the third severity tier.
	SeverityMedium SeverityTier = "medium"
	// SeverityLow is the lowest severity tier.
	SeverityLow SeverityTier = "low"
)

// NormalizeSeverity maps a loosely-cased severity label onto a tier.
// Unknown labels map to SeverityLow so a misbehaving model cannot bypass
// the quota table by inventing tiers.
func NormalizeSeverity(raw string) SeverityTier {
	switch SeverityTier(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityLow
	}
}

// ClusteringType tags a suggestion's role inside a duplicate cluster.
type ClusteringType string

const (
	// ClusteringParent marks the primary finding of a cluster.
	ClusteringParent ClusteringType = "PARENT"
	// ClusteringRelated marks a duplicate of a parent finding elsewhere in the diff.
	ClusteringRelated ClusteringType = "RELATED"
)

// ClusteringInformation is the tagged variant attached to clustered
// suggestions. Type selects which fields are meaningful.
type ClusteringInformation struct {
	Type ClusteringType `json:"type"`
	// Parent-only fields.
	RelatedSuggestionsIDs []string `json:"relatedSuggestionsIds,omitempty"`
	ProblemDescription    string   `json:"problemDescription,omitempty"`
	// Related-only field.
	ParentSuggestionID string `json:"parentSuggestionId,omitempty"`
}

// PriorityStatus records the outcome of severity prioritization.
type PriorityStatus string

const (
	// PriorityStatusPrioritized marks a suggestion selected for delivery.
	PriorityStatusPrioritized PriorityStatus = "prioritized"
	// PriorityStatusDiscardedByQuota marks a suggestion dropped because its
	// severity tier exceeded the configured quota.
	PriorityStatusDiscardedByQuota PriorityStatus = "discarded_by_severity_quota"
)

// DeliveryStatus tracks whether a suggestion reached the provider.
type DeliveryStatus string

const (
	// DeliveryStatusSent marks a suggestion posted to the provider.
	DeliveryStatusSent DeliveryStatus = "sent"
	// DeliveryStatusNotSent marks a suggestion that was never posted.
	DeliveryStatusNotSent DeliveryStatus = "not_sent"
)

// LineRange locates a suggestion inside a file.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CodeSuggestion is one review finding produced by the automation strategy.
type CodeSuggestion struct {
	ID                    string                 `json:"id"`
	RelevantFile          string                 `json:"relevantFile"`
	Language              string                 `json:"language,omitempty"`
	SuggestionContent     string                 `json:"suggestionContent"`
	ImprovedCode          string                 `json:"improvedCode,omitempty"`
	Lines                 LineRange              `json:"lines"`
	Severity              string                 `json:"severity"`
	Label                 string                 `json:"label,omitempty"`
	PriorityStatus        PriorityStatus         `json:"priorityStatus,omitempty"`
	DeliveryStatus        DeliveryStatus         `json:"deliveryStatus,omitempty"`
	ClusteringInformation *ClusteringInformation `json:"clusteringInformation,omitempty"`
}

// SeverityQuotas is the per-tier quota table applied during prioritization.
// Zero means unlimited for that tier.
type SeverityQuotas struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// ForTier returns the quota configured for the given tier.
func (q SeverityQuotas) ForTier(tier SeverityTier) int {
	switch tier {
	case SeverityCritical:
		return q.Critical
	case SeverityHigh:
		return q.High
	case SeverityMedium:
		return q.Medium
	case SeverityLow:
		return q.Low
	default:
		return 0
	}
}
