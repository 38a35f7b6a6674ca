package model

import "time"

// PullRequestBranch names one side of a stored pull request.
type PullRequestBranch struct {
	Ref string `json:"ref"`
	SHA string `json:"sha,omitempty"`
}

// PullRequestFile is a changed file with the suggestions generated for it.
type PullRequestFile struct {
	Path        string           `json:"path"`
	Status      string           `json:"status,omitempty"`
	Additions   int              `json:"additions,omitempty"`
	Deletions   int              `json:"deletions,omitempty"`
	Suggestions []CodeSuggestion `json:"suggestions,omitempty"`
}

// PullRequestRepository identifies the repository a pull request belongs to.
type PullRequestRepository struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName,omitempty"`
}

// PullRequestAuthor identifies the author of a stored pull request.
type PullRequestAuthor struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
}

// PullRequestRecord is the stored view of a pull request, owned by the
// pull-request store. The aggregator only reads it.
type PullRequestRecord struct {
	UUID       string                `json:"uuid"`
	Number     int                   `json:"number"`
	Repository PullRequestRepository `json:"repository"`
	Title      string                `json:"title"`
	Status     string                `json:"status"`
	Merged     bool                  `json:"merged"`
	URL        string                `json:"url,omitempty"`
	Head       PullRequestBranch     `json:"head"`
	Base       PullRequestBranch     `json:"base"`
	Provider   PlatformType          `json:"provider"`
	Author     PullRequestAuthor     `json:"author"`
	IsDraft    bool                  `json:"isDraft"`
	Files      []PullRequestFile     `json:"files,omitempty"`
	OpenedAt   *time.Time            `json:"openedAt,omitempty"`
	ClosedAt   *time.Time            `json:"closedAt,omitempty"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}

// SentSuggestionsCount scans the nested files for suggestions already
// delivered to the provider. The aggregator prefers the precomputed
// projection and only falls back to this scan when the projection is absent.
func (pr *PullRequestRecord) SentSuggestionsCount() int {
	count := 0
	for i := range pr.Files {
		for j := range pr.Files[i].Suggestions {
			if pr.Files[i].Suggestions[j].DeliveryStatus == DeliveryStatusSent {
				count++
			}
		}
	}
	return count
}

// SuggestionsCount is the precomputed sent/total projection for one pull
// request, keyed by repository id and PR number.
type SuggestionsCount struct {
	RepositoryID string `json:"repositoryId"`
	Number       int    `json:"number"`
	Sent         int    `json:"sent"`
	Total        int    `json:"total"`
}

// PullRequestKey identifies a pull request inside one repository.
type PullRequestKey struct {
	RepositoryID string `json:"repositoryId"`
	Number       int    `json:"number"`
}
