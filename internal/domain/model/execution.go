package model

import (
	"encoding/json"
	"time"
)

// AutomationType names an automation an execution ran for. Code review is
// the only automation dispatched by this pipeline.
type AutomationType string

// AutomationCodeReview is the automation type dispatched for review-relevant
// webhook events.
const AutomationCodeReview AutomationType = "automation_code_review"

// AutomationStatus is the lifecycle state of an automation execution.
type AutomationStatus string

const (
	// AutomationStatusPending marks an execution that has not started.
	AutomationStatusPending AutomationStatus = "pending"
	// AutomationStatusRunning marks an execution in progress.
	AutomationStatusRunning AutomationStatus = "running"
	// AutomationStatusSuccess marks a finished execution.
	AutomationStatusSuccess AutomationStatus = "success"
	// AutomationStatusError marks a failed execution.
	AutomationStatusError AutomationStatus = "error"
	// AutomationStatusSkipped marks an execution abandoned by the gate.
	AutomationStatusSkipped AutomationStatus = "skipped"
)

// AutomationExecution is one run of an automation for a pull request.
// Created by the automation execution strategy; read-only to the aggregator.
type AutomationExecution struct {
	UUID              string           `json:"uuid"`
	PullRequestNumber int              `json:"pullRequestNumber"`
	RepositoryID      string           `json:"repositoryId"`
	Status            AutomationStatus `json:"status"`
	ErrorMessage      string           `json:"errorMessage,omitempty"`
	Origin            string           `json:"origin,omitempty"`
	DataExecution     json.RawMessage  `json:"dataExecution,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// CodeReviewStatus is the progress state of one code review pass.
type CodeReviewStatus string

const (
	// CodeReviewStatusInProgress marks a review pass still running.
	CodeReviewStatusInProgress CodeReviewStatus = "in_progress"
	// CodeReviewStatusSuccess marks a finished review pass.
	CodeReviewStatusSuccess CodeReviewStatus = "success"
	// CodeReviewStatusError marks a failed review pass.
	CodeReviewStatusError CodeReviewStatus = "error"
)

// CodeReviewExecution is one timeline entry of a code review pass. Many
// entries reference one automation execution by uuid (weak reference).
type CodeReviewExecution struct {
	UUID                    string           `json:"uuid"`
	AutomationExecutionUUID string           `json:"automationExecutionUuid"`
	Status                  CodeReviewStatus `json:"status"`
	Message                 string           `json:"message,omitempty"`
	CreatedAt               time.Time        `json:"createdAt"`
	UpdatedAt               time.Time        `json:"updatedAt"`
}

// EnrichedPullRequest is the dashboard-facing join of one automation
// execution with its pull request and review timeline.
type EnrichedPullRequest struct {
	UUID               string                `json:"uuid"`
	Number             int                   `json:"prNumber"`
	Title              string                `json:"title"`
	Status             string                `json:"status"`
	Merged             bool                  `json:"merged"`
	URL                string                `json:"url,omitempty"`
	Repository         PullRequestRepository `json:"repository"`
	Provider           PlatformType          `json:"provider"`
	Author             PullRequestAuthor     `json:"author"`
	IsDraft            bool                  `json:"isDraft"`
	AutomationUUID     string                `json:"automationExecutionUuid"`
	AutomationStatus   AutomationStatus      `json:"automationStatus"`
	Origin             string                `json:"origin,omitempty"`
	SuggestionsSent    int                   `json:"suggestionsSentCount"`
	SuggestionsTotal   int                   `json:"suggestionsTotalCount"`
	CodeReviewTimeline []CodeReviewExecution `json:"codeReviewTimeline,omitempty"`
	ExecutedAt         time.Time             `json:"executedAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

// EnrichedPullRequestsQuery carries the dashboard filters. Limit and Page
// default to 30 and 1 when unset.
type EnrichedPullRequestsQuery struct {
	Organization       OrganizationAndTeamData `json:"organization"`
	RepositoryID       string                  `json:"repositoryId,omitempty"`
	RepositoryName     string                  `json:"repositoryName,omitempty"`
	PullRequestNumber  *int                    `json:"pullRequestNumber,omitempty"`
	PullRequestTitle   string                  `json:"pullRequestTitle,omitempty"`
	HasSentSuggestions *bool                   `json:"hasSentSuggestions,omitempty"`
	Limit              int                     `json:"limit,omitempty"`
	Page               int                     `json:"page,omitempty"`
}

// Pagination is the stable pagination metadata returned alongside enriched
// pull requests.
type Pagination struct {
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	TotalItems      int  `json:"totalItems"`
	ItemsPerPage    int  `json:"itemsPerPage"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// EnrichedPullRequestsPage is the full aggregator response.
type EnrichedPullRequestsPage struct {
	Data       []EnrichedPullRequest `json:"data"`
	Pagination Pagination            `json:"pagination"`
}

// ExecutionFilter scopes the execution-store pagination query.
type ExecutionFilter struct {
	Organization      OrganizationAndTeamData
	RepositoryIDs     []string
	PullRequestNumber *int
	// PullRequestKeys restricts results to specific {repository, number}
	// pairs, used when a title filter was pre-resolved against the text index.
	PullRequestKeys []PullRequestKey
}
