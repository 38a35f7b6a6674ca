package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrWebhookJobNotFound is returned when a webhook job lookup misses.
	ErrWebhookJobNotFound = errors.New("webhook job not found")
	// ErrDuplicateWebhookJob is returned when a job with the same correlation
	// id already exists. Providers redeliver; the queue keeps one row per id.
	ErrDuplicateWebhookJob = errors.New("webhook job already enqueued")
	// ErrPullRequestNotFound is returned when a single pull request lookup misses.
	ErrPullRequestNotFound = errors.New("pull request not found")
)
