package model

// OrganizationAndTeamData is the tenant scope threaded through every
// operation. It is never persisted by the pipeline itself.
type OrganizationAndTeamData struct {
	OrganizationID string `json:"organizationId"`
	TeamID         string `json:"teamId,omitempty"`
}

// TriggerOrigin marks how a canonical trigger was produced.
const (
	// TriggerOriginWebhook marks a trigger derived from a provider webhook.
	TriggerOriginWebhook = "webhook"
	// TriggerOriginCommand marks an explicit user-triggered re-run. Command
	// triggers bypass the dispatch gate entirely.
	TriggerOriginCommand = "command"
)

// TriggerRepository is the provider-agnostic repository shape on a trigger.
type TriggerRepository struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName,omitempty"`
	Language string `json:"language,omitempty"`
}

// TriggerUser identifies the user that caused the event. Providers expose
// different identifier fields; all are kept so the dispatcher can derive a
// single git id (descriptor first, then id, then uuid).
type TriggerUser struct {
	Username   string `json:"username,omitempty"`
	Descriptor string `json:"descriptor,omitempty"`
	ID         string `json:"id,omitempty"`
	UUID       string `json:"uuid,omitempty"`
	Email      string `json:"email,omitempty"`
}

// TriggerBranch names one side of a pull request.
type TriggerBranch struct {
	Ref  string `json:"ref"`
	SHA  string `json:"sha,omitempty"`
	Repo string `json:"repo,omitempty"`
}

// TriggerPullRequest is the provider-agnostic pull-request shape on a
// trigger. It may be absent on the trigger (issue-comment events) and is
// then backfilled by the dispatcher.
type TriggerPullRequest struct {
	Number  int           `json:"number"`
	Title   string        `json:"title,omitempty"`
	State   string        `json:"state,omitempty"`
	Merged  bool          `json:"merged"`
	IsDraft bool          `json:"isDraft"`
	Head    TriggerBranch `json:"head"`
	Base    TriggerBranch `json:"base"`
	User    TriggerUser   `json:"user"`
	URL     string        `json:"url,omitempty"`
}

// CanonicalTrigger is the provider-agnostic shape of a webhook-derived
// event. It lives for exactly one dispatch call and is never persisted.
type CanonicalTrigger struct {
	Action     string            `json:"action"`
	Platform   PlatformType      `json:"platform"`
	Event      string            `json:"event"`
	Origin     string            `json:"origin"`
	Repository TriggerRepository `json:"repository"`
	// Number is the pull-request number. It is set even when PullRequest is
	// absent (issue-comment events carry the number through the issue) so
	// the dispatcher can backfill the rest.
	Number      int                 `json:"number"`
	PullRequest *TriggerPullRequest `json:"pullRequest,omitempty"`
	User        TriggerUser         `json:"user"`
}
