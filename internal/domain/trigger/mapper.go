package trigger

import (
	"fmt"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// Event pairs a webhook's event name (from the delivery header or envelope)
// with its decoded payload.
type Event struct {
	Name    string
	Payload Payload
}

// Mapper is the capability set every provider implements. MapAction and
// MapRepository returning zero values means the payload is not
// review-relevant and dispatch is abandoned without error.
type Mapper interface {
	MapAction(ev Event) string
	MapRepository(ev Event) *model.TriggerRepository
	MapUser(ev Event) model.TriggerUser
	MapPullRequest(ev Event) *model.TriggerPullRequest
}

// NumberMapper is an optional extension for providers whose payloads carry a
// pull-request number outside the pull-request object (GitHub issue-comment
// events reference the PR through the issue).
type NumberMapper interface {
	MapNumber(ev Event) int
}

// registry maps each canonical provider to its mapper. Providers are a
// closed set, so the table is fixed at init.
var registry = map[model.PlatformType]Mapper{
	model.PlatformGithub:     githubMapper{},
	model.PlatformGitlab:     gitlabMapper{},
	model.PlatformAzureRepos: azureMapper{},
	model.PlatformBitbucket:  bitbucketMapper{},
}

// ForPlatform returns the mapper registered for a canonical provider.
func ForPlatform(p model.PlatformType) (Mapper, error) {
	m, ok := registry[p]
	if !ok {
		return nil, fmt.Errorf("no trigger mapper registered for platform %q", p)
	}
	return m, nil
}

// MapInput carries one normalized webhook into trigger mapping.
type MapInput struct {
	Platform model.PlatformType
	Event    string
	Origin   string
	Payload  Payload
}

// Map translates a raw provider payload into a canonical trigger.
// A nil trigger with a nil error means the event is not review-relevant
// (issue comments unrelated to PRs, pushes to unwatched refs, and so on).
func Map(in MapInput) (*model.CanonicalTrigger, error) {
	m, err := ForPlatform(in.Platform)
	if err != nil {
		return nil, err
	}

	payload := in.Payload
	if in.Platform == model.PlatformBitbucket {
		payload = SanitizeBitbucket(payload)
	}
	ev := Event{Name: in.Event, Payload: payload}

	action := m.MapAction(ev)
	if action == "" {
		return nil, nil
	}
	repo := m.MapRepository(ev)
	if repo == nil {
		return nil, nil
	}

	origin := in.Origin
	if origin == "" {
		origin = model.TriggerOriginWebhook
	}

	t := &model.CanonicalTrigger{
		Action:      action,
		Platform:    in.Platform,
		Event:       in.Event,
		Origin:      origin,
		Repository:  *repo,
		PullRequest: m.MapPullRequest(ev),
		User:        m.MapUser(ev),
	}

	switch {
	case t.PullRequest != nil:
		t.Number = t.PullRequest.Number
	default:
		if nm, ok := m.(NumberMapper); ok {
			t.Number = nm.MapNumber(ev)
		}
	}
	if t.Number <= 0 {
		// Without a pull-request number there is nothing to review.
		return nil, nil
	}

	return t, nil
}
