package trigger

import (
	"strings"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// bitbucketMapper translates Bitbucket Cloud webhook payloads. Payloads are
// sanitized before mapping (brace-wrapped UUIDs stripped); Bitbucket events
// are pre-filtered upstream so the gate always admits them.
type bitbucketMapper struct{}

var _ Mapper = bitbucketMapper{}

// bitbucketActions maps the X-Event-Key suffix to the canonical action.
var bitbucketActions = map[string]string{
	"pullrequest:created": "open",
	"pullrequest:updated": "update",
}

func (bitbucketMapper) MapAction(ev Event) string {
	return bitbucketActions[strings.ToLower(strings.TrimSpace(ev.Name))]
}

func (bitbucketMapper) MapRepository(ev Event) *model.TriggerRepository {
	id := ev.Payload.String("repository.uuid")
	name := ev.Payload.String("repository.name")
	if id == "" || name == "" {
		return nil
	}
	return &model.TriggerRepository{
		ID:       id,
		Name:     name,
		FullName: ev.Payload.String("repository.full_name"),
	}
}

func (bitbucketMapper) MapUser(ev Event) model.TriggerUser {
	return model.TriggerUser{
		Username: ev.Payload.String("actor.nickname"),
		UUID:     ev.Payload.String("actor.uuid"),
	}
}

func (bitbucketMapper) MapPullRequest(ev Event) *model.TriggerPullRequest {
	number := ev.Payload.Int("pullrequest.id")
	if number == 0 {
		return nil
	}
	state := ev.Payload.String("pullrequest.state")
	return &model.TriggerPullRequest{
		Number:  number,
		Title:   ev.Payload.String("pullrequest.title"),
		State:   state,
		Merged:  strings.EqualFold(state, "MERGED"),
		IsDraft: ev.Payload.Bool("pullrequest.draft"),
		Head: model.TriggerBranch{
			Ref:  ev.Payload.String("pullrequest.source.branch.name"),
			SHA:  ev.Payload.String("pullrequest.source.commit.hash"),
			Repo: ev.Payload.String("pullrequest.source.repository.full_name"),
		},
		Base: model.TriggerBranch{
			Ref:  ev.Payload.String("pullrequest.destination.branch.name"),
			SHA:  ev.Payload.String("pullrequest.destination.commit.hash"),
			Repo: ev.Payload.String("pullrequest.destination.repository.full_name"),
		},
		User: model.TriggerUser{
			Username: ev.Payload.String("pullrequest.author.nickname"),
			UUID:     ev.Payload.String("pullrequest.author.uuid"),
		},
		URL: ev.Payload.String("pullrequest.links.html.href"),
	}
}
