package trigger

import "github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"

// githubMapper translates GitHub webhook payloads. GitHub is the only
// provider that ships the repository language in the webhook itself.
type githubMapper struct{}

var (
	_ Mapper       = githubMapper{}
	_ NumberMapper = githubMapper{}
)

func (githubMapper) MapAction(ev Event) string {
	return ev.Payload.String("action")
}

func (githubMapper) MapRepository(ev Event) *model.TriggerRepository {
	id := ev.Payload.String("repository.id")
	name := ev.Payload.String("repository.name")
	if id == "" || name == "" {
		return nil
	}
	return &model.TriggerRepository{
		ID:       id,
		Name:     name,
		FullName: ev.Payload.String("repository.full_name"),
		Language: ev.Payload.String("repository.language"),
	}
}

func (githubMapper) MapUser(ev Event) model.TriggerUser {
	return model.TriggerUser{
		Username: ev.Payload.String("sender.login"),
		ID:       ev.Payload.String("sender.id"),
	}
}

func (githubMapper) MapPullRequest(ev Event) *model.TriggerPullRequest {
	if ev.Payload.Int("pull_request.number") == 0 {
		// Issue-comment events reference the PR through the issue; the
		// dispatcher backfills the full shape from the issue number.
		return nil
	}
	return &model.TriggerPullRequest{
		Number:  ev.Payload.Int("pull_request.number"),
		Title:   ev.Payload.String("pull_request.title"),
		State:   ev.Payload.String("pull_request.state"),
		Merged:  ev.Payload.Bool("pull_request.merged"),
		IsDraft: ev.Payload.Bool("pull_request.draft"),
		Head: model.TriggerBranch{
			Ref:  ev.Payload.String("pull_request.head.ref"),
			SHA:  ev.Payload.String("pull_request.head.sha"),
			Repo: ev.Payload.String("pull_request.head.repo.full_name"),
		},
		Base: model.TriggerBranch{
			Ref:  ev.Payload.String("pull_request.base.ref"),
			SHA:  ev.Payload.String("pull_request.base.sha"),
			Repo: ev.Payload.String("pull_request.base.repo.full_name"),
		},
		User: model.TriggerUser{
			Username: ev.Payload.String("pull_request.user.login"),
			ID:       ev.Payload.String("pull_request.user.id"),
		},
		URL: ev.Payload.String("pull_request.html_url"),
	}
}

// MapNumber extracts the PR number from issue-comment payloads. Only issues
// that are pull requests qualify.
func (githubMapper) MapNumber(ev Event) int {
	if ev.Payload.String("issue.pull_request.url") == "" {
		return 0
	}
	return ev.Payload.Int("issue.number")
}
