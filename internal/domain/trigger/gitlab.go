package trigger

import "github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"

// gitlabMapper translates GitLab merge-request webhook payloads.
type gitlabMapper struct{}

var _ Mapper = gitlabMapper{}

func (gitlabMapper) MapAction(ev Event) string {
	if ev.Payload.String("object_kind") != "merge_request" {
		return ""
	}
	return ev.Payload.String("object_attributes.action")
}

func (gitlabMapper) MapRepository(ev Event) *model.TriggerRepository {
	id := ev.Payload.String("project.id")
	name := ev.Payload.String("project.name")
	if id == "" || name == "" {
		return nil
	}
	return &model.TriggerRepository{
		ID:       id,
		Name:     name,
		FullName: ev.Payload.String("project.path_with_namespace"),
	}
}

func (gitlabMapper) MapUser(ev Event) model.TriggerUser {
	return model.TriggerUser{
		Username: ev.Payload.String("user.username"),
		ID:       ev.Payload.String("user.id"),
		Email:    ev.Payload.String("user.email"),
	}
}

func (gitlabMapper) MapPullRequest(ev Event) *model.TriggerPullRequest {
	number := ev.Payload.Int("object_attributes.iid")
	if number == 0 {
		return nil
	}
	state := ev.Payload.String("object_attributes.state")
	return &model.TriggerPullRequest{
		Number:  number,
		Title:   ev.Payload.String("object_attributes.title"),
		State:   state,
		Merged:  state == "merged",
		IsDraft: ev.Payload.Bool("object_attributes.draft") || ev.Payload.Bool("object_attributes.work_in_progress"),
		Head: model.TriggerBranch{
			Ref: ev.Payload.String("object_attributes.source_branch"),
			SHA: ev.Payload.String("object_attributes.last_commit.id"),
		},
		Base: model.TriggerBranch{
			Ref: ev.Payload.String("object_attributes.target_branch"),
		},
		User: model.TriggerUser{
			Username: ev.Payload.String("user.username"),
			ID:       ev.Payload.String("user.id"),
		},
		URL: ev.Payload.String("object_attributes.url"),
	}
}
