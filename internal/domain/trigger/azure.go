package trigger

import (
	"strings"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// azureMapper translates Azure DevOps Service Hooks payloads. Azure events
// keep their fully-qualified event type as the canonical action
// ("git.pullrequest.created", "git.pullrequest.updated").
type azureMapper struct{}

var _ Mapper = azureMapper{}

func (azureMapper) MapAction(ev Event) string {
	eventType := ev.Payload.String("eventType")
	if eventType == "" {
		eventType = ev.Name
	}
	if !strings.HasPrefix(eventType, "git.pullrequest.") {
		return ""
	}
	return eventType
}

func (azureMapper) MapRepository(ev Event) *model.TriggerRepository {
	id := ev.Payload.String("resource.repository.id")
	name := ev.Payload.String("resource.repository.name")
	if id == "" || name == "" {
		return nil
	}
	fullName := name
	if project := ev.Payload.String("resource.repository.project.name"); project != "" {
		fullName = project + "/" + name
	}
	return &model.TriggerRepository{
		ID:       id,
		Name:     name,
		FullName: fullName,
	}
}

func (azureMapper) MapUser(ev Event) model.TriggerUser {
	return model.TriggerUser{
		Username:   ev.Payload.String("resource.createdBy.uniqueName"),
		Descriptor: ev.Payload.String("resource.createdBy.descriptor"),
		ID:         ev.Payload.String("resource.createdBy.id"),
	}
}

func (azureMapper) MapPullRequest(ev Event) *model.TriggerPullRequest {
	number := ev.Payload.Int("resource.pullRequestId")
	if number == 0 {
		return nil
	}
	status := ev.Payload.String("resource.status")
	return &model.TriggerPullRequest{
		Number:  number,
		Title:   ev.Payload.String("resource.title"),
		State:   status,
		Merged:  status == "completed",
		IsDraft: ev.Payload.Bool("resource.isDraft"),
		Head: model.TriggerBranch{
			Ref: shortRef(ev.Payload.String("resource.sourceRefName")),
			SHA: ev.Payload.String("resource.lastMergeSourceCommit.commitId"),
		},
		Base: model.TriggerBranch{
			Ref: shortRef(ev.Payload.String("resource.targetRefName")),
			SHA: ev.Payload.String("resource.lastMergeTargetCommit.commitId"),
		},
		User: model.TriggerUser{
			Username:   ev.Payload.String("resource.createdBy.uniqueName"),
			Descriptor: ev.Payload.String("resource.createdBy.descriptor"),
			ID:         ev.Payload.String("resource.createdBy.id"),
		},
		URL: ev.Payload.String("resource._links.web.href"),
	}
}

// shortRef strips the refs/heads/ prefix Azure keeps on branch names.
func shortRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
