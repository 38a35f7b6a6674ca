package trigger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

func mustDecode(t *testing.T, raw string) Payload {
	t.Helper()
	p, err := DecodePayload(json.RawMessage(raw))
	require.NoError(t, err)
	return p
}

const githubPREvent = `{
	"action": "opened",
	"repository": {"id": 42, "name": "api", "full_name": "acme/api", "language": "Go"},
	"sender": {"login": "octocat", "id": 1},
	"pull_request": {
		"number": 7,
		"title": "Add retries",
		"state": "open",
		"merged": false,
		"draft": false,
		"html_url": "https://github.com/acme/api/pull/7",
		"head": {"ref": "feature/retries", "sha": "abc123", "repo": {"full_name": "acme/api"}},
		"base": {"ref": "main", "sha": "def456", "repo": {"full_name": "acme/api"}},
		"user": {"login": "octocat", "id": 1}
	}
}`

func TestMapGithubPullRequest(t *testing.T) {
	got, err := Map(MapInput{
		Platform: model.PlatformGithub,
		Event:    "pull_request",
		Payload:  mustDecode(t, githubPREvent),
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "opened", got.Action)
	assert.Equal(t, model.TriggerOriginWebhook, got.Origin)
	assert.Equal(t, "42", got.Repository.ID)
	assert.Equal(t, "api", got.Repository.Name)
	assert.Equal(t, "Go", got.Repository.Language)
	assert.Equal(t, 7, got.Number)
	require.NotNil(t, got.PullRequest)
	assert.Equal(t, "feature/retries", got.PullRequest.Head.Ref)
	assert.Equal(t, "main", got.PullRequest.Base.Ref)
	assert.Equal(t, "octocat", got.User.Username)
}

func TestMapGithubIssueCommentCarriesNumberWithoutPR(t *testing.T) {
	payload := mustDecode(t, `{
		"action": "created",
		"repository": {"id": 42, "name": "api", "full_name": "acme/api"},
		"sender": {"login": "octocat", "id": 1},
		"issue": {"number": 9, "pull_request": {"url": "https://api.github.com/repos/acme/api/pulls/9"}},
		"comment": {"body": "@kodus review"}
	}`)

	got, err := Map(MapInput{
		Platform: model.PlatformGithub,
		Event:    "issue_comment",
		Origin:   model.TriggerOriginCommand,
		Payload:  payload,
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Nil(t, got.PullRequest)
	assert.Equal(t, 9, got.Number)
	assert.Equal(t, model.TriggerOriginCommand, got.Origin)
}

func TestMapGithubIssueCommentOnPlainIssueIsAbandoned(t *testing.T) {
	payload := mustDecode(t, `{
		"action": "created",
		"repository": {"id": 42, "name": "api"},
		"sender": {"login": "octocat"},
		"issue": {"number": 9},
		"comment": {"body": "unrelated"}
	}`)

	got, err := Map(MapInput{
		Platform: model.PlatformGithub,
		Event:    "issue_comment",
		Payload:  payload,
	})
	require.NoError(t, err)
	assert.Nil(t, got, "issue comments without a PR reference are not review-relevant")
}

func TestMapGitlabMergeRequest(t *testing.T) {
	payload := mustDecode(t, `{
		"object_kind": "merge_request",
		"user": {"username": "dev", "id": 5},
		"project": {"id": 77, "name": "api", "path_with_namespace": "acme/api"},
		"object_attributes": {
			"action": "update",
			"iid": 12,
			"title": "Refactor config",
			"state": "opened",
			"draft": false,
			"source_branch": "refactor",
			"target_branch": "main",
			"last_commit": {"id": "fffeee"},
			"url": "https://gitlab.com/acme/api/-/merge_requests/12"
		}
	}`)

	got, err := Map(MapInput{
		Platform: model.PlatformGitlab,
		Event:    "Merge Request Hook",
		Payload:  payload,
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "update", got.Action)
	assert.Equal(t, "77", got.Repository.ID)
	assert.Equal(t, 12, got.Number)
	require.NotNil(t, got.PullRequest)
	assert.False(t, got.PullRequest.Merged)
	assert.Equal(t, "refactor", got.PullRequest.Head.Ref)
}

func TestMapGitlabNonMergeRequestIsAbandoned(t *testing.T) {
	payload := mustDecode(t, `{"object_kind": "note", "project": {"id": 77, "name": "api"}}`)

	got, err := Map(MapInput{
		Platform: model.PlatformGitlab,
		Event:    "Note Hook",
		Payload:  payload,
	})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMapAzurePullRequestCreated(t *testing.T) {
	payload := mustDecode(t, `{
		"eventType": "git.pullrequest.created",
		"resource": {
			"pullRequestId": 3,
			"title": "Azure PR",
			"status": "active",
			"isDraft": false,
			"sourceRefName": "refs/heads/feature",
			"targetRefName": "refs/heads/main",
			"repository": {"id": "repo-guid", "name": "api", "project": {"name": "Acme"}},
			"createdBy": {"uniqueName": "dev@acme.com", "descriptor": "aad.xyz", "id": "user-guid"}
		}
	}`)

	got, err := Map(MapInput{
		Platform: model.PlatformAzureRepos,
		Event:    "git.pullrequest.created",
		Payload:  payload,
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "git.pullrequest.created", got.Action)
	assert.Equal(t, "Acme/api", got.Repository.FullName)
	require.NotNil(t, got.PullRequest)
	assert.Equal(t, "feature", got.PullRequest.Head.Ref)
	assert.Equal(t, "main", got.PullRequest.Base.Ref)
	assert.Equal(t, "aad.xyz", got.User.Descriptor)
}

func TestMapBitbucketSanitizesBraceWrappedUUIDs(t *testing.T) {
	payload := mustDecode(t, `{
		"repository": {"uuid": "{repo-uuid}", "name": "api", "full_name": "acme/api"},
		"actor": {"uuid": "{actor-uuid}", "nickname": "dev"},
		"pullrequest": {
			"id": 4,
			"title": "Bitbucket PR",
			"state": "OPEN",
			"author": {"uuid": "{author-uuid}", "nickname": "dev"},
			"source": {"branch": {"name": "feature"}, "commit": {"hash": "aaa"}},
			"destination": {"branch": {"name": "main"}, "commit": {"hash": "bbb"}}
		}
	}`)

	got, err := Map(MapInput{
		Platform: model.PlatformBitbucket,
		Event:    "pullrequest:created",
		Payload:  payload,
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "open", got.Action)
	assert.Equal(t, "repo-uuid", got.Repository.ID, "brace wrapping must be stripped")
	assert.Equal(t, "actor-uuid", got.User.UUID)
	require.NotNil(t, got.PullRequest)
	assert.Equal(t, "author-uuid", got.PullRequest.User.UUID)
	assert.False(t, got.PullRequest.Merged)
}

func TestMapUnknownPlatformFails(t *testing.T) {
	_, err := Map(MapInput{Platform: model.PlatformType("SVN"), Payload: Payload{}})
	require.Error(t, err)
}

func TestSanitizeBitbucketLeavesNonBracedStringsAlone(t *testing.T) {
	p := SanitizeBitbucket(Payload{
		"a": "{wrapped}",
		"b": "plain",
		"c": []any{"{x}", map[string]any{"d": "{y}"}},
	})
	assert.Equal(t, "wrapped", p["a"])
	assert.Equal(t, "plain", p["b"])
	list, ok := p["c"].([]any)
	require.True(t, ok)
	assert.Equal(t, "x", list[0])
	nested, ok := list[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "y", nested["d"])
}
