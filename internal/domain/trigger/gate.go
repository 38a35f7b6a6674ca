package trigger

import (
	"strings"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// allowedActions is the stateless decision table for webhook-originated
// dispatches. synchronize/update re-admission is intentional: each push
// re-triggers review. Idempotency across duplicate deliveries is the
// provider's responsibility.
var allowedActions = map[string]struct{}{
	"opened":                  {},
	"synchronize":             {},
	"ready_for_review":        {},
	"open":                    {},
	"update":                  {},
	"git.pullrequest.updated": {},
	"git.pullrequest.created": {},
}

// GateInput carries the pieces ShouldRun needs: the canonical action and
// origin plus the raw payload, because the closed-state check reads
// provider-specific fields the canonical trigger does not keep.
type GateInput struct {
	Platform model.PlatformType
	Action   string
	Origin   string
	Payload  Payload
}

// ShouldRun decides whether a mapped event starts a review.
//   - Explicit command re-runs bypass every other gate.
//   - Bitbucket is pre-filtered upstream and always passes.
//   - Everything else must carry an allow-listed action and reference a pull
//     request that is not already merged, completed, or abandoned.
func ShouldRun(in GateInput) bool {
	if in.Origin == model.TriggerOriginCommand {
		return true
	}
	if in.Platform == model.PlatformBitbucket {
		return true
	}
	if _, ok := allowedActions[in.Action]; !ok {
		return false
	}
	return !isClosedState(in.Platform, in.Payload)
}

// isClosedState reports whether the payload's pull request is already
// merged/completed/abandoned, per provider-specific state fields.
func isClosedState(platform model.PlatformType, payload Payload) bool {
	switch platform {
	case model.PlatformGithub:
		if payload.Bool("pull_request.merged") {
			return true
		}
		return strings.EqualFold(payload.String("pull_request.state"), "closed")
	case model.PlatformGitlab:
		state := strings.ToLower(payload.String("object_attributes.state"))
		return state == "merged" || state == "closed"
	case model.PlatformAzureRepos:
		status := strings.ToLower(payload.String("resource.status"))
		return status == "completed" || status == "abandoned"
	default:
		return false
	}
}
