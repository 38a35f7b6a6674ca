// Package platform normalizes loosely-typed provider identifiers into the
// canonical PlatformType enum.
package platform

import (
	"fmt"
	"strings"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// UnsupportedPlatformError is returned when an identifier matches no known
// provider. Misrouting a webhook to the wrong provider adapter is worse than
// rejecting it, so resolution never falls back to a default.
type UnsupportedPlatformError struct {
	Raw string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %q", e.Raw)
}

// aliasTable maps normalized identifiers onto canonical providers. Keys are
// the output of normalize: uppercase, trimmed, whitespace and hyphens
// collapsed to single underscores.
var aliasTable = map[string]model.PlatformType{
	"GITHUB":             model.PlatformGithub,
	"GITHUB_ENTERPRISE":  model.PlatformGithub,
	"GITLAB":             model.PlatformGitlab,
	"GITLAB_SELF_HOSTED": model.PlatformGitlab,
	"AZURE_REPOS":        model.PlatformAzureRepos,
	"AZUREDEVOPS":        model.PlatformAzureRepos,
	"AZURE_DEVOPS":       model.PlatformAzureRepos,
	"AZURE_REPOSITORIES": model.PlatformAzureRepos,
	"TFS":                model.PlatformAzureRepos,
	"BITBUCKET":          model.PlatformBitbucket,
	"BITBUCKET_CLOUD":    model.PlatformBitbucket,
	"STASH":              model.PlatformBitbucket,
}

// Resolve maps an arbitrary provider identifier onto the canonical enum.
// Exact canonical matches win; anything else goes through normalization and
// the alias table. Unknown identifiers fail with UnsupportedPlatformError.
func Resolve(raw string) (model.PlatformType, error) {
	if p := model.PlatformType(raw); p.Valid() {
		return p, nil
	}

	if p, ok := aliasTable[normalize(raw)]; ok {
		return p, nil
	}

	return "", &UnsupportedPlatformError{Raw: raw}
}

// normalize uppercases, trims, and collapses runs of whitespace and hyphens
// into single underscores so "Azure DevOps" and "azure-devops" share a key.
func normalize(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(upper))
	lastWasSep := false
	for _, r := range upper {
		if r == ' ' || r == '\t' || r == '-' {
			if !lastWasSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			lastWasSep = true
			continue
		}
		lastWasSep = false
		b.WriteRune(r)
	}
	return strings.TrimSuffix(b.String(), "_")
}
