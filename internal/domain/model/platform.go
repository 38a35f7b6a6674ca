package model

import (
	"fmt"
	"strings"
)

// PlatformType identifies a source-control provider in its canonical form.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type PlatformType string

const (
	// PlatformGithub is the canonical GitHub provider value.
	PlatformGithub PlatformType = "GITHUB"
	// PlatformGitlab is the canonical GitLab provider value.
	PlatformGitlab PlatformType = "GITLAB"
	// PlatformAzureRepos is the canonical Azure Repos provider value.
	PlatformAzureRepos PlatformType = "AZURE_REPOS"
	// PlatformBitbucket is the canonical Bitbucket provider value.
	PlatformBitbucket PlatformType = "BITBUCKET"
)

// Valid returns true if the PlatformType is one of the canonical providers.
func (p PlatformType) Valid() bool {
	switch p {
	case PlatformGithub, PlatformGitlab, PlatformAzureRepos, PlatformBitbucket:
		return true
	default:
		return false
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so PlatformType can be
// parsed from env vars and JSON payloads. Only canonical values are accepted
// here; loose provider strings go through platform.Resolve instead.
func (p *PlatformType) UnmarshalText(text []byte) error {
	v := PlatformType(strings.ToUpper(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid PlatformType: %q", string(text))
	}
	*p = v
	return nil
}
