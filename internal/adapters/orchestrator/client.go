// Package orchestrator is the HTTP client for the review orchestrator, the
// external system that owns code-management access, automation execution,
// tenant resolution, and repository authorization.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

const maxErrorBodyBytes = 2 * 1024

// Options configures the orchestrator client.
type Options struct {
	BaseURL    string
	Token      string // bearer token, optional
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the orchestrator over JSON/HTTP. It implements the
// collaborator ports the services consume.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

var (
	_ core.CodeManagement          = (*Client)(nil)
	_ core.AutomationExecutor      = (*Client)(nil)
	_ core.RepositoryScopeResolver = (*Client)(nil)
	_ core.OrganizationResolver    = (*Client)(nil)
)

// NewClient constructs a new orchestrator client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("orchestrator base URL is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "orchestrator_client")
	}

	return &Client{baseURL: base, token: opts.Token, http: hc, logger: logger}, nil
}

// GetPullRequest fetches a pull request from the provider via the
// orchestrator. A 404 means the pull request does not exist and maps to
// nil, nil per the CodeManagement contract.
func (c *Client) GetPullRequest(ctx context.Context, params core.GetPullRequestParams) (*model.PullRequestRecord, error) {
	path := fmt.Sprintf("/api/code-management/repositories/%s/pull-requests/%d",
		url.PathEscape(params.Repository.ID), params.Number)
	query := url.Values{"organizationId": {params.Organization.OrganizationID}}

	var record model.PullRequestRecord
	found, err := c.getJSON(ctx, path, query, &record)
	if err != nil {
		return nil, fmt.Errorf("get pull request %s#%d: %w", params.Repository.ID, params.Number, err)
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}

// GetRepositoryLanguage returns the dominant language of a repository.
func (c *Client) GetRepositoryLanguage(ctx context.Context, org model.OrganizationAndTeamData, repositoryID string) (string, error) {
	path := fmt.Sprintf("/api/code-management/repositories/%s/language", url.PathEscape(repositoryID))
	query := url.Values{"organizationId": {org.OrganizationID}}

	var out struct {
		Language string `json:"language"`
	}
	found, err := c.getJSON(ctx, path, query, &out)
	if err != nil {
		return "", fmt.Errorf("get repository language %s: %w", repositoryID, err)
	}
	if !found {
		return "", nil
	}
	return out.Language, nil
}

// ExecuteStrategy runs one automation through the orchestrator and returns
// the recorded execution with its raw suggestions.
func (c *Client) ExecuteStrategy(ctx context.Context, automationType model.AutomationType, params core.ExecuteStrategyParams) (*core.ExecutionResult, error) {
	body := struct {
		AutomationType model.AutomationType          `json:"automationType"`
		Organization   model.OrganizationAndTeamData `json:"organization"`
		Trigger        model.CanonicalTrigger        `json:"trigger"`
		UserGitID      string                        `json:"userGitId,omitempty"`
		CorrelationID  string                        `json:"correlationId"`
	}{
		AutomationType: automationType,
		Organization:   params.Organization,
		Trigger:        params.Trigger,
		UserGitID:      params.UserGitID,
		CorrelationID:  params.CorrelationID,
	}

	var out struct {
		ExecutionUUID string                 `json:"executionUuid"`
		Suggestions   []model.CodeSuggestion `json:"suggestions"`
	}
	if err := c.postJSON(ctx, "/api/automations/execute", body, &out); err != nil {
		return nil, fmt.Errorf("execute automation %s: %w", automationType, err)
	}
	return &core.ExecutionResult{
		ExecutionUUID: out.ExecutionUUID,
		Suggestions:   out.Suggestions,
	}, nil
}

// GetRepositoryScope returns the repository ids the tenant's reader may see.
// A null scope in the response means unrestricted and is returned as nil.
func (c *Client) GetRepositoryScope(ctx context.Context, org model.OrganizationAndTeamData) ([]string, error) {
	query := url.Values{"organizationId": {org.OrganizationID}}
	if org.TeamID != "" {
		query.Set("teamId", org.TeamID)
	}

	var out struct {
		RepositoryIDs []string `json:"repositoryIds"`
		Unrestricted  bool     `json:"unrestricted"`
	}
	found, err := c.getJSON(ctx, "/api/authorization/repository-scope", query, &out)
	if err != nil {
		return nil, fmt.Errorf("get repository scope: %w", err)
	}
	if !found || out.Unrestricted {
		return nil, nil
	}
	if out.RepositoryIDs == nil {
		return []string{}, nil
	}
	return out.RepositoryIDs, nil
}

// ResolveOrganization maps a provider repository onto its owning tenant.
func (c *Client) ResolveOrganization(ctx context.Context, platform model.PlatformType, repositoryID string) (model.OrganizationAndTeamData, error) {
	query := url.Values{
		"platform":     {string(platform)},
		"repositoryId": {repositoryID},
	}

	var out model.OrganizationAndTeamData
	found, err := c.getJSON(ctx, "/api/tenants/resolve", query, &out)
	if err != nil {
		return model.OrganizationAndTeamData{}, fmt.Errorf("resolve organization for %s/%s: %w", platform, repositoryID, err)
	}
	if !found {
		return model.OrganizationAndTeamData{}, fmt.Errorf("no tenant configured for %s repository %s", platform, repositoryID)
	}
	return out, nil
}

// getJSON issues a GET and decodes the body. The bool result is false on 404.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("send request: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, c.statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return errors.New("orchestrator returned " + strconv.Itoa(resp.StatusCode) + ": " + msg)
}

func closeBody(body io.ReadCloser) {
	_ = body.Close()
}
