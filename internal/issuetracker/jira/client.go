// Package jira implements issuetracker.Tracker against Jira's REST API
// (GET /rest/api/2/issue/<key>).
//
// No Jira client library appears anywhere in the retrieved example
// corpus (checked every go.mod and every .go source under _examples/
// for "jira"), so this adapter is grounded on the *pattern* the teacher
// uses for its own GitHub HTTP client instead of a tracker-specific SDK:
// internal/githubclt.newHTTPClient's oauth2.StaticTokenSource-wrapped
// net/http.Client, applied here to a Jira API token sent as a bearer token.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/bert-e/internal/goorderr"
	"github.com/simplesurance/bert-e/internal/issuetracker"
	"github.com/simplesurance/bert-e/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

// ErrIssueNotFound is issuetracker.ErrNotFound under this package's name;
// callers checking either sentinel via errors.Is see the same error.
var ErrIssueNotFound = issuetracker.ErrNotFound

// Client implements issuetracker.Tracker against one Jira instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ issuetracker.Tracker = (*Client)(nil)

// New returns a Client for the Jira instance at baseURL (e.g.
// "https://issues.example.com"), authenticating with apiToken the same
// way the teacher's github client authenticates: an oauth2 static
// bearer token wrapping a plain net/http.Client.
func New(baseURL, apiToken string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiToken, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = DefaultHTTPClientTimeout

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     zap.L().Named("issuetracker.jira"),
	}
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		IssueType struct {
			Name    string `json:"name"`
			Subtask bool   `json:"subtask"`
		} `json:"issuetype"`
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
		FixVersions []struct {
			Name string `json:"name"`
		} `json:"fixVersions"`
	} `json:"fields"`
}

// GetIssue fetches one issue by key. A 404 response is reported as
// ErrIssueNotFound (a permanent, non-retryable failure); 429/5xx
// responses are wrapped in a goorderr.RetryableError.
func (c *Client) GetIssue(ctx context.Context, key string) (*issuetracker.Issue, error) {
	u := fmt.Sprintf("%s/rest/api/2/issue/%s", c.baseURL, url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("jira: building request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goorderr.NewRetryableAnytimeError(fmt.Errorf("jira: request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrIssueNotFound

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Info("jira rate limit exceeded", logfields.Event("jira_rate_limit_exceeded"))
		return nil, goorderr.NewRetryableError(fmt.Errorf("jira: rate limited"), retryAfter)

	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return nil, goorderr.NewRetryableAnytimeError(fmt.Errorf("jira: server error, status %d", resp.StatusCode))

	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("jira: unexpected status %d fetching issue %q", resp.StatusCode, key)
	}

	var parsed issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("jira: decoding response for issue %q failed: %w", key, err)
	}

	fixVersions := make([]string, 0, len(parsed.Fields.FixVersions))
	for _, v := range parsed.Fields.FixVersions {
		fixVersions = append(fixVersions, v.Name)
	}

	return &issuetracker.Issue{
		Key:         parsed.Key,
		Type:        parsed.Fields.IssueType.Name,
		Project:     parsed.Fields.Project.Key,
		IsSubtask:   parsed.Fields.IssueType.Subtask,
		FixVersions: fixVersions,
	}, nil
}

func parseRetryAfter(header string) time.Time {
	if header == "" {
		return time.Time{}
	}

	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return time.Now().Add(secs)
	}

	return time.Time{}
}
