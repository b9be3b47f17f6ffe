// Package github is a concrete githost.Client backed by GitHub's REST
// and GraphQL APIs, grounded directly on the teacher's
// internal/githubclt.Client: the same oauth2 static-token HTTP client
// construction, the same goorderr-wrapped rate-limit/5xx retry
// handling, and the combined review-decision + CI-rollup GraphQL query
// of readyformergestatus.go, adapted to return githost's
// provider-neutral types instead of go-github/githubv4 ones.
package github

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	gh "github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/bert-e/internal/goorderr"
	"github.com/simplesurance/bert-e/internal/githost"
	"github.com/simplesurance/bert-e/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "githost.github"

// Client implements githost.Client against the real GitHub API.
type Client struct {
	restClt    *gh.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

var _ githost.Client = (*Client)(nil)

// New returns a Client authenticating with apiToken. An empty token
// produces an unauthenticated, heavily rate-limited client, matching the
// teacher's newHTTPClient behavior.
func New(apiToken string) *Client {
	httpClient := newHTTPClient(apiToken)
	return &Client{
		restClt:    gh.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		logger:     zap.L().Named(loggerName),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{Timeout: DefaultHTTPClientTimeout}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiToken})
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

func toPullRequest(pr *gh.PullRequest) *githost.PullRequest {
	out := &githost.PullRequest{
		Number: pr.GetNumber(),
		Open:   pr.GetState() == "open",
		Merged: pr.GetMerged(),
		Title:  pr.GetTitle(),
		Author: pr.GetUser().GetLogin(),
	}

	if head := pr.GetHead(); head != nil {
		out.SourceBranch = head.GetRef()
		out.HeadSHA = head.GetSHA()
	}
	if base := pr.GetBase(); base != nil {
		out.TargetBranch = base.GetRef()
	}

	return out
}

func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*githost.PullRequest, error) {
	pr, _, err := c.restClt.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, c.wrapRetryableErrors(err)
	}

	return toPullRequest(pr), nil
}

func (c *Client) ListOpenPullRequests(ctx context.Context, owner, repo string) ([]*githost.PullRequest, error) {
	var result []*githost.PullRequest

	opts := &gh.PullRequestListOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	for {
		prs, resp, err := c.restClt.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, c.wrapRetryableErrors(err)
		}

		for _, pr := range prs {
			result = append(result, toPullRequest(pr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

func (c *Client) CreatePullRequest(ctx context.Context, owner, repo, title, source, target string) (*githost.PullRequest, error) {
	pr, _, err := c.restClt.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
		Title: &title,
		Head:  &source,
		Base:  &target,
	})
	if err != nil {
		return nil, c.wrapRetryableErrors(err)
	}

	return toPullRequest(pr), nil
}

func (c *Client) DeclinePullRequest(ctx context.Context, owner, repo string, number int) error {
	closed := "closed"
	_, _, err := c.restClt.PullRequests.Edit(ctx, owner, repo, number, &gh.PullRequest{State: &closed})
	return c.wrapRetryableErrors(err)
}

func toComment(c *gh.IssueComment) githost.Comment {
	return githost.Comment{
		ID:        c.GetID(),
		Author:    c.GetUser().GetLogin(),
		Body:      c.GetBody(),
		CreatedAt: c.GetCreatedAt().Time,
		UpdatedAt: c.GetUpdatedAt().Time,
	}
}

func (c *Client) ListComments(ctx context.Context, owner, repo string, number int) ([]githost.Comment, error) {
	var result []githost.Comment

	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}

	for {
		comments, resp, err := c.restClt.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, c.wrapRetryableErrors(err)
		}

		for _, cm := range comments {
			result = append(result, toComment(cm))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*githost.Comment, error) {
	cm, _, err := c.restClt.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: &body})
	if err != nil {
		return nil, c.wrapRetryableErrors(err)
	}

	out := toComment(cm)
	return &out, nil
}

func (c *Client) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	_, _, err := c.restClt.Issues.EditComment(ctx, owner, repo, commentID, &gh.IssueComment{Body: &body})
	return c.wrapRetryableErrors(err)
}

func (c *Client) DeleteComment(ctx context.Context, owner, repo string, commentID int64) error {
	_, err := c.restClt.Issues.DeleteComment(ctx, owner, repo, commentID)
	return c.wrapRetryableErrors(err)
}

func (c *Client) ListReviews(ctx context.Context, owner, repo string, number int) ([]githost.Review, error) {
	var result []githost.Review

	opts := &gh.ListOptions{PerPage: 100}

	for {
		reviews, resp, err := c.restClt.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, c.wrapRetryableErrors(err)
		}

		for _, r := range reviews {
			result = append(result, githost.Review{
				Author:   r.GetUser().GetLogin(),
				State:    r.GetState(),
				SubmitAt: r.GetSubmittedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

func (c *Client) AddLabel(ctx context.Context, owner, repo string, number int, label string) error {
	if label == "" {
		return errors.New("githost/github: provided label is empty")
	}

	_, _, err := c.restClt.Issues.AddLabelsToIssue(ctx, owner, repo, number, []string{label})
	return c.wrapRetryableErrors(err)
}

func (c *Client) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	_, err := c.restClt.Issues.RemoveLabelForIssue(ctx, owner, repo, number, label)
	if err != nil {
		var respErr *gh.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response.StatusCode == http.StatusNotFound {
			c.logger.Debug(
				"removing label returned a not found response, interpreting it as success",
				logfields.RepositoryOwner(owner), logfields.Repository(repo),
				logfields.PullRequest(number), logfields.Label(label),
				logfields.Event("github_remove_label_returned_not_found"),
			)
			return nil
		}

		return c.wrapRetryableErrors(err)
	}

	return nil
}

func (c *Client) ListAdmins(ctx context.Context, owner, repo string) ([]string, error) {
	users, _, err := c.restClt.Repositories.ListCollaborators(ctx, owner, repo, &gh.ListCollaboratorsOptions{
		Affiliation: "direct",
		ListOptions: gh.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, c.wrapRetryableErrors(err)
	}

	var admins []string
	for _, u := range users {
		for _, p := range []string{"admin", "maintain"} {
			if u.GetPermissions()[p] {
				admins = append(admins, u.GetLogin())
				break
			}
		}
	}

	return admins, nil
}

func (c *Client) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *gh.RateLimitError:
		c.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)
		return goorderr.NewRetryableError(err, v.Rate.Reset.Time)

	case *gh.ErrorResponse:
		if v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return goorderr.NewRetryableAnytimeError(err)
		}
	}

	if err == nil {
		return nil
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (c *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return goorderr.NewRetryableAnytimeError(err)
	}

	return err
}
