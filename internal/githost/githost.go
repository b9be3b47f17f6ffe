// Package githost defines the git-host adapter interface of spec §6: the
// capability set bert-e needs from a forge (list/get PR, comments,
// commit statuses, reviews, PR create/decline, admin listing), decoupled
// from any one provider's SDK.
//
// Grounded on the shape of the teacher's internal/githubclt.Client: the
// interface here is the subset of that client's methods the gating
// evaluator and messenger actually call, lifted out so a second provider
// (see githost/bitbucket's doc.go) could implement it without bert-e's
// core depending on go-github directly.
package githost

import (
	"context"
	"time"
)

// ReviewDecision mirrors GitHub's pull request review decision, kept
// provider-neutral so internal/gating never imports a provider SDK.
type ReviewDecision string

const (
	ReviewDecisionApproved         ReviewDecision = "APPROVED"
	ReviewDecisionChangesRequested ReviewDecision = "CHANGES_REQUESTED"
	ReviewDecisionReviewRequired   ReviewDecision = "REVIEW_REQUIRED"
)

// CIStatus collapses a provider's check-run/commit-status rollup into a
// single tri-state value, following the teacher's CIStatus/ReadyForMergeStatus.
type CIStatus string

const (
	CIStatusSuccess CIStatus = "success"
	CIStatusPending CIStatus = "pending"
	CIStatusFailure CIStatus = "failure"
)

// CIJobStatus is the status of a single named check or commit status.
type CIJobStatus struct {
	Name     string
	Status   CIStatus
	Required bool
}

// ReadyForMergeStatus is the combined review+CI signal the gating
// evaluator needs per row (see spec §4.3 checks 13-17).
type ReadyForMergeStatus struct {
	ReviewDecision ReviewDecision
	CIStatus       CIStatus
	Statuses       []CIJobStatus
	Commit         string
}

// Review is one submitted pull request review.
type Review struct {
	Author   string
	State    string // APPROVED, CHANGES_REQUESTED, COMMENTED, DISMISSED
	SubmitAt time.Time
}

// Comment is one issue/PR comment.
type Comment struct {
	ID        int64
	Author    string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PullRequest is the provider-neutral view of a pull request the
// evaluator's fact-gathering step needs.
type PullRequest struct {
	Number       int
	Open         bool
	Merged       bool
	Title        string
	SourceBranch string
	TargetBranch string
	Author       string
	HeadSHA      string
}

// Client is the capability set bert-e needs from a git host, per spec §6.
// All methods return a *goorderr.RetryableError-wrapped error when the
// operation can be retried (rate limit, 5xx).
type Client interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)
	ListOpenPullRequests(ctx context.Context, owner, repo string) ([]*PullRequest, error)
	CreatePullRequest(ctx context.Context, owner, repo, title, source, target string) (*PullRequest, error)
	DeclinePullRequest(ctx context.Context, owner, repo string, number int) error

	ListComments(ctx context.Context, owner, repo string, number int) ([]Comment, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error)
	UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error
	DeleteComment(ctx context.Context, owner, repo string, commentID int64) error

	ListReviews(ctx context.Context, owner, repo string, number int) ([]Review, error)
	ReadyForMerge(ctx context.Context, owner, repo string, number int) (*ReadyForMergeStatus, error)

	AddLabel(ctx context.Context, owner, repo string, number int, label string) error
	RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error

	ListAdmins(ctx context.Context, owner, repo string) ([]string, error)
}
