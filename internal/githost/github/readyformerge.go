package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/simplesurance/bert-e/internal/githost"
)

// ReadyForMerge returns the combined review-decision and CI-rollup
// status for a pull request via one GraphQL query, carried over from the
// teacher's readyformergestatus.go near-verbatim (same query shape,
// same pagination-over-contexts loop), translated to githost's
// provider-neutral CIStatus/ReviewDecision values at the boundary.
func (c *Client) ReadyForMerge(ctx context.Context, owner, repo string, prNumber int) (*githost.ReadyForMergeStatus, error) {
	queryResult, err := c.reviewAndCIStatus(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, c.wrapGraphQLRetryableErrors(err)
	}

	statuses, err := toCIJobStatuses(queryResult.RequiredStatusCheckContexts, queryResult.CheckRuns, queryResult.StatusContext)
	if err != nil {
		return nil, err
	}

	return &githost.ReadyForMergeStatus{
		ReviewDecision: toReviewDecision(queryResult.ReviewDecision),
		CIStatus:       overallCIStatus(queryResult.StatusCheckRollupState, statuses),
		Statuses:       statuses,
		Commit:         queryResult.Commit,
	}, nil
}

func toReviewDecision(d githubv4.PullRequestReviewDecision) githost.ReviewDecision {
	switch d {
	case githubv4.PullRequestReviewDecisionApproved:
		return githost.ReviewDecisionApproved
	case githubv4.PullRequestReviewDecisionChangesRequested:
		return githost.ReviewDecisionChangesRequested
	default:
		return githost.ReviewDecisionReviewRequired
	}
}

func overallCIStatus(statusCheckRollupState githubv4.StatusState, statuses []githost.CIJobStatus) githost.CIStatus {
	if statusCheckRollupState == githubv4.StatusStatePending {
		return githost.CIStatusPending
	}

	result := githost.CIStatusSuccess
	for _, status := range statuses {
		if status.Status == githost.CIStatusPending {
			result = githost.CIStatusPending
			continue
		}

		if status.Required && status.Status == githost.CIStatusFailure {
			return githost.CIStatusFailure
		}
	}

	return result
}

func toCIJobStatuses(
	requiredChecks []string,
	checkRuns []*queryCheckStatus,
	commitStatuses []*queryStatusContext,
) ([]githost.CIJobStatus, error) {
	statusesByName := make(map[string]*githost.CIJobStatus, len(checkRuns)+len(commitStatuses)+len(requiredChecks))

	for _, name := range requiredChecks {
		if _, exists := statusesByName[name]; exists {
			return nil, fmt.Errorf("found 2 required status with the same context value: %q", name)
		}

		statusesByName[name] = &githost.CIJobStatus{Name: name, Status: githost.CIStatusPending, Required: true}
	}

	for _, run := range checkRuns {
		status, err := checkRunResultToCIStatus(run.Status, run.Conclusion)
		if err != nil {
			return nil, fmt.Errorf("converting checkRun %q CI status failed: %w", run.Name, err)
		}

		if entry, exists := statusesByName[run.Name]; exists {
			entry.Status = status
			continue
		}

		statusesByName[run.Name] = &githost.CIJobStatus{Name: run.Name, Status: status}
	}

	for _, cs := range commitStatuses {
		status, err := contextStatusStateToCIStatus(cs.State)
		if err != nil {
			return nil, fmt.Errorf("converting %q status context failed: %w", cs.Context, err)
		}

		if entry, exists := statusesByName[cs.Context]; exists {
			entry.Status = status
			continue
		}

		statusesByName[cs.Context] = &githost.CIJobStatus{Name: cs.Context, Status: status}
	}

	result := make([]githost.CIJobStatus, 0, len(statusesByName))
	for _, s := range statusesByName {
		result = append(result, *s)
	}

	return result, nil
}

func checkRunResultToCIStatus(status githubv4.CheckStatusState, conclusion githubv4.CheckConclusionState) (githost.CIStatus, error) {
	switch status {
	case githubv4.CheckStatusStateInProgress,
		githubv4.CheckStatusStatePending,
		githubv4.CheckStatusStateQueued,
		githubv4.CheckStatusStateRequested,
		githubv4.CheckStatusStateWaiting:
		return githost.CIStatusPending, nil

	case githubv4.CheckStatusStateCompleted:
		return checkConclusionToCIStatus(conclusion)

	default:
		return "", fmt.Errorf("unsupported check status value: %q", status)
	}
}

func checkConclusionToCIStatus(conclusion githubv4.CheckConclusionState) (githost.CIStatus, error) {
	switch conclusion {
	case githubv4.CheckConclusionStateCancelled,
		githubv4.CheckConclusionStateFailure,
		githubv4.CheckConclusionStateStale,
		githubv4.CheckConclusionStateStartupFailure,
		githubv4.CheckConclusionStateTimedOut:
		return githost.CIStatusFailure, nil

	case githubv4.CheckConclusionStateActionRequired:
		return githost.CIStatusPending, nil

	case githubv4.CheckConclusionStateNeutral,
		githubv4.CheckConclusionStateSkipped,
		githubv4.CheckConclusionStateSuccess:
		return githost.CIStatusSuccess, nil

	default:
		return "", fmt.Errorf("unsupported check conclusion value: %q", conclusion)
	}
}

func contextStatusStateToCIStatus(state githubv4.StatusState) (githost.CIStatus, error) {
	switch state {
	case githubv4.StatusStateError, githubv4.StatusStateFailure:
		return githost.CIStatusFailure, nil
	case githubv4.StatusStateExpected, githubv4.StatusStatePending:
		return githost.CIStatusPending, nil
	case githubv4.StatusStateSuccess:
		return githost.CIStatusSuccess, nil
	default:
		return "", fmt.Errorf("unsupported status state value: %q", state)
	}
}

type queryCheckStatus struct {
	Name       string
	Conclusion githubv4.CheckConclusionState
	Status     githubv4.CheckStatusState
}

type queryStatusContext struct {
	State   githubv4.StatusState
	Context string
}

type queryCIStatusResult struct {
	ReviewDecision              githubv4.PullRequestReviewDecision
	StatusCheckRollupState      githubv4.StatusState
	RequiredStatusCheckContexts []string
	CheckRuns                   []*queryCheckStatus
	StatusContext               []*queryStatusContext
	Commit                      string
}

func (c *Client) reviewAndCIStatus(ctx context.Context, owner, repo string, prNumber int) (*queryCIStatusResult, error) {
	type graphQLQueryCIStatus struct {
		Repository struct {
			PullRequest struct {
				ReviewDecision githubv4.PullRequestReviewDecision

				BaseRef struct {
					BranchProtectionRule struct {
						RequiredStatusCheckContexts []string
					}
				}

				Commits struct {
					Nodes []struct {
						Commit struct {
							Oid               string
							StatusCheckRollup struct {
								State    githubv4.StatusState
								Contexts struct {
									PageInfo struct {
										EndCursor   string
										HasNextPage bool
									}
									Edges []struct {
										Node struct {
											CheckRun      queryCheckStatus   `graphql:"... on CheckRun"`
											StatusContext queryStatusContext `graphql:"... on StatusContext"`
										}
									}
								} `graphql:"contexts(first: $contextsFirst, after: $contextsAfter)"`
							}
						}
					}
				} `graphql:"commits(last: $commitsLast)"`
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	var prHEADCommitID string
	var result queryCIStatusResult

	vars := map[string]any{
		"owner":         githubv4.String(owner),
		"name":          githubv4.String(repo),
		"number":        githubv4.Int(prNumber),
		"commitsLast":   githubv4.Int(1),
		"contextsFirst": githubv4.Int(100),
		"contextsAfter": (*githubv4.String)(nil),
	}

	for {
		var q graphQLQueryCIStatus

		if err := c.graphQLClt.Query(ctx, &q, vars); err != nil {
			return nil, err
		}

		commitNode := q.Repository.PullRequest.Commits.Nodes[0].Commit

		if prHEADCommitID == "" {
			prHEADCommitID = commitNode.Oid
		} else if prHEADCommitID != commitNode.Oid {
			vars["contextsAfter"] = (*githubv4.String)(nil)
			prHEADCommitID = ""
			continue
		}

		for _, edge := range commitNode.StatusCheckRollup.Contexts.Edges {
			node := edge.Node
			if node.CheckRun.Name != "" && node.StatusContext.Context != "" {
				return nil, fmt.Errorf("internal error: node contains both checkRun and statusContext")
			}

			if node.CheckRun.Name != "" {
				result.CheckRuns = append(result.CheckRuns, &node.CheckRun)
				continue
			}

			result.StatusContext = append(result.StatusContext, &node.StatusContext)
		}

		pageInfo := commitNode.StatusCheckRollup.Contexts.PageInfo
		if !pageInfo.HasNextPage {
			result.ReviewDecision = q.Repository.PullRequest.ReviewDecision
			result.StatusCheckRollupState = commitNode.StatusCheckRollup.State
			result.RequiredStatusCheckContexts = q.Repository.PullRequest.BaseRef.BranchProtectionRule.RequiredStatusCheckContexts
			result.Commit = prHEADCommitID
			return &result, nil
		}

		if pageInfo.EndCursor == "" {
			return nil, fmt.Errorf("retrieving all contexts failed: HasNextPage is true with an empty EndCursor")
		}

		vars["contextsAfter"] = pageInfo.EndCursor
	}
}
