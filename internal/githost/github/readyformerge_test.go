package github

import (
	"testing"

	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/bert-e/internal/githost"
)

func TestToCIJobStatusesRequiredFailureWins(t *testing.T) {
	statuses, err := toCIJobStatuses(
		[]string{"ci/build"},
		[]*queryCheckStatus{{Name: "ci/build", Status: githubv4.CheckStatusStateCompleted, Conclusion: githubv4.CheckConclusionStateFailure}},
		nil,
	)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Required)
	assert.Equal(t, githost.CIStatusFailure, statuses[0].Status)
}

func TestOverallCIStatusRequiredFailureOverridesOptionalPending(t *testing.T) {
	statuses := []githost.CIJobStatus{
		{Name: "required", Status: githost.CIStatusFailure, Required: true},
		{Name: "optional", Status: githost.CIStatusPending},
	}

	assert.Equal(t, githost.CIStatusFailure, overallCIStatus(githubv4.StatusStateSuccess, statuses))
}

func TestOverallCIStatusPendingRollupWins(t *testing.T) {
	assert.Equal(t, githost.CIStatusPending, overallCIStatus(githubv4.StatusStatePending, nil))
}

func TestToReviewDecisionMapsApproved(t *testing.T) {
	assert.Equal(t, githost.ReviewDecisionApproved, toReviewDecision(githubv4.PullRequestReviewDecisionApproved))
}
