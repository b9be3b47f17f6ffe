package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/branchmodel"
	"github.com/simplesurance/bert-e/internal/cascade"
	"github.com/simplesurance/bert-e/internal/cfg"
	"github.com/simplesurance/bert-e/internal/gating"
	"github.com/simplesurance/bert-e/internal/githost"
	"github.com/simplesurance/bert-e/internal/messenger"
	"github.com/simplesurance/bert-e/internal/options"
	"github.com/simplesurance/bert-e/internal/queue"
)

// fakeHost is a minimal, in-memory githost.Client covering only what
// messenger.Post needs: listing and creating comments.
type fakeHost struct {
	comments []githost.Comment
	nextID   int64
}

var _ githost.Client = (*fakeHost)(nil)

func (f *fakeHost) GetPullRequest(context.Context, string, string, int) (*githost.PullRequest, error) {
	return nil, fmt.Errorf("not implemented")
}
func (f *fakeHost) ListOpenPullRequests(context.Context, string, string) ([]*githost.PullRequest, error) {
	return nil, nil
}
func (f *fakeHost) CreatePullRequest(context.Context, string, string, string, string, string) (*githost.PullRequest, error) {
	return nil, fmt.Errorf("not implemented")
}
func (f *fakeHost) DeclinePullRequest(context.Context, string, string, int) error { return nil }

func (f *fakeHost) ListComments(context.Context, string, string, int) ([]githost.Comment, error) {
	return f.comments, nil
}
func (f *fakeHost) CreateComment(_ context.Context, _, _ string, _ int, body string) (*githost.Comment, error) {
	f.nextID++
	c := githost.Comment{ID: f.nextID, Author: "bert-e", Body: body}
	f.comments = append(f.comments, c)
	return &c, nil
}
func (f *fakeHost) UpdateComment(context.Context, string, string, int64, string) error { return nil }
func (f *fakeHost) DeleteComment(context.Context, string, string, int64) error          { return nil }

func (f *fakeHost) ListReviews(context.Context, string, string, int) ([]githost.Review, error) {
	return nil, nil
}
func (f *fakeHost) ReadyForMerge(context.Context, string, string, int) (*githost.ReadyForMergeStatus, error) {
	return nil, nil
}
func (f *fakeHost) AddLabel(context.Context, string, string, int, string) error    { return nil }
func (f *fakeHost) RemoveLabel(context.Context, string, string, int, string) error { return nil }
func (f *fakeHost) ListAdmins(context.Context, string, string) ([]string, error)   { return nil, nil }

func TestParseAfterPRValues(t *testing.T) {
	assert.Equal(t, []int{12, 34}, parseAfterPRValues("#12,#34"))
	assert.Equal(t, []int{5}, parseAfterPRValues(" 5 "))
	assert.Nil(t, parseAfterPRValues("not-a-number"))
}

func TestToBuildStatus(t *testing.T) {
	assert.Equal(t, gating.BuildSuccessful, toBuildStatus(githost.CIStatusSuccess))
	assert.Equal(t, gating.BuildFailed, toBuildStatus(githost.CIStatusFailure))
	assert.Equal(t, gating.BuildPending, toBuildStatus(githost.CIStatusPending))
	assert.Equal(t, gating.BuildUnknown, toBuildStatus(githost.CIStatus("")))
}

func TestApprovalStateFromReviews(t *testing.T) {
	reviews := []githost.Review{
		{Author: "author", State: "APPROVED"},
		{Author: "peer1", State: "APPROVED"},
		{Author: "lead1", State: "APPROVED"},
		{Author: "peer2", State: "CHANGES_REQUESTED"},
	}

	state := approvalStateFromReviews(reviews, "author", map[string]bool{}, []string{"lead1"})

	assert.True(t, state.AuthorApproved)
	assert.Equal(t, 2, state.PeerApprovals) // peer1 and lead1 both count as peer approvals
	assert.Equal(t, 1, state.LeaderApprovals)
	assert.True(t, state.ChangesRequested)
}

func TestApprovalStateFromReviewsKeepsLatestPerReviewer(t *testing.T) {
	reviews := []githost.Review{
		{Author: "peer1", State: "CHANGES_REQUESTED"},
		{Author: "peer1", State: "APPROVED"},
	}

	state := approvalStateFromReviews(reviews, "author", map[string]bool{}, nil)

	assert.Equal(t, 1, state.PeerApprovals)
	assert.False(t, state.ChangesRequested)
}

func TestDiscoverIntegrationBranchesStopsAtFirstGap(t *testing.T) {
	dev1 := branchmodel.DestinationBranch{Name: "development/1.0", Kind: branchmodel.KindDevelopment, Major: 1, Minor: 0, HasMinor: true}
	dev2 := branchmodel.DestinationBranch{Name: "development/2.0", Kind: branchmodel.KindDevelopment, Major: 2, Minor: 0, HasMinor: true}
	dev3 := branchmodel.DestinationBranch{Name: "development/3.0", Kind: branchmodel.KindDevelopment, Major: 3, Minor: 0, HasMinor: true}
	c := cascade.Cascade{dev1, dev2, dev3}

	tips := map[string]string{
		fmt.Sprintf("w/%s/bugfix/src", dev2.Version()): "sha-w2",
		// w/3.0/bugfix/src intentionally absent: discovery must stop here.
	}

	branches := discoverIntegrationBranches(c, "bugfix/src", tips)

	require.Len(t, branches, 2)
	assert.Equal(t, "bugfix/src", branches[0].Tip) // virtual W_0 is the source branch itself
	assert.Equal(t, "sha-w2", branches[1].Tip)
	assert.Equal(t, dev2, branches[1].Destination)
}

func TestDiscoverIntegrationBranchesEmptyCascade(t *testing.T) {
	assert.Nil(t, discoverIntegrationBranches(nil, "bugfix/src", map[string]string{}))
}

func TestPostStatusReportsActiveOptions(t *testing.T) {
	host := &fakeHost{}
	rc := &repoContext{
		cfg:    &cfg.Repository{RepositoryOwner: "acme", RepositorySlug: "widget"},
		msgr:   messenger.New(host, "bert-e", "test"),
		logger: zap.NewNop(),
	}

	opts := options.Outcome{Options: map[string]options.Token{
		"wait":       {Name: "wait"},
		"no_octopus": {Name: "no_octopus"},
	}}

	outcome := gating.Outcome{Ok: false, Code: gating.StatusMerged, Context: map[string]any{}}

	err := rc.postStatus(context.Background(), 1, outcome, opts)
	require.NoError(t, err)
	require.Len(t, host.comments, 1)
	assert.Contains(t, host.comments[0].Body, "active options:")
	assert.Contains(t, host.comments[0].Body, "wait")
	assert.Contains(t, host.comments[0].Body, "no_octopus")
}

func TestToRowStatus(t *testing.T) {
	assert.Equal(t, queue.RowGreen, toRowStatus(githost.CIStatusSuccess))
	assert.Equal(t, queue.RowRed, toRowStatus(githost.CIStatusFailure))
	assert.Equal(t, queue.RowPending, toRowStatus(githost.CIStatusPending))
	assert.Equal(t, queue.RowPending, toRowStatus(githost.CIStatus("")))
}

func TestResetRequested(t *testing.T) {
	reset, force := resetRequested(options.Outcome{})
	assert.False(t, reset)
	assert.False(t, force)

	reset, force = resetRequested(options.Outcome{Commands: []options.Token{{Name: "reset"}}})
	assert.True(t, reset)
	assert.False(t, force)

	reset, force = resetRequested(options.Outcome{Commands: []options.Token{{Name: "force_reset"}}})
	assert.True(t, reset)
	assert.True(t, force)
}

func TestPreviousCascadeTip(t *testing.T) {
	dev1 := branchmodel.DestinationBranch{Name: "development/1.0", Kind: branchmodel.KindDevelopment, Major: 1, Minor: 0, HasMinor: true}
	dev2 := branchmodel.DestinationBranch{Name: "development/2.0", Kind: branchmodel.KindDevelopment, Major: 2, Minor: 0, HasMinor: true}
	dev3 := branchmodel.DestinationBranch{Name: "development/3.0", Kind: branchmodel.KindDevelopment, Major: 3, Minor: 0, HasMinor: true}

	tips := map[string]string{
		dev1.Name: "sha1",
		dev2.Name: "sha2",
		"hotfix/urgent": "sha-hotfix",
	}

	parentBranch, parentTip := previousCascadeTip(dev3, tips)
	assert.Equal(t, dev2.Name, parentBranch)
	assert.Equal(t, "sha2", parentTip)

	parentBranch, parentTip = previousCascadeTip(dev1, tips)
	assert.Equal(t, "", parentBranch)
	assert.Equal(t, "", parentTip)
}

func TestApplyBuildStatusRecordsMatchingLaneOnly(t *testing.T) {
	git := &fakeQueueGitOps{}
	queueMgr := queue.NewManager(zap.NewNop(), git, map[string]string{"development/1.0": "d1"})
	require.NoError(t, queueMgr.Admit(context.Background(), 1, "bugfix/x", "srcsha", []string{"development/1.0"}, map[string]string{"development/1.0": "content1"}))

	rc := &repoContext{queueMgr: queueMgr, logger: zap.NewNop()}

	items := queueMgr.Snapshot()
	require.Len(t, items, 1)
	tip := items[0].Lanes[0].Tip

	rc.applyBuildStatus(tip, queue.RowGreen)

	items = queueMgr.Snapshot()
	assert.Equal(t, queue.RowGreen, items[0].Lanes[0].Status)
}

type fakeQueueGitOps struct{}

func (f *fakeQueueGitOps) CreateQueueItemBranch(_ context.Context, _, _, parent, content string) (string, error) {
	return parent + "+" + content, nil
}
func (f *fakeQueueGitOps) FastForward(context.Context, string, string) error { return nil }
func (f *fakeQueueGitOps) DeleteBranch(context.Context, string) error       { return nil }

func TestBypassRulesCoverEveryEvaluatorBypassName(t *testing.T) {
	parser := options.NewParser(bypassRules)
	require.NotNil(t, parser)

	names := map[string]bool{}
	for _, r := range bypassRules {
		names[r.Name] = true
	}

	for _, want := range []string{
		"bypass_incompatible_branch", "bypass_jira_check", "bypass_author_approval",
		"bypass_peer_approval", "bypass_leader_approval", "bypass_build_status",
		"disable_version_checks", "wait", "no_octopus", "approve", "after_pull_request",
	} {
		assert.True(t, names[want], "missing bypass rule %q", want)
	}
}
