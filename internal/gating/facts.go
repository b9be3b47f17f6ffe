package gating

import (
	"time"

	"github.com/simplesurance/bert-e/internal/branchmodel"
	"github.com/simplesurance/bert-e/internal/cascade"
	"github.com/simplesurance/bert-e/internal/integration"
	"github.com/simplesurance/bert-e/internal/options"
)

// BuildStatus is the outcome of CI on one integration tip.
type BuildStatus int

const (
	BuildUnknown BuildStatus = iota
	BuildPending
	BuildSuccessful
	BuildFailed
)

// ApprovalState is optional in PRFacts: it is only populated once the
// PR's reviews have been fetched, per §9's tagged-record redesign note.
type ApprovalState struct {
	AuthorApproved   bool
	PeerApprovals    int
	LeaderApprovals  int
	ChangesRequested bool
}

// IssueFacts is optional: absent whenever no issue tracker is configured
// or the source branch carries no issue key (spec §6).
type IssueFacts struct {
	Key         string
	Type        string
	Project     string
	IsSubtask   bool
	FixVersions []string
}

// PRFacts is rebuilt fresh on every evaluation, never persisted, per
// spec §3/§9: a tagged record with explicit optional fields instead of a
// dynamic per-PR dictionary.
type PRFacts struct {
	Number int
	Open   bool

	Target branchmodel.DestinationBranch
	Source branchmodel.SourceBranch

	KnownDestinations []branchmodel.DestinationBranch
	BypassPrefixes    []string

	// SourceCommitDistance is how many commits the source has diverged
	// from Target, used against MaxCommitDiff (check 5).
	SourceCommitDistance int
	MaxCommitDiff        int

	RequireIssueKey  bool
	Issue            *IssueFacts
	JiraKeys         []string
	IssueTypePrefix  map[string]string

	Approvals *ApprovalState

	RequiredPeerApprovals   int
	RequiredLeaderApprovals int
	NeedAuthorApproval      bool

	Cascade         cascade.Cascade
	IgnoredBranches []branchmodel.DestinationBranch

	IntegrationBranches   []integration.Branch
	IntegrationRequested  bool
	HistoryMismatch       bool
	Conflict              *integration.Conflict
	BuildStatusPerTip     map[string]BuildStatus

	AfterPullRequestNumbers []int
	AfterPullRequestsMerged bool
	AfterPullRequestCycle   bool

	Options options.Outcome

	Now time.Time
}

// bypassed reports whether opt is an active, effective bypass option.
func (f PRFacts) bypassed(opt string) bool {
	return f.Options.HasOption(opt)
}

// AllowedProjects returns the configured jira_keys, i.e. the set of issue
// projects a linked issue must belong to (check 8).
func (f PRFacts) AllowedProjects() []string {
	return f.JiraKeys
}

// PrefixForIssueType looks up the configured "prefixes" mapping (check
// 10): which branch prefix an issue of the given type must be used with.
func (f PRFacts) PrefixForIssueType(issueType string) (prefix string, configured bool) {
	prefix, configured = f.IssueTypePrefix[issueType]
	return prefix, configured
}
