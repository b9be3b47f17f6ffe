package gating

import (
	"github.com/simplesurance/bert-e/internal/branchmodel"
	"github.com/simplesurance/bert-e/internal/cascade"
)

// Check is one row of spec §4.3's table: it inspects PRFacts and either
// passes (ok=true) or fails with the row's status code. Bypass is the
// option name (if any) that lets a privileged commenter waive the check;
// it is informational here, actual privilege enforcement already
// happened in the options parser.
type Check struct {
	Name   string
	Bypass string
	Run    func(PRFacts) (ok bool, code StatusCode, context map[string]any)
}

// Checks is the fixed-order table of spec §4.3, rows 3-20 (rows 1-2 are
// handled by Evaluate directly since they gate whether facts collection
// even makes sense).
var Checks = []Check{
	{
		Name: "source_prefix_permitted", Bypass: "",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if isPermittedPrefix(f.Source.Prefix, f.BypassPrefixes) {
				return true, 0, nil
			}
			return false, StatusIncorrectPrefix, map[string]any{"prefix": f.Source.Prefix}
		},
	},
	{
		Name: "prefix_compatible_with_destination", Bypass: "bypass_incompatible_branch",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_incompatible_branch") {
				return true, 0, nil
			}
			if f.Source.Prefix == branchmodel.PrefixFeature && f.Target.Kind == branchmodel.KindStabilization {
				return false, StatusIncompatibleBranch, nil
			}
			return true, 0, nil
		},
	},
	{
		Name: "source_divergence", Bypass: "",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			diff := f.SourceCommitDistance
			if diff < 0 {
				diff = 0
			}
			if f.MaxCommitDiff <= 0 || diff <= f.MaxCommitDiff {
				return true, 0, nil
			}
			return false, StatusDivergedTooMuchNotAuthor, map[string]any{"distance": diff}
		},
	},
	{
		Name: "issue_key_present", Bypass: "bypass_jira_check",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_jira_check") || !f.RequireIssueKey {
				return true, 0, nil
			}
			if f.Source.IssueKey == "" {
				return false, StatusMissingIssue, nil
			}
			return true, 0, nil
		},
	},
	{
		Name: "issue_exists", Bypass: "bypass_jira_check",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_jira_check") || !f.RequireIssueKey {
				return true, 0, nil
			}
			if f.Issue == nil {
				return false, StatusIssueNotFound, nil
			}
			return true, 0, nil
		},
	},
	{
		Name: "issue_project_allowed", Bypass: "bypass_jira_check",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_jira_check") || !f.RequireIssueKey || f.Issue == nil {
				return true, 0, nil
			}
			if len(f.AllowedProjects()) == 0 {
				return true, 0, nil
			}
			for _, p := range f.AllowedProjects() {
				if p == f.Issue.Project {
					return true, 0, nil
				}
			}
			return false, StatusWrongProject, map[string]any{"project": f.Issue.Project}
		},
	},
	{
		Name: "issue_not_subtask", Bypass: "bypass_jira_check",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_jira_check") || !f.RequireIssueKey || f.Issue == nil {
				return true, 0, nil
			}
			if f.Issue.IsSubtask {
				return false, StatusSubtask, nil
			}
			return true, 0, nil
		},
	},
	{
		Name: "issue_type_matches_prefix", Bypass: "bypass_jira_check",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_jira_check") || !f.RequireIssueKey || f.Issue == nil {
				return true, 0, nil
			}
			want, configured := f.PrefixForIssueType(f.Issue.Type)
			if !configured || want == string(f.Source.Prefix) {
				return true, 0, nil
			}
			return false, StatusTypePrefixMismatch, map[string]any{"issueType": f.Issue.Type, "want": want}
		},
	},
	{
		Name: "fix_versions_match_cascade", Bypass: "disable_version_checks",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("disable_version_checks") || f.bypassed("bypass_jira_check") || !f.RequireIssueKey || f.Issue == nil {
				return true, 0, nil
			}
			if fixVersionsMatchCascade(f.Issue.FixVersions, f.Cascade) {
				return true, 0, nil
			}
			return false, StatusFixVersionMismatch, nil
		},
	},
	{
		Name: "integration_branches_built", Bypass: "",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if len(f.Cascade) > 1 && len(f.IntegrationBranches) < len(f.Cascade) && !f.IntegrationRequested {
				return false, 0, nil // handled by Evaluate: ask for creation, not a failure code
			}
			return true, 0, nil
		},
	},
	{
		Name: "no_history_mismatch", Bypass: "",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.HistoryMismatch {
				return false, StatusHistoryMismatch, nil
			}
			return true, 0, nil
		},
	},
	{
		Name: "no_conflict", Bypass: "",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.Conflict != nil {
				return false, StatusConflict, map[string]any{
					"destination": f.Conflict.Destination.Name,
					"message":     f.Conflict.Message(),
					"files":       f.Conflict.Files,
				}
			}
			return true, 0, nil
		},
	},
	{
		Name: "author_approval", Bypass: "bypass_author_approval",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_author_approval") || !f.NeedAuthorApproval || f.Approvals == nil {
				return true, 0, nil
			}
			if !f.Approvals.AuthorApproved {
				return false, StatusMissingApprovals, map[string]any{"missing": "author"}
			}
			return true, 0, nil
		},
	},
	{
		Name: "peer_approvals", Bypass: "bypass_peer_approval",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_peer_approval") || f.Approvals == nil {
				return true, 0, nil
			}
			if f.Approvals.ChangesRequested {
				return false, StatusMissingApprovals, map[string]any{"missing": "peer", "reason": "changes_requested"}
			}
			if f.Approvals.PeerApprovals < f.RequiredPeerApprovals {
				return false, StatusMissingApprovals, map[string]any{"missing": "peer"}
			}
			return true, 0, nil
		},
	},
	{
		Name: "leader_approvals", Bypass: "bypass_leader_approval",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_leader_approval") || f.Approvals == nil {
				return true, 0, nil
			}
			if f.Approvals.LeaderApprovals < f.RequiredLeaderApprovals {
				return false, StatusMissingApprovals, map[string]any{"missing": "leader"}
			}
			return true, 0, nil
		},
	},
	{
		Name: "after_pull_request_merged", Bypass: "remove after_pull_request option",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if len(f.AfterPullRequestNumbers) == 0 {
				return true, 0, nil
			}
			if f.AfterPullRequestCycle {
				return false, StatusAfterPRCycle, map[string]any{"deps": f.AfterPullRequestNumbers}
			}
			if !f.AfterPullRequestsMerged {
				return false, StatusAfterPullRequest, map[string]any{"deps": f.AfterPullRequestNumbers}
			}
			return true, 0, nil
		},
	},
	{
		Name: "build_status_successful", Bypass: "bypass_build_status",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("bypass_build_status") {
				return true, 0, nil
			}
			for tip, status := range f.BuildStatusPerTip {
				if status != BuildSuccessful {
					return false, StatusBuildFailed, map[string]any{"tip": tip, "status": status}
				}
			}
			return true, 0, nil
		},
	},
	{
		Name: "wait_option_absent", Bypass: "remove wait option",
		Run: func(f PRFacts) (bool, StatusCode, map[string]any) {
			if f.bypassed("wait") {
				return false, 0, nil // no code: silently hold, not a failure to report
			}
			return true, 0, nil
		},
	},
}

// Evaluate runs facts through checks 1-20 of spec §4.3 in fixed order,
// short-circuiting on the first non-OK check.
func Evaluate(facts PRFacts, queuesEnabled bool) Outcome {
	if !facts.Open {
		return fail(0, map[string]any{"reason": "pr_not_open"})
	}

	if facts.Target.Kind != branchmodel.KindDevelopment && facts.Target.Kind != branchmodel.KindStabilization {
		return fail(0, map[string]any{"reason": "unknown_destination"})
	}

	for _, c := range Checks {
		ok, code, ctx := c.Run(facts)
		if ok {
			continue
		}

		if c.Name == "integration_branches_built" {
			return Outcome{Ok: true, Action: ActionCreateIntegrationData}
		}

		if c.Name == "wait_option_absent" {
			return Outcome{Ok: false, Code: 0, Context: map[string]any{"reason": "waiting"}}
		}

		return fail(code, ctx)
	}

	if queuesEnabled {
		return ok(ActionAdmitToQueue)
	}

	return ok(ActionMergeDirect)
}

func isPermittedPrefix(prefix branchmodel.SourcePrefix, bypassPrefixes []string) bool {
	switch prefix {
	case branchmodel.PrefixFeature, branchmodel.PrefixBugfix, branchmodel.PrefixImprovement, branchmodel.PrefixProject:
		return true
	}

	for _, p := range bypassPrefixes {
		if p == string(prefix) {
			return true
		}
	}

	return false
}

func fixVersionsMatchCascade(fixVersions []string, c cascade.Cascade) bool {
	if len(fixVersions) == 0 {
		return true
	}

	want := map[string]bool{}
	for _, d := range c {
		want[d.Version().String()] = true
	}

	for _, v := range fixVersions {
		if !want[v] {
			return false
		}
	}

	return true
}
