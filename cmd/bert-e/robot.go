package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/branchmodel"
	"github.com/simplesurance/bert-e/internal/cascade"
	"github.com/simplesurance/bert-e/internal/cfg"
	"github.com/simplesurance/bert-e/internal/dispatcher"
	"github.com/simplesurance/bert-e/internal/gating"
	"github.com/simplesurance/bert-e/internal/githost"
	"github.com/simplesurance/bert-e/internal/gitwork"
	"github.com/simplesurance/bert-e/internal/integration"
	"github.com/simplesurance/bert-e/internal/issuetracker"
	"github.com/simplesurance/bert-e/internal/logfields"
	"github.com/simplesurance/bert-e/internal/messenger"
	"github.com/simplesurance/bert-e/internal/metrics"
	"github.com/simplesurance/bert-e/internal/options"
	"github.com/simplesurance/bert-e/internal/queue"
	"github.com/simplesurance/bert-e/internal/webhook"
)

// bypassRules is the known token table of spec §4.4: the "wait" and
// "no_octopus" options, every privileged bypass option the gating
// evaluator consults via PRFacts.bypassed, the authored "approve" option,
// and the after_pull_request, reset and force_reset commands.
var bypassRules = []options.Rule{
	{Name: "wait", Kind: options.KindOption},
	{Name: "no_octopus", Kind: options.KindOption},
	{Name: "bypass_incompatible_branch", Kind: options.KindOption, Privileged: true},
	{Name: "bypass_jira_check", Kind: options.KindOption, Privileged: true},
	{Name: "bypass_author_approval", Kind: options.KindOption, Privileged: true},
	{Name: "bypass_peer_approval", Kind: options.KindOption, Privileged: true},
	{Name: "bypass_leader_approval", Kind: options.KindOption, Privileged: true},
	{Name: "bypass_build_status", Kind: options.KindOption, Privileged: true},
	{Name: "disable_version_checks", Kind: options.KindOption, Privileged: true},
	{Name: "approve", Kind: options.KindOption, Authored: true},
	{Name: "after_pull_request", Kind: options.KindCommand},
	{Name: "reset", Kind: options.KindCommand},
	{Name: "force_reset", Kind: options.KindCommand, Privileged: true},
}

// repoContext holds every collaborator needed to evaluate and act on
// pull requests of one configured repository.
type repoContext struct {
	cfg *cfg.Repository

	workspace   *gitwork.Workspace
	host        githost.Client
	issues      issuetracker.Tracker // nil when no jira_account_url is configured
	queueMgr    *queue.Manager
	integration *integration.Manager
	parser      *options.Parser
	msgr        *messenger.Messenger

	logger *zap.Logger
}

func (rc *repoContext) owner() string { return rc.cfg.RepositoryOwner }
func (rc *repoContext) slug() string  { return rc.cfg.RepositorySlug }
func (rc *repoContext) key() string   { return rc.owner() + "/" + rc.slug() }

// robot dispatches dispatcher.Jobs across every configured repository's
// repoContext. It is the dispatcher.Handler passed to dispatcher.New,
// the direct generalization of the teacher's goordinator.Rule.Match ->
// action pipeline into the gating evaluator's check/act loop.
type robot struct {
	repos map[string]*repoContext
	disp  *dispatcher.Dispatcher
}

func (r *robot) handle(ctx context.Context, job *dispatcher.Job) error {
	rc, ok := r.repos[job.Repository]
	if !ok {
		return fmt.Errorf("robot: no repository context for %q", job.Repository)
	}

	switch job.Kind {
	case dispatcher.KindPullRequest:
		return rc.evaluatePullRequest(ctx, job.PRNumber)
	case dispatcher.KindCommit:
		return rc.reevaluateQueue(ctx)
	case dispatcher.KindBuildStatus:
		if d, ok := job.Payload.(*webhook.Decoded); ok {
			rc.applyBuildStatus(d.CommitSHA, toRowStatus(d.BuildStatus))
		}
		return rc.reevaluateQueue(ctx)
	case dispatcher.KindQueueRebuild:
		return rc.rebuildQueue(ctx, r.disp)
	case dispatcher.KindForceMerge:
		return rc.forceMergeQueue(ctx)
	case dispatcher.KindDeleteQueues:
		_, err := rc.queueMgr.Rebuild(ctx)
		return err
	case dispatcher.KindCreateBranch:
		name, _ := job.Payload.(string)
		return rc.createDestinationBranch(ctx, name)
	case dispatcher.KindDeleteBranch:
		name, _ := job.Payload.(string)
		return rc.deleteDestinationBranch(ctx, name)
	default:
		rc.logger.Debug("ignoring job kind with no handler", logfields.JobKind(job.Kind.String()))
		return nil
	}
}

// evaluatePullRequest implements the per-PR portion of spec §4: gather
// facts, run them through the gating evaluator, and act on the Outcome.
func (rc *repoContext) evaluatePullRequest(ctx context.Context, prNumber int) error {
	pr, err := rc.host.GetPullRequest(ctx, rc.owner(), rc.slug(), prNumber)
	if err != nil {
		return err
	}

	if err := rc.workspace.Fetch(ctx); err != nil {
		return err
	}

	facts, err := rc.buildFacts(ctx, pr)
	if err != nil {
		return err
	}

	if reset, force := resetRequested(facts.Options); reset {
		return rc.resetIntegrationBranches(ctx, prNumber, pr.SourceBranch, facts, force)
	}

	outcome := gating.Evaluate(facts, rc.cfg.QueueEnabled)

	if !outcome.Ok {
		if outcome.Code == 0 {
			// silent hold: waiting / not-open / unknown-destination, no
			// comment posted.
			return nil
		}
		metrics.Shared().GatingOutcomeInc(rc.key(), outcome.Code.String())
		return rc.postStatus(ctx, prNumber, outcome, facts.Options)
	}

	metrics.Shared().GatingOutcomeInc(rc.key(), "ok")

	switch outcome.Action {
	case gating.ActionCreateIntegrationData:
		return rc.createIntegrationData(ctx, pr, facts)
	case gating.ActionAdmitToQueue:
		return rc.admitToQueue(ctx, prNumber, pr.SourceBranch, pr.HeadSHA, facts)
	case gating.ActionMergeDirect:
		return rc.mergeDirect(ctx, prNumber, pr, facts)
	default:
		return nil
	}
}

func (rc *repoContext) buildFacts(ctx context.Context, pr *githost.PullRequest) (gating.PRFacts, error) {
	target, isDest := branchmodel.ParseDestinationBranch(pr.TargetBranch)
	if !isDest {
		return gating.PRFacts{Number: pr.Number, Open: pr.Open}, nil
	}

	tips, err := rc.workspace.LsRemote(ctx)
	if err != nil {
		return gating.PRFacts{}, err
	}

	var known []branchmodel.DestinationBranch
	for name := range tips {
		if d, ok := branchmodel.ParseDestinationBranch(name); ok && d.Kind != branchmodel.KindHotfix {
			known = append(known, d)
		}
	}

	source := branchmodel.ParseSourceBranch(pr.SourceBranch)

	c, ignored, err := cascade.Build(known, target, source.Prefix)
	if err != nil {
		return gating.PRFacts{}, err
	}

	integrationBranches := discoverIntegrationBranches(c, pr.SourceBranch, tips)

	comments, err := rc.host.ListComments(ctx, rc.owner(), rc.slug(), pr.Number)
	if err != nil {
		return gating.PRFacts{}, err
	}

	admins, err := rc.host.ListAdmins(ctx, rc.owner(), rc.slug())
	if err != nil {
		return gating.PRFacts{}, err
	}
	adminSet := make(map[string]bool, len(admins))
	for _, a := range admins {
		adminSet[a] = true
	}

	optComments := make([]options.Comment, 0, len(comments))
	for _, c := range comments {
		optComments = append(optComments, options.Comment{
			ID: c.ID, Author: c.Author, Body: c.Body, CreatedAt: c.CreatedAt.Unix(),
		})
	}
	parsedOptions := rc.parser.Parse(optComments, rc.cfg.Robot, adminSet, pr.Author)

	var historyMismatch bool
	var conflict *integration.Conflict

	if len(c) > 1 && len(integrationBranches) == len(c) {
		div, err := rc.integration.DetectDivergence(ctx, integrationBranches)
		if err != nil {
			rc.logger.Debug("checking integration branches for divergence failed", zap.Error(err))
		} else if div != nil {
			historyMismatch = true
			rc.logger.Info("integration branch diverged from source history",
				zap.String("branch", div.Branch), logfields.Event("history_mismatch"))
		}

		if !historyMismatch {
			noOctopus := parsedOptions.HasOption("no_octopus")
			_, reconcileConflict, err := rc.integration.Reconcile(ctx, pr.SourceBranch, c, noOctopus)
			if err != nil {
				rc.logger.Debug("re-checking integration branches for conflicts failed", zap.Error(err))
			} else {
				conflict = reconcileConflict
			}
		}
	}

	var distance int
	if n, err := rc.workspace.CommitsAhead(ctx, target.Name, pr.SourceBranch); err == nil {
		distance = n
	} else {
		rc.logger.Debug("computing commit distance failed", zap.Error(err))
	}
	if distance < 0 {
		rc.logger.Warn("source commit distance is negative, treating it as 0",
			zap.Int("distance", distance), logfields.Event("commit_diff_anomaly"))
	}

	facts := gating.PRFacts{
		Number:                  pr.Number,
		Open:                    pr.Open,
		Target:                  target,
		Source:                  source,
		KnownDestinations:       known,
		BypassPrefixes:          rc.cfg.BypassPrefixes,
		SourceCommitDistance:    distance,
		MaxCommitDiff:           rc.cfg.MaxCommitDiff,
		RequireIssueKey:         source.IssueKey != "" || len(rc.cfg.JiraKeys) > 0,
		JiraKeys:                rc.cfg.JiraKeys,
		IssueTypePrefix:         rc.cfg.Prefixes,
		RequiredPeerApprovals:   rc.cfg.RequiredPeerApprovals,
		RequiredLeaderApprovals: rc.cfg.RequiredLeaderApprovals,
		NeedAuthorApproval:      rc.cfg.NeedAuthorApproval,
		Cascade:                 c,
		IgnoredBranches:         ignored,
		IntegrationBranches:     integrationBranches,
		HistoryMismatch:         historyMismatch,
		Conflict:                conflict,
		Options:                 parsedOptions,
		Now:                     time.Now(),
	}

	if rc.issues != nil && source.IssueKey != "" {
		issue, err := rc.issues.GetIssue(ctx, source.IssueKey)
		if err == nil {
			facts.Issue = &gating.IssueFacts{
				Key: issue.Key, Type: issue.Type, Project: issue.Project,
				IsSubtask: issue.IsSubtask, FixVersions: issue.FixVersions,
			}
		} else if !errors.Is(err, issuetracker.ErrNotFound) {
			return gating.PRFacts{}, err
		}
	}

	if rc.cfg.RequiredPeerApprovals > 0 || rc.cfg.RequiredLeaderApprovals > 0 || rc.cfg.NeedAuthorApproval {
		reviews, err := rc.host.ListReviews(ctx, rc.owner(), rc.slug(), pr.Number)
		if err != nil {
			return gating.PRFacts{}, err
		}
		facts.Approvals = approvalStateFromReviews(reviews, pr.Author, adminSet, rc.cfg.ProjectLeaders)
	}

	ready, err := rc.host.ReadyForMerge(ctx, rc.owner(), rc.slug(), pr.Number)
	if err == nil && ready != nil {
		facts.BuildStatusPerTip = map[string]gating.BuildStatus{ready.Commit: toBuildStatus(ready.CIStatus)}
	}

	for _, tok := range parsedOptions.Commands {
		if tok.Name == "after_pull_request" {
			facts.AfterPullRequestNumbers = append(facts.AfterPullRequestNumbers, parseAfterPRValues(tok.Value)...)
		}
	}

	if len(facts.AfterPullRequestNumbers) > 0 {
		facts.AfterPullRequestsMerged = true
		for _, n := range facts.AfterPullRequestNumbers {
			dep, err := rc.host.GetPullRequest(ctx, rc.owner(), rc.slug(), n)
			if err != nil {
				return gating.PRFacts{}, err
			}
			if !dep.Merged {
				facts.AfterPullRequestsMerged = false
			}
		}
	}

	return facts, nil
}

// discoverIntegrationBranches reports which w/<version>/<source> branches
// of the cascade already exist on the remote, per the naming scheme of
// integration.Manager.Reconcile. Cascade[0] is always "present" as the
// virtual W_0 (the source branch itself).
func discoverIntegrationBranches(c cascade.Cascade, sourceBranch string, tips map[string]string) []integration.Branch {
	if len(c) == 0 {
		return nil
	}

	branches := make([]integration.Branch, 0, len(c))
	branches = append(branches, integration.Branch{Destination: c[0], Name: "", Tip: sourceBranch})

	for i := 1; i < len(c); i++ {
		name := fmt.Sprintf("w/%s/%s", c[i].Version(), sourceBranch)
		tip, exists := tips[name]
		if !exists {
			break
		}
		branches = append(branches, integration.Branch{Destination: c[i], Name: name, Tip: tip})
	}

	return branches
}

func parseAfterPRValues(value string) []int {
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(strings.TrimPrefix(part, "#"))
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func toBuildStatus(s githost.CIStatus) gating.BuildStatus {
	switch s {
	case githost.CIStatusSuccess:
		return gating.BuildSuccessful
	case githost.CIStatusFailure:
		return gating.BuildFailed
	case githost.CIStatusPending:
		return gating.BuildPending
	default:
		return gating.BuildUnknown
	}
}

func approvalStateFromReviews(reviews []githost.Review, author string, admins map[string]bool, leaders []string) *gating.ApprovalState {
	leaderSet := make(map[string]bool, len(leaders))
	for _, l := range leaders {
		leaderSet[l] = true
	}

	state := &gating.ApprovalState{}
	seen := map[string]string{} // reviewer -> latest state

	for _, r := range reviews {
		seen[r.Author] = r.State
	}

	for reviewer, s := range seen {
		switch s {
		case "APPROVED":
			if reviewer == author {
				state.AuthorApproved = true
				continue
			}
			state.PeerApprovals++
			if leaderSet[reviewer] {
				state.LeaderApprovals++
			}
		case "CHANGES_REQUESTED":
			state.ChangesRequested = true
		}
	}

	return state
}

// postStatus renders the outcome's status code via the messenger,
// following spec §9: Code + Context become a MessageSpec. activeOptions
// lists the sticky options currently in force, for the footer.
func (rc *repoContext) postStatus(ctx context.Context, prNumber int, outcome gating.Outcome, opts options.Outcome) error {
	active := make([]string, 0, len(opts.Options))
	for name := range opts.Options {
		active = append(active, name)
	}

	return rc.msgr.Post(ctx, rc.owner(), rc.slug(), prNumber, messenger.MessageSpec{
		Code:   int(outcome.Code),
		Params: outcome.Context,
	}, active)
}

func (rc *repoContext) createIntegrationData(ctx context.Context, pr *githost.PullRequest, facts gating.PRFacts) error {
	noOctopus := facts.Options.HasOption("no_octopus")

	branches, conflict, err := rc.integration.Reconcile(ctx, pr.SourceBranch, facts.Cascade, noOctopus)
	if err != nil {
		return err
	}

	if conflict != nil {
		return rc.msgr.Post(ctx, rc.owner(), rc.slug(), pr.Number, messenger.MessageSpec{
			Code:   int(gating.StatusConflict),
			Params: map[string]any{"message": conflict.Message()},
		}, nil)
	}

	for _, b := range branches[1:] {
		if err := rc.workspace.Push(ctx, b.Name, b.Tip, gitwork.PushOptions{ForceWithLease: true}); err != nil {
			return err
		}
	}

	rc.logger.Info("integration branches created",
		logfields.PullRequest(pr.Number), logfields.Event("integration_data_created"),
		zap.Int("branches", len(branches)-1),
	)

	return rc.msgr.Post(ctx, rc.owner(), rc.slug(), pr.Number, messenger.MessageSpec{
		Code:   int(gating.StatusIntegrationDataCreated),
		Params: map[string]any{"message": fmt.Sprintf("created %d integration branches", len(branches)-1)},
	}, nil)
}

func (rc *repoContext) admitToQueue(ctx context.Context, prNumber int, sourceBranch, sourceSHA string, facts gating.PRFacts) error {
	destinations := make([]string, len(facts.Cascade))
	contentTips := make(map[string]string, len(facts.Cascade))

	for i, d := range facts.Cascade {
		destinations[i] = d.Name
	}

	for _, b := range facts.IntegrationBranches {
		contentTips[b.Destination.Name] = b.Tip
	}

	if err := rc.queueMgr.Admit(ctx, prNumber, sourceBranch, sourceSHA, destinations, contentTips); err != nil {
		if errors.Is(err, queue.ErrQueueConflict) {
			return rc.msgr.Post(ctx, rc.owner(), rc.slug(), prNumber, messenger.MessageSpec{
				Code:   int(gating.StatusQueueConflict),
				Params: map[string]any{"message": err.Error()},
			}, nil)
		}
		return err
	}

	return rc.msgr.Post(ctx, rc.owner(), rc.slug(), prNumber, messenger.MessageSpec{
		Code:   int(gating.StatusQueued),
		Params: map[string]any{},
	}, nil)
}

func (rc *repoContext) mergeDirect(ctx context.Context, prNumber int, pr *githost.PullRequest, facts gating.PRFacts) error {
	for _, d := range facts.Cascade {
		if err := rc.workspace.Push(ctx, d.Name, pr.HeadSHA, gitwork.PushOptions{}); err != nil {
			return err
		}
	}

	return rc.msgr.Post(ctx, rc.owner(), rc.slug(), prNumber, messenger.MessageSpec{
		Code:   int(gating.StatusMerged),
		Params: map[string]any{},
	}, nil)
}

// reevaluateQueue handles Commit/BuildStatus jobs: a new tip landed on a
// destination or an integration branch's CI concluded, so pending
// promotions may now be unblocked.
func (rc *repoContext) reevaluateQueue(ctx context.Context) error {
	snapshot := rc.queueMgr.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	laneTips := map[string]string{}
	sourceHeads := map[int]string{}

	tips, err := rc.workspace.LsRemote(ctx)
	if err != nil {
		rc.logger.Debug("looking up current branch tips for partial-merge detection failed", zap.Error(err))
	}

	for _, it := range snapshot {
		for _, l := range it.Lanes {
			if _, exist := laneTips[l.Destination]; !exist {
				laneTips[l.Destination] = l.Parent
			}
		}
		if sha, ok := tips[it.SourceBranch]; ok {
			sourceHeads[it.PRNumber] = sha
		}
	}

	result, err := rc.queueMgr.Promote(ctx, laneTips, sourceHeads)
	if err != nil {
		return rc.reportQueueError(ctx, snapshot, err)
	}

	return rc.reportPromotions(ctx, result)
}

func (rc *repoContext) forceMergeQueue(ctx context.Context) error {
	result, err := rc.queueMgr.ForceMerge(ctx)
	if err != nil {
		return err
	}
	return rc.reportPromotions(ctx, result)
}

// reportQueueError translates the queue manager's sentinel errors into
// PR-visible status comments per spec §4.5, rather than letting them
// propagate as plain Go errors the dispatcher would treat as
// Transient/Fatal. It posts to every currently queued PR, since both
// conditions are lane-wide, not specific to one item.
func (rc *repoContext) reportQueueError(ctx context.Context, items []queue.Item, err error) error {
	var code gating.StatusCode

	switch {
	case errors.Is(err, queue.ErrOutOfOrder):
		code = gating.StatusQueueOutOfOrder
	case errors.Is(err, queue.ErrQueueConflict):
		code = gating.StatusQueueConflict
	default:
		return err
	}

	for _, it := range items {
		if postErr := rc.msgr.Post(ctx, rc.owner(), rc.slug(), it.PRNumber, messenger.MessageSpec{
			Code:   int(code),
			Params: map[string]any{"message": err.Error()},
		}, nil); postErr != nil {
			rc.logger.Warn("posting queue condition status failed", zap.Int("pr_number", it.PRNumber), zap.Error(postErr))
		}
	}

	return nil
}

// reportPromotions posts the merge or partial-merge status to every PR
// Promote/ForceMerge just closed out of the queue.
func (rc *repoContext) reportPromotions(ctx context.Context, result *queue.PromotionResult) error {
	if result == nil {
		return nil
	}

	partial := make(map[int]bool, len(result.PartialMerges))
	for _, pr := range result.PartialMerges {
		partial[pr] = true
	}

	for _, pr := range result.PromotedPRs {
		code := gating.StatusMerged
		params := map[string]any{}
		if partial[pr] {
			code = gating.StatusPartialMerge
			params["message"] = "source branch advanced after admission; only the originally queued commits were promoted"
		}

		if err := rc.msgr.Post(ctx, rc.owner(), rc.slug(), pr, messenger.MessageSpec{Code: int(code), Params: params}, nil); err != nil {
			rc.logger.Warn("posting promotion status failed", zap.Int("pr_number", pr), zap.Error(err))
		}
	}

	return nil
}

// applyBuildStatus records status for every currently queued lane whose
// branch tip matches sha, ahead of the next promotion attempt (spec
// §4.5's per-lane build result).
func (rc *repoContext) applyBuildStatus(sha string, status queue.RowStatus) {
	if sha == "" {
		return
	}

	for _, it := range rc.queueMgr.Snapshot() {
		for _, l := range it.Lanes {
			if l.Tip == sha {
				rc.queueMgr.SetItemLaneStatus(it.PRNumber, l.Destination, status)
			}
		}
	}
}

func toRowStatus(s githost.CIStatus) queue.RowStatus {
	switch s {
	case githost.CIStatusSuccess:
		return queue.RowGreen
	case githost.CIStatusFailure:
		return queue.RowRed
	default:
		return queue.RowPending
	}
}

// resetRequested reports whether the PR's comments carried a reset or
// force_reset command, per spec §8's reset safety rules.
func resetRequested(opts options.Outcome) (reset, force bool) {
	for _, tok := range opts.Commands {
		switch tok.Name {
		case "reset":
			reset = true
		case "force_reset":
			reset, force = true, true
		}
	}
	return reset, force
}

// resetIntegrationBranches implements the reset/force_reset commands:
// delete the pull request's integration branches, refusing with status
// 113 unless force_reset is set or none of them carries a commit that
// did not come from the source branch (spec §8).
func (rc *repoContext) resetIntegrationBranches(ctx context.Context, prNumber int, sourceBranch string, facts gating.PRFacts, force bool) error {
	hasForeignCommit := func(b integration.Branch) (bool, error) {
		return rc.integration.HasForeignCommit(ctx, sourceBranch, b.Name)
	}

	if err := rc.integration.Reset(ctx, facts.IntegrationBranches, force, hasForeignCommit); err != nil {
		return rc.msgr.Post(ctx, rc.owner(), rc.slug(), prNumber, messenger.MessageSpec{
			Code:   int(gating.StatusHistoryMismatch),
			Params: map[string]any{"message": err.Error()},
		}, nil)
	}

	rc.logger.Info("integration branches reset", logfields.PullRequest(prNumber), logfields.Event("integration_reset"))

	return rc.msgr.Post(ctx, rc.owner(), rc.slug(), prNumber, messenger.MessageSpec{
		Code:   int(gating.StatusIntegrationDataCreated),
		Params: map[string]any{"message": "integration branches reset; they will be recreated on the next evaluation"},
	}, nil)
}

// previousCascadeTip finds the known destination branch with the largest
// version strictly below d's, the branch a newly created destination
// branch forks from.
func previousCascadeTip(d branchmodel.DestinationBranch, tips map[string]string) (parentBranch, parentTip string) {
	var best branchmodel.DestinationBranch
	found := false

	for name, tip := range tips {
		other, ok := branchmodel.ParseDestinationBranch(name)
		if !ok || other.Kind == branchmodel.KindHotfix {
			continue
		}
		if other.Version().Compare(d.Version()) >= 0 {
			continue
		}
		if !found || other.Version().Compare(best.Version()) > 0 {
			best, found = other, true
			parentTip = tip
		}
	}

	if !found {
		return "", ""
	}

	return best.Name, parentTip
}

// createDestinationBranch handles a KindCreateBranch job (spec §6's
// POST /api/gwf/branches/<branch>): fork name from the nearest earlier
// branch in cascade order.
func (rc *repoContext) createDestinationBranch(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("robot: create_branch job carries no branch name")
	}

	d, ok := branchmodel.ParseDestinationBranch(name)
	if !ok {
		return fmt.Errorf("robot: %q is not a recognized destination branch name", name)
	}

	if err := rc.workspace.Fetch(ctx); err != nil {
		return err
	}

	tips, err := rc.workspace.LsRemote(ctx)
	if err != nil {
		return err
	}

	if _, exists := tips[name]; exists {
		return fmt.Errorf("robot: branch %q already exists", name)
	}

	parentBranch, parentTip := previousCascadeTip(d, tips)
	if parentTip == "" {
		return fmt.Errorf("robot: no earlier cascade branch found to fork %q from", name)
	}

	if err := rc.workspace.Push(ctx, name, parentTip, gitwork.PushOptions{}); err != nil {
		return err
	}

	rc.logger.Info("destination branch created",
		zap.String("branch", name), zap.String("forked_from", parentBranch),
		logfields.Event("branch_created"))

	return nil
}

// deleteDestinationBranch handles a KindDeleteBranch job (spec §6's
// DELETE /api/gwf/branches/<branch>): delete the branch and, per §6, tag
// its tip so the release it carried remains addressable.
func (rc *repoContext) deleteDestinationBranch(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("robot: delete_branch job carries no branch name")
	}

	d, ok := branchmodel.ParseDestinationBranch(name)
	if !ok {
		return fmt.Errorf("robot: %q is not a recognized destination branch name", name)
	}

	if err := rc.workspace.Fetch(ctx); err != nil {
		return err
	}

	tips, err := rc.workspace.LsRemote(ctx)
	if err != nil {
		return err
	}

	tip, exists := tips[name]
	if !exists {
		return fmt.Errorf("robot: branch %q does not exist", name)
	}

	if err := rc.workspace.DeleteBranch(ctx, name); err != nil {
		return err
	}

	if err := rc.integration.TagOnDeletion(ctx, d, tip); err != nil {
		return err
	}

	rc.logger.Info("destination branch deleted", zap.String("branch", name), logfields.Event("branch_deleted"))

	return nil
}

func (rc *repoContext) rebuildQueue(ctx context.Context, disp *dispatcher.Dispatcher) error {
	prs, err := rc.queueMgr.Rebuild(ctx)
	if err != nil {
		return err
	}

	for _, pr := range prs {
		job := dispatcher.NewJob(rc.key(), dispatcher.KindPullRequest, pr, nil, "queue-rebuild", time.Now())
		disp.Enqueue(job)
	}

	return nil
}
