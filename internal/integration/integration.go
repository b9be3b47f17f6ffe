// Package integration implements the integration engine of spec section
// 4.2: it creates, updates and resets the per-PR "w/<version>/<src>"
// branches that stage a change against every branch in its cascade, and
// detects the history-mismatch and conflict conditions the gating
// evaluator reports as status 113/114.
package integration

import (
	"context"
	"fmt"
	"strings"

	"github.com/simplesurance/bert-e/internal/branchmodel"
	"github.com/simplesurance/bert-e/internal/cascade"
	"github.com/simplesurance/bert-e/internal/gitwork"
	"github.com/simplesurance/bert-e/internal/stringutils"
)

// Branch is one materialized (or virtual, for the original target)
// integration branch.
type Branch struct {
	Destination branchmodel.DestinationBranch
	// Name is empty for the virtual W_0, which is the PR's source branch
	// itself (spec §4.2: "no branch is materialized").
	Name string
	Tip  string
}

// Conflict is a failed merge, with role-aware remediation text per §4.2.
type Conflict struct {
	Destination      branchmodel.DestinationBranch
	Files            []string
	AgainstOriginal  bool
}

// Message returns the remediation text: fixing on the feature branch when
// the conflict is against the original target, else on the integration
// branch, followed by the conflicting files indented as a quoted list.
func (c Conflict) Message() string {
	where := "fix on integration branch"
	if c.AgainstOriginal {
		where = "fix on feature branch"
	}

	if len(c.Files) == 0 {
		return where
	}

	return where + ":\n" + stringutils.IndentString(strings.Join(c.Files, "\n"), "  ")
}

// DivergenceError is returned when an integration branch contains a
// commit not derivable from source or the original target (status 113).
type DivergenceError struct {
	Branch string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("integration branch %q diverged from source history", e.Branch)
}

// HasForeignCommit reports whether branch's tip contains a commit not
// reachable from ancestorRef, i.e. whether the branch was pushed to
// directly instead of only ever being recreated by Reconcile. It is the
// building block for both DetectDivergence (status 113) and Reset's
// safety check (spec §8).
func (m *Manager) HasForeignCommit(ctx context.Context, ancestorRef, branch string) (bool, error) {
	if branch == "" {
		return false, nil
	}

	ok, err := m.ws.IsAncestor(ctx, ancestorRef, branch)
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// DetectDivergence scans an already-materialized chain of integration
// branches for the first one that carries a commit not derivable from the
// branch before it in the chain (branches[0] is always the virtual W_0,
// whose Tip is the source branch itself). Per §4.2, this is reported as
// status 113.
func (m *Manager) DetectDivergence(ctx context.Context, branches []Branch) (*DivergenceError, error) {
	for i := 1; i < len(branches); i++ {
		foreign, err := m.HasForeignCommit(ctx, branches[i-1].Tip, branches[i].Name)
		if err != nil {
			return nil, err
		}
		if foreign {
			return &DivergenceError{Branch: branches[i].Name}, nil
		}
	}

	return nil, nil
}

// Manager owns the Workspace and the per-PR integration branch lifecycle.
type Manager struct {
	ws *gitwork.Workspace
}

// NewManager builds a Manager operating on ws.
func NewManager(ws *gitwork.Workspace) *Manager {
	return &Manager{ws: ws}
}

func integrationBranchName(version branchmodel.Version, source string) string {
	return fmt.Sprintf("w/%s/%s", version, source)
}

// Reconcile computes, in the local workspace, the merge commit of one
// integration branch per cascade entry after the original target, per
// §4.2's create/update rules. It pushes nothing: it returns the ordered
// branches (including the virtual W_0) with their computed tips, and the
// first conflict encountered, if any.
func (m *Manager) Reconcile(ctx context.Context, sourceBranch string, c cascade.Cascade, noOctopus bool) ([]Branch, *Conflict, error) {
	if len(c) == 0 {
		return nil, nil, fmt.Errorf("integration: empty cascade")
	}

	branches := make([]Branch, 0, len(c))
	branches = append(branches, Branch{Destination: c[0], Name: "", Tip: sourceBranch})

	for i := 1; i < len(c); i++ {
		d := c[i]
		name := integrationBranchName(d.Version(), sourceBranch)

		refs := []string{sourceBranch}
		if i > 1 {
			refs = append(refs, branches[i-1].Name)
		}

		tip, conflict, err := m.mergeWithStrategy(ctx, d.Name, refs, noOctopus)
		if err != nil {
			return branches, nil, err
		}
		if conflict != nil {
			return branches, &Conflict{
				Destination:     d,
				Files:           conflict.ConflictingFiles,
				AgainstOriginal: i == 1,
			}, nil
		}

		branches = append(branches, Branch{Destination: d, Name: name, Tip: tip})
	}

	return branches, nil, nil
}

// mergeWithStrategy implements §4.2's "robust merge": try octopus first
// (when there is more than one ref to merge and it is not disabled), and
// fall back to two consecutive 2-way merges if it produces more conflicts
// than the fallback, or fails outright.
func (m *Manager) mergeWithStrategy(ctx context.Context, into string, refs []string, noOctopus bool) (string, *gitwork.MergeConflict, error) {
	if len(refs) <= 1 || noOctopus {
		return m.consecutiveMerge(ctx, into, refs)
	}

	octopusSha, octopusConflict, err := m.ws.Merge(ctx, into, refs...)
	if err != nil {
		return "", nil, err
	}
	if octopusConflict == nil {
		return octopusSha, nil, nil
	}

	consecutiveSha, consecutiveConflict, err := m.consecutiveMerge(ctx, into, refs)
	if err != nil {
		return "", nil, err
	}

	if consecutiveConflict == nil {
		return consecutiveSha, nil, nil
	}

	return chooseFewerConflicts(octopusConflict, consecutiveConflict, consecutiveSha)
}

func chooseFewerConflicts(a, b *gitwork.MergeConflict, bSha string) (string, *gitwork.MergeConflict, error) {
	if len(b.ConflictingFiles) < len(a.ConflictingFiles) {
		return bSha, b, nil
	}
	return "", a, nil
}

func (m *Manager) consecutiveMerge(ctx context.Context, into string, refs []string) (string, *gitwork.MergeConflict, error) {
	current := into
	var sha string

	for _, ref := range refs {
		s, conflict, err := m.ws.Merge(ctx, current, ref)
		if err != nil {
			return "", nil, err
		}
		if conflict != nil {
			return "", conflict, nil
		}
		sha = s
		current = s
	}

	return sha, nil, nil
}

// TagOnDeletion tags the tip of a deleted destination branch with the
// "x.y" or "x.y.z" tag of spec §6: "x.y.z" for a stabilization branch,
// "x.y" for a development/x.y branch, and no tag for a
// development/<major> branch. This supplements the distilled spec.md with
// the trigger implied by that line but not made explicit there.
func (m *Manager) TagOnDeletion(ctx context.Context, d branchmodel.DestinationBranch, tip string) error {
	if d.Kind == branchmodel.KindStabilization {
		return m.ws.Tag(ctx, fmt.Sprintf("%d.%d.%d", d.Major, d.Minor, d.Patch), tip)
	}

	if d.HasMinor {
		return m.ws.Tag(ctx, fmt.Sprintf("%d.%d", d.Major, d.Minor), tip)
	}

	return nil
}

// Reset deletes all integration branches for a PR. If force is false and
// any branch carries a commit that is not reachable from source or an
// earlier branch in the chain, Reset refuses and returns an error instead
// of deleting anything (spec §4.2, §8 "reset safety").
func (m *Manager) Reset(ctx context.Context, branches []Branch, force bool, hasForeignCommit func(Branch) (bool, error)) error {
	if !force {
		for _, b := range branches {
			if b.Name == "" {
				continue
			}

			foreign, err := hasForeignCommit(b)
			if err != nil {
				return err
			}
			if foreign {
				return fmt.Errorf("integration: %q has commits not derivable from source or destination, refusing reset without force_reset", b.Name)
			}
		}
	}

	for _, b := range branches {
		if b.Name == "" {
			continue
		}
		if err := m.ws.DeleteBranch(ctx, b.Name); err != nil {
			return err
		}
	}

	return nil
}
