package queue

import (
	"context"
	"fmt"

	"github.com/simplesurance/bert-e/internal/gitwork"
)

// WorkspaceGitOps adapts a *gitwork.Workspace to the Manager's GitOps
// contract: a queue-item branch is just a merge of the lane's current
// parent with the item's integration content, pushed under a q/w/...
// name; FastForward pushes a lane's accepted tip onto its destination
// branch without ForceWithLease, matching I1 ("never force a
// destination").
type WorkspaceGitOps struct {
	Workspace *gitwork.Workspace
}

var _ GitOps = (*WorkspaceGitOps)(nil)

func (g *WorkspaceGitOps) CreateQueueItemBranch(ctx context.Context, _, branchName, parent, content string) (string, error) {
	sha, conflict, err := g.Workspace.Merge(ctx, parent, content)
	if err != nil {
		return "", err
	}
	if conflict != nil {
		return "", fmt.Errorf("merging %q onto %q conflicts in: %v", content, parent, conflict.ConflictingFiles)
	}

	if err := g.Workspace.Push(ctx, branchName, sha, gitwork.PushOptions{}); err != nil {
		return "", err
	}

	return sha, nil
}

func (g *WorkspaceGitOps) FastForward(ctx context.Context, destination, tip string) error {
	return g.Workspace.Push(ctx, destination, tip, gitwork.PushOptions{})
}

func (g *WorkspaceGitOps) DeleteBranch(ctx context.Context, name string) error {
	return g.Workspace.DeleteBranch(ctx, name)
}
