// Package gitwork owns the local, on-disk half of the git repository
// contract described in spec section 6: a cached mirror clone per managed
// repository plus the fetch/push/merge/ls-remote primitives the
// integration engine and queue manager build on.
//
// The teacher never touches a local checkout; it drives GitHub's REST API
// directly. This package is instead grounded on the subprocess-based git
// wrappers used across the wider example corpus (no example repo imports
// a Go git library).
package gitwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// GitError carries the raw output of a failed git invocation.
type GitError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Command, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// Workspace wraps a single cached mirror clone of one managed repository.
// A single mutex per Workspace enforces invariant I2 (at most one
// concurrent mutating git operation per repository); the dispatcher holds
// it for the duration of a job.
type Workspace struct {
	dir       string
	remoteURL string

	mu sync.Mutex

	lsRemoteCache   map[string]string
	lsRemoteFetched bool
}

// New returns a Workspace rooted at dir, backed by a bare mirror clone of
// remoteURL. The clone is created lazily on the first Fetch.
func New(dir, remoteURL string) *Workspace {
	return &Workspace{dir: dir, remoteURL: remoteURL}
}

// Lock acquires the workspace's single-writer lock. Callers must Unlock.
func (w *Workspace) Lock() {
	w.mu.Lock()
}

// Unlock releases the workspace's single-writer lock.
func (w *Workspace) Unlock() {
	w.mu.Unlock()
}

func (w *Workspace) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = w.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", wrapError(err, stdout.String(), stderr.String(), args)
	}

	return strings.TrimSpace(stdout.String()), nil
}

func wrapError(err error, stdout, stderr string, args []string) error {
	command := ""
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			command = a
			break
		}
	}

	return &GitError{
		Command: command,
		Args:    args,
		Stdout:  strings.TrimSpace(stdout),
		Stderr:  strings.TrimSpace(stderr),
		Err:     err,
	}
}

// ensureCloned creates the bare mirror clone if it does not already exist.
func (w *Workspace) ensureCloned(ctx context.Context) error {
	if _, err := os.Stat(w.dir); err == nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--mirror", w.remoteURL, w.dir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return wrapError(err, stdout.String(), stderr.String(), []string{"clone", "--mirror", w.remoteURL})
	}

	return nil
}

// Fetch updates the local mirror from the remote and invalidates the
// ls-remote cache.
func (w *Workspace) Fetch(ctx context.Context) error {
	if err := w.ensureCloned(ctx); err != nil {
		return err
	}

	if _, err := w.run(ctx, "fetch", "--prune", "origin", "+refs/heads/*:refs/heads/*"); err != nil {
		return err
	}

	w.lsRemoteFetched = false
	w.lsRemoteCache = nil

	return nil
}

// PushOptions controls how Push writes a ref.
type PushOptions struct {
	// ForceWithLease is only ever valid for integration branches; the
	// core must never force-push a destination branch (spec §6).
	ForceWithLease bool
}

// destinationPrefixes lists branch name prefixes Push refuses to
// force-push over, enforcing I1/"never force on destinations".
var destinationPrefixes = []string{"development/", "stabilization/", "hotfix/"}

// Push pushes localRef to remote branch name.
func (w *Workspace) Push(ctx context.Context, name, localRef string, opts PushOptions) error {
	if opts.ForceWithLease {
		for _, p := range destinationPrefixes {
			if strings.HasPrefix(name, p) {
				return fmt.Errorf("gitwork: refusing force-with-lease push to destination branch %q", name)
			}
		}
	}

	spec := fmt.Sprintf("%s:refs/heads/%s", localRef, name)
	args := []string{"push", "origin"}
	if opts.ForceWithLease {
		args = append(args, "--force-with-lease")
	}
	args = append(args, spec)

	_, err := w.run(ctx, args...)
	return err
}

// LsRemote returns the current tip commit per branch name, refreshing an
// in-memory cache that is invalidated on Fetch.
func (w *Workspace) LsRemote(ctx context.Context) (map[string]string, error) {
	if w.lsRemoteFetched {
		return w.lsRemoteCache, nil
	}

	out, err := w.run(ctx, "for-each-ref", "--format=%(refname:short) %(objectname)", "refs/heads")
	if err != nil {
		return nil, err
	}

	result := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		result[fields[0]] = fields[1]
	}

	w.lsRemoteCache = result
	w.lsRemoteFetched = true

	return result, nil
}

// DeleteBranch removes a branch from the remote.
func (w *Workspace) DeleteBranch(ctx context.Context, name string) error {
	_, err := w.run(ctx, "push", "origin", "--delete", name)
	return err
}

// Tag creates (or moves) a lightweight tag named name pointing at target
// and pushes it.
func (w *Workspace) Tag(ctx context.Context, name, target string) error {
	if _, err := w.run(ctx, "tag", "-f", name, target); err != nil {
		return err
	}

	_, err := w.run(ctx, "push", "origin", "refs/tags/"+name)
	return err
}

// MergeConflict describes a failed merge attempt.
type MergeConflict struct {
	// ConflictingFiles lists the paths git reported as unmerged.
	ConflictingFiles []string
}

// Merge checks out into as the scratch branch "bert-e-merge-scratch",
// merges the named refs into it and returns the resulting commit sha. If
// refs has more than one element, git performs an octopus merge; on
// failure the caller falls back to two consecutive 2-way merges (spec
// §4.2's "robust merge").
func (w *Workspace) Merge(ctx context.Context, into string, refs ...string) (sha string, conflict *MergeConflict, err error) {
	if len(refs) == 0 {
		return "", nil, fmt.Errorf("gitwork: Merge requires at least one ref")
	}

	if _, err := w.run(ctx, "checkout", "-B", "bert-e-merge-scratch", into); err != nil {
		return "", nil, err
	}

	args := append([]string{"merge", "--no-edit"}, refs...)
	_, mergeErr := w.run(ctx, args...)
	if mergeErr != nil {
		files, _ := w.run(ctx, "diff", "--name-only", "--diff-filter=U")
		_, _ = w.run(ctx, "merge", "--abort")

		var fileList []string
		if files != "" {
			fileList = strings.Split(files, "\n")
		}

		return "", &MergeConflict{ConflictingFiles: fileList}, nil
	}

	sha, err = w.run(ctx, "rev-parse", "HEAD")
	return sha, nil, err
}

// IsAncestor reports whether ancestor's history is entirely contained in
// ref's, i.e. ancestor is reachable from ref.
// Used by the integration engine's divergence and reset-safety checks
// (spec §4.2, §8).
func (w *Workspace) IsAncestor(ctx context.Context, ancestor, ref string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "merge-base", "--is-ancestor", ancestor, ref)
	cmd.Dir = w.dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}

	return false, wrapError(err, "", stderr.String(), []string{"merge-base", "--is-ancestor", ancestor, ref})
}

// Dir returns the workspace's on-disk path.
func (w *Workspace) Dir() string {
	return w.dir
}

// CommitsAhead returns how many commits ref has that base does not, used
// for the max_commit_diff check (spec §4.3 check 5).
func (w *Workspace) CommitsAhead(ctx context.Context, base, ref string) (int, error) {
	out, err := w.run(ctx, "rev-list", "--count", base+".."+ref)
	if err != nil {
		return 0, err
	}

	n, convErr := strconv.Atoi(out)
	if convErr != nil {
		return 0, fmt.Errorf("gitwork: parsing rev-list output %q failed: %w", out, convErr)
	}

	return n, nil
}
