package gitwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushRefusesForceWithLeaseOnDestination(t *testing.T) {
	w := New(t.TempDir(), "https://example.invalid/repo.git")

	err := w.Push(nil, "development/2.0", "refs/heads/w/2.0/feature-x", PushOptions{ForceWithLease: true})
	assert.Error(t, err)
}

func TestGitErrorMessageUsesStderr(t *testing.T) {
	err := &GitError{Command: "merge", Stderr: "CONFLICT"}
	assert.Contains(t, err.Error(), "CONFLICT")
}
