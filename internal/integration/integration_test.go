package integration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/bert-e/internal/gitwork"
)

func TestConflictMessage(t *testing.T) {
	assert.Equal(t, "fix on feature branch", Conflict{AgainstOriginal: true}.Message())
	assert.Equal(t, "fix on integration branch", Conflict{AgainstOriginal: false}.Message())
}

func TestConflictMessageListsFiles(t *testing.T) {
	c := Conflict{AgainstOriginal: true, Files: []string{"a.go", "b.go"}}
	assert.Equal(t, "fix on feature branch:\n  a.go\n  b.go", c.Message())
}

func TestResetRefusesForeignCommitWithoutForce(t *testing.T) {
	m := &Manager{}
	branches := []Branch{{Name: "w/2.0/feature-x"}}

	err := m.Reset(nil, branches, false, func(Branch) (bool, error) {
		return true, nil
	})
	require.Error(t, err)
}

func TestResetPropagatesHasForeignCommitError(t *testing.T) {
	m := &Manager{}
	branches := []Branch{{Name: "w/2.0/feature-x"}}
	wantErr := errors.New("boom")

	err := m.Reset(nil, branches, false, func(Branch) (bool, error) {
		return false, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestChooseFewerConflictsPrefersSmaller(t *testing.T) {
	octopus := &gitwork.MergeConflict{ConflictingFiles: make([]string, 3)}
	consecutive := &gitwork.MergeConflict{ConflictingFiles: make([]string, 1)}

	sha, chosen, err := chooseFewerConflicts(octopus, consecutive, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", sha)
	assert.Equal(t, consecutive, chosen)
}
