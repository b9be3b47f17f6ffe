package branchmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDestinationBranch(t *testing.T) {
	d, ok := ParseDestinationBranch("development/2.0")
	require.True(t, ok)
	assert.Equal(t, KindDevelopment, d.Kind)
	assert.Equal(t, 2, d.Major)
	assert.Equal(t, 0, d.Minor)
	assert.True(t, d.HasMinor)

	d, ok = ParseDestinationBranch("development/7")
	require.True(t, ok)
	assert.False(t, d.HasMinor)
	assert.Equal(t, 7, d.Major)

	d, ok = ParseDestinationBranch("stabilization/1.2.3")
	require.True(t, ok)
	assert.Equal(t, KindStabilization, d.Kind)
	assert.Equal(t, 1, d.Major)
	assert.Equal(t, 2, d.Minor)
	assert.Equal(t, 3, d.Patch)

	_, ok = ParseDestinationBranch("user/bob/wip")
	assert.False(t, ok)

	d, ok = ParseDestinationBranch("hotfix/urgent")
	require.True(t, ok)
	assert.Equal(t, KindHotfix, d.Kind)
}

func TestVersionCompareNoMinorSortsLast(t *testing.T) {
	withMinor := Version{Major: 2, Minor: 9}
	noMinor := Version{Major: 2, NoMinor: true}

	assert.True(t, withMinor.Compare(noMinor) < 0)
	assert.True(t, noMinor.Compare(withMinor) > 0)
}

func TestVersionCompareOrdering(t *testing.T) {
	a := Version{Major: 1, Minor: 0, Patch: 0}
	b := Version{Major: 1, Minor: 1, Patch: 0}
	c := Version{Major: 2, Minor: 0, Patch: 0}

	assert.True(t, a.Compare(b) < 0)
	assert.True(t, b.Compare(c) < 0)
	assert.True(t, a.Compare(a) == 0)
}

func TestParseSourceBranch(t *testing.T) {
	sb := ParseSourceBranch("bugfix/PROJ-123-fix-thing")
	assert.Equal(t, PrefixBugfix, sb.Prefix)
	assert.Equal(t, "PROJ-123", sb.IssueKey)

	sb = ParseSourceBranch("feature/no-issue-key")
	assert.Equal(t, PrefixFeature, sb.Prefix)
	assert.Equal(t, "", sb.IssueKey)
}
