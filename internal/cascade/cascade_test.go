package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/bert-e/internal/branchmodel"
)

func dev(major, minor int) branchmodel.DestinationBranch {
	return branchmodel.DestinationBranch{
		Name: "development/" + itoa(major) + "." + itoa(minor),
		Kind: branchmodel.KindDevelopment, Major: major, Minor: minor, HasMinor: true,
	}
}

func stab(major, minor, patch int) branchmodel.DestinationBranch {
	return branchmodel.DestinationBranch{
		Name:     "stabilization/" + itoa(major) + "." + itoa(minor) + "." + itoa(patch),
		Kind:     branchmodel.KindStabilization,
		Major:    major, Minor: minor, Patch: patch, HasMinor: true, HasPatch: true,
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestBuildFeatureSkipsStabilization(t *testing.T) {
	destinations := []branchmodel.DestinationBranch{
		dev(1, 0), dev(2, 0), stab(1, 0, 1),
	}

	c, ignored, err := Build(destinations, dev(1, 0), branchmodel.PrefixFeature)
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, "development/1.0", c[0].Name)
	assert.Equal(t, "development/2.0", c[1].Name)
	assert.Len(t, ignored, 1)
	assert.Equal(t, "stabilization/1.0.1", ignored[0].Name)
}

func TestBuildBugfixIncludesStabilizationThenNewerDevelopment(t *testing.T) {
	destinations := []branchmodel.DestinationBranch{
		dev(1, 0), dev(2, 0), stab(1, 0, 1), stab(1, 0, 2),
	}

	c, _, err := Build(destinations, dev(1, 0), branchmodel.PrefixBugfix)
	require.NoError(t, err)
	require.Len(t, c, 4)
	assert.Equal(t, "development/1.0", c[0].Name)
	assert.Equal(t, branchmodel.KindStabilization, c[1].Kind)
	assert.Equal(t, branchmodel.KindStabilization, c[2].Kind)
	assert.Equal(t, "development/2.0", c[3].Name)
}

func TestBuildIsMonotoneAndBeginsAtTarget(t *testing.T) {
	destinations := []branchmodel.DestinationBranch{
		dev(1, 0), dev(1, 5), dev(2, 0), dev(3, 0),
	}

	target := dev(1, 5)
	c, _, err := Build(destinations, target, branchmodel.PrefixBugfix)
	require.NoError(t, err)

	assert.Equal(t, target.Name, c[0].Name)
	for i := 1; i < len(c); i++ {
		assert.True(t, c[i-1].Version().Compare(c[i].Version()) <= 0)
	}
}

func TestBuildNoMinorDevelopmentSortsLast(t *testing.T) {
	destinations := []branchmodel.DestinationBranch{
		dev(2, 0), dev(2, 5),
		{Name: "development/2", Kind: branchmodel.KindDevelopment, Major: 2},
	}

	c, _, err := Build(destinations, dev(2, 0), branchmodel.PrefixBugfix)
	require.NoError(t, err)
	require.Len(t, c, 3)
	assert.Equal(t, "development/2", c[len(c)-1].Name)
}

func TestBuildRejectsHotfixTarget(t *testing.T) {
	hotfix := branchmodel.DestinationBranch{Name: "hotfix/urgent", Kind: branchmodel.KindHotfix}
	_, _, err := Build(nil, hotfix, branchmodel.PrefixBugfix)
	assert.Error(t, err)
}
