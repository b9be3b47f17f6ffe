package gating

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simplesurance/bert-e/internal/branchmodel"
	"github.com/simplesurance/bert-e/internal/cascade"
	"github.com/simplesurance/bert-e/internal/options"
)

func baseFacts() PRFacts {
	target := branchmodel.DestinationBranch{Name: "development/1.0", Kind: branchmodel.KindDevelopment, Major: 1, HasMinor: true}
	return PRFacts{
		Open:   true,
		Target: target,
		Source: branchmodel.SourceBranch{Name: "bugfix/PROJ-1-x", Prefix: branchmodel.PrefixBugfix, IssueKey: "PROJ-1"},
		Cascade: cascade.Cascade{target},
		Options: options.Outcome{Options: map[string]options.Token{}},
		BuildStatusPerTip: map[string]BuildStatus{},
	}
}

func TestEvaluateGreenPathAdmitsToQueue(t *testing.T) {
	f := baseFacts()
	out := Evaluate(f, true)
	assert.True(t, out.Ok)
	assert.Equal(t, ActionAdmitToQueue, out.Action)
}

func TestEvaluateGreenPathDirectMergeWhenQueuesDisabled(t *testing.T) {
	f := baseFacts()
	out := Evaluate(f, false)
	assert.True(t, out.Ok)
	assert.Equal(t, ActionMergeDirect, out.Action)
}

func TestEvaluateIncorrectPrefix(t *testing.T) {
	f := baseFacts()
	f.Source.Prefix = "randomprefix"
	out := Evaluate(f, true)
	assert.False(t, out.Ok)
	assert.Equal(t, StatusIncorrectPrefix, out.Code)
}

func TestEvaluateFeatureIntoStabilizationIsIncompatible(t *testing.T) {
	f := baseFacts()
	f.Source.Prefix = branchmodel.PrefixFeature
	f.Target.Kind = branchmodel.KindStabilization
	out := Evaluate(f, true)
	assert.False(t, out.Ok)
	assert.Equal(t, StatusIncompatibleBranch, out.Code)
}

func TestEvaluateIncompatibleBranchBypassable(t *testing.T) {
	f := baseFacts()
	f.Source.Prefix = branchmodel.PrefixFeature
	f.Target.Kind = branchmodel.KindStabilization
	f.Options.Options["bypass_incompatible_branch"] = options.Token{Name: "bypass_incompatible_branch"}
	out := Evaluate(f, true)
	assert.True(t, out.Ok)
}

func TestEvaluateMissingIssueKey(t *testing.T) {
	f := baseFacts()
	f.RequireIssueKey = true
	f.Source.IssueKey = ""
	out := Evaluate(f, true)
	assert.False(t, out.Ok)
	assert.Equal(t, StatusMissingIssue, out.Code)
}

func TestEvaluateBuildFailed(t *testing.T) {
	f := baseFacts()
	f.BuildStatusPerTip["w/2.0/bugfix-PROJ-1-x"] = BuildFailed
	out := Evaluate(f, true)
	assert.False(t, out.Ok)
	assert.Equal(t, StatusBuildFailed, out.Code)
}

func TestEvaluateAfterPullRequestCycle(t *testing.T) {
	f := baseFacts()
	f.AfterPullRequestNumbers = []int{7}
	f.AfterPullRequestCycle = true
	out := Evaluate(f, true)
	assert.False(t, out.Ok)
	assert.Equal(t, StatusAfterPRCycle, out.Code)
}

func TestEvaluateWaitOptionHoldsWithoutCode(t *testing.T) {
	f := baseFacts()
	f.Options.Options["wait"] = options.Token{Name: "wait"}
	out := Evaluate(f, true)
	assert.False(t, out.Ok)
	assert.Equal(t, StatusCode(0), out.Code)
}

func TestEvaluatePRNotOpen(t *testing.T) {
	f := baseFacts()
	f.Open = false
	out := Evaluate(f, true)
	assert.False(t, out.Ok)
}

func TestEvaluateRequestsIntegrationDataWhenMissing(t *testing.T) {
	f := baseFacts()
	second := branchmodel.DestinationBranch{Name: "development/2.0", Kind: branchmodel.KindDevelopment, Major: 2, HasMinor: true}
	f.Cascade = cascade.Cascade{f.Target, second}
	out := Evaluate(f, true)
	assert.True(t, out.Ok)
	assert.Equal(t, ActionCreateIntegrationData, out.Action)
}
