// Package gating implements the per-PR evaluator: it derives facts about
// a pull request, runs the fixed-order checks of spec section 4.3, and
// returns either an outcome that hands the PR onward (to the queue or a
// direct merge) or a status code to report to the messenger.
package gating

// StatusCode is one of the stable codes of spec section 6.
type StatusCode int

const (
	StatusHello                   StatusCode = 100
	StatusMerged                  StatusCode = 102
	StatusIncorrectPrefix         StatusCode = 105
	StatusIncompatibleBranch      StatusCode = 106
	StatusMissingIssue            StatusCode = 107
	StatusIssueNotFound           StatusCode = 108
	StatusSubtask                 StatusCode = 109
	StatusWrongProject            StatusCode = 110
	StatusTypePrefixMismatch      StatusCode = 111
	StatusFixVersionMismatch      StatusCode = 112
	StatusHistoryMismatch         StatusCode = 113
	StatusConflict                StatusCode = 114
	StatusMissingApprovals        StatusCode = 115
	StatusBuildFailed             StatusCode = 118

	// StatusQueued reports that a pull request was admitted to the merge
	// queue, distinct from StatusAfterPullRequest (120).
	StatusQueued StatusCode = 119

	StatusAfterPullRequest        StatusCode = 120
	StatusIntegrationDataCreated  StatusCode = 121
	StatusUnknownCommand          StatusCode = 122
	StatusNotAuthorized           StatusCode = 123
	StatusDivergedTooMuchNotAuthor StatusCode = 134

	// StatusAfterPRCycle is bert-e's own extension: the spec's open
	// question about after_pull_request cycles is resolved by reporting
	// one explicitly rather than hanging forever.
	StatusAfterPRCycle StatusCode = 135

	// StatusQueueConflict and StatusQueueOutOfOrder are queue-manager
	// specific conditions from spec §4.5 that are reported through the
	// same status-code channel as evaluator checks.
	StatusQueueConflict   StatusCode = 140
	StatusQueueOutOfOrder StatusCode = 141
	StatusPartialMerge    StatusCode = 142
)

func (c StatusCode) String() string {
	if s, ok := statusNames[c]; ok {
		return s
	}
	return "unknown status"
}

var statusNames = map[StatusCode]string{
	StatusHello:                    "hello",
	StatusMerged:                   "merged",
	StatusIncorrectPrefix:          "incorrect prefix",
	StatusIncompatibleBranch:       "incompatible branch",
	StatusMissingIssue:             "missing issue key",
	StatusIssueNotFound:            "issue not found",
	StatusSubtask:                  "issue is a subtask",
	StatusWrongProject:             "wrong issue project",
	StatusTypePrefixMismatch:       "issue type does not match branch prefix",
	StatusFixVersionMismatch:       "fix version mismatch",
	StatusHistoryMismatch:          "history mismatch",
	StatusConflict:                 "conflict",
	StatusMissingApprovals:         "missing approvals",
	StatusBuildFailed:              "build failed",
	StatusQueued:                   "queued",
	StatusAfterPullRequest:         "waiting on after_pull_request",
	StatusIntegrationDataCreated:   "integration data created",
	StatusUnknownCommand:           "unknown command",
	StatusNotAuthorized:            "not authorized",
	StatusDivergedTooMuchNotAuthor: "diverged too much or not author",
	StatusAfterPRCycle:             "after_pull_request dependency cycle",
	StatusQueueConflict:            "queue conflict",
	StatusQueueOutOfOrder:          "queue out of order",
	StatusPartialMerge:             "partial merge",
}
