// Package dispatcher implements the per-repository job loop of spec
// section 4.6: one FIFO worker per repository, deduplicating PullRequest
// jobs and retrying transient failures with backoff.
//
// Grounded on the teacher's internal/goordinator/evloop.go (EvLoop),
// generalized from "one shared event channel, N stateless rule matches"
// to "N per-repository FIFO job queues, each single-writer and backed by
// its own gitwork.Workspace lock".
package dispatcher

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the job discriminator of spec §3.
type Kind int

const (
	KindPullRequest Kind = iota
	KindCommit
	KindBuildStatus
	KindQueueRebuild
	KindForceMerge
	KindDeleteQueues
	KindCreateBranch
	KindDeleteBranch
)

func (k Kind) String() string {
	switch k {
	case KindPullRequest:
		return "pull_request"
	case KindCommit:
		return "commit"
	case KindBuildStatus:
		return "build_status"
	case KindQueueRebuild:
		return "queue_rebuild"
	case KindForceMerge:
		return "force_merge"
	case KindDeleteQueues:
		return "delete_queues"
	case KindCreateBranch:
		return "create_branch"
	case KindDeleteBranch:
		return "delete_branch"
	default:
		return "unknown"
	}
}

// Status is a job's lifecycle state: enqueued -> running -> completed|failed.
type Status int

const (
	StatusEnqueued Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEnqueued:
		return "enqueued"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is one unit of work in the dispatcher's per-repository queue.
// PRNumber is 0 for repository-scoped jobs (QueueRebuild, DeleteQueues).
type Job struct {
	ID         uuid.UUID
	Kind       Kind
	Repository string
	PRNumber   int
	Payload    any
	User       string

	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	Status  Status
	Details string
}

// NewJob builds a Job with a fresh ID and CreatedAt set to now.
func NewJob(repository string, kind Kind, prNumber int, payload any, user string, now time.Time) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		Repository: repository,
		PRNumber:   prNumber,
		Payload:    payload,
		User:       user,
		CreatedAt:  now,
		Status:     StatusEnqueued,
	}
}
