package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

func TestEnqueueDeduplicatesPendingPullRequestJobs(t *testing.T) {
	var processed int32
	release := make(chan struct{})

	d := New(func(string) Locker { return noopLocker{} }, func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&processed, 1)
		<-release
		return nil
	})
	defer d.Stop()

	now := time.Now()
	first := NewJob("acme/widget", KindPullRequest, 42, nil, "", now)
	second := NewJob("acme/widget", KindPullRequest, 42, nil, "", now)

	dedup1 := d.Enqueue(first)
	require.False(t, dedup1)

	// give the worker goroutine a chance to pick up `first` and block on
	// release before trying to enqueue the duplicate.
	time.Sleep(10 * time.Millisecond)

	dedup2 := d.Enqueue(second)
	assert.True(t, dedup2)

	close(release)
}

func TestProcessRecordsHistoryOnSuccessAndFailure(t *testing.T) {
	var mu sync.Mutex
	var calls []int

	d := New(func(string) Locker { return noopLocker{} }, func(ctx context.Context, job *Job) error {
		mu.Lock()
		calls = append(calls, job.PRNumber)
		mu.Unlock()

		if job.PRNumber == 1 {
			return assertError{}
		}
		return nil
	})

	d.Enqueue(NewJob("acme/widget", KindPullRequest, 1, nil, "", time.Now()))
	d.Enqueue(NewJob("acme/widget", KindPullRequest, 2, nil, "", time.Now()))

	d.Stop()

	hist := d.History().Snapshot()
	require.Len(t, hist, 2)

	byPR := map[int]Job{}
	for _, j := range hist {
		byPR[j.PRNumber] = j
	}

	assert.Equal(t, StatusFailed, byPR[1].Status)
	assert.Equal(t, StatusCompleted, byPR[2].Status)
}

type assertError struct{}

func (assertError) Error() string { return "handler failed" }

func TestEnqueueStartsIndependentWorkersPerRepository(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}

	d := New(func(string) Locker { return noopLocker{} }, func(ctx context.Context, job *Job) error {
		mu.Lock()
		seen[job.Repository] = true
		mu.Unlock()
		return nil
	})

	d.Enqueue(NewJob("acme/widget", KindQueueRebuild, 0, nil, "", time.Now()))
	d.Enqueue(NewJob("acme/gadget", KindQueueRebuild, 0, nil, "", time.Now()))

	d.Stop()

	assert.True(t, seen["acme/widget"])
	assert.True(t, seen["acme/gadget"])
}
