package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/logfields"
	"github.com/simplesurance/bert-e/internal/metrics"
)

// DefJobChannelBufferSize bounds how many jobs can be pending for one
// repository before Enqueue blocks the caller, mirroring the teacher's
// DefEventChannelBufferSize.
const DefJobChannelBufferSize = 512

// Locker is the subset of *gitwork.Workspace the dispatcher needs: one
// mutating git operation per repository at a time (invariant I2).
type Locker interface {
	Lock()
	Unlock()
}

// Handler processes one job. It is supplied by the caller (normally
// cmd/bert-e/main.go, wiring gating+integration+queue together); the
// dispatcher itself is agnostic to what a job does.
type Handler func(ctx context.Context, job *Job) error

type repoWorker struct {
	ch chan *Job

	mu      sync.Mutex
	pending map[int]bool // PR numbers with an already-queued PullRequest job
}

// Dispatcher runs one FIFO job loop per repository, per spec §4.6.
// Adapted from the teacher's EvLoop: the single shared event channel and
// rule-match loop become one channel and handler invocation per
// repository, each serialized behind its own git workspace lock.
type Dispatcher struct {
	mu      sync.Mutex
	workers map[string]*repoWorker

	lockerFor func(repository string) Locker
	handler   Handler

	history *History
	retryer *Retryer
	logger  *zap.Logger

	wg sync.WaitGroup
}

// New returns a Dispatcher. lockerFor resolves a repository key
// ("owner/slug") to the git workspace lock guarding it; handler performs
// the actual job work while holding that lock.
func New(lockerFor func(repository string) Locker, handler Handler) *Dispatcher {
	return &Dispatcher{
		workers:   map[string]*repoWorker{},
		lockerFor: lockerFor,
		handler:   handler,
		history:   NewHistory(1000),
		retryer:   NewRetryer(DefRetryTimeout),
		logger:    zap.L().Named("dispatcher"),
	}
}

// Enqueue adds job to its repository's FIFO queue, starting a worker for
// that repository on first use. A PullRequest job for a PR that already
// has one pending is silently deduplicated (spec §4.6), reporting
// dedup=true.
func (d *Dispatcher) Enqueue(job *Job) (dedup bool) {
	d.mu.Lock()
	w, exist := d.workers[job.Repository]
	if !exist {
		w = &repoWorker{
			ch:      make(chan *Job, DefJobChannelBufferSize),
			pending: map[int]bool{},
		}
		d.workers[job.Repository] = w

		d.wg.Add(1)
		go d.runWorker(w)
	}
	d.mu.Unlock()

	if job.Kind == KindPullRequest {
		w.mu.Lock()
		if w.pending[job.PRNumber] {
			w.mu.Unlock()
			d.logger.Debug(
				"pull request job deduplicated, one already pending",
				logfields.PullRequest(job.PRNumber),
				logfields.Event("job_deduplicated"),
			)
			return true
		}
		w.pending[job.PRNumber] = true
		w.mu.Unlock()
	}

	w.ch <- job
	return false
}

func (d *Dispatcher) runWorker(w *repoWorker) {
	defer d.wg.Done()

	for job := range w.ch {
		d.process(job)

		if job.Kind == KindPullRequest {
			w.mu.Lock()
			delete(w.pending, job.PRNumber)
			w.mu.Unlock()
		}
	}
}

func (d *Dispatcher) process(job *Job) {
	logger := d.logger.With(
		logfields.Repository(job.Repository),
		logfields.JobID(job.ID.String()),
		logfields.JobKind(job.Kind.String()),
	)

	job.Status = StatusRunning
	job.StartedAt = time.Now()

	locker := d.lockerFor(job.Repository)
	locker.Lock()

	err := d.retryer.Run(context.Background(), func(ctx context.Context) error {
		return d.handler(ctx, job)
	}, []zap.Field{logfields.Repository(job.Repository), logfields.JobKind(job.Kind.String())})

	locker.Unlock()

	job.FinishedAt = time.Now()

	if err != nil {
		job.Status = StatusFailed
		job.Details = err.Error()
		logger.Error("job failed", logfields.Event("job_failed"), zap.Error(err))
	} else {
		job.Status = StatusCompleted
		logger.Info("job completed", logfields.Event("job_completed"))
	}

	metrics.Shared().JobCompletedInc(job.Repository, job.Kind.String(), job.Status.String())
	d.history.Record(*job)
}

// History returns the dispatcher's job history ring buffer.
func (d *Dispatcher) History() *History {
	return d.history
}

// Stop closes every repository's queue, waits for the workers to run
// every job already queued, and then stops the retryer.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	for _, w := range d.workers {
		close(w.ch)
	}
	d.mu.Unlock()

	d.wg.Wait()

	d.retryer.Stop()
}
