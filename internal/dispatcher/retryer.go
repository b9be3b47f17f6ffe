package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/goorderr"
	"github.com/simplesurance/bert-e/internal/logfields"
)

// DefRetryTimeout bounds how long a single job is retried before it is
// given up on and recorded as failed, matching the teacher's
// evloop.DefRetryTimeout default.
const DefRetryTimeout = 2 * time.Hour

// Retryer runs a job's handler repeatedly until it succeeds, returns a
// non-retryable error, or the retry timeout / context expires. Adapted
// from the teacher's internal/goordinator/retryer.go, generalized from
// retrying an action.Runner to retrying a dispatcher.Job.
type Retryer struct {
	logger          *zap.Logger
	maxRetryTimeout time.Duration
	shutdownChan    chan struct{}
}

// NewRetryer returns a Retryer bounded by maxRetryTimeout. A zero value
// uses DefRetryTimeout.
func NewRetryer(maxRetryTimeout time.Duration) *Retryer {
	if maxRetryTimeout <= 0 {
		maxRetryTimeout = DefRetryTimeout
	}

	return &Retryer{
		logger:          zap.L().Named("dispatcher.retryer"),
		maxRetryTimeout: maxRetryTimeout,
		shutdownChan:    make(chan struct{}),
	}
}

// Run executes fn until it succeeds, returns an error that does not wrap
// goorderr.RetryableError, or the context/retry-timeout is exhausted.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	var tryCnt uint

	startTime := time.Now()
	endTime := startTime.Add(r.maxRetryTimeout)

	retryTimeout := time.NewTimer(r.maxRetryTimeout)
	defer retryTimeout.Stop()

	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second

	for {
		tryCnt++
		logger := r.logger.With(logF...).With(zap.Uint("try_count", tryCnt))

		select {
		case <-ctx.Done():
			logger.Info("job execution cancelled", logfields.Event("job_execution_cancelled"))
			return ctx.Err()

		case <-retryTimer.C:
			err := fn(ctx)
			if err != nil {
				var retryErr *goorderr.RetryableError

				logger = logger.With(zap.Error(err))

				if errors.Is(err, context.Canceled) {
					logger.Error("job cancelled", logfields.Event("job_cancelled"))
					return err
				}

				if errors.As(err, &retryErr) {
					if retryErr.After.After(endTime) {
						logger.Error(
							"job failed, next possible retry time is after timeout expiration",
							logfields.Event("job_failed"),
							zap.Time("earliest_allowed_retry", retryErr.After),
						)
						return err
					}

					var retryIn time.Duration
					if retryErr.After.IsZero() {
						retryIn = bo.NextBackOff()
					} else {
						retryIn = time.Until(retryErr.After)
					}

					retryTimer.Reset(retryIn)
					logger.Warn(
						"job failed, retry scheduled",
						logfields.Event("job_retry_scheduled"),
						zap.Duration("retry_in", retryIn),
					)
					continue
				}

				logger.Error("job failed, not retryable", logfields.Event("job_failed"))
				return err
			}

			logger.Debug("job executed successfully", logfields.Event("job_executed_successfully"))
			return nil

		case <-retryTimeout.C:
			logger.Warn("giving up retrying job execution, retry timeout expired", logfields.Event("job_retry_timeout"))
			return errors.New("dispatcher: retry timeout expired")

		case <-r.shutdownChan:
			logger.Info("dispatcher terminating, job not executed", logfields.Event("job_execution_cancelled_dispatcher_terminated"))
			return nil
		}
	}
}

// Stop notifies all in-flight Run calls to terminate without waiting for them.
func (r *Retryer) Stop() {
	select {
	case <-r.shutdownChan:
		return
	default:
		close(r.shutdownChan)
	}
}
