// Package outbox drains the translation_jobs table: jobs written in the same transaction as a catalog
// insert run on a bounded pool and are retried with exponential backoff.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"horse.fit/catalog/internal/config"
	"horse.fit/catalog/internal/db"
)

// JobStore is the persistence the worker needs. *db.Store implements it.
type JobStore interface {
	ClaimDueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]db.TranslationJob, error)
	CompleteJob(ctx context.Context, jobID int64, attempts int) error
	RetryJob(ctx context.Context, jobID int64, attempts int, nextAttemptAt time.Time, cause string) error
	KillJob(ctx context.Context, jobID int64, attempts int, cause string) error
}

// Handler executes one job. Returning an error wrapped with Permanent dead-letters the job.
type Handler func(ctx context.Context, job db.TranslationJob) error

type Options struct {
	Workers        int
	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Lease          time.Duration
	// JobTimeout bounds one handler call. Defaults to Lease.
	JobTimeout time.Duration

	Logger zerolog.Logger
	Now    func() time.Time
}

func OptionsFromConfig(cfg *config.Config, logger zerolog.Logger) Options {
	return Options{
		Workers:        cfg.OutboxWorkers,
		BatchSize:      cfg.OutboxBatchSize,
		PollInterval:   cfg.OutboxPollInterval,
		MaxAttempts:    cfg.OutboxMaxAttempts,
		InitialBackoff: cfg.OutboxInitialBackoff,
		MaxBackoff:     cfg.OutboxMaxBackoff,
		Lease:          cfg.OutboxLease,
		Logger:         logger,
	}
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 4
	}
	if o.BatchSize < 1 {
		o.BatchSize = 20
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 5
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 30 * time.Second
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	if o.Lease <= 0 {
		o.Lease = 10 * time.Minute
	}
	if o.JobTimeout <= 0 || o.JobTimeout > o.Lease {
		o.JobTimeout = o.Lease
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Worker claims due jobs and runs them on an ants pool. It wakes on Notify and on a cron sweep.
type Worker struct {
	store  JobStore
	handle Handler
	opts   Options
	logger zerolog.Logger

	pool *ants.Pool
	cron *cron.Cron
	wake chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func New(store JobStore, handle Handler, opts Options) (*Worker, error) {
	if store == nil {
		return nil, fmt.Errorf("job store is nil")
	}
	if handle == nil {
		return nil, fmt.Errorf("job handler is nil")
	}
	opts = opts.withDefaults()

	pool, err := ants.NewPool(opts.Workers, ants.WithPanicHandler(func(p interface{}) {
		opts.Logger.Error().Interface("panic", p).Msg("translation job panicked")
	}))
	if err != nil {
		return nil, fmt.Errorf("create outbox worker pool: %w", err)
	}

	return &Worker{
		store:  store,
		handle: handle,
		opts:   opts,
		logger: opts.Logger,
		pool:   pool,
		wake:   make(chan struct{}, 1),
	}, nil
}

// Notify asks the worker to look for due jobs. It never blocks; wake-ups coalesce.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start runs the dispatch loop until ctx is done or Stop is called. Jobs left over from a previous run
// are picked up immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return fmt.Errorf("outbox worker already started")
	}

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.opts.PollInterval), w.Notify); err != nil {
		return fmt.Errorf("schedule outbox sweep: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopped = make(chan struct{})
	w.cron.Start()

	go w.loop(loopCtx)
	w.Notify()

	w.logger.Info().
		Int("workers", w.opts.Workers).
		Int("batch_size", w.opts.BatchSize).
		Dur("poll_interval", w.opts.PollInterval).
		Msg("outbox worker started")
	return nil
}

// Stop ends the dispatch loop and waits for running jobs, or until ctx is done.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, stopped := w.cancel, w.stopped
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cronCtx := w.cron.Stop()
		cancel()
		select {
		case <-stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
		<-cronCtx.Done()
	}

	if err := w.pool.ReleaseTimeout(stopTimeout(ctx)); err != nil && !errors.Is(err, ants.ErrPoolClosed) {
		return fmt.Errorf("release outbox worker pool: %w", err)
	}
	w.logger.Info().Msg("outbox worker stopped")
	return nil
}

func stopTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			return remaining
		}
		return time.Millisecond
	}
	return 30 * time.Second
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}

		// Drain until a batch comes back short; anything newer arrives with another Notify.
		for ctx.Err() == nil {
			claimed, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("outbox dispatch failed")
				break
			}
			if claimed < w.opts.BatchSize {
				break
			}
		}
	}
}

// RunOnce claims one batch of due jobs, runs them on the pool and waits for the batch to finish.
// It returns the number of jobs claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.store.ClaimDueJobs(ctx, w.opts.Now(), w.opts.Lease, w.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim due translation jobs: %w", err)
	}
	jobsClaimed.Add(float64(len(jobs)))

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		submitErr := w.pool.Submit(func() {
			defer wg.Done()
			poolRunningWorkers.Set(float64(w.pool.Running()))
			w.process(ctx, job)
		})
		if submitErr != nil {
			wg.Done()
			w.logger.Error().Err(submitErr).Int64("job_id", job.JobID).Msg("submit translation job")
		}
	}
	wg.Wait()
	poolRunningWorkers.Set(float64(w.pool.Running()))
	return len(jobs), nil
}

func (w *Worker) process(ctx context.Context, job db.TranslationJob) {
	attempts := job.Attempts + 1
	logger := w.logger.With().
		Int64("job_id", job.JobID).
		Str("entity", job.Ref().String()).
		Int("attempt", attempts).
		Logger()

	jobCtx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	err := w.handle(jobCtx, job)
	cancel()

	// Outcomes are recorded even while shutting down, otherwise the job waits for its lease to expire.
	writeCtx := context.WithoutCancel(ctx)

	if err == nil {
		if markErr := w.store.CompleteJob(writeCtx, job.JobID, attempts); markErr != nil {
			logger.Error().Err(markErr).Msg("mark translation job done")
			return
		}
		jobsProcessedTotal.WithLabelValues("done").Inc()
		logger.Debug().Msg("translation job done")
		return
	}

	cause := err.Error()
	if ctx.Err() != nil {
		// Interrupted by shutdown: hand the job back untouched so the next run starts it at once.
		if markErr := w.store.RetryJob(writeCtx, job.JobID, job.Attempts, w.opts.Now(), cause); markErr != nil {
			logger.Error().Err(markErr).Msg("release interrupted translation job")
			return
		}
		jobsProcessedTotal.WithLabelValues("released").Inc()
		logger.Info().Err(err).Msg("translation job interrupted by shutdown, released")
		return
	}
	if IsPermanent(err) || attempts >= w.opts.MaxAttempts {
		if markErr := w.store.KillJob(writeCtx, job.JobID, attempts, cause); markErr != nil {
			logger.Error().Err(markErr).Msg("mark translation job dead")
			return
		}
		jobsProcessedTotal.WithLabelValues("dead").Inc()
		logger.Warn().Err(err).Bool("permanent", IsPermanent(err)).Msg("translation job marked as dead")
		return
	}

	delay := Backoff(attempts, w.opts.InitialBackoff, w.opts.MaxBackoff)
	next := w.opts.Now().Add(delay)
	if markErr := w.store.RetryJob(writeCtx, job.JobID, attempts, next, cause); markErr != nil {
		logger.Error().Err(markErr).Msg("reschedule translation job")
		return
	}
	jobsProcessedTotal.WithLabelValues("retry").Inc()
	logger.Warn().Err(err).Dur("retry_in", delay).Msg("translation job failed, retrying")
}
