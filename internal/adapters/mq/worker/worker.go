// Package worker defines the pipeline consumers that score submissions
// and publish results.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/fairshare/internal/domain/model"
	"github.com/okian/fairshare/internal/domain/scoring"
	"github.com/okian/fairshare/pkg/logger"
	"github.com/okian/fairshare/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	defaultName             = "worker"
	metricsUpdateInterval   = 5 * time.Second
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Submission abstracts what workers read off the queue.
type Submission = model.Submission

// Applier publishes a computed result set to the standings store.
type Applier interface {
	Apply(ctx context.Context, result model.TeamResult) error
}

// Scorer computes member scores for a team.
type Scorer interface {
	Score(ctx context.Context, team model.Team) ([]model.MemberScore, error)
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Submission
}

// Archiver persists results for history queries. Archive writes are
// best-effort; a failed write never fails the submission.
type Archiver interface {
	Record(ctx context.Context, result model.TeamResult) error
}

// Tracker releases a submission ID so the client can retry after an
// infrastructure failure.
type Tracker interface {
	Unrecord(ctx context.Context, id string)
}

// Worker processes submissions and publishes results using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining submissions before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing submissions.
type InMemoryWorker struct {
	queue    Queue
	scorer   Scorer
	applier  Applier
	archiver Archiver
	tracker  Tracker
	name     string

	// busy counts in-flight submissions across the pool.
	busy *atomic.Int64

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, scorer Scorer, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		scorer:   scorer,
		applier:  applier,
		name:     defaultName,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	submissions := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case sub, ok := <-submissions:
			if !ok {
				// Channel closed, the queue has drained.
				return
			}

			if err := w.processSubmission(ctx, sub); err != nil {
				w.logger.Error(ctx, "error processing submission", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	// Wait for the worker to finish or the context to time out.
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processSubmission scores one team and publishes the result set.
func (w *InMemoryWorker) processSubmission(ctx context.Context, sub Submission) error { //nolint:gocritic // hugeParam: Submission must be passed by value for channel semantics
	if w.busy != nil {
		w.busy.Add(1)
		defer w.busy.Add(-1)
	}

	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	// Submissions are validated before enqueue; re-check in case the queue
	// ever carries input from a less careful producer.
	if err := scoring.Validate(sub.Team); err != nil {
		metrics.RecordSubmissionInvalid()
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "submission failed validation",
			logger.String("submission_id", sub.SubmissionID),
			logger.String("team_id", sub.Team.ID),
			logger.Error(err),
		)
		return fmt.Errorf("submission %s failed validation: %w", sub.SubmissionID, err)
	}

	scoreStart := time.Now()
	scores, err := w.scorer.Score(ctx, sub.Team)
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Milliseconds()))

	if err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "scoring failed for submission",
			logger.String("submission_id", sub.SubmissionID),
			logger.String("team_id", sub.Team.ID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to score submission %s: %w", sub.SubmissionID, err)
	}

	result := model.TeamResult{
		TeamID:       sub.Team.ID,
		SubmissionID: sub.SubmissionID,
		RawScore:     sub.Team.RawScore,
		Scores:       scores,
		ComputedAt:   time.Now(),
	}

	if err := w.applier.Apply(ctx, result); err != nil {
		metrics.RecordWorkerError()
		if w.tracker != nil {
			// Release the ID so the client can retry the submission.
			w.tracker.Unrecord(ctx, sub.SubmissionID)
		}
		w.logger.Error(ctx, "standings update failed for submission",
			logger.String("submission_id", sub.SubmissionID),
			logger.Error(err),
		)
		return fmt.Errorf("standings update failed: %w", err)
	}

	if w.archiver != nil {
		if err := w.archiver.Record(ctx, result); err != nil {
			// Standings already hold the result; history loses one row.
			w.logger.Warn(ctx, "archive write failed for submission",
				logger.String("submission_id", sub.SubmissionID),
				logger.Error(err),
			)
		}
	}

	metrics.RecordSubmissionProcessed()
	metrics.RecordMembersScored(len(scores))
	for i := range scores {
		if scores[i].Capped {
			metrics.RecordCappedScore()
		}
	}

	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	// busy counts in-flight submissions across all workers.
	busy atomic.Int64

	// Shutdown control
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool. A count below 1 sizes the pool from
// the machine's CPU count.
func NewPool(workerCount int, queue Queue, scorer Scorer, applier Applier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		stopChan: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := make([]Option, 0, len(opts)+2)
		workerOpts = append(workerOpts, WithName("worker-"+strconv.Itoa(i)), withBusyCounter(&pool.busy))
		workerOpts = append(workerOpts, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, scorer, applier, workerOpts...)
	}

	// Initialize worker metrics
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}

	p.startMetricsUpdater(ctx)
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.updateMetrics()
			}
		}
	}()
}

// updateMetrics updates worker-related metrics.
func (p *Pool) updateMetrics() {
	metrics.UpdateWorkerCount(len(p.workers))
	metrics.UpdateWorkerActiveCount(int(p.busy.Load()))
}

// Stop stops all workers without waiting for the queue to drain.
func (p *Pool) Stop() {
	for _, worker := range p.workers {
		worker.stopOnce.Do(func() { close(worker.shutdown) })
	}

	// Wait for all workers to finish
	for _, worker := range p.workers {
		select {
		case <-worker.done:
		case <-time.After(workerShutdownTimeout):
		}
	}

	p.stopUpdater()
}

// Shutdown closes the queue, then waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			worker.stopOnce.Do(func() { close(worker.shutdown) })
		}
	}

	p.stopUpdater()
	metrics.UpdateWorkerActiveCount(0)
	return nil
}

func (p *Pool) stopUpdater() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}
