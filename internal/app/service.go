// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/okian/fairshare/internal/adapters/archive"
	subqueue "github.com/okian/fairshare/internal/adapters/mq/queue"
	workerpool "github.com/okian/fairshare/internal/adapters/mq/worker"
	repository "github.com/okian/fairshare/internal/adapters/repository"
	"github.com/okian/fairshare/internal/domain/dedupe"
	"github.com/okian/fairshare/internal/domain/model"
	"github.com/okian/fairshare/internal/domain/scoring"
	"github.com/okian/fairshare/internal/domain/types"
	"github.com/okian/fairshare/pkg/logger"
	"github.com/okian/fairshare/pkg/metrics"
)

// Defaults mirror internal/config so a bare New() behaves like an
// unconfigured deployment.
const (
	defaultQueueSize  = 100_000
	defaultDedupeSize = 500_000
)

// Service wires the scoring pipeline together and implements the API
// dependencies: dedupe tracking, typed enqueue, and the read surface over
// the standings store and the archive.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	tracker dedupe.Tracker
	queue   subqueue.Queue
	scorer  scoring.Scorer
	archive archive.Archive
	pool    *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	scoreCap       float64
	zeroFloor      bool
	archiveEnabled bool
	archiveDir     string

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the submission ID tracker.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithScoreCap sets the per-member score ceiling.
func WithScoreCap(cap float64) Option {
	return func(s *Service) {
		if cap > 0 {
			s.scoreCap = cap
		}
	}
}

// WithZeroFloor clamps negative member scores to zero when enabled.
func WithZeroFloor(enabled bool) Option {
	return func(s *Service) {
		s.zeroFloor = enabled
	}
}

// WithArchive toggles the SQLite result archive and sets its directory.
func WithArchive(enabled bool, dir string) Option {
	return func(s *Service) {
		s.archiveEnabled = enabled
		if dir != "" {
			s.archiveDir = dir
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 4,
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		scoreCap:       scoring.DefaultScoreCap,
		archiveEnabled: true,
		archiveDir:     "data",
		logger:         nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting scoring service...")

	// Initialize components
	s.store = repository.NewTreapStore(ctx)
	s.tracker = dedupe.NewTracker(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = subqueue.NewInMemoryQueue(
		subqueue.WithCapacity(s.queueSize),
	)

	scorerOpts := []scoring.Option{scoring.WithScoreCap(s.scoreCap)}
	if s.zeroFloor {
		scorerOpts = append(scorerOpts, scoring.WithZeroFloor())
	}
	s.scorer = scoring.NewWeightedScorer(scorerOpts...)

	// Workers release a submission ID on apply failures so clients can
	// retry; the archiver rides along only when enabled.
	poolOpts := []workerpool.Option{workerpool.WithTracker(s.tracker)}
	if s.archiveEnabled {
		arc, err := archive.New(ctx, s.archiveDir)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		s.archive = arc
		poolOpts = append(poolOpts, workerpool.WithArchiver(arc))
	}

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.scorer, s.store, poolOpts...)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("archive", s.archiveEnabled),
	)

	return nil
}

// Shutdown drains the pipeline and releases resources: the queue closes,
// workers finish what is in flight, then the store and archive close.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping scoring service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Error(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	s.closeStores(ctx)

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
	return nil
}

// Stop shuts the service down without waiting for queued submissions.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "halting scoring service...")

	if s.pool != nil {
		s.pool.Stop()
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	s.closeStores(ctx)

	s.started = false
	s.logger.Info(ctx, "scoring service halted")
}

func (s *Service) closeStores(ctx context.Context) {
	if s.store != nil {
		if closer, ok := s.store.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				s.logger.Error(ctx, "error closing store", logger.Error(err))
			}
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			s.logger.Error(ctx, "error closing archive", logger.Error(err))
		}
	}
}

// SeenAndRecord atomically checks if a submission id was seen and records
// it if not. Returns true if the id was already seen. This is the single
// dedupe point of the intake path; nothing downstream re-checks.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.tracker.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordSubmissionDuplicate()
	}
	return seen
}

// Unrecord removes a submission ID from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.tracker.Unrecord(ctx, id)
}

// Size returns the current number of tracked submission IDs.
func (s *Service) Size() int64 {
	if s.tracker == nil {
		return 0
	}
	return s.tracker.Size()
}

// Enqueue submits a validated team for asynchronous scoring. The caller
// has already screened duplicates; a false return means backpressure.
func (s *Service) Enqueue(ctx context.Context, sub model.Submission) bool {
	ok := s.queue.Enqueue(ctx, sub)
	if !ok {
		s.logger.Warn(ctx, "queue full, submission rejected",
			logger.String("submissionID", sub.SubmissionID),
			logger.String("teamID", sub.Team.ID),
		)
	}
	return ok
}

// Latest returns the most recent computed result for a team.
func (s *Service) Latest(ctx context.Context, teamID string) (model.TeamResult, error) {
	return s.store.Latest(ctx, teamID)
}

// History returns a team's archived results, newest first. When the
// archive is disabled it reports archive.ErrDisabled.
func (s *Service) History(ctx context.Context, teamID string, limit int) ([]archive.Result, error) {
	if s.archive == nil {
		return nil, archive.ErrDisabled
	}
	return s.archive.History(ctx, teamID, limit)
}

// TopN returns the top N standings rows.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Standing, error) {
	return s.store.TopN(ctx, n)
}

// RankOf returns the standing of one member of one team.
func (s *Service) RankOf(ctx context.Context, teamID, memberID string) (types.Standing, error) {
	return s.store.RankOf(ctx, teamID, memberID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		standings := s.store.Count(ctx)
		teams := s.store.TeamCount(ctx)

		stats["queueLength"] = queueLen
		stats["standingsSize"] = standings
		stats["teamCount"] = teams
		stats["dedupeTracked"] = s.tracker.Size()

		// Push the same readings to the gauges
		metrics.UpdateQueueDepth(queueLen)
		metrics.UpdateStandingsSize(standings)
		metrics.UpdateTotalTeams(teams)

		if s.archive != nil {
			stats["archiveRows"] = s.archive.Rows()
		}
	}

	return stats
}
