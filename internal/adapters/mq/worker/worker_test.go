package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	worker "github.com/okian/fairshare/internal/adapters/mq/worker"
	model "github.com/okian/fairshare/internal/domain/model"
	logging "github.com/okian/fairshare/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	subChan    chan worker.Submission
	closeError error
	closeOnce  sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		subChan: make(chan worker.Submission, 10),
	}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan worker.Submission {
	return mq.subChan
}

func (mq *mockQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.subChan) })
	return mq.closeError
}

func (mq *mockQueue) addSubmission(sub worker.Submission) { //nolint:gocritic // hugeParam: Submission must be passed by value for channel semantics
	mq.subChan <- sub
}

type mockScorer struct {
	scores map[string][]model.MemberScore
	errors map[string]error
	mu     sync.RWMutex
}

func newMockScorer() *mockScorer {
	return &mockScorer{
		scores: make(map[string][]model.MemberScore),
		errors: make(map[string]error),
	}
}

func (ms *mockScorer) Score(ctx context.Context, team model.Team) ([]model.MemberScore, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if err, exists := ms.errors[team.ID]; exists {
		return nil, err
	}
	if scores, exists := ms.scores[team.ID]; exists {
		return scores, nil
	}

	// Default scoring: every member receives the raw score.
	out := make([]model.MemberScore, 0, len(team.Members))
	for _, m := range team.Members {
		out = append(out, model.MemberScore{MemberID: m.ID, Score: team.RawScore})
	}
	return out, nil
}

func (ms *mockScorer) setScores(teamID string, scores []model.MemberScore) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.scores[teamID] = scores
}

func (ms *mockScorer) setError(teamID string, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.errors[teamID] = err
}

type mockApplier struct {
	applied map[string]model.TeamResult
	errors  map[string]error
	mu      sync.RWMutex
}

func newMockApplier() *mockApplier {
	return &mockApplier{
		applied: make(map[string]model.TeamResult),
		errors:  make(map[string]error),
	}
}

func (ma *mockApplier) Apply(ctx context.Context, result model.TeamResult) error {
	ma.mu.Lock()
	defer ma.mu.Unlock()

	if err, exists := ma.errors[result.TeamID]; exists {
		return err
	}

	ma.applied[result.TeamID] = result
	return nil
}

func (ma *mockApplier) setError(teamID string, err error) {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.errors[teamID] = err
}

func (ma *mockApplier) getApplied(teamID string) (model.TeamResult, bool) {
	ma.mu.RLock()
	defer ma.mu.RUnlock()
	result, exists := ma.applied[teamID]
	return result, exists
}

type mockArchiver struct {
	records map[string]model.TeamResult
	err     error
	mu      sync.RWMutex
}

func newMockArchiver() *mockArchiver {
	return &mockArchiver{
		records: make(map[string]model.TeamResult),
	}
}

func (mar *mockArchiver) Record(ctx context.Context, result model.TeamResult) error {
	mar.mu.Lock()
	defer mar.mu.Unlock()

	if mar.err != nil {
		return mar.err
	}

	mar.records[result.SubmissionID] = result
	return nil
}

func (mar *mockArchiver) setError(err error) {
	mar.mu.Lock()
	defer mar.mu.Unlock()
	mar.err = err
}

func (mar *mockArchiver) hasRecord(submissionID string) bool {
	mar.mu.RLock()
	defer mar.mu.RUnlock()
	_, exists := mar.records[submissionID]
	return exists
}

type mockTracker struct {
	unrecorded map[string]bool
	mu         sync.Mutex
}

func newMockTracker() *mockTracker {
	return &mockTracker{unrecorded: make(map[string]bool)}
}

func (mt *mockTracker) Unrecord(ctx context.Context, id string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.unrecorded[id] = true
}

func (mt *mockTracker) wasUnrecorded(id string) bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.unrecorded[id]
}

// submissionFor builds a submission that passes validation.
func submissionFor(id, teamID string) worker.Submission {
	return worker.Submission{
		SubmissionID: id,
		Team: model.Team{
			ID:       teamID,
			RawScore: 100,
			Members: []model.Member{
				{ID: "m1", Weight: 0.5},
				{ID: "m2", Weight: 0.5},
			},
		},
		ReceivedAt: time.Now(),
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		// Initialize logging for tests
		_ = logging.Init()

		q := newMockQueue()
		scorer := newMockScorer()
		applier := newMockApplier()
		archiver := newMockArchiver()
		tracker := newMockTracker()

		convey.Convey("When creating a worker with default options", func() {
			w := worker.NewInMemoryWorker(q, scorer, applier)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When creating a worker with custom options", func() {
			w := worker.NewInMemoryWorker(
				q, scorer, applier,
				worker.WithName("test-worker"),
				worker.WithArchiver(archiver),
				worker.WithTracker(tracker),
			)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(
				q, scorer, applier,
				worker.WithArchiver(archiver),
				worker.WithTracker(tracker),
			)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go w.Run(ctx)

			// Give worker time to start
			time.Sleep(10 * time.Millisecond)

			convey.Convey("And when processing a valid submission", func() {
				scorer.setScores("team-1", []model.MemberScore{
					{MemberID: "m1", Score: 120, Capped: true},
					{MemberID: "m2", Score: 78},
				})

				q.addSubmission(submissionFor("sub-1", "team-1"))

				// Give worker time to process
				time.Sleep(50 * time.Millisecond)

				convey.Convey("Then it should publish the result set", func() {
					result, applied := applier.getApplied("team-1")
					convey.So(applied, convey.ShouldBeTrue)
					convey.So(result.SubmissionID, convey.ShouldEqual, "sub-1")
					convey.So(result.Scores, convey.ShouldHaveLength, 2)
					convey.So(result.Scores[0].Score, convey.ShouldEqual, 120)
					convey.So(result.ComputedAt.IsZero(), convey.ShouldBeFalse)
				})

				convey.Convey("Then it should archive the result", func() {
					convey.So(archiver.hasRecord("sub-1"), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And when the submission fails validation", func() {
				bad := submissionFor("sub-2", "team-2")
				bad.Team.Members[0].Weight = 0.9 // weights sum to 1.4

				q.addSubmission(bad)

				time.Sleep(50 * time.Millisecond)

				convey.Convey("Then it should not publish anything", func() {
					_, applied := applier.getApplied("team-2")
					convey.So(applied, convey.ShouldBeFalse)
					convey.So(archiver.hasRecord("sub-2"), convey.ShouldBeFalse)
				})
			})

			convey.Convey("And when scoring fails", func() {
				scorer.setError("team-3", errors.New("scoring error"))

				q.addSubmission(submissionFor("sub-3", "team-3"))

				time.Sleep(50 * time.Millisecond)

				convey.Convey("Then it should not publish anything", func() {
					_, applied := applier.getApplied("team-3")
					convey.So(applied, convey.ShouldBeFalse)
				})
			})

			convey.Convey("And when the standings update fails", func() {
				applier.setError("team-4", errors.New("update error"))

				q.addSubmission(submissionFor("sub-4", "team-4"))

				time.Sleep(50 * time.Millisecond)

				convey.Convey("Then it should release the submission ID for retry", func() {
					convey.So(tracker.wasUnrecorded("sub-4"), convey.ShouldBeTrue)
				})

				convey.Convey("Then it should not archive the result", func() {
					convey.So(archiver.hasRecord("sub-4"), convey.ShouldBeFalse)
				})
			})

			convey.Convey("And when the archive write fails", func() {
				archiver.setError(errors.New("disk full"))

				q.addSubmission(submissionFor("sub-5", "team-5"))

				time.Sleep(50 * time.Millisecond)

				convey.Convey("Then the standings still receive the result", func() {
					_, applied := applier.getApplied("team-5")
					convey.So(applied, convey.ShouldBeTrue)
				})

				convey.Convey("Then the submission ID stays spent", func() {
					convey.So(tracker.wasUnrecorded("sub-5"), convey.ShouldBeFalse)
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()

				err := w.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, scorer, applier)
			ctx, cancel := context.WithCancel(context.Background())

			go w.Run(ctx)

			time.Sleep(10 * time.Millisecond)

			cancel()

			time.Sleep(50 * time.Millisecond)

			convey.Convey("Then a subsequent shutdown returns immediately", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()

				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a new worker Pool", t, func() {
		// Initialize logging for tests
		_ = logging.Init()

		q := newMockQueue()
		scorer := newMockScorer()
		applier := newMockApplier()

		convey.Convey("When creating a worker pool with default count", func() {
			pool := worker.NewPool(0, q, scorer, applier)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(pool, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When creating a worker pool with custom count", func() {
			pool := worker.NewPool(3, q, scorer, applier)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(pool, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When starting a worker pool", func() {
			pool := worker.NewPool(2, q, scorer, applier)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pool.Start(ctx)

			// Give workers time to start
			time.Sleep(20 * time.Millisecond)

			convey.Convey("And when processing multiple submissions", func() {
				for i := 1; i <= 3; i++ {
					q.addSubmission(submissionFor(
						fmt.Sprintf("sub-%d", i),
						fmt.Sprintf("team-%d", i),
					))
				}

				// Give workers time to process
				time.Sleep(100 * time.Millisecond)

				convey.Convey("Then all submissions should be processed", func() {
					for i := 1; i <= 3; i++ {
						_, applied := applier.getApplied(fmt.Sprintf("team-%d", i))
						convey.So(applied, convey.ShouldBeTrue)
					}
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
				defer shutdownCancel()

				err := pool.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When stopping a worker pool", func() {
			pool := worker.NewPool(2, q, scorer, applier)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pool.Start(ctx)

			time.Sleep(20 * time.Millisecond)

			pool.Stop()

			convey.Convey("Then submissions enqueued afterwards stay unprocessed", func() {
				q.addSubmission(submissionFor("sub-late", "team-late"))
				time.Sleep(50 * time.Millisecond)

				_, applied := applier.getApplied("team-late")
				convey.So(applied, convey.ShouldBeFalse)
			})
		})
	})
}

func TestWorkerOptions(t *testing.T) {
	convey.Convey("Given worker options", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		scorer := newMockScorer()
		applier := newMockApplier()

		convey.Convey("When using WithName", func() {
			w := worker.NewInMemoryWorker(q, scorer, applier, worker.WithName("custom"))

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When passing nil collaborators", func() {
			w := worker.NewInMemoryWorker(
				q, scorer, applier,
				worker.WithArchiver(nil),
				worker.WithTracker(nil),
				worker.WithLogger(nil),
			)

			convey.Convey("Then the options are ignored", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestWorkerConcurrency(t *testing.T) {
	convey.Convey("Given a worker pool with multiple workers", t, func() {
		// Initialize logging for tests
		_ = logging.Init()

		q := newMockQueue()
		scorer := newMockScorer()
		applier := newMockApplier()

		pool := worker.NewPool(4, q, scorer, applier)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		pool.Start(ctx)

		time.Sleep(20 * time.Millisecond)

		convey.Convey("When processing many concurrent submissions", func() {
			const submissionCount = 100
			var wg sync.WaitGroup

			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func(producerID int) {
					defer wg.Done()
					for j := 0; j < submissionCount/5; j++ {
						q.addSubmission(submissionFor(
							fmt.Sprintf("sub-%d-%d", producerID, j),
							fmt.Sprintf("team-%d-%d", producerID, j),
						))
					}
				}(i)
			}

			wg.Wait()

			// Give workers time to process
			time.Sleep(200 * time.Millisecond)

			convey.Convey("Then all submissions should be processed", func() {
				processedCount := 0
				for i := 0; i < 5; i++ {
					for j := 0; j < submissionCount/5; j++ {
						teamID := fmt.Sprintf("team-%d-%d", i, j)
						if _, applied := applier.getApplied(teamID); applied {
							processedCount++
						}
					}
				}
				convey.So(processedCount, convey.ShouldEqual, submissionCount)
			})
		})
	})
}
