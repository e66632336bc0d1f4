package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/fairshare/internal/domain/model"
)

func submissionFor(id, teamID string, raw float64) model.Submission {
	return model.Submission{
		SubmissionID: id,
		Team: model.Team{
			ID:       teamID,
			RawScore: raw,
			Members: []model.Member{
				{ID: "a", Weight: 0.5},
				{ID: "b", Weight: 0.5},
			},
		},
		ReceivedAt: time.Now(),
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Test empty queue
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	// Test enqueue
	if !q.Enqueue(ctx, submissionFor("sub1", "team1", 100)) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Test dequeue
	subChan := q.Dequeue(ctx)
	sub := <-subChan
	if sub.SubmissionID != "sub1" {
		t.Errorf("expected sub1, got %v", sub.SubmissionID)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, submissionFor("sub1", "team1", 100)) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, submissionFor("sub2", "team2", 200)) {
		t.Error("expected enqueue to succeed")
	}

	// Try to enqueue when full
	if q.Enqueue(ctx, submissionFor("sub3", "team3", 300)) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_InvalidCapacityOption(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(-5))

	if q.capacity != defaultCapacity {
		t.Errorf("expected default capacity %d, got %d", defaultCapacity, q.capacity)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	numGoroutines := 10
	numSubmissions := 100

	// Start producer goroutines
	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numSubmissions; j++ {
				sub := submissionFor(
					fmt.Sprintf("sub%d_%d", id, j),
					fmt.Sprintf("team%d", id),
					float64(j),
				)
				for !q.Enqueue(ctx, sub) {
					time.Sleep(time.Millisecond)
				}
			}
			done <- true
		}(i)
	}

	// Start consumer goroutines
	consumed := make(chan string, numGoroutines*numSubmissions)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			subChan := q.Dequeue(ctx)
			for sub := range subChan {
				consumed <- sub.SubmissionID
			}
		}()
	}

	// Wait for producers to finish
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	// Wait a bit for consumers to process
	time.Sleep(100 * time.Millisecond)

	// Check final queue length
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, submissionFor("sub1", "team1", 100)) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, submissionFor("sub2", "team2", 200)) {
		t.Error("expected enqueue to succeed")
	}

	// Check initial state
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	// Close the queue
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}

	// Check closed state
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}

	// Try to enqueue after closing (should fail)
	if q.Enqueue(ctx, submissionFor("sub1", "team1", 100)) {
		t.Error("expected enqueue to fail after closing")
	}

	// Dequeue should drain the remaining submissions, then close
	subChan := q.Dequeue(ctx)
	drained := 0
	timeout := time.After(500 * time.Millisecond)
	for {
		select {
		case _, ok := <-subChan:
			if !ok {
				if drained != 2 {
					t.Errorf("expected to drain 2 submissions, got %d", drained)
				}
				// Close again should not error
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained++
		case <-timeout:
			t.Error("expected dequeue channel to close within timeout")
			return
		}
	}
}
