package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/okian/fairshare/internal/domain/model"
)

// floatEqual compares two float64 values with a small tolerance for the
// fixed-point round trip.
func floatEqual(a, b float64) bool {
	const tolerance = 1e-9
	return math.Abs(a-b) < tolerance
}

func resultFor(teamID string, scores ...model.MemberScore) model.TeamResult {
	return model.TeamResult{
		TeamID:       teamID,
		SubmissionID: teamID + "-sub",
		RawScore:     100,
		Scores:       scores,
		ComputedAt:   time.Now(),
	}
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	// Empty store
	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}
	if teams := store.TeamCount(ctx); teams != 0 {
		t.Errorf("expected team count 0, got %d", teams)
	}

	// One team, two members
	err := store.Apply(ctx, resultFor("alpha",
		model.MemberScore{MemberID: "m1", Score: 100},
		model.MemberScore{MemberID: "m2", Score: 100},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if count := store.Count(ctx); count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
	if teams := store.TeamCount(ctx); teams != 1 {
		t.Errorf("expected team count 1, got %d", teams)
	}

	// Rank query
	row, err := store.RankOf(ctx, "alpha", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Rank != 1 {
		t.Errorf("expected rank 1, got %d", row.Rank)
	}
	if row.Score != 100.0 {
		t.Errorf("expected score 100.0, got %f", row.Score)
	}
	if row.TeamID != "alpha" || row.MemberID != "m1" {
		t.Errorf("expected alpha/m1, got %s/%s", row.TeamID, row.MemberID)
	}

	// TopN
	rows, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestTreapStore_ReplaceOnRecompute(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	err := store.Apply(ctx, resultFor("alpha",
		model.MemberScore{MemberID: "m1", Score: 100},
		model.MemberScore{MemberID: "m2", Score: 100},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Recompute with different scores, one capped and one lower. Lower
	// scores replace higher ones; there is no best-only semantics here.
	err = store.Apply(ctx, resultFor("alpha",
		model.MemberScore{MemberID: "m1", Score: 120, Capped: true},
		model.MemberScore{MemberID: "m2", Score: 78},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row, err := store.RankOf(ctx, "alpha", "m2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Score != 78.0 {
		t.Errorf("expected replaced score 78.0, got %f", row.Score)
	}

	row, err = store.RankOf(ctx, "alpha", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Score != 120.0 {
		t.Errorf("expected score 120.0, got %f", row.Score)
	}
	if !row.Capped {
		t.Error("expected capped flag to be carried into the standings")
	}

	// Count stays at two rows, one team.
	if count := store.Count(ctx); count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
	if teams := store.TeamCount(ctx); teams != 1 {
		t.Errorf("expected team count 1, got %d", teams)
	}
}

func TestTreapStore_MemberSetShrinks(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	err := store.Apply(ctx, resultFor("alpha",
		model.MemberScore{MemberID: "m1", Score: 90},
		model.MemberScore{MemberID: "m2", Score: 95},
		model.MemberScore{MemberID: "m3", Score: 115},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The new roster no longer includes m3; its row must disappear.
	err = store.Apply(ctx, resultFor("alpha",
		model.MemberScore{MemberID: "m1", Score: 110},
		model.MemberScore{MemberID: "m2", Score: 90},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if count := store.Count(ctx); count != 2 {
		t.Errorf("expected count 2 after roster shrink, got %d", count)
	}

	_, err = store.RankOf(ctx, "alpha", "m3")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for removed member, got %v", err)
	}
}

func TestTreapStore_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	teams := []model.TeamResult{
		resultFor("alpha",
			model.MemberScore{MemberID: "m1", Score: 85},
			model.MemberScore{MemberID: "m2", Score: 115},
		),
		resultFor("beta",
			model.MemberScore{MemberID: "m1", Score: 95},
			model.MemberScore{MemberID: "m2", Score: 105},
		),
		resultFor("gamma",
			model.MemberScore{MemberID: "m1", Score: 75},
		),
	}

	for _, result := range teams {
		if err := store.Apply(ctx, result); err != nil {
			t.Fatalf("unexpected error applying %s: %v", result.TeamID, err)
		}
	}

	rows, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}

	// Descending order and sequential ranks
	for i := 0; i < len(rows)-1; i++ {
		if rows[i].Score < rows[i+1].Score {
			t.Errorf("rows not in descending order: %f < %f", rows[i].Score, rows[i+1].Score)
		}
	}
	for i, row := range rows {
		if row.Rank != i+1 {
			t.Errorf("row %d: expected rank %d, got %d", i, i+1, row.Rank)
		}
	}

	expectedOrder := []string{"alpha/m2", "beta/m2", "beta/m1", "alpha/m1", "gamma/m1"}
	for i, expectedKey := range expectedOrder {
		if rows[i].Key() != expectedKey {
			t.Errorf("position %d: expected %s, got %s", i, expectedKey, rows[i].Key())
		}
	}
}

func TestTreapStore_TieBreaking(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	// Same score across teams, plus one lower score.
	err := store.Apply(ctx, resultFor("beta",
		model.MemberScore{MemberID: "m1", Score: 100},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = store.Apply(ctx, resultFor("alpha",
		model.MemberScore{MemberID: "m1", Score: 100},
		model.MemberScore{MemberID: "m2", Score: 90},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	// Tied scores order by composite key asc and share a rank.
	if rows[0].Key() != "alpha/m1" {
		t.Errorf("expected alpha/m1 first, got %s", rows[0].Key())
	}
	if rows[1].Key() != "beta/m1" {
		t.Errorf("expected beta/m1 second, got %s", rows[1].Key())
	}
	if rows[0].Rank != 1 || rows[1].Rank != 1 {
		t.Errorf("expected tied rows to share rank 1, got %d and %d", rows[0].Rank, rows[1].Rank)
	}
	if rows[2].Rank != 2 {
		t.Errorf("expected next distinct score to take rank 2, got %d", rows[2].Rank)
	}

	// Rank queries agree with TopN.
	row, err := store.RankOf(ctx, "beta", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Rank != 1 {
		t.Errorf("expected rank 1 for tied member, got %d", row.Rank)
	}
}

func TestTreapStore_SameMemberIDAcrossTeams(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	// Member IDs are only unique within a team.
	err := store.Apply(ctx, resultFor("alpha", model.MemberScore{MemberID: "lead", Score: 110}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = store.Apply(ctx, resultFor("beta", model.MemberScore{MemberID: "lead", Score: 95}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if count := store.Count(ctx); count != 2 {
		t.Errorf("expected 2 rows for same member ID on two teams, got %d", count)
	}

	alpha, err := store.RankOf(ctx, "alpha", "lead")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	beta, err := store.RankOf(ctx, "beta", "lead")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alpha.Score == beta.Score {
		t.Error("expected distinct rows for the two teams")
	}
	if alpha.Rank != 1 || beta.Rank != 2 {
		t.Errorf("expected ranks 1 and 2, got %d and %d", alpha.Rank, beta.Rank)
	}
}

func TestTreapStore_Latest(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	_, err := store.Latest(ctx, "alpha")
	if !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("expected ErrTeamNotFound, got %v", err)
	}

	first := resultFor("alpha", model.MemberScore{MemberID: "m1", Score: 100})
	first.SubmissionID = "sub-1"
	if err := store.Apply(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := resultFor("alpha", model.MemberScore{MemberID: "m1", Score: 90})
	second.SubmissionID = "sub-2"
	if err := store.Apply(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Latest(ctx, "alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SubmissionID != "sub-2" {
		t.Errorf("expected latest submission sub-2, got %s", got.SubmissionID)
	}
	if len(got.Scores) != 1 || got.Scores[0].Score != 90.0 {
		t.Errorf("expected latest scores to win, got %+v", got.Scores)
	}
}

func TestTreapStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	// Invalid TopN limits
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit for 0, got %v", err)
	}
	if _, err := store.TopN(ctx, -1); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit for -1, got %v", err)
	}

	// Unknown member
	if _, err := store.RankOf(ctx, "nope", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// TopN on an empty store returns no rows, not an error.
	rows, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("TopN on empty store failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected 0 rows from empty store, got %d", len(rows))
	}

	// Fractional scores survive the fixed-point round trip.
	err = store.Apply(ctx, resultFor("alpha",
		model.MemberScore{MemberID: "m1", Score: 68.83333333333333},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row, err := store.RankOf(ctx, "alpha", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEqual(row.Score, 68.83333333333333) {
		t.Errorf("expected score ~68.8333, got %.15f", row.Score)
	}
}

func TestTreapStore_ConcurrentApply(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	numGoroutines := 10
	teamsPerGoroutine := 50

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*teamsPerGoroutine)

	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < teamsPerGoroutine; j++ {
				teamID := fmt.Sprintf("team_%d_%d", id, j)
				result := resultFor(teamID,
					model.MemberScore{MemberID: "m1", Score: float64(50 + j)},
					model.MemberScore{MemberID: "m2", Score: float64(60 + j)},
				)
				if err := store.Apply(ctx, result); err != nil {
					errs <- fmt.Errorf("goroutine %d apply %d: %w", id, j, err)
				}
			}
		}(g)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent apply error: %v", err)
	}

	expectedTeams := numGoroutines * teamsPerGoroutine
	if teams := store.TeamCount(ctx); teams != expectedTeams {
		t.Errorf("expected team count %d, got %d", expectedTeams, teams)
	}
	if count := store.Count(ctx); count != expectedTeams*2 {
		t.Errorf("expected count %d, got %d", expectedTeams*2, count)
	}

	rows, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 10 {
		t.Errorf("expected 10 rows, got %d", len(rows))
	}
	for i := 0; i < len(rows)-1; i++ {
		if rows[i].Score < rows[i+1].Score {
			t.Errorf("rows not in descending order: %f < %f", rows[i].Score, rows[i+1].Score)
		}
	}
}

func TestTreapStore_RankCorrectnessUnderLoad(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	numTeams := 300
	scores := make(map[string]float64, numTeams)

	for i := 0; i < numTeams; i++ {
		teamID := fmt.Sprintf("team_%d", i)
		score := rand.Float64() * 120.0
		scores[teamID] = score
		err := store.Apply(ctx, resultFor(teamID, model.MemberScore{MemberID: "solo", Score: score}))
		if err != nil {
			t.Fatalf("failed to apply team %d: %v", i, err)
		}
	}

	for teamID, want := range scores {
		row, err := store.RankOf(ctx, teamID, "solo")
		if err != nil {
			t.Fatalf("failed to get rank for %s: %v", teamID, err)
		}
		if row.Rank < 1 || row.Rank > numTeams {
			t.Errorf("team %s has invalid rank %d", teamID, row.Rank)
		}
		if !floatEqual(row.Score, want) {
			t.Errorf("team %s score mismatch: expected %f, got %f", teamID, want, row.Score)
		}
	}

	for _, limit := range []int{1, 10, 100, 300, 500} {
		rows, err := store.TopN(ctx, limit)
		if err != nil {
			t.Fatalf("TopN(%d) failed: %v", limit, err)
		}

		expectedLen := limit
		if limit > numTeams {
			expectedLen = numTeams
		}
		if len(rows) != expectedLen {
			t.Errorf("TopN(%d) returned %d rows, expected %d", limit, len(rows), expectedLen)
		}

		for i := 1; i < len(rows); i++ {
			if rows[i].Score > rows[i-1].Score {
				t.Errorf("TopN(%d) scores not in descending order: %f > %f", limit, rows[i].Score, rows[i-1].Score)
			}
		}
	}
}

func TestTreapStore_PeriodicSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithSnapshotInterval(10*time.Millisecond), WithTopCacheSize(2))
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	err := store.Apply(ctx, resultFor("alpha",
		model.MemberScore{MemberID: "m1", Score: 100},
		model.MemberScore{MemberID: "m2", Score: 110},
		model.MemberScore{MemberID: "m3", Score: 90},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Wait for at least one snapshot cycle.
	time.Sleep(50 * time.Millisecond)

	snapshot := store.SnapshotView()
	if snapshot == nil {
		t.Fatal("expected snapshot to be published")
	}

	if len(snapshot.RankByKey) != 3 {
		t.Errorf("expected 3 ranked keys, got %d", len(snapshot.RankByKey))
	}
	if len(snapshot.ScoreByKey) != 3 {
		t.Errorf("expected 3 scored keys, got %d", len(snapshot.ScoreByKey))
	}
	if len(snapshot.TopCache) != 2 {
		t.Errorf("expected top cache honoring its size 2, got %d", len(snapshot.TopCache))
	}
	if snapshot.BuiltAt.IsZero() {
		t.Error("expected snapshot build time to be set")
	}
}

func TestTreapStore_SnapshotConsistency(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithSnapshotInterval(5*time.Millisecond))
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}()

	results := []model.TeamResult{
		resultFor("alpha", model.MemberScore{MemberID: "m1", Score: 100}),
		resultFor("beta", model.MemberScore{MemberID: "m1", Score: 120}),
		resultFor("gamma", model.MemberScore{MemberID: "m1", Score: 110}),
	}
	for _, result := range results {
		if err := store.Apply(ctx, result); err != nil {
			t.Fatalf("failed to apply %s: %v", result.TeamID, err)
		}
	}

	time.Sleep(25 * time.Millisecond)

	snapshot := store.SnapshotView()
	if snapshot == nil {
		t.Fatal("expected snapshot to exist")
	}

	for _, result := range results {
		live, err := store.RankOf(ctx, result.TeamID, "m1")
		if err != nil {
			t.Fatalf("failed to get live rank for %s: %v", result.TeamID, err)
		}

		k := live.Key()
		if snapshot.RankByKey[k] != live.Rank {
			t.Errorf("%s rank mismatch: snapshot=%d, live=%d", k, snapshot.RankByKey[k], live.Rank)
		}
		if snapshot.ScoreByKey[k] != live.Score {
			t.Errorf("%s score mismatch: snapshot=%f, live=%f", k, snapshot.ScoreByKey[k], live.Score)
		}
	}

	for i := 1; i < len(snapshot.TopCache); i++ {
		if snapshot.TopCache[i].Score > snapshot.TopCache[i-1].Score {
			t.Errorf("TopCache not in descending order: %f > %f",
				snapshot.TopCache[i].Score, snapshot.TopCache[i-1].Score)
		}
	}
}

func TestTreapStore_CloseBehavior(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)

	err := store.Apply(ctx, resultFor("alpha", model.MemberScore{MemberID: "m1", Score: 100}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	// Operations still work after close; only the background goroutines stop.
	err = store.Apply(ctx, resultFor("beta", model.MemberScore{MemberID: "m1", Score: 90}))
	if err != nil {
		t.Fatalf("Apply failed after close: %v", err)
	}

	row, err := store.RankOf(ctx, "alpha", "m1")
	if err != nil {
		t.Fatalf("RankOf failed after close: %v", err)
	}
	if row.Score != 100.0 {
		t.Errorf("expected score 100.0, got %f", row.Score)
	}

	// Multiple closes should not panic.
	if err := store.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}

func BenchmarkTreapStore_Apply(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	numTeams := 10_000
	for i := 0; i < numTeams; i++ {
		teamID := fmt.Sprintf("bench_team_%d", i)
		_ = store.Apply(ctx, resultFor(teamID,
			model.MemberScore{MemberID: "m1", Score: rand.Float64() * 120},
			model.MemberScore{MemberID: "m2", Score: rand.Float64() * 120},
			model.MemberScore{MemberID: "m3", Score: rand.Float64() * 120},
		))
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			teamID := fmt.Sprintf("bench_team_%d", i%numTeams)
			_ = store.Apply(ctx, resultFor(teamID,
				model.MemberScore{MemberID: "m1", Score: rand.Float64() * 120},
				model.MemberScore{MemberID: "m2", Score: rand.Float64() * 120},
				model.MemberScore{MemberID: "m3", Score: rand.Float64() * 120},
			))
			i++
		}
	})
}

func BenchmarkTreapStore_MixedLoad(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	numTeams := 10_000
	for i := 0; i < numTeams; i++ {
		teamID := fmt.Sprintf("bench_team_%d", i)
		_ = store.Apply(ctx, resultFor(teamID,
			model.MemberScore{MemberID: "m1", Score: rand.Float64() * 120},
			model.MemberScore{MemberID: "m2", Score: rand.Float64() * 120},
		))
	}

	b.ResetTimer()
	b.ReportAllocs()

	// 40% writes, 30% TopN, 20% latest lookups, 10% count
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			teamID := fmt.Sprintf("bench_team_%d", i%numTeams)
			switch {
			case i%10 < 4:
				_ = store.Apply(ctx, resultFor(teamID,
					model.MemberScore{MemberID: "m1", Score: rand.Float64() * 120},
					model.MemberScore{MemberID: "m2", Score: rand.Float64() * 120},
				))
			case i%10 < 7:
				_, _ = store.TopN(ctx, 10+(i%90))
			case i%10 < 9:
				_, _ = store.Latest(ctx, teamID)
			default:
				store.Count(ctx)
			}
			i++
		}
	})
}
