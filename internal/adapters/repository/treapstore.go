// Package repository defines the results and standings store interface and errors.
package repository

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/fairshare/internal/domain/model"
	"github.com/okian/fairshare/internal/domain/types"
	"github.com/okian/fairshare/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then composite team/member key ASC (deterministic).
// The BST comparator treats "less" as "ranks earlier", so an in-order
// traversal walks the standings from best to worst.

// Defaults for snapshot publication and background metrics.
const (
	defaultSnapshotInterval = 1 * time.Second
	defaultTopCacheSize     = 500
	metricsUpdateInterval   = 5 * time.Second
)

// scoreScale controls fixed-point scaling from float64. Scores live in
// [0, cap] so 12 decimal places fit comfortably inside int64.
const scoreScale = 1_000_000_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * scoreScale // +-Inf saturates via the clamps below
	if scaled > float64(math.MaxInt64) {
		return scoreFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return scoreFP(math.MinInt64)
	}
	return scoreFP(math.Round(scaled))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

// record stores the fixed-point score plus identity for one standings row.
type record struct {
	score    scoreFP
	teamID   string
	memberID string
	capped   bool
}

// Snapshot is an immutable view of the standings published periodically.
type Snapshot struct {
	// Rank and score in O(1) for reads.
	RankByKey  map[string]int
	ScoreByKey map[string]float64

	// Fast Top-K cache, sorted descending.
	TopCache []types.Standing

	BuiltAt time.Time
}

// treap node
type node struct {
	key   string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aKey) should appear before (bScore, bKey)
// in the standings (higher scores rank earlier).
func less(aScore scoreFP, aKey string, bScore scoreFP, bKey string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aKey < bKey // tie-breaker by key asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, key string, score scoreFP, prio uint64) *node {
	if n == nil {
		return &node{key: key, score: score, prio: prio, size: 1}
	}
	if less(score, key, n.score, n.key) {
		n.left = insert(n.left, key, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, key string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	if score == n.score && key == n.key {
		// Merge children by rotating the higher priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, key, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, key, score)
		}
	} else if less(score, key, n.score, n.key) {
		n.left = deleteNode(n.left, key, score)
	} else {
		n.right = deleteNode(n.right, key, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit rows in rank order (highest scores first).
// In-order traversal already yields (score desc, key asc), so no re-sort
// is needed; ranks are assigned by the caller.
func collectTopN(n *node, limit int, byKey map[string]record, out *[]types.Standing) {
	if n == nil || len(*out) >= limit {
		return
	}

	collectTopN(n.left, limit, byKey, out)

	if len(*out) < limit {
		if rec, ok := byKey[n.key]; ok {
			*out = append(*out, types.Standing{
				TeamID:   rec.teamID,
				MemberID: rec.memberID,
				Score:    toFloat(rec.score),
				Capped:   rec.capped,
			})
		}
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, byKey, out)
	}
}

// collectAll appends every row in rank order (highest scores first).
func collectAll(n *node, byKey map[string]record, out *[]types.Standing) {
	if n == nil {
		return
	}
	collectAll(n.left, byKey, out)
	if rec, ok := byKey[n.key]; ok {
		*out = append(*out, types.Standing{
			TeamID:   rec.teamID,
			MemberID: rec.memberID,
			Score:    toFloat(rec.score),
			Capped:   rec.capped,
		})
	}
	collectAll(n.right, byKey, out)
}

// assignRanksWithTies assigns ranks over rows already sorted best-first.
// Members with the same score share a rank; the next distinct score takes
// the next consecutive rank number.
func assignRanksWithTies(rows []types.Standing) {
	if len(rows) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(rows); i++ {
		rows[i].Rank = currentRank

		sameScoreCount := 1
		for j := i + 1; j < len(rows) && rows[j].Score == rows[i].Score; j++ {
			rows[j].Rank = currentRank
			sameScoreCount++
		}

		currentRank++
		i += sameScoreCount - 1
	}
}

// TreapStore keeps the latest result per team plus a treap index over all
// member standings rows.
type TreapStore struct {
	mu       sync.RWMutex
	root     *node
	byKey    map[string]record
	teamKeys map[string][]string
	latest   map[string]model.TeamResult

	snapshotInterval time.Duration
	topCacheSize     int
	prng             *rand.Rand // guarded by mu; treap priorities only

	// snapshot is an atomic pointer to the latest published Snapshot.
	snapshot atomic.Pointer[Snapshot]

	// Periodic snapshot management
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		snapshotInterval: defaultSnapshotInterval,
		topCacheSize:     defaultTopCacheSize,
		byKey:            make(map[string]record),
		teamKeys:         make(map[string][]string),
		latest:           make(map[string]model.TeamResult),
		prng:             rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // treap priorities need speed, not crypto randomness
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startPeriodicSnapshots(ctx)
	s.startMetricsUpdater(ctx)

	return s
}

// startPeriodicSnapshots starts a background goroutine that publishes
// snapshots at the configured interval.
func (s *TreapStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

// publishSnapshot rebuilds and publishes a new snapshot.
func (s *TreapStore) publishSnapshot() {
	start := time.Now()
	s.mu.RLock()
	s.publishSnapshotInternal()
	s.mu.RUnlock()

	metrics.RecordStandingsSnapshot(float64(time.Since(start).Milliseconds()))
}

// publishSnapshotInternal rebuilds the snapshot; the caller holds the lock.
func (s *TreapStore) publishSnapshotInternal() {
	topCache := make([]types.Standing, 0, s.topCacheSize)
	collectTopN(s.root, s.topCacheSize, s.byKey, &topCache)

	all := make([]types.Standing, 0, len(s.byKey))
	collectAll(s.root, s.byKey, &all)
	assignRanksWithTies(all)

	rankByKey := make(map[string]int, len(all))
	scoreByKey := make(map[string]float64, len(all))
	for _, row := range all {
		rankByKey[row.Key()] = row.Rank
		scoreByKey[row.Key()] = row.Score
	}

	for i := range topCache {
		if rank, ok := rankByKey[topCache[i].Key()]; ok {
			topCache[i].Rank = rank
		}
	}

	s.snapshot.Store(&Snapshot{
		RankByKey:  rankByKey,
		ScoreByKey: scoreByKey,
		TopCache:   topCache,
		BuiltAt:    time.Now(),
	})
}

// SnapshotView returns the latest published snapshot, or nil when none has
// been built yet.
func (s *TreapStore) SnapshotView() *Snapshot {
	return s.snapshot.Load()
}

// Close gracefully shuts down the background goroutines.
func (s *TreapStore) Close() error {
	select {
	case <-s.stopChan:
		// already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Apply implements Store.Apply with O(m log n) expected time for a team
// of m members. The previous result set for the team, if any, is removed
// first so a recomputation fully supersedes it.
func (s *TreapStore) Apply(ctx context.Context, result model.TeamResult) error {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	if oldKeys, ok := s.teamKeys[result.TeamID]; ok {
		for _, k := range oldKeys {
			if old, exists := s.byKey[k]; exists {
				s.root = deleteNode(s.root, k, old.score)
				delete(s.byKey, k)
			}
		}
	}

	keys := make([]string, 0, len(result.Scores))
	for _, ms := range result.Scores {
		k := types.Key(result.TeamID, ms.MemberID)
		fp := toFixedPoint(ms.Score)
		s.byKey[k] = record{score: fp, teamID: result.TeamID, memberID: ms.MemberID, capped: ms.Capped}
		s.root = insert(s.root, k, fp, s.prng.Uint64())
		keys = append(keys, k)
	}
	s.teamKeys[result.TeamID] = keys
	s.latest[result.TeamID] = result

	rows := len(s.byKey)
	teams := len(s.latest)
	s.mu.Unlock()

	metrics.RecordStandingsUpdate()
	metrics.UpdateStandingsSize(rows)
	metrics.UpdateTotalTeams(teams)

	// Snapshots are published periodically, not after every update.
	return nil
}

// Latest implements Store.Latest.
func (s *TreapStore) Latest(ctx context.Context, teamID string) (model.TeamResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.latest[teamID]
	if !ok {
		return model.TeamResult{}, ErrTeamNotFound
	}
	return result, nil
}

// RankOf returns the current rank and score for one member of one team.
func (s *TreapStore) RankOf(ctx context.Context, teamID, memberID string) (types.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	k := types.Key(teamID, memberID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byKey[k]; !ok {
		metrics.RecordStandingsError()
		return types.Standing{}, ErrNotFound
	}

	// Ranks depend on every row above, so collect the whole ordering.
	all := make([]types.Standing, 0, len(s.byKey))
	collectAll(s.root, s.byKey, &all)
	assignRanksWithTies(all)

	for _, row := range all {
		if row.TeamID == teamID && row.MemberID == memberID {
			return row, nil
		}
	}

	return types.Standing{}, ErrNotFound
}

// TopN returns the top N standings ordered by score desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]types.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordStandingsError()
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Standing, 0, n)
	collectTopN(s.root, n, s.byKey, &out)

	// Ranks over a best-first prefix only depend on the prefix itself.
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the total number of standings rows.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// TeamCount returns the number of teams with a stored result.
func (s *TreapStore) TeamCount(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.latest)
}

// startMetricsUpdater starts a background goroutine that keeps the store
// gauges fresh even between writes.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *TreapStore) updateMetrics() {
	s.mu.RLock()
	rows := len(s.byKey)
	teams := len(s.latest)
	s.mu.RUnlock()

	metrics.UpdateStandingsSize(rows)
	metrics.UpdateTotalTeams(teams)
}
