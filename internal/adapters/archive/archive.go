// Package archive persists computed results for history queries.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"github.com/okian/fairshare/internal/domain/model"
	"github.com/okian/fairshare/pkg/logger"
	"github.com/okian/fairshare/pkg/metrics"
)

// Pool and paging defaults.
const (
	defaultFileName     = "fairshare.db"
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
	defaultConnLifetime = 5 * time.Minute
	defaultHistoryLimit = 50
)

// Result is one stored computation together with the weights that produced it.
type Result struct {
	ID           string        `json:"id"`
	TeamID       string        `json:"team_id"`
	SubmissionID string        `json:"submission_id"`
	RawScore     float64       `json:"raw_score"`
	ComputedAt   time.Time     `json:"computed_at"`
	Members      []MemberScore `json:"members"`
}

// MemberScore is one member's archived weight and score.
type MemberScore struct {
	MemberID string  `json:"member_id"`
	Weight   float64 `json:"weight"`
	Score    float64 `json:"score"`
	Capped   bool    `json:"capped"`
}

// Archive persists results and serves a team's scoring history.
type Archive interface {
	// Record stores one computation, weights included.
	Record(ctx context.Context, result model.TeamResult) error

	// History returns a team's stored results, newest first. A limit below 1
	// falls back to the default page size. Unknown teams yield no rows.
	History(ctx context.Context, teamID string, limit int) ([]Result, error)

	// Rows reports the number of stored results.
	Rows() int64

	Close() error
}

// SQLiteArchive implements Archive on an embedded SQLite database with WAL
// journaling and prepared statements.
type SQLiteArchive struct {
	db *sql.DB

	fileName     string
	maxOpenConns int

	insertResult   *sql.Stmt
	insertMember   *sql.Stmt
	historyResults *sql.Stmt
	historyMembers *sql.Stmt

	rows   atomic.Int64
	closed atomic.Bool

	log logger.Logger
}

// New opens (or creates) the archive database under dir and runs migrations.
func New(ctx context.Context, dir string, opts ...Option) (*SQLiteArchive, error) {
	a := &SQLiteArchive{
		fileName:     defaultFileName,
		maxOpenConns: defaultMaxOpenConns,
		log:          logger.Get().Named("archive"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(a)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	dbPath := filepath.Join(dir, a.fileName)
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping archive database: %w", err)
	}

	db.SetMaxOpenConns(a.maxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnLifetime)
	a.db = db

	if err := a.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run archive migrations: %w", err)
	}

	if err := a.initPreparedStatements(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare archive statements: %w", err)
	}

	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count archived results: %w", err)
	}
	a.rows.Store(count)
	metrics.UpdateArchiveRows(count)

	a.log.Info(ctx, "archive opened",
		logger.String("path", dbPath),
		logger.Int64("results", count),
	)

	return a, nil
}

// migrate creates the necessary tables.
func (a *SQLiteArchive) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			submission_id TEXT NOT NULL,
			raw_score REAL NOT NULL,
			member_count INTEGER NOT NULL,
			computed_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS member_scores (
			result_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			member_id TEXT NOT NULL,
			weight REAL NOT NULL,
			score REAL NOT NULL,
			capped BOOLEAN NOT NULL,
			FOREIGN KEY (result_id) REFERENCES results(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_results_team ON results(team_id, computed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_member_scores_result ON member_scores(result_id, position)`,
	}

	for _, query := range queries {
		if _, err := a.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements prepares the hot-path statements once at open.
func (a *SQLiteArchive) initPreparedStatements(ctx context.Context) error {
	var err error

	a.insertResult, err = a.db.PrepareContext(ctx, `INSERT INTO results
		(id, team_id, submission_id, raw_score, member_count, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("insert_result: %w", err)
	}

	a.insertMember, err = a.db.PrepareContext(ctx, `INSERT INTO member_scores
		(result_id, position, member_id, weight, score, capped)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("insert_member: %w", err)
	}

	a.historyResults, err = a.db.PrepareContext(ctx, `SELECT id, team_id, submission_id, raw_score, computed_at
		FROM results WHERE team_id = ? ORDER BY computed_at DESC, id LIMIT ?`)
	if err != nil {
		return fmt.Errorf("history_results: %w", err)
	}

	a.historyMembers, err = a.db.PrepareContext(ctx, `SELECT member_id, weight, score, capped
		FROM member_scores WHERE result_id = ? ORDER BY position`)
	if err != nil {
		return fmt.Errorf("history_members: %w", err)
	}

	return nil
}

// Record implements Archive.Record inside a single transaction.
func (a *SQLiteArchive) Record(ctx context.Context, result model.TeamResult) error {
	start := time.Now()

	if a.closed.Load() {
		metrics.RecordArchiveWriteError()
		return ErrClosed
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordArchiveWriteError()
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after a successful commit

	resultID := uuid.NewString()
	_, err = tx.StmtContext(ctx, a.insertResult).ExecContext(ctx,
		resultID, result.TeamID, result.SubmissionID, result.RawScore, len(result.Scores), result.ComputedAt)
	if err != nil {
		metrics.RecordArchiveWriteError()
		return fmt.Errorf("failed to insert result for team %s: %w", result.TeamID, err)
	}

	for i, ms := range result.Scores {
		_, err = tx.StmtContext(ctx, a.insertMember).ExecContext(ctx,
			resultID, i, ms.MemberID, ms.Weight, ms.Score, ms.Capped)
		if err != nil {
			metrics.RecordArchiveWriteError()
			return fmt.Errorf("failed to insert member score %s: %w", ms.MemberID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordArchiveWriteError()
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	total := a.rows.Add(1)
	metrics.RecordArchiveWrite(float64(time.Since(start).Milliseconds()))
	metrics.UpdateArchiveRows(total)
	return nil
}

// History implements Archive.History.
func (a *SQLiteArchive) History(ctx context.Context, teamID string, limit int) ([]Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordArchiveQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if a.closed.Load() {
		return nil, ErrClosed
	}

	if limit < 1 {
		limit = defaultHistoryLimit
	}

	rows, err := a.historyResults.QueryContext(ctx, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for team %s: %w", teamID, err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]Result, 0, limit)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.TeamID, &r.SubmissionID, &r.RawScore, &r.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result rows: %w", err)
	}

	for i := range results {
		members, err := a.membersOf(ctx, results[i].ID)
		if err != nil {
			return nil, err
		}
		results[i].Members = members
	}

	return results, nil
}

func (a *SQLiteArchive) membersOf(ctx context.Context, resultID string) ([]MemberScore, error) {
	rows, err := a.historyMembers.QueryContext(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query member scores for result %s: %w", resultID, err)
	}
	defer func() { _ = rows.Close() }()

	var members []MemberScore
	for rows.Next() {
		var m MemberScore
		if err := rows.Scan(&m.MemberID, &m.Weight, &m.Score, &m.Capped); err != nil {
			return nil, fmt.Errorf("failed to scan member score row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read member score rows: %w", err)
	}

	return members, nil
}

// Rows implements Archive.Rows.
func (a *SQLiteArchive) Rows() int64 {
	return a.rows.Load()
}

// Close closes the prepared statements and the database.
func (a *SQLiteArchive) Close() error {
	if a.closed.Swap(true) {
		return nil
	}

	for _, stmt := range []*sql.Stmt{a.insertResult, a.insertMember, a.historyResults, a.historyMembers} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			a.log.Warn(context.Background(), "failed to close prepared statement", logger.Error(err))
		}
	}

	return a.db.Close()
}
