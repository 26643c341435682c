// Package store persists cross-platform test results in sqlite and serves
// read-back queries for the results API.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

const cacheSize = 256

const schema = `
CREATE TABLE IF NOT EXISTS test_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	test_id     TEXT NOT NULL,
	platform    TEXT NOT NULL,
	success     INTEGER NOT NULL,
	summary     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_results_test ON test_results(test_id);
CREATE INDEX IF NOT EXISTS idx_results_platform ON test_results(platform);
CREATE INDEX IF NOT EXISTS idx_results_run ON test_results(run_id);
`

// Store wraps the sqlite handle and a small read cache for hot lookups.
type Store struct {
	db    *sql.DB
	cache *lru.Cache
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records one platform's summary for a run. The full summary is stored
// as a JSON document alongside the indexed columns.
func (s *Store) Save(runID string, summary types.TestSummary) error {
	doc, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "marshal summary")
	}
	success := 0
	if summary.Success {
		success = 1
	}
	_, err = s.db.Exec(
		`INSERT INTO test_results (run_id, test_id, platform, success, summary) VALUES (?, ?, ?, ?, ?)`,
		runID, summary.TestID, summary.Platform, success, string(doc),
	)
	if err != nil {
		return errors.Wrap(err, "insert result")
	}
	s.cache.Remove(cacheKey(summary.TestID, summary.Platform))
	return nil
}

// Get returns the most recent summary for a test on a platform.
func (s *Store) Get(testID, platform string) (*types.TestSummary, error) {
	key := cacheKey(testID, platform)
	if v, ok := s.cache.Get(key); ok {
		summary := v.(types.TestSummary)
		return &summary, nil
	}
	row := s.db.QueryRow(
		`SELECT summary FROM test_results WHERE test_id = ? AND platform = ? ORDER BY id DESC LIMIT 1`,
		testID, platform,
	)
	summary, err := scanSummary(row)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		s.cache.Add(key, *summary)
	}
	return summary, nil
}

// GetAll returns the most recent summary per platform for a test, keyed by
// platform. Platforms with no recorded result are simply absent.
func (s *Store) GetAll(testID string) (map[string]types.TestSummary, error) {
	rows, err := s.db.Query(
		`SELECT summary FROM test_results
		 WHERE id IN (SELECT MAX(id) FROM test_results WHERE test_id = ? GROUP BY platform)`,
		testID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query results")
	}
	defer rows.Close()

	out := make(map[string]types.TestSummary)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var summary types.TestSummary
		if err := json.Unmarshal([]byte(doc), &summary); err != nil {
			return nil, errors.Wrap(err, "decode summary")
		}
		out[summary.Platform] = summary
	}
	return out, rows.Err()
}

// List returns recent summaries, newest first. An empty platform matches all
// platforms; limit caps the result size (default 50).
func (s *Store) List(platform string, limit int) ([]types.TestSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if platform == "" {
		rows, err = s.db.Query(`SELECT summary FROM test_results ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(`SELECT summary FROM test_results WHERE platform = ? ORDER BY id DESC LIMIT ?`, platform, limit)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query results")
	}
	defer rows.Close()

	var out []types.TestSummary
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var summary types.TestSummary
		if err := json.Unmarshal([]byte(doc), &summary); err != nil {
			return nil, errors.Wrap(err, "decode summary")
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// PlatformStats aggregates outcomes for one platform.
type PlatformStats struct {
	Platform  string    `json:"platform"`
	TotalRuns int       `json:"total_runs"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	PassRate  float64   `json:"pass_rate"`
	LastRun   time.Time `json:"last_run"`
}

// Statistics returns aggregate pass/fail counts per platform across all
// recorded runs.
func (s *Store) Statistics() (map[string]PlatformStats, error) {
	rows, err := s.db.Query(
		`SELECT platform, COUNT(*), SUM(success), MAX(created_at) FROM test_results GROUP BY platform`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query statistics")
	}
	defer rows.Close()

	out := make(map[string]PlatformStats)
	for rows.Next() {
		var (
			stats  PlatformStats
			passed sql.NullInt64
			last   sql.NullTime
		)
		if err := rows.Scan(&stats.Platform, &stats.TotalRuns, &passed, &last); err != nil {
			return nil, err
		}
		stats.Passed = int(passed.Int64)
		stats.Failed = stats.TotalRuns - stats.Passed
		if stats.TotalRuns > 0 {
			stats.PassRate = float64(stats.Passed) / float64(stats.TotalRuns)
		}
		if last.Valid {
			stats.LastRun = last.Time
		}
		out[stats.Platform] = stats
	}
	return out, rows.Err()
}

func scanSummary(row *sql.Row) (*types.TestSummary, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "scan result")
	}
	var summary types.TestSummary
	if err := json.Unmarshal([]byte(doc), &summary); err != nil {
		return nil, errors.Wrap(err, "decode summary")
	}
	return &summary, nil
}

func cacheKey(testID, platform string) string {
	return testID + "/" + platform
}
