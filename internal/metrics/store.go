// Package metrics persists per-turn routing outcomes to SQLite so
// operators can watch rollout health without scraping logs.
package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// TurnRecord is one handled turn.
type TurnRecord struct {
	TurnID         string
	UserID         string
	ConversationID string
	Intent         string
	MatchedBy      string
	ErrorCode      string
	Deferred       bool
	Blocked        bool
	LatencyMs      int64
	CreatedAt      time.Time
}

// DailyStat is one day's aggregate.
type DailyStat struct {
	Date     string
	Turns    int64
	Failures int64
	Deferred int64
	Blocked  int64
	AvgMs    float64
}

// IntentStat is the per-intent share over a window.
type IntentStat struct {
	Intent string
	Count  int64
}

// Store writes turn records to SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the metrics database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating metrics directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening metrics db: %w", err)
	}
	return NewStore(db)
}

// NewStore wraps an existing database handle, initializing the schema.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		matched_by TEXT NOT NULL,
		error_code TEXT NOT NULL DEFAULT '',
		deferred INTEGER NOT NULL DEFAULT 0,
		blocked INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	CREATE INDEX IF NOT EXISTS idx_turns_user ON turns(user_id);

	CREATE TABLE IF NOT EXISTS turns_daily (
		date TEXT PRIMARY KEY,
		turns INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		deferred INTEGER NOT NULL DEFAULT 0,
		blocked INTEGER NOT NULL DEFAULT 0,
		total_latency_ms INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing metrics schema: %w", err)
	}
	return nil
}

// RecordTurn persists one handled turn and folds it into the daily
// aggregate in the same transaction.
func (s *Store) RecordTurn(rec TurnRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning metrics tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO turns (turn_id, user_id, conversation_id, intent, matched_by,
			error_code, deferred, blocked, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TurnID, rec.UserID, rec.ConversationID, rec.Intent, rec.MatchedBy,
		rec.ErrorCode, boolToInt(rec.Deferred), boolToInt(rec.Blocked),
		rec.LatencyMs, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting turn record: %w", err)
	}

	failed := 0
	if rec.ErrorCode != "" {
		failed = 1
	}
	_, err = tx.Exec(`
		INSERT INTO turns_daily (date, turns, failures, deferred, blocked, total_latency_ms)
		VALUES (?, 1, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			turns = turns + 1,
			failures = failures + excluded.failures,
			deferred = deferred + excluded.deferred,
			blocked = blocked + excluded.blocked,
			total_latency_ms = total_latency_ms + excluded.total_latency_ms`,
		rec.CreatedAt.Format("2006-01-02"), failed,
		boolToInt(rec.Deferred), boolToInt(rec.Blocked), rec.LatencyMs)
	if err != nil {
		return fmt.Errorf("updating daily aggregate: %w", err)
	}

	return tx.Commit()
}

// GetDailyStats returns aggregates for the last n days, newest first.
func (s *Store) GetDailyStats(n int) ([]DailyStat, error) {
	rows, err := s.db.Query(`
		SELECT date, turns, failures, deferred, blocked, total_latency_ms
		FROM turns_daily ORDER BY date DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var st DailyStat
		var totalMs int64
		if err := rows.Scan(&st.Date, &st.Turns, &st.Failures, &st.Deferred, &st.Blocked, &totalMs); err != nil {
			return nil, fmt.Errorf("scanning daily stat: %w", err)
		}
		if st.Turns > 0 {
			st.AvgMs = float64(totalMs) / float64(st.Turns)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// GetIntentStats returns the intent distribution over the last n days.
func (s *Store) GetIntentStats(n int) ([]IntentStat, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -n)
	rows, err := s.db.Query(`
		SELECT intent, COUNT(*) FROM turns
		WHERE created_at >= ? GROUP BY intent ORDER BY COUNT(*) DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying intent stats: %w", err)
	}
	defer rows.Close()

	var stats []IntentStat
	for rows.Next() {
		var st IntentStat
		if err := rows.Scan(&st.Intent, &st.Count); err != nil {
			return nil, fmt.Errorf("scanning intent stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// GetRecentTurns returns the newest limit turn records.
func (s *Store) GetRecentTurns(limit int) ([]TurnRecord, error) {
	rows, err := s.db.Query(`
		SELECT turn_id, user_id, conversation_id, intent, matched_by,
			error_code, deferred, blocked, latency_ms, created_at
		FROM turns ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent turns: %w", err)
	}
	defer rows.Close()

	var recs []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		var deferred, blocked int
		if err := rows.Scan(&rec.TurnID, &rec.UserID, &rec.ConversationID,
			&rec.Intent, &rec.MatchedBy, &rec.ErrorCode,
			&deferred, &blocked, &rec.LatencyMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn record: %w", err)
		}
		rec.Deferred = deferred != 0
		rec.Blocked = blocked != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Summary returns lifetime totals.
func (s *Store) Summary() (map[string]int64, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN error_code != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(deferred), 0),
			COALESCE(SUM(blocked), 0)
		FROM turns`)

	var turns, failures, deferred, blocked int64
	if err := row.Scan(&turns, &failures, &deferred, &blocked); err != nil {
		return nil, fmt.Errorf("querying summary: %w", err)
	}
	return map[string]int64{
		"turns":    turns,
		"failures": failures,
		"deferred": deferred,
		"blocked":  blocked,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
