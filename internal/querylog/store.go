// Package querylog records answered user queries in SQLite for later
// analysis. Logging is best-effort: a failed insert is logged, never
// surfaced to the user.
package querylog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ragbot/internal/domain"
)

// Store writes interaction records to a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp   DATETIME NOT NULL,
		channel     TEXT NOT NULL,
		user_id     TEXT,
		query       TEXT NOT NULL,
		answer      TEXT,
		sources     TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_time ON interactions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_interactions_channel ON interactions(channel, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Log records one answered query. Failures are swallowed after a log line.
func (s *Store) Log(ctx context.Context, channel, userID, query string, answer domain.Answer) {
	urls := make([]string, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		urls = append(urls, src.URL)
	}
	sources, err := json.Marshal(urls)
	if err != nil {
		sources = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interactions (timestamp, channel, user_id, query, answer, sources)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), channel, userID, query, answer.Answer, string(sources))
	if err != nil {
		s.logger.Warn("interaction log insert failed", "error", err)
	}
}

// Interaction is one logged query/answer pair.
type Interaction struct {
	ID        int64
	Timestamp time.Time
	Channel   string
	UserID    string
	Query     string
	Answer    string
	Sources   []string
}

// Recent returns the latest interactions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, channel, COALESCE(user_id, ''), query, COALESCE(answer, ''), COALESCE(sources, '[]')
		 FROM interactions ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var it Interaction
		var sources string
		if err := rows.Scan(&it.ID, &it.Timestamp, &it.Channel, &it.UserID, &it.Query, &it.Answer, &sources); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &it.Sources); err != nil {
			it.Sources = nil
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
