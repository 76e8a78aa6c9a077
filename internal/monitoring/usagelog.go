// Package monitoring - usagelog.go persists per-request generation records.
//
// DESIGN: SQLite-backed append-only log (modernc.org/sqlite, pure Go) with
// WAL mode for concurrent readers. One row per generation: model, finish
// reason, token usage, latency. The adapter core never depends on this; the
// facade writes records best-effort and a write failure only logs.
package monitoring

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const usageTimeFormat = time.RFC3339Nano

// GenerationRecord is one logged generation request.
type GenerationRecord struct {
	RequestID        string
	Model            string
	Streamed         bool
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
	CreatedAt        time.Time
}

// UsageLog records generation requests in a SQLite database.
type UsageLog struct {
	db *sql.DB
}

// OpenUsageLog opens (or creates) the usage database at dbPath, enables WAL
// mode, and creates the schema if missing.
func OpenUsageLog(dbPath string) (*UsageLog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS generations (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id        TEXT NOT NULL,
			model             TEXT NOT NULL,
			streamed          INTEGER NOT NULL,
			finish_reason     TEXT NOT NULL,
			prompt_tokens     INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			total_tokens      INTEGER NOT NULL,
			duration_ms       INTEGER NOT NULL,
			created_at        TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &UsageLog{db: db}, nil
}

// Record persists one generation record.
func (u *UsageLog) Record(rec GenerationRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := u.db.Exec(`
		INSERT INTO generations (request_id, model, streamed, finish_reason,
			prompt_tokens, completion_tokens, total_tokens, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID,
		rec.Model,
		boolToInt(rec.Streamed),
		rec.FinishReason,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		rec.Duration.Milliseconds(),
		createdAt.Format(usageTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// Recent returns up to limit records, most recent first.
func (u *UsageLog) Recent(limit int) ([]GenerationRecord, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := u.db.Query(`
		SELECT request_id, model, streamed, finish_reason,
			prompt_tokens, completion_tokens, total_tokens, duration_ms, created_at
		FROM generations
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var recs []GenerationRecord
	for rows.Next() {
		var rec GenerationRecord
		var streamed int
		var durationMs int64
		var createdStr string
		if err := rows.Scan(
			&rec.RequestID, &rec.Model, &streamed, &rec.FinishReason,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens,
			&durationMs, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scan generation row: %w", err)
		}
		rec.Streamed = streamed != 0
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.CreatedAt, _ = time.Parse(usageTimeFormat, createdStr)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generation rows: %w", err)
	}
	return recs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the underlying database connection.
func (u *UsageLog) Close() error {
	return u.db.Close()
}
