package output

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/feedharvest/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	video_url    TEXT PRIMARY KEY,
	likes        TEXT,
	shares       TEXT,
	comments     TEXT NOT NULL DEFAULT '',
	comment_count INTEGER NOT NULL DEFAULT 0,
	complete     INTEGER NOT NULL DEFAULT 0,
	passes       INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	scraped_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
`

const upsertItem = `
INSERT INTO items (video_url, likes, shares, comments, comment_count, complete, passes, status, error, scraped_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(video_url) DO UPDATE SET
	likes = excluded.likes,
	shares = excluded.shares,
	comments = excluded.comments,
	comment_count = excluded.comment_count,
	complete = excluded.complete,
	passes = excluded.passes,
	status = excluded.status,
	error = excluded.error,
	scraped_at = excluded.scraped_at
`

// openDB opens a SQLite database and makes sure the items table exists
func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return db, nil
}

// WriteSQLite upserts records into the items table at path. Absent metrics
// are stored as NULL.
func WriteSQLite(path string, records []model.ItemRecord) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return insertRecords(db, records)
}

func insertRecords(db *sql.DB, records []model.ItemRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(upsertItem)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		_, err := stmt.Exec(
			rec.URL,
			nullable(rec.Likes),
			nullable(rec.Shares),
			rec.JoinedComments(),
			len(rec.Comments),
			rec.Complete,
			rec.Passes,
			string(rec.Status),
			rec.Error,
			rec.ScrapedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", rec.URL, err)
		}
	}

	return tx.Commit()
}

func nullable(l model.Lookup) sql.NullString {
	return sql.NullString{String: l.Text, Valid: l.Found}
}
