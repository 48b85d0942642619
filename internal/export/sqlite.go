package export

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/CanopyHQ/progmem/internal/memory"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE capabilities (
	position INTEGER PRIMARY KEY,
	cap_id TEXT,
	fingerprint TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	summary TEXT,
	confidence REAL,
	origin TEXT,
	feature_id TEXT,
	commit_hash TEXT,
	commit_range TEXT,
	created_at TEXT,
	updated_at TEXT
);
CREATE INDEX idx_capabilities_cap_id ON capabilities(cap_id);

CREATE TABLE capability_tags (
	capability INTEGER NOT NULL,
	tag TEXT NOT NULL,
	FOREIGN KEY (capability) REFERENCES capabilities(position) ON DELETE CASCADE
);
CREATE INDEX idx_capability_tags_tag ON capability_tags(tag);

CREATE TABLE sync_history (
	position INTEGER PRIMARY KEY,
	sync_id TEXT,
	timestamp TEXT,
	total_candidates INTEGER,
	accepted_count INTEGER,
	inserted_count INTEGER,
	deduped_count INTEGER,
	invalid_count INTEGER,
	rejected_count INTEGER,
	commit_range TEXT,
	last_synced_commit TEXT
);

CREATE TABLE rejected_fingerprints (
	position INTEGER PRIMARY KEY,
	fingerprint TEXT NOT NULL
);
`

// WriteSQLite writes a fresh SQLite database at path holding the document's
// capabilities, tags, sync history and rejected fingerprints. An existing
// file at path is replaced. Capabilities sharing a fingerprint keep the
// first occurrence only; a repeated cap_id is kept. It returns the number of
// capability rows written.
func WriteSQLite(path string, doc *memory.Document) (written int, err error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("failed to remove old snapshot: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return 0, fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = writeMeta(tx, doc); err != nil {
		return 0, err
	}
	if written, err = writeCapabilities(tx, doc); err != nil {
		return 0, err
	}
	if err = writeSyncHistory(tx, doc); err != nil {
		return 0, err
	}
	for i, fp := range doc.RejectedFingerprints {
		if _, err = tx.Exec(`INSERT INTO rejected_fingerprints (position, fingerprint) VALUES (?, ?)`, i, fp); err != nil {
			return 0, fmt.Errorf("failed to insert rejected fingerprint: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return written, nil
}

func writeMeta(tx *sql.Tx, doc *memory.Document) error {
	lastSynced := ""
	if doc.LastSyncedCommit != nil {
		lastSynced = *doc.LastSyncedCommit
	}
	meta := [][2]string{
		{"schema_version", doc.SchemaVersion},
		{"created_at", doc.CreatedAt},
		{"updated_at", doc.UpdatedAt},
		{"next_capability_seq", fmt.Sprint(doc.NextCapabilitySeq)},
		{"last_synced_commit", lastSynced},
		{"max_sync_history", fmt.Sprint(doc.Limits.MaxSyncHistory)},
		{"max_rejected_fingerprints", fmt.Sprint(doc.Limits.MaxRejectedFingerprints)},
	}
	for _, kv := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to insert meta %s: %w", kv[0], err)
		}
	}
	return nil
}

func writeCapabilities(tx *sql.Tx, doc *memory.Document) (int, error) {
	capStmt, err := tx.Prepare(`
		INSERT INTO capabilities (position, cap_id, fingerprint, title, summary, confidence, origin,
			feature_id, commit_hash, commit_range, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare capability insert: %w", err)
	}
	defer capStmt.Close()

	tagStmt, err := tx.Prepare(`INSERT INTO capability_tags (capability, tag) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare tag insert: %w", err)
	}
	defer tagStmt.Close()

	written := 0
	for i, c := range doc.Capabilities {
		if c.Fingerprint == "" {
			continue
		}
		res, err := capStmt.Exec(i, c.CapID, c.Fingerprint, c.Title, c.Summary, c.Confidence, c.Source.Origin,
			c.Source.FeatureID.String(), c.Source.CommitHash, c.Source.CommitRange, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert capability %s: %w", c.CapID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		written++
		for _, tag := range c.Tags {
			if _, err := tagStmt.Exec(i, tag); err != nil {
				return 0, fmt.Errorf("failed to insert tag for %s: %w", c.CapID, err)
			}
		}
	}
	return written, nil
}

func writeSyncHistory(tx *sql.Tx, doc *memory.Document) error {
	for i, e := range doc.SyncHistory {
		var lastSynced sql.NullString
		if e.LastSyncedCommit != nil {
			lastSynced = sql.NullString{String: *e.LastSyncedCommit, Valid: true}
		}
		_, err := tx.Exec(`
			INSERT INTO sync_history (position, sync_id, timestamp, total_candidates, accepted_count,
				inserted_count, deduped_count, invalid_count, rejected_count, commit_range, last_synced_commit)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, i, e.SyncID, e.Timestamp, e.TotalCandidates, e.AcceptedCount, e.InsertedCount,
			e.DedupedCount, e.InvalidCount, e.RejectedCount, e.CommitRange, lastSynced)
		if err != nil {
			return fmt.Errorf("failed to insert sync entry %s: %w", e.SyncID, err)
		}
	}
	return nil
}
