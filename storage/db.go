// Package storage owns the shared SQLite database: asset and version rows
// written at ingest, and the FTS5-backed evidence index.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
    asset_id TEXT PRIMARY KEY,
    source_url TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now')),
    latest_version_id TEXT
);

CREATE TABLE IF NOT EXISTS asset_versions (
    version_id TEXT PRIMARY KEY,
    asset_id TEXT NOT NULL REFERENCES assets(asset_id),
    fingerprint TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    error TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_asset_versions_asset ON asset_versions(asset_id);

CREATE TABLE IF NOT EXISTS evidence (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    asset_id TEXT NOT NULL,
    source_type TEXT NOT NULL CHECK (source_type IN ('transcript', 'ocr')),
    source_ref TEXT NOT NULL,
    start_ms INTEGER NOT NULL,
    end_ms INTEGER,
    text TEXT NOT NULL,
    UNIQUE(asset_id, source_type, source_ref)
);

CREATE VIRTUAL TABLE IF NOT EXISTS evidence_fts USING fts5(
    text,
    content='evidence',
    content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS evidence_ai AFTER INSERT ON evidence BEGIN
    INSERT INTO evidence_fts(rowid, text) VALUES (new.id, new.text);
END;

CREATE TRIGGER IF NOT EXISTS evidence_ad AFTER DELETE ON evidence BEGIN
    INSERT INTO evidence_fts(evidence_fts, rowid, text) VALUES('delete', old.id, old.text);
END;

CREATE INDEX IF NOT EXISTS idx_evidence_asset ON evidence(asset_id);
`

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. The parent directory is created as well.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// UpsertAsset records an asset row and a new version row, returning the
// version id.
func (db *DB) UpsertAsset(assetID, sourceURL, fingerprint string) (string, error) {
	versionID := uuid.NewString()

	tx, err := db.conn.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO assets (asset_id, source_url, latest_version_id)
        VALUES (?, ?, ?)
        ON CONFLICT(asset_id) DO UPDATE SET
            source_url = excluded.source_url,
            latest_version_id = excluded.latest_version_id,
            updated_at = datetime('now')`,
		assetID, sourceURL, versionID)
	if err != nil {
		return "", fmt.Errorf("upsert asset %s: %w", assetID, err)
	}

	_, err = tx.Exec(`
        INSERT INTO asset_versions (version_id, asset_id, fingerprint, status)
        VALUES (?, ?, ?, 'pending')`,
		versionID, assetID, fingerprint)
	if err != nil {
		return "", fmt.Errorf("insert version for %s: %w", assetID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return versionID, nil
}

// DeleteAsset removes the asset's evidence, version, and asset rows.
func (db *DB) DeleteAsset(assetID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM evidence WHERE asset_id = ?",
		"DELETE FROM asset_versions WHERE asset_id = ?",
		"DELETE FROM assets WHERE asset_id = ?",
	} {
		if _, err := tx.Exec(stmt, assetID); err != nil {
			return fmt.Errorf("delete asset %s: %w", assetID, err)
		}
	}
	return tx.Commit()
}
