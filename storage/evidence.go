package storage

import (
	"database/sql"
	"fmt"
)

// EvidenceSourceTranscript and EvidenceSourceOCR are the allowed evidence
// source types, enforced by the table's CHECK constraint.
const (
	EvidenceSourceTranscript = "transcript"
	EvidenceSourceOCR        = "ocr"
)

// EvidenceRow is one indexed evidence record. Text holds the segmented
// token stream the FTS index matches against.
type EvidenceRow struct {
	ID         int64
	AssetID    string
	SourceType string
	SourceRef  string
	StartMs    int64
	EndMs      *int64
	Text       string
}

// ClearEvidence removes all evidence rows for an asset. The FTS delete
// trigger keeps the index in sync.
func (db *DB) ClearEvidence(assetID string) error {
	_, err := db.conn.Exec("DELETE FROM evidence WHERE asset_id = ?", assetID)
	return err
}

// InsertEvidence upserts rows for an asset inside a single transaction.
// Rows are keyed by (asset_id, source_type, source_ref), so re-running an
// index replaces rather than duplicates.
func (db *DB) InsertEvidence(rows []EvidenceRow) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT OR REPLACE INTO evidence
        (asset_id, source_type, source_ref, start_ms, end_ms, text)
        VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	for _, r := range rows {
		if r.Text == "" {
			continue
		}
		if _, err := stmt.Exec(r.AssetID, r.SourceType, r.SourceRef, r.StartMs, r.EndMs, r.Text); err != nil {
			return count, fmt.Errorf("index %s %s: %w", r.SourceType, r.SourceRef, err)
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// SearchHit is one FTS match with its bm25 rank.
type SearchHit struct {
	Row  EvidenceRow
	Bm25 float64
}

// Search runs an FTS5 match scoped to one asset, returning the top hits by
// bm25 rank and the total number of matches.
func (db *DB) Search(assetID, matchExpr string, limit int) ([]SearchHit, int, error) {
	rows, err := db.conn.Query(`
        SELECT e.id, e.asset_id, e.source_type, e.source_ref,
               e.start_ms, e.end_ms, e.text, bm25(evidence_fts)
        FROM evidence_fts
        JOIN evidence e ON e.id = evidence_fts.rowid
        WHERE evidence_fts MATCH ? AND e.asset_id = ?
        ORDER BY bm25(evidence_fts)
        LIMIT ?`, matchExpr, assetID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var endMs sql.NullInt64
		if err := rows.Scan(&h.Row.ID, &h.Row.AssetID, &h.Row.SourceType,
			&h.Row.SourceRef, &h.Row.StartMs, &endMs, &h.Row.Text, &h.Bm25); err != nil {
			return nil, 0, err
		}
		if endMs.Valid {
			h.Row.EndMs = &endMs.Int64
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = db.conn.QueryRow(`
        SELECT count(*)
        FROM evidence_fts
        JOIN evidence e ON e.id = evidence_fts.rowid
        WHERE evidence_fts MATCH ? AND e.asset_id = ?`, matchExpr, assetID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count matches: %w", err)
	}
	return hits, total, nil
}

// EvidenceCounts returns the number of indexed rows per source type for an
// asset.
func (db *DB) EvidenceCounts(assetID string) (transcript, ocr int, err error) {
	rows, err := db.conn.Query(`
        SELECT source_type, count(*) FROM evidence
        WHERE asset_id = ? GROUP BY source_type`, assetID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return 0, 0, err
		}
		switch st {
		case EvidenceSourceTranscript:
			transcript = n
		case EvidenceSourceOCR:
			ocr = n
		}
	}
	return transcript, ocr, rows.Err()
}
