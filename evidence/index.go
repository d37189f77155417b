// Package evidence loads transcript and OCR text into the SQLite FTS5
// index and answers ranked, time-ordered queries against it.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/ocr"
	"github.com/Xyri1/bili-assetizer/storage"
	"github.com/Xyri1/bili-assetizer/textseg"
	"github.com/Xyri1/bili-assetizer/transcript"
)

// RunIndex executes the index stage for one asset: transcript segments and
// OCR records become evidence rows with segmented text. OCR is optional;
// the stage fails only when nothing at all could be indexed.
func RunIndex(store *manifest.Store, db *storage.DB, assetID string, force bool) core.StageResult {
	m, err := store.Load(assetID)
	if err != nil {
		return core.Fail(core.StageIndex, err.Error())
	}

	// The manifest is a hint; the rows must still be in the database.
	if !force && m.StageStatusOf(core.StageIndex) == core.StageCompleted && indexIntact(db, m, assetID) {
		log.Info("index cached", "asset", assetID)
		return core.StageResult{Stage: core.StageIndex, Status: core.StageCompleted, Skipped: true}
	}

	trRec, ok, err := core.StageAs[core.TranscriptStage](m, core.StageTranscript)
	if err != nil || !ok || trRec.Status != core.StageCompleted {
		return core.Fail(core.StageIndex, "transcript stage not completed; run extract-transcript first")
	}

	if force {
		if err := db.ClearEvidence(assetID); err != nil {
			return core.Fail(core.StageIndex, fmt.Sprintf("clear evidence: %v", err))
		}
	}

	assetDir := store.AssetDir(assetID)
	var stageErrs []string

	transcriptFile := trRec.TranscriptFile
	if transcriptFile == "" {
		transcriptFile = transcript.FileName
	}
	segments, err := transcript.ReadSegments(filepath.Join(assetDir, transcriptFile))
	if err != nil {
		stageErrs = append(stageErrs, fmt.Sprintf("read transcript: %v", err))
	}

	transcriptCount, err := db.InsertEvidence(transcriptRows(assetID, segments))
	if err != nil {
		stageErrs = append(stageErrs, err.Error())
	}

	// OCR evidence is optional; a missing file is not an error.
	ocrFile := FileNameForOCR(m)
	ocrCount := 0
	if fileExists(filepath.Join(assetDir, ocrFile)) {
		records, err := ocr.ReadRecords(filepath.Join(assetDir, ocrFile))
		if err != nil {
			stageErrs = append(stageErrs, fmt.Sprintf("read ocr: %v", err))
		}
		ocrCount, err = db.InsertEvidence(ocrRows(assetID, records))
		if err != nil {
			stageErrs = append(stageErrs, err.Error())
		}
	}

	status := core.StageCompleted
	if transcriptCount == 0 && ocrCount == 0 {
		status = core.StageFailed
		stageErrs = append(stageErrs, "no content indexed (transcript and ocr both empty)")
	}

	rec := core.IndexStage{
		StageMeta: core.StageMeta{
			Status:    status,
			Params:    core.NewParams(map[string]any{"force": force}),
			UpdatedAt: core.NowUTC(),
			Errors:    stageErrs,
		},
		TranscriptCount: transcriptCount,
		OcrCount:        ocrCount,
	}
	if err := core.PutStage(m, core.StageIndex, rec); err != nil {
		return core.Fail(core.StageIndex, err.Error())
	}
	if err := store.Save(m); err != nil {
		return core.Fail(core.StageIndex, err.Error())
	}

	if status == core.StageFailed {
		return core.StageResult{Stage: core.StageIndex, Status: core.StageFailed, Errors: stageErrs}
	}
	log.Info("evidence indexed", "asset", assetID, "transcript", transcriptCount, "ocr", ocrCount)
	return core.Done(core.StageIndex, fmt.Sprintf("%d transcript, %d ocr", transcriptCount, ocrCount))
}

// indexIntact reports whether the evidence rows the index stage recorded
// are still present. Rows can vanish out-of-band (db file replaced, rows
// cleared), in which case the stage must rebuild instead of skipping.
func indexIntact(db *storage.DB, m *core.Manifest, assetID string) bool {
	rec, ok, err := core.StageAs[core.IndexStage](m, core.StageIndex)
	if err != nil || !ok {
		return false
	}
	tr, oc, err := db.EvidenceCounts(assetID)
	if err != nil {
		return false
	}
	return tr == rec.TranscriptCount && oc == rec.OcrCount
}

// FileNameForOCR resolves the flat OCR file recorded in the manifest,
// falling back to the default name.
func FileNameForOCR(m *core.Manifest) string {
	if rec, ok, err := core.StageAs[core.OcrStage](m, core.StageOCR); err == nil && ok && rec.OcrFile != "" {
		return rec.OcrFile
	}
	return ocr.FileName
}

func transcriptRows(assetID string, segments []core.TranscriptSegment) []storage.EvidenceRow {
	rows := make([]storage.EvidenceRow, 0, len(segments))
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		endMs := s.EndMs
		rows = append(rows, storage.EvidenceRow{
			AssetID:    assetID,
			SourceType: storage.EvidenceSourceTranscript,
			SourceRef:  s.SegID,
			StartMs:    s.StartMs,
			EndMs:      &endMs,
			Text:       textseg.JoinForIndex(text),
		})
	}
	return rows
}

func ocrRows(assetID string, records []core.OcrRecord) []storage.EvidenceRow {
	rows := make([]storage.EvidenceRow, 0, len(records))
	for _, r := range records {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		rows = append(rows, storage.EvidenceRow{
			AssetID:    assetID,
			SourceType: storage.EvidenceSourceOCR,
			SourceRef:  r.FrameID,
			StartMs:    r.TsMs,
			Text:       textseg.JoinForIndex(text),
		})
	}
	return rows
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
