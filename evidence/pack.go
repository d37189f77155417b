package evidence

import (
	"fmt"
	"path/filepath"

	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/ocr"
	"github.com/Xyri1/bili-assetizer/storage"
	"github.com/Xyri1/bili-assetizer/transcript"
)

// Gather runs a query and resolves every hit back to its full source record,
// producing the evidence pack handed to downstream consumers. Hits that
// cannot be resolved still appear, with the miss noted in Errors.
func Gather(store *manifest.Store, db *storage.DB, assetID, query string, topK int) (core.EvidencePack, error) {
	result, err := Query(db, assetID, query, topK)
	if err != nil {
		return core.EvidencePack{}, err
	}

	pack := core.EvidencePack{
		AssetID: assetID,
		Query:   result.Query,
		Items:   []core.EvidenceItem{},
	}

	m, err := store.Load(assetID)
	if err != nil {
		return core.EvidencePack{}, err
	}
	assetDir := store.AssetDir(assetID)

	var segByID map[string]core.TranscriptSegment
	var ocrByID map[string]core.OcrRecord

	for _, hit := range result.Hits {
		item := core.EvidenceItem{
			SourceType: hit.SourceType,
			SourceRef:  hit.SourceRef,
			StartMs:    hit.StartMs,
			EndMs:      hit.EndMs,
			Citation:   hit.Citation,
			Score:      hit.Score,
		}

		switch hit.SourceType {
		case storage.EvidenceSourceTranscript:
			if segByID == nil {
				segByID, err = loadSegments(m, assetDir)
				if err != nil {
					pack.Errors = append(pack.Errors, err.Error())
					segByID = map[string]core.TranscriptSegment{}
				}
			}
			seg, ok := segByID[hit.SourceRef]
			if !ok {
				pack.Errors = append(pack.Errors, fmt.Sprintf("transcript segment not found: %s", hit.SourceRef))
			}
			item.Text = seg.Text
		case storage.EvidenceSourceOCR:
			if ocrByID == nil {
				ocrByID, err = loadOcrRecords(m, assetDir)
				if err != nil {
					pack.Errors = append(pack.Errors, err.Error())
					ocrByID = map[string]core.OcrRecord{}
				}
			}
			rec, ok := ocrByID[hit.SourceRef]
			if !ok {
				pack.Errors = append(pack.Errors, fmt.Sprintf("ocr record not found: %s", hit.SourceRef))
			}
			item.Text = rec.Text
		default:
			pack.Errors = append(pack.Errors, fmt.Sprintf("unknown source type: %s", hit.SourceType))
		}

		pack.Items = append(pack.Items, item)
	}

	return pack, nil
}

func loadSegments(m *core.Manifest, assetDir string) (map[string]core.TranscriptSegment, error) {
	file := transcript.FileName
	if rec, ok, err := core.StageAs[core.TranscriptStage](m, core.StageTranscript); err == nil && ok && rec.TranscriptFile != "" {
		file = rec.TranscriptFile
	}
	segments, err := transcript.ReadSegments(filepath.Join(assetDir, file))
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	byID := make(map[string]core.TranscriptSegment, len(segments))
	for _, s := range segments {
		byID[s.SegID] = s
	}
	return byID, nil
}

func loadOcrRecords(m *core.Manifest, assetDir string) (map[string]core.OcrRecord, error) {
	records, err := ocr.ReadRecords(filepath.Join(assetDir, FileNameForOCR(m)))
	if err != nil {
		return nil, fmt.Errorf("read ocr: %w", err)
	}
	byID := make(map[string]core.OcrRecord, len(records))
	for _, r := range records {
		byID[r.FrameID] = r
	}
	return byID, nil
}
