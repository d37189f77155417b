// Package ocr extracts on-frame text with Tesseract TSV mode and produces
// the flat and structured OCR record files.
package ocr

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/selection"
)

const (
	// FileName is the flat per-frame OCR output, relative to the asset dir.
	FileName = "frames_ocr.jsonl"
	// StructuredFileName carries words, lines, and raw text per frame.
	StructuredFileName = "frames_ocr_structured.jsonl"
)

// StructuredRecord is one line of frames_ocr_structured.jsonl.
type StructuredRecord struct {
	FrameID   string `json:"frame_id"`
	TsMs      int64  `json:"ts_ms"`
	ImagePath string `json:"image_path"`
	Lang      string `json:"lang"`
	Psm       int    `json:"psm"`
	TextRaw   string `json:"text_raw"`
	TextNorm  string `json:"text_norm"`
	Words     []Word `json:"words"`
	Lines     []Line `json:"lines"`
	Error     string `json:"error,omitempty"`
}

// Options for the ocr stage.
type Options struct {
	TesseractCmd string
	Force        bool
}

// Run executes the ocr stage for one asset.
func Run(ctx context.Context, cfg config.Settings, store *manifest.Store, assetID string, opts Options) core.StageResult {
	m, err := store.Load(assetID)
	if err != nil {
		return core.Fail(core.StageOCR, err.Error())
	}
	if m.Status != core.AssetIngested {
		return core.Fail(core.StageOCR, fmt.Sprintf("asset status must be ingested, got %s", m.Status))
	}

	params := core.NewParams(map[string]any{
		"lang": cfg.OCRLang,
		"psm":  cfg.OCRPsm,
		"tsv":  true,
	})

	assetDir := store.AssetDir(assetID)
	if !opts.Force &&
		m.StageStatusOf(core.StageOCR) == core.StageCompleted &&
		m.StageParamsOf(core.StageOCR).Equal(params) &&
		fileExists(filepath.Join(assetDir, FileName)) &&
		fileExists(filepath.Join(assetDir, StructuredFileName)) {
		log.Info("ocr cached", "asset", assetID)
		return core.StageResult{Stage: core.StageOCR, Status: core.StageCompleted, Skipped: true}
	}

	selRec, ok, err := core.StageAs[core.SelectStage](m, core.StageSelect)
	if err != nil || !ok || selRec.Status != core.StageCompleted {
		return core.Fail(core.StageOCR, "select stage not completed; run extract-select first")
	}

	tess, err := FindTesseract(opts.TesseractCmd)
	if err != nil {
		return core.Fail(core.StageOCR, err.Error())
	}
	if err := tess.ValidateLanguages(ctx, cfg.OCRLang); err != nil {
		return core.Fail(core.StageOCR, err.Error())
	}

	sel, err := selection.ReadSelection(filepath.Join(assetDir, selRec.SelectedFile))
	if err != nil {
		return core.Fail(core.StageOCR, err.Error())
	}
	if len(sel.Frames) == 0 {
		return core.Fail(core.StageOCR, "no frames found in selection")
	}

	var (
		records    []core.OcrRecord
		structured []StructuredRecord
		stageErrs  []string
	)
	for _, frame := range sel.Frames {
		rec := core.OcrRecord{
			FrameID:   frame.FrameID,
			TsMs:      frame.TsMs,
			ImagePath: frame.DstPath,
			Lang:      cfg.OCRLang,
			Psm:       cfg.OCRPsm,
		}
		srec := StructuredRecord{
			FrameID:   frame.FrameID,
			TsMs:      frame.TsMs,
			ImagePath: frame.DstPath,
			Lang:      cfg.OCRLang,
			Psm:       cfg.OCRPsm,
		}

		imagePath := filepath.Join(assetDir, frame.DstPath)
		if frame.DstPath == "" || !fileExists(imagePath) {
			msg := fmt.Sprintf("image not found: %s", frame.DstPath)
			rec.Error = msg
			srec.Error = msg
			stageErrs = append(stageErrs, fmt.Sprintf("frame %s: %s", frame.FrameID, msg))
			records = append(records, rec)
			structured = append(structured, srec)
			continue
		}

		tsv, err := tess.RunTSV(ctx, imagePath, cfg.OCRLang, cfg.OCRPsm)
		if err != nil {
			rec.Error = err.Error()
			srec.Error = err.Error()
			stageErrs = append(stageErrs, fmt.Sprintf("frame %s: %v", frame.FrameID, err))
			records = append(records, rec)
			structured = append(structured, srec)
			continue
		}

		words, lines := ParseTSV(tsv)
		var lineTexts []string
		for _, l := range lines {
			if l.Text != "" {
				lineTexts = append(lineTexts, l.Text)
			}
		}
		rec.Text = NormalizeText(lineTexts)
		srec.TextRaw = strings.Join(lineTexts, "\n")
		srec.TextNorm = rec.Text
		srec.Words = words
		srec.Lines = lines

		records = append(records, rec)
		structured = append(structured, srec)
	}

	if err := writeJSONL(filepath.Join(assetDir, FileName), records); err != nil {
		return core.Fail(core.StageOCR, err.Error())
	}
	if err := writeJSONL(filepath.Join(assetDir, StructuredFileName), structured); err != nil {
		return core.Fail(core.StageOCR, err.Error())
	}

	rec := core.OcrStage{
		StageMeta: core.StageMeta{
			Status:    core.StageCompleted,
			Params:    params,
			UpdatedAt: core.NowUTC(),
			Errors:    stageErrs,
		},
		FrameCount:     len(records),
		OcrFile:        FileName,
		StructuredFile: StructuredFileName,
	}
	if err := core.PutStage(m, core.StageOCR, rec); err != nil {
		return core.Fail(core.StageOCR, err.Error())
	}
	if err := store.Save(m); err != nil {
		return core.Fail(core.StageOCR, err.Error())
	}

	log.Info("ocr extracted", "asset", assetID, "frames", len(records), "errors", len(stageErrs))
	return core.StageResult{Stage: core.StageOCR, Status: core.StageCompleted, Errors: stageErrs}
}

// RunNormalize executes the ocr_normalize stage: it verifies the structured
// output exists and records its line count in the manifest.
func RunNormalize(ctx context.Context, cfg config.Settings, store *manifest.Store, assetID string, force bool) core.StageResult {
	m, err := store.Load(assetID)
	if err != nil {
		return core.Fail(core.StageOCRNormalize, err.Error())
	}
	if m.Status != core.AssetIngested {
		return core.Fail(core.StageOCRNormalize, fmt.Sprintf("asset status must be ingested, got %s", m.Status))
	}

	assetDir := store.AssetDir(assetID)

	if !force && m.StageStatusOf(core.StageOCRNormalize) == core.StageCompleted {
		rec, ok, err := core.StageAs[core.OcrNormalizeStage](m, core.StageOCRNormalize)
		if err == nil && ok && len(rec.Paths) > 0 && fileExists(filepath.Join(assetDir, rec.Paths[0])) {
			log.Info("ocr_normalize cached", "asset", assetID)
			return core.StageResult{Stage: core.StageOCRNormalize, Status: core.StageCompleted, Skipped: true}
		}
	}

	ocrRec, ok, err := core.StageAs[core.OcrStage](m, core.StageOCR)
	if err != nil || !ok || ocrRec.Status != core.StageCompleted {
		return core.Fail(core.StageOCRNormalize, "ocr stage not completed; run extract-ocr first")
	}

	structuredFile := ocrRec.StructuredFile
	if structuredFile == "" {
		structuredFile = StructuredFileName
	}
	structuredPath := filepath.Join(assetDir, structuredFile)
	if !fileExists(structuredPath) {
		return core.Fail(core.StageOCRNormalize, "structured ocr output not found; run extract-ocr first")
	}

	count, err := countJSONLRecords(structuredPath)
	if err != nil {
		return core.Fail(core.StageOCRNormalize, err.Error())
	}

	rec := core.OcrNormalizeStage{
		StageMeta: core.StageMeta{
			Status:    core.StageCompleted,
			UpdatedAt: core.NowUTC(),
		},
		Count: count,
		Paths: []string{structuredFile},
	}
	if err := core.PutStage(m, core.StageOCRNormalize, rec); err != nil {
		return core.Fail(core.StageOCRNormalize, err.Error())
	}
	if err := store.Save(m); err != nil {
		return core.Fail(core.StageOCRNormalize, err.Error())
	}

	log.Info("ocr output verified", "asset", assetID, "records", count)
	return core.Done(core.StageOCRNormalize, fmt.Sprintf("%d records", count))
}

// ReadRecords reads a frames_ocr.jsonl file.
func ReadRecords(path string) ([]core.OcrRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []core.OcrRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec core.OcrRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("parse ocr record: %w", err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

func writeJSONL[T any](path string, records []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func countJSONLRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			count++
		}
	}
	return count, sc.Err()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
