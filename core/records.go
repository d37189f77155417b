package core

// Stage records stored in the manifest. Each embeds StageMeta; the extra
// fields summarize the stage's artifacts so later stages and `show` can find
// them without re-deriving paths.

// SourceStage records where the video landed.
type SourceStage struct {
	StageMeta
	VideoPath string `json:"video_path,omitempty"`
}

// FramesStage records the uniform extraction + dedup pass.
type FramesStage struct {
	StageMeta
	FrameCount int    `json:"frame_count"`
	FramesDir  string `json:"frames_dir"`
	FramesFile string `json:"frames_file"`
}

// TimelineStage records scoring and bucketing output.
type TimelineStage struct {
	StageMeta
	BucketCount  int    `json:"bucket_count"`
	TimelineFile string `json:"timeline_file"`
	ScoresFile   string `json:"scores_file"`
}

// SelectStage records the final keyframe selection.
type SelectStage struct {
	StageMeta
	FrameCount   int    `json:"frame_count"`
	BucketCount  int    `json:"bucket_count"`
	SelectedDir  string `json:"selected_dir"`
	SelectedFile string `json:"selected_file"`
}

// OcrStage records per-frame OCR output.
type OcrStage struct {
	StageMeta
	FrameCount     int    `json:"frame_count"`
	OcrFile        string `json:"ocr_file"`
	StructuredFile string `json:"structured_file"`
}

// OcrNormalizeStage records the normalization verification pass.
type OcrNormalizeStage struct {
	StageMeta
	Count int      `json:"count"`
	Paths []string `json:"paths,omitempty"`
}

// TranscriptStage records ASR output and provenance.
type TranscriptStage struct {
	StageMeta
	SegmentCount   int    `json:"segment_count"`
	AudioPath      string `json:"audio_path,omitempty"`
	TranscriptFile string `json:"transcript_file,omitempty"`
	ProvenanceFile string `json:"provenance_file,omitempty"`
}

// IndexStage records how many rows the evidence index holds for the asset.
type IndexStage struct {
	StageMeta
	TranscriptCount int `json:"transcript_count"`
	OcrCount        int `json:"ocr_count"`
}

// Frame is one extracted frame after dedup, one line of frames_passA.jsonl.
type Frame struct {
	FrameID     string  `json:"frame_id"`
	TsMs        *int64  `json:"ts_ms"`
	Path        *string `json:"path"`
	Hash        string  `json:"hash"`
	Source      string  `json:"source"`
	IsDuplicate bool    `json:"is_duplicate"`
	DuplicateOf string  `json:"duplicate_of,omitempty"`
}

// ScoredFrame is one line of frame_scores.jsonl.
type ScoredFrame struct {
	FrameID string  `json:"frame_id"`
	TsMs    int64   `json:"ts_ms"`
	Score   float64 `json:"score"`
}

// Bucket is one timeline window in timeline.json.
type Bucket struct {
	StartMs     int64    `json:"start_ms"`
	EndMs       int64    `json:"end_ms"`
	Score       float64  `json:"score"`
	TopFrameIDs []string `json:"top_frame_ids"`
}

// SelectedBucket is a bucket entry in selected.json; bucket_index is the
// position in the score-descending order, not the timeline index.
type SelectedBucket struct {
	StartMs     int64   `json:"start_ms"`
	EndMs       int64   `json:"end_ms"`
	Score       float64 `json:"score"`
	BucketIndex int     `json:"bucket_index"`
}

// SelectedFrame is a frame entry in selected.json.
type SelectedFrame struct {
	FrameID     string  `json:"frame_id"`
	TsMs        int64   `json:"ts_ms"`
	Score       float64 `json:"score"`
	SrcPath     string  `json:"src_path"`
	DstPath     string  `json:"dst_path"`
	BucketIndex int     `json:"bucket_index"`
}

// Selection is the selected.json document.
type Selection struct {
	Params  Params           `json:"params"`
	Buckets []SelectedBucket `json:"buckets"`
	Frames  []SelectedFrame  `json:"frames"`
}

// OcrRecord is one line of frames_ocr.jsonl: normalized text per frame.
type OcrRecord struct {
	FrameID   string `json:"frame_id"`
	TsMs      int64  `json:"ts_ms"`
	ImagePath string `json:"image_path"`
	Lang      string `json:"lang"`
	Psm       int    `json:"psm"`
	Text      string `json:"text"`
	Error     string `json:"error,omitempty"`
}

// TranscriptSegment is one line of transcript.jsonl.
type TranscriptSegment struct {
	SegID   string          `json:"seg_id"`
	StartMs int64           `json:"start_ms"`
	EndMs   int64           `json:"end_ms"`
	Text    string          `json:"text"`
	Words   []TimestampWord `json:"words"`
}

// TimestampWord is a word-level timing inside a transcript segment.
type TimestampWord struct {
	Word    string `json:"word"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}
