package evidence

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/storage"
	"github.com/Xyri1/bili-assetizer/textseg"
)

// SnippetMaxLen caps hit snippets at a readable length.
const SnippetMaxLen = 160

// Query runs a ranked full-text search over one asset's evidence. Hits are
// the top-k by bm25 rank, then reordered by start time for reading flow.
func Query(db *storage.DB, assetID, query string, topK int) (core.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return core.QueryResult{}, fmt.Errorf("query cannot be empty")
	}

	matchExpr := BuildMatchExpr(query)
	if matchExpr == "" {
		return core.QueryResult{}, fmt.Errorf("query has no searchable terms: %q", query)
	}

	raw, total, err := db.Search(assetID, matchExpr, topK)
	if err != nil {
		return core.QueryResult{}, err
	}

	hits := make([]core.QueryHit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, core.QueryHit{
			EvidenceID: h.Row.ID,
			SourceType: h.Row.SourceType,
			SourceRef:  h.Row.SourceRef,
			StartMs:    h.Row.StartMs,
			EndMs:      h.Row.EndMs,
			Score:      math.Abs(h.Bm25),
			Snippet:    Snippet(h.Row.Text, SnippetMaxLen),
			Citation:   Citation(h.Row.SourceType, h.Row.SourceRef, h.Row.StartMs, h.Row.EndMs),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].StartMs < hits[j].StartMs })

	return core.QueryResult{
		AssetID: assetID,
		Query:   query,
		Hits:    hits,
		Total:   total,
	}, nil
}

// BuildMatchExpr turns a raw user query into an FTS5 MATCH expression. Double
// quotes are stripped to avoid phrase-operator surprises, then the query is
// segmented with the same segmenter used at index time so tokens line up.
func BuildMatchExpr(query string) string {
	query = strings.ReplaceAll(query, `"`, " ")
	return textseg.JoinForIndex(query)
}

// Citation formats a hit reference like "[seg:SEG_000001 t=0:00-0:28]" for
// transcript evidence or "[frame:KF_000001 t=1:23]" for OCR evidence.
func Citation(sourceType, sourceRef string, startMs int64, endMs *int64) string {
	start := FormatTime(startMs)
	if sourceType == storage.EvidenceSourceTranscript {
		if endMs != nil {
			return fmt.Sprintf("[seg:%s t=%s-%s]", sourceRef, start, FormatTime(*endMs))
		}
		return fmt.Sprintf("[seg:%s t=%s]", sourceRef, start)
	}
	return fmt.Sprintf("[frame:%s t=%s]", sourceRef, start)
}

// FormatTime renders milliseconds as M:SS, or H:MM:SS past the hour.
func FormatTime(ms int64) string {
	totalSec := ms / 1000
	h := totalSec / 3600
	m := (totalSec % 3600) / 60
	s := totalSec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Snippet collapses whitespace and truncates to maxLen characters, breaking
// at a word boundary when one falls in the latter half.
func Snippet(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	truncated := runes[:maxLen]
	for i := len(truncated) - 1; i > maxLen/2; i-- {
		if truncated[i] == ' ' {
			truncated = truncated[:i]
			break
		}
	}
	return strings.TrimRight(string(truncated), " ") + "..."
}
