// Package textseg provides CJK-aware word segmentation for the evidence
// index. The same segmenter runs at index time and query time so tokens
// always line up.
package textseg

import (
	"strings"
	"sync"

	"github.com/go-ego/gse"
)

var (
	segOnce sync.Once
	seg     gse.Segmenter
)

func segmenter() *gse.Segmenter {
	segOnce.Do(func() {
		// Embedded dictionary; no external files to ship.
		_ = seg.LoadDict()
	})
	return &seg
}

// Cut segments text in search mode: long words are additionally split into
// their shorter components so partial matches are findable.
func Cut(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	parts := segmenter().CutSearch(text, true)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinForIndex returns the space-joined token stream stored in the FTS
// index alongside the original text.
func JoinForIndex(text string) string {
	return strings.Join(Cut(text), " ")
}
