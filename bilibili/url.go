// Package bilibili talks to the Bilibili web API: URL/BVID parsing, view and
// playurl metadata, and DASH stream downloads.
package bilibili

import (
	"fmt"
	"regexp"
	"strings"
)

var bvidPattern = regexp.MustCompile(`BV[0-9A-Za-z]{10}`)

// ExtractBVID pulls the BVID out of raw, which may be a bare BVID, a
// bilibili.com video URL, or a URL with query/fragment noise.
func ExtractBVID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty input")
	}
	m := bvidPattern.FindString(raw)
	if m == "" {
		return "", fmt.Errorf("no BVID found in %q", raw)
	}
	return m, nil
}

// CanonicalURL returns the canonical video page URL for a BVID.
func CanonicalURL(bvid string) string {
	return "https://www.bilibili.com/video/" + bvid
}
