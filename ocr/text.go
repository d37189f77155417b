package ocr

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	alnumStartRe = regexp.MustCompile(`^[A-Za-z0-9]`)
)

// isCJK reports whether r sits in the CJK unified, extension A, or
// punctuation blocks. CJK text carries no inter-word spaces.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3000 && r <= 0x303F)
}

// SmartJoin concatenates parts, inserting a space only when neither side of
// the boundary is CJK. "深度学习" + "框架" joins bare; "deep" + "learning"
// joins with a space.
func SmartJoin(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	result := parts[0]
	for _, part := range parts[1:] {
		if result != "" && part != "" {
			last, _ := utf8.DecodeLastRuneInString(result)
			first, _ := utf8.DecodeRuneInString(part)
			if !isCJK(last) && !isCJK(first) {
				result += " "
			}
		}
		result += part
	}
	return result
}

// NormalizeText flattens OCR lines into one searchable string: collapse
// whitespace, repair hyphenation across line breaks, then smart-join.
func NormalizeText(lines []string) string {
	var cleaned []string
	for _, l := range lines {
		l = strings.TrimSpace(whitespaceRe.ReplaceAllString(l, " "))
		if l != "" {
			cleaned = append(cleaned, l)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}

	var out []string
	for i := 0; i < len(cleaned); i++ {
		cur := cleaned[i]
		if strings.HasSuffix(cur, "-") && i+1 < len(cleaned) && alnumStartRe.MatchString(cleaned[i+1]) {
			out = append(out, strings.TrimSuffix(cur, "-")+cleaned[i+1])
			i++
			continue
		}
		out = append(out, cur)
	}

	joined := SmartJoin(out)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(joined, " "))
}
