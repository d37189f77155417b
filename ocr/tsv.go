package ocr

import (
	"sort"
	"strconv"
	"strings"
)

// Word is one level-5 TSV row: a recognized word with position and
// confidence. Nil pointer fields mean the value was absent or unparsable.
type Word struct {
	PageNum  int      `json:"page_num"`
	BlockNum int      `json:"block_num"`
	ParNum   int      `json:"par_num"`
	LineNum  int      `json:"line_num"`
	WordNum  int      `json:"word_num"`
	Left     *int     `json:"left"`
	Top      *int     `json:"top"`
	Width    *int     `json:"width"`
	Height   *int     `json:"height"`
	Conf     *float64 `json:"conf"`
	Text     string   `json:"text"`
}

// Line is one assembled text line: the smart-joined words of a level-4 row,
// with the line box and mean word confidence.
type Line struct {
	PageNum  int      `json:"page_num"`
	BlockNum int      `json:"block_num"`
	ParNum   int      `json:"par_num"`
	LineNum  int      `json:"line_num"`
	Left     *int     `json:"left"`
	Top      *int     `json:"top"`
	Width    *int     `json:"width"`
	Height   *int     `json:"height"`
	Conf     *float64 `json:"conf"`
	Text     string   `json:"text"`
}

var tsvColumns = []string{
	"level", "page_num", "block_num", "par_num", "line_num", "word_num",
	"left", "top", "width", "height", "conf", "text",
}

type lineKey struct {
	page, block, par, line int
}

// ParseTSV parses Tesseract TSV output into words and assembled lines. A
// header row is detected by its first column; headerless input assumes the
// standard column order.
func ParseTSV(tsvText string) ([]Word, []Line) {
	if strings.TrimSpace(tsvText) == "" {
		return nil, nil
	}
	rows := strings.Split(tsvText, "\n")

	columns := tsvColumns
	start := 0
	header := strings.Split(rows[0], "\t")
	if len(header) > 0 && header[0] == "level" {
		columns = header
		start = 1
	}

	lineInfo := map[lineKey]Line{}
	lineWords := map[lineKey][]Word{}
	var keys []lineKey
	seenKey := map[lineKey]bool{}
	var words []Word

	addKey := func(k lineKey) {
		if !seenKey[k] {
			seenKey[k] = true
			keys = append(keys, k)
		}
	}

	for _, row := range rows[start:] {
		parts := strings.SplitN(row, "\t", len(columns))
		for len(parts) < len(columns) {
			parts = append(parts, "")
		}
		data := map[string]string{}
		for i, col := range columns {
			data[col] = parts[i]
		}

		level, ok := parseInt(data["level"])
		if !ok {
			continue
		}
		key := lineKey{
			page:  intOrZero(data["page_num"]),
			block: intOrZero(data["block_num"]),
			par:   intOrZero(data["par_num"]),
			line:  intOrZero(data["line_num"]),
		}

		switch level {
		case 4:
			addKey(key)
			lineInfo[key] = Line{
				PageNum:  key.page,
				BlockNum: key.block,
				ParNum:   key.par,
				LineNum:  key.line,
				Left:     intPtr(data["left"]),
				Top:      intPtr(data["top"]),
				Width:    intPtr(data["width"]),
				Height:   intPtr(data["height"]),
			}
		case 5:
			text := data["text"]
			if text == "" {
				continue
			}
			addKey(key)
			w := Word{
				PageNum:  key.page,
				BlockNum: key.block,
				ParNum:   key.par,
				LineNum:  key.line,
				WordNum:  intOrZero(data["word_num"]),
				Left:     intPtr(data["left"]),
				Top:      intPtr(data["top"]),
				Width:    intPtr(data["width"]),
				Height:   intPtr(data["height"]),
				Conf:     confPtr(data["conf"]),
				Text:     text,
			}
			words = append(words, w)
			lineWords[key] = append(lineWords[key], w)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	var lines []Line
	for _, key := range keys {
		info, hasInfo := lineInfo[key]
		group := lineWords[key]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].WordNum != group[j].WordNum {
				return group[i].WordNum < group[j].WordNum
			}
			return derefOrZero(group[i].Left) < derefOrZero(group[j].Left)
		})

		var texts []string
		var confSum float64
		confN := 0
		for _, w := range group {
			if w.Text != "" {
				texts = append(texts, w.Text)
			}
			if w.Conf != nil {
				confSum += *w.Conf
				confN++
			}
		}

		line := Line{PageNum: key.page, BlockNum: key.block, ParNum: key.par, LineNum: key.line}
		if hasInfo {
			line.Left, line.Top, line.Width, line.Height = info.Left, info.Top, info.Width, info.Height
		}
		if line.Left == nil || line.Top == nil || line.Width == nil || line.Height == nil {
			line.Left, line.Top, line.Width, line.Height = boundingBox(group)
		}
		line.Text = strings.TrimSpace(SmartJoin(texts))
		if confN > 0 {
			mean := confSum / float64(confN)
			line.Conf = &mean
		}
		lines = append(lines, line)
	}

	sort.SliceStable(words, func(i, j int) bool {
		a, b := words[i], words[j]
		if a.PageNum != b.PageNum {
			return a.PageNum < b.PageNum
		}
		if a.BlockNum != b.BlockNum {
			return a.BlockNum < b.BlockNum
		}
		if a.ParNum != b.ParNum {
			return a.ParNum < b.ParNum
		}
		if a.LineNum != b.LineNum {
			return a.LineNum < b.LineNum
		}
		if a.WordNum != b.WordNum {
			return a.WordNum < b.WordNum
		}
		return derefOrZero(a.Left) < derefOrZero(b.Left)
	})

	return words, lines
}

// boundingBox derives a line box from its words when the level-4 row was
// absent or incomplete.
func boundingBox(words []Word) (left, top, width, height *int) {
	var boxed []Word
	for _, w := range words {
		if w.Left != nil {
			boxed = append(boxed, w)
		}
	}
	if len(boxed) == 0 {
		return nil, nil, nil, nil
	}

	minLeft, minTop := *boxed[0].Left, derefOrZero(boxed[0].Top)
	maxRight, maxBottom := 0, 0
	for _, w := range boxed {
		if *w.Left < minLeft {
			minLeft = *w.Left
		}
		if derefOrZero(w.Top) < minTop {
			minTop = derefOrZero(w.Top)
		}
		if r := derefOrZero(w.Left) + derefOrZero(w.Width); r > maxRight {
			maxRight = r
		}
		if b := derefOrZero(w.Top) + derefOrZero(w.Height); b > maxBottom {
			maxBottom = b
		}
	}
	w := maxRight - minLeft
	h := maxBottom - minTop
	return &minLeft, &minTop, &w, &h
}

func lessKey(a, b lineKey) bool {
	if a.page != b.page {
		return a.page < b.page
	}
	if a.block != b.block {
		return a.block < b.block
	}
	if a.par != b.par {
		return a.par < b.par
	}
	return a.line < b.line
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func intOrZero(s string) int {
	n, _ := parseInt(s)
	return n
}

func intPtr(s string) *int {
	n, ok := parseInt(s)
	if !ok {
		return nil
	}
	return &n
}

// confPtr parses a confidence value; tesseract reports -1 for rows without
// a real confidence, which is treated as absent.
func confPtr(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return nil
	}
	return &f
}

func derefOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
