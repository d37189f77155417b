package ocr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

func tsv(rows ...string) string {
	return strings.Join(rows, "\n")
}

func TestParseTSVWithHeader(t *testing.T) {
	input := tsv(
		tsvHeader,
		"4\t1\t1\t1\t1\t0\t10\t20\t200\t30\t-1\t",
		"5\t1\t1\t1\t1\t1\t10\t20\t80\t30\t91.5\tHello",
		"5\t1\t1\t1\t1\t2\t100\t20\t110\t30\t88.5\tworld",
	)

	words, lines := ParseTSV(input)

	require.Len(t, words, 2)
	assert.Equal(t, "Hello", words[0].Text)
	require.NotNil(t, words[0].Conf)
	assert.Equal(t, 91.5, *words[0].Conf)

	require.Len(t, lines, 1)
	assert.Equal(t, "Hello world", lines[0].Text)
	require.NotNil(t, lines[0].Conf)
	assert.Equal(t, 90.0, *lines[0].Conf, "line conf is mean of word confs")
	require.NotNil(t, lines[0].Left)
	assert.Equal(t, 10, *lines[0].Left, "line box from level-4 row")
	assert.Equal(t, 200, *lines[0].Width)
}

func TestParseTSVWithoutHeader(t *testing.T) {
	input := tsv(
		"5\t1\t1\t1\t1\t1\t10\t20\t80\t30\t95\tnoheader",
	)

	words, lines := ParseTSV(input)
	require.Len(t, words, 1)
	assert.Equal(t, "noheader", words[0].Text)
	require.Len(t, lines, 1)
	assert.Equal(t, "noheader", lines[0].Text)
}

func TestParseTSVLineBoxFromWords(t *testing.T) {
	// No level-4 row: box derived from the word extents.
	input := tsv(
		tsvHeader,
		"5\t1\t1\t1\t1\t1\t10\t20\t80\t30\t90\ta",
		"5\t1\t1\t1\t1\t2\t100\t25\t50\t35\t90\tb",
	)

	_, lines := ParseTSV(input)
	require.Len(t, lines, 1)
	require.NotNil(t, lines[0].Left)
	assert.Equal(t, 10, *lines[0].Left)
	assert.Equal(t, 20, *lines[0].Top)
	assert.Equal(t, 140, *lines[0].Width) // 100+50-10
	assert.Equal(t, 40, *lines[0].Height) // 25+35-20
}

func TestParseTSVNegativeConfIsAbsent(t *testing.T) {
	input := tsv(
		tsvHeader,
		"5\t1\t1\t1\t1\t1\t10\t20\t80\t30\t-1\tghost",
	)

	words, lines := ParseTSV(input)
	require.Len(t, words, 1)
	assert.Nil(t, words[0].Conf)
	require.Len(t, lines, 1)
	assert.Nil(t, lines[0].Conf)
}

func TestParseTSVCJKLineJoinsBare(t *testing.T) {
	input := tsv(
		tsvHeader,
		"5\t1\t1\t1\t1\t1\t10\t20\t40\t30\t90\t深度",
		"5\t1\t1\t1\t1\t2\t60\t20\t40\t30\t90\t学习",
	)

	_, lines := ParseTSV(input)
	require.Len(t, lines, 1)
	assert.Equal(t, "深度学习", lines[0].Text)
}

func TestParseTSVMultipleLinesSorted(t *testing.T) {
	input := tsv(
		tsvHeader,
		"5\t1\t1\t1\t2\t1\t10\t60\t40\t30\t90\tsecond",
		"5\t1\t1\t1\t1\t1\t10\t20\t40\t30\t90\tfirst",
	)

	_, lines := ParseTSV(input)
	require.Len(t, lines, 2)
	assert.Equal(t, "first", lines[0].Text)
	assert.Equal(t, "second", lines[1].Text)
}

func TestParseTSVEmpty(t *testing.T) {
	words, lines := ParseTSV("")
	assert.Nil(t, words)
	assert.Nil(t, lines)
}

func TestParseTSVSkipsEmptyWordText(t *testing.T) {
	input := tsv(
		tsvHeader,
		"5\t1\t1\t1\t1\t1\t10\t20\t40\t30\t90\t",
		"5\t1\t1\t1\t1\t2\t60\t20\t40\t30\t90\treal",
	)

	words, _ := ParseTSV(input)
	require.Len(t, words, 1)
	assert.Equal(t, "real", words[0].Text)
}
