package textseg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCutChinese(t *testing.T) {
	tokens := Cut("我爱北京天安门")
	assert.NotEmpty(t, tokens)
	assert.Contains(t, tokens, "北京")
}

func TestCutMixed(t *testing.T) {
	// Latin tokens come back lowercased; the same happens at query time,
	// so matching is unaffected.
	tokens := Cut("Python 异步编程入门")
	assert.Contains(t, tokens, "python")
	assert.Contains(t, tokens, "编程")
}

func TestCutEmpty(t *testing.T) {
	assert.Nil(t, Cut(""))
	assert.Nil(t, Cut("   "))
}

func TestIndexQuerySymmetry(t *testing.T) {
	// The same text segmented twice yields the same tokens, so a query for
	// the indexed form always matches.
	text := "深度学习框架对比"
	assert.Equal(t, JoinForIndex(text), JoinForIndex(text))
	assert.Equal(t, Cut(text), Cut(text))
}
