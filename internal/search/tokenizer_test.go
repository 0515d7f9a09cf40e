package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsCJK_detectsHanCharacters(t *testing.T) {
	assert.True(t, containsCJK("你好世界"))
	assert.True(t, containsCJK("mixed 中文 text"))
}

func TestContainsCJK_falseForNonCJKText(t *testing.T) {
	assert.False(t, containsCJK("hello world"))
	assert.False(t, containsCJK(""))
}
