package search

import (
	"strings"
	"unicode"

	"github.com/yanyiwu/gojieba"
)

// Tokenizer splits query text into the terms used by the sparse half
// of hybrid search.
type Tokenizer interface {
	Tokenize(text string) string
}

// JiebaTokenizer segments CJK text with gojieba and falls back to
// passing non-CJK text through unsegmented, since Elasticsearch's own
// analyzer already tokenizes whitespace-separated languages
// adequately.
type JiebaTokenizer struct {
	jieba *gojieba.Jieba
}

// NewJiebaTokenizer loads the default dictionary set.
func NewJiebaTokenizer() *JiebaTokenizer {
	return &JiebaTokenizer{jieba: gojieba.NewJieba()}
}

// Close releases the underlying CGO dictionary resources.
func (t *JiebaTokenizer) Close() {
	t.jieba.Free()
}

// Tokenize implements Tokenizer.
func (t *JiebaTokenizer) Tokenize(text string) string {
	if !containsCJK(text) {
		return text
	}
	words := t.jieba.CutForSearch(text, true)
	return strings.Join(words, " ")
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
