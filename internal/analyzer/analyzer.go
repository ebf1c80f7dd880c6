// Package analyzer normalises raw document and query text into token
// sequences. It lower-cases input, strips URLs, splits on non-alphanumeric
// boundaries, removes per-language stop words, and stems English tokens with
// the Porter stemmer. Indexing and query parsing both route through Analyze
// so the two sides always agree on the vocabulary.
package analyzer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// Language tags the text being analysed. Unknown falls back to English
// stop words with no stemming penalty worse than over-stemming.
type Language string

const (
	English Language = "english"
	Spanish Language = "spanish"
	Unknown Language = "unknown"
)

// ParseLanguage maps free-form language labels (en, english, es, ...) to a
// supported Language, defaulting to Unknown.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "eng", "english":
		return English
	case "es", "spa", "spanish":
		return Spanish
	default:
		return Unknown
	}
}

// minTokenLength drops fragments like "a" and "of" remnants before the
// stop-word pass even sees them.
const minTokenLength = 3

var urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)

// Analyze breaks text into an ordered slice of normalised terms. It is a
// pure function: identical input always yields an identical token sequence,
// and empty or non-alphabetic input yields an empty slice, never an error.
func Analyze(text string, lang Language) []string {
	if text == "" {
		return nil
	}
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, " ")

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	stop := stopWordsFor(lang)
	tokens := make([]string, 0, len(words)/2)
	for _, word := range words {
		if utf8.RuneCountInString(word) < minTokenLength {
			continue
		}
		if _, isStop := stop[word]; isStop {
			continue
		}
		stemmed := stem(word, lang)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, stemmed)
	}
	return tokens
}

// stem reduces a token to its canonical root. Only English has a stemmer;
// other languages pass through unchanged so their vocabulary stays exact.
func stem(word string, lang Language) string {
	switch lang {
	case Spanish:
		return word
	default:
		return porterstemmer.StemString(word)
	}
}
