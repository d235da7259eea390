package tokenize

import (
	"strings"
	"unicode/utf8"
)

// minTokenLen is the shortest surface form that carries signal; anything
// shorter is dropped before stopword filtering.
const minTokenLen = 3

// Lemmatizer reduces a word to its canonical dictionary form. Unknown
// words must come back unchanged.
type Lemmatizer interface {
	Lemma(word string) string
}

// LemmaFunc adapts a plain function to the Lemmatizer interface.
type LemmaFunc func(word string) string

// Lemma implements Lemmatizer.
func (f LemmaFunc) Lemma(word string) string { return f(word) }

// Tokenizer splits normalized text into lemmas, filtering short tokens
// and stopwords.
type Tokenizer struct {
	stopwords map[string]struct{}
	lemmas    Lemmatizer
}

// New creates a tokenizer with the given stopword list and lemmatizer.
// A nil lemmatizer leaves tokens as their surface forms.
func New(stopwords []string, lem Lemmatizer) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopwords: stops, lemmas: lem}
}

// Tokens turns normalized text into an ordered lemma sequence. Order is
// first occurrence in the source text and duplicates are retained. Tokens
// shorter than three runes and stopword-set members are dropped; the
// stopword test runs on the surface form, before lemmatization.
func (t *Tokenizer) Tokens(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(text) {
		word = strings.ToLower(word)
		if utf8.RuneCountInString(word) < minTokenLen {
			continue
		}
		if t.isStopword(word) {
			continue
		}
		if t.lemmas != nil {
			word = t.lemmas.Lemma(word)
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func (t *Tokenizer) isStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

// AddStopword adds a word to the stopword set.
func (t *Tokenizer) AddStopword(word string) {
	t.stopwords[strings.ToLower(word)] = struct{}{}
}

// RemoveStopword removes a word from the stopword set.
func (t *Tokenizer) RemoveStopword(word string) {
	delete(t.stopwords, strings.ToLower(word))
}
