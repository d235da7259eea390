package tokenize

import (
	"fmt"

	"github.com/aaaton/golem/v4"
	endict "github.com/aaaton/golem/v4/dicts/en"
	frdict "github.com/aaaton/golem/v4/dicts/fr"
)

// dictChain tries each dictionary in order and keeps the first one that
// actually maps the word; words unknown to every dictionary are their own
// lemma.
type dictChain struct {
	dicts []*golem.Lemmatizer
}

// NewLemmatizer builds the production lemmatizer: English first, then
// French, matching the combined multilingual stopword set used upstream.
func NewLemmatizer() (Lemmatizer, error) {
	en, err := golem.New(endict.New())
	if err != nil {
		return nil, fmt.Errorf("load english lemma dictionary: %w", err)
	}
	fr, err := golem.New(frdict.New())
	if err != nil {
		return nil, fmt.Errorf("load french lemma dictionary: %w", err)
	}
	return &dictChain{dicts: []*golem.Lemmatizer{en, fr}}, nil
}

// Lemma implements Lemmatizer.
func (c *dictChain) Lemma(word string) string {
	for _, d := range c.dicts {
		if lemma := d.Lemma(word); lemma != word {
			return lemma
		}
	}
	return word
}
