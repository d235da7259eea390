package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/veille-labs/veille/pkg/veille/internalerr"
)

//go:embed stopwords.yaml
var defaultStopwordsYAML []byte

// Stopwords holds the per-language stopword lists. Filtering applies the
// union of both lists to every document, whatever language it is in.
type Stopwords struct {
	English []string `yaml:"english"`
	French  []string `yaml:"french"`
}

// All returns both lists combined, in english-then-french order.
func (s *Stopwords) All() []string {
	terms := make([]string, 0, len(s.English)+len(s.French))
	terms = append(terms, s.English...)
	terms = append(terms, s.French...)
	return terms
}

// DefaultStopwords returns the lists compiled into the binary, the NLTK
// english and french corpora.
func DefaultStopwords() *Stopwords {
	var sw Stopwords
	if err := yaml.Unmarshal(defaultStopwordsYAML, &sw); err != nil {
		panic("config: embedded stopwords.yaml: " + err.Error())
	}
	return &sw
}

// LoadStopwords loads stopword lists from a YAML file.
func LoadStopwords(path string) (*Stopwords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sw Stopwords
	if err := yaml.Unmarshal(data, &sw); err != nil {
		return nil, err
	}

	if len(sw.English)+len(sw.French) == 0 {
		return nil, fmt.Errorf("%w: %s contains no stopwords", internalerr.ErrInvalidConfig, path)
	}

	return &sw, nil
}
