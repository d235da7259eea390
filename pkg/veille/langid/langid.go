// Package langid classifies the dominant language of normalized text.
package langid

import (
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// Unknown is returned whenever the language cannot be determined.
const Unknown = "unknown"

// Detector classifies text into an ISO 639-1 code, examining at most
// SampleLen runes. Text shorter than MinTextLen runes is reported as
// Unknown without running detection.
type Detector struct {
	SampleLen  int
	MinTextLen int
}

// New returns a detector with the standard policy: a 1000-rune sample,
// three-rune minimum.
func New() *Detector {
	return &Detector{SampleLen: 1000, MinTextLen: 3}
}

// Detect returns the ISO 639-1 code of the dominant language, or Unknown
// for short, empty, or ambiguous input. It never fails: any internal
// detection failure maps to Unknown.
func (d *Detector) Detect(text string) (code string) {
	defer func() {
		if recover() != nil {
			code = Unknown
		}
	}()

	if utf8.RuneCountInString(text) < d.MinTextLen {
		return Unknown
	}

	info := whatlanggo.Detect(truncateRunes(text, d.SampleLen))
	if info.Confidence == 0 {
		return Unknown
	}
	short := whatlanggo.LangToStringShort(info.Lang)
	if short == "" {
		return Unknown
	}
	return short
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
