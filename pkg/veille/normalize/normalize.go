// Package normalize turns raw post text into clean lowercase prose:
// markup, URLs, digits and punctuation removed, whitespace collapsed.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern = regexp.MustCompile(`<[^>]*>`)
)

// Clean normalizes an arbitrary raw string (title or body). It is total:
// any input, including empty or whitespace-only text, yields a valid
// (possibly empty) result and never an error.
func Clean(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	text := stripHTML(s)
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = keepLetters(text)

	return strings.Join(strings.Fields(text), " ")
}

// stripHTML extracts the text content of a markup fragment, skipping
// script/style/noscript/iframe subtrees. Entity references are decoded by
// the parser.
func stripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// Parsing only fails on reader errors, which strings.Reader
		// never produces; strip tags textually if it ever does.
		return tagPattern.ReplaceAllString(s, " ")
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return buf.String()
}

// keepLetters maps every rune that is not a Unicode letter to a space, so
// punctuation and digits become token boundaries while accented letters
// survive.
func keepLetters(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}
