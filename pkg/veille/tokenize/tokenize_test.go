package tokenize

import (
	"testing"
)

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTokensDropsShortTokens(t *testing.T) {
	tok := New(nil, nil)

	got := tok.Tokens("go is ok but golang works fine")
	want := []string{"but", "golang", "works", "fine"}
	if !equalTokens(got, want) {
		t.Errorf("Tokens() = %q, want %q", got, want)
	}
}

func TestTokensShortByRunesNotBytes(t *testing.T) {
	tok := New(nil, nil)

	// "ça" is two runes but three bytes; it must still be dropped.
	got := tok.Tokens("ça marche")
	want := []string{"marche"}
	if !equalTokens(got, want) {
		t.Errorf("Tokens() = %q, want %q", got, want)
	}
}

func TestTokensDropsStopwords(t *testing.T) {
	tok := New([]string{"the", "and", "est", "vraiment"}, nil)

	got := tok.Tokens("the cat and est vraiment dog")
	want := []string{"cat", "dog"}
	if !equalTokens(got, want) {
		t.Errorf("Tokens() = %q, want %q", got, want)
	}
}

func TestTokensOrderAndDuplicates(t *testing.T) {
	lem := LemmaFunc(func(w string) string {
		if w == "cats" {
			return "cat"
		}
		return w
	})
	tok := New(nil, lem)

	got := tok.Tokens("cats love cats forever")
	want := []string{"cat", "love", "cat", "forever"}
	if !equalTokens(got, want) {
		t.Errorf("Tokens() = %q, want %q", got, want)
	}
}

func TestTokensStopwordCheckedOnSurfaceForm(t *testing.T) {
	lem := LemmaFunc(func(w string) string {
		if w == "running" {
			return "run"
		}
		return w
	})

	// "running" listed as a stopword drops the token before lemmatization.
	tok := New([]string{"running"}, lem)
	if got := tok.Tokens("keep running daily"); !equalTokens(got, []string{"keep", "daily"}) {
		t.Errorf("Tokens() = %q, want stopword dropped on surface form", got)
	}

	// Only the lemma being a stopword does not drop the surface token.
	tok = New([]string{"run"}, lem)
	if got := tok.Tokens("keep running daily"); !equalTokens(got, []string{"keep", "run", "daily"}) {
		t.Errorf("Tokens() = %q, want lemma kept when only lemma is a stopword", got)
	}
}

func TestTokensUnknownWordsPassThrough(t *testing.T) {
	tok := New(nil, LemmaFunc(func(w string) string { return w }))

	got := tok.Tokens("zzqy flurble")
	want := []string{"zzqy", "flurble"}
	if !equalTokens(got, want) {
		t.Errorf("Tokens() = %q, want %q", got, want)
	}
}

func TestTokensEmptyInput(t *testing.T) {
	tok := New([]string{"the"}, nil)
	if got := tok.Tokens(""); len(got) != 0 {
		t.Errorf("Tokens(\"\") = %q, want empty", got)
	}
}

func TestAddRemoveStopword(t *testing.T) {
	tok := New([]string{"noise"}, nil)

	if got := tok.Tokens("noise signal"); !equalTokens(got, []string{"signal"}) {
		t.Errorf("Tokens() = %q, want noise filtered", got)
	}

	tok.RemoveStopword("noise")
	if got := tok.Tokens("noise signal"); !equalTokens(got, []string{"noise", "signal"}) {
		t.Errorf("Tokens() = %q, want noise kept after removal", got)
	}

	tok.AddStopword("NOISE")
	if got := tok.Tokens("noise signal"); !equalTokens(got, []string{"signal"}) {
		t.Errorf("Tokens() = %q, want noise filtered after re-adding", got)
	}
}
