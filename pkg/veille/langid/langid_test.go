package langid

import (
	"strings"
	"testing"
)

func TestDetectEnglish(t *testing.T) {
	d := New()
	text := "the quick brown fox jumps over the lazy dog and runs far away into the green hills"
	if got := d.Detect(text); got != "en" {
		t.Errorf("Detect() = %q, want %q", got, "en")
	}
}

func TestDetectFrench(t *testing.T) {
	d := New()
	text := "c est vraiment très énervant quand les gens ne répondent jamais aux messages qu on leur envoie"
	if got := d.Detect(text); got != "fr" {
		t.Errorf("Detect() = %q, want %q", got, "fr")
	}
}

func TestDetectShortTextIsUnknown(t *testing.T) {
	d := New()
	for _, text := range []string{"", "hi", "ab"} {
		if got := d.Detect(text); got != Unknown {
			t.Errorf("Detect(%q) = %q, want %q", text, got, Unknown)
		}
	}
}

func TestDetectHonoursMinTextLen(t *testing.T) {
	d := &Detector{SampleLen: 1000, MinTextLen: 50}
	if got := d.Detect("hello world"); got != Unknown {
		t.Errorf("Detect() = %q, want %q below the minimum length", got, Unknown)
	}
}

func TestDetectSampleIsBounded(t *testing.T) {
	d := New()
	// English for well past the sample window, noise after it; the noise
	// must not influence the result.
	text := strings.Repeat("the quick brown fox jumps over the lazy dog and runs far away ", 30) +
		strings.Repeat("zzxqj vplk qqrm ", 200)
	if got := d.Detect(text); got != "en" {
		t.Errorf("Detect() = %q, want %q from the sampled prefix", got, "en")
	}
}

func TestDetectDeterministic(t *testing.T) {
	d := New()
	text := "social media posts can be very hostile and aggressive toward minorities"
	first := d.Detect(text)
	for i := 0; i < 5; i++ {
		if got := d.Detect(text); got != first {
			t.Fatalf("Detect() flapped between %q and %q", first, got)
		}
	}
}
