package feed

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadFromJSONL(t *testing.T) {
	path := writeFeed(t, strings.Join([]string{
		`{"url":"https://posts.example/1","title":"First","body":"hello","author":"alice","source_platform":"twitter","created_at":"2024-06-01T10:00:00Z"}`,
		`{"url":"https://posts.example/2","title":"Second","body":"world","author":"bob","source_platform":"reddit","created_at":"2024-06-01T11:00:00Z"}`,
	}, "\n"))

	docs, err := LoadFromJSONL(path, quietLogger())
	if err != nil {
		t.Fatalf("LoadFromJSONL: %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].URL != "https://posts.example/1" || docs[0].Platform != "twitter" {
		t.Errorf("unexpected first document: %+v", docs[0])
	}
	if docs[1].Author != "bob" {
		t.Errorf("unexpected author: %q", docs[1].Author)
	}
	if docs[0].CreatedAt.IsZero() {
		t.Error("created_at should be parsed")
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := writeFeed(t, strings.Join([]string{
		`{"url":"https://posts.example/1","title":"ok"}`,
		`{not json at all`,
		``,
		`{"title":"missing url"}`,
		`{"url":"https://posts.example/2","title":"also ok"}`,
	}, "\n"))

	docs, err := LoadFromJSONL(path, quietLogger())
	if err != nil {
		t.Fatalf("LoadFromJSONL: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 valid documents, got %d", len(docs))
	}
}

func TestLoadDefaultsMissingAuthor(t *testing.T) {
	path := writeFeed(t, `{"url":"https://posts.example/1","title":"no author"}`)

	docs, err := LoadFromJSONL(path, quietLogger())
	if err != nil {
		t.Fatalf("LoadFromJSONL: %v", err)
	}
	if docs[0].Author != "unknown" {
		t.Errorf("Author = %q, want %q", docs[0].Author, "unknown")
	}
}

func TestLoadRejectsEmptyFeed(t *testing.T) {
	path := writeFeed(t, "\n{broken\n\n")

	if _, err := LoadFromJSONL(path, quietLogger()); err == nil {
		t.Error("expected an error for a feed with no valid documents")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFromJSONL(filepath.Join(t.TempDir(), "absent.jsonl"), quietLogger()); err == nil {
		t.Error("expected an error for a missing file")
	}
}
