package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// RawDocument is one scraped social post as it arrives from a collector
// feed, before any enrichment.
type RawDocument struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Platform  string    `json:"source_platform"`
	CreatedAt time.Time `json:"created_at"`
}

// LoadFromJSONL loads raw documents from a JSONL feed file. Malformed
// lines and lines without a url are logged and skipped; a file that yields
// no valid documents is an error.
func LoadFromJSONL(path string, logger *slog.Logger) ([]RawDocument, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", path, err)
	}

	var docs []RawDocument
	lines := strings.Split(string(data), "\n")

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var doc RawDocument
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			logger.Warn("skipping malformed feed line", "file", path, "line", i+1, "err", err)
			continue
		}
		if doc.URL == "" {
			logger.Warn("skipping feed line without url", "file", path, "line", i+1)
			continue
		}
		if doc.Author == "" {
			doc.Author = "unknown"
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no valid documents found in %s", path)
	}

	return docs, nil
}
