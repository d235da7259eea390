package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/veille-labs/veille/internal/feed"
)

// Hacker News API endpoints
const (
	apiBase       = "https://hacker-news.firebaseio.com/v0"
	topStoriesURL = apiBase + "/topstories.json"
	itemURL       = apiBase + "/item/%d.json"
)

// HNItem is one Hacker News story as the API returns it.
type HNItem struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	By    string `json:"by"`
	Time  int64  `json:"time"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

func main() {
	var (
		limit = flag.Int("limit", 100, "Number of stories to fetch")
		out   = flag.String("out", "testdata/hn_posts.jsonl", "Output JSONL file")
	)
	flag.Parse()

	log.Printf("Fetching top %d Hacker News stories...", *limit)

	ids, err := topStories()
	if err != nil {
		log.Fatal("Failed to list top stories: ", err)
	}
	if *limit < len(ids) {
		ids = ids[:*limit]
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal("Failed to create output directory: ", err)
		}
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal("Failed to create output file: ", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	written := 0

	for i, id := range ids {
		item, err := getItem(id)
		if err != nil {
			log.Printf("Skipping item %d: %v", id, err)
			continue
		}
		if item.Type != "story" || item.Title == "" {
			continue
		}

		body := item.Title
		if text := extractText(item.Text); text != "" {
			body += ". " + text
		}

		doc := feed.RawDocument{
			URL:       fmt.Sprintf("https://news.ycombinator.com/item?id=%d", item.ID),
			Title:     item.Title,
			Body:      body,
			Author:    item.By,
			Platform:  "hackernews",
			CreatedAt: time.Unix(item.Time, 0).UTC(),
		}
		if err := encoder.Encode(doc); err != nil {
			log.Printf("Failed to encode item %d: %v", id, err)
			continue
		}

		written++
		if (i+1)%10 == 0 {
			log.Printf("Fetched %d/%d stories...", i+1, len(ids))
		}

		// Be nice to the API
		time.Sleep(50 * time.Millisecond)
	}

	log.Printf("Wrote %d documents to %s", written, *out)
}

func topStories() ([]int64, error) {
	resp, err := httpClient.Get(topStoriesURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ids []int64
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func getItem(id int64) (*HNItem, error) {
	resp, err := httpClient.Get(fmt.Sprintf(itemURL, id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var item HNItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// extractText flattens the HTML fragment Hacker News returns for self
// posts into plain text.
func extractText(fragment string) string {
	if fragment == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}
