package search

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/veille-labs/veille/pkg/veille/internalerr"
)

// fakeIndex is a minimal Elasticsearch-shaped test double.
type fakeIndex struct {
	mu         sync.Mutex
	name       string
	created    bool
	createPuts int
	bulkCalls  int
	bulkIDs    []string
	failIDs    map[string]bool
	docPuts    []string
	docStatus  int
}

func newFakeIndex(name string) *fakeIndex {
	return &fakeIndex{name: name, failIDs: map[string]bool{}, docStatus: http.StatusCreated}
}

func (f *fakeIndex) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodHead && r.URL.Path == "/"+f.name:
			if f.created {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}

		case r.Method == http.MethodPut && r.URL.Path == "/"+f.name:
			f.created = true
			f.createPuts++
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodPost && r.URL.Path == "/_bulk":
			f.bulkCalls++
			var items []map[string]any
			scanner := bufio.NewScanner(r.Body)
			line := 0
			for scanner.Scan() {
				if line%2 == 0 {
					var action struct {
						Index struct {
							ID string `json:"_id"`
						} `json:"index"`
					}
					if err := json.Unmarshal(scanner.Bytes(), &action); err == nil {
						id := action.Index.ID
						f.bulkIDs = append(f.bulkIDs, id)
						if f.failIDs[id] {
							items = append(items, map[string]any{
								"index": map[string]any{
									"_id":    id,
									"status": 400,
									"error": map[string]any{
										"type":   "mapper_parsing_exception",
										"reason": "field rejected",
									},
								},
							})
						} else {
							items = append(items, map[string]any{
								"index": map[string]any{"_id": id, "status": 201},
							})
						}
					}
				}
				line++
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"took":   3,
				"errors": len(f.failIDs) > 0,
				"items":  items,
			})

		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/_doc/"):
			f.docPuts = append(f.docPuts, r.URL.EscapedPath())
			w.WriteHeader(f.docStatus)

		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient("", "idx"); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("empty endpoint: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewClient("http://localhost:9200", ""); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("empty index: expected ErrInvalidConfig, got %v", err)
	}
}

func TestIndexExistsAndCreate(t *testing.T) {
	fake := newFakeIndex("posts")
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c, err := NewClient(srv.URL, "posts")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	exists, err := c.IndexExists(ctx)
	if err != nil {
		t.Fatalf("IndexExists: %v", err)
	}
	if exists {
		t.Error("index should not exist yet")
	}

	if err := c.CreateIndex(ctx); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	exists, err = c.IndexExists(ctx)
	if err != nil {
		t.Fatalf("IndexExists after create: %v", err)
	}
	if !exists {
		t.Error("index should exist after create")
	}
	if fake.createPuts != 1 {
		t.Errorf("expected 1 create call, got %d", fake.createPuts)
	}
}

func TestBulkReportsItemOutcomes(t *testing.T) {
	fake := newFakeIndex("posts")
	fake.created = true
	fake.failIDs["https://posts.example/2"] = true
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c, err := NewClient(srv.URL, "posts")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	docs := []Document{
		{URL: "https://posts.example/1", Title: "one", Language: "en", Sentiment: "neutral", IndexedAt: time.Now().UTC()},
		{URL: "https://posts.example/2", Title: "two", Language: "en", Sentiment: "neutral", IndexedAt: time.Now().UTC()},
		{URL: "https://posts.example/3", Title: "three", Language: "en", Sentiment: "neutral", IndexedAt: time.Now().UTC()},
	}

	res, err := c.Bulk(context.Background(), docs)
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}

	if res.Indexed != 2 {
		t.Errorf("Indexed = %d, want 2", res.Indexed)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("Failed = %d items, want 1", len(res.Failed))
	}
	if res.Failed[0].ID != "https://posts.example/2" {
		t.Errorf("failed id = %q", res.Failed[0].ID)
	}
	if !strings.Contains(res.Failed[0].Reason, "mapper_parsing_exception") {
		t.Errorf("failure reason should carry the index error type, got %q", res.Failed[0].Reason)
	}

	if len(fake.bulkIDs) != 3 {
		t.Errorf("server saw %d action lines, want 3", len(fake.bulkIDs))
	}
}

func TestBulkWithNoDocuments(t *testing.T) {
	c, err := NewClient("http://localhost:9200", "posts")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	res, err := c.Bulk(context.Background(), nil)
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if res.Indexed != 0 || len(res.Failed) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestIndexDocEscapesURL(t *testing.T) {
	fake := newFakeIndex("posts")
	fake.created = true
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c, err := NewClient(srv.URL, "posts")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	doc := Document{URL: "https://posts.example/a/b?id=1", Title: "t", IndexedAt: time.Now().UTC()}
	if err := c.IndexDoc(context.Background(), doc); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}

	if len(fake.docPuts) != 1 {
		t.Fatalf("expected 1 doc put, got %d", len(fake.docPuts))
	}
	if strings.Contains(strings.TrimPrefix(fake.docPuts[0], "/posts/_doc/"), "/") {
		t.Errorf("document id should be a single path segment, got %q", fake.docPuts[0])
	}
}

func TestPingUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c, err := NewClient(endpoint, "posts")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, internalerr.ErrSearchUnavailable) {
		t.Errorf("expected ErrSearchUnavailable, got %v", err)
	}
}
