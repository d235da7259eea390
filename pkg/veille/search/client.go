package search

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veille-labs/veille/pkg/veille/internalerr"
)

//go:embed mapping.json
var mappingJSON []byte

// DefaultIndex is the index name used when the configuration leaves it
// unset.
const DefaultIndex = "harcelement_posts"

// Document is the shape stored in the search index.
type Document struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Author    string     `json:"author"`
	Date      *time.Time `json:"date,omitempty"`
	URL       string     `json:"url"`
	Language  string     `json:"language"`
	Sentiment string     `json:"sentiment"`
	Score     *float64   `json:"score"`
	IndexedAt time.Time  `json:"indexed_at"`
}

// ItemFailure describes one document the index rejected.
type ItemFailure struct {
	ID     string
	Reason string
}

// BulkResult summarizes one _bulk submission.
type BulkResult struct {
	Indexed int
	Failed  []ItemFailure
}

// Client is a minimal HTTP client for an Elasticsearch-compatible search
// endpoint. It covers exactly the calls the exporter needs.
type Client struct {
	endpoint string
	index    string
	http     *http.Client
}

// NewClient creates a reusable client for one index.
func NewClient(endpoint, index string) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty search endpoint", internalerr.ErrInvalidConfig)
	}
	if index == "" {
		return nil, fmt.Errorf("%w: empty index name", internalerr.ErrInvalidConfig)
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		index:    index,
		http:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Index returns the index name this client writes to.
func (c *Client) Index() string { return c.index }

// Ping checks endpoint reachability.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrSearchUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping status %s", internalerr.ErrSearchUnavailable, resp.Status)
	}
	return nil
}

// IndexExists reports whether the index is already present.
func (c *Client) IndexExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint+"/"+c.index, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", internalerr.ErrSearchUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("checking index %s: unexpected status %s", c.index, resp.Status)
	}
}

// CreateIndex creates the index with the embedded mapping. The caller is
// expected to check IndexExists first; an existing index is never touched.
func (c *Client) CreateIndex(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint+"/"+c.index, bytes.NewReader(mappingJSON))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("creating index %s: status %s: %s", c.index, resp.Status, strings.TrimSpace(string(body)))
	}
	drain(resp.Body)
	return nil
}

// bulkResponse is the subset of the _bulk reply the exporter cares about.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Bulk submits one batch of documents, keyed by url, and reports item-level
// outcomes. Re-submitting a document overwrites the previous copy.
func (c *Client) Bulk(ctx context.Context, docs []Document) (BulkResult, error) {
	if len(docs) == 0 {
		return BulkResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		action := map[string]map[string]string{
			"index": {"_index": c.index, "_id": d.URL},
		}
		if err := enc.Encode(action); err != nil {
			return BulkResult{}, err
		}
		if err := enc.Encode(d); err != nil {
			return BulkResult{}, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/_bulk", &buf)
	if err != nil {
		return BulkResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.http.Do(req)
	if err != nil {
		return BulkResult{}, fmt.Errorf("%w: %v", internalerr.ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return BulkResult{}, fmt.Errorf("reading bulk response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return BulkResult{}, fmt.Errorf("bulk request: status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed bulkResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return BulkResult{}, fmt.Errorf("decoding bulk response: %w", err)
	}

	var result BulkResult
	for _, item := range parsed.Items {
		for _, outcome := range item {
			if outcome.Status < 300 {
				result.Indexed++
				continue
			}
			reason := fmt.Sprintf("status %d", outcome.Status)
			if outcome.Error != nil {
				reason = outcome.Error.Type + ": " + outcome.Error.Reason
			}
			result.Failed = append(result.Failed, ItemFailure{ID: outcome.ID, Reason: reason})
		}
	}
	return result, nil
}

// IndexDoc stores a single document under its url id.
func (c *Client) IndexDoc(ctx context.Context, d Document) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}

	target := c.endpoint + "/" + c.index + "/_doc/" + url.PathEscape(d.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrSearchUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("indexing %s: status %s", d.URL, resp.Status)
	}
	return nil
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}

func drainAndClose(rc io.ReadCloser) {
	drain(rc)
	_ = rc.Close()
}
