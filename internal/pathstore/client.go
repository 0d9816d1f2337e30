// Package pathstore keeps annotations in a remote pathstore key/value
// service. Annotations live under ann/{doc}/{id}, so listing a document is a
// single prefix scan.
package pathstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/docanchor/internal/annotation"
)

// Client speaks the pathstore HTTP API in terms of annotations.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// kvWrite is the body for PUT /kv/{key}.
type kvWrite struct {
	Value     annotation.Annotation `json:"value"`
	MergeMode string                `json:"merge_mode"`
	Source    string                `json:"source,omitempty"`
}

// kvNode is one stored value, as returned by GET /kv/{key} and prefix scans.
type kvNode struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

// annotationKey escapes both segments so ids can never widen a prefix scan.
func annotationKey(docID, id string) string {
	return annotation.Key(url.PathEscape(docID), url.PathEscape(id))
}

// PutAnnotation stores a, replacing any earlier version. source tags the
// write for the service's audit trail.
func (c *Client) PutAnnotation(ctx context.Context, a annotation.Annotation, source string) error {
	body, err := json.Marshal(kvWrite{Value: a, MergeMode: "replace", Source: source})
	if err != nil {
		return fmt.Errorf("marshal annotation: %w", err)
	}
	key := annotationKey(a.DocID, a.ID)
	resp, err := c.do(ctx, http.MethodPut, "/kv/"+key, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("put annotation %s: %w", a.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("put annotation "+a.ID, resp)
	}
	return nil
}

// GetAnnotation fetches one annotation. A missing key is reported as
// annotation.ErrNotFound.
func (c *Client) GetAnnotation(ctx context.Context, docID, id string) (annotation.Annotation, error) {
	resp, err := c.do(ctx, http.MethodGet, "/kv/"+annotationKey(docID, id), nil)
	if err != nil {
		return annotation.Annotation{}, fmt.Errorf("get annotation %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return annotation.Annotation{}, fmt.Errorf("get annotation %s: %w", id, annotation.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return annotation.Annotation{}, statusError("get annotation "+id, resp)
	}

	var node kvNode
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return annotation.Annotation{}, fmt.Errorf("decode annotation %s: %w", id, err)
	}
	var a annotation.Annotation
	if err := json.Unmarshal(node.Value, &a); err != nil {
		return annotation.Annotation{}, fmt.Errorf("decode annotation %s: %w", id, err)
	}
	return a, nil
}

// ListAnnotations scans every annotation of docID, in the order the service
// returns them.
func (c *Client) ListAnnotations(ctx context.Context, docID string) ([]annotation.Annotation, error) {
	prefix := annotation.Prefix(url.PathEscape(docID))
	resp, err := c.do(ctx, http.MethodGet, "/kv/"+prefix+"*", nil)
	if err != nil {
		return nil, fmt.Errorf("list annotations %s: %w", docID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list annotations "+docID, resp)
	}

	var result struct {
		Nodes []kvNode `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode annotations %s: %w", docID, err)
	}
	out := make([]annotation.Annotation, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		var a annotation.Annotation
		if err := json.Unmarshal(n.Value, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", n.Key, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// DeleteAnnotation removes one annotation. The service does not report
// whether the key existed.
func (c *Client) DeleteAnnotation(ctx context.Context, docID, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/kv/"+annotationKey(docID, id), nil)
	if err != nil {
		return fmt.Errorf("delete annotation %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("delete annotation "+id, resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.httpClient.Do(req)
}

// Close drops idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
