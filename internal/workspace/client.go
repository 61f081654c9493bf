package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"docflow/internal/blocks"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"

	// appendChunkSize is the service's per-request block limit.
	appendChunkSize = 100

	// defaultRequestTimeout bounds a single API call so a hung connection
	// cannot stall a publish worker indefinitely.
	defaultRequestTimeout = 30 * time.Second
)

// Client talks to the workspace's REST API. All calls pass through a
// shared rate limiter, so one Client should be reused across the run.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mostly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit overrides the requests-per-second ceiling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(3), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Preflight verifies the credential and access to the parent page before
// any synthesis work is spent.
func (c *Client) Preflight(ctx context.Context, parentID string) error {
	if err := c.do(ctx, http.MethodGet, "/v1/users/me", nil, nil); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+parentID, nil, nil); err != nil {
		return fmt.Errorf("parent page %s is not accessible: %w", parentID, err)
	}
	return nil
}

// CreatePage creates a page under parentID carrying the identifying
// properties, then appends the content in chunks. Returns the new page ID.
func (c *Client) CreatePage(ctx context.Context, parentID, title, nodeID, fingerprint, icon string, seq []blocks.Block) (string, error) {
	chunks := blocks.ChunkBlocks(seq, appendChunkSize)

	if icon == "" {
		icon = "📄"
	}
	body := map[string]any{
		"parent":     map[string]any{"page_id": parentID},
		"icon":       map[string]any{"type": "emoji", "emoji": icon},
		"properties": pageProperties(title, nodeID, fingerprint),
	}
	if len(chunks) > 0 {
		body["children"] = blockPayloads(chunks[0])
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/pages", body, &created); err != nil {
		return "", err
	}

	for _, chunk := range chunks[1:] {
		if err := c.appendChildren(ctx, created.ID, chunk); err != nil {
			return "", err
		}
	}
	return created.ID, nil
}

// UpdatePageBlocks replaces a page's content: existing blocks are removed
// (child pages are preserved, they are structure rather than content) and
// the new sequence is appended in order.
func (c *Client) UpdatePageBlocks(ctx context.Context, pageID string, seq []blocks.Block) error {
	existing, err := c.listChildBlocks(ctx, pageID)
	if err != nil {
		return err
	}
	for _, b := range existing {
		if b.Type == "child_page" {
			continue
		}
		if err := c.do(ctx, http.MethodDelete, "/v1/blocks/"+b.ID, nil, nil); err != nil {
			return err
		}
	}
	for _, chunk := range blocks.ChunkBlocks(seq, appendChunkSize) {
		if err := c.appendChildren(ctx, pageID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// SetFingerprint records a new content fingerprint on the page.
func (c *Client) SetFingerprint(ctx context.Context, pageID, fingerprint string) error {
	body := map[string]any{
		"properties": map[string]any{
			PropFingerprint: textProperty(fingerprint),
		},
	}
	return c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil)
}

// MovePage re-parents a page without touching its content.
func (c *Client) MovePage(ctx context.Context, pageID, newParentID string) error {
	body := map[string]any{
		"parent": map[string]any{"page_id": newParentID},
	}
	return c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil)
}

// ArchivePage removes a page from view. Used only by explicit pruning.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	body := map[string]any{"archived": true}
	return c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil)
}

// ListChildren returns the child pages of a page with their identifying
// properties resolved. Blocks that are not child pages are not returned.
func (c *Client) ListChildren(ctx context.Context, pageID string) ([]RemotePage, error) {
	blocksList, err := c.listChildBlocks(ctx, pageID)
	if err != nil {
		return nil, err
	}

	var pages []RemotePage
	for _, b := range blocksList {
		if b.Type != "child_page" {
			continue
		}
		page, err := c.RetrievePage(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		page.ParentID = pageID
		pages = append(pages, page)
	}
	return pages, nil
}

type childBlock struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func (c *Client) listChildBlocks(ctx context.Context, pageID string) ([]childBlock, error) {
	var all []childBlock
	cursor := ""
	for {
		path := "/v1/blocks/" + pageID + "/children?page_size=100"
		if cursor != "" {
			path += "&start_cursor=" + url.QueryEscape(cursor)
		}
		var page struct {
			Results    []childBlock `json:"results"`
			HasMore    bool         `json:"has_more"`
			NextCursor string       `json:"next_cursor"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if !page.HasMore {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// RetrievePage fetches a single page with its identifying properties
// resolved. ParentID is left empty; the caller knows where it looked.
func (c *Client) RetrievePage(ctx context.Context, pageID string) (RemotePage, error) {
	var raw struct {
		ID         string                     `json:"id"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &raw); err != nil {
		return RemotePage{}, err
	}
	return RemotePage{
		ID:          raw.ID,
		Title:       titleFromProperties(raw.Properties),
		NodeID:      textFromProperty(raw.Properties[PropNodeID]),
		Fingerprint: textFromProperty(raw.Properties[PropFingerprint]),
	}, nil
}

func (c *Client) appendChildren(ctx context.Context, pageID string, chunk []blocks.Block) error {
	body := map[string]any{"children": blockPayloads(chunk)}
	return c.do(ctx, http.MethodPatch, "/v1/blocks/"+pageID+"/children", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: ServiceFailure, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{
			Kind:    classifyStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: string(respBody),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Kind: ServiceFailure, Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
		}
	}
	return nil
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return PermissionDenied
	case status == http.StatusTooManyRequests:
		return RateLimited
	default:
		return ServiceFailure
	}
}

func pageProperties(title, nodeID, fingerprint string) map[string]any {
	return map[string]any{
		"title": map[string]any{
			"title": []map[string]any{
				{"text": map[string]any{"content": title}},
			},
		},
		PropNodeID:      textProperty(nodeID),
		PropFingerprint: textProperty(fingerprint),
	}
}

func textProperty(value string) map[string]any {
	return map[string]any{
		"rich_text": []map[string]any{
			{"text": map[string]any{"content": value}},
		},
	}
}

func textFromProperty(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var prop struct {
		RichText []struct {
			PlainText string `json:"plain_text"`
			Text      struct {
				Content string `json:"content"`
			} `json:"text"`
		} `json:"rich_text"`
	}
	if err := json.Unmarshal(raw, &prop); err != nil || len(prop.RichText) == 0 {
		return ""
	}
	if prop.RichText[0].PlainText != "" {
		return prop.RichText[0].PlainText
	}
	return prop.RichText[0].Text.Content
}

func titleFromProperties(props map[string]json.RawMessage) string {
	raw, ok := props["title"]
	if !ok {
		return ""
	}
	var prop struct {
		Title []struct {
			PlainText string `json:"plain_text"`
			Text      struct {
				Content string `json:"content"`
			} `json:"text"`
		} `json:"title"`
	}
	if err := json.Unmarshal(raw, &prop); err != nil || len(prop.Title) == 0 {
		return ""
	}
	if prop.Title[0].PlainText != "" {
		return prop.Title[0].PlainText
	}
	return prop.Title[0].Text.Content
}
