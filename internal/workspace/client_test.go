package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/blocks"
)

func TestNormalizePageID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"raw hex",
			"0123456789abcdef0123456789abcdef",
			"01234567-89ab-cdef-0123-456789abcdef",
		},
		{
			"already hyphenated",
			"01234567-89ab-cdef-0123-456789abcdef",
			"01234567-89ab-cdef-0123-456789abcdef",
		},
		{
			"page url",
			"https://www.notion.so/My-Docs-0123456789abcdef0123456789abcdef",
			"01234567-89ab-cdef-0123-456789abcdef",
		},
		{
			"unrecognizable passes through",
			"not-a-page-id",
			"not-a-page-id",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePageID(tc.in))
		})
	}
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "python", normalizeLanguage("py"))
	assert.Equal(t, "bash", normalizeLanguage("sh"))
	assert.Equal(t, "go", normalizeLanguage("Go"))
	assert.Equal(t, "plain text", normalizeLanguage(""))
	assert.Equal(t, "plain text", normalizeLanguage("klingon"))
}

func TestBlockPayload(t *testing.T) {
	t.Run("heading", func(t *testing.T) {
		p := blockPayload(blocks.Block{Type: blocks.Heading2, Rich: []blocks.TextSpan{{Text: "Overview", Bold: true}}})
		assert.Equal(t, "heading_2", p["type"])
		body := p["heading_2"].(map[string]any)
		spans := body["rich_text"].([]richText)
		require.Len(t, spans, 1)
		assert.Equal(t, "Overview", spans[0].Text.Content)
		assert.True(t, spans[0].Annotations.Bold)
	})

	t.Run("code language normalized", func(t *testing.T) {
		p := blockPayload(blocks.Block{Type: blocks.Code, Language: "py", Text: "x = 1"})
		body := p["code"].(map[string]any)
		assert.Equal(t, "python", body["language"])
	})

	t.Run("table", func(t *testing.T) {
		row := blocks.Block{Type: blocks.TableRow, Cells: [][]blocks.TextSpan{{{Text: "a"}}, {{Text: "b"}}}}
		p := blockPayload(blocks.Block{Type: blocks.Table, HasHeader: true, Children: []blocks.Block{row}})
		body := p["table"].(map[string]any)
		assert.Equal(t, 2, body["table_width"])
		assert.Equal(t, true, body["has_column_header"])
	})
}

// recordingServer captures requests for assertion while serving scripted
// responses.
type recordingServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

func newRecordingServer(handler http.HandlerFunc) (*recordingServer, *httptest.Server) {
	rs := &recordingServer{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		rs.mu.Lock()
		rs.requests = append(rs.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		rs.mu.Unlock()
		rs.handler(w, r)
	}))
	return rs, srv
}

func testClient(srv *httptest.Server) *Client {
	return NewClient("secret-token", WithBaseURL(srv.URL), WithRateLimit(10000))
}

func TestCreatePage(t *testing.T) {
	rs, srv := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/pages":
			fmt.Fprint(w, `{"id": "new-page-id"}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	})
	defer srv.Close()

	var seq []blocks.Block
	for i := 0; i < 150; i++ {
		seq = append(seq, blocks.Block{Type: blocks.Paragraph, Rich: []blocks.TextSpan{{Text: "p"}}})
	}

	id, err := testClient(srv).CreatePage(context.Background(), "parent-id", "Module: util", "node-1", "fp-1", "📄", seq)
	require.NoError(t, err)
	assert.Equal(t, "new-page-id", id)

	require.Len(t, rs.requests, 2, "first 100 blocks inline, remainder appended")

	create := rs.requests[0]
	props := create.Body["properties"].(map[string]any)
	assert.Contains(t, props, PropNodeID)
	assert.Contains(t, props, PropFingerprint)
	assert.Len(t, create.Body["children"], 100)

	appendReq := rs.requests[1]
	assert.Equal(t, "/v1/blocks/new-page-id/children", appendReq.Path)
	assert.Len(t, appendReq.Body["children"], 50)
}

func TestUpdatePageBlocks_PreservesChildPages(t *testing.T) {
	rs, srv := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"results": [
				{"id": "blk-1", "type": "paragraph"},
				{"id": "child-1", "type": "child_page"},
				{"id": "blk-2", "type": "code"}
			], "has_more": false}`)
			return
		}
		fmt.Fprint(w, `{}`)
	})
	defer srv.Close()

	err := testClient(srv).UpdatePageBlocks(context.Background(), "page-1", []blocks.Block{
		{Type: blocks.Paragraph, Rich: []blocks.TextSpan{{Text: "new"}}},
	})
	require.NoError(t, err)

	var deleted []string
	for _, req := range rs.requests {
		if req.Method == http.MethodDelete {
			deleted = append(deleted, req.Path)
		}
	}
	assert.Equal(t, []string{"/v1/blocks/blk-1", "/v1/blocks/blk-2"}, deleted)
}

func TestListChildren(t *testing.T) {
	_, srv := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/blocks/parent-id/children":
			if r.URL.Query().Get("start_cursor") == "" {
				fmt.Fprint(w, `{"results": [
					{"id": "page-a", "type": "child_page"},
					{"id": "blk-1", "type": "paragraph"}
				], "has_more": true, "next_cursor": "cur-2"}`)
			} else {
				fmt.Fprint(w, `{"results": [
					{"id": "page-b", "type": "child_page"}
				], "has_more": false}`)
			}
		case "/v1/pages/page-a":
			fmt.Fprint(w, `{"id": "page-a", "properties": {
				"title": {"title": [{"plain_text": "Module: util"}]},
				"docflow_node_id": {"rich_text": [{"plain_text": "node-a"}]},
				"docflow_fingerprint": {"rich_text": [{"plain_text": "fp-a"}]}
			}}`)
		case "/v1/pages/page-b":
			fmt.Fprint(w, `{"id": "page-b", "properties": {
				"title": {"title": [{"plain_text": "Scratch"}]}
			}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer srv.Close()

	pages, err := testClient(srv).ListChildren(context.Background(), "parent-id")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, "node-a", pages[0].NodeID)
	assert.Equal(t, "fp-a", pages[0].Fingerprint)
	assert.Equal(t, "Module: util", pages[0].Title)
	assert.Equal(t, "parent-id", pages[0].ParentID)
	assert.True(t, pages[0].Managed())

	// page without identifying properties is visible but unmanaged
	assert.False(t, pages[1].Managed())
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusNotFound, NotFound},
		{http.StatusForbidden, PermissionDenied},
		{http.StatusUnauthorized, PermissionDenied},
		{http.StatusTooManyRequests, RateLimited},
		{http.StatusInternalServerError, ServiceFailure},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d", tc.status), func(t *testing.T) {
			_, srv := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})
			defer srv.Close()

			err := testClient(srv).Preflight(context.Background(), "parent-id")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.kind, apiErr.Kind)
			assert.Equal(t, tc.status, apiErr.Status)
		})
	}
}
