package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/blocks"
	"docflow/internal/synth"
	"docflow/internal/workspace"
)

// scriptedGen answers document prompts and summary prompts deterministically.
type scriptedGen struct {
	calls atomic.Int64
	fail  error
}

func (g *scriptedGen) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	if g.fail != nil {
		return "", g.fail
	}
	if strings.Contains(prompt, "JSON object") {
		return `{"summary": "One line summary."}`, nil
	}
	return "## Overview\nGenerated documentation.", nil
}

// memService is a minimal in-memory workspace for wiring tests.
type memService struct {
	mu     sync.Mutex
	pages  map[string]*memPage
	nextID int
	writes int
}

type memPage struct {
	ID, ParentID, Title, NodeID, Fingerprint string
}

func newMemService() *memService { return &memService{pages: map[string]*memPage{}} }

func (m *memService) CreatePage(ctx context.Context, parentID, title, nodeID, fingerprint, icon string, seq []blocks.Block) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.writes++
	id := fmt.Sprintf("page-%d", m.nextID)
	m.pages[id] = &memPage{ID: id, ParentID: parentID, Title: title, NodeID: nodeID, Fingerprint: fingerprint}
	return id, nil
}

func (m *memService) RetrievePage(ctx context.Context, pageID string) (workspace.RemotePage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[pageID]; ok {
		return workspace.RemotePage{
			ID: p.ID, ParentID: p.ParentID, Title: p.Title,
			NodeID: p.NodeID, Fingerprint: p.Fingerprint,
		}, nil
	}
	return workspace.RemotePage{ID: pageID}, nil
}

func (m *memService) UpdatePageBlocks(ctx context.Context, pageID string, seq []blocks.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	return nil
}

func (m *memService) SetFingerprint(ctx context.Context, pageID, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[pageID]; ok {
		p.Fingerprint = fingerprint
	}
	return nil
}

func (m *memService) MovePage(ctx context.Context, pageID, newParentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if p, ok := m.pages[pageID]; ok {
		p.ParentID = newParentID
	}
	return nil
}

func (m *memService) ArchivePage(ctx context.Context, pageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	delete(m.pages, pageID)
	return nil
}

func (m *memService) ListChildren(ctx context.Context, pageID string) ([]workspace.RemotePage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []workspace.RemotePage
	for _, p := range m.pages {
		if p.ParentID == pageID {
			out = append(out, workspace.RemotePage{
				ID: p.ID, ParentID: p.ParentID, Title: p.Title,
				NodeID: p.NodeID, Fingerprint: p.Fingerprint,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func projectFixture(t *testing.T) string {
	root := t.TempDir()
	writeSource(t, root, "pkg/util.py", "\"\"\"Helpers.\"\"\"\n\ndef add(a, b):\n    return a + b\n")
	return root
}

func TestRun_EndToEnd(t *testing.T) {
	root := projectFixture(t)
	gen := &scriptedGen{}
	svc := newMemService()

	res, err := New(gen, svc, Options{
		Root:     root,
		Lang:     "python",
		ParentID: "root-page",
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 3, res.Nodes, "root, package, module")
	assert.Empty(t, res.ParseErrors)
	assert.Empty(t, res.SynthFailed)

	require.NotNil(t, res.Publish)
	assert.Len(t, res.Publish.Created, 2, "root page is the configured parent, not created")
	assert.Len(t, svc.pages, 2)
}

func TestRun_CachedRerunMakesNoModelCalls(t *testing.T) {
	root := projectFixture(t)
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	svc := newMemService()

	gen := &scriptedGen{}
	_, err := New(gen, svc, Options{
		Root: root, Lang: "python", ParentID: "root-page", CachePath: cachePath,
	}).Run(context.Background())
	require.NoError(t, err)
	require.Positive(t, gen.calls.Load())

	gen2 := &scriptedGen{}
	res, err := New(gen2, svc, Options{
		Root: root, Lang: "python", ParentID: "root-page", CachePath: cachePath,
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, gen2.calls.Load(), "unchanged tree is served from cache")
	assert.Equal(t, 2, res.FromCache)
	assert.Zero(t, res.Publish.Writes(), "unchanged tree causes no remote writes")
}

func TestRun_FailureThresholdAborts(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "x = 1\n")
	writeSource(t, root, "b.py", "y = 2\n")
	writeSource(t, root, "c.py", "z = 3\n")

	gen := &scriptedGen{fail: &synth.CallError{Kind: synth.InvalidRequest, Message: "rejected"}}

	_, err := New(gen, nil, Options{
		Root: root, Lang: "python", FailureThreshold: 1, Concurrency: 1,
	}).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted")
}

func TestRun_SurfacesOversizeSkips(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "small.py", "x = 1\n")
	writeSource(t, root, "huge.py", strings.Repeat("# padding line\n", 8000))

	res, err := New(&scriptedGen{}, nil, Options{Root: root, Lang: "python"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.SkippedOversize)
	assert.False(t, res.ScanTruncated)
}

func TestRun_WithoutServiceStopsAfterSynthesis(t *testing.T) {
	root := projectFixture(t)
	res, err := New(&scriptedGen{}, nil, Options{Root: root, Lang: "python"}).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Publish)
}

func TestRun_ParseErrorDoesNotAbortSiblings(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "good.py", "def fine():\n    pass\n")
	writeSource(t, root, "bad.py", "def broken(((\n")

	svc := newMemService()
	res, err := New(&scriptedGen{}, svc, Options{
		Root: root, Lang: "python", ParentID: "root-page",
	}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.ParseErrors, 1)
	assert.Equal(t, "bad.py", res.ParseErrors[0].Path)
	assert.Len(t, res.Publish.Created, 1, "good module still published")
}
