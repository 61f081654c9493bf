package publisher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/blocks"
	"docflow/internal/extractor"
	"docflow/internal/project"
	"docflow/internal/synth"
	"docflow/internal/workspace"
)

type fakePage struct {
	ID          string
	ParentID    string
	Title       string
	NodeID      string
	Fingerprint string
	Blocks      []blocks.Block
}

// fakeService is an in-memory workspace.
type fakeService struct {
	mu     sync.Mutex
	pages  map[string]*fakePage
	nextID int

	creates  int
	updates  int
	moves    int
	archives int
}

func newFakeService() *fakeService {
	return &fakeService{pages: map[string]*fakePage{}}
}

func (f *fakeService) CreatePage(ctx context.Context, parentID, title, nodeID, fingerprint, icon string, seq []blocks.Block) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.creates++
	id := fmt.Sprintf("page-%d", f.nextID)
	f.pages[id] = &fakePage{
		ID: id, ParentID: parentID, Title: title,
		NodeID: nodeID, Fingerprint: fingerprint, Blocks: seq,
	}
	return id, nil
}

func (f *fakeService) RetrievePage(ctx context.Context, pageID string) (workspace.RemotePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pages[pageID]; ok {
		return workspace.RemotePage{
			ID: p.ID, Title: p.Title,
			NodeID: p.NodeID, Fingerprint: p.Fingerprint,
		}, nil
	}
	// the configured parent page exists remotely even before the first
	// overview write stamps a fingerprint on it
	return workspace.RemotePage{ID: pageID}, nil
}

func (f *fakeService) UpdatePageBlocks(ctx context.Context, pageID string, seq []blocks.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if p, ok := f.pages[pageID]; ok {
		p.Blocks = seq
	}
	return nil
}

func (f *fakeService) SetFingerprint(ctx context.Context, pageID, fingerprint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[pageID]
	if !ok {
		p = &fakePage{ID: pageID}
		f.pages[pageID] = p
	}
	p.Fingerprint = fingerprint
	return nil
}

func (f *fakeService) MovePage(ctx context.Context, pageID, newParentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves++
	if p, ok := f.pages[pageID]; ok {
		p.ParentID = newParentID
	}
	return nil
}

func (f *fakeService) ArchivePage(ctx context.Context, pageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archives++
	delete(f.pages, pageID)
	return nil
}

func (f *fakeService) ListChildren(ctx context.Context, pageID string) ([]workspace.RemotePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []workspace.RemotePage
	for _, p := range f.pages {
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

func (f *fakeService) pageByNode(nodeID string) *fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pages {
		if p.NodeID == nodeID {
			return p
		}
	}
	return nil
}

func buildTree(t *testing.T, paths ...string) *project.TreeNode {
	t.Helper()
	var records []*extractor.StructuralRecord
	for _, p := range paths {
		records = append(records, &extractor.StructuralRecord{Path: p, Language: "python"})
	}
	return project.Build("demo", records)
}

// docsFor synthesizes placeholder documents for every non-root node.
func docsFor(tree *project.TreeNode) map[string]*synth.DocumentNode {
	docs := make(map[string]*synth.DocumentNode)
	tree.Walk(func(n *project.TreeNode) {
		if n.Path == "." {
			return
		}
		docs[n.ID] = &synth.DocumentNode{
			NodeID:      n.ID,
			Path:        n.Path,
			Title:       "Module: " + n.Name,
			Fingerprint: n.Fingerprint,
			Markdown:    "## Overview\nDocumentation for " + n.Path + ".",
			Summary:     "Documentation for " + n.Path + ".",
		}
	})
	return docs
}

const rootPage = "root-page"

func publishOnce(t *testing.T, svc Service, tree *project.TreeNode, docs map[string]*synth.DocumentNode, opts Options) *Report {
	t.Helper()
	opts.ParentID = rootPage
	report, err := New(svc, opts).Publish(context.Background(), tree, docs)
	require.NoError(t, err)
	return report
}

func TestPublish_CreatesMissingPages(t *testing.T) {
	svc := newFakeService()
	tree := buildTree(t, "pkg/util.py")

	report := publishOnce(t, svc, tree, docsFor(tree), Options{})

	assert.Len(t, report.Created, 2)
	assert.Equal(t, 2, svc.creates)

	pkgPage := svc.pageByNode(project.NodeID("pkg"))
	require.NotNil(t, pkgPage)
	assert.Equal(t, rootPage, pkgPage.ParentID)

	utilPage := svc.pageByNode(project.NodeID("pkg/util"))
	require.NotNil(t, utilPage)
	assert.Equal(t, pkgPage.ID, utilPage.ParentID, "module page nests under its package page")
	assert.NotEmpty(t, utilPage.Blocks)
}

func TestPublish_RerunIsIdempotent(t *testing.T) {
	svc := newFakeService()
	tree := buildTree(t, "pkg/util.py", "pkg/io.py")
	docs := docsFor(tree)

	publishOnce(t, svc, tree, docs, Options{})
	report := publishOnce(t, svc, tree, docs, Options{})

	assert.Zero(t, report.Writes(), "unchanged tree must cause no remote writes")
	assert.Len(t, report.Skipped, 3)
}

func TestPublish_UnchangedOverviewIsSkipped(t *testing.T) {
	svc := newFakeService()
	tree := buildTree(t, "pkg/util.py")
	docs := docsFor(tree)
	docs[tree.ID] = &synth.DocumentNode{
		NodeID:      tree.ID,
		Path:        ".",
		Title:       "demo",
		Fingerprint: tree.Fingerprint,
		Markdown:    "## Project Overview\nWhat demo does.",
	}

	first := publishOnce(t, svc, tree, docs, Options{})
	require.Contains(t, first.Updated, ".", "overview lands on the parent page")
	assert.Equal(t, 1, svc.updates)

	second := publishOnce(t, svc, tree, docs, Options{})
	assert.Zero(t, second.Writes(), "unchanged overview must not rewrite the parent page")
	assert.Contains(t, second.Skipped, ".")
	assert.Equal(t, 1, svc.updates)
}

func TestPublish_UpdatesChangedPages(t *testing.T) {
	svc := newFakeService()
	tree := buildTree(t, "pkg/util.py")
	docs := docsFor(tree)
	publishOnce(t, svc, tree, docs, Options{})

	utilID := project.NodeID("pkg/util")
	docs[utilID].Fingerprint = "changed-fp"
	docs[utilID].Markdown = "## Overview\nNew content."

	report := publishOnce(t, svc, tree, docs, Options{})

	assert.Len(t, report.Updated, 1)
	assert.Len(t, report.Skipped, 1, "unchanged package page untouched")

	page := svc.pageByNode(utilID)
	assert.Equal(t, "changed-fp", page.Fingerprint)
	assert.Equal(t, "New content.", page.Blocks[1].PlainText())
}

func TestPublish_ReparentsMovedPage(t *testing.T) {
	svc := newFakeService()
	tree := buildTree(t, "pkg/util.py", "pkg/sub/deep.py")
	docs := docsFor(tree)
	publishOnce(t, svc, tree, docs, Options{})

	// someone drags the module page under the wrong parent in the UI
	utilPage := svc.pageByNode(project.NodeID("pkg/util"))
	subPage := svc.pageByNode(project.NodeID("pkg/sub"))
	require.NoError(t, svc.MovePage(context.Background(), utilPage.ID, subPage.ID))
	svc.moves = 0

	report := publishOnce(t, svc, tree, docs, Options{})

	assert.Len(t, report.Reparented, 1)
	assert.Equal(t, 1, svc.moves)
	pkgPage := svc.pageByNode(project.NodeID("pkg"))
	assert.Equal(t, pkgPage.ID, svc.pageByNode(project.NodeID("pkg/util")).ParentID)
	assert.Equal(t, 4, svc.creates, "moved page is reused, never recreated")
}

func TestPublish_IgnoresUnmanagedPages(t *testing.T) {
	svc := newFakeService()
	svc.pages["human-1"] = &fakePage{ID: "human-1", ParentID: rootPage, Title: "Meeting notes"}

	tree := buildTree(t, "pkg/util.py")
	report := publishOnce(t, svc, tree, docsFor(tree), Options{})

	assert.Empty(t, report.Orphans)
	assert.Empty(t, report.Pruned)
	_, stillThere := svc.pages["human-1"]
	assert.True(t, stillThere)
}

func TestPublish_OrphanHandling(t *testing.T) {
	svc := newFakeService()
	wide := buildTree(t, "pkg/util.py", "pkg/old.py")
	publishOnce(t, svc, wide, docsFor(wide), Options{})

	narrow := buildTree(t, "pkg/util.py")
	docs := docsFor(narrow)

	// default: orphan is reported, not touched
	report := publishOnce(t, svc, narrow, docs, Options{})
	assert.Len(t, report.Orphans, 1)
	assert.Empty(t, report.Pruned)
	assert.NotNil(t, svc.pageByNode(project.NodeID("pkg/old")))

	// explicit opt-in archives it
	report = publishOnce(t, svc, narrow, docs, Options{Prune: true})
	assert.Len(t, report.Pruned, 1)
	assert.Nil(t, svc.pageByNode(project.NodeID("pkg/old")))
}

func TestPublish_FailedNodeWithoutPageSkipsSubtree(t *testing.T) {
	svc := newFakeService()
	tree := buildTree(t, "pkg/util.py")
	docs := docsFor(tree)
	delete(docs, project.NodeID("pkg"))

	report := publishOnce(t, svc, tree, docs, Options{})

	assert.Len(t, report.Failed, 1)
	assert.Zero(t, svc.creates, "children cannot be parented without the package page")
}

func TestPublish_FailedNodeWithExistingPageKeepsSubtree(t *testing.T) {
	svc := newFakeService()
	tree := buildTree(t, "pkg/util.py")
	docs := docsFor(tree)
	publishOnce(t, svc, tree, docs, Options{})

	// package synthesis fails on the rerun; its page anchors the child
	delete(docs, project.NodeID("pkg"))
	report := publishOnce(t, svc, tree, docs, Options{})

	assert.Len(t, report.Failed, 1)
	assert.Len(t, report.Skipped, 1, "child still reconciled under the stale page")
}

func TestPublish_DryRun(t *testing.T) {
	svc := newFakeService()
	tree := buildTree(t, "pkg/util.py")

	report := publishOnce(t, svc, tree, docsFor(tree), Options{DryRun: true})

	assert.Len(t, report.Created, 2)
	assert.Zero(t, svc.creates)
	assert.Zero(t, svc.updates)
	assert.Zero(t, svc.moves)
}
