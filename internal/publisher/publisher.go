package publisher

import (
	"context"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"docflow/internal/blocks"
	"docflow/internal/project"
	"docflow/internal/synth"
	"docflow/internal/workspace"
)

// Service is the slice of the workspace API the reconciler needs.
// *workspace.Client satisfies it; tests substitute fakes.
type Service interface {
	CreatePage(ctx context.Context, parentID, title, nodeID, fingerprint, icon string, seq []blocks.Block) (string, error)
	RetrievePage(ctx context.Context, pageID string) (workspace.RemotePage, error)
	UpdatePageBlocks(ctx context.Context, pageID string, seq []blocks.Block) error
	SetFingerprint(ctx context.Context, pageID, fingerprint string) error
	MovePage(ctx context.Context, pageID, newParentID string) error
	ArchivePage(ctx context.Context, pageID string) error
	ListChildren(ctx context.Context, pageID string) ([]workspace.RemotePage, error)
}

// Options tune a publish run.
type Options struct {
	// ParentID is the remote page the tree root maps onto.
	ParentID string
	// Concurrency bounds simultaneous sibling publications.
	Concurrency int
	// Prune archives managed pages whose node no longer exists. Off by
	// default: absence from the tree never deletes remote content
	// implicitly.
	Prune bool
	// DryRun computes and reports actions without any remote write.
	DryRun bool
}

// Publisher reconciles a synthesized document tree against the remote
// workspace.
type Publisher struct {
	svc  Service
	opts Options
}

func New(svc Service, opts Options) *Publisher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	return &Publisher{svc: svc, opts: opts}
}

// Publish walks the tree depth-first, parents before children, and makes
// the minimal set of remote writes: create missing pages, rewrite changed
// ones, re-parent moved ones, and skip everything whose fingerprint is
// unchanged. A rerun over an unchanged tree performs zero writes.
func (p *Publisher) Publish(ctx context.Context, tree *project.TreeNode, docs map[string]*synth.DocumentNode) (*Report, error) {
	index, err := BuildRemoteIndex(ctx, p.svc, p.opts.ParentID)
	if err != nil {
		return nil, fmt.Errorf("indexing remote pages: %w", err)
	}

	report := NewReport()

	// Root content (the optional project overview) lands on the configured
	// parent page itself.
	if doc, ok := docs[tree.ID]; ok {
		if err := p.writeRoot(ctx, doc, report); err != nil {
			return report, err
		}
	}

	if err := p.publishChildren(ctx, tree, p.opts.ParentID, docs, index, report); err != nil {
		return report, err
	}

	if err := p.pruneOrphans(ctx, tree, index, report); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Publisher) writeRoot(ctx context.Context, doc *synth.DocumentNode, report *Report) error {
	// The parent page is not a child of anything we index, so its stored
	// fingerprint is read back directly.
	remote, err := p.svc.RetrievePage(ctx, p.opts.ParentID)
	if err != nil {
		return fmt.Errorf("retrieving root page: %w", err)
	}
	if remote.Fingerprint == doc.Fingerprint {
		report.AddSkipped(doc.Path)
		return nil
	}
	if p.opts.DryRun {
		report.AddUpdated(doc.Path)
		return nil
	}
	if err := p.svc.UpdatePageBlocks(ctx, p.opts.ParentID, blocks.Convert(doc.Markdown)); err != nil {
		return fmt.Errorf("updating root page: %w", err)
	}
	if err := p.svc.SetFingerprint(ctx, p.opts.ParentID, doc.Fingerprint); err != nil {
		return fmt.Errorf("updating root page: %w", err)
	}
	report.AddUpdated(doc.Path)
	return nil
}

func (p *Publisher) publishChildren(ctx context.Context, node *project.TreeNode, parentPageID string, docs map[string]*synth.DocumentNode, index RemoteIndex, report *Report) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for _, child := range node.Children {
		child := child
		g.Go(func() error {
			pageID, err := p.publishNode(gctx, child, parentPageID, docs, index, report)
			if err != nil {
				return err
			}
			if pageID == "" {
				// no page to hang the subtree on
				return nil
			}
			return p.publishChildren(gctx, child, pageID, docs, index, report)
		})
	}
	return g.Wait()
}

// publishNode reconciles one node and returns the remote page ID its
// children should be parented under.
func (p *Publisher) publishNode(ctx context.Context, node *project.TreeNode, parentPageID string, docs map[string]*synth.DocumentNode, index RemoteIndex, report *Report) (string, error) {
	remote, exists := index[node.ID]
	doc, ok := docs[node.ID]
	if !ok {
		// Synthesis failed for this node and nothing cached could stand
		// in. An existing page keeps serving its last good content and
		// still anchors the subtree; without one the subtree is skipped.
		report.AddFailed(node.Path)
		if exists {
			return remote.ID, nil
		}
		log.Printf("publish: no document for %s, skipping subtree", node.Path)
		return "", nil
	}

	switch {
	case !exists:
		if p.opts.DryRun {
			report.AddCreated(node.Path)
			return "dry-run:" + node.ID, nil
		}
		pageID, err := p.svc.CreatePage(ctx, parentPageID, doc.Title, node.ID, doc.Fingerprint, iconFor(node), blocks.Convert(doc.Markdown))
		if err != nil {
			return "", fmt.Errorf("creating page for %s: %w", node.Path, err)
		}
		report.AddCreated(node.Path)
		return pageID, nil

	case remote.Fingerprint == doc.Fingerprint:
		if remote.ParentID != "" && remote.ParentID != parentPageID {
			if !p.opts.DryRun {
				if err := p.svc.MovePage(ctx, remote.ID, parentPageID); err != nil {
					return "", fmt.Errorf("moving page for %s: %w", node.Path, err)
				}
			}
			report.AddReparented(node.Path)
			return remote.ID, nil
		}
		report.AddSkipped(node.Path)
		return remote.ID, nil

	default:
		if p.opts.DryRun {
			report.AddUpdated(node.Path)
			return remote.ID, nil
		}
		if remote.ParentID != "" && remote.ParentID != parentPageID {
			if err := p.svc.MovePage(ctx, remote.ID, parentPageID); err != nil {
				return "", fmt.Errorf("moving page for %s: %w", node.Path, err)
			}
			report.AddReparented(node.Path)
		}
		if err := p.svc.UpdatePageBlocks(ctx, remote.ID, blocks.Convert(doc.Markdown)); err != nil {
			return "", fmt.Errorf("updating page for %s: %w", node.Path, err)
		}
		if err := p.svc.SetFingerprint(ctx, remote.ID, doc.Fingerprint); err != nil {
			return "", fmt.Errorf("updating page for %s: %w", node.Path, err)
		}
		report.AddUpdated(node.Path)
		return remote.ID, nil
	}
}

func iconFor(node *project.TreeNode) string {
	if node.Kind == project.NodePackage {
		return "📦"
	}
	return "📄"
}

// pruneOrphans handles managed pages whose node vanished from the tree.
// Without the opt-in they are only reported, never touched.
func (p *Publisher) pruneOrphans(ctx context.Context, tree *project.TreeNode, index RemoteIndex, report *Report) error {
	live := make(map[string]bool)
	tree.Walk(func(n *project.TreeNode) { live[n.ID] = true })

	var orphans []workspace.RemotePage
	for nodeID, remote := range index {
		if !live[nodeID] {
			orphans = append(orphans, remote)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })

	for _, remote := range orphans {
		if !p.opts.Prune {
			report.AddOrphan(remote.Title)
			continue
		}
		if !p.opts.DryRun {
			if err := p.svc.ArchivePage(ctx, remote.ID); err != nil {
				return fmt.Errorf("archiving orphan page %q: %w", remote.Title, err)
			}
		}
		report.AddPruned(remote.Title)
	}
	return nil
}
