package run

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"docflow/internal/cache"
	"docflow/internal/project"
	"docflow/internal/prompt"
	"docflow/internal/synth"
)

// synthesizeTree produces a DocumentNode per tree node, children before
// parents so every parent prompt sees its child summaries. Siblings run in
// parallel under the configured bound. A failed node is recorded and
// skipped; the rest of the tree proceeds unless the failure threshold is
// crossed.
func (r *Runner) synthesizeTree(ctx context.Context, tree *project.TreeNode, result *Result) (map[string]*synth.DocumentNode, error) {
	syn := synth.NewSynthesizer(r.gen,
		synth.WithMaxRetries(r.opts.MaxRetries),
		synth.WithRequestTimeout(r.opts.RequestTimeout))
	assembler := prompt.NewAssembler(r.opts.PromptBudget)

	var store *cache.Store
	if r.opts.CachePath != "" {
		var err error
		store, err = cache.Open(r.opts.CachePath)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		defer store.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &synthState{
		docs:      make(map[string]*synth.DocumentNode),
		threshold: r.opts.FailureThreshold,
		cancel:    cancel,
	}

	err := r.synthesizeSubtree(ctx, tree, syn, assembler, store, state)
	if state.aborted.Load() {
		return nil, fmt.Errorf("aborted: %d nodes failed to synthesize (threshold %d)",
			state.failures.Load(), r.opts.FailureThreshold)
	}
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	result.SynthFailed = append(result.SynthFailed, state.failed...)
	result.FromCache = state.fromCache
	return state.docs, nil
}

type synthState struct {
	mu        sync.Mutex
	docs      map[string]*synth.DocumentNode
	failed    []string
	fromCache int

	failures  atomic.Int64
	aborted   atomic.Bool
	threshold int
	cancel    context.CancelFunc
}

func (st *synthState) put(doc *synth.DocumentNode) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.docs[doc.NodeID] = doc
	if doc.FromCache {
		st.fromCache++
	}
}

func (st *synthState) get(nodeID string) *synth.DocumentNode {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.docs[nodeID]
}

// fail records a node failure and trips the threshold when crossed.
func (st *synthState) fail(path string) {
	st.mu.Lock()
	st.failed = append(st.failed, path)
	st.mu.Unlock()

	n := st.failures.Add(1)
	if st.threshold > 0 && n > int64(st.threshold) {
		st.aborted.Store(true)
		st.cancel()
	}
}

func (r *Runner) synthesizeSubtree(ctx context.Context, node *project.TreeNode, syn *synth.Synthesizer, assembler *prompt.Assembler, store *cache.Store, state *synthState) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, child := range node.Children {
		child := child
		g.Go(func() error {
			return r.synthesizeSubtree(gctx, child, syn, assembler, store, state)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// The root maps onto the user's parent page; it only gets content when
	// the overview is requested.
	if node.Path == "." && !r.opts.Overview {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.synthesizeNode(ctx, node, syn, assembler, store, state)
	return nil
}

func (r *Runner) synthesizeNode(ctx context.Context, node *project.TreeNode, syn *synth.Synthesizer, assembler *prompt.Assembler, store *cache.Store, state *synthState) {
	var cached *cache.Entry
	if store != nil {
		entry, err := store.Get(node.ID)
		if err != nil {
			log.Printf("synthesis: cache read failed for %s: %v", node.Path, err)
		} else {
			cached = entry
		}
	}

	title := prompt.Title(node)

	if cached != nil && cached.Fingerprint == node.Fingerprint {
		state.put(&synth.DocumentNode{
			NodeID:      node.ID,
			Path:        node.Path,
			Title:       title,
			Fingerprint: node.Fingerprint,
			Markdown:    cached.Markdown,
			Summary:     cached.Summary,
			FromCache:   true,
		})
		return
	}

	spec := assembler.Assemble(node, r.childSummaries(node, state))
	markdown, err := syn.Synthesize(ctx, node.Path, spec.Text())
	if err != nil {
		log.Printf("synthesis: %v", err)
		state.fail(node.Path)
		if cached != nil {
			// stale fallback keeps the page alive; the stale fingerprint
			// makes the next successful run rewrite it
			state.put(&synth.DocumentNode{
				NodeID:      node.ID,
				Path:        node.Path,
				Title:       title,
				Fingerprint: cached.Fingerprint,
				Markdown:    cached.Markdown,
				Summary:     cached.Summary,
				FromCache:   true,
			})
		}
		return
	}

	summary := syn.Summarize(ctx, node.Path, markdown)
	doc := &synth.DocumentNode{
		NodeID:      node.ID,
		Path:        node.Path,
		Title:       title,
		Fingerprint: node.Fingerprint,
		Markdown:    markdown,
		Summary:     summary,
	}
	state.put(doc)

	if store != nil {
		if err := store.Put(cache.Entry{
			NodeID:      node.ID,
			Fingerprint: node.Fingerprint,
			Markdown:    markdown,
			Summary:     summary,
		}); err != nil {
			log.Printf("synthesis: cache write failed for %s: %v", node.Path, err)
		}
	}
}

func (r *Runner) childSummaries(node *project.TreeNode, state *synthState) []prompt.ChildSummary {
	var summaries []prompt.ChildSummary
	for _, child := range node.Children {
		cs := prompt.ChildSummary{Name: child.Name, Path: child.Path}
		if doc := state.get(child.ID); doc != nil {
			cs.Summary = doc.Summary
		} else {
			cs.Failed = true
		}
		summaries = append(summaries, cs)
	}
	return summaries
}
