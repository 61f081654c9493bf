package run

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"docflow/internal/extractor"
	"docflow/internal/project"
	"docflow/internal/publisher"
	"docflow/internal/synth"
)

// Options collects everything a single documentation run needs beyond the
// injected service handles.
type Options struct {
	Root        string
	ProjectName string
	Lang        string

	IgnorePatterns []string
	PromptBudget   int

	// Concurrency bounds parallel synthesis calls; PublishConcurrency
	// bounds parallel workspace writes. The two services have separate
	// rate limits, so the bounds are independent.
	Concurrency        int
	PublishConcurrency int

	// FailureThreshold aborts the run once more than this many nodes fail
	// to synthesize. Zero or negative means no threshold.
	FailureThreshold int

	// RequestTimeout bounds each model call; MaxRetries caps retries of
	// transient model failures. Zero values keep the synthesizer defaults.
	RequestTimeout time.Duration
	MaxRetries     int

	// CachePath enables the local synthesis cache when non-empty.
	CachePath string

	// Overview also synthesizes a project overview onto the parent page.
	Overview bool

	ParentID string
	DryRun   bool
	Prune    bool
}

// Result is the run's final summary.
type Result struct {
	Files           int
	Nodes           int
	SkippedOversize int
	ScanTruncated   bool
	ParseErrors     []*extractor.ParseError
	SynthFailed     []string
	FromCache       int
	Publish         *publisher.Report
}

// Runner orchestrates one full pass: scan, extract, build, synthesize,
// publish. Service handles are injected; the runner owns no clients of its
// own.
type Runner struct {
	gen  synth.Generator
	svc  publisher.Service
	opts Options
}

// New builds a runner. svc may be nil, in which case the run stops after
// synthesis (extraction check or offline preview).
func New(gen synth.Generator, svc publisher.Service, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.PublishConcurrency <= 0 {
		opts.PublishConcurrency = 2
	}
	if opts.ProjectName == "" {
		opts.ProjectName = filepath.Base(opts.Root)
	}
	return &Runner{gen: gen, svc: svc, opts: opts}
}

func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ext, err := extractor.New(r.opts.Lang)
	if err != nil {
		return nil, err
	}

	units, stats, err := project.Scan(r.opts.Root, ext, project.ScanOptions{
		Ignore: ignorePredicate(r.opts.IgnorePatterns),
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", r.opts.Root, err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("no %s source files found under %s", r.opts.Lang, r.opts.Root)
	}
	log.Printf("run: scanned %d source files", len(units))

	extracted, err := project.ExtractAll(ctx, ext, units)
	if err != nil {
		return nil, err
	}
	for _, pe := range extracted.ParseErrors {
		log.Printf("run: parse error in %s: %v", pe.Path, pe)
	}

	tree := project.Build(r.opts.ProjectName, extracted.Records)
	result := &Result{
		Files:           len(units),
		Nodes:           tree.Count(),
		SkippedOversize: stats.SkippedOversize,
		ScanTruncated:   stats.Truncated,
		ParseErrors:     extracted.ParseErrors,
	}

	docs, err := r.synthesizeTree(ctx, tree, result)
	if err != nil {
		return result, err
	}

	if r.svc == nil {
		return result, nil
	}

	pub := publisher.New(r.svc, publisher.Options{
		ParentID:    r.opts.ParentID,
		Concurrency: r.opts.PublishConcurrency,
		Prune:       r.opts.Prune,
		DryRun:      r.opts.DryRun,
	})
	report, err := pub.Publish(ctx, tree, docs)
	result.Publish = report
	if err != nil {
		return result, fmt.Errorf("publishing: %w", err)
	}
	log.Printf("run: publish %s", report)
	return result, nil
}

// ignorePredicate turns configured patterns into the scanner's predicate.
// A pattern matches an exact name, a path prefix, or a glob.
func ignorePredicate(patterns []string) func(rel string, isDir bool) bool {
	if len(patterns) == 0 {
		return nil
	}
	return func(rel string, isDir bool) bool {
		name := filepath.Base(rel)
		for _, p := range patterns {
			if name == p || strings.HasPrefix(rel, p) {
				return true
			}
			if matched, _ := filepath.Match(p, rel); matched {
				return true
			}
			if matched, _ := filepath.Match(p, name); matched {
				return true
			}
		}
		return false
	}
}
