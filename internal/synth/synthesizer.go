package synth

import (
	"context"
	"strings"
	"time"
)

// DocumentNode is a node's synthesis result: the page body, the one-line
// summary fed into the parent's prompt, and the fingerprint the publisher
// uses to detect changes.
type DocumentNode struct {
	NodeID      string
	Path        string
	Title       string
	Fingerprint string
	Markdown    string
	Summary     string
	FromCache   bool
}

// Synthesizer drives generation with retries. It is safe for concurrent
// use by multiple goroutines.
type Synthesizer struct {
	gen     Generator
	retries int
	timeout time.Duration
	sleep   func(time.Duration)
}

// Option adjusts a Synthesizer.
type Option func(*Synthesizer)

// WithMaxRetries caps how many times a transient failure is retried after
// the initial call. Non-positive values keep the default.
func WithMaxRetries(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithRequestTimeout bounds each individual model call, so a hung
// connection cannot stall a worker slot for the whole run.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewSynthesizer(gen Generator, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		gen:     gen,
		retries: defaultMaxRetries,
		timeout: defaultRequestTimeout,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize produces the Markdown document for one prompt. Transient
// failures are retried with backoff; exhaustion or a deterministic failure
// yields a *SynthesisError tagged with the node path.
func (s *Synthesizer) Synthesize(ctx context.Context, path, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", &SynthesisError{Path: path, Attempts: attempt, Err: ctx.Err()}
			default:
			}
			s.sleep(backoff(attempt - 1))
		}

		text, err := s.generate(ctx, prompt)
		if err == nil {
			return cleanMarkdownOutput(text), nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", &SynthesisError{Path: path, Attempts: attempt + 1, Err: err}
		}
	}
	return "", &SynthesisError{Path: path, Attempts: s.retries + 1, Err: lastErr}
}

// generate runs one model call under the per-request timeout. A timeout
// surfaces as context.DeadlineExceeded and is retried like any other
// transient failure by the caller's loop.
func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.gen.Generate(ctx, prompt)
}

// cleanMarkdownOutput strips the code fence some models wrap whole
// responses in.
func cleanMarkdownOutput(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```markdown") {
		text = strings.TrimPrefix(text, "```markdown")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```md") {
		text = strings.TrimPrefix(text, "```md")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
