package synth

import (
	"context"
	"fmt"
)

// Generator is the text-generation service boundary. Implementations wrap
// a concrete model API; the synthesizer never sees transport details.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FailureKind classifies a generation failure.
type FailureKind string

const (
	RateLimited    FailureKind = "rate_limited"
	Timeout        FailureKind = "timeout"
	InvalidRequest FailureKind = "invalid_request"
	ServiceFailure FailureKind = "service_failure"
)

// CallError is a classified failure from a single generation call.
type CallError struct {
	Kind    FailureKind
	Status  int
	Message string
}

func (e *CallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generation failed (%s, status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("generation failed (%s): %s", e.Kind, e.Message)
}

// Retryable reports whether another attempt could plausibly succeed.
// Invalid requests are deterministic failures and never retried.
func (e *CallError) Retryable() bool {
	return e.Kind != InvalidRequest
}

// SynthesisError records that a node's document could not be produced
// after all retries. The pipeline isolates it to the node rather than
// aborting the run.
type SynthesisError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed for %s after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
