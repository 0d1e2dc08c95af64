// Package generation is the seam to the external text-generation
// capability: a provider interface, HTTP clients for the supported
// backends, a remote batch client speaking the off-process worker contract
// and a scripted implementation for tests.
package generation

import (
	"context"
	"errors"
	"strings"
)

// ErrProvider indicates the external generation call failed or returned a
// non-success status.
var ErrProvider = errors.New("generation provider failure")

// Service is the minimal text-generation capability consumed by the
// coordinator.
type Service interface {
	// Generate produces text for the prompt or fails with ErrProvider.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Item is one keyed prompt of a batch request.
type Item struct {
	Key     string `json:"key"`
	RunID   string `json:"run_id"`
	PhaseID string `json:"phase_id"`
	Prompt  string `json:"prompt"`
}

// Result is the settled outcome of one batch item. Exactly one of Content
// and Err is meaningful.
type Result struct {
	Key     string
	Content string
	Err     error
}

// Batch is the optional settle-all variant: every item settles with either
// content or an error, and per-item failure never fails the batch call. The
// coordinator uses it identically to in-process fan-out, so branch logic is
// agnostic to where branches actually execute.
type Batch interface {
	GenerateBatch(ctx context.Context, items []Item) ([]Result, error)
}

// RedactKey masks an API key for logging, keeping the first and last four
// characters.
func RedactKey(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// Preview collapses whitespace and truncates the value for log lines.
func Preview(value string) string {
	const limit = 240
	cleaned := strings.Join(strings.Fields(value), " ")
	if len(cleaned) <= limit {
		return cleaned
	}
	return cleaned[:limit] + "..."
}
