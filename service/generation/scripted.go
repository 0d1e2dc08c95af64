package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Scripted is an in-memory provider for tests and offline use. Responses
// are matched by prompt substring in registration order; unmatched prompts
// fall back to a deterministic echo unless the client was built strict.
type Scripted struct {
	mu      sync.Mutex
	rules   []scriptedRule
	strict  bool
	prompts []string
}

type scriptedRule struct {
	match   string
	content string
	err     error
}

var _ Service = (*Scripted)(nil)

// NewScripted creates a scripted provider that echoes unmatched prompts.
func NewScripted() *Scripted {
	return &Scripted{}
}

// Strict makes unmatched prompts fail with ErrProvider instead of echoing.
func (s *Scripted) Strict() *Scripted {
	s.strict = true
	return s
}

// Respond registers a response for prompts containing match.
func (s *Scripted) Respond(match, content string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptedRule{match: match, content: content})
	return s
}

// Fail registers a provider failure for prompts containing match.
func (s *Scripted) Fail(match, reason string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptedRule{match: match, err: fmt.Errorf("%w: %s", ErrProvider, reason)})
	return s
}

// Generate returns the first matching scripted response.
func (s *Scripted) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	for _, rule := range s.rules {
		if strings.Contains(prompt, rule.match) {
			return rule.content, rule.err
		}
	}
	if s.strict {
		return "", fmt.Errorf("%w: no scripted response for prompt %q", ErrProvider, Preview(prompt))
	}
	return "generated: " + Preview(prompt), nil
}

// Prompts returns every prompt seen so far, in call order.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
