package coordinator

import (
	"fmt"
	"strings"
)

// BasisRender is one branch render used as merge input.
type BasisRender struct {
	ID     string
	Label  string
	Render string
}

// Prompter turns phase inputs into provider prompts. The default is a plain
// text prompter; richer template-driven prompting lives outside the engine.
type Prompter interface {
	Brief(context, styleHints string) string
	Variant(label, brief string) string
	Merge(rationale string, basis []BasisRender) string
	Induction(current, selector, instruction string, branch int) string
}

type defaultPrompter struct{}

// DefaultPrompter returns the plain built-in prompter.
func DefaultPrompter() Prompter { return defaultPrompter{} }

func (defaultPrompter) Brief(context, styleHints string) string {
	var b strings.Builder
	b.WriteString("Normalize the following request into a canonical creative brief for a vector artwork pipeline.\n\n")
	b.WriteString("Request:\n")
	b.WriteString(context)
	if styleHints != "" {
		b.WriteString("\n\nStyle hints:\n")
		b.WriteString(styleHints)
	}
	return b.String()
}

func (defaultPrompter) Variant(label, brief string) string {
	return fmt.Sprintf("Produce the %s candidate render for the brief below. Return the render only.\n\nBrief:\n%s", label, brief)
}

func (defaultPrompter) Merge(rationale string, basis []BasisRender) string {
	var b strings.Builder
	b.WriteString("Merge the candidate renders below into one final render.\n")
	if rationale != "" {
		b.WriteString("Reviewer rationale:\n")
		b.WriteString(rationale)
		b.WriteString("\n")
	}
	for _, candidate := range basis {
		b.WriteString(fmt.Sprintf("\nCandidate %s (%s):\n%s\n", candidate.ID, candidate.Label, candidate.Render))
	}
	return b.String()
}

func (defaultPrompter) Induction(current, selector, instruction string, branch int) string {
	return fmt.Sprintf(
		"Apply the following edit to the render below, changing only the part matching %q, and return the full replacement render. Variation %d.\n\nEdit:\n%s\n\nRender:\n%s",
		selector, branch, instruction, current)
}
