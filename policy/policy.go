// Package policy provides a simple, optional approval layer that can be
// attached to an action via context. It is deliberately decoupled from the
// coordinator so that using it is entirely opt-in: callers that do not
// embed a Policy in their context keep each phase's definition-declared
// approval mode.
package policy

import (
	"context"
	"strings"
)

// Approval modes recognised by the coordinator.
const (
	ModeAuto   = "auto"   // successful generative branches approve themselves (default)
	ModeManual = "manual" // successful branches pause at READY_FOR_REVIEW
)

// Policy overrides how successful generative branches are approved for the
// current action. A nil *Policy means "follow the phase definition" and is
// therefore the zero-cost default.
type Policy struct {
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Normalize maps arbitrary input onto a recognised mode, defaulting to
// ModeAuto.
func Normalize(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), ModeManual) {
		return ModeManual
	}
	return ModeAuto
}

// AutoApproves reports whether successful branches approve themselves under
// the given phase-declared mode, honouring a context policy override first.
func (p *Policy) AutoApproves(declaredMode string) bool {
	if p != nil && p.Mode != "" {
		return Normalize(p.Mode) == ModeAuto
	}
	return Normalize(declaredMode) == ModeAuto
}

type policyKey struct{}

// WithPolicy returns a context carrying the policy.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, policyKey{}, p)
}

// FromContext extracts the policy from the context, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(policyKey{}).(*Policy)
	return p
}
