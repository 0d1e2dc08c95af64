package model

import "fmt"

// Kind classifies a phase and selects its coordinator behaviour.
type Kind string

const (
	// KindGate is the lead human-context phase that seeds the pipeline.
	KindGate Kind = "gate"
	// KindVariant is one generated candidate branch.
	KindVariant Kind = "variant"
	// KindReview is the human merge/comparison decision.
	KindReview Kind = "review"
	// KindFinalize composes the preferred branches into a final render.
	KindFinalize Kind = "finalize"
	// KindInduction is a scoped refinement of the finalized render.
	KindInduction Kind = "induction"
	// KindInductionMerge selects one refinement branch as the new render.
	KindInductionMerge Kind = "induction-merge"
)

// Approval modes for generative phases.
const (
	ApprovalAuto   = "auto"
	ApprovalManual = "manual"
)

// Branch factor bounds for any fan-out.
const (
	MinBranchFactor = 2
	MaxBranchFactor = 8
)

// ClampBranchFactor forces a fan-out width into the supported range.
func ClampBranchFactor(n int) int {
	if n < MinBranchFactor {
		return MinBranchFactor
	}
	if n > MaxBranchFactor {
		return MaxBranchFactor
	}
	return n
}

// Definition is a fixed workflow shape: the ordered phases and their
// dependencies. A Definition never changes once runs have been seeded from
// it; evolution happens by bumping Version.
type Definition struct {
	// ID is the unique identifier for the workflow
	ID string `json:"id" yaml:"id"`

	// Description provides a human-readable description of the workflow
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Version specifies the workflow version
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Phases defines the ordered phase specs of the pipeline graph
	Phases []*PhaseSpec `json:"phases" yaml:"phases"`
}

// PhaseSpec declares one phase of the pipeline.
type PhaseSpec struct {
	ID        string      `json:"id" yaml:"id"`
	Label     string      `json:"label,omitempty" yaml:"label,omitempty"`
	Kind      Kind        `json:"kind" yaml:"kind"`
	DependsOn []string    `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Approval  string      `json:"approval,omitempty" yaml:"approval,omitempty"`
	Branches  *BranchSpec `json:"branches,omitempty" yaml:"branches,omitempty"`
}

// BranchSpec shapes a phase's fan-out.
type BranchSpec struct {
	Factor int      `json:"factor,omitempty" yaml:"factor,omitempty"`
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// EffectiveFactor returns the clamped fan-out width.
func (b *BranchSpec) EffectiveFactor() int {
	if b == nil {
		return MinBranchFactor
	}
	return ClampBranchFactor(b.Factor)
}

// Phase returns the spec with the given id, or nil.
func (d *Definition) Phase(id string) *PhaseSpec {
	for _, p := range d.Phases {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Validate performs structural validation of the definition. The returned
// slice is empty when the definition is sound; otherwise it contains
// human-readable error descriptions.
func (d *Definition) Validate() []error {
	var issues []error
	if d.ID == "" {
		issues = append(issues, fmt.Errorf("definition id is empty"))
	}
	if len(d.Phases) == 0 {
		issues = append(issues, fmt.Errorf("definition has no phases"))
		return issues
	}

	seen := map[string]bool{}
	for _, p := range d.Phases {
		if p.ID == "" {
			issues = append(issues, fmt.Errorf("phase with empty id"))
			continue
		}
		if seen[p.ID] {
			issues = append(issues, fmt.Errorf("duplicate phase id %s", p.ID))
		}
		seen[p.ID] = true

		switch p.Kind {
		case KindGate, KindVariant, KindReview, KindFinalize, KindInduction, KindInductionMerge:
		default:
			issues = append(issues, fmt.Errorf("phase %s has unknown kind %q", p.ID, p.Kind))
		}
		switch p.Approval {
		case "", ApprovalAuto, ApprovalManual:
		default:
			issues = append(issues, fmt.Errorf("phase %s has unknown approval mode %q", p.ID, p.Approval))
		}
		for _, dep := range p.DependsOn {
			if dep == p.ID {
				issues = append(issues, fmt.Errorf("phase %s depends on itself", p.ID))
			}
		}
	}

	for _, p := range d.Phases {
		for _, dep := range p.DependsOn {
			if dep != p.ID && !seen[dep] {
				issues = append(issues, fmt.Errorf("phase %s depends on unknown phase %s", p.ID, dep))
			}
		}
	}

	if cycle := d.findCycle(); cycle != "" {
		issues = append(issues, fmt.Errorf("dependency cycle through phase %s", cycle))
	}
	return issues
}

// findCycle walks the dependency graph and returns the id of a phase on a
// cycle, or an empty string when the graph is acyclic.
func (d *Definition) findCycle() string {
	const (
		white = iota
		grey
		black
	)
	color := map[string]int{}
	deps := map[string][]string{}
	for _, p := range d.Phases {
		deps[p.ID] = p.DependsOn
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		switch color[id] {
		case grey:
			return true
		case black:
			return false
		}
		color[id] = grey
		for _, dep := range deps[id] {
			if visit(dep) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, p := range d.Phases {
		if visit(p.ID) {
			return p.ID
		}
	}
	return ""
}
