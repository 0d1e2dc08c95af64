package run

import (
	"time"

	"github.com/strokeworks/vectorflow/internal/clock"
	"github.com/strokeworks/vectorflow/model"
)

// Run is one execution instance of a fixed workflow definition. The ordered
// Nodes list, the Edges and the Phases map are kept in lock-step: every
// phase id referenced by a node or an edge exists in Phases, and a node's
// status always equals its phase's status.
type Run struct {
	RunID           string            `json:"runId"`
	WorkflowID      string            `json:"workflowId"`
	WorkflowVersion string            `json:"workflowVersion"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Nodes           []*Node           `json:"nodes"`
	Edges           []Edge            `json:"edges"`
	Phases          map[string]*Phase `json:"phases"`
}

// Node is the summary entry of one phase in the ordered node list.
type Node struct {
	PhaseID   string     `json:"phaseId"`
	Label     string     `json:"label,omitempty"`
	Kind      model.Kind `json:"kind"`
	DependsOn []string   `json:"dependsOn,omitempty"`
	Approval  string     `json:"approval,omitempty"`
	Status    Status     `json:"status"`
	Attempt   int        `json:"attempt"`
}

// Edge is a directed dependency between two phases.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// New seeds a run from a definition: phases without dependencies start in
// DRAFT, everything else in BLOCKED.
func New(definition *model.Definition, runID string) *Run {
	now := clock.Now()
	ret := &Run{
		RunID:           runID,
		WorkflowID:      definition.ID,
		WorkflowVersion: definition.Version,
		CreatedAt:       now,
		UpdatedAt:       now,
		Phases:          make(map[string]*Phase, len(definition.Phases)),
	}
	for _, spec := range definition.Phases {
		status := StatusDraft
		if len(spec.DependsOn) > 0 {
			status = StatusBlocked
		}
		node := &Node{
			PhaseID:   spec.ID,
			Label:     spec.Label,
			Kind:      spec.Kind,
			DependsOn: append([]string(nil), spec.DependsOn...),
			Approval:  spec.Approval,
			Status:    status,
			Attempt:   1,
		}
		ret.Nodes = append(ret.Nodes, node)
		ret.Phases[spec.ID] = NewPhase(spec.ID, status)
		for _, dep := range spec.DependsOn {
			ret.Edges = append(ret.Edges, Edge{From: dep, To: spec.ID})
		}
	}
	return ret
}

// Phase returns the phase instance for the given id.
func (r *Run) Phase(id string) (*Phase, bool) {
	p, ok := r.Phases[id]
	return p, ok
}

// Node returns the node entry for the given phase id, or nil.
func (r *Run) Node(id string) *Node {
	for _, n := range r.Nodes {
		if n.PhaseID == id {
			return n
		}
	}
	return nil
}

// Sync copies the phase's status and attempt onto its node entry. Every
// mutation of a phase must go through Sync so the node list and the phases
// map never disagree.
func (r *Run) Sync(phaseID string) {
	phase, ok := r.Phases[phaseID]
	if !ok {
		return
	}
	if node := r.Node(phaseID); node != nil {
		node.Status = phase.Status
		node.Attempt = phase.Attempt
	}
}

// Touch stamps the run as updated.
func (r *Run) Touch() {
	r.UpdatedAt = clock.Now()
}

// Dependents returns the phase ids directly depending on the given phase.
func (r *Run) Dependents(phaseID string) []string {
	var ret []string
	for _, e := range r.Edges {
		if e.From == phaseID {
			ret = append(ret, e.To)
		}
	}
	return ret
}

// DependenciesSatisfied reports whether every dependency of the phase is in
// a satisfied status.
func (r *Run) DependenciesSatisfied(phaseID string) bool {
	node := r.Node(phaseID)
	if node == nil {
		return false
	}
	for _, dep := range node.DependsOn {
		phase, ok := r.Phases[dep]
		if !ok || !phase.Status.Satisfied() {
			return false
		}
	}
	return true
}

// NodesOfKind returns the ordered node entries of the given kind.
func (r *Run) NodesOfKind(kind model.Kind) []*Node {
	var ret []*Node
	for _, n := range r.Nodes {
		if n.Kind == kind {
			ret = append(ret, n)
		}
	}
	return ret
}

// FirstNodeOfKind returns the first node of the given kind, or nil.
func (r *Run) FirstNodeOfKind(kind model.Kind) *Node {
	for _, n := range r.Nodes {
		if n.Kind == kind {
			return n
		}
	}
	return nil
}

// CurrentRender returns the most recent finalized render: the induction
// merge result when present, otherwise the finalize result.
func (r *Run) CurrentRender() (string, bool) {
	for _, kind := range []model.Kind{model.KindInductionMerge, model.KindFinalize} {
		for _, n := range r.NodesOfKind(kind) {
			phase := r.Phases[n.PhaseID]
			if phase == nil || phase.Output == nil || phase.Output.Render == nil {
				continue
			}
			if render := phase.Output.Render.Render; render != "" {
				return render, true
			}
		}
	}
	return "", false
}

// Clone returns a deep, independent copy of the run; mutating the result
// never affects the original.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	ret := *r
	ret.Nodes = make([]*Node, len(r.Nodes))
	for i, n := range r.Nodes {
		node := *n
		node.DependsOn = append([]string(nil), n.DependsOn...)
		ret.Nodes[i] = &node
	}
	ret.Edges = append([]Edge(nil), r.Edges...)
	ret.Phases = make(map[string]*Phase, len(r.Phases))
	for id, p := range r.Phases {
		ret.Phases[id] = p.Clone()
	}
	return &ret
}
