package engine

import (
	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/event"
)

// Txn carries one action application across the engine and the coordinator:
// a private deep copy of the run, the causing request, and everything the
// action produced so far. Nothing in a Txn is visible to other callers
// until the engine persists it and publishes the accumulated events.
type Txn struct {
	Definition *model.Definition
	Run        *run.Run
	Request    *run.Request

	events    []*event.Event
	artifacts []*run.Artifact
	branches  *run.BranchSummary
}

func newTxn(definition *model.Definition, aRun *run.Run, request *run.Request) *Txn {
	return &Txn{Definition: definition, Run: aRun, Request: request}
}

// Phase returns the mutable phase instance for the id.
func (t *Txn) Phase(id string) (*run.Phase, bool) {
	return t.Run.Phase(id)
}

// Commit records a completed status change of the given phase: it syncs the
// node list, appends a phase_updated event carrying the previous and new
// status, and re-evaluates direct dependents, emitting an additional
// phase_updated event for every phase the resolver unblocks.
func (t *Txn) Commit(phaseID string, previous run.Status) {
	phase, ok := t.Run.Phase(phaseID)
	if !ok {
		return
	}
	t.Run.Sync(phaseID)
	t.events = append(t.events, event.PhaseUpdated(
		t.Run.RunID, phaseID, string(previous), string(phase.Status), phase.Attempt, t.Request.ActorID))
	t.resolveDependents(phaseID)
}

// AddArtifact stages an artifact for persistence and attaches its reference
// to the owning phase.
func (t *Txn) AddArtifact(artifact *run.Artifact) {
	if artifact == nil {
		return
	}
	t.artifacts = append(t.artifacts, artifact)
	if phase, ok := t.Run.Phase(artifact.PhaseID); ok {
		phase.Artifacts = append(phase.Artifacts, artifact.Ref())
	}
}

// SetBranches records the fan-out outcome summary for the response.
func (t *Txn) SetBranches(summary *run.BranchSummary) {
	t.branches = summary
}

// causingEvent returns the first event emitted for the acted-on phase.
func (t *Txn) causingEvent() *event.Event {
	for _, e := range t.events {
		if e.PhaseID == t.Request.PhaseID {
			return e
		}
	}
	if len(t.events) > 0 {
		return t.events[0]
	}
	return nil
}

// artifactRefs returns the references of every artifact the action produced.
func (t *Txn) artifactRefs() []run.Ref {
	if len(t.artifacts) == 0 {
		return nil
	}
	refs := make([]run.Ref, 0, len(t.artifacts))
	for _, a := range t.artifacts {
		refs = append(refs, a.Ref())
	}
	return refs
}
