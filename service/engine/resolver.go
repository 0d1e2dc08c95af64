package engine

import (
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/event"
)

// resolveDependents re-evaluates every phase directly depending on the
// mutated phase: a BLOCKED dependent unblocks to DRAFT iff all of its
// dependencies are in a satisfied status. Resolution deliberately scans
// direct dependents only; multi-hop cascades happen because the coordinator
// invokes follow-up work on newly-unblocked phases itself.
func (t *Txn) resolveDependents(phaseID string) {
	for _, dependentID := range t.Run.Dependents(phaseID) {
		dependent, ok := t.Run.Phase(dependentID)
		if !ok || dependent.Status != run.StatusBlocked {
			continue
		}
		if !t.Run.DependenciesSatisfied(dependentID) {
			continue
		}
		previous := dependent.Status
		dependent.Unblock()
		t.Run.Sync(dependentID)
		t.events = append(t.events, event.PhaseUpdated(
			t.Run.RunID, dependentID, string(previous), string(dependent.Status), dependent.Attempt, t.Request.ActorID))
	}
}
