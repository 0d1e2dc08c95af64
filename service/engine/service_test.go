package engine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/dao/fs"
	"github.com/strokeworks/vectorflow/service/dao/memory"
	"github.com/strokeworks/vectorflow/service/engine"
	"github.com/strokeworks/vectorflow/service/event"
)

// diamondDefinition is a minimal dependency diamond: a feeds b and c, both
// feed d.
func diamondDefinition() *model.Definition {
	return &model.Definition{
		ID:      "diamond",
		Version: "1",
		Phases: []*model.PhaseSpec{
			{ID: "a", Kind: model.KindGate},
			{ID: "b", Kind: model.KindVariant, DependsOn: []string{"a"}},
			{ID: "c", Kind: model.KindVariant, DependsOn: []string{"a"}},
			{ID: "d", Kind: model.KindReview, DependsOn: []string{"b", "c"}},
		},
	}
}

// completing runs every started phase straight to COMPLETED, recording an
// attempt-stamped artifact on the way.
type completing struct{}

func (completing) Execute(_ context.Context, txn *engine.Txn) error {
	phase, _ := txn.Phase(txn.Request.PhaseID)
	previous := phase.Status
	switch txn.Request.Action {
	case run.ActionStartPhase, run.ActionRetryPhase:
		phase.Begin()
		txn.Commit(txn.Request.PhaseID, previous)
		txn.AddArtifact(run.NewArtifact(txn.Run.RunID, phase.PhaseID, phase.Attempt,
			run.ArtifactRender, fmt.Sprintf("render attempt %d", phase.Attempt)))
		previous = phase.Status
		phase.Complete()
		txn.Commit(txn.Request.PhaseID, previous)
	case run.ActionApprovePhase:
		phase.Approve()
		txn.Commit(txn.Request.PhaseID, previous)
	}
	return nil
}

// parking leaves every started phase waiting for a human.
type parking struct{}

func (parking) Execute(_ context.Context, txn *engine.Txn) error {
	phase, _ := txn.Phase(txn.Request.PhaseID)
	previous := phase.Status
	switch txn.Request.Action {
	case run.ActionStartPhase:
		phase.Begin()
		txn.Commit(txn.Request.PhaseID, previous)
		previous = phase.Status
		phase.AwaitHuman()
		txn.Commit(txn.Request.PhaseID, previous)
	case run.ActionApprovePhase:
		phase.Approve()
		txn.Commit(txn.Request.PhaseID, previous)
	}
	return nil
}

func newDiamondEngine(coordinator engine.Coordinator) *engine.Service {
	var options []engine.Option
	if coordinator != nil {
		options = append(options, engine.WithCoordinator(coordinator))
	}
	return engine.New(memory.New(), event.New(), diamondDefinition(), options...)
}

func apply(t *testing.T, eng *engine.Service, action run.ActionType, runID, phaseID string) *run.Response {
	t.Helper()
	response, err := eng.ApplyAction(context.Background(), &run.Request{
		Action:  action,
		RunID:   runID,
		PhaseID: phaseID,
		ActorID: "tester",
	})
	require.NoError(t, err)
	require.True(t, response.Accepted)
	return response
}

// assertConsistent verifies the node list and the phases map agree on every
// status and attempt.
func assertConsistent(t *testing.T, snapshot *run.Run) {
	t.Helper()
	require.Len(t, snapshot.Nodes, len(snapshot.Phases))
	for _, node := range snapshot.Nodes {
		phase, ok := snapshot.Phase(node.PhaseID)
		require.True(t, ok, node.PhaseID)
		assert.Equal(t, phase.Status, node.Status, node.PhaseID)
		assert.Equal(t, phase.Attempt, node.Attempt, node.PhaseID)
	}
}

func TestApplyActionValidatesRequest(t *testing.T) {
	eng := newDiamondEngine(nil)

	_, err := eng.ApplyAction(context.Background(), &run.Request{
		Action: run.ActionStartPhase, RunID: "run-1", PhaseID: "a",
	})
	assert.ErrorIs(t, err, run.ErrValidation, "missing actor")

	_, err = eng.ApplyAction(context.Background(), &run.Request{
		Action: "NUKE_PHASE", RunID: "run-1", PhaseID: "a", ActorID: "tester",
	})
	assert.ErrorIs(t, err, run.ErrValidation, "unknown action")
}

func TestApplyActionNormalizesActionCase(t *testing.T) {
	eng := newDiamondEngine(completing{})
	_, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)

	response, err := eng.ApplyAction(context.Background(), &run.Request{
		Action: "start_phase", RunID: "run-1", PhaseID: "a", ActorID: "tester",
	})
	require.NoError(t, err)
	assert.True(t, response.Accepted)
	assert.Equal(t, run.StatusCompleted, response.Status)
}

func TestApplyActionUnknownRun(t *testing.T) {
	eng := newDiamondEngine(nil)
	_, err := eng.ApplyAction(context.Background(), &run.Request{
		Action: run.ActionStartPhase, RunID: "missing", PhaseID: "a", ActorID: "tester",
	})
	assert.ErrorIs(t, err, run.ErrUnknownRun)
}

func TestApplyActionUnknownPhase(t *testing.T) {
	eng := newDiamondEngine(nil)
	_, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)

	_, err = eng.ApplyAction(context.Background(), &run.Request{
		Action: run.ActionStartPhase, RunID: "run-1", PhaseID: "z", ActorID: "tester",
	})
	assert.ErrorIs(t, err, run.ErrUnknownPhase)
}

func TestSnapshotSeedsAndStaysIndependent(t *testing.T) {
	eng := newDiamondEngine(nil)

	first, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)
	phaseA, _ := first.Phase("a")
	assert.Equal(t, run.StatusDraft, phaseA.Status)
	for _, id := range []string{"b", "c", "d"} {
		phase, _ := first.Phase(id)
		assert.Equal(t, run.StatusBlocked, phase.Status, id)
	}
	assertConsistent(t, first)

	// mutating a snapshot never leaks back into the engine
	phaseA.Status = run.StatusError
	second, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)
	phaseA2, _ := second.Phase("a")
	assert.Equal(t, run.StatusDraft, phaseA2.Status)
}

func TestDependencyResolutionUnblocksWhenAllSatisfied(t *testing.T) {
	eng := newDiamondEngine(completing{})
	_, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)

	apply(t, eng, run.ActionStartPhase, "run-1", "a")
	snapshot, _ := eng.Snapshot(context.Background(), "run-1")
	for _, id := range []string{"b", "c"} {
		phase, _ := snapshot.Phase(id)
		assert.Equal(t, run.StatusDraft, phase.Status, id)
	}
	phaseD, _ := snapshot.Phase("d")
	assert.Equal(t, run.StatusBlocked, phaseD.Status)

	apply(t, eng, run.ActionStartPhase, "run-1", "b")
	snapshot, _ = eng.Snapshot(context.Background(), "run-1")
	phaseD, _ = snapshot.Phase("d")
	assert.Equal(t, run.StatusBlocked, phaseD.Status, "one of two dependencies satisfied")

	apply(t, eng, run.ActionStartPhase, "run-1", "c")
	snapshot, _ = eng.Snapshot(context.Background(), "run-1")
	phaseD, _ = snapshot.Phase("d")
	assert.Equal(t, run.StatusDraft, phaseD.Status)
	assertConsistent(t, snapshot)
}

func TestStartRequiresDraftStatus(t *testing.T) {
	eng := newDiamondEngine(completing{})
	_, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)

	_, err = eng.ApplyAction(context.Background(), &run.Request{
		Action: run.ActionStartPhase, RunID: "run-1", PhaseID: "b", ActorID: "tester",
	})
	assert.ErrorIs(t, err, run.ErrValidation, "blocked phase cannot start")
}

func TestRejectThenRetryResetsAttempt(t *testing.T) {
	eng := newDiamondEngine(parking{})
	_, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)

	apply(t, eng, run.ActionStartPhase, "run-1", "a")
	response, err := eng.ApplyAction(context.Background(), &run.Request{
		Action: run.ActionRejectPhase, RunID: "run-1", PhaseID: "a",
		ActorID: "tester", Reason: "not what I asked for",
	})
	require.NoError(t, err)
	assert.Equal(t, run.StatusRejected, response.Status)

	snapshot, _ := eng.Snapshot(context.Background(), "run-1")
	phaseA, _ := snapshot.Phase("a")
	assert.Equal(t, "not what I asked for", phaseA.Error)

	apply(t, eng, run.ActionRetryPhase, "run-1", "a")
	snapshot, _ = eng.Snapshot(context.Background(), "run-1")
	phaseA, _ = snapshot.Phase("a")
	assert.Equal(t, 2, phaseA.Attempt)
	assert.Empty(t, phaseA.Error)
	assert.Nil(t, phaseA.Output)
	assert.Empty(t, phaseA.Artifacts)
	assertConsistent(t, snapshot)
}

func TestRetryScopesArtifactsToAttempt(t *testing.T) {
	eng := newDiamondEngine(completing{})
	_, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)

	apply(t, eng, run.ActionStartPhase, "run-1", "a")
	apply(t, eng, run.ActionRetryPhase, "run-1", "a")

	latest, err := eng.ListArtifacts(context.Background(), "run-1", "a", true)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "render attempt 2", latest[0].Data)

	all, err := eng.ListArtifacts(context.Background(), "run-1", "a", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "render attempt 1", all[0].Data)
	assert.Equal(t, "render attempt 2", all[1].Data)
}

func TestResetRunDiscardsStateAndArtifacts(t *testing.T) {
	bus := event.New()
	eng := engine.New(memory.New(), bus, diamondDefinition(), engine.WithCoordinator(completing{}))
	_, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)
	apply(t, eng, run.ActionStartPhase, "run-1", "a")

	var types []string
	bus.Subscribe("run-1", func(e *event.Event) { types = append(types, e.Type) })

	fresh, err := eng.ResetRun(context.Background(), "run-1", "tester")
	require.NoError(t, err)
	phaseA, _ := fresh.Phase("a")
	assert.Equal(t, run.StatusDraft, phaseA.Status)
	assert.Equal(t, 1, phaseA.Attempt)

	artifacts, err := eng.ListArtifacts(context.Background(), "run-1", "a", false)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
	assert.Contains(t, types, event.TypeRunReset)
}

func TestEventsFollowEveryTransition(t *testing.T) {
	bus := event.New()
	eng := engine.New(memory.New(), bus, diamondDefinition(), engine.WithCoordinator(completing{}))
	_, err := eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)

	type transition struct{ phase, from, to string }
	var seen []transition
	bus.Subscribe("run-1", func(e *event.Event) {
		if e.Type == event.TypePhaseUpdated {
			seen = append(seen, transition{e.PhaseID, e.PreviousStatus, e.Status})
		}
	})

	apply(t, eng, run.ActionStartPhase, "run-1", "a")

	require.GreaterOrEqual(t, len(seen), 4)
	assert.Equal(t, transition{"a", "DRAFT", "RUNNING"}, seen[0])
	assert.Equal(t, transition{"a", "RUNNING", "COMPLETED"}, seen[1])
	assert.Contains(t, seen, transition{"b", "BLOCKED", "DRAFT"})
	assert.Contains(t, seen, transition{"c", "BLOCKED", "DRAFT"})
}

func TestDurableStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := fs.New(dir)
	require.NoError(t, err)
	eng := engine.New(store, event.New(), diamondDefinition(), engine.WithCoordinator(completing{}))

	_, err = eng.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)
	apply(t, eng, run.ActionStartPhase, "run-1", "a")

	// the committed document is complete on its own
	data, err := os.ReadFile(store.DocumentPath())
	require.NoError(t, err)
	var document map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &document))
	assert.Contains(t, document["runs"], "run-1")

	// a cold engine over the same directory sees the applied state
	reopened, err := fs.New(dir)
	require.NoError(t, err)
	restarted := engine.New(reopened, event.New(), diamondDefinition(), engine.WithCoordinator(completing{}))
	snapshot, err := restarted.Snapshot(context.Background(), "run-1")
	require.NoError(t, err)
	phaseA, _ := snapshot.Phase("a")
	assert.Equal(t, run.StatusCompleted, phaseA.Status)
	phaseB, _ := snapshot.Phase("b")
	assert.Equal(t, run.StatusDraft, phaseB.Status)
}
