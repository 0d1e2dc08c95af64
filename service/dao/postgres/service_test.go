package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/dao"
)

// openTestStore connects to the database named by POSTGRES_DSN, skipping the
// test when none is configured.
func openTestStore(t *testing.T) *Service {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	store, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRun(runID string) *run.Run {
	definition := &model.Definition{
		ID:      "pipeline",
		Version: "1",
		Phases: []*model.PhaseSpec{
			{ID: "first", Kind: model.KindGate},
			{ID: "second", Kind: model.KindVariant, DependsOn: []string{"first"}},
		},
	}
	return run.New(definition, runID)
}

func TestSaveLoadDeleteRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	runID := "pg-test-" + t.Name()
	t.Cleanup(func() { _ = store.DeleteRun(ctx, runID) })

	require.NoError(t, store.SaveRun(ctx, testRun(runID)))

	loaded, err := store.LoadRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, loaded.RunID)
	phase, ok := loaded.Phase("first")
	require.True(t, ok)
	assert.Equal(t, run.StatusDraft, phase.Status)

	require.NoError(t, store.DeleteRun(ctx, runID))
	_, err = store.LoadRun(ctx, runID)
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestArtifactsAreImmutableAndFiltered(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	runID := "pg-test-" + t.Name()
	t.Cleanup(func() { _ = store.DeleteRun(ctx, runID) })

	first := run.NewArtifact(runID, "first", 1, run.ArtifactRender, "attempt one")
	second := run.NewArtifact(runID, "first", 2, run.ArtifactRender, "attempt two")
	require.NoError(t, store.SaveArtifacts(ctx, first, second))

	// re-saving an existing artifact id does not overwrite it
	mutated := *first
	mutated.Data = "tampered"
	require.NoError(t, store.SaveArtifacts(ctx, &mutated))

	latest, err := store.ListArtifacts(ctx, dao.ArtifactQuery{RunID: runID, PhaseID: "first", Attempt: 2})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "attempt two", latest[0].Data)

	all, err := store.ListArtifacts(ctx, dao.ArtifactQuery{RunID: runID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "attempt one", all[0].Data)
}
