package dao

import (
	"context"

	"github.com/strokeworks/vectorflow/model/run"
)

// Service is the durable document store behind the engine: run snapshots
// plus attempt-scoped artifacts. Implementations must guarantee that a
// crash mid-write never corrupts the previously committed state.
type Service interface {
	// SaveRun persists (or overwrites) a run snapshot.
	SaveRun(ctx context.Context, aRun *run.Run) error

	// LoadRun returns the stored snapshot or ErrNotFound.
	LoadRun(ctx context.Context, runID string) (*run.Run, error)

	// DeleteRun removes the run snapshot and every artifact whose runId
	// matches.
	DeleteRun(ctx context.Context, runID string) error

	// SaveArtifacts appends artifacts in one commit.
	SaveArtifacts(ctx context.Context, artifacts ...*run.Artifact) error

	// ListArtifacts returns artifacts matching the query, chronologically
	// ordered.
	ListArtifacts(ctx context.Context, query ArtifactQuery) ([]*run.Artifact, error)
}

// ArtifactQuery filters artifact retrieval. A zero Attempt matches all
// attempts.
type ArtifactQuery struct {
	RunID   string
	PhaseID string
	Attempt int
}

// Matches reports whether the artifact satisfies the query.
func (q ArtifactQuery) Matches(a *run.Artifact) bool {
	if a == nil {
		return false
	}
	if q.RunID != "" && a.RunID != q.RunID {
		return false
	}
	if q.PhaseID != "" && a.PhaseID != q.PhaseID {
		return false
	}
	if q.Attempt > 0 && a.Attempt != q.Attempt {
		return false
	}
	return true
}
