package postgres

import (
	"time"

	"github.com/strokeworks/vectorflow/model/run"
)

type artifactRow struct {
	ArtifactID string    `db:"artifact_id"`
	RunID      string    `db:"run_id"`
	PhaseID    string    `db:"phase_id"`
	Attempt    int       `db:"attempt"`
	Kind       string    `db:"kind"`
	CreatedAt  time.Time `db:"created_at"`
	Data       string    `db:"data"`
}

func newArtifactRow(a *run.Artifact) artifactRow {
	return artifactRow{
		ArtifactID: a.ArtifactID,
		RunID:      a.RunID,
		PhaseID:    a.PhaseID,
		Attempt:    a.Attempt,
		Kind:       a.Kind,
		CreatedAt:  a.CreatedAt,
		Data:       a.Data,
	}
}

func (r artifactRow) artifact() *run.Artifact {
	return &run.Artifact{
		ArtifactID: r.ArtifactID,
		RunID:      r.RunID,
		PhaseID:    r.PhaseID,
		Attempt:    r.Attempt,
		Kind:       r.Kind,
		CreatedAt:  r.CreatedAt,
		Data:       r.Data,
	}
}
