package run

import (
	"fmt"
	"time"

	"github.com/strokeworks/vectorflow/internal/clock"
	"github.com/strokeworks/vectorflow/internal/idgen"
)

// Artifact kinds produced by the default pipeline.
const (
	ArtifactBrief  = "brief"
	ArtifactRender = "render"
	ArtifactRubric = "rubric"
	ArtifactDiff   = "diff"
)

// Artifact is an immutable, attempt-scoped byproduct of a phase. Artifacts
// are owned by the durable store; phases hold lightweight references only.
type Artifact struct {
	ArtifactID string    `json:"artifactId"`
	RunID      string    `json:"runId"`
	PhaseID    string    `json:"phaseId"`
	Attempt    int       `json:"attempt"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"createdAt"`
	Data       string    `json:"data"`
}

// NewArtifact creates an artifact for the given phase attempt.
func NewArtifact(runID, phaseID string, attempt int, kind, data string) *Artifact {
	return &Artifact{
		ArtifactID: idgen.New(),
		RunID:      runID,
		PhaseID:    phaseID,
		Attempt:    attempt,
		Kind:       kind,
		CreatedAt:  clock.Now(),
		Data:       data,
	}
}

// Ref returns the lightweight reference a phase keeps in place of the
// artifact itself.
func (a *Artifact) Ref() Ref {
	return Ref{
		ID:      a.ArtifactID,
		Kind:    a.Kind,
		Locator: fmt.Sprintf("%s/%s/%d/%s", a.RunID, a.PhaseID, a.Attempt, a.ArtifactID),
	}
}

// Ref points at a stored artifact without owning it.
type Ref struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Locator string `json:"locator"`
}
