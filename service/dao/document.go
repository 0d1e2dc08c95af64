package dao

import (
	"sort"
	"time"

	"github.com/strokeworks/vectorflow/internal/clock"
	"github.com/strokeworks/vectorflow/model/run"
)

// DocumentVersion is bumped whenever the on-disk document layout changes.
const DocumentVersion = 1

// Document is the single logical document a file-backed store persists:
// every known run snapshot plus every artifact, addressed by generated
// identifiers.
type Document struct {
	Version   int                 `json:"version"`
	SavedAt   time.Time           `json:"savedAt"`
	Runs      map[string]*run.Run `json:"runs"`
	Artifacts []*run.Artifact     `json:"artifacts"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Version: DocumentVersion,
		Runs:    map[string]*run.Run{},
	}
}

// PutRun stores a snapshot, replacing any previous one.
func (d *Document) PutRun(aRun *run.Run) {
	if d.Runs == nil {
		d.Runs = map[string]*run.Run{}
	}
	d.Runs[aRun.RunID] = aRun
}

// RemoveRun drops the run snapshot and every artifact owned by the run.
func (d *Document) RemoveRun(runID string) {
	delete(d.Runs, runID)
	var kept []*run.Artifact
	for _, a := range d.Artifacts {
		if a.RunID != runID {
			kept = append(kept, a)
		}
	}
	d.Artifacts = kept
}

// Append adds artifacts to the document.
func (d *Document) Append(artifacts ...*run.Artifact) {
	d.Artifacts = append(d.Artifacts, artifacts...)
}

// Filter returns artifacts matching the query in chronological order.
func (d *Document) Filter(query ArtifactQuery) []*run.Artifact {
	var ret []*run.Artifact
	for _, a := range d.Artifacts {
		if query.Matches(a) {
			ret = append(ret, a)
		}
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

// Stamp records the save time.
func (d *Document) Stamp() {
	d.Version = DocumentVersion
	d.SavedAt = clock.Now()
}
