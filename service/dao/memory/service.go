package memory

import (
	"context"
	"sync"

	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/dao"
)

// Service is an in-memory implementation of the document store, used by
// tests and ephemeral deployments. Snapshots are cloned on the way in and
// out so callers can never mutate stored state through a retained pointer.
type Service struct {
	mu       sync.RWMutex
	document *dao.Document
}

// Ensure Service implements dao.Service
var _ dao.Service = (*Service)(nil)

// New creates an empty in-memory store.
func New() *Service {
	return &Service{document: dao.NewDocument()}
}

// SaveRun stores a deep copy of the snapshot.
func (s *Service) SaveRun(_ context.Context, aRun *run.Run) error {
	if aRun == nil {
		return dao.ErrNilEntity
	}
	if aRun.RunID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document.PutRun(aRun.Clone())
	s.document.Stamp()
	return nil
}

// LoadRun returns a deep copy of the stored snapshot.
func (s *Service) LoadRun(_ context.Context, runID string) (*run.Run, error) {
	if runID == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.document.Runs[runID]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return stored.Clone(), nil
}

// DeleteRun removes the snapshot and the run's artifacts.
func (s *Service) DeleteRun(_ context.Context, runID string) error {
	if runID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document.RemoveRun(runID)
	s.document.Stamp()
	return nil
}

// SaveArtifacts appends artifacts.
func (s *Service) SaveArtifacts(_ context.Context, artifacts ...*run.Artifact) error {
	for _, a := range artifacts {
		if a == nil {
			return dao.ErrNilEntity
		}
		if a.ArtifactID == "" {
			return dao.ErrInvalidID
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range artifacts {
		copied := *a
		s.document.Append(&copied)
	}
	s.document.Stamp()
	return nil
}

// ListArtifacts returns matching artifacts in chronological order.
func (s *Service) ListArtifacts(_ context.Context, query dao.ArtifactQuery) ([]*run.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.document.Filter(query)
	ret := make([]*run.Artifact, 0, len(matched))
	for _, a := range matched {
		copied := *a
		ret = append(ret, &copied)
	}
	return ret, nil
}
