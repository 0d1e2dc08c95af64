package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/strokeworks/vectorflow/internal/idgen"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/dao"
)

const documentName = "document.json"

// Service implements a filesystem-backed document store. All snapshots and
// artifacts live in one JSON document; every write acquires the directory
// lock, reads the whole document, applies the mutation and atomically
// replaces the file, so a crash mid-write leaves the previous commit
// intact.
type Service struct {
	rootPath    string
	baseURL     string
	documentURL string
	fs          afs.Service
	lock        *dirLock
	mu          sync.Mutex

	lockRetryDelay time.Duration
	lockTimeout    time.Duration
}

// Ensure Service implements dao.Service
var _ dao.Service = (*Service)(nil)

// Option customises the store.
type Option func(s *Service)

// WithLockTimeout bounds how long a write waits for the document lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.lockTimeout = timeout }
}

// WithLockRetryDelay sets the backoff between lock acquisition attempts.
func WithLockRetryDelay(delay time.Duration) Option {
	return func(s *Service) { s.lockRetryDelay = delay }
}

// New creates a filesystem document store rooted at the supplied local
// directory.
func New(rootPath string, options ...Option) (*Service, error) {
	if rootPath == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}
	s := &Service{
		rootPath: rootPath,
		fs:       afs.New(),
	}
	for _, opt := range options {
		opt(s)
	}

	ctx := context.Background()
	exists, _ := s.fs.Exists(ctx, rootPath)
	if !exists {
		if err := s.fs.Create(ctx, rootPath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	s.baseURL = url.Normalize(rootPath, file.Scheme)
	s.documentURL = url.Join(s.baseURL, documentName)
	s.lock = newDirLock(filepath.Join(rootPath, ".lock"), s.lockRetryDelay, s.lockTimeout)
	return s, nil
}

// DocumentPath returns the local path of the persisted document.
func (s *Service) DocumentPath() string {
	return filepath.Join(s.rootPath, documentName)
}

// SaveRun persists a run snapshot.
func (s *Service) SaveRun(ctx context.Context, aRun *run.Run) error {
	if aRun == nil {
		return dao.ErrNilEntity
	}
	if aRun.RunID == "" {
		return dao.ErrInvalidID
	}
	return s.update(ctx, func(document *dao.Document) error {
		document.PutRun(aRun)
		return nil
	})
}

// LoadRun reads a snapshot from the document.
func (s *Service) LoadRun(ctx context.Context, runID string) (*run.Run, error) {
	if runID == "" {
		return nil, dao.ErrInvalidID
	}
	document, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	aRun, ok := document.Runs[runID]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return aRun, nil
}

// DeleteRun removes the snapshot and every artifact of the run.
func (s *Service) DeleteRun(ctx context.Context, runID string) error {
	if runID == "" {
		return dao.ErrInvalidID
	}
	return s.update(ctx, func(document *dao.Document) error {
		document.RemoveRun(runID)
		return nil
	})
}

// SaveArtifacts appends artifacts in a single commit.
func (s *Service) SaveArtifacts(ctx context.Context, artifacts ...*run.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	for _, a := range artifacts {
		if a == nil {
			return dao.ErrNilEntity
		}
		if a.ArtifactID == "" {
			return dao.ErrInvalidID
		}
	}
	return s.update(ctx, func(document *dao.Document) error {
		document.Append(artifacts...)
		return nil
	})
}

// ListArtifacts returns artifacts matching the query, chronologically
// ordered.
func (s *Service) ListArtifacts(ctx context.Context, query dao.ArtifactQuery) ([]*run.Artifact, error) {
	document, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return document.Filter(query), nil
}

// update runs one locked read-modify-write cycle against the document.
func (s *Service) update(ctx context.Context, mutate func(document *dao.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Acquire(ctx); err != nil {
		return err
	}
	defer s.lock.Release()

	document, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := mutate(document); err != nil {
		return err
	}
	document.Stamp()

	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	// Write to a scratch file first, then atomically swap it in. The scratch
	// name must keep the .json extension: afs rewrites the move destination
	// when the source extension differs from it.
	tempURL := url.Join(s.baseURL, fmt.Sprintf(".document.%s.tmp.json", idgen.New()))
	if err := s.fs.Upload(ctx, tempURL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := s.fs.Move(ctx, tempURL, s.documentURL); err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}

// load reads the committed document, returning an empty one when the store
// has never been written.
func (s *Service) load(ctx context.Context) (*dao.Document, error) {
	exists, err := s.fs.Exists(ctx, s.documentURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check document: %w", err)
	}
	if !exists {
		return dao.NewDocument(), nil
	}
	data, err := s.fs.DownloadWithURL(ctx, s.documentURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	document := &dao.Document{}
	if err := json.Unmarshal(data, document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if document.Runs == nil {
		document.Runs = map[string]*run.Run{}
	}
	return document, nil
}
