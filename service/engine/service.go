// Package engine implements the phase state machine: the authoritative
// in-memory representation of a run, action application, dependency-driven
// unblocking and run lifecycle. The durable document on disk is the source
// of truth on cold start; the in-memory registry is a cache over it.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/strokeworks/vectorflow/internal/idgen"
	"github.com/strokeworks/vectorflow/internal/log"
	"github.com/strokeworks/vectorflow/model"
	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/dao"
	"github.com/strokeworks/vectorflow/service/event"
	"github.com/strokeworks/vectorflow/tracing"
)

// Coordinator owns phase-kind-specific orchestration beyond generic status
// transitions. The engine delegates START and APPROVE actions to it, and
// offers it RETRY follow-ups; the coordinator mutates the run exclusively
// through the supplied transaction.
type Coordinator interface {
	Execute(ctx context.Context, txn *Txn) error
}

// Service applies actions against runs, seeds and resets them, and keeps
// the per-run in-memory cache consistent with the durable store.
type Service struct {
	store       dao.Service
	bus         *event.Service
	definition  *model.Definition
	coordinator Coordinator

	mu    sync.Mutex
	cache map[string]*run.Run
	locks map[string]*sync.Mutex
}

// Option customises the engine.
type Option func(s *Service)

// WithCoordinator attaches the phase execution coordinator.
func WithCoordinator(coordinator Coordinator) Option {
	return func(s *Service) { s.coordinator = coordinator }
}

// New creates an engine over the given store, bus and workflow definition.
func New(store dao.Service, bus *event.Service, definition *model.Definition, options ...Option) *Service {
	s := &Service{
		store:      store,
		bus:        bus,
		definition: definition,
		cache:      map[string]*run.Run{},
		locks:      map[string]*sync.Mutex{},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Definition returns the workflow definition runs are seeded from.
func (s *Service) Definition() *model.Definition {
	return s.definition
}

// ApplyAction validates and applies one action against a phase. On
// acceptance the returned response carries the causing event, produced
// artifact references and, for fan-outs, the per-branch summary. A rejected
// action returns a response with Accepted=false alongside the sentinel
// error, so callers can match with errors.Is while still reading the
// machine-checkable status and message.
func (s *Service) ApplyAction(ctx context.Context, request *run.Request) (*run.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.ApplyAction", "")
	response, err := s.applyAction(ctx, request)
	tracing.EndSpan(span, err)
	return response, err
}

func (s *Service) applyAction(ctx context.Context, request *run.Request) (*run.Response, error) {
	if err := validateRequest(request); err != nil {
		return reject(request, "", err), err
	}

	lock := s.runLock(request.RunID)
	lock.Lock()
	defer lock.Unlock()

	aRun, err := s.loadLocked(ctx, request.RunID)
	if err != nil {
		return reject(request, "", err), err
	}
	phase, ok := aRun.Phase(request.PhaseID)
	if !ok {
		err := run.ErrUnknownPhase
		return reject(request, "", err), err
	}
	if !phase.CanApply(request.Action) {
		err := run.Validationf("action %s not allowed while phase %s is %s", request.Action, request.PhaseID, phase.Status)
		return reject(request, phase.Status, err), err
	}

	// Mutate a private deep copy; the shared cache only ever sees fully
	// applied, persisted snapshots.
	txn := newTxn(s.definition, aRun.Clone(), request)
	dispatchErr := s.dispatch(ctx, txn)
	if dispatchErr != nil && rejectedBeforeMutation(dispatchErr) {
		return reject(request, phase.Status, dispatchErr), dispatchErr
	}

	txn.Run.Touch()
	if err := s.persist(ctx, txn); err != nil {
		return reject(request, phase.Status, err), err
	}
	for _, e := range txn.events {
		s.bus.Publish(e)
	}

	applied, _ := txn.Phase(request.PhaseID)
	if dispatchErr != nil {
		response := reject(request, applied.Status, dispatchErr)
		response.Branches = txn.branches
		return response, dispatchErr
	}
	return &run.Response{
		Accepted:  true,
		RunID:     request.RunID,
		PhaseID:   request.PhaseID,
		Status:    applied.Status,
		Event:     txn.causingEvent(),
		Artifacts: txn.artifactRefs(),
		Branches:  txn.branches,
	}, nil
}

// dispatch routes the action: REJECT is generic, RETRY resets the phase and
// offers the coordinator a follow-up, START and APPROVE are coordinator
// territory when one is attached.
func (s *Service) dispatch(ctx context.Context, txn *Txn) error {
	request := txn.Request
	phase, _ := txn.Phase(request.PhaseID)
	previous := phase.Status

	switch request.Action {
	case run.ActionRejectPhase:
		phase.Reject(request.Reason)
		txn.Commit(request.PhaseID, previous)
		return nil
	case run.ActionRetryPhase:
		phase.ResetForRetry()
		txn.Commit(request.PhaseID, previous)
		if s.coordinator != nil {
			return s.coordinator.Execute(ctx, txn)
		}
		return nil
	case run.ActionStartPhase, run.ActionApprovePhase:
		if s.coordinator != nil {
			return s.coordinator.Execute(ctx, txn)
		}
		if request.Action == run.ActionStartPhase {
			phase.Begin()
		} else {
			phase.Approve()
		}
		txn.Commit(request.PhaseID, previous)
		return nil
	}
	return run.Validationf("unsupported action %q", request.Action)
}

// persist commits artifacts then the snapshot; only a fully saved snapshot
// replaces the cached one.
func (s *Service) persist(ctx context.Context, txn *Txn) error {
	if len(txn.artifacts) > 0 {
		if err := s.store.SaveArtifacts(ctx, txn.artifacts...); err != nil {
			return err
		}
	}
	if err := s.store.SaveRun(ctx, txn.Run); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[txn.Run.RunID] = txn.Run
	s.mu.Unlock()
	return nil
}

// Snapshot returns a deep, independent copy of the run, seeding a fresh
// default run on first access.
func (s *Service) Snapshot(ctx context.Context, runID string) (*run.Run, error) {
	if runID == "" {
		return nil, run.ErrUnknownRun
	}
	lock := s.runLock(runID)
	lock.Lock()
	defer lock.Unlock()

	aRun, err := s.loadLocked(ctx, runID)
	if errors.Is(err, run.ErrUnknownRun) {
		aRun, err = s.seedLocked(ctx, runID)
	}
	if err != nil {
		return nil, err
	}
	return aRun.Clone(), nil
}

// ResetRun discards the run's in-memory and durable state, including its
// artifacts, and re-seeds it from the definition: the lead gate phase in
// DRAFT, its direct dependents BLOCKED.
func (s *Service) ResetRun(ctx context.Context, runID, actorID string) (*run.Run, error) {
	if runID == "" {
		return nil, run.ErrUnknownRun
	}
	lock := s.runLock(runID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.DeleteRun(ctx, runID); err != nil && !errors.Is(err, dao.ErrNotFound) {
		return nil, err
	}
	s.mu.Lock()
	delete(s.cache, runID)
	s.mu.Unlock()

	aRun, err := s.seedLocked(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(event.RunReset(runID, actorID))
	log.GetLogger().WithField("runId", runID).Info("run reset to initial gate")
	return aRun.Clone(), nil
}

// ListArtifacts exposes the store's artifact query, resolving the current
// attempt when latestOnly is set.
func (s *Service) ListArtifacts(ctx context.Context, runID, phaseID string, latestOnly bool) ([]*run.Artifact, error) {
	query := dao.ArtifactQuery{RunID: runID, PhaseID: phaseID}
	if latestOnly {
		snapshot, err := s.Snapshot(ctx, runID)
		if err != nil {
			return nil, err
		}
		phase, ok := snapshot.Phase(phaseID)
		if !ok {
			return nil, run.ErrUnknownPhase
		}
		query.Attempt = phase.Attempt
	}
	return s.store.ListArtifacts(ctx, query)
}

// NewRunID generates an identifier for a fresh run.
func (s *Service) NewRunID() string {
	return idgen.New()
}

// loadLocked returns the cached snapshot or falls back to the store.
func (s *Service) loadLocked(ctx context.Context, runID string) (*run.Run, error) {
	s.mu.Lock()
	cached, ok := s.cache[runID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}
	stored, err := s.store.LoadRun(ctx, runID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, run.ErrUnknownRun
		}
		return nil, err
	}
	s.mu.Lock()
	s.cache[runID] = stored
	s.mu.Unlock()
	return stored, nil
}

// seedLocked creates, persists and caches a fresh run.
func (s *Service) seedLocked(ctx context.Context, runID string) (*run.Run, error) {
	aRun := run.New(s.definition, runID)
	if err := s.store.SaveRun(ctx, aRun); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[runID] = aRun
	s.mu.Unlock()
	return aRun, nil
}

// runLock returns the per-run action mutex, creating it on first use.
func (s *Service) runLock(runID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[runID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[runID] = lock
	}
	return lock
}

func validateRequest(request *run.Request) error {
	if request == nil {
		return run.Validationf("request is required")
	}
	action, ok := run.ParseAction(string(request.Action))
	if !ok {
		return run.Validationf("unsupported action %q", request.Action)
	}
	request.Action = action
	if request.ActorID == "" {
		return run.Validationf("actorId is required")
	}
	if request.RunID == "" {
		return run.Validationf("runId is required")
	}
	if request.PhaseID == "" {
		return run.Validationf("phaseId is required")
	}
	return nil
}

// rejectedBeforeMutation reports whether the error class guarantees the
// action was rejected before any state change, so nothing needs persisting.
func rejectedBeforeMutation(err error) bool {
	return errors.Is(err, run.ErrValidation) || errors.Is(err, run.ErrSelectorNotFound)
}

func reject(request *run.Request, status run.Status, err error) *run.Response {
	response := &run.Response{
		Accepted: false,
		Status:   status,
		Message:  err.Error(),
	}
	if request != nil {
		response.RunID = request.RunID
		response.PhaseID = request.PhaseID
	}
	return response
}
