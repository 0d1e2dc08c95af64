// Package postgres implements the document store on PostgreSQL: one JSONB
// row per run snapshot plus a flat artifact table. Per-run write
// serialization uses transaction-scoped advisory locks, so concurrent
// engines sharing a database never interleave snapshot writes for the same
// run.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/service/dao"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id     TEXT PRIMARY KEY,
    document   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS artifacts (
    artifact_id TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL,
    phase_id    TEXT NOT NULL,
    attempt     INT  NOT NULL,
    kind        TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    data        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS artifacts_run_phase_idx ON artifacts (run_id, phase_id, attempt);
`

// Service is the PostgreSQL-backed document store.
type Service struct {
	db *sqlx.DB
}

// Ensure Service implements dao.Service
var _ dao.Service = (*Service)(nil)

// New wraps an existing database handle.
func New(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// Open connects to the database, verifies the connection and ensures the
// schema exists.
func Open(ctx context.Context, dsn string) (*Service, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}
	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the store tables when absent.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to ensure schema")
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Service) Close() error {
	return s.db.Close()
}

// SaveRun upserts the snapshot document under the run's advisory lock.
func (s *Service) SaveRun(ctx context.Context, aRun *run.Run) error {
	if aRun == nil {
		return dao.ErrNilEntity
	}
	if aRun.RunID == "" {
		return dao.ErrInvalidID
	}
	document, err := json.Marshal(aRun)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal run %s", aRun.RunID)
	}
	return s.withRunLock(ctx, aRun.RunID, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO runs (run_id, document, updated_at)
            VALUES ($1, $2, now())
            ON CONFLICT (run_id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
			aRun.RunID, document)
		return errors.Wrapf(err, "failed to save run %s", aRun.RunID)
	})
}

// LoadRun reads the snapshot document.
func (s *Service) LoadRun(ctx context.Context, runID string) (*run.Run, error) {
	if runID == "" {
		return nil, dao.ErrInvalidID
	}
	var document []byte
	err := s.db.GetContext(ctx, &document, `SELECT document FROM runs WHERE run_id = $1`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dao.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", runID)
	}
	aRun := &run.Run{}
	if err := json.Unmarshal(document, aRun); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal run %s", runID)
	}
	return aRun, nil
}

// DeleteRun removes the snapshot and the run's artifacts in one transaction.
func (s *Service) DeleteRun(ctx context.Context, runID string) error {
	if runID == "" {
		return dao.ErrInvalidID
	}
	return s.withRunLock(ctx, runID, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE run_id = $1`, runID); err != nil {
			return errors.Wrapf(err, "failed to delete artifacts of run %s", runID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = $1`, runID); err != nil {
			return errors.Wrapf(err, "failed to delete run %s", runID)
		}
		return nil
	})
}

// SaveArtifacts appends artifacts in one commit. Re-saving an artifact id is
// a no-op: artifacts are immutable.
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
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()
	for _, a := range artifacts {
		_, err := tx.NamedExecContext(ctx, `
            INSERT INTO artifacts (artifact_id, run_id, phase_id, attempt, kind, created_at, data)
            VALUES (:artifact_id, :run_id, :phase_id, :attempt, :kind, :created_at, :data)
            ON CONFLICT (artifact_id) DO NOTHING`,
			newArtifactRow(a))
		if err != nil {
			return errors.Wrapf(err, "failed to save artifact %s", a.ArtifactID)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit artifacts")
}

// ListArtifacts returns artifacts matching the query in chronological order.
func (s *Service) ListArtifacts(ctx context.Context, query dao.ArtifactQuery) ([]*run.Artifact, error) {
	where := `TRUE`
	args := map[string]interface{}{}
	if query.RunID != "" {
		where += ` AND run_id = :run_id`
		args["run_id"] = query.RunID
	}
	if query.PhaseID != "" {
		where += ` AND phase_id = :phase_id`
		args["phase_id"] = query.PhaseID
	}
	if query.Attempt > 0 {
		where += ` AND attempt = :attempt`
		args["attempt"] = query.Attempt
	}
	statement, queryArgs, err := sqlx.Named(`
        SELECT artifact_id, run_id, phase_id, attempt, kind, created_at, data
        FROM artifacts WHERE `+where+` ORDER BY created_at, artifact_id`, args)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build artifact query")
	}
	var rows []artifactRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(statement), queryArgs...); err != nil {
		return nil, errors.Wrap(err, "failed to list artifacts")
	}
	ret := make([]*run.Artifact, len(rows))
	for i, row := range rows {
		ret[i] = row.artifact()
	}
	return ret, nil
}

// withRunLock runs the mutation inside a transaction holding the run's
// advisory lock; the lock releases with the transaction.
func (s *Service) withRunLock(ctx context.Context, runID string, mutate func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, runID); err != nil {
		return errors.Wrapf(err, "failed to lock run %s", runID)
	}
	if err := mutate(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit")
}
