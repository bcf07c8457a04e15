// Package widecolumn implements the primary ExperimentStore backend (spec
// §4.4): the authoritative store, modeled as a JSONB attribute blob plus a
// handful of promoted, indexed columns (id, applicationName, label, state)
// so it reads as "wide-column" rather than fully normalized. It also owns
// the audit trail and the applications index.
package widecolumn

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abtest/experiment-core/internal/models"
	"github.com/abtest/experiment-core/internal/xerrors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/rs/zerolog/log"
)

const uniqueViolationCode = "23505"

// Store is the pgx-backed primary ExperimentStore.
type Store struct {
	db *sql.DB
}

// Open connects to dsn using the pgx driver. Schema management is the
// responsibility of the golang-migrate runner in cmd/experimentcore, not
// this constructor; Open only verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("widecolumn: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("widecolumn: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an already-open *sql.DB without touching the schema,
// useful for tests that inject a sqlmock.DB.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// attributes is the JSONB payload: every field of models.Experiment not
// promoted to its own indexed column.
type attributes struct {
	Description              string    `json:"description"`
	StartTime                time.Time `json:"startTime"`
	EndTime                  time.Time `json:"endTime"`
	SamplingPercent          float64   `json:"samplingPercent"`
	Rule                     string    `json:"rule"`
	IsPersonalizationEnabled bool      `json:"isPersonalizationEnabled"`
	ModelName                string    `json:"modelName"`
	ModelVersion             string    `json:"modelVersion"`
	IsRapidExperiment        bool      `json:"isRapidExperiment"`
	UserCap                  int       `json:"userCap"`
	CreationTime             time.Time `json:"creationTime"`
	ModificationTime         time.Time `json:"modificationTime"`
}

func toAttributes(e *models.Experiment) attributes {
	return attributes{
		Description:              e.Description,
		StartTime:                e.StartTime,
		EndTime:                  e.EndTime,
		SamplingPercent:          e.SamplingPercent,
		Rule:                     e.Rule,
		IsPersonalizationEnabled: e.IsPersonalizationEnabled,
		ModelName:                e.ModelName,
		ModelVersion:             e.ModelVersion,
		IsRapidExperiment:        e.IsRapidExperiment,
		UserCap:                  e.UserCap,
		CreationTime:             e.CreationTime,
		ModificationTime:         e.ModificationTime,
	}
}

func fromRow(id, appName, label, state string, raw []byte) (*models.Experiment, error) {
	var a attributes
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("widecolumn: unmarshal attributes: %w", err)
	}
	return &models.Experiment{
		ID:                       id,
		ApplicationName:          appName,
		Label:                    label,
		State:                    models.State(state),
		Description:              a.Description,
		StartTime:                a.StartTime,
		EndTime:                  a.EndTime,
		SamplingPercent:          a.SamplingPercent,
		Rule:                     a.Rule,
		IsPersonalizationEnabled: a.IsPersonalizationEnabled,
		ModelName:                a.ModelName,
		ModelVersion:             a.ModelVersion,
		IsRapidExperiment:        a.IsRapidExperiment,
		UserCap:                  a.UserCap,
		CreationTime:             a.CreationTime,
		ModificationTime:         a.ModificationTime,
	}, nil
}

// CreateExperiment mints an id and inserts the row. Satisfies I6 via the
// partial unique index on (application_name, label) WHERE NOT deleted.
func (s *Store) CreateExperiment(ctx context.Context, new *models.Experiment) (string, error) {
	id := uuid.New().String()
	now := new.CreationTime
	if now.IsZero() {
		now = time.Now()
	}

	payload := toAttributes(new)
	payload.CreationTime = now
	payload.ModificationTime = now
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", xerrors.NewRepositoryError("CreateExperiment", xerrors.KindSchema, err)
	}

	const q = `
INSERT INTO experiments (id, application_name, label, state, attributes, deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
`
	_, err = s.db.ExecContext(ctx, q, id, new.ApplicationName, new.Label, string(new.State), raw, now)
	if err != nil {
		return "", classifyError("CreateExperiment", err)
	}
	return id, nil
}

// CreateIndicesForNewExperiment registers new.ApplicationName in the
// applications index if this is its first appearance. Primary-only (spec §4.4).
func (s *Store) CreateIndicesForNewExperiment(ctx context.Context, new *models.Experiment) error {
	const q = `
INSERT INTO applications (application_name, first_seen_at)
VALUES ($1, $2)
ON CONFLICT (application_name) DO NOTHING
`
	if _, err := s.db.ExecContext(ctx, q, new.ApplicationName, time.Now()); err != nil {
		return classifyError("CreateIndicesForNewExperiment", err)
	}
	return nil
}

// GetExperiment fetches a live (non-deleted) experiment by id.
func (s *Store) GetExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	const q = `
SELECT id, application_name, label, state, attributes
FROM experiments WHERE id = $1 AND NOT deleted
`
	row := s.db.QueryRowContext(ctx, q, id)
	var rid, appName, label, state string
	var raw []byte
	if err := row.Scan(&rid, &appName, &label, &state, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.NewRepositoryError("GetExperiment", xerrors.KindNotFound, xerrors.ErrNotFound)
		}
		return nil, classifyError("GetExperiment", err)
	}
	return fromRow(rid, appName, label, state, raw)
}

// GetExperimentByLabel fetches a live experiment by (applicationName, label).
func (s *Store) GetExperimentByLabel(ctx context.Context, appName, label string) (*models.Experiment, error) {
	const q = `
SELECT id, application_name, label, state, attributes
FROM experiments WHERE application_name = $1 AND label = $2 AND NOT deleted
`
	row := s.db.QueryRowContext(ctx, q, appName, label)
	var rid, rapp, rlabel, state string
	var raw []byte
	if err := row.Scan(&rid, &rapp, &rlabel, &state, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.NewRepositoryError("GetExperimentByLabel", xerrors.KindNotFound, xerrors.ErrNotFound)
		}
		return nil, classifyError("GetExperimentByLabel", err)
	}
	return fromRow(rid, rapp, rlabel, state, raw)
}

// GetExperiments returns every live experiment, across all applications.
func (s *Store) GetExperiments(ctx context.Context) ([]*models.Experiment, error) {
	return s.query(ctx, `
SELECT id, application_name, label, state, attributes
FROM experiments WHERE NOT deleted
`)
}

// GetExperimentsByApp returns every live experiment for appName.
func (s *Store) GetExperimentsByApp(ctx context.Context, appName string) ([]*models.Experiment, error) {
	return s.query(ctx, `
SELECT id, application_name, label, state, attributes
FROM experiments WHERE application_name = $1 AND NOT deleted
`, appName)
}

func (s *Store) query(ctx context.Context, q string, args ...interface{}) ([]*models.Experiment, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classifyError("query", err)
	}
	defer rows.Close()

	var out []*models.Experiment
	for rows.Next() {
		var rid, appName, label, state string
		var raw []byte
		if err := rows.Scan(&rid, &appName, &label, &state, &raw); err != nil {
			return nil, classifyError("query:scan", err)
		}
		exp, err := fromRow(rid, appName, label, state, raw)
		if err != nil {
			return nil, xerrors.NewRepositoryError("query", xerrors.KindSchema, err)
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("query:rows", err)
	}
	return out, nil
}

// UpdateExperiment overwrites the row for exp.ID with its current values.
func (s *Store) UpdateExperiment(ctx context.Context, exp *models.Experiment) (*models.Experiment, error) {
	payload := toAttributes(exp)
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, xerrors.NewRepositoryError("UpdateExperiment", xerrors.KindSchema, err)
	}

	const q = `
UPDATE experiments
SET application_name = $2, label = $3, state = $4, attributes = $5, updated_at = $6
WHERE id = $1 AND NOT deleted
`
	res, err := s.db.ExecContext(ctx, q, exp.ID, exp.ApplicationName, exp.Label, string(exp.State), raw, time.Now())
	if err != nil {
		return nil, classifyError("UpdateExperiment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.NewRepositoryError("UpdateExperiment", xerrors.KindTransient, err)
	}
	if n == 0 {
		return nil, xerrors.NewRepositoryError("UpdateExperiment", xerrors.KindNotFound, xerrors.ErrNotFound)
	}
	return exp, nil
}

// DeleteExperiment performs a logical delete: the row is marked deleted so
// the id is never reused (spec §3 "Lifecycle").
func (s *Store) DeleteExperiment(ctx context.Context, exp *models.Experiment) error {
	const q = `UPDATE experiments SET deleted = TRUE, updated_at = $2 WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, exp.ID, time.Now())
	if err != nil {
		return classifyError("DeleteExperiment", err)
	}
	return nil
}

// LogExperimentChanges appends one audit row per entry. Primary-only (spec §4.4).
func (s *Store) LogExperimentChanges(ctx context.Context, id string, audit []models.AuditInfo) error {
	if len(audit) == 0 {
		return nil
	}
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError("LogExperimentChanges", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("widecolumn: rollback audit insert failed")
			}
		}
	}()

	const q = `
INSERT INTO experiment_audit (experiment_id, attribute_name, old_value, new_value, recorded_at)
VALUES ($1, $2, $3, $4, $5)
`
	for _, entry := range audit {
		if _, err = tx.ExecContext(ctx, q, id, entry.AttributeName, entry.OldValue, entry.NewValue, now); err != nil {
			return classifyError("LogExperimentChanges", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return classifyError("LogExperimentChanges", err)
	}
	return nil
}

// GetApplicationsList returns every application that has ever had an
// experiment created, backed by the applications index table rather than a
// derived DISTINCT scan (SPEC_FULL.md §3).
func (s *Store) GetApplicationsList(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT application_name FROM applications ORDER BY application_name`)
	if err != nil {
		return nil, classifyError("GetApplicationsList", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classifyError("GetApplicationsList:scan", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("GetApplicationsList:rows", err)
	}
	return out, nil
}

// classifyError maps a raw driver error into a RepositoryError with the
// right Kind: unique-violation -> conflict, sql.ErrNoRows -> notFound,
// everything else -> transient (callers may retry whole operations).
func classifyError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return xerrors.NewRepositoryError(op, xerrors.KindConflict, xerrors.ErrConflict)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return xerrors.NewRepositoryError(op, xerrors.KindNotFound, xerrors.ErrNotFound)
	}
	return xerrors.NewRepositoryError(op, xerrors.KindTransient, err)
}
