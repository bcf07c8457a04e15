// Package relational implements the secondary ExperimentStore backend (spec
// §4.4): a normalized, denormalization-free mirror used for reporting
// joins. It has no audit table and no applications index — those are
// primary-only responsibilities.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abtest/experiment-core/internal/models"
	"github.com/abtest/experiment-core/internal/xerrors"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store is the lib/pq-backed secondary ExperimentStore.
type Store struct {
	db *sql.DB
}

// Open connects to dsn using the lib/pq driver. Schema management is the
// responsibility of the golang-migrate runner in cmd/experimentcore, not
// this constructor; Open only verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("relational: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("relational: ping: %w", err)
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

func scanRow(row interface{ Scan(...interface{}) error }) (*models.Experiment, error) {
	var e models.Experiment
	var state string
	err := row.Scan(
		&e.ID, &e.ApplicationName, &e.Label, &e.Description, &state,
		&e.StartTime, &e.EndTime, &e.SamplingPercent, &e.Rule,
		&e.IsPersonalizationEnabled, &e.ModelName, &e.ModelVersion,
		&e.IsRapidExperiment, &e.UserCap, &e.CreationTime, &e.ModificationTime,
	)
	if err != nil {
		return nil, err
	}
	e.State = models.State(state)
	return &e, nil
}

const selectColumns = `
	id, application_name, label, description, state,
	start_time, end_time, sampling_percent, rule,
	is_personalization_enabled, model_name, model_version,
	is_rapid_experiment, user_cap, creation_time, modification_time
`

// CreateExperiment inserts a row. If new.ID is already set (the service
// passes the id the primary store minted), it is reused; otherwise one is
// generated, so this backend also satisfies the ExperimentStore contract
// standalone.
func (s *Store) CreateExperiment(ctx context.Context, new *models.Experiment) (string, error) {
	id := new.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := new.CreationTime
	if now.IsZero() {
		now = time.Now()
	}

	const q = `
INSERT INTO experiments (
	id, application_name, label, description, state,
	start_time, end_time, sampling_percent, rule,
	is_personalization_enabled, model_name, model_version,
	is_rapid_experiment, user_cap, creation_time, modification_time
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
`
	_, err := s.db.ExecContext(ctx, q,
		id, new.ApplicationName, new.Label, new.Description, string(new.State),
		new.StartTime, new.EndTime, new.SamplingPercent, new.Rule,
		new.IsPersonalizationEnabled, new.ModelName, new.ModelVersion,
		new.IsRapidExperiment, new.UserCap, now,
	)
	if err != nil {
		return "", classifyError("CreateExperiment", err)
	}
	return id, nil
}

// CreateIndicesForNewExperiment is a no-op on the secondary backend (spec §4.4).
func (s *Store) CreateIndicesForNewExperiment(ctx context.Context, new *models.Experiment) error {
	return nil
}

// GetExperiment fetches an experiment by id.
func (s *Store) GetExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	row := s.db.QueryRowContext(ctx, "SELECT"+selectColumns+"FROM experiments WHERE id = $1", id)
	exp, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.NewRepositoryError("GetExperiment", xerrors.KindNotFound, xerrors.ErrNotFound)
		}
		return nil, classifyError("GetExperiment", err)
	}
	return exp, nil
}

// GetExperimentByLabel fetches an experiment by (applicationName, label).
func (s *Store) GetExperimentByLabel(ctx context.Context, appName, label string) (*models.Experiment, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+selectColumns+"FROM experiments WHERE application_name = $1 AND label = $2", appName, label)
	exp, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.NewRepositoryError("GetExperimentByLabel", xerrors.KindNotFound, xerrors.ErrNotFound)
		}
		return nil, classifyError("GetExperimentByLabel", err)
	}
	return exp, nil
}

// GetExperiments returns every experiment.
func (s *Store) GetExperiments(ctx context.Context) ([]*models.Experiment, error) {
	return s.query(ctx, "SELECT"+selectColumns+"FROM experiments")
}

// GetExperimentsByApp returns every experiment for appName.
func (s *Store) GetExperimentsByApp(ctx context.Context, appName string) ([]*models.Experiment, error) {
	return s.query(ctx, "SELECT"+selectColumns+"FROM experiments WHERE application_name = $1", appName)
}

func (s *Store) query(ctx context.Context, q string, args ...interface{}) ([]*models.Experiment, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classifyError("query", err)
	}
	defer rows.Close()

	var out []*models.Experiment
	for rows.Next() {
		exp, err := scanRow(rows)
		if err != nil {
			return nil, classifyError("query:scan", err)
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("query:rows", err)
	}
	return out, nil
}

// UpdateExperiment overwrites the row for exp.ID.
func (s *Store) UpdateExperiment(ctx context.Context, exp *models.Experiment) (*models.Experiment, error) {
	const q = `
UPDATE experiments SET
	application_name = $2, label = $3, description = $4, state = $5,
	start_time = $6, end_time = $7, sampling_percent = $8, rule = $9,
	is_personalization_enabled = $10, model_name = $11, model_version = $12,
	is_rapid_experiment = $13, user_cap = $14, modification_time = $15
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q,
		exp.ID, exp.ApplicationName, exp.Label, exp.Description, string(exp.State),
		exp.StartTime, exp.EndTime, exp.SamplingPercent, exp.Rule,
		exp.IsPersonalizationEnabled, exp.ModelName, exp.ModelVersion,
		exp.IsRapidExperiment, exp.UserCap, time.Now(),
	)
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

// DeleteExperiment physically removes the mirror row (spec §4.4: "logical
// for primary, physical for secondary's mirror").
func (s *Store) DeleteExperiment(ctx context.Context, exp *models.Experiment) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM experiments WHERE id = $1", exp.ID); err != nil {
		return classifyError("DeleteExperiment", err)
	}
	return nil
}

// LogExperimentChanges is a no-op on the secondary backend (spec §4.4).
func (s *Store) LogExperimentChanges(ctx context.Context, id string, audit []models.AuditInfo) error {
	return nil
}

// GetApplicationsList is a no-op on the secondary backend (spec §4.4).
func (s *Store) GetApplicationsList(ctx context.Context) ([]string, error) {
	return nil, nil
}

const uniqueViolationCode = "23505"

func classifyError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return xerrors.NewRepositoryError(op, xerrors.KindConflict, xerrors.ErrConflict)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return xerrors.NewRepositoryError(op, xerrors.KindNotFound, xerrors.ErrNotFound)
	}
	return xerrors.NewRepositoryError(op, xerrors.KindTransient, err)
}
