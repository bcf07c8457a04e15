package widecolumn

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/abtest/experiment-core/internal/models"
	"github.com/abtest/experiment-core/internal/xerrors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateExperiment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewFromDB(db)
	ctx := context.Background()

	new := &models.Experiment{
		ApplicationName: "shop",
		Label:           "cart-cta",
		State:           models.StateDraft,
		SamplingPercent: 0.5,
	}

	mock.ExpectExec(`INSERT INTO experiments`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := s.CreateExperiment(ctx, new)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateExperiment_ConflictOnDuplicateLabel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewFromDB(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO experiments`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err = s.CreateExperiment(ctx, &models.Experiment{ApplicationName: "shop", Label: "cart-cta"})
	require.Error(t, err)
	var repoErr *xerrors.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.Equal(t, xerrors.KindConflict, repoErr.Kind)
}

func TestStore_GetExperiment_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewFromDB(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, application_name, label, state, attributes`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_name", "label", "state", "attributes"}))

	_, err = s.GetExperiment(ctx, "missing")
	require.Error(t, err)
	var repoErr *xerrors.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.Equal(t, xerrors.KindNotFound, repoErr.Kind)
}

func TestStore_GetExperiment_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewFromDB(db)
	ctx := context.Background()

	payload := attributes{
		Description:     "a test",
		StartTime:       time.Now(),
		EndTime:         time.Now().Add(time.Hour),
		SamplingPercent: 0.25,
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, application_name, label, state, attributes`).
		WithArgs("exp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_name", "label", "state", "attributes"}).
			AddRow("exp-1", "shop", "cart-cta", string(models.StateDraft), raw))

	exp, err := s.GetExperiment(ctx, "exp-1")
	require.NoError(t, err)
	assert.Equal(t, "exp-1", exp.ID)
	assert.Equal(t, "shop", exp.ApplicationName)
	assert.Equal(t, 0.25, exp.SamplingPercent)
	require.NoError(t, mock.ExpectationsWereMet())
}
