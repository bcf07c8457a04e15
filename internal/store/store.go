// Package store defines the ExperimentStore abstraction of spec §4.4: two
// backends (primary wide-column, secondary relational) behind one
// interface. Concrete implementations live in the widecolumn and
// relational subpackages.
package store

import (
	"context"

	"github.com/abtest/experiment-core/internal/models"
)

// ExperimentStore is implemented by both backends. Only the primary backend
// does real work in CreateIndicesForNewExperiment, LogExperimentChanges and
// GetApplicationsList; the secondary backend implements them as no-ops
// (spec §4.4).
type ExperimentStore interface {
	CreateExperiment(ctx context.Context, new *models.Experiment) (string, error)
	GetExperiment(ctx context.Context, id string) (*models.Experiment, error)
	GetExperimentByLabel(ctx context.Context, appName, label string) (*models.Experiment, error)
	GetExperiments(ctx context.Context) ([]*models.Experiment, error)
	GetExperimentsByApp(ctx context.Context, appName string) ([]*models.Experiment, error)
	UpdateExperiment(ctx context.Context, exp *models.Experiment) (*models.Experiment, error)
	DeleteExperiment(ctx context.Context, exp *models.Experiment) error

	// CreateIndicesForNewExperiment is primary-only; the secondary backend
	// implements it as a no-op (spec §4.4).
	CreateIndicesForNewExperiment(ctx context.Context, new *models.Experiment) error

	// LogExperimentChanges is primary-only; the secondary backend
	// implements it as a no-op (spec §4.4).
	LogExperimentChanges(ctx context.Context, id string, audit []models.AuditInfo) error

	// GetApplicationsList is primary-only, backed by a real index rather
	// than a derived scan (SPEC_FULL.md §3); the secondary backend
	// implements it as a no-op returning an empty list.
	GetApplicationsList(ctx context.Context) ([]string, error)
}
