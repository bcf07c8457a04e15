package service

import (
	"context"
	"sync"

	"github.com/abtest/experiment-core/internal/events"
	"github.com/abtest/experiment-core/internal/models"
	"github.com/abtest/experiment-core/internal/xerrors"
	"github.com/google/uuid"
)

// fakeStore is an in-memory ExperimentStore used to exercise the service's
// orchestration and compensation logic without a real database.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]*models.Experiment
	apps map[string]bool

	failCreate       error
	failCreateIndex  error
	failUpdate       error
	failLogChanges   error
	createCalls      int
	deleteCalls      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows: make(map[string]*models.Experiment),
		apps: make(map[string]bool),
	}
}

func (f *fakeStore) CreateExperiment(ctx context.Context, new *models.Experiment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failCreate != nil {
		return "", f.failCreate
	}
	for _, e := range f.rows {
		if e.ApplicationName == new.ApplicationName && e.Label == new.Label {
			return "", xerrors.NewRepositoryError("CreateExperiment", xerrors.KindConflict, xerrors.ErrConflict)
		}
	}
	id := new.ID
	if id == "" {
		id = uuid.New().String()
	}
	cp := new.Clone()
	cp.ID = id
	f.rows[id] = cp
	return id, nil
}

func (f *fakeStore) CreateIndicesForNewExperiment(ctx context.Context, new *models.Experiment) error {
	if f.failCreateIndex != nil {
		return f.failCreateIndex
	}
	f.mu.Lock()
	f.apps[new.ApplicationName] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) GetExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return nil, xerrors.NewRepositoryError("GetExperiment", xerrors.KindNotFound, xerrors.ErrNotFound)
	}
	return e.Clone(), nil
}

func (f *fakeStore) GetExperimentByLabel(ctx context.Context, appName, label string) (*models.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows {
		if e.ApplicationName == appName && e.Label == label {
			return e.Clone(), nil
		}
	}
	return nil, xerrors.NewRepositoryError("GetExperimentByLabel", xerrors.KindNotFound, xerrors.ErrNotFound)
}

func (f *fakeStore) GetExperiments(ctx context.Context) ([]*models.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Experiment, 0, len(f.rows))
	for _, e := range f.rows {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (f *fakeStore) GetExperimentsByApp(ctx context.Context, appName string) ([]*models.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Experiment
	for _, e := range f.rows {
		if e.ApplicationName == appName {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateExperiment(ctx context.Context, exp *models.Experiment) (*models.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return nil, f.failUpdate
	}
	if _, ok := f.rows[exp.ID]; !ok {
		return nil, xerrors.NewRepositoryError("UpdateExperiment", xerrors.KindNotFound, xerrors.ErrNotFound)
	}
	f.rows[exp.ID] = exp.Clone()
	return exp, nil
}

func (f *fakeStore) DeleteExperiment(ctx context.Context, exp *models.Experiment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, exp.ID)
	delete(f.rows, exp.ID)
	return nil
}

func (f *fakeStore) LogExperimentChanges(ctx context.Context, id string, audit []models.AuditInfo) error {
	return f.failLogChanges
}

func (f *fakeStore) GetApplicationsList(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.apps))
	for a := range f.apps {
		out = append(out, a)
	}
	return out, nil
}

// fakeEventLog records every posted event.
type fakeEventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeEventLog) Post(ctx context.Context, event events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEventLog) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
