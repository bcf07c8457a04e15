// Package service implements the ExperimentService orchestration core:
// create/update with per-step compensation, the audit diff, and event
// emission (spec §4.5–§4.7). This is the ~45% component of the system —
// everything else in the module is a collaborator it coordinates.
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/abtest/experiment-core/internal/buckets"
	"github.com/abtest/experiment-core/internal/clock"
	"github.com/abtest/experiment-core/internal/events"
	"github.com/abtest/experiment-core/internal/models"
	"github.com/abtest/experiment-core/internal/pages"
	"github.com/abtest/experiment-core/internal/priority"
	"github.com/abtest/experiment-core/internal/rules"
	"github.com/abtest/experiment-core/internal/store"
	"github.com/abtest/experiment-core/internal/validation"
	"github.com/abtest/experiment-core/internal/xerrors"
	"go.uber.org/zap"
)

// ExperimentService is the core of the system (spec §2 item 7). It owns no
// durable state itself: primary and secondary are the stores of record,
// priorities and ruleCache are its own process-local caches.
type ExperimentService struct {
	primary   store.ExperimentStore
	secondary store.ExperimentStore

	priorities *priority.List
	ruleCache  *rules.Cache
	compiler   rules.Compiler
	buckets    buckets.Store
	pages      pages.Binder
	eventLog   events.Log
	clk        clock.Clock
	logger     *zap.Logger

	locks *keyedMutex
}

// New constructs an ExperimentService from its collaborators.
func New(
	primary, secondary store.ExperimentStore,
	priorities *priority.List,
	ruleCache *rules.Cache,
	compiler rules.Compiler,
	bucketStore buckets.Store,
	pageBinder pages.Binder,
	eventLog events.Log,
	clk clock.Clock,
	logger *zap.Logger,
) *ExperimentService {
	return &ExperimentService{
		primary:    primary,
		secondary:  secondary,
		priorities: priorities,
		ruleCache:  ruleCache,
		compiler:   compiler,
		buckets:    bucketStore,
		pages:      pageBinder,
		eventLog:   eventLog,
		clk:        clk,
		logger:     logger,
		locks:      newKeyedMutex(),
	}
}

// Create implements spec §4.5, steps 1-6, with reverse-order compensation
// on any failure after the primary insert.
func (s *ExperimentService) Create(ctx context.Context, new *models.Experiment, user string) (string, error) {
	if err := validation.ValidateNewExperiment(new); err != nil {
		return "", err
	}

	// The rule is compiled before any store is written, so a bad rule
	// leaves nothing to compensate.
	var compiledRule *rules.CompiledRule
	if new.Rule != "" {
		var err error
		compiledRule, err = s.compiler.Parse(new.Rule)
		if err != nil {
			return "", err
		}
	}

	key := appLabelKey(new.ApplicationName, new.Label)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	now := s.clk.Now()
	new.CreationTime = now
	new.ModificationTime = now
	if new.State == "" {
		new.State = models.StateDraft
	}

	id, err := s.primary.CreateExperiment(ctx, new)
	if err != nil {
		return "", err
	}
	new.ID = id

	s.priorities.Append(new.ApplicationName, id)

	if _, err := s.secondary.CreateExperiment(ctx, new); err != nil {
		s.priorities.Remove(new.ApplicationName, id)
		s.compensateDelete(ctx, "primary", new)
		return "", err
	}

	if err := s.primary.CreateIndicesForNewExperiment(ctx, new); err != nil {
		s.priorities.Remove(new.ApplicationName, id)
		s.compensateDelete(ctx, "primary", new)
		s.compensateDelete(ctx, "secondary", new)
		return "", err
	}

	if compiledRule != nil {
		s.ruleCache.Set(id, compiledRule)
	}

	s.eventLog.Post(ctx, events.NewCreateEvent(user, id, new.ApplicationName, new.Label))

	return id, nil
}

func (s *ExperimentService) compensateDelete(ctx context.Context, which string, exp *models.Experiment) {
	var target store.ExperimentStore
	if which == "primary" {
		target = s.primary
	} else {
		target = s.secondary
	}
	if err := target.DeleteExperiment(ctx, exp); err != nil {
		s.logger.Error("compensation delete failed",
			zap.String("store", which),
			zap.String("id", exp.ID),
			zap.Error(err))
	}
}

// Update implements spec §4.6, steps 1-14.
func (s *ExperimentService) Update(ctx context.Context, id string, patch *models.Patch, user string) (*models.Experiment, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	current, err := s.primary.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.State != nil && *patch.State != current.State {
		if err := validation.ValidateStateTransition(current.State, *patch.State); err != nil {
			return nil, err
		}
		if validation.RequiresBucketCheck(current.State, *patch.State) {
			bl, err := s.buckets.GetBuckets(ctx, id)
			if err != nil {
				return nil, err
			}
			if err := validation.ValidateExperimentBuckets(bl.Buckets); err != nil {
				return nil, err
			}
		}
	}

	if err := validation.CheckIllegalUpdate(current, patch); err != nil {
		return nil, err
	}
	if err := validation.CheckIllegalTerminatedUpdate(current, patch); err != nil {
		return nil, err
	}
	if err := validation.CheckIllegalPausedRunningUpdate(current, patch, s.clk); err != nil {
		return nil, err
	}

	updated, changes := patch.Apply(current)
	if len(changes) == 0 {
		return current, nil
	}

	// Field-level checks run against a zero clock so that a boundary the
	// patch leaves unchanged is not rejected for having already passed; only
	// a boundary the patch moves is checked against the current time.
	if err := validation.ValidateExperiment(updated, clock.Fixed{}); err != nil {
		return nil, err
	}
	now := s.clk.Now()
	if !updated.StartTime.Equal(current.StartTime) && updated.StartTime.Before(now) {
		return nil, xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "startTime",
			"startTime may not be in the past")
	}
	if !updated.EndTime.Equal(current.EndTime) && updated.EndTime.Before(now) {
		return nil, xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "endTime",
			"endTime may not be in the past")
	}

	// Rule compilation is pre-store (spec §4.8 step 7): a bad rule must fail
	// before either store is written, not after, so there is nothing to
	// compensate on a parse error.
	var compiledRule *rules.CompiledRule
	if updated.Rule != current.Rule && updated.Rule != "" {
		compiledRule, err = s.compiler.Parse(updated.Rule)
		if err != nil {
			return nil, err
		}
	}

	updated.ModificationTime = s.clk.Now()

	if _, err := s.primary.UpdateExperiment(ctx, updated); err != nil {
		return nil, err
	}

	if _, err := s.secondary.UpdateExperiment(ctx, updated); err != nil {
		if _, compErr := s.primary.UpdateExperiment(ctx, current); compErr != nil {
			s.logger.Error("compensation update failed",
				zap.String("id", id), zap.Error(compErr))
		}
		return nil, err
	}

	if updated.ApplicationName != current.ApplicationName {
		s.priorities.Remove(current.ApplicationName, id)
		s.priorities.Append(updated.ApplicationName, id)
	}

	if updated.Rule != current.Rule {
		if updated.Rule == "" {
			s.ruleCache.Clear(id)
		} else {
			s.ruleCache.Set(id, compiledRule)
		}
	}

	auditList := toAuditInfo(changes)
	if updated.State != models.StateDraft {
		if err := s.primary.LogExperimentChanges(ctx, id, auditList); err != nil {
			s.logger.Error("audit log failed", zap.String("id", id), zap.Error(err))
		}
		for _, a := range auditList {
			s.eventLog.Post(ctx, events.NewChangeEvent(user, id, a.AttributeName, a.OldValue, a.NewValue))
		}
	}

	if updated.State == models.StateTerminated || updated.State == models.StateDeleted {
		s.priorities.Remove(updated.ApplicationName, id)
		if err := s.pages.ErasePageData(ctx, updated.ApplicationName, id, user); err != nil {
			s.logger.Error("erase page data failed", zap.String("id", id), zap.Error(err))
		}
	}

	if updated.State == models.StateDeleted {
		view := updated.Clone()
		view.State = models.StateDeleted
		return view, nil
	}

	return updated, nil
}

// Get returns the experiment with id, or a NotFound error.
func (s *ExperimentService) Get(ctx context.Context, id string) (*models.Experiment, error) {
	return s.primary.GetExperiment(ctx, id)
}

// GetByLabel returns the experiment identified by (app, label).
func (s *ExperimentService) GetByLabel(ctx context.Context, appName, label string) (*models.Experiment, error) {
	return s.primary.GetExperimentByLabel(ctx, appName, label)
}

// List returns every experiment.
func (s *ExperimentService) List(ctx context.Context) ([]*models.Experiment, error) {
	return s.primary.GetExperiments(ctx)
}

// ListByApp returns every experiment for appName.
func (s *ExperimentService) ListByApp(ctx context.Context, appName string) ([]*models.Experiment, error) {
	return s.primary.GetExperimentsByApp(ctx, appName)
}

// ListApplications returns every known application name.
func (s *ExperimentService) ListApplications(ctx context.Context) ([]string, error) {
	return s.primary.GetApplicationsList(ctx)
}

// toAuditInfo formats the diff changeList per spec §6's persisted audit
// format: booleans lowercase, timestamps ISO-8601, percentages decimal.
// applicationName/label are never audited (SPEC_FULL.md / spec §9: they
// only change in DRAFT, and DRAFT updates are never audited).
func toAuditInfo(changes []models.Change) []models.AuditInfo {
	out := make([]models.AuditInfo, 0, len(changes))
	for _, c := range changes {
		if c.Attribute == "applicationName" || c.Attribute == "label" {
			continue
		}
		out = append(out, models.AuditInfo{
			AttributeName: c.Attribute,
			OldValue:      formatAuditValue(c.Old),
			NewValue:      formatAuditValue(c.New),
		})
	}
	return out
}

func formatAuditValue(v interface{}) string {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case models.State:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
