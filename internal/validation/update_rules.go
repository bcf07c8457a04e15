package validation

import (
	"github.com/abtest/experiment-core/internal/clock"
	"github.com/abtest/experiment-core/internal/models"
	"github.com/abtest/experiment-core/internal/xerrors"
)

// CheckIllegalUpdate enforces invariants I1, I4, I6 (I6 is enforced by the
// store's uniqueness check, not here): id/creationTime are immutable, and
// applicationName/label may not change once state is not DRAFT.
func CheckIllegalUpdate(current *models.Experiment, patch *models.Patch) error {
	if current.State != models.StateDraft {
		if patch.ApplicationName != nil && *patch.ApplicationName != current.ApplicationName {
			return xerrors.NewValidationError(xerrors.ValidationIllegalUpdate, "applicationName",
				"applicationName is immutable once state is not DRAFT")
		}
		if patch.Label != nil && *patch.Label != current.Label {
			return xerrors.NewValidationError(xerrors.ValidationIllegalUpdate, "label",
				"label is immutable once state is not DRAFT")
		}
	}
	return nil
}

// CheckIllegalTerminatedUpdate enforces I3: in TERMINATED, only description
// is mutable (state may additionally move to DELETED per the graph).
func CheckIllegalTerminatedUpdate(current *models.Experiment, patch *models.Patch) error {
	if current.State != models.StateTerminated {
		return nil
	}
	if patch.State != nil && *patch.State != current.State && *patch.State != models.StateDeleted {
		return xerrors.NewValidationError(xerrors.ValidationIllegalUpdate, "state",
			"a TERMINATED experiment may only transition to DELETED")
	}
	if fieldSet(patch) && !onlyDescriptionOrState(patch) {
		return xerrors.NewValidationError(xerrors.ValidationIllegalUpdate, "",
			"only description is mutable while TERMINATED")
	}
	return nil
}

// CheckIllegalPausedRunningUpdate enforces I5 for RUNNING/PAUSED: a
// startTime/endTime boundary that has already elapsed is not editable at
// all, even to a still-future value (spec §4.7 matrix: "not past-anchored").
// This is distinct from the "new value may not be in the past" half of I5,
// which the service's Update checks against the proposed value of any
// boundary the patch moves, instead of the current one.
func CheckIllegalPausedRunningUpdate(current *models.Experiment, patch *models.Patch, clk clock.Clock) error {
	if current.State != models.StateRunning && current.State != models.StatePaused {
		return nil
	}
	now := clk.Now()
	if patch.StartTime != nil && current.StartTime.Before(now) {
		return xerrors.NewValidationError(xerrors.ValidationIllegalUpdate, "startTime",
			"startTime may not be edited once it has already passed")
	}
	if patch.EndTime != nil && current.EndTime.Before(now) {
		return xerrors.NewValidationError(xerrors.ValidationIllegalUpdate, "endTime",
			"endTime may not be edited once it has already passed")
	}
	return nil
}

func fieldSet(p *models.Patch) bool {
	return p.Description != nil || p.State != nil || p.ApplicationName != nil || p.Label != nil ||
		p.StartTime != nil || p.EndTime != nil || p.SamplingPercent != nil || p.Rule != nil ||
		p.IsPersonalizationEnabled != nil || p.ModelName != nil || p.ModelVersion != nil ||
		p.IsRapidExperiment != nil || p.UserCap != nil
}

func onlyDescriptionOrState(p *models.Patch) bool {
	return p.ApplicationName == nil && p.Label == nil && p.StartTime == nil && p.EndTime == nil &&
		p.SamplingPercent == nil && p.Rule == nil && p.IsPersonalizationEnabled == nil &&
		p.ModelName == nil && p.ModelVersion == nil && p.IsRapidExperiment == nil && p.UserCap == nil
}
