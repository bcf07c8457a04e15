// Package validation implements the pure, stateless rules of spec §4.1:
// field validity, bucket-set sanity, and legal state transitions. Nothing
// here performs I/O; every function takes what it needs as arguments,
// following the design note that the cyclic self-reference in the source
// framework is an artifact, not a real requirement (SPEC_FULL.md §0).
package validation

import (
	"fmt"
	"math"
	"time"

	"github.com/abtest/experiment-core/internal/clock"
	"github.com/abtest/experiment-core/internal/models"
	"github.com/abtest/experiment-core/internal/xerrors"
)

const bucketSumEpsilon = 1e-9

// ValidateNewExperiment checks the fields of a to-be-created experiment.
func ValidateNewExperiment(new *models.Experiment) error {
	if new.ID != "" {
		return xerrors.NewValidationError(xerrors.ValidationInvalidIdentifier, "id",
			"id must not be set by the caller")
	}
	if new.ApplicationName == "" {
		return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "applicationName",
			"applicationName is required")
	}
	if new.Label == "" {
		return xerrors.NewValidationError(xerrors.ValidationInvalidIdentifier, "label",
			"label is required")
	}
	if err := validateSampling(new.SamplingPercent); err != nil {
		return err
	}
	if err := validateTimeOrder(new.StartTime, new.EndTime); err != nil {
		return err
	}
	return nil
}

// ValidateStateTransition accepts only edges of the graph in spec §4.7.
func ValidateStateTransition(from, to models.State) error {
	if from == to {
		return xerrors.NewValidationError(xerrors.ValidationInvalidTransition, "state",
			fmt.Sprintf("no self-transition: %s", from))
	}
	if !IsLegalTransition(from, to) {
		return xerrors.NewValidationError(xerrors.ValidationInvalidTransition, "state",
			fmt.Sprintf("illegal transition %s -> %s", from, to))
	}
	return nil
}

// ValidateExperimentBuckets checks that allocations sum to 1±ε, at least one
// bucket exists, labels are unique, and exactly one bucket is control.
func ValidateExperimentBuckets(buckets []models.Bucket) error {
	if len(buckets) == 0 {
		return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "buckets",
			"at least one bucket is required")
	}
	seen := make(map[string]bool, len(buckets))
	controlCount := 0
	sum := 0.0
	for _, b := range buckets {
		if seen[b.Label] {
			return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "buckets",
				fmt.Sprintf("duplicate bucket label %q", b.Label))
		}
		seen[b.Label] = true
		sum += b.AllocationPercent
		if b.IsControl {
			controlCount++
		}
	}
	if math.Abs(sum-1.0) > bucketSumEpsilon {
		return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "buckets",
			fmt.Sprintf("allocation percentages must sum to 1, got %v", sum))
	}
	if controlCount != 1 {
		return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "buckets",
			fmt.Sprintf("exactly one control bucket required, got %d", controlCount))
	}
	return nil
}

// ValidateExperiment re-checks field-level validity of an experiment after
// an update has been applied, plus temporal consistency against clk.
func ValidateExperiment(updated *models.Experiment, clk clock.Clock) error {
	if updated.ApplicationName == "" {
		return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "applicationName",
			"applicationName is required")
	}
	if updated.Label == "" {
		return xerrors.NewValidationError(xerrors.ValidationInvalidIdentifier, "label",
			"label is required")
	}
	if err := validateSampling(updated.SamplingPercent); err != nil {
		return err
	}
	if err := validateTimeOrder(updated.StartTime, updated.EndTime); err != nil {
		return err
	}
	now := clk.Now()
	if updated.StartTime.Before(now) {
		return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "startTime",
			"startTime may not be in the past")
	}
	if updated.EndTime.Before(now) {
		return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "endTime",
			"endTime may not be in the past")
	}
	return nil
}

func validateSampling(pct float64) error {
	if pct < 0 || pct > 1 {
		return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "samplingPercent",
			fmt.Sprintf("samplingPercent must be in [0,1], got %v", pct))
	}
	return nil
}

func validateTimeOrder(start, end time.Time) error {
	if !start.Before(end) {
		return xerrors.NewValidationError(xerrors.ValidationInvalidArgument, "startTime",
			"startTime must be before endTime")
	}
	return nil
}
