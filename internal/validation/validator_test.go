package validation

import (
	"testing"
	"time"

	"github.com/abtest/experiment-core/internal/clock"
	"github.com/abtest/experiment-core/internal/models"
	"github.com/abtest/experiment-core/internal/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func futureExperiment() *models.Experiment {
	return &models.Experiment{
		ApplicationName: "shop",
		Label:           "cart-cta",
		SamplingPercent: 0.5,
		StartTime:       time.Now().Add(24 * time.Hour),
		EndTime:         time.Now().Add(48 * time.Hour),
	}
}

func TestValidateNewExperiment(t *testing.T) {
	t.Run("accepts a well-formed experiment", func(t *testing.T) {
		err := ValidateNewExperiment(futureExperiment())
		require.NoError(t, err)
	})

	tests := []struct {
		name     string
		mutate   func(*models.Experiment)
		wantKind xerrors.ValidationKind
	}{
		{"rejects caller-supplied id", func(e *models.Experiment) { e.ID = "abc" }, xerrors.ValidationInvalidIdentifier},
		{"rejects missing applicationName", func(e *models.Experiment) { e.ApplicationName = "" }, xerrors.ValidationInvalidArgument},
		{"rejects missing label", func(e *models.Experiment) { e.Label = "" }, xerrors.ValidationInvalidIdentifier},
		{"rejects sampling below 0", func(e *models.Experiment) { e.SamplingPercent = -0.1 }, xerrors.ValidationInvalidArgument},
		{"rejects sampling above 1", func(e *models.Experiment) { e.SamplingPercent = 1.1 }, xerrors.ValidationInvalidArgument},
		{"rejects inverted times", func(e *models.Experiment) { e.StartTime, e.EndTime = e.EndTime, e.StartTime }, xerrors.ValidationInvalidArgument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := futureExperiment()
			tc.mutate(e)
			err := ValidateNewExperiment(e)
			require.Error(t, err)
			assert.True(t, xerrors.IsValidationError(err, tc.wantKind))
		})
	}
}

func TestValidateStateTransition(t *testing.T) {
	legal := []struct{ from, to models.State }{
		{models.StateDraft, models.StateRunning},
		{models.StateDraft, models.StateDeleted},
		{models.StateRunning, models.StatePaused},
		{models.StatePaused, models.StateRunning},
		{models.StateRunning, models.StateTerminated},
		{models.StatePaused, models.StateTerminated},
		{models.StateTerminated, models.StateDeleted},
	}
	for _, tc := range legal {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.NoError(t, ValidateStateTransition(tc.from, tc.to))
		})
	}

	illegal := []struct{ from, to models.State }{
		{models.StateDraft, models.StatePaused},
		{models.StateDraft, models.StateTerminated},
		{models.StateRunning, models.StateDraft},
		{models.StateRunning, models.StateDeleted},
		{models.StateTerminated, models.StateRunning},
		{models.StateDeleted, models.StateDraft},
		{models.StateDraft, models.StateDraft},
	}
	for _, tc := range illegal {
		t.Run(string(tc.from)+"->"+string(tc.to)+"_illegal", func(t *testing.T) {
			err := ValidateStateTransition(tc.from, tc.to)
			require.Error(t, err)
			assert.True(t, xerrors.IsValidationError(err, xerrors.ValidationInvalidTransition))
		})
	}
}

func TestValidateExperimentBuckets(t *testing.T) {
	t.Run("accepts a valid bucket set", func(t *testing.T) {
		buckets := []models.Bucket{
			{Label: "control", AllocationPercent: 0.5, IsControl: true},
			{Label: "treatment", AllocationPercent: 0.5},
		}
		assert.NoError(t, ValidateExperimentBuckets(buckets))
	})

	t.Run("rejects empty bucket list", func(t *testing.T) {
		assert.Error(t, ValidateExperimentBuckets(nil))
	})

	t.Run("rejects sums that don't add to 1", func(t *testing.T) {
		buckets := []models.Bucket{
			{Label: "control", AllocationPercent: 0.5, IsControl: true},
			{Label: "treatment", AllocationPercent: 0.4},
		}
		assert.Error(t, ValidateExperimentBuckets(buckets))
	})

	t.Run("rejects duplicate labels", func(t *testing.T) {
		buckets := []models.Bucket{
			{Label: "a", AllocationPercent: 0.5, IsControl: true},
			{Label: "a", AllocationPercent: 0.5},
		}
		assert.Error(t, ValidateExperimentBuckets(buckets))
	})

	t.Run("rejects more than one control bucket", func(t *testing.T) {
		buckets := []models.Bucket{
			{Label: "a", AllocationPercent: 0.5, IsControl: true},
			{Label: "b", AllocationPercent: 0.5, IsControl: true},
		}
		assert.Error(t, ValidateExperimentBuckets(buckets))
	})

	t.Run("rejects no control bucket", func(t *testing.T) {
		buckets := []models.Bucket{
			{Label: "a", AllocationPercent: 0.5},
			{Label: "b", AllocationPercent: 0.5},
		}
		assert.Error(t, ValidateExperimentBuckets(buckets))
	})

	t.Run("tolerates epsilon rounding", func(t *testing.T) {
		buckets := []models.Bucket{
			{Label: "control", AllocationPercent: 0.3333333333, IsControl: true},
			{Label: "b", AllocationPercent: 0.3333333333},
			{Label: "c", AllocationPercent: 0.3333333334},
		}
		assert.NoError(t, ValidateExperimentBuckets(buckets))
	})
}

func TestValidateExperiment_RejectsPastBoundaries(t *testing.T) {
	fixed := clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	t.Run("rejects past startTime", func(t *testing.T) {
		e := futureExperiment()
		e.StartTime = fixed.At.Add(-time.Hour)
		e.EndTime = fixed.At.Add(time.Hour)
		err := ValidateExperiment(e, fixed)
		require.Error(t, err)
	})

	t.Run("rejects past endTime", func(t *testing.T) {
		e := futureExperiment()
		e.StartTime = fixed.At.Add(-2 * time.Hour)
		e.EndTime = fixed.At.Add(-time.Hour)
		err := ValidateExperiment(e, fixed)
		require.Error(t, err)
	})

	t.Run("accepts a window fully in the future", func(t *testing.T) {
		e := futureExperiment()
		e.StartTime = fixed.At.Add(time.Hour)
		e.EndTime = fixed.At.Add(2 * time.Hour)
		err := ValidateExperiment(e, fixed)
		assert.NoError(t, err)
	})
}
