// Package models defines the core data types of the experiment lifecycle:
// the Experiment entity, its lifecycle state, buckets, and audit records.
package models

import "time"

// State is the lifecycle state of an Experiment. See the transition graph
// owned by the validation package.
type State string

const (
	StateDraft      State = "DRAFT"
	StateRunning    State = "RUNNING"
	StatePaused     State = "PAUSED"
	StateTerminated State = "TERMINATED"
	StateDeleted    State = "DELETED"
)

// Experiment is the central entity of the system. Field mutability is
// governed by State and is enforced by the validation package, not by this
// type.
type Experiment struct {
	ID               string    `json:"id" db:"id"`
	ApplicationName  string    `json:"applicationName" db:"application_name"`
	Label            string    `json:"label" db:"label"`
	Description      string    `json:"description" db:"description"`
	State            State     `json:"state" db:"state"`
	StartTime        time.Time `json:"startTime" db:"start_time"`
	EndTime          time.Time `json:"endTime" db:"end_time"`
	SamplingPercent  float64   `json:"samplingPercent" db:"sampling_percent"`
	Rule             string    `json:"rule" db:"rule"`

	IsPersonalizationEnabled bool   `json:"isPersonalizationEnabled" db:"is_personalization_enabled"`
	ModelName                string `json:"modelName" db:"model_name"`
	ModelVersion             string `json:"modelVersion" db:"model_version"`

	IsRapidExperiment bool `json:"isRapidExperiment" db:"is_rapid_experiment"`
	UserCap           int  `json:"userCap" db:"user_cap"`

	CreationTime     time.Time `json:"creationTime" db:"creation_time"`
	ModificationTime time.Time `json:"modificationTime" db:"modification_time"`
}

// Clone returns a deep-enough copy of e so callers may mutate the result
// without affecting store-held state. Experiment has no reference fields
// that require deep copying beyond the struct itself.
func (e *Experiment) Clone() *Experiment {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// Bucket is one arm of an experiment.
type Bucket struct {
	Label             string  `json:"label"`
	AllocationPercent float64 `json:"allocationPercent"`
	IsControl         bool    `json:"isControl"`
}

// BucketList is the set of buckets configured for an experiment, owned by
// the Buckets collaborator (out of scope: allocation/assignment math).
type BucketList struct {
	ExperimentID string   `json:"experimentId"`
	Buckets      []Bucket `json:"buckets"`
}

// AuditInfo is one attribute-level diff entry produced by an update.
// Values are stored as their string representation per spec.md §6
// ("Persisted audit format"): booleans lowercase, timestamps ISO-8601,
// percentages decimal.
type AuditInfo struct {
	AttributeName string `json:"attributeName"`
	OldValue      string `json:"oldValue"`
	NewValue      string `json:"newValue"`
}
