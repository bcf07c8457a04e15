package models

import "time"

// Patch is a partial Experiment: every field is a pointer so "unset" (nil)
// is distinguishable from "set to the zero value". Apply() overlays the set
// fields onto a base Experiment and returns the diff as a change list.
type Patch struct {
	Description *string `json:"description,omitempty"`
	State       *State  `json:"state,omitempty"`

	ApplicationName *string `json:"applicationName,omitempty"`
	Label           *string `json:"label,omitempty"`

	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	SamplingPercent *float64 `json:"samplingPercent,omitempty"`
	Rule            *string  `json:"rule,omitempty"`

	IsPersonalizationEnabled *bool   `json:"isPersonalizationEnabled,omitempty"`
	ModelName                *string `json:"modelName,omitempty"`
	ModelVersion             *string `json:"modelVersion,omitempty"`

	IsRapidExperiment *bool `json:"isRapidExperiment,omitempty"`
	UserCap           *int  `json:"userCap,omitempty"`
}

// Change is one (attribute, old, new) diff entry prior to string formatting.
// ChangeList entries are formatted into AuditInfo by the service layer,
// which is the only place that knows the string-representation rules.
type Change struct {
	Attribute string
	Old       interface{}
	New       interface{}
}

// Apply overlays the set fields of p onto base, returning a new Experiment
// and the list of attributes that actually changed (by value, not by
// pointer presence: setting a field to its current value is not a change).
func (p *Patch) Apply(base *Experiment) (*Experiment, []Change) {
	updated := base.Clone()
	var changes []Change

	if p.Description != nil && *p.Description != base.Description {
		changes = append(changes, Change{"description", base.Description, *p.Description})
		updated.Description = *p.Description
	}
	if p.State != nil && *p.State != base.State {
		changes = append(changes, Change{"state", base.State, *p.State})
		updated.State = *p.State
	}
	if p.ApplicationName != nil && *p.ApplicationName != base.ApplicationName {
		changes = append(changes, Change{"applicationName", base.ApplicationName, *p.ApplicationName})
		updated.ApplicationName = *p.ApplicationName
	}
	if p.Label != nil && *p.Label != base.Label {
		changes = append(changes, Change{"label", base.Label, *p.Label})
		updated.Label = *p.Label
	}
	if p.StartTime != nil && !p.StartTime.Equal(base.StartTime) {
		changes = append(changes, Change{"startTime", base.StartTime, *p.StartTime})
		updated.StartTime = *p.StartTime
	}
	if p.EndTime != nil && !p.EndTime.Equal(base.EndTime) {
		changes = append(changes, Change{"endTime", base.EndTime, *p.EndTime})
		updated.EndTime = *p.EndTime
	}
	if p.SamplingPercent != nil && *p.SamplingPercent != base.SamplingPercent {
		changes = append(changes, Change{"samplingPercent", base.SamplingPercent, *p.SamplingPercent})
		updated.SamplingPercent = *p.SamplingPercent
	}
	if p.Rule != nil && *p.Rule != base.Rule {
		changes = append(changes, Change{"rule", base.Rule, *p.Rule})
		updated.Rule = *p.Rule
	}
	if p.IsPersonalizationEnabled != nil && *p.IsPersonalizationEnabled != base.IsPersonalizationEnabled {
		changes = append(changes, Change{"isPersonalizationEnabled", base.IsPersonalizationEnabled, *p.IsPersonalizationEnabled})
		updated.IsPersonalizationEnabled = *p.IsPersonalizationEnabled
	}
	if p.ModelName != nil && *p.ModelName != base.ModelName {
		changes = append(changes, Change{"modelName", base.ModelName, *p.ModelName})
		updated.ModelName = *p.ModelName
	}
	if p.ModelVersion != nil && *p.ModelVersion != base.ModelVersion {
		changes = append(changes, Change{"modelVersion", base.ModelVersion, *p.ModelVersion})
		updated.ModelVersion = *p.ModelVersion
	}
	if p.IsRapidExperiment != nil && *p.IsRapidExperiment != base.IsRapidExperiment {
		changes = append(changes, Change{"isRapidExperiment", base.IsRapidExperiment, *p.IsRapidExperiment})
		updated.IsRapidExperiment = *p.IsRapidExperiment
	}
	if p.UserCap != nil && *p.UserCap != base.UserCap {
		changes = append(changes, Change{"userCap", base.UserCap, *p.UserCap})
		updated.UserCap = *p.UserCap
	}

	return updated, changes
}
