// Package events implements the append-only, best-effort domain event sink
// of spec §4.6 and §6. Posting is fire-and-forget:
// Post returns nothing, so a failed post never surfaces as an operation error (spec §7).
package events

import (
	"context"

	"go.uber.org/zap"
)

// schemaVersion tags every posted event payload so a future consumer can
// evolve the shape without breaking older readers.
const schemaVersion = 1

// Event is the common envelope for every posted domain event.
type Event struct {
	SchemaVersion int         `json:"schemaVersion"`
	Type          string      `json:"type"`
	Payload       interface{} `json:"payload"`
}

// CreatePayload is the payload of an ExperimentCreateEvent.
type CreatePayload struct {
	User             string `json:"user"`
	ExperimentID     string `json:"experimentId"`
	ApplicationName  string `json:"applicationName"`
	Label            string `json:"label"`
}

// ChangePayload is the payload of one ExperimentChangeEvent — one per audit
// change-list entry (spec §6).
type ChangePayload struct {
	User          string `json:"user"`
	ExperimentID  string `json:"experimentId"`
	AttributeName string `json:"attributeName"`
	OldValue      string `json:"oldValue"`
	NewValue      string `json:"newValue"`
}

// Log is the collaborator consumed by the service (spec §6: "EventLog.post(event)").
type Log interface {
	Post(ctx context.Context, event Event)
}

// ZapLog posts events as structured log lines via zap. Production
// deployments would forward to a real sink (queue, bus); that transport is
// explicitly out of this core's scope, so logging stands in as the sink.
type ZapLog struct {
	logger *zap.Logger
}

// NewZapLog constructs a Log backed by logger.
func NewZapLog(logger *zap.Logger) *ZapLog {
	return &ZapLog{logger: logger}
}

// Post never blocks the caller on failure: zap's Info call cannot fail in a
// way the caller needs to observe, matching the fire-and-forget contract.
func (l *ZapLog) Post(ctx context.Context, event Event) {
	l.logger.Info("domain event",
		zap.Int("schemaVersion", event.SchemaVersion),
		zap.String("type", event.Type),
		zap.Any("payload", event.Payload),
	)
}

// NewCreateEvent builds an ExperimentCreateEvent envelope.
func NewCreateEvent(user, experimentID, appName, label string) Event {
	return Event{
		SchemaVersion: schemaVersion,
		Type:          "ExperimentCreateEvent",
		Payload: CreatePayload{
			User:            user,
			ExperimentID:    experimentID,
			ApplicationName: appName,
			Label:           label,
		},
	}
}

// NewChangeEvent builds one ExperimentChangeEvent envelope.
func NewChangeEvent(user, experimentID, attributeName, oldValue, newValue string) Event {
	return Event{
		SchemaVersion: schemaVersion,
		Type:          "ExperimentChangeEvent",
		Payload: ChangePayload{
			User:          user,
			ExperimentID:  experimentID,
			AttributeName: attributeName,
			OldValue:      oldValue,
			NewValue:      newValue,
		},
	}
}
