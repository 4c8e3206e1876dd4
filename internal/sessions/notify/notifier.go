// Package notify publishes session lifecycle events for downstream
// consumers (reminders, analytics). Publishing is best-effort: a broker
// failure is logged and never fails the booking that triggered it.
package notify

import (
	"context"

	"coachdesk/pkg/kafka"
	"coachdesk/pkg/logger"
	"coachdesk/pkg/model"
)

const (
	EventSessionCreated   = "session.created"
	EventSessionApproved  = "session.approved"
	EventSessionCancelled = "session.cancelled"
	EventSessionCompleted = "session.completed"

	schemaVersion = "1"
	source        = "sessions-service"
)

type Notifier interface {
	SessionCreated(ctx context.Context, session *model.Session)
	SessionApproved(ctx context.Context, session *model.Session)
	SessionCancelled(ctx context.Context, session *model.Session)
	SessionCompleted(ctx context.Context, session *model.Session)
}

type kafkaNotifier struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaNotifier(producer *kafka.Producer, log *logger.Logger) Notifier {
	return &kafkaNotifier{producer: producer, log: log}
}

func (n *kafkaNotifier) SessionCreated(ctx context.Context, session *model.Session) {
	n.publish(ctx, EventSessionCreated, session)
}

func (n *kafkaNotifier) SessionApproved(ctx context.Context, session *model.Session) {
	n.publish(ctx, EventSessionApproved, session)
}

func (n *kafkaNotifier) SessionCancelled(ctx context.Context, session *model.Session) {
	n.publish(ctx, EventSessionCancelled, session)
}

func (n *kafkaNotifier) SessionCompleted(ctx context.Context, session *model.Session) {
	n.publish(ctx, EventSessionCompleted, session)
}

// publish keys the message on the session id so all events for one session
// land on the same partition in order.
func (n *kafkaNotifier) publish(ctx context.Context, eventType string, session *model.Session) {
	msg := kafka.NewMessage().
		WithKey(session.ID).
		WithValue(session).
		WithEventType(eventType).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		Build()

	if err := n.producer.Publish(ctx, msg); err != nil {
		n.log.Error("failed to publish session event",
			"event_type", eventType,
			"session_id", session.ID,
			"error", err)
		return
	}

	n.log.Debug("published session event",
		"event_type", eventType,
		"session_id", session.ID)
}

type noopNotifier struct{}

// NewNoopNotifier returns a notifier that drops every event. Used when no
// broker is configured.
func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) SessionCreated(context.Context, *model.Session)   {}
func (noopNotifier) SessionApproved(context.Context, *model.Session)  {}
func (noopNotifier) SessionCancelled(context.Context, *model.Session) {}
func (noopNotifier) SessionCompleted(context.Context, *model.Session) {}
