package ports

import (
	"context"
	"time"

	"camsignal/internal/core/domain"
)

// Transport delivers outbound messages. Send never blocks and reports whether
// the message was queued for a live connection.
type Transport interface {
	Send(to domain.ConnID, msg *domain.Message) bool
}

// PresenceMirror receives every published presence snapshot. It must not block.
type PresenceMirror interface {
	Publish(cameras []domain.CameraInfo)
}

// Authorizer decides whether a viewer may watch a broadcaster.
type Authorizer interface {
	CanJoin(viewer, broadcaster *domain.Connection) bool
}

// EventSink accepts inbound events for serialized processing.
type EventSink interface {
	Submit(ctx context.Context, ev domain.Event) error
}

type SignalMetrics interface {
	RecordEvent(eventType domain.EventType, duration time.Duration)
	RecordRelay(kind domain.EventType, delivered bool)
	RecordError(code string)
	RecordSendDropped()
	RecordPresenceBroadcast(recipients int)
	SetRegistryStats(stats domain.RegistryStats)
}
