package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventPresenceSnapshot = "presence.snapshot"
	publishTimeout        = 3 * time.Second
)

// PresenceEvent is the JSON body published for each snapshot.
type PresenceEvent struct {
	Type       string              `json:"type"`
	InstanceID string              `json:"instance_id"`
	Timestamp  time.Time           `json:"timestamp"`
	Cameras    []domain.CameraInfo `json:"cameras"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPresenceMirror publishes presence snapshots to a Redis channel for
// external dashboards. Publish never blocks the caller: only the most recent
// unsent snapshot is kept, and Run ships it. While Redis keeps failing the
// breaker skips publishes instead of paying the timeout for each one.
type RedisPresenceMirror struct {
	client     publisher
	channel    string
	instanceID string
	latest     chan []domain.CameraInfo
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.SugaredLogger
}

func NewRedisPresenceMirror(client publisher, channel, instanceID string, logger *zap.SugaredLogger) *RedisPresenceMirror {
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("presence mirror breaker state changed",
			"channel", channel,
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &RedisPresenceMirror{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		latest:     make(chan []domain.CameraInfo, 1),
		breaker:    breaker,
		logger:     logger,
	}
}

// Publish replaces any snapshot still waiting to be sent. It must only be
// called from a single goroutine.
func (m *RedisPresenceMirror) Publish(cameras []domain.CameraInfo) {
	select {
	case <-m.latest:
	default:
	}
	m.latest <- cameras
}

// Run ships snapshots until ctx is cancelled.
func (m *RedisPresenceMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cameras := <-m.latest:
			err := m.breaker.Execute(func() error {
				return m.publish(ctx, cameras)
			})
			if errors.Is(err, circuitbreaker.ErrOpen) {
				m.logger.Debugw("skipped presence mirror, breaker open", "channel", m.channel)
			} else if err != nil {
				m.logger.Warnw("failed to mirror presence",
					"channel", m.channel,
					"error", err,
				)
			}
		}
	}
}

func (m *RedisPresenceMirror) publish(ctx context.Context, cameras []domain.CameraInfo) error {
	data, err := json.Marshal(PresenceEvent{
		Type:       EventPresenceSnapshot,
		InstanceID: m.instanceID,
		Timestamp:  time.Now(),
		Cameras:    cameras,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := m.client.Publish(ctx, m.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	m.logger.Debugw("mirrored presence",
		"channel", m.channel,
		"cameras", len(cameras),
	)
	return nil
}
