package services

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	apperrors "camsignal/pkg/errors"
	"camsignal/pkg/logger"
	"camsignal/pkg/tracing"

	"go.uber.org/zap"
)

// Coordinator serializes every inbound event through one goroutine, which is
// the only code that touches the session registry. Each event runs to
// completion, including its outbound sends, before the next is taken.
type Coordinator struct {
	registry ports.SessionRegistry
	pairing  *PairingService
	relay    *RelayService
	presence *PresenceService

	transport ports.Transport
	metrics   ports.SignalMetrics
	logger    *zap.SugaredLogger
	ctxLogger *logger.ContextLogger

	events  chan domain.Event
	queries chan func()
	done    chan struct{}
}

// NewCoordinator wires the pairing engine, relay and presence broadcaster
// around registry. mirror and metrics may be nil.
func NewCoordinator(
	registry ports.SessionRegistry,
	transport ports.Transport,
	authorizer ports.Authorizer,
	mirror ports.PresenceMirror,
	metrics ports.SignalMetrics,
	log *zap.SugaredLogger,
	eventQueueSize int,
) *Coordinator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if authorizer == nil {
		authorizer = NewTableAuthorizer(nil)
	}

	presence := NewPresenceService(registry, transport, mirror, metrics)
	return &Coordinator{
		registry:  registry,
		pairing:   NewPairingService(registry, transport, presence, authorizer, log),
		relay:     NewRelayService(registry, transport, metrics, log),
		presence:  presence,
		transport: transport,
		metrics:   metrics,
		logger:    log,
		ctxLogger: logger.NewContextLogger(log.Desugar()),
		events:    make(chan domain.Event, eventQueueSize),
		queries:   make(chan func()),
		done:      make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)

	c.logger.Info("Coordinator started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Infow("Coordinator stopped",
				"pending_events", len(c.events),
			)
			return
		case ev := <-c.events:
			_ = c.Dispatch(ctx, ev)
		case q := <-c.queries:
			q()
		}
	}
}

// Submit queues ev for the loop. It blocks while the queue is full.
func (c *Coordinator) Submit(ctx context.Context, ev domain.Event) error {
	select {
	case <-c.done:
		return domain.ErrCoordinatorStopped
	default:
	}

	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return domain.ErrCoordinatorStopped
	}
}

// Dispatch handles one event synchronously. It must only be called from the
// loop goroutine, or in place of Run.
func (c *Coordinator) Dispatch(ctx context.Context, ev domain.Event) error {
	start := time.Now()
	ctx = logger.WithConnID(ctx, string(ev.Source()))
	ctx, span := tracing.TraceSignalEvent(ctx, string(ev.Type()), string(ev.Source()))
	defer span.End()
	if target, ok := targetOf(ev); ok {
		span.SetAttributes(tracing.TargetIDKey.String(string(target)))
	}

	err := c.safeRoute(ev)
	c.metrics.RecordEvent(ev.Type(), time.Since(start))
	c.metrics.SetRegistryStats(c.registry.Stats())

	if err != nil {
		c.reportError(ctx, ev, err)
	}
	return err
}

// Cameras returns the presence snapshot as seen by the loop.
func (c *Coordinator) Cameras(ctx context.Context) ([]domain.CameraInfo, error) {
	return query(ctx, c, c.registry.Snapshot)
}

func (c *Coordinator) Stats(ctx context.Context) (domain.RegistryStats, error) {
	return query(ctx, c, c.registry.Stats)
}

// query runs fn on the loop goroutine. The result travels over a buffered
// channel, so a caller that gives up early shares no memory with fn.
func query[T any](ctx context.Context, c *Coordinator, fn func() T) (T, error) {
	var zero T
	result := make(chan T, 1)
	q := func() { result <- fn() }

	select {
	case c.queries <- q:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-c.done:
		return zero, domain.ErrCoordinatorStopped
	}

	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Coordinator) safeRoute(ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("Recovered from panic in event handler",
				"type", ev.Type(),
				"conn_id", ev.Source(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = apperrors.NewInternalError("internal error")
		}
	}()
	return c.route(ev)
}

func (c *Coordinator) route(ev domain.Event) error {
	switch e := ev.(type) {
	case domain.Connected:
		c.pairing.Connect(e)
	case domain.Disconnected:
		c.pairing.Disconnect(e)
	case domain.RegisterBroadcaster:
		return c.pairing.RegisterBroadcaster(e)
	case domain.GetCameras:
		c.pairing.GetCameras(e)
	case domain.JoinStream:
		return c.pairing.JoinStream(e)
	case domain.LeaveStream:
		c.pairing.LeaveStream(e)
	case domain.StopBroadcast:
		c.pairing.StopBroadcast(e)
	case domain.Signal:
		return c.relay.Signal(e)
	case domain.VideoFrame:
		c.relay.VideoFrame(e)
	case domain.ChangeQuality:
		return c.relay.ChangeQuality(e)
	default:
		return apperrors.WrapError(domain.ErrUnknownEvent, apperrors.ErrCodeInvalidInput,
			"unknown event type: "+string(ev.Type()), http.StatusBadRequest)
	}
	return nil
}

func targetOf(ev domain.Event) (domain.ConnID, bool) {
	switch e := ev.(type) {
	case domain.JoinStream:
		return e.TargetID, true
	case domain.Signal:
		return e.TargetID, true
	case domain.ChangeQuality:
		return e.TargetID, true
	}
	return "", false
}

// reportError sends the error back to the connection that caused it.
func (c *Coordinator) reportError(ctx context.Context, ev domain.Event, err error) {
	code := apperrors.CodeOf(err)
	message := "internal error"
	if appErr := apperrors.GetAppError(err); appErr != nil {
		message = appErr.Message
	}

	tracing.RecordError(ctx, err)
	tracing.AddSpanAttributes(ctx, tracing.ErrorCodeKey.String(string(code)))
	c.metrics.RecordError(string(code))

	if code == apperrors.ErrCodeInternal {
		c.ctxLogger.LogError(ctx, err, "Event handling failed",
			zap.String("type", string(ev.Type())),
		)
	} else {
		c.ctxLogger.LogDebug(ctx, "Event rejected",
			zap.String("type", string(ev.Type())),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}

	c.transport.Send(ev.Source(), domain.NewErrorMessage(string(code), message))
}
