package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	"camsignal/pkg/config"
	apperrors "camsignal/pkg/errors"
	"camsignal/pkg/utils"
	"camsignal/pkg/validation"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the client page may be served from anywhere
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Options tunes the per-connection behaviour of the transport.
type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendQueueSize  int
	MaxMessageSize int64

	// Zero disables the per-connection inbound limiter.
	MessagesPerSecond float64
	MessageBurst      int

	ICEServers []webrtc.ICEServer
}

func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		PingInterval:   cfg.Signal.PingInterval,
		PongTimeout:    cfg.Signal.PongTimeout,
		WriteTimeout:   cfg.Signal.WriteTimeout,
		SendQueueSize:  cfg.Signal.SendQueueSize,
		MaxMessageSize: cfg.Signal.MaxMessageSizeBytes,
		ICEServers:     cfg.ICEServers(),
	}
	if cfg.RateLimiting.Enabled {
		opts.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		opts.MessageBurst = cfg.RateLimiting.WebSocket.Burst
	}
	return opts
}

// WebSocketServer owns the client sockets. It turns frames into events for
// the sink and implements ports.Transport for everything going back out.
type WebSocketServer struct {
	opts    Options
	sink    ports.EventSink
	metrics ports.SignalMetrics

	clients map[domain.ConnID]*client
	closing bool
	mu      sync.RWMutex
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.SugaredLogger
}

func NewWebSocketServer(opts Options, metrics ports.SignalMetrics, logger *zap.SugaredLogger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketServer{
		opts:    opts,
		metrics: metrics,
		clients: make(map[domain.ConnID]*client),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// SetSink must be called before the server accepts connections.
func (s *WebSocketServer) SetSink(sink ports.EventSink) {
	s.sink = sink
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil || s.isClosing() {
		http.Error(w, "signaling unavailable", http.StatusServiceUnavailable)
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	if deviceID != "" {
		if err := validation.ValidateDeviceID(deviceID); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:       domain.ConnID(utils.GenerateConnectionID()),
		deviceID: deviceID,
		conn:     conn,
		send:     make(chan []byte, s.opts.SendQueueSize),
		server:   s,
	}
	if s.opts.MessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.MessageBurst)
	}

	// The welcome is queued before the client becomes addressable so it is
	// always the first frame the peer sees.
	welcome, err := json.Marshal(&domain.Message{
		Type:    domain.EventConnected,
		Payload: connectedPayload{ID: c.id, ICEServers: s.opts.ICEServers},
	})
	if err != nil {
		s.logger.Errorw("failed to encode welcome", "error", err)
		conn.Close()
		return
	}
	c.send <- welcome

	// Shutdown may have started during the upgrade.
	if !s.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.opts.WriteTimeout))
		conn.Close()
		return
	}

	if err := s.sink.Submit(s.ctx, domain.Connected{
		From:       c.id,
		DeviceID:   deviceID,
		RemoteAddr: r.RemoteAddr,
	}); err != nil {
		s.logger.Warnw("dropping connection, coordinator unavailable", "conn_id", c.id, "error", err)
		s.unregister(c)
		conn.Close()
		s.wg.Done()
		return
	}

	s.logger.Infow("websocket connected", "conn_id", c.id, "remote_addr", r.RemoteAddr)

	go c.writePump()
	c.readPump()
}

// Send queues msg for the connection without blocking. A full queue drops the
// message for that connection only.
func (s *WebSocketServer) Send(to domain.ConnID, msg *domain.Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Errorw("failed to encode message", "type", msg.Type, "conn_id", to, "error", err)
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[to]
	if !ok {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		s.metrics.RecordSendDropped()
		s.logger.Warnw("send queue full, dropping message", "conn_id", to, "type", msg.Type)
		return false
	}
}

func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown closes every socket and waits for the read loops to report their
// disconnects, or for ctx to expire.
func (s *WebSocketServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	deadline := time.Now().Add(s.opts.WriteTimeout)
	for _, c := range s.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = c.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	defer s.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// register makes c addressable and counts its read loop. It fails once
// Shutdown has begun; closing is set under the same lock, so Shutdown never
// waits on a client it did not close.
func (s *WebSocketServer) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.clients[c.id] = c
	s.wg.Add(1)
	return true
}

func (s *WebSocketServer) isClosing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closing
}

func (s *WebSocketServer) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		close(c.send)
	}
}

func (s *WebSocketServer) sendError(to domain.ConnID, err error) {
	code := apperrors.CodeOf(err)
	message := err.Error()
	if appErr := apperrors.GetAppError(err); appErr != nil {
		message = appErr.Message
	}
	s.metrics.RecordError(string(code))
	s.Send(to, domain.NewErrorMessage(string(code), message))
}
