package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"camsignal/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// recordingSink captures submitted events in order.
type recordingSink struct {
	events chan domain.Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan domain.Event, 64)}
}

func (r *recordingSink) Submit(ctx context.Context, ev domain.Event) error {
	select {
	case r.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *recordingSink) next(t *testing.T) domain.Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

type MockSignalMetrics struct {
	mock.Mock
}

func (m *MockSignalMetrics) RecordEvent(eventType domain.EventType, duration time.Duration) {
	m.Called(eventType, duration)
}

func (m *MockSignalMetrics) RecordRelay(kind domain.EventType, delivered bool) {
	m.Called(kind, delivered)
}

func (m *MockSignalMetrics) RecordError(code string) {
	m.Called(code)
}

func (m *MockSignalMetrics) RecordSendDropped() {
	m.Called()
}

func (m *MockSignalMetrics) RecordPresenceBroadcast(recipients int) {
	m.Called(recipients)
}

func (m *MockSignalMetrics) SetRegistryStats(stats domain.RegistryStats) {
	m.Called(stats)
}

type wireMessage struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

func testOptions() Options {
	return Options{
		PingInterval:   time.Second,
		PongTimeout:    5 * time.Second,
		WriteTimeout:   time.Second,
		SendQueueSize:  16,
		MaxMessageSize: 1 << 16,
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

func setupServer(t *testing.T, opts Options) (*WebSocketServer, *recordingSink, *MockSignalMetrics, *httptest.Server) {
	t.Helper()

	metrics := &MockSignalMetrics{}
	metrics.On("RecordError", mock.Anything).Maybe()
	metrics.On("RecordSendDropped").Maybe()

	ws := NewWebSocketServer(opts, metrics, zaptest.NewLogger(t).Sugar())
	sink := newRecordingSink()
	ws.SetSink(sink)

	srv := httptest.NewServer(http.HandlerFunc(ws.HandleWebSocket))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ws.Shutdown(ctx)
		srv.Close()
	})
	return ws, sink, metrics, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// connectClient dials and consumes the welcome, returning the assigned id.
func connectClient(t *testing.T, srv *httptest.Server, sink *recordingSink, query string) (*websocket.Conn, domain.ConnID) {
	t.Helper()
	conn := dial(t, srv, query)

	welcome := readMessage(t, conn)
	require.Equal(t, "connected", welcome.Type)
	var payload struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(welcome.Payload, &payload))

	ev := sink.next(t)
	connected, ok := ev.(domain.Connected)
	require.True(t, ok, "expected Connected, got %T", ev)
	require.Equal(t, domain.ConnID(payload.ID), connected.From)
	return conn, connected.From
}

func TestWebSocketServer_Welcome(t *testing.T) {
	_, sink, _, srv := setupServer(t, testOptions())
	conn := dial(t, srv, "?device_id=receiver_device_001")

	welcome := readMessage(t, conn)
	assert.Equal(t, "connected", welcome.Type)

	var payload struct {
		ID         string `json:"id"`
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}
	require.NoError(t, json.Unmarshal(welcome.Payload, &payload))
	assert.NotEmpty(t, payload.ID)
	require.Len(t, payload.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, payload.ICEServers[0].URLs)

	ev := sink.next(t).(domain.Connected)
	assert.Equal(t, domain.ConnID(payload.ID), ev.From)
	assert.Equal(t, "receiver_device_001", ev.DeviceID)
}

func TestWebSocketServer_RejectsInvalidDeviceID(t *testing.T) {
	_, _, _, srv := setupServer(t, testOptions())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?device_id=bad%20id"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketServer_SubmitsParsedEvents(t *testing.T) {
	_, sink, _, srv := setupServer(t, testOptions())
	conn, id := connectClient(t, srv, sink, "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"join_stream","payload":{"targetId":"B1"}}`)))

	assert.Equal(t, domain.JoinStream{From: id, TargetID: "B1"}, sink.next(t))
}

func TestWebSocketServer_MalformedMessage(t *testing.T) {
	_, sink, metrics, srv := setupServer(t, testOptions())
	conn, _ := connectClient(t, srv, sink, "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_stream"`)))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	var payload domain.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "INVALID_INPUT", payload.Code)
	metrics.AssertCalled(t, "RecordError", "INVALID_INPUT")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"get_cameras"}`)))
	assert.IsType(t, domain.GetCameras{}, sink.next(t), "connection survives a bad frame")
}

func TestWebSocketServer_Send(t *testing.T) {
	ws, sink, _, srv := setupServer(t, testOptions())
	conn, id := connectClient(t, srv, sink, "")

	ok := ws.Send(id, &domain.Message{
		Type:    domain.EventOffer,
		From:    "B1",
		Payload: json.RawMessage(`{"sdp":"v=0"}`),
	})
	require.True(t, ok)

	msg := readMessage(t, conn)
	assert.Equal(t, "offer", msg.Type)
	assert.Equal(t, "B1", msg.From)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(msg.Payload))

	assert.False(t, ws.Send("unknown", &domain.Message{Type: domain.EventAllViewersLeft}))
}

func TestWebSocketServer_Disconnect(t *testing.T) {
	ws, sink, _, srv := setupServer(t, testOptions())
	conn, id := connectClient(t, srv, sink, "")
	assert.Equal(t, 1, ws.ConnectionCount())

	require.NoError(t, conn.Close())

	assert.Equal(t, domain.Disconnected{From: id}, sink.next(t))
	assert.Equal(t, 0, ws.ConnectionCount())
	assert.False(t, ws.Send(id, &domain.Message{Type: domain.EventAllViewersLeft}))
}

func TestWebSocketServer_RateLimit(t *testing.T) {
	opts := testOptions()
	opts.MessagesPerSecond = 0.001
	opts.MessageBurst = 1
	_, sink, _, srv := setupServer(t, opts)
	conn, _ := connectClient(t, srv, sink, "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"get_cameras"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"get_cameras"}`)))

	assert.IsType(t, domain.GetCameras{}, sink.next(t))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, string(msg.Payload), "RATE_LIMIT_EXCEEDED")
}

func TestWebSocketServer_SendQueueFull(t *testing.T) {
	opts := testOptions()
	opts.SendQueueSize = 1
	ws, _, metrics, _ := setupServer(t, opts)

	// A client registered without pumps keeps its queue full.
	c := &client{id: "slow", send: make(chan []byte, 1), server: ws}
	ws.clients[c.id] = c

	assert.True(t, ws.Send("slow", &domain.Message{Type: domain.EventAllViewersLeft}))
	assert.False(t, ws.Send("slow", &domain.Message{Type: domain.EventAllViewersLeft}))
	metrics.AssertCalled(t, "RecordSendDropped")

	delete(ws.clients, c.id)
}

func TestWebSocketServer_RejectsWithoutSink(t *testing.T) {
	ws := NewWebSocketServer(testOptions(), &MockSignalMetrics{}, zaptest.NewLogger(t).Sugar())
	rec := httptest.NewRecorder()

	ws.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebSocketServer_NoRegistrationAfterShutdown(t *testing.T) {
	ws := NewWebSocketServer(testOptions(), &MockSignalMetrics{}, zaptest.NewLogger(t).Sugar())
	ws.SetSink(newRecordingSink())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ws.Shutdown(ctx))

	// A handler that finished its upgrade after Shutdown started.
	late := &client{id: "late", send: make(chan []byte, 1), server: ws}
	assert.False(t, ws.register(late))
	assert.Equal(t, 0, ws.ConnectionCount())

	// Nothing was added to the wait group, so a second Shutdown returns at once.
	quick, quickCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer quickCancel()
	assert.NoError(t, ws.Shutdown(quick))

	rec := httptest.NewRecorder()
	ws.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
