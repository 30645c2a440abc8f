package services

import (
	"context"
	"sync"
	"testing"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	"camsignal/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sentMessage struct {
	to  domain.ConnID
	msg *domain.Message
}

// fakeTransport records every message queued for a live connection.
type fakeTransport struct {
	mu        sync.Mutex
	live      map[domain.ConnID]bool
	sent      []sentMessage
	panicOnce domain.ConnID
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{live: make(map[domain.ConnID]bool)}
}

func (f *fakeTransport) Send(to domain.ConnID, msg *domain.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panicOnce != "" && f.panicOnce == to {
		f.panicOnce = ""
		panic("socket exploded")
	}
	if !f.live[to] {
		return false
	}
	f.sent = append(f.sent, sentMessage{to: to, msg: msg})
	return true
}

func (f *fakeTransport) setLive(id domain.ConnID, live bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[id] = live
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func (f *fakeTransport) messagesFor(id domain.ConnID) []*domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.Message
	for _, s := range f.sent {
		if s.to == id {
			out = append(out, s.msg)
		}
	}
	return out
}

func (f *fakeTransport) typesFor(id domain.ConnID) []domain.EventType {
	var types []domain.EventType
	for _, m := range f.messagesFor(id) {
		types = append(types, m.Type)
	}
	return types
}

func (f *fakeTransport) ofType(id domain.ConnID, t domain.EventType) []*domain.Message {
	var out []*domain.Message
	for _, m := range f.messagesFor(id) {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type fakeMirror struct {
	published [][]domain.CameraInfo
}

func (m *fakeMirror) Publish(cameras []domain.CameraInfo) {
	m.published = append(m.published, cameras)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	coord     *Coordinator
	transport *fakeTransport
	registry  ports.SessionRegistry
	mirror    *fakeMirror
}

func newHarness(t *testing.T, table map[string][]string) *harness {
	t.Helper()

	registry := memory.NewSessionRegistry()
	transport := newFakeTransport()
	mirror := &fakeMirror{}
	coord := NewCoordinator(
		registry,
		transport,
		NewTableAuthorizer(table),
		mirror,
		nil,
		zaptest.NewLogger(t).Sugar(),
		16,
	)

	return &harness{
		t:         t,
		ctx:       context.Background(),
		coord:     coord,
		transport: transport,
		registry:  registry,
		mirror:    mirror,
	}
}

func (h *harness) connect(id domain.ConnID) {
	h.connectDevice(id, "")
}

func (h *harness) connectDevice(id domain.ConnID, deviceID string) {
	h.t.Helper()
	h.transport.setLive(id, true)
	require.NoError(h.t, h.coord.Dispatch(h.ctx, domain.Connected{From: id, DeviceID: deviceID}))
}

func (h *harness) disconnect(id domain.ConnID) {
	h.t.Helper()
	h.transport.setLive(id, false)
	require.NoError(h.t, h.coord.Dispatch(h.ctx, domain.Disconnected{From: id}))
}

func (h *harness) dispatch(ev domain.Event) error {
	return h.coord.Dispatch(h.ctx, ev)
}

func (h *harness) register(id domain.ConnID, name string) {
	h.t.Helper()
	require.NoError(h.t, h.dispatch(domain.RegisterBroadcaster{From: id, Name: name}))
}

func (h *harness) join(viewer, target domain.ConnID) {
	h.t.Helper()
	require.NoError(h.t, h.dispatch(domain.JoinStream{From: viewer, TargetID: target}))
}

// snapshots returns the camera lists id received, oldest first.
func (h *harness) snapshots(id domain.ConnID) [][]domain.CameraInfo {
	var out [][]domain.CameraInfo
	for _, m := range h.transport.ofType(id, domain.EventCameraListUpdate) {
		out = append(out, m.Payload.(domain.CameraListPayload).Cameras)
	}
	return out
}

func (h *harness) lastSnapshot(id domain.ConnID) []domain.CameraInfo {
	h.t.Helper()
	all := h.snapshots(id)
	require.NotEmpty(h.t, all, "no camera_list_update for %s", id)
	return all[len(all)-1]
}

func (h *harness) lastError(id domain.ConnID) domain.ErrorPayload {
	h.t.Helper()
	errs := h.transport.ofType(id, domain.EventError)
	require.NotEmpty(h.t, errs, "no error event for %s", id)
	return errs[len(errs)-1].Payload.(domain.ErrorPayload)
}
