package services

import (
	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
)

// PresenceService pushes the registry snapshot to connected parties.
type PresenceService struct {
	registry  ports.SessionRegistry
	transport ports.Transport
	mirror    ports.PresenceMirror
	metrics   ports.SignalMetrics
}

// NewPresenceService creates the presence broadcaster. mirror may be nil.
func NewPresenceService(
	registry ports.SessionRegistry,
	transport ports.Transport,
	mirror ports.PresenceMirror,
	metrics ports.SignalMetrics,
) *PresenceService {
	return &PresenceService{
		registry:  registry,
		transport: transport,
		mirror:    mirror,
		metrics:   metrics,
	}
}

// Publish sends camera_list_update to every connection in the registry and
// returns how many were queued.
func (p *PresenceService) Publish() int {
	cameras := p.registry.Snapshot()
	msg := domain.NewCameraListMessage(cameras)

	delivered := 0
	for _, id := range p.registry.ConnectionIDs() {
		if p.transport.Send(id, msg) {
			delivered++
		}
	}
	p.metrics.RecordPresenceBroadcast(delivered)

	if p.mirror != nil {
		p.mirror.Publish(cameras)
	}
	return delivered
}

// SendTo answers a get_cameras request without touching anyone else.
func (p *PresenceService) SendTo(id domain.ConnID) bool {
	return p.transport.Send(id, domain.NewCameraListMessage(p.registry.Snapshot()))
}
