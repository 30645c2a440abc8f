package services

import (
	"net/http"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	apperrors "camsignal/pkg/errors"
	"camsignal/pkg/utils"
	"camsignal/pkg/validation"

	"go.uber.org/zap"
)

// PairingService applies registration, join and leave policy against the
// registry and emits the resulting side-effect events. Every method that
// changes visible presence publishes exactly one snapshot.
type PairingService struct {
	registry   ports.SessionRegistry
	transport  ports.Transport
	presence   *PresenceService
	authorizer ports.Authorizer
	logger     *zap.SugaredLogger
}

func NewPairingService(
	registry ports.SessionRegistry,
	transport ports.Transport,
	presence *PresenceService,
	authorizer ports.Authorizer,
	logger *zap.SugaredLogger,
) *PairingService {
	return &PairingService{
		registry:   registry,
		transport:  transport,
		presence:   presence,
		authorizer: authorizer,
		logger:     logger,
	}
}

func (s *PairingService) Connect(ev domain.Connected) {
	s.registry.AddConnection(&domain.Connection{
		ID:          ev.From,
		Role:        domain.RoleUnassigned,
		DeviceID:    ev.DeviceID,
		RemoteAddr:  ev.RemoteAddr,
		ConnectedAt: time.Now(),
	})
	s.logger.Infow("Client connected",
		"conn_id", ev.From,
		"device_id", ev.DeviceID,
		"remote_addr", ev.RemoteAddr,
	)
}

func (s *PairingService) RegisterBroadcaster(ev domain.RegisterBroadcaster) error {
	conn, err := s.connection(ev.From)
	if err != nil {
		return err
	}
	if !conn.CanBroadcast() {
		return roleConflict("viewers cannot register as a broadcaster")
	}

	name := utils.SanitizeString(ev.Name)
	if err := validation.ValidateDisplayName(name); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	dropped := s.registry.RegisterBroadcaster(ev.From, name)
	for _, viewerID := range dropped {
		s.transport.Send(viewerID, &domain.Message{
			Type:    domain.EventBroadcasterLeft,
			Payload: domain.BroadcasterLeftPayload{BroadcasterID: ev.From},
		})
	}

	s.transport.Send(ev.From, &domain.Message{
		Type:    domain.EventBroadcasterReady,
		Payload: domain.BroadcasterReadyPayload{ID: ev.From, Name: name},
	})
	s.logger.Infow("Broadcaster registered",
		"conn_id", ev.From,
		"name", name,
		"dropped_viewers", len(dropped),
	)

	s.presence.Publish()
	return nil
}

func (s *PairingService) GetCameras(ev domain.GetCameras) {
	s.presence.SendTo(ev.From)
}

// JoinStream pairs the requester with a broadcaster, leaving any broadcaster
// it was watching before.
func (s *PairingService) JoinStream(ev domain.JoinStream) error {
	conn, err := s.connection(ev.From)
	if err != nil {
		return err
	}
	if !conn.CanWatch() {
		return roleConflict("broadcasters cannot join a stream")
	}
	if err := validation.ValidateConnID(string(ev.TargetID)); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	rec, ok := s.registry.LookupBroadcaster(ev.TargetID)
	if !ok {
		return apperrors.WrapError(domain.ErrBroadcasterNotFound, apperrors.ErrCodeNotFound,
			domain.ErrBroadcasterNotFound.Error(), http.StatusNotFound)
	}
	target, ok := s.registry.LookupConnection(ev.TargetID)
	if !ok || !s.authorizer.CanJoin(conn, target) {
		s.logger.Warnw("Join rejected by authorization table",
			"conn_id", ev.From,
			"target_id", ev.TargetID,
			"device_id", conn.DeviceID,
		)
		return apperrors.WrapError(domain.ErrNotAuthorized, apperrors.ErrCodeUnauthorized,
			domain.ErrNotAuthorized.Error(), http.StatusForbidden)
	}

	current, watching := s.registry.WatchedBroadcaster(ev.From)
	rejoin := watching && current == ev.TargetID
	if watching && !rejoin {
		s.detachViewer(ev.From)
	}

	s.registry.RegisterViewerRole(ev.From)
	s.registry.AddViewer(ev.TargetID, ev.From)

	s.transport.Send(ev.TargetID, &domain.Message{
		Type:    domain.EventWatcherJoined,
		Payload: domain.ViewerCountPayload{ViewerID: ev.From, Count: rec.ViewerCount()},
	})
	s.logger.Infow("Viewer joined stream",
		"conn_id", ev.From,
		"target_id", ev.TargetID,
		"viewer_count", rec.ViewerCount(),
		"rejoin", rejoin,
	)

	if !rejoin {
		s.presence.Publish()
	}
	return nil
}

// LeaveStream is a no-op for a connection that is not watching anything.
func (s *PairingService) LeaveStream(ev domain.LeaveStream) {
	if s.detachViewer(ev.From) {
		s.presence.Publish()
	}
}

// StopBroadcast is a no-op for a connection that holds no record.
func (s *PairingService) StopBroadcast(ev domain.StopBroadcast) {
	if s.stopBroadcast(ev.From) {
		s.presence.Publish()
	}
}

// Disconnect runs the same cleanup as stop_broadcast or leave_stream and then
// forgets the connection. Repeated calls are no-ops.
func (s *PairingService) Disconnect(ev domain.Disconnected) {
	conn, ok := s.registry.LookupConnection(ev.From)
	if !ok {
		return
	}

	changed := false
	switch conn.Role {
	case domain.RoleBroadcaster:
		changed = s.stopBroadcast(ev.From)
	case domain.RoleViewer:
		changed = s.detachViewer(ev.From)
	}
	s.registry.RemoveConnection(ev.From)

	s.logger.Infow("Client disconnected",
		"conn_id", ev.From,
		"role", conn.Role,
		"connected_for", time.Since(conn.ConnectedAt).String(),
	)

	if changed {
		s.presence.Publish()
	}
}

func (s *PairingService) detachViewer(viewerID domain.ConnID) bool {
	broadcasterID, ok := s.registry.RemoveViewerFromAny(viewerID)
	if !ok {
		return false
	}

	count := 0
	if rec, ok := s.registry.LookupBroadcaster(broadcasterID); ok {
		count = rec.ViewerCount()
	}
	s.transport.Send(broadcasterID, &domain.Message{
		Type:    domain.EventViewerLeft,
		Payload: domain.ViewerCountPayload{ViewerID: viewerID, Count: count},
	})
	if count == 0 {
		s.transport.Send(broadcasterID, &domain.Message{Type: domain.EventAllViewersLeft})
	}

	s.logger.Infow("Viewer left stream",
		"conn_id", viewerID,
		"target_id", broadcasterID,
		"viewer_count", count,
	)
	return true
}

func (s *PairingService) stopBroadcast(id domain.ConnID) bool {
	rec, ok := s.registry.RemoveBroadcaster(id)
	if !ok {
		return false
	}

	msg := &domain.Message{
		Type:    domain.EventBroadcasterLeft,
		Payload: domain.BroadcasterLeftPayload{BroadcasterID: id},
	}
	for _, viewerID := range rec.ViewerIDs() {
		s.transport.Send(viewerID, msg)
	}

	s.logger.Infow("Broadcast stopped",
		"conn_id", id,
		"name", rec.Name,
		"viewer_count", rec.ViewerCount(),
	)
	return true
}

func (s *PairingService) connection(id domain.ConnID) (*domain.Connection, error) {
	conn, ok := s.registry.LookupConnection(id)
	if !ok {
		return nil, apperrors.WrapError(domain.ErrConnectionNotFound, apperrors.ErrCodeInvalidInput,
			"unknown connection", http.StatusBadRequest)
	}
	return conn, nil
}

func roleConflict(message string) error {
	return apperrors.WrapError(domain.ErrRoleConflict, apperrors.ErrCodeInvalidInput, message, http.StatusBadRequest)
}
