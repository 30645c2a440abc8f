package services

import (
	"net/http"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	apperrors "camsignal/pkg/errors"
	"camsignal/pkg/validation"

	"go.uber.org/zap"
)

// RelayService forwards peer-addressed payloads without inspecting them.
type RelayService struct {
	registry  ports.SessionRegistry
	transport ports.Transport
	metrics   ports.SignalMetrics
	logger    *zap.SugaredLogger
}

func NewRelayService(
	registry ports.SessionRegistry,
	transport ports.Transport,
	metrics ports.SignalMetrics,
	logger *zap.SugaredLogger,
) *RelayService {
	return &RelayService{
		registry:  registry,
		transport: transport,
		metrics:   metrics,
		logger:    logger,
	}
}

// Relay delivers (kind, from, payload) to the target. A target that is not
// connected is dropped without telling the sender.
func (s *RelayService) Relay(kind domain.EventType, from, to domain.ConnID, payload any) bool {
	if _, ok := s.registry.LookupConnection(to); !ok {
		s.metrics.RecordRelay(kind, false)
		s.logger.Debugw("Relay target not connected",
			"type", kind,
			"conn_id", from,
			"target_id", to,
		)
		return false
	}

	delivered := s.transport.Send(to, &domain.Message{Type: kind, From: from, Payload: payload})
	s.metrics.RecordRelay(kind, delivered)
	return delivered
}

// Signal relays an offer, answer or candidate.
func (s *RelayService) Signal(ev domain.Signal) error {
	if !domain.IsSignalKind(ev.Kind) {
		return apperrors.WrapError(domain.ErrUnknownEvent, apperrors.ErrCodeInvalidInput,
			"unsupported signal kind: "+string(ev.Kind), http.StatusBadRequest)
	}
	if err := validation.ValidateConnID(string(ev.TargetID)); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	s.Relay(ev.Kind, ev.From, ev.TargetID, ev.Payload)
	return nil
}

// VideoFrame fans a frame out to every current viewer of the sending
// broadcaster. Frames from anyone else are dropped.
func (s *RelayService) VideoFrame(ev domain.VideoFrame) int {
	rec, ok := s.registry.LookupBroadcaster(ev.From)
	if !ok {
		return 0
	}

	payload := domain.VideoFramePayload{Frame: ev.Frame}
	delivered := 0
	for _, viewerID := range rec.ViewerIDs() {
		if s.Relay(domain.EventVideoFrame, ev.From, viewerID, payload) {
			delivered++
		}
	}
	return delivered
}

// ChangeQuality forwards a viewer's quality request to a broadcaster.
func (s *RelayService) ChangeQuality(ev domain.ChangeQuality) error {
	if err := validation.ValidateConnID(string(ev.TargetID)); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if err := validation.ValidateQuality(ev.Quality); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	s.Relay(domain.EventChangeQuality, ev.From, ev.TargetID, domain.QualityPayload{Quality: ev.Quality})
	return nil
}
