package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"camsignal/internal/core/domain"
	apperrors "camsignal/pkg/errors"

	"github.com/pion/webrtc/v3"
)

// envelope is the inbound frame. A client-supplied "from" is accepted but
// ignored: the sender is always the connection the frame arrived on.
type envelope struct {
	Type    domain.EventType `json:"type"`
	From    string           `json:"from,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

type registerPayload struct {
	Name string `json:"name"`
}

type joinPayload struct {
	TargetID domain.ConnID `json:"targetId"`
}

type signalPayload struct {
	TargetID domain.ConnID   `json:"targetId"`
	Payload  json.RawMessage `json:"payload"`
}

type videoFramePayload struct {
	Frame json.RawMessage `json:"frame"`
}

type qualityPayload struct {
	TargetID domain.ConnID `json:"targetId"`
	Quality  string        `json:"quality"`
}

type connectedPayload struct {
	ID         domain.ConnID      `json:"id"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

// parseEvent turns one text frame into a typed event from the given sender.
func parseEvent(from domain.ConnID, data []byte) (domain.Event, error) {
	var env envelope
	if err := decodeStrict(data, &env); err != nil {
		return nil, malformed("invalid message: %v", err)
	}

	switch env.Type {
	case domain.EventRegisterBroadcaster:
		var p registerPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, malformed("register_broadcaster requires name")
		}
		return domain.RegisterBroadcaster{From: from, Name: p.Name}, nil

	case domain.EventGetCameras:
		return domain.GetCameras{From: from}, nil

	case domain.EventJoinStream:
		var p joinPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if p.TargetID == "" {
			return nil, malformed("join_stream requires targetId")
		}
		return domain.JoinStream{From: from, TargetID: p.TargetID}, nil

	case domain.EventLeaveStream:
		return domain.LeaveStream{From: from}, nil

	case domain.EventStopBroadcast:
		return domain.StopBroadcast{From: from}, nil

	case domain.EventOffer, domain.EventAnswer, domain.EventCandidate:
		var p signalPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if p.TargetID == "" {
			return nil, malformed("%s requires targetId", env.Type)
		}
		if isEmptyJSON(p.Payload) {
			return nil, malformed("%s requires payload", env.Type)
		}
		return domain.Signal{From: from, Kind: env.Type, TargetID: p.TargetID, Payload: p.Payload}, nil

	case domain.EventVideoFrame:
		var p videoFramePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if isEmptyJSON(p.Frame) {
			return nil, malformed("video_frame requires frame")
		}
		return domain.VideoFrame{From: from, Frame: p.Frame}, nil

	case domain.EventChangeQuality:
		var p qualityPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if p.TargetID == "" || p.Quality == "" {
			return nil, malformed("change_quality requires targetId and quality")
		}
		return domain.ChangeQuality{From: from, TargetID: p.TargetID, Quality: p.Quality}, nil

	case "":
		return nil, malformed("message type is required")

	default:
		return nil, apperrors.WrapError(domain.ErrUnknownEvent, apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("unknown message type %q", env.Type), http.StatusBadRequest)
	}
}

func decodePayload(env envelope, v any) error {
	if isEmptyJSON(env.Payload) {
		return malformed("%s requires a payload", env.Type)
	}
	if err := decodeStrict(env.Payload, v); err != nil {
		return malformed("invalid %s payload: %v", env.Type, err)
	}
	return nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func malformed(format string, args ...any) error {
	return apperrors.NewInvalidInputError(fmt.Sprintf(format, args...))
}
