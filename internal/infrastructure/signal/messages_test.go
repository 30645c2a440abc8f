package signal

import (
	"encoding/json"
	"testing"

	"camsignal/internal/core/domain"
	apperrors "camsignal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_Valid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.Event
	}{
		{
			"register",
			`{"type":"register_broadcaster","payload":{"name":"Camera-1"}}`,
			domain.RegisterBroadcaster{From: "C1", Name: "Camera-1"},
		},
		{"get cameras", `{"type":"get_cameras"}`, domain.GetCameras{From: "C1"}},
		{
			"join",
			`{"type":"join_stream","payload":{"targetId":"B1"}}`,
			domain.JoinStream{From: "C1", TargetID: "B1"},
		},
		{"leave", `{"type":"leave_stream"}`, domain.LeaveStream{From: "C1"}},
		{"stop", `{"type":"stop_broadcast","payload":{}}`, domain.StopBroadcast{From: "C1"}},
		{
			"offer",
			`{"type":"offer","payload":{"targetId":"B1","payload":{"type":"offer","sdp":"v=0"}}}`,
			domain.Signal{From: "C1", Kind: domain.EventOffer, TargetID: "B1", Payload: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)},
		},
		{
			"candidate",
			`{"type":"candidate","payload":{"targetId":"V1","payload":{"candidate":"candidate:1"}}}`,
			domain.Signal{From: "C1", Kind: domain.EventCandidate, TargetID: "V1", Payload: json.RawMessage(`{"candidate":"candidate:1"}`)},
		},
		{
			"video frame",
			`{"type":"video_frame","payload":{"frame":"aGVsbG8="}}`,
			domain.VideoFrame{From: "C1", Frame: json.RawMessage(`"aGVsbG8="`)},
		},
		{
			"change quality",
			`{"type":"change_quality","payload":{"targetId":"B1","quality":"high"}}`,
			domain.ChangeQuality{From: "C1", TargetID: "B1", Quality: "high"},
		},
		{
			"spoofed from is ignored",
			`{"type":"get_cameras","from":"B1"}`,
			domain.GetCameras{From: "C1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := parseEvent("C1", []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `hello`},
		{"trailing data", `{"type":"get_cameras"}{}`},
		{"unknown envelope field", `{"type":"get_cameras","extra":1}`},
		{"missing type", `{"payload":{}}`},
		{"unknown type", `{"type":"teleport"}`},
		{"register without payload", `{"type":"register_broadcaster"}`},
		{"register without name", `{"type":"register_broadcaster","payload":{}}`},
		{"join with number", `{"type":"join_stream","payload":{"targetId":7}}`},
		{"join unknown field", `{"type":"join_stream","payload":{"targetId":"B1","force":true}}`},
		{"offer without target", `{"type":"offer","payload":{"payload":{"sdp":"x"}}}`},
		{"answer without payload", `{"type":"answer","payload":{"targetId":"B1"}}`},
		{"candidate null payload", `{"type":"candidate","payload":{"targetId":"B1","payload":null}}`},
		{"frame missing", `{"type":"video_frame","payload":{}}`},
		{"quality missing", `{"type":"change_quality","payload":{"targetId":"B1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := parseEvent("C1", []byte(tt.raw))
			require.Error(t, err)
			assert.Nil(t, ev)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
		})
	}
}

func TestParseEvent_UnknownTypeWrapsSentinel(t *testing.T) {
	_, err := parseEvent("C1", []byte(`{"type":"teleport"}`))
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)
}

func TestParseEvent_LifecycleTypesAreNotAccepted(t *testing.T) {
	for _, typ := range []domain.EventType{
		domain.EventLifecycleConnect,
		domain.EventLifecycleDisconnect,
		"connect",
		"disconnect",
	} {
		_, err := parseEvent("C1", []byte(`{"type":"`+string(typ)+`"}`))
		assert.ErrorIs(t, err, domain.ErrUnknownEvent, typ)
	}
}
