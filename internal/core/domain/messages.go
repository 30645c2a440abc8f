package domain

import "encoding/json"

// Message is the envelope of every frame sent to a client.
type Message struct {
	Type    EventType `json:"type"`
	From    ConnID    `json:"from,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

type BroadcasterReadyPayload struct {
	ID   ConnID `json:"id"`
	Name string `json:"name"`
}

type CameraListPayload struct {
	Cameras []CameraInfo `json:"cameras"`
}

// ViewerCountPayload is carried by watcher_joined and viewer_left.
type ViewerCountPayload struct {
	ViewerID ConnID `json:"viewerId"`
	Count    int    `json:"count"`
}

type BroadcasterLeftPayload struct {
	BroadcasterID ConnID `json:"broadcasterId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type VideoFramePayload struct {
	Frame json.RawMessage `json:"frame"`
}

type QualityPayload struct {
	Quality string `json:"quality"`
}

func NewCameraListMessage(cameras []CameraInfo) *Message {
	if cameras == nil {
		cameras = []CameraInfo{}
	}
	return &Message{Type: EventCameraListUpdate, Payload: CameraListPayload{Cameras: cameras}}
}

func NewErrorMessage(code, message string) *Message {
	return &Message{Type: EventError, Payload: ErrorPayload{Code: code, Message: message}}
}
