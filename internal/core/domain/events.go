package domain

import "encoding/json"

// EventType is the wire name of an inbound or outbound event.
type EventType string

// Inbound client events.
const (
	EventRegisterBroadcaster EventType = "register_broadcaster"
	EventGetCameras          EventType = "get_cameras"
	EventJoinStream          EventType = "join_stream"
	EventLeaveStream         EventType = "leave_stream"
	EventStopBroadcast       EventType = "stop_broadcast"
	EventOffer               EventType = "offer"
	EventAnswer              EventType = "answer"
	EventCandidate           EventType = "candidate"
	EventVideoFrame          EventType = "video_frame"
	EventChangeQuality       EventType = "change_quality"
)

// Lifecycle event types. The transport raises these itself; they only ever
// appear as Type() of Connected and Disconnected and are never accepted from
// or written to the wire.
const (
	EventLifecycleConnect    EventType = "lifecycle.connect"
	EventLifecycleDisconnect EventType = "lifecycle.disconnect"
)

// Outbound events.
const (
	EventConnected        EventType = "connected"
	EventBroadcasterReady EventType = "broadcaster_ready"
	EventCameraListUpdate EventType = "camera_list_update"
	EventWatcherJoined    EventType = "watcher_joined"
	EventViewerLeft       EventType = "viewer_left"
	EventAllViewersLeft   EventType = "all_viewers_left"
	EventBroadcasterLeft  EventType = "broadcaster_left"
	EventError            EventType = "error"
)

// IsSignalKind reports whether t is one of the negotiation messages relayed verbatim.
func IsSignalKind(t EventType) bool {
	return t == EventOffer || t == EventAnswer || t == EventCandidate
}

// Event is a validated inbound event attributed to the connection it came from.
type Event interface {
	Type() EventType
	Source() ConnID
}

type Connected struct {
	From       ConnID
	DeviceID   string
	RemoteAddr string
}

type Disconnected struct {
	From ConnID
}

type RegisterBroadcaster struct {
	From ConnID
	Name string
}

type GetCameras struct {
	From ConnID
}

type JoinStream struct {
	From     ConnID
	TargetID ConnID
}

type LeaveStream struct {
	From ConnID
}

type StopBroadcast struct {
	From ConnID
}

// Signal is an offer, answer or ICE candidate addressed to one peer.
type Signal struct {
	From     ConnID
	Kind     EventType
	TargetID ConnID
	Payload  json.RawMessage
}

type VideoFrame struct {
	From  ConnID
	Frame json.RawMessage
}

type ChangeQuality struct {
	From     ConnID
	TargetID ConnID
	Quality  string
}

func (e Connected) Type() EventType           { return EventLifecycleConnect }
func (e Disconnected) Type() EventType        { return EventLifecycleDisconnect }
func (e RegisterBroadcaster) Type() EventType { return EventRegisterBroadcaster }
func (e GetCameras) Type() EventType          { return EventGetCameras }
func (e JoinStream) Type() EventType          { return EventJoinStream }
func (e LeaveStream) Type() EventType         { return EventLeaveStream }
func (e StopBroadcast) Type() EventType       { return EventStopBroadcast }
func (e Signal) Type() EventType              { return e.Kind }
func (e VideoFrame) Type() EventType          { return EventVideoFrame }
func (e ChangeQuality) Type() EventType       { return EventChangeQuality }

func (e Connected) Source() ConnID           { return e.From }
func (e Disconnected) Source() ConnID        { return e.From }
func (e RegisterBroadcaster) Source() ConnID { return e.From }
func (e GetCameras) Source() ConnID          { return e.From }
func (e JoinStream) Source() ConnID          { return e.From }
func (e LeaveStream) Source() ConnID         { return e.From }
func (e StopBroadcast) Source() ConnID       { return e.From }
func (e Signal) Source() ConnID              { return e.From }
func (e VideoFrame) Source() ConnID          { return e.From }
func (e ChangeQuality) Source() ConnID       { return e.From }
