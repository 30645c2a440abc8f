package memory

import (
	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
)

// SessionRegistry keeps connections, broadcaster records and the viewer
// reverse index in memory. It has no lock: the coordinator loop owns it.
type SessionRegistry struct {
	connections  map[domain.ConnID]*domain.Connection
	broadcasters map[domain.ConnID]*domain.BroadcasterRecord
	order        []domain.ConnID
	watching     map[domain.ConnID]domain.ConnID // viewer -> broadcaster
}

func NewSessionRegistry() ports.SessionRegistry {
	return &SessionRegistry{
		connections:  make(map[domain.ConnID]*domain.Connection),
		broadcasters: make(map[domain.ConnID]*domain.BroadcasterRecord),
		watching:     make(map[domain.ConnID]domain.ConnID),
	}
}

func (r *SessionRegistry) AddConnection(conn *domain.Connection) {
	if conn.Role == "" {
		conn.Role = domain.RoleUnassigned
	}
	if conn.DeviceID == "" {
		conn.DeviceID = string(conn.ID)
	}
	r.connections[conn.ID] = conn
}

func (r *SessionRegistry) LookupConnection(id domain.ConnID) (*domain.Connection, bool) {
	conn, ok := r.connections[id]
	return conn, ok
}

// RemoveConnection drops the connection together with any record or pairing
// it still holds.
func (r *SessionRegistry) RemoveConnection(id domain.ConnID) bool {
	if _, ok := r.connections[id]; !ok {
		return false
	}
	r.RemoveViewerFromAny(id)
	r.RemoveBroadcaster(id)
	delete(r.connections, id)
	return true
}

func (r *SessionRegistry) ConnectionIDs() []domain.ConnID {
	ids := make([]domain.ConnID, 0, len(r.connections))
	for id := range r.connections {
		ids = append(ids, id)
	}
	return ids
}

func (r *SessionRegistry) ConnectionCount() int {
	return len(r.connections)
}

func (r *SessionRegistry) RegisterBroadcaster(id domain.ConnID, name string) []domain.ConnID {
	var dropped []domain.ConnID
	if prev, ok := r.RemoveBroadcaster(id); ok {
		dropped = prev.ViewerIDs()
	}
	r.RemoveViewerFromAny(id)

	r.broadcasters[id] = domain.NewBroadcasterRecord(id, name)
	r.order = append(r.order, id)

	if conn, ok := r.connections[id]; ok {
		conn.Role = domain.RoleBroadcaster
		conn.DisplayName = name
	}
	return dropped
}

func (r *SessionRegistry) RegisterViewerRole(id domain.ConnID) {
	if conn, ok := r.connections[id]; ok {
		conn.Role = domain.RoleViewer
	}
}

func (r *SessionRegistry) LookupBroadcaster(id domain.ConnID) (*domain.BroadcasterRecord, bool) {
	rec, ok := r.broadcasters[id]
	return rec, ok
}

func (r *SessionRegistry) RemoveBroadcaster(id domain.ConnID) (*domain.BroadcasterRecord, bool) {
	rec, ok := r.broadcasters[id]
	if !ok {
		return nil, false
	}
	delete(r.broadcasters, id)
	for viewerID := range rec.Viewers {
		delete(r.watching, viewerID)
	}
	for i, bid := range r.order {
		if bid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return rec, true
}

// AddViewer pairs viewerID with broadcasterID, moving it off any other
// broadcaster first. Adding an existing pairing is a no-op that returns true.
func (r *SessionRegistry) AddViewer(broadcasterID, viewerID domain.ConnID) bool {
	rec, ok := r.broadcasters[broadcasterID]
	if !ok || broadcasterID == viewerID {
		return false
	}
	if current, watching := r.watching[viewerID]; watching {
		if current == broadcasterID {
			return true
		}
		r.RemoveViewer(current, viewerID)
	}
	rec.Viewers[viewerID] = struct{}{}
	r.watching[viewerID] = broadcasterID
	return true
}

func (r *SessionRegistry) RemoveViewer(broadcasterID, viewerID domain.ConnID) bool {
	rec, ok := r.broadcasters[broadcasterID]
	if !ok || !rec.HasViewer(viewerID) {
		return false
	}
	delete(rec.Viewers, viewerID)
	delete(r.watching, viewerID)
	return true
}

func (r *SessionRegistry) RemoveViewerFromAny(viewerID domain.ConnID) (domain.ConnID, bool) {
	broadcasterID, ok := r.watching[viewerID]
	if !ok {
		return "", false
	}
	r.RemoveViewer(broadcasterID, viewerID)
	return broadcasterID, true
}

func (r *SessionRegistry) WatchedBroadcaster(viewerID domain.ConnID) (domain.ConnID, bool) {
	id, ok := r.watching[viewerID]
	return id, ok
}

func (r *SessionRegistry) Snapshot() []domain.CameraInfo {
	cameras := make([]domain.CameraInfo, 0, len(r.order))
	for _, id := range r.order {
		rec := r.broadcasters[id]
		cameras = append(cameras, domain.CameraInfo{
			ID:          rec.ID,
			Name:        rec.Name,
			ViewerCount: rec.ViewerCount(),
		})
	}
	return cameras
}

func (r *SessionRegistry) Stats() domain.RegistryStats {
	return domain.RegistryStats{
		Connections:  len(r.connections),
		Broadcasters: len(r.broadcasters),
		Viewers:      len(r.watching),
	}
}
