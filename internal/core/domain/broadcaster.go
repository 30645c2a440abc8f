package domain

import (
	"sort"
	"time"
)

// BroadcasterRecord is a registered camera and the viewers currently paired with it.
type BroadcasterRecord struct {
	ID           ConnID
	Name         string
	Viewers      map[ConnID]struct{}
	RegisteredAt time.Time
}

func NewBroadcasterRecord(id ConnID, name string) *BroadcasterRecord {
	return &BroadcasterRecord{
		ID:           id,
		Name:         name,
		Viewers:      make(map[ConnID]struct{}),
		RegisteredAt: time.Now(),
	}
}

func (r *BroadcasterRecord) ViewerCount() int {
	return len(r.Viewers)
}

func (r *BroadcasterRecord) HasViewer(id ConnID) bool {
	_, ok := r.Viewers[id]
	return ok
}

// ViewerIDs returns the viewer set in a deterministic order.
func (r *BroadcasterRecord) ViewerIDs() []ConnID {
	ids := make([]ConnID, 0, len(r.Viewers))
	for id := range r.Viewers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CameraInfo is the public presence entry for one broadcaster.
type CameraInfo struct {
	ID          ConnID `json:"id"`
	Name        string `json:"name"`
	ViewerCount int    `json:"viewerCount"`
}

// RegistryStats summarizes the registry for health and metrics reporting.
type RegistryStats struct {
	Connections  int `json:"connections"`
	Broadcasters int `json:"broadcasters"`
	Viewers      int `json:"viewers"`
}
