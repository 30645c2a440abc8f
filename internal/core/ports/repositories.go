package ports

import "camsignal/internal/core/domain"

// SessionRegistry is the single source of truth for connections, roles and
// pairings. Implementations are not safe for concurrent use: only the
// coordinator loop calls them.
type SessionRegistry interface {
	AddConnection(conn *domain.Connection)
	LookupConnection(id domain.ConnID) (*domain.Connection, bool)
	RemoveConnection(id domain.ConnID) bool
	ConnectionIDs() []domain.ConnID
	ConnectionCount() int

	// RegisterBroadcaster creates or overwrites the record for id with an
	// empty viewer set and returns the viewers the overwrite dropped.
	RegisterBroadcaster(id domain.ConnID, name string) []domain.ConnID
	RegisterViewerRole(id domain.ConnID)
	LookupBroadcaster(id domain.ConnID) (*domain.BroadcasterRecord, bool)
	RemoveBroadcaster(id domain.ConnID) (*domain.BroadcasterRecord, bool)

	AddViewer(broadcasterID, viewerID domain.ConnID) bool
	RemoveViewer(broadcasterID, viewerID domain.ConnID) bool
	RemoveViewerFromAny(viewerID domain.ConnID) (domain.ConnID, bool)
	WatchedBroadcaster(viewerID domain.ConnID) (domain.ConnID, bool)

	// Snapshot lists broadcasters in registration order.
	Snapshot() []domain.CameraInfo
	Stats() domain.RegistryStats
}
