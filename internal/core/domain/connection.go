package domain

import "time"

// ConnID is the opaque identity the transport assigns to a connection.
type ConnID string

type Role string

const (
	RoleUnassigned  Role = "unassigned"
	RoleBroadcaster Role = "broadcaster"
	RoleViewer      Role = "viewer"
)

// Connection is one live signaling client. Roles only move away from
// unassigned; a broadcaster never becomes a viewer or vice versa.
type Connection struct {
	ID          ConnID
	Role        Role
	DisplayName string
	DeviceID    string // authorization identity, defaults to ID
	RemoteAddr  string
	ConnectedAt time.Time
}

// CanBroadcast reports whether the connection may (re-)register as a broadcaster.
func (c *Connection) CanBroadcast() bool {
	return c.Role == RoleUnassigned || c.Role == RoleBroadcaster
}

// CanWatch reports whether the connection may join a stream.
func (c *Connection) CanWatch() bool {
	return c.Role == RoleUnassigned || c.Role == RoleViewer
}
