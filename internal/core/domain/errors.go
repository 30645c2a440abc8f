package domain

import "errors"

var (
	ErrBroadcasterNotFound = errors.New("camera not found")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrNotAuthorized       = errors.New("not authorized to view this camera")
	ErrRoleConflict        = errors.New("connection role does not allow this request")
	ErrUnknownEvent        = errors.New("unknown event type")
	ErrCoordinatorStopped  = errors.New("coordinator stopped")
)
