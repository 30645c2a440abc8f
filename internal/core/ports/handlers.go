package ports

import (
	"context"

	"camsignal/internal/core/domain"
)

// PresenceReader answers read-only queries from outside the coordinator loop.
type PresenceReader interface {
	Cameras(ctx context.Context) ([]domain.CameraInfo, error)
	Stats(ctx context.Context) (domain.RegistryStats, error)
}
