package metadata

import (
	"context"

	"metadesc/internal/engine/resource"
)

// ResourceManager is what resolution needs from the resource layer: by-name
// lookup and the shared parse-once descriptor cache.
type ResourceManager interface {
	ResolveRelativePath(ctx context.Context, filename string) (string, bool, error)
	Load(ctx context.Context, locator string, parse resource.ParseFunc) (any, error)
}

var _ ResourceManager = (*resource.Manager)(nil)

func defaultResourceManager() ResourceManager {
	return resource.NewDefault()
}
