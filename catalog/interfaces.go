package catalog

import "context"

// Catalog is the ordered, deduplicated view of discoverable OS payloads
// consumed by the boot policy engine and the management API.
type Catalog interface {
	// Scan rebuilds the catalog view from the configured source roots and
	// the registry. It never mutates the registry.
	Scan(ctx context.Context) ([]OSEntry, error)

	// Register records an installed OS in the registry.
	Register(name, path string, sizeMB int64) error

	// Unregister removes an OS from the registry.
	Unregister(name string) error

	// FindDefault returns the catalog entry matching name, if present.
	FindDefault(ctx context.Context, name string) (*OSEntry, bool)
}
