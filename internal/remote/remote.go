// Package remote declares the contract a registry HTTP push/pull client
// would implement. No concrete Client ships: pushing to and fetching from
// a remote registry is out of core scope (spec.md §1). Nothing in this
// module calls Client: internal/resolver accepts a remote-primary mode but
// resolves from local sources only, the same as in its other modes.
package remote

import (
	"context"
	"io"
)

// Client fetches and publishes package versions against a remote registry.
// No implementation is provided in this module.
type Client interface {
	// Fetch retrieves the file contents of name@version from the remote
	// registry.
	Fetch(ctx context.Context, name, version string) (io.ReadCloser, error)

	// Push publishes a locally-built version's files to the remote
	// registry.
	Push(ctx context.Context, name, version string, files io.Reader) error
}
