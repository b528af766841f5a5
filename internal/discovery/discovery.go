// Package discovery locates a gateway on the local network when no URL is
// configured.
package discovery

import "context"

// Gateway is one discovered gateway endpoint.
type Gateway struct {
	Name string
	URL  string // ws:// or wss:// endpoint ready to dial
}

// Finder browses the local network for gateways. Implementations return an
// empty slice, not an error, when nothing answers within the timeout.
type Finder interface {
	Find(ctx context.Context) ([]Gateway, error)
}
