package discovery

import "context"

// NoopFinder is used when mDNS support is not compiled in.
type NoopFinder struct{}

// NewNoopFinder creates a NoopFinder.
func NewNoopFinder() *NoopFinder { return &NoopFinder{} }

// Find returns nil — no discovery available without the mdns build tag.
func (f *NoopFinder) Find(_ context.Context) ([]Gateway, error) {
	return nil, nil
}
