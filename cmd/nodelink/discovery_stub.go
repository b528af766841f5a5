//go:build !mdns

package main

import (
	"log/slog"
	"time"

	"nodelink/internal/discovery"
)

func buildGatewayFinder(_ time.Duration, _ *slog.Logger) discovery.Finder {
	return discovery.NewNoopFinder()
}
