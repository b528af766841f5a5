//go:build mdns

package main

import (
	"log/slog"
	"time"

	"nodelink/internal/discovery"
)

func buildGatewayFinder(timeout time.Duration, logger *slog.Logger) discovery.Finder {
	return discovery.NewMDNSFinder(timeout, logger)
}
