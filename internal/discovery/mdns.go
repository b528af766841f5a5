//go:build mdns

package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_nodelink-gw._tcp"
	mdnsDomain      = "local."
	mdnsScanTimeout = 5 * time.Second
)

// MDNSFinder browses for gateway instances via mDNS/DNS-SD.
type MDNSFinder struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewMDNSFinder creates an MDNSFinder. A timeout of zero uses the default.
func NewMDNSFinder(timeout time.Duration, logger *slog.Logger) *MDNSFinder {
	if timeout <= 0 {
		timeout = mdnsScanTimeout
	}
	return &MDNSFinder{timeout: timeout, logger: logger}
}

// Find browses the local network for gateways until the scan timeout elapses.
func (f *MDNSFinder) Find(ctx context.Context) ([]Gateway, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	var found []Gateway
	var wg sync.WaitGroup

	scanCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			gw, ok := entryToGateway(entry)
			if !ok {
				continue
			}
			mu.Lock()
			found = append(found, gw)
			mu.Unlock()
			f.logger.Debug("mdns discovered gateway", "name", gw.Name, "url", gw.URL)
		}
	}()

	if err := resolver.Browse(scanCtx, mdnsServiceType, mdnsDomain, entries); err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-scanCtx.Done()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	result := make([]Gateway, len(found))
	copy(result, found)
	return result, nil
}

func entryToGateway(entry *zeroconf.ServiceEntry) (Gateway, bool) {
	var host string
	if len(entry.AddrIPv4) > 0 {
		host = fmt.Sprintf("%s:%d", entry.AddrIPv4[0], entry.Port)
	} else if len(entry.AddrIPv6) > 0 {
		host = fmt.Sprintf("[%s]:%d", entry.AddrIPv6[0], entry.Port)
	} else {
		return Gateway{}, false
	}

	meta := parseTXTRecords(entry.Text)
	scheme := "ws"
	if meta["tls"] == "1" {
		scheme = "wss"
	}
	path := meta["path"]
	if path == "" {
		path = "/ws"
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return Gateway{
		Name: entry.ServiceRecord.Instance,
		URL:  fmt.Sprintf("%s://%s%s", scheme, host, path),
	}, true
}

func parseTXTRecords(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		parts := strings.SplitN(t, "=", 2)
		if len(parts) == 2 {
			m[parts[0]] = parts[1]
		}
	}
	return m
}
