//go:build mdns

package discovery

import (
	"io"
	"log/slog"
	"testing"

	"github.com/grandcat/zeroconf"
)

func mdnsTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMDNSFinderCreation(t *testing.T) {
	f := NewMDNSFinder(0, mdnsTestLogger())
	if f == nil {
		t.Fatal("expected non-nil finder")
	}
	if f.timeout != mdnsScanTimeout {
		t.Errorf("timeout = %v, want default %v", f.timeout, mdnsScanTimeout)
	}
}

func TestEntryToGateway(t *testing.T) {
	entry := zeroconf.NewServiceEntry("home-gateway", mdnsServiceType, mdnsDomain)
	entry.Port = 18789
	entry.Text = []string{"path=/gw", "tls=1"}
	entry.AddrIPv4 = append(entry.AddrIPv4, []byte{192, 168, 1, 10})

	gw, ok := entryToGateway(entry)
	if !ok {
		t.Fatal("entry with an address should yield a gateway")
	}
	if gw.Name != "home-gateway" {
		t.Errorf("Name = %q, want home-gateway", gw.Name)
	}
	if gw.URL != "wss://192.168.1.10:18789/gw" {
		t.Errorf("URL = %q", gw.URL)
	}
}

func TestEntryToGatewayDefaults(t *testing.T) {
	entry := zeroconf.NewServiceEntry("gw", mdnsServiceType, mdnsDomain)
	entry.Port = 8080
	entry.AddrIPv4 = append(entry.AddrIPv4, []byte{10, 0, 0, 2})

	gw, ok := entryToGateway(entry)
	if !ok {
		t.Fatal("expected gateway")
	}
	if gw.URL != "ws://10.0.0.2:8080/ws" {
		t.Errorf("URL = %q, want default ws scheme and /ws path", gw.URL)
	}
}

func TestEntryToGatewayNoAddress(t *testing.T) {
	entry := zeroconf.NewServiceEntry("gw", mdnsServiceType, mdnsDomain)
	entry.Port = 8080
	if _, ok := entryToGateway(entry); ok {
		t.Error("entry without addresses must be skipped")
	}
}

func TestParseTXTRecords(t *testing.T) {
	m := parseTXTRecords([]string{"a=1", "b=x=y", "malformed"})
	if m["a"] != "1" || m["b"] != "x=y" {
		t.Errorf("parsed = %v", m)
	}
	if _, ok := m["malformed"]; ok {
		t.Error("malformed record must be dropped")
	}
}
