package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nodelink/internal/infra/config"
)

func TestOpenIdentityLoggerOutlivesCall(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "node.log")
	idDir := filepath.Join(dir, "identity")

	cfg := config.Default()
	cfg.Identity.Dir = idDir
	cfg.Logger.Output = logPath

	ids, closer, err := openIdentity(cfg)
	if err != nil {
		t.Fatalf("openIdentity: %v", err)
	}

	// Force a persist failure after openIdentity has returned: the store
	// must still be able to report it through its logger.
	if err := os.RemoveAll(idDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(idDir, []byte("not a directory"), 0600); err != nil {
		t.Fatal(err)
	}
	ids.StoreDeviceToken("tok-1")
	if ids.DeviceToken() != "tok-1" {
		t.Errorf("device token = %q, want tok-1", ids.DeviceToken())
	}

	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "persist device token failed") {
		t.Errorf("log output missing post-return store log line:\n%s", data)
	}
}

func TestConfigPathDefault(t *testing.T) {
	if got := configPath(); got != "nodelink.yaml" {
		t.Errorf("configPath() = %q, want nodelink.yaml", got)
	}
}
