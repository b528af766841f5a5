package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"nodelink/internal/domain"
	"nodelink/internal/gatewayclient"
	"nodelink/internal/history"
	"nodelink/internal/identity"
	"nodelink/internal/infra/config"
	"nodelink/internal/infra/logger"
	"nodelink/internal/infra/tracer"
	"nodelink/internal/nodeclient"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "identity":
		if err := runIdentity(); err != nil {
			fmt.Fprintf(os.Stderr, "identity: %v\n", err)
			os.Exit(1)
		}
	case "discover":
		if err := runDiscover(); err != nil {
			fmt.Fprintf(os.Stderr, "discover: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'nodelink --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`nodelink - Gateway node companion

USAGE:
    nodelink [COMMAND] [FLAGS]

COMMANDS:
    identity    Print this device's identity (id and public key)
    discover    Browse the local network for gateways (mdns builds only)

    (no command) - Connect to the gateway and serve capabilities

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./nodelink.yaml)

CONFIGURATION:
    Config file: ./nodelink.yaml
    Identity and history live under the per-user config directory.

EXAMPLES:
    nodelink                     # Run with nodelink.yaml
    nodelink --config /etc/nodelink.yaml
    nodelink identity            # Show device id for gateway pairing`)
}

func configPath() string {
	for i := 1; i < len(os.Args); i++ {
		switch {
		case os.Args[i] == "--config" && i+1 < len(os.Args):
			return os.Args[i+1]
		case strings.HasPrefix(os.Args[i], "--config="):
			return strings.TrimPrefix(os.Args[i], "--config=")
		}
	}
	return "nodelink.yaml"
}

// openIdentity opens the device identity store from config, applying the
// optional at-rest passphrase. The returned closer outlives the store's
// logger; close it only once the store is no longer used.
func openIdentity(cfg *config.Config) (*identity.Store, func() error, error) {
	dir := cfg.Identity.Dir
	if dir == "" {
		dataDir, err := config.DataDir()
		if err != nil {
			return nil, nil, err
		}
		dir = filepath.Join(dataDir, "identity")
	}

	log, closer, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}

	var opts []identity.Option
	if cfg.Identity.PassphraseEnv != "" {
		if pass := os.Getenv(cfg.Identity.PassphraseEnv); pass != "" {
			opts = append(opts, identity.WithPassphrase(pass))
		}
	}

	ids := identity.NewStore(dir, log, opts...)
	if err := ids.Initialize(); err != nil {
		closer()
		return nil, nil, err
	}
	return ids, closer, nil
}

func runIdentity() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	ids, closer, err := openIdentity(cfg)
	if err != nil {
		return err
	}
	defer closer()

	deviceID, _ := ids.DeviceID()
	publicKey, _ := ids.PublicKeyEncoded()
	fmt.Printf("device id:  %s\n", deviceID)
	fmt.Printf("public key: %s\n", publicKey)
	if ids.DeviceToken() != "" {
		fmt.Println("pairing:    device token present")
	} else {
		fmt.Println("pairing:    not yet paired")
	}
	return nil
}

func runDiscover() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	log, closer, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closer()

	finder := buildGatewayFinder(cfg.Discovery.Timeout, log)
	gateways, err := finder.Find(context.Background())
	if err != nil {
		return err
	}
	if len(gateways) == 0 {
		fmt.Println("no gateways found (mdns builds only; use -tags mdns)")
		return nil
	}
	for _, gw := range gateways {
		fmt.Printf("%s\t%s\n", gw.Name, gw.URL)
	}
	return nil
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Node.Platform == "" {
		cfg.Node.Platform = runtime.GOOS
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Device identity
	dataDir, err := config.DataDir()
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	idDir := cfg.Identity.Dir
	if idDir == "" {
		idDir = filepath.Join(dataDir, "identity")
	}
	var idOpts []identity.Option
	if cfg.Identity.PassphraseEnv != "" {
		if pass := os.Getenv(cfg.Identity.PassphraseEnv); pass != "" {
			idOpts = append(idOpts, identity.WithPassphrase(pass))
		}
	}
	ids := identity.NewStore(idDir, log, idOpts...)
	if err := ids.Initialize(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	deviceID, _ := ids.DeviceID()

	// 4. History
	var hist *history.Store
	if cfg.History.Enabled {
		dbPath := cfg.History.Path
		if dbPath == "" {
			dbPath = filepath.Join(dataDir, "history.db")
		}
		hist, err = history.Open(dbPath, cfg.History.MaxRows)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		defer hist.Close()
	}

	// 5. Capabilities
	registry, err := buildRegistry(cfg, hist, log)
	if err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}

	// 6. Gateway URL (configured or discovered)
	gatewayURL := cfg.Gateway.URL
	if gatewayURL == "" {
		finder := buildGatewayFinder(cfg.Discovery.Timeout, log)
		gateways, err := finder.Find(ctx)
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
		if len(gateways) == 0 {
			return fmt.Errorf("no gateway configured and none discovered")
		}
		gatewayURL = gateways[0].URL
		log.Info("gateway discovered", "name", gateways[0].Name, "url", gatewayURL)
	}

	// 7. Node client
	var recorder nodeclient.InvokeRecorder
	if hist != nil {
		recorder = hist
	}
	node := nodeclient.New(nodeclient.Config{
		URL:          gatewayURL,
		ClientID:     cfg.Node.ClientID,
		DisplayName:  cfg.Node.DisplayName,
		Platform:     cfg.Node.Platform,
		Version:      cfg.Node.Version,
		ConnectToken: cfg.Gateway.ConnectToken,
		Permissions:  cfg.Capabilities.Permissions,
	}, ids, registry, recorder, log)
	var wasConnected atomic.Bool
	node.OnStatusChange(func(s domain.NodeStatus) {
		if s.Connection == domain.ConnStateConnected {
			wasConnected.Store(true)
		}
		log.Info("node status", "connection", string(s.Connection), "pairing", string(s.Pairing), "detail", s.Detail)
	})

	// 8. Gateway status mirror
	mirror := gatewayclient.New(gatewayclient.Config{URL: gatewayURL}, log)
	mirror.OnSnapshot(func(s domain.GatewaySnapshot) {
		log.Debug("gateway snapshot", "status", s.Status, "sessions", len(s.Sessions))
	})

	// 9. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("nodelink starting",
		"device_id", deviceID,
		"gateway", gatewayURL,
		"capabilities", registry.Categories(),
		"history", hist != nil,
	)

	// 10. Mirror connection with its own reconnect cadence
	go func() {
		for attempt := 0; ctx.Err() == nil; attempt++ {
			if err := mirror.Run(ctx); err != nil {
				log.Warn("gateway mirror disconnected", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
			wait := nodeclient.Backoff(attempt, cfg.Reconnect.InitialWait, cfg.Reconnect.MaxWait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
	stopRefresh, err := mirror.StartAutoRefresh(ctx, cfg.Gateway.StatusCron, cfg.Gateway.StatusInterval)
	if err != nil {
		return fmt.Errorf("status refresh: %w", err)
	}
	defer stopRefresh()

	// 11. Node connection loop; pairing rejection is terminal.
	attempt := 0
	for {
		err := node.Run(ctx)
		if ctx.Err() != nil {
			log.Info("nodelink stopping")
			return nil
		}
		if errors.Is(err, domain.ErrPairingRejected) {
			return fmt.Errorf("gateway rejected pairing: %w", err)
		}
		if err != nil {
			log.Warn("node disconnected", "error", err)
		}
		if !cfg.Reconnect.Enabled {
			return err
		}
		if wasConnected.Swap(false) {
			attempt = 0
		}
		if cfg.Reconnect.MaxAttempts > 0 && attempt >= cfg.Reconnect.MaxAttempts {
			return fmt.Errorf("giving up after %d reconnect attempts: %w", attempt, err)
		}

		wait := nodeclient.Backoff(attempt, cfg.Reconnect.InitialWait, cfg.Reconnect.MaxWait)
		attempt++
		log.Info("reconnecting", "attempt", attempt, "wait", wait)
		select {
		case <-ctx.Done():
			log.Info("nodelink stopping")
			return nil
		case <-time.After(wait):
		}
	}
}
