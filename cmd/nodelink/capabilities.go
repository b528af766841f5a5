package main

import (
	"log/slog"
	"os/exec"
	"runtime"

	"nodelink/internal/capability"
	"nodelink/internal/domain"
	"nodelink/internal/history"
	"nodelink/internal/infra/config"
)

// buildRegistry assembles the capability surface per config toggles. The
// canvas surface and the screen/camera providers are bound by the UI layer
// at startup; headless builds leave them nil and the commands report
// "not available".
func buildRegistry(cfg *config.Config, hist *history.Store, log *slog.Logger) (*capability.Registry, error) {
	registry := capability.NewRegistry(log)

	if cfg.Capabilities.System {
		var recorder capability.NotificationRecorder
		if hist != nil {
			recorder = hist
		}
		if err := registry.Register(capability.NewSystem(osNotifier(log), recorder, log)); err != nil {
			return nil, err
		}
	}
	if cfg.Capabilities.Canvas {
		canvas := capability.NewCanvas(capability.CanvasEvents{
			Present: func(opts domain.PresentOptions) {
				log.Info("canvas present", "url", opts.URL, "title", opts.Title)
			},
			Hide:     func() { log.Info("canvas hide") },
			Navigate: func(url string) { log.Info("canvas navigate", "url", url) },
		}, log)
		if err := registry.Register(canvas); err != nil {
			return nil, err
		}
	}
	if cfg.Capabilities.Screen {
		if err := registry.Register(capability.NewScreen(nil, log)); err != nil {
			return nil, err
		}
	}
	if cfg.Capabilities.Camera {
		if err := registry.Register(capability.NewCamera(nil, log)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// osNotifier delivers notifications through the host's native notifier when
// one is on PATH, logging otherwise.
func osNotifier(log *slog.Logger) capability.Notifier {
	return func(n domain.Notification) {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "linux":
			if _, err := exec.LookPath("notify-send"); err == nil {
				cmd = exec.Command("notify-send", n.Title, n.Body)
			}
		case "darwin":
			script := `display notification "` + n.Body + `" with title "` + n.Title + `"`
			cmd = exec.Command("osascript", "-e", script)
		}
		if cmd == nil {
			log.Info("notification", "title", n.Title, "body", n.Body)
			return
		}
		if err := cmd.Run(); err != nil {
			log.Warn("native notification failed", "error", err)
		}
	}
}
