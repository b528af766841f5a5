package capability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"nodelink/internal/domain"
)

// Screen capture argument defaults.
const (
	defaultCaptureFormat = "png"
	defaultCaptureWidth  = 1920
	defaultCaptureQual   = 80
)

// Screen implements the "screen" capability.
type Screen struct {
	base
	provider domain.ScreenProvider

	// Serializes display driver access; the shared transport loop is never
	// blocked, only subsequent screen commands queue here.
	hw sync.Mutex
}

// NewScreen creates the screen capability. provider may be nil, in which
// case both commands report themselves unavailable.
func NewScreen(provider domain.ScreenProvider, logger *slog.Logger) *Screen {
	s := &Screen{
		base:     newBase("screen", logger),
		provider: provider,
	}
	s.register("screen.capture", s.execCapture)
	s.register("screen.list", s.execList)
	return s
}

func (s *Screen) execCapture(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	if s.provider == nil {
		return domain.ErrResponse(req, "Screen capture not available")
	}

	// The legacy "monitor" key is honored, but "screenIndex" wins when both
	// are present.
	monitor := IntArg(req.Args, "monitor", 0)
	monitor = IntArg(req.Args, "screenIndex", monitor)

	opts := domain.CaptureOptions{
		MonitorIndex:   monitor,
		Format:         StringArg(req.Args, "format", defaultCaptureFormat),
		MaxWidth:       IntArg(req.Args, "maxWidth", defaultCaptureWidth),
		Quality:        IntArg(req.Args, "quality", defaultCaptureQual),
		IncludePointer: BoolArg(req.Args, "includePointer", true),
	}

	s.hw.Lock()
	capture, err := s.provider.Capture(ctx, opts)
	s.hw.Unlock()
	if err != nil {
		return domain.ErrResponse(req, fmt.Sprintf("Capture failed: %s", err))
	}

	return domain.OKResponse(req, map[string]any{
		"format":  capture.Format,
		"width":   capture.Width,
		"height":  capture.Height,
		"base64":  capture.Base64,
		"dataUri": dataURI(capture.Format, capture.Base64),
	})
}

func (s *Screen) execList(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	if s.provider == nil {
		return domain.ErrResponse(req, "Screen list not available")
	}

	s.hw.Lock()
	screens, err := s.provider.List(ctx)
	s.hw.Unlock()
	if err != nil {
		return domain.ErrResponse(req, fmt.Sprintf("List failed: %s", err))
	}
	return domain.OKResponse(req, map[string]any{"screens": screens})
}

// dataURI builds the convenience data: URI for an encoded image.
func dataURI(format, b64 string) string {
	mime := "image/png"
	if format == "jpeg" || format == "jpg" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, b64)
}
