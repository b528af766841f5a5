package capability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"nodelink/internal/domain"
)

// Camera snapshot argument defaults.
const (
	defaultSnapFormat = "jpeg"
	defaultSnapWidth  = 1280
	defaultSnapQual   = 80
)

// cameraDeniedMessage is the distinguished, user-actionable error for
// OS-level camera access denial.
const cameraDeniedMessage = "Camera access denied by the operating system. Allow camera access for this app in your privacy settings and try again."

// Camera implements the "camera" capability.
type Camera struct {
	base
	provider domain.CameraProvider

	// Camera drivers are not reentrant; serialize device access without
	// blocking the transport loop.
	hw sync.Mutex
}

// NewCamera creates the camera capability. provider may be nil.
func NewCamera(provider domain.CameraProvider, logger *slog.Logger) *Camera {
	c := &Camera{
		base:     newBase("camera", logger),
		provider: provider,
	}
	c.register("camera.list", c.execList)
	c.register("camera.snap", c.execSnap)
	return c
}

// NormalizeImageFormat maps requested snapshot formats onto the two
// supported encodings: exactly "png" stays "png", everything else —
// including case variants like "PNG" — falls back to "jpeg".
func NormalizeImageFormat(format string) string {
	if format == "png" {
		return "png"
	}
	return "jpeg"
}

func (c *Camera) execList(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	if c.provider == nil {
		return domain.ErrResponse(req, "Camera list not available")
	}

	c.hw.Lock()
	cameras, err := c.provider.List(ctx)
	c.hw.Unlock()
	if err != nil {
		return domain.ErrResponse(req, fmt.Sprintf("List failed: %s", err))
	}
	return domain.OKResponse(req, map[string]any{"cameras": cameras})
}

func (c *Camera) execSnap(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	if c.provider == nil {
		return domain.ErrResponse(req, "Camera snap not available")
	}

	opts := domain.SnapOptions{
		DeviceID: StringArg(req.Args, "deviceId", ""),
		Format:   NormalizeImageFormat(StringArg(req.Args, "format", defaultSnapFormat)),
		MaxWidth: IntArg(req.Args, "maxWidth", defaultSnapWidth),
		Quality:  IntArg(req.Args, "quality", defaultSnapQual),
	}

	c.hw.Lock()
	capture, err := c.provider.Snap(ctx, opts)
	c.hw.Unlock()
	if err != nil {
		if domain.IsPermissionDenied(err) {
			return domain.ErrResponse(req, cameraDeniedMessage)
		}
		return domain.ErrResponse(req, fmt.Sprintf("Snap failed: %s", err))
	}

	return domain.OKResponse(req, map[string]any{
		"format": capture.Format,
		"width":  capture.Width,
		"height": capture.Height,
		"base64": capture.Base64,
	})
}
