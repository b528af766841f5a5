package domain

import "context"

// Notification is a system-notify request forwarded to the UI layer.
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Sound    bool   `json:"sound"`
}

// CaptureOptions are the normalized arguments for a screen capture.
type CaptureOptions struct {
	MonitorIndex   int
	Format         string
	MaxWidth       int
	Quality        int
	IncludePointer bool
}

// SnapOptions are the normalized arguments for a camera snapshot.
type SnapOptions struct {
	DeviceID string // empty = system default device
	Format   string
	MaxWidth int
	Quality  int
}

// Capture is the result of a screen capture or camera snapshot.
type Capture struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Base64 string `json:"base64"`
}

// Rect is an absolute pixel rectangle on the virtual desktop.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScreenInfo describes one attached display.
type ScreenInfo struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Primary  bool   `json:"primary"`
	Bounds   Rect   `json:"bounds"`
	WorkArea Rect   `json:"workArea"` // desktop area excluding taskbar
}

// CameraInfo describes one attached camera device.
type CameraInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// ScreenProvider supplies raw capture results for the screen capability.
// Implemented by the UI layer; the core treats it as opaque.
type ScreenProvider interface {
	Capture(ctx context.Context, opts CaptureOptions) (*Capture, error)
	List(ctx context.Context) ([]ScreenInfo, error)
}

// CameraProvider supplies raw snapshot results for the camera capability.
type CameraProvider interface {
	Snap(ctx context.Context, opts SnapOptions) (*Capture, error)
	List(ctx context.Context) ([]CameraInfo, error)
}

// PresentOptions are the normalized arguments for presenting the canvas.
type PresentOptions struct {
	URL         string
	HTML        string // used only when URL is empty
	Width       int
	Height      int
	X           int // -1 = center
	Y           int // -1 = center
	Title       string
	AlwaysOnTop bool
}

// CanvasSurface is the UI rendering surface bound to the canvas capability.
// A nil surface means no handler is bound yet.
type CanvasSurface interface {
	Eval(ctx context.Context, script string) (string, error)
	Snapshot(ctx context.Context, format string, maxWidth, quality int) (string, error)
	PushA2UI(ctx context.Context, jsonl string) error
	ResetA2UI(ctx context.Context) error
}
