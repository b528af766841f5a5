package capability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"nodelink/internal/domain"
)

// Canvas argument defaults.
const (
	defaultCanvasWidth    = 800
	defaultCanvasHeight   = 600
	defaultCanvasTitle    = "Canvas"
	defaultSnapshotFormat = "png"
	defaultSnapshotWidth  = 1200
	defaultSnapshotQual   = 80
)

// CanvasEvents are fire-and-forget hooks raised toward the UI layer.
// Nil hooks are skipped; the commands still succeed immediately.
type CanvasEvents struct {
	Present  func(domain.PresentOptions)
	Hide     func()
	Navigate func(url string)
}

// Canvas implements the "canvas" capability. Present/hide/navigate are
// asynchronous events; eval, snapshot, and the a2ui commands require a bound
// rendering surface and fail with "Canvas not available" without one.
type Canvas struct {
	base
	events CanvasEvents

	mu      sync.RWMutex
	surface domain.CanvasSurface
}

// NewCanvas creates the canvas capability. The surface is bound later by
// the UI via BindSurface.
func NewCanvas(events CanvasEvents, logger *slog.Logger) *Canvas {
	c := &Canvas{
		base:   newBase("canvas", logger),
		events: events,
	}
	c.register("canvas.present", c.execPresent)
	c.register("canvas.hide", c.execHide)
	c.register("canvas.navigate", c.execNavigate)
	c.register("canvas.eval", c.execEval)
	c.register("canvas.snapshot", c.execSnapshot)
	c.register("canvas.a2ui.push", c.execA2UIPush)
	c.register("canvas.a2ui.reset", c.execA2UIReset)
	return c
}

// BindSurface attaches (or detaches, with nil) the UI rendering surface.
func (c *Canvas) BindSurface(s domain.CanvasSurface) {
	c.mu.Lock()
	c.surface = s
	c.mu.Unlock()
}

func (c *Canvas) boundSurface() domain.CanvasSurface {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.surface
}

func (c *Canvas) execPresent(_ context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	opts := domain.PresentOptions{
		URL:         StringArg(req.Args, "url", ""),
		HTML:        StringArg(req.Args, "html", ""),
		Width:       IntArg(req.Args, "width", defaultCanvasWidth),
		Height:      IntArg(req.Args, "height", defaultCanvasHeight),
		X:           IntArg(req.Args, "x", -1),
		Y:           IntArg(req.Args, "y", -1),
		Title:       StringArg(req.Args, "title", defaultCanvasTitle),
		AlwaysOnTop: BoolArg(req.Args, "alwaysOnTop", false),
	}
	// When both url and html are given, url wins.
	if opts.URL != "" {
		opts.HTML = ""
	}

	if c.events.Present != nil {
		c.events.Present(opts)
	}
	// Success is immediate; the UI surface renders asynchronously.
	return domain.OKResponse(req, map[string]any{"presented": true})
}

func (c *Canvas) execHide(_ context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	if c.events.Hide != nil {
		c.events.Hide()
	}
	return domain.OKResponse(req, map[string]any{"hidden": true})
}

func (c *Canvas) execNavigate(_ context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	url := StringArg(req.Args, "url", "")
	if url == "" {
		return domain.ErrResponse(req, "Missing url parameter")
	}
	if c.events.Navigate != nil {
		c.events.Navigate(url)
	}
	return domain.OKResponse(req, map[string]any{"navigated": true})
}

// evalScript extracts the script argument. Three key spellings are accepted
// for client compatibility.
func evalScript(args map[string]any) string {
	for _, key := range []string{"script", "javaScript", "javascript"} {
		if v := StringArg(args, key, ""); v != "" {
			return v
		}
	}
	return ""
}

func (c *Canvas) execEval(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	surface := c.boundSurface()
	if surface == nil {
		return domain.ErrResponse(req, "Canvas not available")
	}
	script := evalScript(req.Args)
	if script == "" {
		return domain.ErrResponse(req, "Missing script parameter")
	}

	result, err := surface.Eval(ctx, script)
	if err != nil {
		return domain.ErrResponse(req, fmt.Sprintf("Eval failed: %s", err))
	}
	return domain.OKResponse(req, map[string]any{"result": result})
}

func (c *Canvas) execSnapshot(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	surface := c.boundSurface()
	if surface == nil {
		return domain.ErrResponse(req, "Canvas not available")
	}
	format := StringArg(req.Args, "format", defaultSnapshotFormat)
	maxWidth := IntArg(req.Args, "maxWidth", defaultSnapshotWidth)
	quality := IntArg(req.Args, "quality", defaultSnapshotQual)

	b64, err := surface.Snapshot(ctx, format, maxWidth, quality)
	if err != nil {
		return domain.ErrResponse(req, fmt.Sprintf("Snapshot failed: %s", err))
	}
	return domain.OKResponse(req, map[string]any{"format": format, "base64": b64})
}

func (c *Canvas) execA2UIPush(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	surface := c.boundSurface()
	if surface == nil {
		return domain.ErrResponse(req, "Canvas not available")
	}

	jsonl := StringArg(req.Args, "jsonl", "")
	if jsonl == "" {
		path := StringArg(req.Args, "jsonlPath", "")
		if path == "" {
			return domain.ErrResponse(req, "Missing jsonl or jsonlPath parameter")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.ErrResponse(req, fmt.Sprintf("Read jsonlPath failed: %s", err))
		}
		jsonl = string(data)
	}

	pushed := 0
	for _, line := range strings.Split(jsonl, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := surface.PushA2UI(ctx, line); err != nil {
			return domain.ErrResponse(req, fmt.Sprintf("Push failed: %s", err))
		}
		pushed++
	}
	c.logger.Debug("a2ui lines pushed", "count", pushed)
	return domain.OKResponse(req, map[string]any{"pushed": true, "lines": pushed})
}

func (c *Canvas) execA2UIReset(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	surface := c.boundSurface()
	if surface == nil {
		return domain.ErrResponse(req, "Canvas not available")
	}
	if err := surface.ResetA2UI(ctx); err != nil {
		return domain.ErrResponse(req, fmt.Sprintf("Reset failed: %s", err))
	}
	return domain.OKResponse(req, map[string]any{"reset": true})
}
