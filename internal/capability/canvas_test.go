package capability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nodelink/internal/domain"
)

// fakeSurface records canvas surface calls.
type fakeSurface struct {
	evalScript   string
	evalResult   string
	evalErr      error
	snapFormat   string
	snapWidth    int
	snapQuality  int
	pushedLines  []string
	resets       int
}

func (f *fakeSurface) Eval(_ context.Context, script string) (string, error) {
	f.evalScript = script
	return f.evalResult, f.evalErr
}

func (f *fakeSurface) Snapshot(_ context.Context, format string, maxWidth, quality int) (string, error) {
	f.snapFormat, f.snapWidth, f.snapQuality = format, maxWidth, quality
	return "aGVsbG8=", nil
}

func (f *fakeSurface) PushA2UI(_ context.Context, jsonl string) error {
	f.pushedLines = append(f.pushedLines, jsonl)
	return nil
}

func (f *fakeSurface) ResetA2UI(_ context.Context) error {
	f.resets++
	return nil
}

func TestPresentDefaults(t *testing.T) {
	var got domain.PresentOptions
	c := NewCanvas(CanvasEvents{Present: func(o domain.PresentOptions) { got = o }}, testLogger())

	resp := c.Execute(context.Background(), req("canvas.present", map[string]any{"url": "https://example.com"}))
	if !resp.OK {
		t.Fatalf("resp = %+v", resp)
	}
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("size = %dx%d, want 800x600", got.Width, got.Height)
	}
	if got.X != -1 || got.Y != -1 {
		t.Errorf("position = (%d,%d), want (-1,-1)", got.X, got.Y)
	}
	if got.Title != "Canvas" {
		t.Errorf("title = %q", got.Title)
	}
	if got.AlwaysOnTop {
		t.Error("alwaysOnTop should default to false")
	}
}

func TestPresentURLWinsOverHTML(t *testing.T) {
	var got domain.PresentOptions
	c := NewCanvas(CanvasEvents{Present: func(o domain.PresentOptions) { got = o }}, testLogger())

	c.Execute(context.Background(), req("canvas.present", map[string]any{
		"url":  "https://example.com",
		"html": "<h1>hi</h1>",
	}))
	if got.URL != "https://example.com" || got.HTML != "" {
		t.Errorf("url=%q html=%q, want url to win", got.URL, got.HTML)
	}
}

func TestNavigateMissingURL(t *testing.T) {
	c := NewCanvas(CanvasEvents{}, testLogger())

	resp := c.Execute(context.Background(), req("canvas.navigate", map[string]any{}))
	if resp.OK {
		t.Fatal("expected error")
	}
	if !strings.Contains(strings.ToLower(resp.Error), "url") {
		t.Errorf("error = %q, want mention of url", resp.Error)
	}
}

func TestEvalWithoutSurface(t *testing.T) {
	c := NewCanvas(CanvasEvents{}, testLogger())

	resp := c.Execute(context.Background(), req("canvas.eval", map[string]any{"script": "1+1"}))
	if resp.OK || resp.Error != "Canvas not available" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestEvalScriptKeyAliases(t *testing.T) {
	for _, key := range []string{"script", "javaScript", "javascript"} {
		surface := &fakeSurface{evalResult: "2"}
		c := NewCanvas(CanvasEvents{}, testLogger())
		c.BindSurface(surface)

		resp := c.Execute(context.Background(), req("canvas.eval", map[string]any{key: "1+1"}))
		if !resp.OK {
			t.Errorf("key %q: resp = %+v", key, resp)
		}
		if surface.evalScript != "1+1" {
			t.Errorf("key %q: surface got %q", key, surface.evalScript)
		}
	}
}

func TestEvalSurfaceError(t *testing.T) {
	c := NewCanvas(CanvasEvents{}, testLogger())
	c.BindSurface(&fakeSurface{evalErr: fmt.Errorf("document is null")})

	resp := c.Execute(context.Background(), req("canvas.eval", map[string]any{"script": "x"}))
	if resp.OK || resp.Error != "Eval failed: document is null" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSnapshotDefaults(t *testing.T) {
	surface := &fakeSurface{}
	c := NewCanvas(CanvasEvents{}, testLogger())
	c.BindSurface(surface)

	resp := c.Execute(context.Background(), req("canvas.snapshot", nil))
	if !resp.OK {
		t.Fatalf("resp = %+v", resp)
	}
	if surface.snapFormat != "png" || surface.snapWidth != 1200 || surface.snapQuality != 80 {
		t.Errorf("snapshot args = %q/%d/%d, want png/1200/80",
			surface.snapFormat, surface.snapWidth, surface.snapQuality)
	}
}

func TestA2UIPushInline(t *testing.T) {
	surface := &fakeSurface{}
	c := NewCanvas(CanvasEvents{}, testLogger())
	c.BindSurface(surface)

	resp := c.Execute(context.Background(), req("canvas.a2ui.push", map[string]any{
		"jsonl": `{"type":"text"}`,
	}))
	if !resp.OK {
		t.Fatalf("resp = %+v", resp)
	}
	payload, ok := resp.Payload.(map[string]any)
	if !ok || payload["pushed"] != true {
		t.Errorf("payload = %+v, want pushed:true", resp.Payload)
	}
	if len(surface.pushedLines) != 1 || surface.pushedLines[0] != `{"type":"text"}` {
		t.Errorf("pushed lines = %v, want the jsonl unmodified", surface.pushedLines)
	}
}

func TestA2UIPushFromFileSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ui.jsonl")
	content := "{\"a\":1}\n\n  \n{\"b\":2}\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	surface := &fakeSurface{}
	c := NewCanvas(CanvasEvents{}, testLogger())
	c.BindSurface(surface)

	resp := c.Execute(context.Background(), req("canvas.a2ui.push", map[string]any{"jsonlPath": path}))
	if !resp.OK {
		t.Fatalf("resp = %+v", resp)
	}
	if len(surface.pushedLines) != 2 {
		t.Errorf("pushed %d lines, want 2", len(surface.pushedLines))
	}
}

func TestA2UIPushMissingBoth(t *testing.T) {
	c := NewCanvas(CanvasEvents{}, testLogger())
	c.BindSurface(&fakeSurface{})

	resp := c.Execute(context.Background(), req("canvas.a2ui.push", nil))
	if resp.OK || resp.Error != "Missing jsonl or jsonlPath parameter" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestA2UIResetRequiresSurface(t *testing.T) {
	c := NewCanvas(CanvasEvents{}, testLogger())

	resp := c.Execute(context.Background(), req("canvas.a2ui.reset", nil))
	if resp.OK || resp.Error != "Canvas not available" {
		t.Errorf("resp = %+v", resp)
	}

	surface := &fakeSurface{}
	c.BindSurface(surface)
	resp = c.Execute(context.Background(), req("canvas.a2ui.reset", nil))
	if !resp.OK || surface.resets != 1 {
		t.Errorf("resp = %+v, resets = %d", resp, surface.resets)
	}
}
