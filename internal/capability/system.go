package capability

import (
	"context"
	"log/slog"

	"nodelink/internal/domain"
)

// defaultNotifyTitle is the product name used when the gateway omits a title.
const defaultNotifyTitle = "Nodelink"

// Notifier delivers a notification to the UI layer as a toast. Delivery is
// fire-and-forget; failures are not surfaced back to the gateway.
type Notifier func(domain.Notification)

// NotificationRecorder persists notifications for the history view.
// Implemented by history.Store; nil disables recording.
type NotificationRecorder interface {
	RecordNotification(ctx context.Context, n domain.Notification) error
}

// System implements the "system" capability.
type System struct {
	base
	notify   Notifier
	recorder NotificationRecorder
}

// NewSystem creates the system capability. notify may be nil (notifications
// are dropped), recorder may be nil (history disabled).
func NewSystem(notify Notifier, recorder NotificationRecorder, logger *slog.Logger) *System {
	s := &System{
		base:     newBase("system", logger),
		notify:   notify,
		recorder: recorder,
	}
	s.register("system.notify", s.execNotify)
	return s
}

func (s *System) execNotify(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	n := domain.Notification{
		Title:    StringArg(req.Args, "title", defaultNotifyTitle),
		Body:     StringArg(req.Args, "body", ""),
		Subtitle: StringArg(req.Args, "subtitle", ""),
		Sound:    BoolArg(req.Args, "sound", true),
	}

	if s.notify != nil {
		s.notify(n)
	}
	if s.recorder != nil {
		if err := s.recorder.RecordNotification(ctx, n); err != nil {
			s.logger.Warn("record notification failed", "error", err)
		}
	}

	// Always succeeds; delivery failure is invisible to the gateway.
	return domain.OKResponse(req, map[string]any{"shown": true})
}
