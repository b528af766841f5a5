// Package gatewayclient maintains a read-mostly mirror of gateway state
// (status, sessions, usage) over a second WebSocket connection, separate
// from the node's invoke channel.
package gatewayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sony/gobreaker/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"nodelink/internal/domain"
	"nodelink/internal/wire"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultCBMaxFailures  = 5
	defaultCBTimeout      = 30 * time.Second
)

// Config holds the status-mirror connection settings.
type Config struct {
	URL            string
	RequestTimeout time.Duration
}

// SnapshotListener observes snapshot replacements. Listeners must not block.
type SnapshotListener func(domain.GatewaySnapshot)

// Client mirrors gateway-reported state. Run owns one connection lifecycle;
// Refresh and the auto-refresh schedule issue RPCs over it.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker[json.RawMessage]

	mu        sync.Mutex
	ws        *websocket.Conn
	pending   map[string]chan wire.Frame
	snapshot  domain.GatewaySnapshot
	listeners []SnapshotListener

	writeMu sync.Mutex
}

// New creates a gateway mirror client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	c := &Client{
		cfg:      cfg,
		logger:   logger,
		pending:  make(map[string]chan wire.Frame),
		snapshot: domain.GatewaySnapshot{Status: "unknown"},
	}
	c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "gateway-mirror",
		MaxRequests: 1, // one probe in half-open
		Timeout:     defaultCBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultCBMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

// OnSnapshot registers a listener invoked after each snapshot replacement.
func (c *Client) OnSnapshot(fn SnapshotListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Snapshot returns the latest mirrored state.
func (c *Client) Snapshot() domain.GatewaySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Run dials the gateway and serves the connection until it drops or ctx is
// cancelled. Like the node client it performs no internal retries.
func (c *Client) Run(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	ws, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	cancel()
	if err != nil {
		return domain.NewDomainError("gatewayclient.Run", domain.ErrGatewayUnreachable, err.Error())
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.ws = nil
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		ws.Close(websocket.StatusNormalClosure, "")
	}()

	// Prime the mirror once the read loop below is consuming responses.
	go func() {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("initial refresh failed", "error", err)
		}
	}()

	for {
		var frame wire.Frame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch {
		case frame.Type == wire.FrameTypeResponse:
			c.resolve(frame)
		case frame.Type == wire.FrameTypeEvent && frame.Method == wire.MethodStatusEvent:
			c.applyStatusEvent(frame.Payload)
		default:
			c.logger.Debug("ignoring frame", "type", string(frame.Type), "method", frame.Method)
		}
	}
}

// resolve delivers a response frame to the caller waiting on its ID.
func (c *Client) resolve(frame wire.Frame) {
	c.mu.Lock()
	ch, ok := c.pending[frame.ID]
	if ok {
		delete(c.pending, frame.ID)
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("response with no pending request", "frame_id", frame.ID)
		return
	}
	ch <- frame
}

// applyStatusEvent folds an unsolicited status push into the snapshot.
func (c *Client) applyStatusEvent(payload json.RawMessage) {
	var ev statusResult
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logger.Warn("malformed status event", "error", err)
		return
	}
	c.mu.Lock()
	snap := c.snapshot
	snap.Status = ev.Status
	if ev.Channels != nil {
		snap.Channels = ev.Channels
	}
	c.mu.Unlock()
	c.replaceSnapshot(snap)
}

// call issues one RPC through the circuit breaker and waits for the
// correlated response.
func (c *Client) call(ctx context.Context, method string) (json.RawMessage, error) {
	return c.breaker.Execute(func() (json.RawMessage, error) {
		return c.roundTrip(ctx, method)
	})
}

func (c *Client) roundTrip(ctx context.Context, method string) (json.RawMessage, error) {
	c.mu.Lock()
	ws := c.ws
	if ws == nil {
		c.mu.Unlock()
		return nil, domain.ErrNotConnected
	}
	id := uuid.NewString()
	ch := make(chan wire.Frame, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	cleanup := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	frame := wire.Frame{Type: wire.FrameTypeRequest, ID: id, Method: method}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	c.writeMu.Lock()
	err := wsjson.Write(callCtx, ws, frame)
	c.writeMu.Unlock()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, domain.ErrNotConnected
		}
		if reply.Error != "" {
			return nil, fmt.Errorf("%s: %s", method, reply.Error)
		}
		return reply.Payload, nil
	case <-callCtx.Done():
		cleanup()
		return nil, fmt.Errorf("%s: %w", method, callCtx.Err())
	}
}

// statusResult is the status.get response shape.
type statusResult struct {
	Status   string                 `json:"status"`
	Channels []domain.ChannelHealth `json:"channels,omitempty"`
}

// Refresh pulls status, sessions, and usage and replaces the snapshot.
// The status call must succeed; sessions and usage are best effort.
func (c *Client) Refresh(ctx context.Context) error {
	raw, err := c.call(ctx, wire.MethodStatusGet)
	if err != nil {
		return err
	}
	var status statusResult
	if err := json.Unmarshal(raw, &status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	snap := domain.GatewaySnapshot{
		Status:   status.Status,
		Channels: status.Channels,
	}

	if raw, err := c.call(ctx, wire.MethodSessionsList); err != nil {
		c.logger.Warn("sessions.list failed", "error", err)
	} else {
		var sessions []domain.SessionSummary
		if err := json.Unmarshal(raw, &sessions); err != nil {
			c.logger.Warn("decode sessions", "error", err)
		} else {
			snap.Sessions = sessions
		}
	}

	if raw, err := c.call(ctx, wire.MethodUsageGet); err != nil {
		c.logger.Warn("usage.get failed", "error", err)
	} else {
		var usage domain.UsageReport
		if err := json.Unmarshal(raw, &usage); err != nil {
			c.logger.Warn("decode usage", "error", err)
		} else {
			snap.Usage = &usage
		}
	}

	c.replaceSnapshot(snap)
	return nil
}

func (c *Client) replaceSnapshot(snap domain.GatewaySnapshot) {
	c.mu.Lock()
	c.snapshot = snap
	listeners := make([]SnapshotListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// StartAutoRefresh schedules periodic Refresh calls. spec is a cron
// expression; when empty, interval is used via "@every". The returned stop
// function halts the schedule.
func (c *Client) StartAutoRefresh(ctx context.Context, spec string, interval time.Duration) (stop func(), err error) {
	if spec == "" {
		if interval <= 0 {
			interval = 30 * time.Second
		}
		spec = fmt.Sprintf("@every %s", interval)
	}

	sched := cron.New()
	_, err = sched.AddFunc(spec, func() {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule refresh: %w", err)
	}
	sched.Start()
	return func() { sched.Stop() }, nil
}
