// Package nodeclient owns the node side of the gateway connection: the
// signed connect handshake, pairing state, capability registration, and
// concurrent dispatch of inbound invoke requests.
package nodeclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"nodelink/internal/capability"
	"nodelink/internal/domain"
	"nodelink/internal/identity"
	"nodelink/internal/wire"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	sendQueueSize    = 64

	defaultInvokePerSec = 32
	defaultInvokeBurst  = 64
)

// Config holds the node client's connection settings.
type Config struct {
	URL          string
	ClientID     string
	DisplayName  string
	Platform     string
	Version      string
	ConnectToken string // one-time token from the gateway operator
	Permissions  map[string]bool

	// Inbound invoke admission; zero values use the defaults.
	InvokePerSec float64
	InvokeBurst  int
}

// InvokeRecorder persists dispatched invoke outcomes. May be nil.
type InvokeRecorder interface {
	RecordInvoke(ctx context.Context, req domain.InvokeRequest, resp domain.InvokeResponse) error
}

// StatusListener observes connection/pairing changes. Listeners must not
// block; they are called from the client's own processing path.
type StatusListener func(domain.NodeStatus)

// Client is a single-connection node client. Run handles one connection
// lifecycle and returns on disconnect; it never retries internally —
// reconnection is the caller's responsibility.
type Client struct {
	cfg      Config
	identity *identity.Store
	registry *capability.Registry
	recorder InvokeRecorder
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu        sync.Mutex
	status    domain.NodeStatus
	listeners []StatusListener
}

// New creates a node client. recorder may be nil.
func New(cfg Config, ids *identity.Store, registry *capability.Registry, recorder InvokeRecorder, logger *slog.Logger) *Client {
	perSec := cfg.InvokePerSec
	if perSec <= 0 {
		perSec = defaultInvokePerSec
	}
	burst := cfg.InvokeBurst
	if burst <= 0 {
		burst = defaultInvokeBurst
	}
	return &Client{
		cfg:      cfg,
		identity: ids,
		registry: registry,
		recorder: recorder,
		limiter:  rate.NewLimiter(rate.Limit(perSec), burst),
		logger:   logger,
		status:   domain.NodeStatus{Connection: domain.ConnStateDisconnected, Pairing: domain.PairingUnknown},
	}
}

// OnStatusChange registers a status listener. Register before Run.
func (c *Client) OnStatusChange(fn StatusListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Status returns the current connection/pairing snapshot.
func (c *Client) Status() domain.NodeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) setStatus(conn domain.ConnectionState, pairing domain.PairingState, detail string) {
	c.mu.Lock()
	changed := c.status.Connection != conn || c.status.Pairing != pairing
	c.status = domain.NodeStatus{Connection: conn, Pairing: pairing, Detail: detail}
	status := c.status
	listeners := make([]StatusListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(status)
	}
}

// conn bundles per-connection state: the socket, the outbound queue, and
// the done latch that stops the write loop.
type conn struct {
	ws        *websocket.Conn
	sendCh    chan wire.Frame
	done      chan struct{}
	closeOnce sync.Once
}

func (cc *conn) close() {
	cc.closeOnce.Do(func() { close(cc.done) })
}

// Run performs one connection lifecycle: dial, authenticate, register,
// then serve inbound invoke requests until the connection drops or ctx is
// cancelled. It returns nil on clean shutdown via ctx, or the terminal
// error otherwise. No internal reconnection.
func (c *Client) Run(ctx context.Context) error {
	pairing := c.Status().Pairing
	c.setStatus(domain.ConnStateConnecting, pairing, "")

	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	ws, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	cancel()
	if err != nil {
		c.setStatus(domain.ConnStateError, pairing, "dial failed")
		return domain.NewDomainError("nodeclient.Run", domain.ErrGatewayUnreachable, err.Error())
	}

	cc := &conn{
		ws:     ws,
		sendCh: make(chan wire.Frame, sendQueueSize),
		done:   make(chan struct{}),
	}
	defer func() {
		cc.close()
		ws.Close(websocket.StatusNormalClosure, "")
	}()

	result, err := c.handshake(ctx, ws)
	if err != nil {
		c.setStatus(domain.ConnStateError, pairing, "handshake failed")
		return err
	}

	switch result.Pairing {
	case "rejected":
		c.setStatus(domain.ConnStateDisconnected, domain.PairingRejected, result.Message)
		return domain.NewDomainError("nodeclient.Run", domain.ErrPairingRejected, result.Message)
	case "pending":
		// Stay connected; the gateway pushes a pairing event on approval.
		c.setStatus(domain.ConnStateConnected, domain.PairingPending, result.Message)
	default:
		if result.DeviceToken != "" {
			c.identity.StoreDeviceToken(result.DeviceToken)
		}
		c.setStatus(domain.ConnStateConnected, domain.PairingPaired, "")
		if err := c.sendRegister(ctx, ws); err != nil {
			c.setStatus(domain.ConnStateError, domain.PairingPaired, "register failed")
			return err
		}
	}

	go c.writeLoop(cc)

	err = c.readLoop(ctx, cc)
	if ctx.Err() != nil {
		c.setStatus(domain.ConnStateDisconnected, c.Status().Pairing, "")
		return nil
	}
	c.setStatus(domain.ConnStateDisconnected, c.Status().Pairing, "connection lost")
	return err
}

// handshake sends the signed connect frame and reads the gateway verdict.
func (c *Client) handshake(ctx context.Context, ws *websocket.Conn) (*wire.ConnectResult, error) {
	deviceID, err := c.identity.DeviceID()
	if err != nil {
		return nil, err
	}
	publicKey, err := c.identity.PublicKeyEncoded()
	if err != nil {
		return nil, err
	}

	nonce := uuid.NewString()
	signedAt := time.Now().UnixMilli()
	signature, err := c.identity.SignPayload(nonce, signedAt, c.cfg.ClientID, c.cfg.ConnectToken)
	if err != nil {
		return nil, err
	}

	frame, err := wire.NewRequest(uuid.NewString(), wire.MethodConnect, wire.ConnectPayload{
		ClientID:   c.cfg.ClientID,
		DeviceID:   deviceID,
		PublicKey:  publicKey,
		Nonce:      nonce,
		SignedAtMs: signedAt,
		Signature:  signature,
		Token:      c.cfg.ConnectToken,
		Platform:   c.cfg.Platform,
		Version:    c.cfg.Version,
	})
	if err != nil {
		return nil, domain.WrapOp("nodeclient.handshake", err)
	}

	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	if err := wsjson.Write(hsCtx, ws, frame); err != nil {
		return nil, domain.WrapOp("nodeclient.handshake", err)
	}

	var reply wire.Frame
	if err := wsjson.Read(hsCtx, ws, &reply); err != nil {
		return nil, domain.WrapOp("nodeclient.handshake", err)
	}
	if reply.Error != "" {
		return nil, domain.NewDomainError("nodeclient.handshake", domain.ErrAuthInvalid, reply.Error)
	}

	var result wire.ConnectResult
	if err := json.Unmarshal(reply.Payload, &result); err != nil {
		return nil, domain.WrapOp("nodeclient.handshake", err)
	}
	return &result, nil
}

// sendRegister advertises the capability surface after pairing approval.
func (c *Client) sendRegister(ctx context.Context, ws *websocket.Conn) error {
	frame, err := wire.NewRequest(uuid.NewString(), wire.MethodRegister, wire.RegisterPayload{
		Capabilities: c.registry.Categories(),
		Commands:     c.registry.Commands(),
		Permissions:  c.cfg.Permissions,
		Platform:     c.cfg.Platform,
		DisplayName:  c.cfg.DisplayName,
		Version:      c.cfg.Version,
	})
	if err != nil {
		return domain.WrapOp("nodeclient.register", err)
	}

	regCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(regCtx, ws, frame); err != nil {
		return domain.WrapOp("nodeclient.register", err)
	}
	c.logger.Info("capabilities registered",
		"capabilities", len(c.registry.Categories()),
		"commands", len(c.registry.Commands()))
	return nil
}

// readLoop consumes frames until the connection drops. Invoke dispatch runs
// in its own goroutine per request so one slow capability never stalls the
// next inbound message.
func (c *Client) readLoop(ctx context.Context, cc *conn) error {
	for {
		var frame wire.Frame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return err
		}

		switch {
		case frame.Type == wire.FrameTypeRequest && frame.Method == wire.MethodInvoke:
			var req domain.InvokeRequest
			if err := json.Unmarshal(frame.Payload, &req); err != nil {
				c.logger.Warn("malformed invoke payload", "frame_id", frame.ID, "error", err)
				c.enqueue(cc, errorFrame(frame.ID, req, "Malformed invoke payload"))
				continue
			}
			go c.dispatch(ctx, cc, frame.ID, req)
		case frame.Type == wire.FrameTypeEvent && frame.Method == wire.MethodPairing:
			if err := c.handlePairingEvent(ctx, cc.ws, frame.Payload); err != nil {
				return err
			}
		default:
			c.logger.Debug("ignoring frame", "type", string(frame.Type), "method", frame.Method)
		}
	}
}

// handlePairingEvent resolves a pending pairing.
func (c *Client) handlePairingEvent(ctx context.Context, ws *websocket.Conn, payload json.RawMessage) error {
	var result wire.ConnectResult
	if err := json.Unmarshal(payload, &result); err != nil {
		c.logger.Warn("malformed pairing event", "error", err)
		return nil
	}

	switch result.Pairing {
	case "paired":
		if result.DeviceToken != "" {
			c.identity.StoreDeviceToken(result.DeviceToken)
		}
		c.setStatus(domain.ConnStateConnected, domain.PairingPaired, "")
		return c.sendRegister(ctx, ws)
	case "rejected":
		c.setStatus(domain.ConnStateDisconnected, domain.PairingRejected, result.Message)
		return domain.NewDomainError("nodeclient.pairing", domain.ErrPairingRejected, result.Message)
	default:
		return nil
	}
}

// dispatch routes one invoke request and enqueues exactly one response.
func (c *Client) dispatch(ctx context.Context, cc *conn, frameID string, req domain.InvokeRequest) {
	if err := c.limiter.Wait(ctx); err != nil {
		return // connection is going away
	}

	resp := c.registry.Dispatch(ctx, req)

	if c.recorder != nil {
		if err := c.recorder.RecordInvoke(ctx, req, resp); err != nil {
			c.logger.Warn("record invoke failed", "error", err)
		}
	}

	frame, err := wire.NewResponse(frameID, resp)
	if err != nil {
		c.logger.Error("marshal invoke response", "error", err)
		frame = errorFrame(frameID, req, "Internal encoding error")
	}
	c.enqueue(cc, frame)
}

func (c *Client) enqueue(cc *conn, frame wire.Frame) {
	select {
	case cc.sendCh <- frame:
	case <-cc.done:
	}
}

func (c *Client) writeLoop(cc *conn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				c.logger.Warn("write frame failed", "error", err)
				return
			}
		}
	}
}

// errorFrame builds a response frame carrying an error InvokeResponse.
func errorFrame(frameID string, req domain.InvokeRequest, msg string) wire.Frame {
	resp := domain.ErrResponse(req, msg)
	raw, _ := json.Marshal(resp)
	return wire.Frame{Type: wire.FrameTypeResponse, ID: frameID, Payload: raw}
}

// Backoff computes the caller-side reconnect wait for a given attempt,
// doubling from initial up to maxWait. Attempt counts from 0.
func Backoff(attempt int, initial, maxWait time.Duration) time.Duration {
	wait := initial
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= maxWait {
			return maxWait
		}
	}
	if wait > maxWait {
		return maxWait
	}
	return wait
}
