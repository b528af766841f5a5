// Package capability implements the node's remote-invocable command surface:
// a registry of named capabilities, each owning a disjoint set of commands,
// plus the four built-in capabilities (system, canvas, screen, camera).
package capability

import (
	"context"
	"fmt"
	"log/slog"

	"nodelink/internal/domain"
	"nodelink/internal/infra/tracer"
)

// Handler is a single capability: a named category owning a fixed list of
// commands. Execute must never let a provider failure escape — every request
// gets exactly one response.
type Handler interface {
	Category() string
	Commands() []string
	CanHandle(command string) bool
	Execute(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse
}

// commandFunc executes one command.
type commandFunc func(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse

// base provides the shared command-map dispatch for capability handlers.
// The map is built once at construction and immutable thereafter.
type base struct {
	category string
	commands []string
	funcs    map[string]commandFunc
	logger   *slog.Logger
}

func newBase(category string, logger *slog.Logger) base {
	return base{
		category: category,
		funcs:    make(map[string]commandFunc),
		logger:   logger,
	}
}

// register adds a command to the handler's declared list. Construction-time
// only; not safe for concurrent use.
func (b *base) register(command string, fn commandFunc) {
	b.commands = append(b.commands, command)
	b.funcs[command] = fn
}

func (b *base) Category() string { return b.category }

// Commands returns the declared command list in registration order.
func (b *base) Commands() []string {
	out := make([]string, len(b.commands))
	copy(out, b.commands)
	return out
}

func (b *base) CanHandle(command string) bool {
	_, ok := b.funcs[command]
	return ok
}

// Execute dispatches req to the owning command func. Commands outside the
// declared list produce an error response, not a panic — the registry is
// trusted but not relied upon for routing correctness.
func (b *base) Execute(ctx context.Context, req domain.InvokeRequest) (resp domain.InvokeResponse) {
	fn, ok := b.funcs[req.Command]
	if !ok {
		return domain.ErrResponse(req, "Unknown command: "+req.Command)
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("capability panic", "command", req.Command, "panic", r)
			resp = domain.ErrResponse(req, fmt.Sprintf("%s failed: %v", req.Command, r))
		}
	}()
	return fn(ctx, req)
}

// Registry routes inbound commands to the owning capability. Command names
// are globally unique across all registered capabilities; Register enforces
// this at startup.
type Registry struct {
	handlers  []Handler
	byCommand map[string]Handler
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byCommand: make(map[string]Handler),
		logger:    logger,
	}
}

// Register adds a capability. It fails if any of the capability's commands
// is already claimed by a previously registered capability.
func (r *Registry) Register(h Handler) error {
	for _, cmd := range h.Commands() {
		if owner, ok := r.byCommand[cmd]; ok {
			return domain.NewDomainError("Registry.Register", domain.ErrCommandClaimed,
				fmt.Sprintf("%s claimed by both %s and %s", cmd, owner.Category(), h.Category()))
		}
	}
	r.handlers = append(r.handlers, h)
	for _, cmd := range h.Commands() {
		r.byCommand[cmd] = h
	}
	r.logger.Debug("capability registered", "category", h.Category(), "commands", len(h.Commands()))
	return nil
}

// Categories returns the registered capability names in registration order.
func (r *Registry) Categories() []string {
	out := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h.Category())
	}
	return out
}

// Commands returns the flattened command list across all capabilities,
// in registration order.
func (r *Registry) Commands() []string {
	var out []string
	for _, h := range r.handlers {
		out = append(out, h.Commands()...)
	}
	return out
}

// Dispatch routes req to the owning capability and returns its response.
// Unclaimed commands yield an error response.
func (r *Registry) Dispatch(ctx context.Context, req domain.InvokeRequest) domain.InvokeResponse {
	ctx, span := tracer.StartSpan(ctx, "capability.dispatch")
	span.SetAttributes(tracer.StringAttr("command", req.Command))
	defer span.End()

	h, ok := r.byCommand[req.Command]
	if !ok {
		resp := domain.ErrResponse(req, "Unknown command: "+req.Command)
		span.SetAttributes(tracer.StringAttr("outcome", "unclaimed"))
		return resp
	}

	resp := h.Execute(ctx, req)
	if resp.OK {
		tracer.SetOK(span)
	} else {
		span.SetAttributes(tracer.StringAttr("error", resp.Error))
	}
	return resp
}
