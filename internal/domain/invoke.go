package domain

// InvokeRequest is a single command invocation sent by the gateway.
// Args is a loosely typed bag; capabilities decode it defensively.
type InvokeRequest struct {
	ID      string         `json:"id"`
	Command string         `json:"command"`
	Args    map[string]any `json:"args,omitempty"`
}

// InvokeResponse is the single reply produced for an InvokeRequest.
// It always echoes the request ID.
type InvokeResponse struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OKResponse builds a success response for req carrying payload.
func OKResponse(req InvokeRequest, payload any) InvokeResponse {
	return InvokeResponse{ID: req.ID, OK: true, Payload: payload}
}

// ErrResponse builds an error response for req with a human-readable message.
func ErrResponse(req InvokeRequest, msg string) InvokeResponse {
	return InvokeResponse{ID: req.ID, OK: false, Error: msg}
}
