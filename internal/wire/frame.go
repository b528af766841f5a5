// Package wire defines the JSON frame dialect spoken between a node and the
// gateway over WebSocket. Both client roles (node and status mirror) share it.
package wire

import "encoding/json"

// FrameType identifies the kind of frame on the connection.
type FrameType string

const (
	FrameTypeRequest  FrameType = "request"
	FrameTypeResponse FrameType = "response"
	FrameTypeEvent    FrameType = "event"
)

// Method names used on the node connection.
const (
	MethodConnect  = "connect"
	MethodRegister = "register"
	MethodInvoke   = "invoke"
	MethodPairing  = "pairing" // event: pairing resolution while pending
)

// Method names used on the status-mirror connection.
const (
	MethodStatusGet    = "status.get"
	MethodSessionsList = "sessions.list"
	MethodUsageGet     = "usage.get"
	MethodStatusEvent  = "status" // event: unsolicited status push
)

// Frame is the envelope exchanged over the WebSocket connection.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id,omitempty"`      // request/response correlation ID
	Method  string          `json:"method,omitempty"`  // RPC method name (request/event)
	Payload json.RawMessage `json:"payload,omitempty"` // request params or response result
	Error   string          `json:"error,omitempty"`   // transport-level error (response only)
}

// ConnectPayload is the node's signed handshake.
type ConnectPayload struct {
	ClientID   string `json:"clientId"`
	DeviceID   string `json:"deviceId"`
	PublicKey  string `json:"publicKey"`
	Nonce      string `json:"nonce"`
	SignedAtMs int64  `json:"signedAtMs"`
	Signature  string `json:"signature"`
	Token      string `json:"token,omitempty"` // one-time connect token
	Platform   string `json:"platform,omitempty"`
	Version    string `json:"version,omitempty"`
}

// ConnectResult is the gateway's handshake verdict. Pairing is one of
// "paired", "pending", "rejected".
type ConnectResult struct {
	Pairing     string `json:"pairing"`
	DeviceToken string `json:"deviceToken,omitempty"`
	Message     string `json:"message,omitempty"`
}

// RegisterPayload advertises the node's capability surface after approval.
type RegisterPayload struct {
	Capabilities []string        `json:"capabilities"`
	Commands     []string        `json:"commands"`
	Permissions  map[string]bool `json:"permissions"`
	Platform     string          `json:"platform"`
	DisplayName  string          `json:"displayName"`
	Version      string          `json:"version"`
}

// NewRequest builds a request frame with a marshaled payload.
func NewRequest(id, method string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Payload: raw}, nil
}

// NewResponse builds a response frame echoing the request's correlation ID.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeResponse, ID: id, Payload: raw}, nil
}
