package domain

// ConnectionState is the coarse connection lifecycle of a node client.
type ConnectionState string

const (
	ConnStateDisconnected ConnectionState = "disconnected"
	ConnStateConnecting   ConnectionState = "connecting"
	ConnStateConnected    ConnectionState = "connected"
	ConnStateError        ConnectionState = "error"
)

// PairingState tracks gateway approval of this device, independent of the
// connection state — a node can be connected while still pending approval.
type PairingState string

const (
	PairingUnknown  PairingState = "unknown"
	PairingPending  PairingState = "pending"
	PairingPaired   PairingState = "paired"
	PairingRejected PairingState = "rejected"
)

// NodeStatus is a combined connection/pairing snapshot exposed to observers.
type NodeStatus struct {
	Connection ConnectionState `json:"connection"`
	Pairing    PairingState    `json:"pairing"`
	Detail     string          `json:"detail,omitempty"`
}

// GatewaySnapshot mirrors gateway-reported state for display. It is owned
// by the gateway client and replaced wholesale on each refresh.
type GatewaySnapshot struct {
	Status   string           `json:"status"`
	Channels []ChannelHealth  `json:"channels,omitempty"`
	Sessions []SessionSummary `json:"sessions,omitempty"`
	Usage    *UsageReport     `json:"usage,omitempty"`
}

// ChannelHealth is the gateway's view of one messaging channel.
type ChannelHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// SessionSummary is a single active gateway session.
type SessionSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Messages int    `json:"messages,omitempty"`
}

// UsageReport is the gateway's aggregate usage counters.
type UsageReport struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	Requests     int64 `json:"requests"`
}
