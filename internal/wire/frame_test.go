package wire

import (
	"encoding/json"
	"testing"
)

func TestNewRequestEnvelope(t *testing.T) {
	frame, err := NewRequest("req-1", MethodConnect, ConnectPayload{ClientID: "c", DeviceID: "d"})
	if err != nil {
		t.Fatal(err)
	}
	if frame.Type != FrameTypeRequest || frame.ID != "req-1" || frame.Method != MethodConnect {
		t.Errorf("frame = %+v", frame)
	}

	var payload ConnectPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.ClientID != "c" || payload.DeviceID != "d" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestConnectPayloadFieldNames(t *testing.T) {
	raw, err := json.Marshal(ConnectPayload{
		ClientID:   "cli",
		DeviceID:   "dev",
		PublicKey:  "pk",
		Nonce:      "n",
		SignedAtMs: 123,
		Signature:  "sig",
	})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"clientId", "deviceId", "publicKey", "nonce", "signedAtMs", "signature"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing wire key %q in %v", key, m)
		}
	}
	if _, ok := m["token"]; ok {
		t.Error("empty token must be omitted")
	}
}

func TestNewResponseEchoesID(t *testing.T) {
	frame, err := NewResponse("abc", map[string]any{"ok": true})
	if err != nil {
		t.Fatal(err)
	}
	if frame.Type != FrameTypeResponse || frame.ID != "abc" || frame.Method != "" {
		t.Errorf("frame = %+v", frame)
	}
}
