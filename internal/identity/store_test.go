package identity

import (
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nodelink/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, dir string, opts ...Option) *Store {
	t.Helper()
	s := NewStore(dir, testLogger(), opts...)
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func TestAccessorsBeforeInitialize(t *testing.T) {
	s := NewStore(t.TempDir(), testLogger())

	if _, err := s.DeviceID(); !errors.Is(err, domain.ErrIdentityNotInitialized) {
		t.Errorf("DeviceID error = %v, want ErrIdentityNotInitialized", err)
	}
	if _, err := s.PublicKeyEncoded(); !errors.Is(err, domain.ErrIdentityNotInitialized) {
		t.Errorf("PublicKeyEncoded error = %v", err)
	}
	if _, err := s.SignPayload("n", 1, "c", "t"); !errors.Is(err, domain.ErrIdentityNotInitialized) {
		t.Errorf("SignPayload error = %v", err)
	}
}

func TestDeviceIDShape(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	id, err := s.DeviceID()
	if err != nil {
		t.Fatalf("DeviceID: %v", err)
	}
	if len(id) != 64 {
		t.Errorf("device id length = %d, want 64", len(id))
	}
	if id != strings.ToLower(id) {
		t.Errorf("device id not lowercase: %q", id)
	}
	if _, err := hex.DecodeString(id); err != nil {
		t.Errorf("device id not hex: %v", err)
	}
}

func TestDistinctStoresDistinctIdentities(t *testing.T) {
	a := newTestStore(t, t.TempDir())
	b := newTestStore(t, t.TempDir())

	idA, _ := a.DeviceID()
	idB, _ := b.DeviceID()
	if idA == idB {
		t.Error("two fresh stores produced the same device id")
	}
}

func TestReloadSameLocation(t *testing.T) {
	dir := t.TempDir()
	first := newTestStore(t, dir)
	second := newTestStore(t, dir)

	idA, _ := first.DeviceID()
	idB, _ := second.DeviceID()
	if idA != idB {
		t.Errorf("reloaded device id %q != original %q", idB, idA)
	}

	pubA, _ := first.PublicKeyEncoded()
	pubB, _ := second.PublicKeyEncoded()
	if pubA != pubB {
		t.Error("reloaded public key differs")
	}
}

func TestCorruptFileTriggersRegeneration(t *testing.T) {
	dir := t.TempDir()
	first := newTestStore(t, dir)
	idA, _ := first.DeviceID()

	if err := os.WriteFile(filepath.Join(dir, recordFileName), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	second := newTestStore(t, dir)
	idB, _ := second.DeviceID()
	if idA == idB {
		t.Error("corrupt file should force a new identity")
	}
}

func TestBuildSignInputFieldOrder(t *testing.T) {
	input := BuildSignInput("dev-1", "client-1", 1700000000123, "tok", "nonce-9")
	fields := strings.Split(input, "|")
	want := []string{"v2", "dev-1", "client-1", "node", "node", "", "1700000000123", "tok", "nonce-9"}
	if len(fields) != 9 {
		t.Fatalf("field count = %d, want 9 (input %q)", len(fields), input)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field[%d] = %q, want %q", i, fields[i], want[i])
		}
	}
}

func TestSignPayloadDeterministic(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	sig1, err := s.SignPayload("nonce-1", 1234, "client", "auth")
	if err != nil {
		t.Fatalf("SignPayload: %v", err)
	}
	sig2, _ := s.SignPayload("nonce-1", 1234, "client", "auth")
	if sig1 != sig2 {
		t.Error("identical inputs produced different signatures")
	}

	sig3, _ := s.SignPayload("nonce-2", 1234, "client", "auth")
	if sig1 == sig3 {
		t.Error("changing the nonce did not change the signature")
	}

	if strings.ContainsAny(sig1, "+/=") {
		t.Errorf("signature not unpadded URL-safe base64: %q", sig1)
	}
}

func TestDeviceTokenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	first := newTestStore(t, dir)
	first.StoreDeviceToken("device-token-42")

	second := newTestStore(t, dir)
	if got := second.DeviceToken(); got != "device-token-42" {
		t.Errorf("reloaded token = %q, want device-token-42", got)
	}

	// Token update must preserve the identity.
	idA, _ := first.DeviceID()
	idB, _ := second.DeviceID()
	if idA != idB {
		t.Error("storing a token changed the device id")
	}
}

func TestEncryptedAtRestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	first := newTestStore(t, dir, WithPassphrase("hunter2"))
	idA, _ := first.DeviceID()

	second := newTestStore(t, dir, WithPassphrase("hunter2"))
	idB, _ := second.DeviceID()
	if idA != idB {
		t.Errorf("encrypted reload device id %q != %q", idB, idA)
	}

	sigA, _ := first.SignPayload("n", 7, "c", "t")
	sigB, _ := second.SignPayload("n", 7, "c", "t")
	if sigA != sigB {
		t.Error("reloaded encrypted key signs differently")
	}
}

func TestWrongPassphraseRegenerates(t *testing.T) {
	dir := t.TempDir()
	first := newTestStore(t, dir, WithPassphrase("right"))
	idA, _ := first.DeviceID()

	second := newTestStore(t, dir, WithPassphrase("wrong"))
	idB, _ := second.DeviceID()
	if idA == idB {
		t.Error("wrong passphrase should force regeneration, not reuse the key")
	}
}
