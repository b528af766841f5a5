// Package identity manages the node's device identity: an Ed25519 signing
// keypair persisted on disk, a device identifier derived from the public key,
// and the gateway-issued device token.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nodelink/internal/domain"
)

const (
	recordFileName = "device.json"
	algorithm      = "Ed25519"
)

// record is the on-disk identity file. It is rewritten wholesale whenever
// the device token changes.
type record struct {
	PrivateKeyB64    string `json:"privateKeyB64"`
	PublicKeyB64     string `json:"publicKeyB64"`
	DeviceID         string `json:"deviceId"`
	DeviceToken      string `json:"deviceToken,omitempty"`
	Algorithm        string `json:"algorithm"`
	CreatedAtEpochMs int64  `json:"createdAtEpochMs"`
	KeySaltHex       string `json:"keySaltHex,omitempty"` // set when the private key is encrypted at rest
}

// Store owns the device keypair. Private key material never leaves the
// store except as the output of a signing operation.
type Store struct {
	mu          sync.Mutex
	dir         string
	passphrase  string
	logger      *slog.Logger
	priv        ed25519.PrivateKey
	pub         ed25519.PublicKey
	deviceID    string
	deviceToken string
	createdAtMs int64
	initialized bool
}

// Option configures a Store.
type Option func(*Store)

// WithPassphrase enables at-rest encryption of the private key using an
// argon2id-derived AES-256-GCM key.
func WithPassphrase(passphrase string) Option {
	return func(s *Store) { s.passphrase = passphrase }
}

// NewStore creates a Store rooted at dir. Call Initialize before use.
func NewStore(dir string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{dir: dir, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the persisted keypair, or generates a fresh one when the
// file is absent or unreadable. A corrupt file never fails initialization;
// it triggers silent regeneration (callers wanting to detect a forced new
// identity must diff DeviceID before/after).
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if rec, err := s.load(); err == nil {
		s.adopt(rec)
		s.initialized = true
		s.logger.Debug("identity loaded", "device_id", s.deviceID)
		return nil
	} else if !os.IsNotExist(err) {
		s.logger.Warn("identity file unusable, generating new identity", "error", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.WrapOp("identity.Initialize", err)
	}
	s.priv = priv
	s.pub = pub
	s.deviceID = DeriveDeviceID(pub)
	s.deviceToken = ""
	s.createdAtMs = time.Now().UnixMilli()
	s.initialized = true

	if err := s.persist(); err != nil {
		// Identity stays usable in memory for this session.
		s.logger.Error("persist identity failed", "error", err)
	}
	s.logger.Info("generated new device identity", "device_id", s.deviceID)
	return nil
}

// DeviceID returns the stable device identifier: lowercase hex
// sha256(publicKey), 64 characters.
func (s *Store) DeviceID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", domain.NewDomainError("identity.DeviceID", domain.ErrIdentityNotInitialized, "")
	}
	return s.deviceID, nil
}

// PublicKeyEncoded returns the base64 public key as stored on disk.
func (s *Store) PublicKeyEncoded() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", domain.NewDomainError("identity.PublicKeyEncoded", domain.ErrIdentityNotInitialized, "")
	}
	return base64.StdEncoding.EncodeToString(s.pub), nil
}

// DeviceToken returns the gateway-issued device token, empty if none.
func (s *Store) DeviceToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceToken
}

// BuildSignInput produces the canonical 9-field pipe-delimited payload that
// SignPayload signs. The two empty placeholders after the second "node" are
// the reserved role and scopes fields and must stay present even when empty.
func BuildSignInput(deviceID, clientID string, signedAtMs int64, authToken, nonce string) string {
	return fmt.Sprintf("v2|%s|%s|node|node||%d|%s|%s", deviceID, clientID, signedAtMs, authToken, nonce)
}

// SignPayload signs the canonical connect payload and returns an unpadded
// URL-safe base64 signature. Deterministic for identical inputs. authToken
// is the gateway's one-time connection token, never the device token.
func (s *Store) SignPayload(nonce string, signedAtMs int64, clientID, authToken string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", domain.NewDomainError("identity.SignPayload", domain.ErrIdentityNotInitialized, "")
	}
	input := BuildSignInput(s.deviceID, clientID, signedAtMs, authToken, nonce)
	sig := ed25519.Sign(s.priv, []byte(input))
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// StoreDeviceToken persists a gateway-issued device token, preserving all
// other fields. Best-effort: failures are logged, never returned, because
// the token stays usable in memory for the current session.
func (s *Store) StoreDeviceToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceToken = token
	if !s.initialized {
		return
	}
	if err := s.persist(); err != nil {
		s.logger.Error("persist device token failed", "error", err)
	}
}

// DeriveDeviceID computes the device identifier for a public key.
func DeriveDeviceID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

func (s *Store) path() string {
	return filepath.Join(s.dir, recordFileName)
}

// load reads and validates the on-disk record. Callers hold s.mu.
func (s *Store) load() (*record, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse identity record: %w", err)
	}
	if rec.Algorithm != algorithm {
		return nil, fmt.Errorf("unsupported algorithm %q", rec.Algorithm)
	}

	privRaw, err := base64.StdEncoding.DecodeString(rec.PrivateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if rec.KeySaltHex != "" {
		if s.passphrase == "" {
			return nil, fmt.Errorf("identity record is encrypted but no passphrase configured")
		}
		salt, err := hex.DecodeString(rec.KeySaltHex)
		if err != nil {
			return nil, fmt.Errorf("decode key salt: %w", err)
		}
		privRaw, err = decryptKey(privRaw, s.passphrase, salt)
		if err != nil {
			return nil, fmt.Errorf("decrypt private key: %w", err)
		}
	}
	if len(privRaw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key size %d, want %d", len(privRaw), ed25519.PrivateKeySize)
	}

	pubRaw, err := base64.StdEncoding.DecodeString(rec.PublicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(pubRaw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key size %d, want %d", len(pubRaw), ed25519.PublicKeySize)
	}

	// The device id is a one-way function of the public key; a mismatch
	// means the record was tampered with or corrupted.
	if derived := DeriveDeviceID(pubRaw); rec.DeviceID != derived {
		return nil, fmt.Errorf("device id mismatch")
	}

	rec.PrivateKeyB64 = base64.StdEncoding.EncodeToString(privRaw)
	return &rec, nil
}

// adopt installs a validated record into the store. Callers hold s.mu.
func (s *Store) adopt(rec *record) {
	privRaw, _ := base64.StdEncoding.DecodeString(rec.PrivateKeyB64)
	pubRaw, _ := base64.StdEncoding.DecodeString(rec.PublicKeyB64)
	s.priv = ed25519.PrivateKey(privRaw)
	s.pub = ed25519.PublicKey(pubRaw)
	s.deviceID = rec.DeviceID
	s.deviceToken = rec.DeviceToken
	s.createdAtMs = rec.CreatedAtEpochMs
}

// persist rewrites the record file wholesale via a temp-file rename.
// Callers hold s.mu.
func (s *Store) persist() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}

	privOut := []byte(s.priv)
	saltHex := ""
	if s.passphrase != "" {
		salt, err := newSalt()
		if err != nil {
			return err
		}
		privOut, err = encryptKey(privOut, s.passphrase, salt)
		if err != nil {
			return fmt.Errorf("encrypt private key: %w", err)
		}
		saltHex = hex.EncodeToString(salt)
	}

	rec := record{
		PrivateKeyB64:    base64.StdEncoding.EncodeToString(privOut),
		PublicKeyB64:     base64.StdEncoding.EncodeToString(s.pub),
		DeviceID:         s.deviceID,
		DeviceToken:      s.deviceToken,
		Algorithm:        algorithm,
		CreatedAtEpochMs: s.createdAtMs,
		KeySaltHex:       saltHex,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity record: %w", err)
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write identity record: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("replace identity record: %w", err)
	}
	return nil
}
