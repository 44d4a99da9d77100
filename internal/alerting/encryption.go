package alerting

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

var (
	// ErrInvalidKey is returned when the alert encryption key is invalid.
	ErrInvalidKey = errors.New("invalid encryption key")
	// ErrInvalidCiphertext is returned when a sealed alert cannot be parsed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// SealedAlert is the encrypted envelope handed to transport collaborators.
type SealedAlert struct {
	KeyVersion int    `json:"key_version"`
	Ciphertext string `json:"ciphertext"` // base64([nonce][aes-gcm ciphertext])
}

// EncryptorConfig configures outbound alert encryption.
type EncryptorConfig struct {
	Enabled    bool
	MasterKey  []byte // any length; a 32-byte key is derived via SHA-256
	KeyVersion int
}

// Encryptor seals outbound alert payloads with AES-256-GCM. Old keys are
// retained by version so the receiving side can decrypt across rotations.
type Encryptor struct {
	enabled    bool
	key        []byte
	keyVersion int

	mu      sync.RWMutex
	oldKeys map[int][]byte
}

// NewEncryptor creates an Encryptor. With Enabled false it is a no-op
// passthrough and Encrypt must not be called.
func NewEncryptor(cfg EncryptorConfig) (*Encryptor, error) {
	if !cfg.Enabled {
		return &Encryptor{enabled: false}, nil
	}
	if len(cfg.MasterKey) == 0 {
		return nil, fmt.Errorf("%w: master key is required when encryption is enabled", ErrInvalidKey)
	}

	derived := sha256.Sum256(cfg.MasterKey)

	slog.Info("alert encryption enabled",
		"key_version", cfg.KeyVersion,
		"algorithm", "AES-256-GCM",
	)

	return &Encryptor{
		enabled:    true,
		key:        derived[:],
		keyVersion: cfg.KeyVersion,
		oldKeys:    make(map[int][]byte),
	}, nil
}

// Enabled reports whether sealing is active.
func (e *Encryptor) Enabled() bool {
	return e != nil && e.enabled
}

// RotateKey installs a new master key, keeping the previous one for
// decryption of already-sealed alerts.
func (e *Encryptor) RotateKey(masterKey []byte, version int) error {
	if len(masterKey) == 0 {
		return ErrInvalidKey
	}
	derived := sha256.Sum256(masterKey)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.oldKeys[e.keyVersion] = e.key
	e.key = derived[:]
	e.keyVersion = version

	slog.Info("alert encryption key rotated", "key_version", version)
	return nil
}

// Encrypt seals a plaintext alert body.
func (e *Encryptor) Encrypt(plaintext []byte) (SealedAlert, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	gcm, err := newGCM(e.key)
	if err != nil {
		return SealedAlert{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return SealedAlert{}, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return SealedAlert{
		KeyVersion: e.keyVersion,
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// Decrypt opens a sealed alert, selecting the key by version.
func (e *Encryptor) Decrypt(sealed SealedAlert) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64: %v", ErrInvalidCiphertext, err)
	}

	e.mu.RLock()
	key := e.key
	if sealed.KeyVersion != e.keyVersion {
		old, ok := e.oldKeys[sealed.KeyVersion]
		if !ok {
			e.mu.RUnlock()
			return nil, fmt.Errorf("%w: no key for version %d", ErrDecryptionFailed, sealed.KeyVersion)
		}
		key = old
	}
	e.mu.RUnlock()

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
