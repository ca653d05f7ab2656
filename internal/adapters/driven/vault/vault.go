// Package vault encrypts data source credentials at rest.
//
// A credential map is serialised to RFC 8785 canonical JSON and sealed with
// AES-256-GCM. The key is derived from the configured master secret with
// HKDF-SHA256, so the secret itself never touches the cipher.
//
// Blob layout:
//
//	version (1 byte) || nonce (12 bytes) || ciphertext || tag (16 bytes)
//
// The version byte is also bound as additional authenticated data.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/hkdf"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

const (
	// blobVersion identifies the layout and key derivation above.
	blobVersion byte = 1

	keySize = 32

	// MinSecretLength is the shortest master secret accepted.
	MinSecretLength = 16
)

var (
	hkdfSalt = []byte("sercha-ingest-vault")
	hkdfInfo = []byte("credential-map aes-256-gcm v1")
)

// ErrSecretTooShort is returned by New for secrets under MinSecretLength bytes.
var ErrSecretTooShort = errors.New("vault secret too short")

// Ensure Vault implements the interface.
var _ driven.Vault = (*Vault)(nil)

// Vault seals and opens credential maps. Safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
	rand io.Reader
}

// New derives the vault key from secret.
func New(secret []byte) (*Vault, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrSecretTooShort, MinSecretLength)
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, hkdfSalt, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Vault{aead: gcm, rand: rand.Reader}, nil
}

// Encrypt seals creds. A nil map is sealed as an empty one.
func (v *Vault) Encrypt(creds domain.CredentialMap) ([]byte, error) {
	if creds == nil {
		creds = domain.CredentialMap{}
	}
	plaintext, err := canonical(creds)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", domain.ErrCredential, err)
	}

	nonceSize := v.aead.NonceSize()
	blob := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+v.aead.Overhead())
	blob[0] = blobVersion
	if _, err := io.ReadFull(v.rand, blob[1:]); err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %w", domain.ErrCredential, err)
	}

	return v.aead.Seal(blob, blob[1:], plaintext, blob[:1]), nil
}

// Decrypt opens blob. Any failure is wrapped in domain.ErrCredential and no
// partial map is returned.
func (v *Vault) Decrypt(blob []byte) (domain.CredentialMap, error) {
	nonceSize := v.aead.NonceSize()
	switch {
	case len(blob) == 0:
		return nil, fmt.Errorf("%w: empty blob", domain.ErrCredential)
	case blob[0] != blobVersion:
		return nil, fmt.Errorf("%w: unknown blob version %d", domain.ErrCredential, blob[0])
	case len(blob) < 1+nonceSize+v.aead.Overhead():
		return nil, fmt.Errorf("%w: truncated blob", domain.ErrCredential)
	}

	nonce := blob[1 : 1+nonceSize]
	plaintext, err := v.aead.Open(nil, nonce, blob[1+nonceSize:], blob[:1])
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: authentication failed", domain.ErrCredential)
	}

	var creds domain.CredentialMap
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", domain.ErrCredential, err)
	}
	if creds == nil {
		creds = domain.CredentialMap{}
	}
	return creds, nil
}

// Merge opens blob, applies updates on top and seals the result.
func (v *Vault) Merge(blob []byte, updates domain.CredentialMap) ([]byte, error) {
	existing, err := v.Decrypt(blob)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return v.Encrypt(existing.Merge(updates))
}

// canonical renders creds as RFC 8785 JSON so equal maps seal equal plaintext.
// Keys and values must be valid UTF-8; JSON cannot carry other bytes intact.
func canonical(creds domain.CredentialMap) ([]byte, error) {
	for k, val := range creds {
		if !utf8.ValidString(k) {
			return nil, fmt.Errorf("key %q is not valid UTF-8", k)
		}
		if !utf8.ValidString(val) {
			return nil, fmt.Errorf("value of %q is not valid UTF-8", k)
		}
	}
	raw, err := json.Marshal(map[string]string(creds))
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}
