// ABOUTME: Encryption-at-rest wrapper for any Store
// ABOUTME: XChaCha20-Poly1305 with a per-namespace key derived via HKDF-SHA256

package kv

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedInfo = "tatasbox kv sealed v1"

// MinKeyLength is the shortest accepted encryption key, in bytes.
const MinKeyLength = 16

// ErrSealedValue is returned when a stored value cannot be decrypted.
var ErrSealedValue = errors.New("sealed value is corrupt or was written with another key")

// Sealed encrypts values before handing them to the wrapped Store.
// Keys and namespaces are stored in the clear.
type Sealed struct {
	Store
	secret []byte
	aeads  sync.Map // namespace -> cipher.AEAD
}

// NewSealed wraps store. secret should carry at least 32 bytes of entropy.
func NewSealed(store Store, secret []byte) (*Sealed, error) {
	if len(secret) < MinKeyLength {
		return nil, fmt.Errorf("encryption key must be at least %d bytes", MinKeyLength)
	}
	return &Sealed{Store: store, secret: secret}, nil
}

func (s *Sealed) aead(namespace string) (cipher.AEAD, error) {
	if a, ok := s.aeads.Load(namespace); ok {
		return a.(cipher.AEAD), nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, s.secret, []byte(namespace), []byte(sealedInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	actual, _ := s.aeads.LoadOrStore(namespace, a)
	return actual.(cipher.AEAD), nil
}

// additionalData binds a ciphertext to its location so values can't be swapped between keys.
func additionalData(namespace, key string) []byte {
	return []byte(namespace + "\x00" + key)
}

func (s *Sealed) Get(ctx context.Context, namespace, key string) (string, error) {
	raw, err := s.Store.Get(ctx, namespace, key)
	if err != nil {
		return "", err
	}

	a, err := s.aead(namespace)
	if err != nil {
		return "", err
	}

	blob, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(blob) < a.NonceSize() {
		return "", ErrSealedValue
	}

	nonce, ciphertext := blob[:a.NonceSize()], blob[a.NonceSize():]
	plain, err := a.Open(nil, nonce, ciphertext, additionalData(namespace, key))
	if err != nil {
		return "", ErrSealedValue
	}
	return string(plain), nil
}

func (s *Sealed) Set(ctx context.Context, namespace, key, value string) error {
	a, err := s.aead(namespace)
	if err != nil {
		return err
	}

	nonce := make([]byte, a.NonceSize(), a.NonceSize()+len(value)+a.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	blob := a.Seal(nonce, nonce, []byte(value), additionalData(namespace, key))
	return s.Store.Set(ctx, namespace, key, base64.StdEncoding.EncodeToString(blob))
}
