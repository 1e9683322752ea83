// Package atrest contains primitives for encrypting a cached identity store at rest:
// KEK derivation from a caller secret, DEK wrapping and per-row AEAD.
package atrest

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/and161185/fedicache/internal/errs"
)

// Key and salt sizes in bytes.
const (
	DEKLen  = 32
	KEKLen  = 32
	SaltLen = 16
)

// KDFParams tunes Argon2id.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultKDF matches interactive-unlock cost.
var DefaultKDF = KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 1}

// RandomBytes returns n bytes from the system CSPRNG, for salts and data keys.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}

// DeriveKEK derives a KEK from the store secret and kekSalt using Argon2id.
func DeriveKEK(secret, kekSalt []byte, p KDFParams) []byte {
	return argon2.IDKey(secret, kekSalt, p.Time, p.MemoryKiB, p.Threads, KEKLen)
}

// keyAAD binds a wrapped data key to its purpose.
var keyAAD = []byte("fedicache data key v1")

var errShortBlob = errors.New("sealed blob too short")

// seal encrypts plaintext under key with a random nonce prepended.
func seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := RandomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// open reverses seal.
func open(key, blob, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < aead.NonceSize()+aead.Overhead() {
		return nil, errShortBlob
	}
	n := aead.NonceSize()
	return aead.Open(nil, blob[:n], blob[n:], aad)
}

// WrapKey seals the data key of a store under its KEK.
func WrapKey(kek, dek []byte) ([]byte, error) {
	if len(dek) != DEKLen {
		return nil, fmt.Errorf("data key must be %d bytes", DEKLen)
	}
	return seal(kek, dek, keyAAD)
}

// UnwrapKey recovers the data key. A KEK derived from the wrong secret fails with errs.ErrBadSecret.
func UnwrapKey(kek, wrapped []byte) ([]byte, error) {
	dek, err := open(kek, wrapped, keyAAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrBadSecret, err)
	}
	if len(dek) != DEKLen {
		return nil, fmt.Errorf("%w: data key has %d bytes", errs.ErrStoreCorrupted, len(dek))
	}
	return dek, nil
}

// Sealer encrypts rows of one identity store. Each row gets its own key
// (HKDF over table and id) and is bound to identity||table||id as AAD,
// so a ciphertext cannot be replayed into another row or another store.
type Sealer struct {
	dek      []byte
	identity []byte
}

// NewSealer returns a sealer for the store of identity.
func NewSealer(dek []byte, identity string) (*Sealer, error) {
	if len(dek) != DEKLen {
		return nil, errors.New("dek must be 32 bytes")
	}
	return &Sealer{dek: append([]byte(nil), dek...), identity: []byte(identity)}, nil
}

func (s *Sealer) rowKey(table, id string) ([]byte, error) {
	r := hkdf.New(sha256.New, s.dek, nil, rowInfo(table, id))
	key := make([]byte, DEKLen)
	_, err := r.Read(key)
	return key, err
}

func rowInfo(table, id string) []byte {
	info := make([]byte, 0, len(table)+len(id)+1)
	info = append(info, table...)
	info = append(info, 0)
	info = append(info, id...)
	return info
}

func (s *Sealer) aad(table, id string) []byte {
	aad := make([]byte, 0, len(s.identity)+len(table)+len(id)+2)
	aad = append(aad, s.identity...)
	aad = append(aad, 0)
	return append(aad, rowInfo(table, id)...)
}

// Seal encrypts plaintext for row (table, id).
func (s *Sealer) Seal(table, id string, plaintext []byte) ([]byte, error) {
	key, err := s.rowKey(table, id)
	if err != nil {
		return nil, err
	}
	return seal(key, plaintext, s.aad(table, id))
}

// Open decrypts a blob sealed for row (table, id).
func (s *Sealer) Open(table, id string, blob []byte) ([]byte, error) {
	key, err := s.rowKey(table, id)
	if err != nil {
		return nil, err
	}
	return open(key, blob, s.aad(table, id))
}
