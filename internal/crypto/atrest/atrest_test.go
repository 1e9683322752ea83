package atrest

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"testing"

	"github.com/and161185/fedicache/internal/errs"
)

// light parameters keep tests fast.
var testKDF = KDFParams{Time: 1, MemoryKiB: 1024, Threads: 1}

func TestRandomBytes_LengthUniq(t *testing.T) {
	t.Parallel()
	const n = 48
	a, err := RandomBytes(n)
	if err != nil {
		t.Fatalf("Rand: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := RandomBytes(n)
	if bytes.Equal(a, b) {
		t.Fatalf("Rand produced equal slices")
	}
}

func TestDeriveKEK_DeterministicAndSaltDependent(t *testing.T) {
	t.Parallel()
	secret := []byte("keychain-secret")
	k1 := DeriveKEK(secret, []byte("salt-1"), testKDF)
	k2 := DeriveKEK(secret, []byte("salt-1"), testKDF)
	if subtle.ConstantTimeCompare(k1, k2) != 1 {
		t.Fatalf("DeriveKEK not deterministic")
	}
	if subtle.ConstantTimeCompare(k1, DeriveKEK(secret, []byte("salt-2"), testKDF)) != 0 {
		t.Fatalf("DeriveKEK must change with salt")
	}
	if subtle.ConstantTimeCompare(k1, DeriveKEK([]byte("other"), []byte("salt-1"), testKDF)) != 0 {
		t.Fatalf("DeriveKEK must change with secret")
	}
}

func TestWrapUnwrapKey(t *testing.T) {
	t.Parallel()
	kek := DeriveKEK([]byte("pw"), []byte("salt"), testKDF)
	dek, _ := RandomBytes(DEKLen)

	wrapped, err := WrapKey(kek, dek)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	out, err := UnwrapKey(kek, wrapped)
	if err != nil {
		t.Fatalf("UnwrapKey: %v", err)
	}
	if !bytes.Equal(out, dek) {
		t.Fatalf("unwrap != original")
	}

	bad := DeriveKEK([]byte("pw2"), []byte("salt"), testKDF)
	if _, err := UnwrapKey(bad, wrapped); !errors.Is(err, errs.ErrBadSecret) {
		t.Fatalf("UnwrapKey with wrong kek: err=%v, want ErrBadSecret", err)
	}
	if _, err := UnwrapKey(kek, wrapped[:4]); err == nil {
		t.Fatalf("UnwrapKey must reject short input")
	}
	if _, err := WrapKey(kek, []byte("short")); err == nil {
		t.Fatalf("WrapKey must reject a key of the wrong size")
	}
}

func TestSealer_Roundtrip(t *testing.T) {
	t.Parallel()
	dek, _ := RandomBytes(DEKLen)
	s, err := NewSealer(dek, "identity-1")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	pt := []byte(`{"id":"109","content":"hello"}`)
	blob, err := s.Seal("statuses", "109", pt)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(blob, []byte("hello")) {
		t.Fatalf("ciphertext leaks plaintext")
	}
	got, err := s.Open("statuses", "109", blob)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatalf("roundtrip mismatch")
	}
}

func TestSealer_RejectsRowOrStoreMismatch(t *testing.T) {
	t.Parallel()
	dek, _ := RandomBytes(DEKLen)
	s, _ := NewSealer(dek, "identity-1")
	blob, _ := s.Seal("statuses", "1", []byte("payload"))

	if _, err := s.Open("statuses", "2", blob); err == nil {
		t.Fatalf("expected error on id mismatch")
	}
	if _, err := s.Open("accounts", "1", blob); err == nil {
		t.Fatalf("expected error on table mismatch")
	}
	other, _ := NewSealer(dek, "identity-2")
	if _, err := other.Open("statuses", "1", blob); err == nil {
		t.Fatalf("expected error on identity mismatch")
	}
	dek2, _ := RandomBytes(DEKLen)
	wrongKey, _ := NewSealer(dek2, "identity-1")
	if _, err := wrongKey.Open("statuses", "1", blob); err == nil {
		t.Fatalf("expected error on wrong key")
	}
	if _, err := s.Open("statuses", "1", []byte("short")); err == nil {
		t.Fatalf("expected error on short blob")
	}
}

func TestNewSealer_RejectsBadKey(t *testing.T) {
	if _, err := NewSealer([]byte("short"), "id"); err == nil {
		t.Fatalf("want error for short dek")
	}
}
