package cryptocore

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

// "New" should panic on any key not 32 bytes long
func TestNewPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("The code did not panic")
		}
	}()

	key := make([]byte, 16)
	New(key)
}

func TestEncryptDecrypt(t *testing.T) {
	a := New(make([]byte, KeyLen))
	aData := []byte("chunk 7")
	for _, l := range []int{0, 1, 15, 16, 17, 4096} {
		plain := bytes.Repeat([]byte{0xaa}, l)
		nonce, tag, ciphertext, err := a.Encrypt(plain, aData)
		if err != nil {
			t.Fatal(err)
		}
		if len(nonce) != IVLen || len(tag) != AuthTagLen || len(ciphertext) != l {
			t.Fatalf("l=%d: wrong lengths %d %d %d", l, len(nonce), len(tag), len(ciphertext))
		}
		plain2, err := a.Decrypt(nonce, tag, ciphertext, aData)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(plain, plain2) {
			t.Errorf("l=%d: round-trip mismatch", l)
		}
	}
}

// Two encryptions of the same plaintext must not produce the same nonce
func TestFreshNonce(t *testing.T) {
	a := New(make([]byte, KeyLen))
	n1, _, c1, _ := a.Encrypt([]byte("hello"), nil)
	n2, _, c2, _ := a.Encrypt([]byte("hello"), nil)
	if bytes.Equal(n1, n2) || bytes.Equal(c1, c2) {
		t.Error("nonce reuse")
	}
}

// Flipping any single bit of the sealed message must fail authentication
func TestTamper(t *testing.T) {
	a := New(make([]byte, KeyLen))
	framed, err := a.Seal([]byte("attack at dawn"), []byte{1})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(framed)*8; i++ {
		c := append([]byte{}, framed...)
		c[i/8] ^= 1 << uint(i%8)
		_, err := a.Open(c, []byte{1})
		if !errors.Is(err, ErrAuth) {
			t.Fatalf("bit %d: expected ErrAuth, got %v", i, err)
		}
	}
	// Wrong additional data
	if _, err := a.Open(framed, []byte{2}); !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
	// Truncated message
	if _, err := a.Open(framed[:Overhead-1], []byte{1}); !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestSealLayout(t *testing.T) {
	a := New(make([]byte, KeyLen))
	plain := []byte("0123456789")
	framed, err := a.Seal(plain, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(framed) != Overhead+len(plain) {
		t.Fatalf("wrong length %d", len(framed))
	}
	plain2, err := a.Decrypt(framed[:IVLen], framed[IVLen:Overhead], framed[Overhead:], nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, plain2) {
		t.Error("mismatch")
	}
}

func TestWipe(t *testing.T) {
	key := bytes.Repeat([]byte{0x55}, KeyLen)
	a := New(key)
	a.Wipe()
	if !bytes.Equal(a.key, make([]byte, KeyLen)) {
		t.Error("key was not wiped")
	}
	if _, err := a.Seal([]byte("x"), nil); !errors.Is(err, ErrCryptoFault) {
		t.Errorf("expected ErrCryptoFault, got %v", err)
	}
	// The caller's copy is not touched
	if key[0] != 0x55 {
		t.Error("caller's key was modified")
	}
}

func TestDeriveKey(t *testing.T) {
	testCases := []struct {
		password string
		salt     []byte
		length   int
		want     string
	}{
		{"test", []byte("0123456789abcdef"), 32, "ff7bf38711f7e44b3eceef7b361ec641df463daa7537f70ab61dfd64b2d1cec9"},
		{"", make([]byte, 16), 16, "b0699717775aeb345d5fb5954a02b4df"},
	}
	for _, tc := range testCases {
		k, err := DeriveKey([]byte(tc.password), tc.salt, tc.length)
		if err != nil {
			t.Fatal(err)
		}
		if hex.EncodeToString(k) != tc.want {
			t.Errorf("password=%q: got %x, want %s", tc.password, k, tc.want)
		}
		// Deterministic
		k2, _ := DeriveKey([]byte(tc.password), tc.salt, tc.length)
		if !bytes.Equal(k, k2) {
			t.Error("not deterministic")
		}
	}
	if _, err := DeriveKey([]byte("x"), nil, 0); err == nil {
		t.Error("length 0 should be rejected")
	}
}

func TestRandBytes(t *testing.T) {
	b1, err := RandBytes(16)
	if err != nil {
		t.Fatal(err)
	}
	b2, _ := RandBytes(16)
	if len(b1) != 16 || bytes.Equal(b1, b2) {
		t.Error("RandBytes is broken")
	}
}
