// Package cryptocore contains the low-level crypto primitives: the AES-256-GCM
// AEAD with 128-bit nonces, the password-based key deriver and secure random
// numbers.
package cryptocore

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"sync"
)

const (
	// KeyLen is the cipher key length in bytes. 32 for AES-256.
	KeyLen = 32
	// IVLen is the GCM nonce length in bytes. We use 128-bit nonces instead
	// of the usual 96 bits so random nonces can be used without worrying
	// about collisions.
	IVLen = 16
	// AuthTagLen is the length of a GCM auth tag in bytes.
	AuthTagLen = 16
	// Overhead is the number of bytes Seal adds to the plaintext.
	Overhead = IVLen + AuthTagLen
)

var (
	// ErrAuth is returned when a ciphertext fails authentication, for
	// example because it has been tampered with or the key is wrong.
	ErrAuth = errors.New("message authentication failed")
	// ErrCryptoFault means that a crypto primitive, usually the random
	// number generator, failed.
	ErrCryptoFault = errors.New("crypto primitive failure")
)

// AEAD is AES-256-GCM with 128-bit nonces. The key stays with the object
// until Wipe is called.
type AEAD struct {
	gcm cipher.AEAD
	// Copy of the key so Wipe can overwrite it
	key []byte
	// Protects "gcm" against use after Wipe
	wipeLock sync.RWMutex
}

// New returns a new AEAD object or panics.
func New(key []byte) *AEAD {
	if len(key) != KeyLen {
		panic(fmt.Sprintf("Unsupported key length %d", len(key)))
	}
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(blockCipher, IVLen)
	if err != nil {
		panic(err)
	}
	k := make([]byte, KeyLen)
	copy(k, key)
	return &AEAD{
		gcm: gcm,
		key: k,
	}
}

// Encrypt encrypts "plaintext" under a fresh random nonce and authenticates
// it together with "aData". The three parts are returned separately.
func (a *AEAD) Encrypt(plaintext []byte, aData []byte) (nonce []byte, tag []byte, ciphertext []byte, err error) {
	a.wipeLock.RLock()
	defer a.wipeLock.RUnlock()
	if a.gcm == nil {
		return nil, nil, nil, ErrCryptoFault
	}
	nonce, err = RandBytes(IVLen)
	if err != nil {
		return nil, nil, nil, err
	}
	// Go's GCM appends the tag to the ciphertext
	sealed := a.gcm.Seal(nil, nonce, plaintext, aData)
	ciphertext = sealed[:len(plaintext)]
	tag = sealed[len(plaintext):]
	return nonce, tag, ciphertext, nil
}

// Decrypt verifies and decrypts "ciphertext". On any authentication failure,
// ErrAuth is returned and no plaintext is released.
func (a *AEAD) Decrypt(nonce []byte, tag []byte, ciphertext []byte, aData []byte) ([]byte, error) {
	a.wipeLock.RLock()
	defer a.wipeLock.RUnlock()
	if a.gcm == nil {
		return nil, ErrCryptoFault
	}
	if len(nonce) != IVLen || len(tag) != AuthTagLen {
		return nil, ErrAuth
	}
	buf := make([]byte, 0, len(ciphertext)+AuthTagLen)
	buf = append(buf, ciphertext...)
	buf = append(buf, tag...)
	plaintext, err := a.gcm.Open(nil, nonce, buf, aData)
	if err != nil {
		return nil, ErrAuth
	}
	return plaintext, nil
}

// Seal encrypts "plaintext" and returns it in the on-disk framing
// nonce || tag || ciphertext.
func (a *AEAD) Seal(plaintext []byte, aData []byte) ([]byte, error) {
	nonce, tag, ciphertext, err := a.Encrypt(plaintext, aData)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, Overhead+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// Open is the inverse of Seal.
func (a *AEAD) Open(framed []byte, aData []byte) ([]byte, error) {
	if len(framed) < Overhead {
		return nil, ErrAuth
	}
	nonce := framed[:IVLen]
	tag := framed[IVLen:Overhead]
	return a.Decrypt(nonce, tag, framed[Overhead:], aData)
}

// Wipe tries to erase the key from memory. Encrypt and Decrypt fail with
// ErrCryptoFault afterwards.
//
// The expanded key schedule inside crypto/aes is out of our reach, so this
// is best effort only.
func (a *AEAD) Wipe() {
	a.wipeLock.Lock()
	defer a.wipeLock.Unlock()
	for i := range a.key {
		a.key[i] = 0
	}
	a.gcm = nil
}
