package contentenc

// Per-file header
//
// Format: [ "Salt" 16 random bytes ]
//
// The salt is fed into the key deriver together with the master key to get
// the per-file content key.

import (
	"fmt"

	"github.com/jmastr/aesfs/internal/cryptocore"
)

const (
	// HeaderLen is the total header length
	HeaderLen = cryptocore.SaltLen
)

// FileHeader represents the header stored on each file.
type FileHeader struct {
	Salt []byte
}

// Pack serializes the header
func (h *FileHeader) Pack() []byte {
	if len(h.Salt) != HeaderLen {
		panic("FileHeader object not properly initialized")
	}
	buf := make([]byte, HeaderLen)
	copy(buf, h.Salt)
	return buf
}

// ParseHeader parses "buf" into a FileHeader object
func ParseHeader(buf []byte) (*FileHeader, error) {
	if len(buf) != HeaderLen {
		return nil, fmt.Errorf("ParseHeader: invalid length: want %d bytes, got %d", HeaderLen, len(buf))
	}
	salt := make([]byte, HeaderLen)
	copy(salt, buf)
	return &FileHeader{Salt: salt}, nil
}

// RandomHeader creates a new FileHeader object with a random salt
func RandomHeader() (*FileHeader, error) {
	salt, err := cryptocore.RandBytes(HeaderLen)
	if err != nil {
		return nil, err
	}
	return &FileHeader{Salt: salt}, nil
}

// FileKey derives the content key of the file identified by "h".
func FileKey(masterKey []byte, h *FileHeader) (*cryptocore.AEAD, error) {
	key, err := cryptocore.DeriveKey(masterKey, h.Salt, cryptocore.KeyLen)
	if err != nil {
		return nil, err
	}
	aead := cryptocore.New(key)
	for i := range key {
		key[i] = 0
	}
	return aead, nil
}
