package cryptocore

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the fixed iteration count of DeriveKey.
	PBKDF2Iterations = 2000
	// SaltLen is the length of all salts we generate: the key wrapping salt,
	// the filename salt and the per-file salt in the file header.
	SaltLen = 16
)

// DeriveKey stretches "password" into a "length"-byte key using
// PBKDF2-HMAC-SHA256. The output only depends on the inputs.
func DeriveKey(password []byte, salt []byte, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("DeriveKey: invalid key length %d", length)
	}
	return pbkdf2.Key(password, salt, PBKDF2Iterations, length, sha256.New), nil
}
