package cryptocore

import (
	"crypto/rand"
	"fmt"
)

// RandBytes gets "n" random bytes from the operating system.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read random bytes: %v", ErrCryptoFault, err)
	}
	return b, nil
}
