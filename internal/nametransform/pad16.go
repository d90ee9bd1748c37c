package nametransform

import (
	"bytes"
	"crypto/aes"
	"fmt"
)

// pad16 appends PKCS#7 padding up to the next multiple of aes.BlockSize.
// Aligned input gets a whole extra block, so there is always at least one
// padding byte to strip.
func pad16(plain []byte) []byte {
	n := aes.BlockSize - len(plain)%aes.BlockSize
	out := make([]byte, 0, len(plain)+n)
	out = append(out, plain...)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unPad16 strips the padding added by pad16. The padded name must contain
// at least one byte of payload.
func unPad16(padded []byte) ([]byte, error) {
	l := len(padded)
	if l == 0 || l%aes.BlockSize != 0 {
		return nil, fmt.Errorf("bad padded length %d", l)
	}
	n := int(padded[l-1])
	if n == 0 || n > aes.BlockSize || n >= l {
		return nil, fmt.Errorf("bad padding length %d for %d bytes", n, l)
	}
	if !bytes.Equal(padded[l-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return nil, fmt.Errorf("inconsistent padding bytes")
	}
	return padded[:l-n], nil
}
