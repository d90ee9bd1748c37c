// Package nametransform encrypts and decrypts file names.
//
// Each path segment is padded to the AES block size, encrypted with EME
// (ECB-Mix-ECB) under an all-zero tweak and base64-encoded with "/" replaced
// by "_". This is deterministic: identical names encrypt to identical tokens
// anywhere in the tree, which leaks name equality to whoever can see the
// backing directory. Lookups need it, so we accept that.
package nametransform

import (
	"crypto/aes"
	"encoding/base64"
	"errors"
	"strings"
	"syscall"

	"github.com/rfjakob/eme"

	"github.com/jmastr/aesfs/internal/tlog"
)

const (
	// NameMax is the longest file name we allow. Like ext4, at most 255 bytes.
	NameMax = 255
)

// ErrNameDecode is returned for any encrypted name that cannot be decoded
// back to a valid plaintext name.
var ErrNameDecode = errors.New("undecodable encrypted name")

// NameTransform is used to transform filenames.
type NameTransform struct {
	emeCipher *eme.EMECipher
	// All-zero EME tweak
	zeroIV []byte
}

// New returns a new NameTransform instance using the 32-byte name key "key".
func New(key []byte) *NameTransform {
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	return &NameTransform{
		emeCipher: eme.New(blockCipher),
		zeroIV:    make([]byte, aes.BlockSize),
	}
}

// EncryptName encrypts "plainName" and returns the encoded token.
// Fails with ENAMETOOLONG if the token would exceed NameMax.
func (n *NameTransform) EncryptName(plainName string) (string, error) {
	if err := IsValidName(plainName); err != nil {
		tlog.Debug.Printf("EncryptName %q: invalid name: %v", plainName, err)
		return "", syscall.EINVAL
	}
	bin := pad16([]byte(plainName))
	bin = n.emeCipher.Encrypt(n.zeroIV, bin)
	cipherName := b64Encode(bin)
	if len(cipherName) > NameMax {
		return "", syscall.ENAMETOOLONG
	}
	return cipherName, nil
}

// DecryptName decodes and decrypts the token "cipherName".
// All failures are reported as ErrNameDecode.
func (n *NameTransform) DecryptName(cipherName string) (string, error) {
	bin, err := b64Decode(cipherName)
	if err != nil {
		tlog.Debug.Printf("DecryptName %q: %v", cipherName, err)
		return "", ErrNameDecode
	}
	if len(bin) == 0 {
		tlog.Debug.Printf("DecryptName %q: empty input", cipherName)
		return "", ErrNameDecode
	}
	if len(bin)%aes.BlockSize != 0 {
		tlog.Debug.Printf("DecryptName %q: decoded length %d is not a multiple of 16", cipherName, len(bin))
		return "", ErrNameDecode
	}
	bin = n.emeCipher.Decrypt(n.zeroIV, bin)
	bin, err = unPad16(bin)
	if err != nil {
		tlog.Debug.Printf("DecryptName: unPad16 error detail: %v", err)
		// All padding failures look the same to the caller.
		return "", ErrNameDecode
	}
	plain := string(bin)
	// Make sure we never return a name the kernel cannot handle, even when
	// we read a corrupted (or fuzzed) filesystem.
	if err := IsValidName(plain); err != nil {
		tlog.Debug.Printf("DecryptName: decrypted name is invalid: %v", err)
		return "", ErrNameDecode
	}
	return plain, nil
}

// EncryptPath encrypts each segment of the slash-separated "plainPath".
// Separators and empty segments are kept.
func (n *NameTransform) EncryptPath(plainPath string) (string, error) {
	return n.translatePath(plainPath, n.EncryptName)
}

// DecryptPath is the inverse of EncryptPath.
func (n *NameTransform) DecryptPath(cipherPath string) (string, error) {
	return n.translatePath(cipherPath, n.DecryptName)
}

// translatePath splits the string on "/" and hands the parts to "op".
func (n *NameTransform) translatePath(path string, op func(string) (string, error)) (string, error) {
	// Empty string means root directory
	if path == "" {
		return path, nil
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			// This happens on "/foo/bar/" on the front and on the end.
			continue
		}
		newPart, err := op(part)
		if err != nil {
			return "", err
		}
		parts[i] = newPart
	}
	return strings.Join(parts, "/"), nil
}

// b64Encode is standard base64 with "/" replaced by "_", as "/" is not
// allowed in file names.
func b64Encode(bin []byte) string {
	return strings.ReplaceAll(base64.StdEncoding.EncodeToString(bin), "/", "_")
}

func b64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(s, "_", "/"))
}
