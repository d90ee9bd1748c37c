// Package configfile reads and writes aesfs.conf and does the key
// wrapping.
package configfile

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/jmastr/aesfs/internal/cryptocore"
	"github.com/jmastr/aesfs/internal/exitcodes"
	"github.com/jmastr/aesfs/internal/tlog"
)

const (
	// ConfDefaultName is the default configuration file name.
	// The dot "." is not used in our base64 alphabet, hence
	// we can never clash with an encrypted file.
	ConfDefaultName = "aesfs.conf"
	// wrappedKeyLen is the length of ConfFile.EncryptedKey:
	// wrap salt || nonce || tag || encrypted master key
	wrappedKeyLen = cryptocore.SaltLen + cryptocore.Overhead + cryptocore.KeyLen
)

var (
	// ErrWrongPassword is returned when the master key cannot be unwrapped.
	// A corrupt config file gives the same error.
	ErrWrongPassword = errors.New("password incorrect")
	// ErrPasswordMismatch means the password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrPasswordEmpty means an empty password was supplied for a new volume.
	ErrPasswordEmpty = errors.New("password is empty")
)

// ConfFile is the content of a config file.
type ConfFile struct {
	// Creator is the aesfs version string.
	// This only documents the config file for humans who look at it.
	Creator string `json:"creator,omitempty"`
	// EncryptedKey holds the master key, wrapped using a key derived
	// from the password
	EncryptedKey []byte `json:"masterkey"`
	// FilenameSalt is fed into the key deriver together with the master key
	// to get the filename encryption key
	FilenameSalt []byte `json:"rand_salt"`
	// ChunkSize is the plaintext block size. Zero means "ask statfs".
	ChunkSize uint64 `json:"chunk_size,omitempty"`
	// Filename is the name of the config file. Not exported to JSON.
	filename string
}

// Load loads and parses the config file at "filename". The master key stays
// wrapped, use DecryptMasterKey to get it.
func Load(filename string) (*ConfFile, error) {
	var cf ConfFile
	cf.filename = filename

	// Read from disk
	js, err := os.ReadFile(filename)
	if err != nil {
		tlog.Warn.Printf("Load %s: %v", filename, err)
		return nil, exitcodes.Wrap(err, exitcodes.OpenConf)
	}
	if len(js) == 0 {
		return nil, exitcodes.Errorf(exitcodes.LoadConf, "Config file %q is empty", filename)
	}

	// Unmarshal
	err = json.Unmarshal(js, &cf)
	if err != nil {
		tlog.Warn.Printf("Failed to unmarshal config file")
		return nil, exitcodes.Wrap(err, exitcodes.LoadConf)
	}

	if err := cf.Validate(); err != nil {
		return nil, exitcodes.Wrap(err, exitcodes.LoadConf)
	}
	return &cf, nil
}

// DecryptMasterKey decrypts the master key using the password.
// Both a wrong password and a damaged key blob give ErrWrongPassword.
func (cf *ConfFile) DecryptMasterKey(password []byte) (masterkey []byte, err error) {
	if len(cf.EncryptedKey) != wrappedKeyLen {
		tlog.Debug.Printf("DecryptMasterKey: wrapped key has %d bytes, want %d", len(cf.EncryptedKey), wrappedKeyLen)
		return nil, exitcodes.Wrap(ErrWrongPassword, exitcodes.PasswordIncorrect)
	}
	salt := cf.EncryptedKey[:cryptocore.SaltLen]
	wrapKey, err := cryptocore.DeriveKey(password, salt, cryptocore.KeyLen)
	if err != nil {
		return nil, err
	}
	aead := cryptocore.New(wrapKey)
	defer aead.Wipe()
	for i := range wrapKey {
		wrapKey[i] = 0
	}
	masterkey, err = aead.Open(cf.EncryptedKey[cryptocore.SaltLen:], nil)
	if err != nil {
		tlog.Debug.Printf("failed to unlock master key: %v", err)
		return nil, exitcodes.Wrap(ErrWrongPassword, exitcodes.PasswordIncorrect)
	}
	return masterkey, nil
}

// EncryptKey wraps "key" using a key derived from "password" and a fresh
// salt, and stores the result in cf.EncryptedKey.
func (cf *ConfFile) EncryptKey(key []byte, password []byte) error {
	salt, err := cryptocore.RandBytes(cryptocore.SaltLen)
	if err != nil {
		return err
	}
	wrapKey, err := cryptocore.DeriveKey(password, salt, cryptocore.KeyLen)
	if err != nil {
		return err
	}
	aead := cryptocore.New(wrapKey)
	defer aead.Wipe()
	for i := range wrapKey {
		wrapKey[i] = 0
	}
	wrapped, err := aead.Seal(key, nil)
	if err != nil {
		return err
	}
	cf.EncryptedKey = append(salt, wrapped...)
	return nil
}

// WriteFile writes out the config in JSON format to file "filename.tmp"
// then renames over "filename".
// This way a password change atomically replaces the file.
func (cf *ConfFile) WriteFile() error {
	if err := cf.Validate(); err != nil {
		return err
	}
	tmp := cf.filename + ".tmp"
	// 0400 permissions: aesfs.conf should be kept secret and never be written to.
	fd, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0400)
	if err != nil {
		return err
	}
	js, err := json.MarshalIndent(cf, "", "\t")
	if err != nil {
		fd.Close()
		return err
	}
	// For convenience for the user, add a newline at the end.
	js = append(js, '\n')
	_, err = fd.Write(js)
	if err != nil {
		fd.Close()
		return err
	}
	err = fd.Sync()
	if err != nil {
		fd.Close()
		return err
	}
	err = fd.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp, cf.filename)
}

// Filename returns the path the config was loaded from or will be written
// to.
func (cf *ConfFile) Filename() string {
	return cf.filename
}
