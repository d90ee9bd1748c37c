package configfile

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jmastr/aesfs/internal/contentenc"
	"github.com/jmastr/aesfs/internal/cryptocore"
	"github.com/jmastr/aesfs/internal/exitcodes"
	"github.com/jmastr/aesfs/internal/syscallcompat"
	"github.com/jmastr/aesfs/internal/tlog"
)

// ErrSetup means CIPHERDIR has no config file but is not empty either, so
// we neither unlock it nor create a new volume in it.
var ErrSetup = errors.New("CIPHERDIR is not empty but has no config file")

// State is the result of Probe.
type State int

const (
	// Uninitialized - CIPHERDIR is empty, a new volume can be created.
	Uninitialized State = iota
	// Locked - CIPHERDIR contains a volume, the password is needed.
	Locked
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Locked:
		return "locked"
	}
	return "unknown"
}

// Vault holds the unwrapped key material of an unlocked volume.
type Vault struct {
	// MasterKey is the 32-byte volume key. Per-file keys are derived from it.
	MasterKey []byte
	// NameKey is the filename encryption key
	NameKey []byte
	// ChunkSize is the plaintext block size
	ChunkSize uint64
	// Conf is the parsed config file
	Conf *ConfFile
}

// Wipe overwrites the key material.
func (v *Vault) Wipe() {
	for _, k := range [][]byte{v.MasterKey, v.NameKey} {
		for i := range k {
			k[i] = 0
		}
	}
}

// Probe checks if "cipherdir" contains a volume. "filename" is the config
// file location, usually ConfDefaultName inside cipherdir.
func Probe(cipherdir string, filename string) (State, error) {
	_, err := os.Stat(filename)
	if err == nil {
		return Locked, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Uninitialized, exitcodes.Wrap(err, exitcodes.OpenConf)
	}
	empty, err := isEmptyDir(cipherdir)
	if err != nil {
		return Uninitialized, exitcodes.Wrap(err, exitcodes.CipherDir)
	}
	if !empty {
		tlog.Debug.Printf("Probe: %q has no config file %q and is not empty", cipherdir, filename)
		return Uninitialized, exitcodes.Wrap(ErrSetup, exitcodes.CipherDir)
	}
	return Uninitialized, nil
}

// isEmptyDir checks if "dir" is an empty directory.
func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

// CreateArgs exists because the argument list of Initialize got too long.
type CreateArgs struct {
	// Filename is where the config file is written
	Filename string
	Password []byte
	// Confirm must equal Password
	Confirm []byte
	// ChunkSize, or zero to use the block size of the backing filesystem
	ChunkSize uint64
	Creator   string
}

// Initialize creates a new volume in the empty directory "cipherdir": it
// generates a random master key, wraps it with the password and writes the
// config file.
func Initialize(cipherdir string, args *CreateArgs) (*Vault, error) {
	if !bytes.Equal(args.Password, args.Confirm) {
		return nil, exitcodes.Wrap(ErrPasswordMismatch, exitcodes.PasswordMismatch)
	}
	if len(args.Password) == 0 {
		return nil, exitcodes.Wrap(ErrPasswordEmpty, exitcodes.PasswordEmpty)
	}
	state, err := Probe(cipherdir, args.Filename)
	if err != nil {
		return nil, err
	}
	if state != Uninitialized {
		return nil, exitcodes.Errorf(exitcodes.CipherDir, "%q already exists", args.Filename)
	}
	chunkSize := args.ChunkSize
	if chunkSize == 0 {
		chunkSize = backingBlockSize(cipherdir)
	}

	var cf ConfFile
	cf.filename = args.Filename
	cf.Creator = args.Creator
	cf.ChunkSize = chunkSize

	// Generate new random master key and filename salt
	key, err := cryptocore.RandBytes(cryptocore.KeyLen)
	if err != nil {
		return nil, exitcodes.Wrap(err, exitcodes.Init)
	}
	cf.FilenameSalt, err = cryptocore.RandBytes(cryptocore.SaltLen)
	if err != nil {
		return nil, exitcodes.Wrap(err, exitcodes.Init)
	}
	// Encrypt it using the password
	// This sets EncryptedKey
	if err = cf.EncryptKey(key, args.Password); err != nil {
		return nil, exitcodes.Wrap(err, exitcodes.Init)
	}
	// Write file to disk
	if err = cf.WriteFile(); err != nil {
		return nil, exitcodes.Wrap(err, exitcodes.WriteConf)
	}
	return newVault(&cf, key, cipherdir)
}

// Unlock reads the config file and unwraps the master key using "password".
func Unlock(cipherdir string, filename string, password []byte) (*Vault, error) {
	cf, err := Load(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, err
		}
		tlog.Debug.Printf("Unlock: %v", err)
		return nil, exitcodes.Wrap(ErrWrongPassword, exitcodes.PasswordIncorrect)
	}
	key, err := cf.DecryptMasterKey(password)
	if err != nil {
		return nil, err
	}
	return newVault(cf, key, cipherdir)
}

// ChangePassword re-wraps the master key stored in "filename" with
// "newPassword". The master key itself does not change, so file content
// stays readable.
func ChangePassword(filename string, oldPassword []byte, newPassword []byte, confirm []byte) error {
	if !bytes.Equal(newPassword, confirm) {
		return exitcodes.Wrap(ErrPasswordMismatch, exitcodes.PasswordMismatch)
	}
	if len(newPassword) == 0 {
		return exitcodes.Wrap(ErrPasswordEmpty, exitcodes.PasswordEmpty)
	}
	cf, err := Load(filename)
	if err != nil {
		return err
	}
	key, err := cf.DecryptMasterKey(oldPassword)
	if err != nil {
		return err
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()
	if err = cf.EncryptKey(key, newPassword); err != nil {
		return exitcodes.Wrap(err, exitcodes.Other)
	}
	if err = cf.WriteFile(); err != nil {
		return exitcodes.Wrap(err, exitcodes.WriteConf)
	}
	return nil
}

func newVault(cf *ConfFile, masterKey []byte, cipherdir string) (*Vault, error) {
	nameKey, err := cryptocore.DeriveKey(masterKey, cf.FilenameSalt, cryptocore.KeyLen)
	if err != nil {
		return nil, err
	}
	chunkSize := cf.ChunkSize
	if chunkSize == 0 {
		// Written by a tool that did not record the chunk size
		chunkSize = backingBlockSize(cipherdir)
	}
	return &Vault{
		MasterKey: masterKey,
		NameKey:   nameKey,
		ChunkSize: chunkSize,
		Conf:      cf,
	}, nil
}

// backingBlockSize returns the block size of the filesystem "dir" lives
// on, or contentenc.DefaultBS if it is unknown or unusable.
func backingBlockSize(dir string) uint64 {
	bs, err := syscallcompat.BlockSize(dir)
	if err != nil {
		tlog.Warn.Printf("Could not get block size of %q: %v. Using %d.", dir, err, contentenc.DefaultBS)
		return contentenc.DefaultBS
	}
	if bs < contentenc.MinBS || bs > contentenc.MaxBS {
		tlog.Info.Printf("Backing block size %d is out of range, using %d", bs, contentenc.DefaultBS)
		return contentenc.DefaultBS
	}
	return bs
}

// DefaultFilename returns the config file path inside "cipherdir".
func DefaultFilename(cipherdir string) string {
	return filepath.Join(cipherdir, ConfDefaultName)
}
