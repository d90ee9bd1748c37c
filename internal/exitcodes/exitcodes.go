// Package exitcodes contains all well-defined exit codes that aesfs
// can return.
package exitcodes

import (
	"errors"
	"fmt"
	"os"
)

const (
	// Usage - usage error like wrong cli syntax, wrong number of parameters.
	Usage = 1
	// 2 is reserved because it is used by Go panic

	// CipherDir means that the CIPHERDIR does not exist, is not empty, or is not
	// a directory.
	CipherDir = 6
	// Init is an error on filesystem init
	Init = 7
	// LoadConf is an error while loading aesfs.conf
	LoadConf = 8
	// ReadPassword means something went wrong reading the password
	ReadPassword = 9
	// MountPoint error means that the mountpoint is invalid (not empty etc).
	MountPoint = 10
	// Other error - please inspect the message
	Other = 11
	// PasswordIncorrect - the password was incorrect when mounting or when
	// changing the password.
	PasswordIncorrect = 12
	// SigInt means we got SIGINT
	SigInt = 15
	// ForkChild means forking the worker child failed
	ForkChild = 17
	// FuseNewServer - this exit code means that the call to fs.Mount failed.
	// This usually means that there was a problem executing fusermount, or
	// fusermount could not attach the mountpoint to the kernel.
	FuseNewServer = 19
	// PasswordMismatch - the password and its confirmation differ.
	PasswordMismatch = 21
	// PasswordEmpty - we received an empty password
	PasswordEmpty = 22
	// OpenConf - the was an error opening the aesfs.conf file for reading
	OpenConf = 23
	// WriteConf - could not write the aesfs.conf
	WriteConf = 24
	// FsckErrors - the filesystem check found errors
	FsckErrors = 26
)

// Err wraps an error with an associated numeric exit code
type Err struct {
	error
	code int
}

// NewErr returns an error containing "msg" and the exit code "code".
func NewErr(msg string, code int) Err {
	return Err{
		error: errors.New(msg),
		code:  code,
	}
}

// Wrap attaches the exit code "code" to "err". errors.Is and errors.As still
// see "err".
func Wrap(err error, code int) Err {
	return Err{
		error: err,
		code:  code,
	}
}

// Unwrap returns the wrapped error.
func (e Err) Unwrap() error {
	return e.error
}

// Code returns the exit code.
func (e Err) Code() int {
	return e.code
}

// Errorf is like fmt.Errorf but attaches the exit code "code".
func Errorf(code int, format string, a ...interface{}) Err {
	return Wrap(fmt.Errorf(format, a...), code)
}

// Exit extracts the numeric exit code from "err" (if available) and exits the
// application.
func Exit(err error) {
	os.Exit(CodeOf(err))
}

// CodeOf returns the exit code carried by "err", or Other.
func CodeOf(err error) int {
	var err2 Err
	if !errors.As(err, &err2) {
		return Other
	}
	return err2.code
}
