package fusefrontend

import (
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"

	"github.com/jmastr/aesfs/internal/contentenc"
	"github.com/jmastr/aesfs/internal/cryptocore"
	"github.com/jmastr/aesfs/internal/nametransform"
)

// toErrno converts errors returned by the volume layer into a FUSE status.
// Authentication failures become EACCES, structural damage becomes EIO and
// everything else is handed to fs.ToErrno.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	switch {
	case errors.Is(err, cryptocore.ErrAuth):
		return syscall.EACCES
	case errors.Is(err, contentenc.ErrCorruptBlock),
		errors.Is(err, cryptocore.ErrCryptoFault),
		errors.Is(err, nametransform.ErrNameDecode):
		return syscall.EIO
	case errors.As(err, &errno):
		return errno
	}
	return fs.ToErrno(err)
}
