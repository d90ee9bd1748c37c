// Package syscallcompat wraps the syscalls used on the backing directory.
// All wrappers retry on EINTR.
package syscallcompat

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// retryEINTR executes operation `op` and retries if it gets EINTR.
//
// This is needed because network filesystems like CIFS throw lots of EINTR
// errors.
//
// Don't use retryEINTR() with syscall.Close()!
func retryEINTR(op func() error) error {
	for {
		err := op()
		if err != syscall.EINTR {
			return err
		}
	}
}

// retryEINTR2 is like retryEINTR but for functions that return an (int, error)
// pair like syscall.Open().
func retryEINTR2(op func() (int, error)) (int, error) {
	for {
		ret, err := op()
		if err != syscall.EINTR {
			return ret, err
		}
	}
}

// Open wraps unix.Open.
func Open(path string, mode int, perm uint32) (fd int, err error) {
	return retryEINTR2(func() (int, error) {
		return unix.Open(path, mode|unix.O_CLOEXEC, perm)
	})
}

// Mkdir wraps unix.Mkdir.
func Mkdir(path string, mode uint32) error {
	return retryEINTR(func() error {
		return unix.Mkdir(path, mode)
	})
}

// Rmdir wraps unix.Rmdir.
func Rmdir(path string) error {
	return retryEINTR(func() error {
		return unix.Rmdir(path)
	})
}

// Unlink wraps unix.Unlink.
func Unlink(path string) error {
	return retryEINTR(func() error {
		return unix.Unlink(path)
	})
}

// Rename wraps unix.Rename.
func Rename(oldpath string, newpath string) error {
	return retryEINTR(func() error {
		return unix.Rename(oldpath, newpath)
	})
}

// Link wraps unix.Link.
func Link(oldpath string, newpath string) error {
	return retryEINTR(func() error {
		return unix.Link(oldpath, newpath)
	})
}

// Symlink wraps unix.Symlink.
func Symlink(target string, linkpath string) error {
	return retryEINTR(func() error {
		return unix.Symlink(target, linkpath)
	})
}

// Readlink reads the whole target of the symlink at "path".
func Readlink(path string) (string, error) {
	buf := make([]byte, 256)
	for {
		n, err := retryEINTR2(func() (int, error) {
			return unix.Readlink(path, buf)
		})
		if err != nil {
			return "", err
		}
		if n < len(buf) {
			return string(buf[:n]), nil
		}
		// Target may have been truncated, try again with a bigger buffer
		buf = make([]byte, 2*len(buf))
	}
}

// Mknod wraps unix.Mknod.
func Mknod(path string, mode uint32, dev int) error {
	return retryEINTR(func() error {
		return unix.Mknod(path, mode, dev)
	})
}

// Chmod wraps unix.Chmod.
func Chmod(path string, mode uint32) error {
	return retryEINTR(func() error {
		return unix.Chmod(path, mode)
	})
}

// Lchown wraps unix.Lchown.
func Lchown(path string, uid int, gid int) error {
	return retryEINTR(func() error {
		return unix.Lchown(path, uid, gid)
	})
}

// UtimesNano sets atime and mtime of "path" without following symlinks.
func UtimesNano(path string, ts []unix.Timespec) error {
	return retryEINTR(func() error {
		return unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW)
	})
}

// Lstat wraps syscall.Lstat. The syscall types are used for stat results
// because go-fuse consumes them.
func Lstat(path string, st *syscall.Stat_t) error {
	return retryEINTR(func() error {
		return syscall.Lstat(path, st)
	})
}

// Fstat wraps syscall.Fstat.
func Fstat(fd int, st *syscall.Stat_t) error {
	return retryEINTR(func() error {
		return syscall.Fstat(fd, st)
	})
}

// Statfs wraps syscall.Statfs.
func Statfs(path string, st *syscall.Statfs_t) error {
	return retryEINTR(func() error {
		return syscall.Statfs(path, st)
	})
}

// Access wraps unix.Access.
func Access(path string, mode uint32) error {
	return retryEINTR(func() error {
		return unix.Access(path, mode)
	})
}
