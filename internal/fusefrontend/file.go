package fusefrontend

// FUSE operations on file handles

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/jmastr/aesfs/internal/syscallcompat"
	"github.com/jmastr/aesfs/internal/tlog"
	"github.com/jmastr/aesfs/internal/volume"
)

// File implements the go-fuse v2 API (github.com/hanwen/go-fuse/v2/fs)
type File struct {
	h *volume.Handle
}

// NewFile returns a new go-fuse File instance wrapping "h".
func NewFile(h *volume.Handle) *File {
	return &File{h: h}
}

// Read - FUSE call
func (f *File) Read(ctx context.Context, buf []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off < 0 {
		return nil, syscall.EINVAL
	}
	out, err := f.h.Read(uint64(off), uint64(len(buf)))
	if err != nil {
		return nil, toErrno(err)
	}
	tlog.Debug.Printf("Read %q: off=%d len=%d -> %d bytes", f.h.Name(), off, len(buf), len(out))
	return fuse.ReadResultData(out), 0
}

// Write - FUSE call
//
// If the write creates a hole, the gap is filled with encrypted zeros.
func (f *File) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	if off < 0 {
		return 0, syscall.EINVAL
	}
	n, err := f.h.Write(data, uint64(off))
	if err != nil {
		return uint32(n), toErrno(err)
	}
	return uint32(n), 0
}

// Release - FUSE call, close file
func (f *File) Release(ctx context.Context) syscall.Errno {
	return toErrno(f.h.Release())
}

// Flush - FUSE call
func (f *File) Flush(ctx context.Context) syscall.Errno {
	// Since Flush() may be called for each dup'd fd, we don't
	// want to really close the file, we just want to flush. This
	// is achieved by closing a dup'd fd.
	newFd, err := syscall.Dup(f.h.Fd())
	if err != nil {
		return toErrno(err)
	}
	return toErrno(syscall.Close(newFd))
}

// Fsync - FUSE call
func (f *File) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return toErrno(f.h.Fsync())
}

// Getattr - FUSE call (like stat)
func (f *File) Getattr(ctx context.Context, a *fuse.AttrOut) syscall.Errno {
	var st syscall.Stat_t
	err := f.h.Stat(&st)
	if err != nil {
		return toErrno(err)
	}
	a.FromStat(&st)
	return 0
}

// Setattr - FUSE call. Called for ftruncate, fchmod, futimens, ...
func (f *File) Setattr(ctx context.Context, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// fchmod(2)
	if mode, ok := in.GetMode(); ok {
		err := syscall.Fchmod(f.h.Fd(), mode)
		if err != nil {
			return toErrno(err)
		}
	}

	// fchown(2)
	uid32, uOk := in.GetUID()
	gid32, gOk := in.GetGID()
	if uOk || gOk {
		uid := -1
		gid := -1
		if uOk {
			uid = int(uid32)
		}
		if gOk {
			gid = int(gid32)
		}
		err := syscall.Fchown(f.h.Fd(), uid, gid)
		if err != nil {
			return toErrno(err)
		}
	}

	// utimens(2)
	if ts, ok := setattrTimes(in); ok {
		err := syscallcompat.UtimesNano(f.h.Name(), ts)
		if err != nil {
			return toErrno(err)
		}
	}

	// ftruncate(2)
	if sz, ok := in.GetSize(); ok {
		err := f.h.Truncate(sz)
		if err != nil {
			tlog.Warn.Printf("Setattr %q: truncate to %d failed: %v", f.h.Name(), sz, err)
			return toErrno(err)
		}
	}

	return f.Getattr(ctx, out)
}

// Allocate - FUSE call for fallocate(2)
//
// Preallocation would have to write encrypted zeros and cannot be done
// with the backing fallocate.
func (f *File) Allocate(ctx context.Context, off uint64, sz uint64, mode uint32) syscall.Errno {
	return syscall.EOPNOTSUPP
}
