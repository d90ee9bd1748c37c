package fusefrontend

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/jmastr/aesfs/internal/syscallcompat"
	"github.com/jmastr/aesfs/internal/tlog"
)

const writeFlags = syscall.O_WRONLY | syscall.O_RDWR | syscall.O_TRUNC | syscall.O_APPEND | syscall.O_CREAT

// Open - FUSE call. Open already-existing file.
func (n *Node) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	if int(flags)&writeFlags != 0 {
		if errno = n.writable(); errno != 0 {
			return
		}
	}
	cPath, errno := n.cPath("")
	if errno != 0 {
		return
	}
	h, err := n.rootNode().vol.OpenPhysical(cPath, int(flags))
	if err != nil {
		tlog.Debug.Printf("Open %q: %v", cPath, err)
		errno = toErrno(err)
		return
	}
	fh = NewFile(h)
	return
}

// Create - FUSE call. Creates a new file.
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (inode *fs.Inode, fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	if errno = n.writable(); errno != 0 {
		return
	}
	cPath, errno := n.cPath(name)
	if errno != 0 {
		return
	}
	h, err := n.rootNode().vol.CreatePhysical(cPath, int(flags), mode)
	if err != nil {
		errno = toErrno(err)
		return
	}
	f := NewFile(h)
	if errno = n.chownToCaller(ctx, cPath); errno != 0 {
		f.h.Release()
		syscallcompat.Unlink(cPath)
		return
	}
	var st syscall.Stat_t
	if err = h.Stat(&st); err != nil {
		f.h.Release()
		errno = toErrno(err)
		return
	}
	inode = n.newChild(ctx, &st, out)
	return inode, f, 0, 0
}

// Mknod - FUSE call. Create a device file, FIFO or socket. Regular files
// get a header like every other file.
func (n *Node) Mknod(ctx context.Context, name string, mode, rdev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if errno := n.writable(); errno != 0 {
		return nil, errno
	}
	cPath, errno := n.cPath(name)
	if errno != 0 {
		return nil, errno
	}
	if mode&syscall.S_IFMT == syscall.S_IFREG || mode&syscall.S_IFMT == 0 {
		h, err := n.rootNode().vol.CreatePhysical(cPath, syscall.O_WRONLY, mode&^syscall.S_IFMT)
		if err != nil {
			return nil, toErrno(err)
		}
		if err = h.Release(); err != nil {
			return nil, toErrno(err)
		}
	} else {
		err := syscallcompat.Mknod(cPath, mode, int(rdev))
		if err != nil {
			return nil, toErrno(err)
		}
	}
	if errno = n.chownToCaller(ctx, cPath); errno != 0 {
		syscallcompat.Unlink(cPath)
		return nil, errno
	}
	var st syscall.Stat_t
	errno = n.lstat(cPath, &st)
	if errno != 0 {
		return nil, errno
	}
	return n.newChild(ctx, &st, out), 0
}
