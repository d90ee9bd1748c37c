package fusefrontend

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/jmastr/aesfs/internal/syscallcompat"
	"github.com/jmastr/aesfs/internal/tlog"
)

// Node is a file or directory in the filesystem tree.
type Node struct {
	fs.Inode
}

// Lookup - FUSE call for discovering a file.
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	cPath, errno := n.cPath(name)
	if errno != 0 {
		return nil, errno
	}
	var st syscall.Stat_t
	errno = n.lstat(cPath, &st)
	if errno != 0 {
		return nil, errno
	}
	return n.newChild(ctx, &st, out), 0
}

// Getattr - FUSE call for stat()ing a file.
//
// Symlink-safe because the backing path is lstat()ed.
func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	// If we have a file handle, ask it. The handle sees its own writes
	// even if the backing file was renamed.
	if f != nil {
		return f.(fs.FileGetattrer).Getattr(ctx, out)
	}
	cPath, errno := n.cPath("")
	if errno != 0 {
		return errno
	}
	var st syscall.Stat_t
	errno = n.lstat(cPath, &st)
	if errno != 0 {
		return errno
	}
	out.Attr.FromStat(&st)
	return 0
}

// Setattr - FUSE call. Called for chmod, truncate, utimens, ...
func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// Use the fd if the kernel gave us one
	if f != nil {
		return f.(fs.FileSetattrer).Setattr(ctx, in, out)
	}
	if errno := n.writable(); errno != 0 {
		return errno
	}
	cPath, errno := n.cPath("")
	if errno != 0 {
		return errno
	}

	// chmod(2)
	if mode, ok := in.GetMode(); ok {
		err := syscallcompat.Chmod(cPath, mode)
		if err != nil {
			return toErrno(err)
		}
	}

	// chown(2)
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
		err := syscallcompat.Lchown(cPath, uid, gid)
		if err != nil {
			return toErrno(err)
		}
	}

	// truncate(2)
	if sz, ok := in.GetSize(); ok {
		err := n.rootNode().vol.Truncate(n.path(), sz)
		if err != nil {
			tlog.Warn.Printf("Setattr %q: truncate to %d failed: %v", n.path(), sz, err)
			return toErrno(err)
		}
	}

	// utimens(2)
	if ts, ok := setattrTimes(in); ok {
		err := syscallcompat.UtimesNano(cPath, ts)
		if err != nil {
			return toErrno(err)
		}
	}

	return n.Getattr(ctx, nil, out)
}

// Readlink - FUSE call.
//
// Symlink targets are stored unencrypted.
func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	cPath, errno := n.cPath("")
	if errno != 0 {
		return nil, errno
	}
	target, err := syscallcompat.Readlink(cPath)
	if err != nil {
		return nil, toErrno(err)
	}
	return []byte(target), 0
}

// Statfs - FUSE call. Returns the numbers of the backing filesystem.
func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var st syscall.Statfs_t
	err := syscallcompat.Statfs(n.rootNode().args.Cipherdir, &st)
	if err != nil {
		return toErrno(err)
	}
	out.FromStatfsT(&st)
	return 0
}

// Access - FUSE call. Checks the permissions of the backing file.
func (n *Node) Access(ctx context.Context, mode uint32) syscall.Errno {
	cPath, errno := n.cPath("")
	if errno != 0 {
		return errno
	}
	return toErrno(syscallcompat.Access(cPath, mode))
}

// Unlink - FUSE call. Delete a file.
func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	if errno := n.writable(); errno != 0 {
		return errno
	}
	cPath, errno := n.cPath(name)
	if errno != 0 {
		return errno
	}
	return toErrno(syscallcompat.Unlink(cPath))
}

// Rename - FUSE call.
//
// RENAME_EXCHANGE and RENAME_NOREPLACE are not supported.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if errno := n.writable(); errno != 0 {
		return errno
	}
	if flags != 0 {
		return syscall.EINVAL
	}
	cOld, errno := n.cPath(name)
	if errno != 0 {
		return errno
	}
	cNew, errno := toNode(newParent).cPath(newName)
	if errno != 0 {
		return errno
	}
	return toErrno(syscallcompat.Rename(cOld, cNew))
}

// Link - FUSE call. Creates a hard link at "n/name" pointing to "target".
func (n *Node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if errno := n.writable(); errno != 0 {
		return nil, errno
	}
	cTarget, errno := toNode(target).cPath("")
	if errno != 0 {
		return nil, errno
	}
	cPath, errno := n.cPath(name)
	if errno != 0 {
		return nil, errno
	}
	err := syscallcompat.Link(cTarget, cPath)
	if err != nil {
		return nil, toErrno(err)
	}
	var st syscall.Stat_t
	errno = n.lstat(cPath, &st)
	if errno != 0 {
		return nil, errno
	}
	return n.newChild(ctx, &st, out), 0
}

// Symlink - FUSE call. Create a symlink.
//
// The target is stored as-is.
func (n *Node) Symlink(ctx context.Context, target string, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if errno := n.writable(); errno != 0 {
		return nil, errno
	}
	cPath, errno := n.cPath(name)
	if errno != 0 {
		return nil, errno
	}
	err := syscallcompat.Symlink(target, cPath)
	if err != nil {
		return nil, toErrno(err)
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
