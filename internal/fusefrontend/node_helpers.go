package fusefrontend

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/jmastr/aesfs/internal/syscallcompat"
	"github.com/jmastr/aesfs/internal/tlog"
)

// toNode casts a generic fs.InodeEmbedder into *Node. Also handles *RootNode
// by return rn.Node.
func toNode(op fs.InodeEmbedder) *Node {
	if r, ok := op.(*RootNode); ok {
		return &r.Node
	}
	return op.(*Node)
}

// path returns the relative plaintext path of this node
func (n *Node) path() string {
	return n.Inode.Path(n.Root())
}

// rootNode returns the Root Node of the filesystem.
func (n *Node) rootNode() *RootNode {
	return n.Root().Operations().(*RootNode)
}

// cPath returns the backing path of this node, or of its child "child" if
// it is not empty.
func (n *Node) cPath(child string) (string, syscall.Errno) {
	p := n.path()
	if child != "" {
		p = filepath.Join(p, child)
	}
	cPath, err := n.rootNode().vol.TranslatePath(p)
	if err != nil {
		tlog.Debug.Printf("cPath %q: %v", p, err)
		return "", toErrno(err)
	}
	return cPath, 0
}

// writable returns EROFS on read-only mounts.
func (n *Node) writable() syscall.Errno {
	if n.rootNode().args.ReadOnly {
		return syscall.EROFS
	}
	return 0
}

// lstat stats the backing path and translates the size.
func (n *Node) lstat(cPath string, st *syscall.Stat_t) syscall.Errno {
	err := syscallcompat.Lstat(cPath, st)
	if err != nil {
		return toErrno(err)
	}
	if st.Mode&syscall.S_IFMT == syscall.S_IFREG {
		st.Size = int64(n.rootNode().vol.LogicalSize(uint64(st.Size)))
	}
	return 0
}

// newChild attaches a new child inode to n.
func (n *Node) newChild(ctx context.Context, st *syscall.Stat_t, out *fuse.EntryOut) *fs.Inode {
	out.Attr.FromStat(st)
	id := fs.StableAttr{
		Mode: uint32(st.Mode),
		Gen:  1,
		Ino:  st.Ino,
	}
	node := &Node{}
	return n.NewInode(ctx, node, id)
}

// chownToCaller hands a freshly created file over to the calling user when
// PreserveOwner is set.
func (n *Node) chownToCaller(ctx context.Context, cPath string) syscall.Errno {
	if !n.rootNode().args.PreserveOwner {
		return 0
	}
	caller, ok := fuse.FromContext(ctx)
	if !ok {
		return 0
	}
	err := syscallcompat.Lchown(cPath, int(caller.Uid), int(caller.Gid))
	if err != nil {
		tlog.Warn.Printf("chownToCaller %q: Lchown %d:%d failed: %v", cPath, caller.Uid, caller.Gid, err)
		return toErrno(err)
	}
	return 0
}

// modeToType converts the type bits of an os.FileMode into S_IFMT bits.
func modeToType(m os.FileMode) uint32 {
	switch {
	case m&os.ModeDir != 0:
		return syscall.S_IFDIR
	case m&os.ModeSymlink != 0:
		return syscall.S_IFLNK
	case m&os.ModeNamedPipe != 0:
		return syscall.S_IFIFO
	case m&os.ModeSocket != 0:
		return syscall.S_IFSOCK
	case m&os.ModeCharDevice != 0:
		return syscall.S_IFCHR
	case m&os.ModeDevice != 0:
		return syscall.S_IFBLK
	}
	return syscall.S_IFREG
}

// setattrTimes converts the times in "in" into the utimensat(2) array.
// Returns false if no time is set.
func setattrTimes(in *fuse.SetAttrIn) ([]unix.Timespec, bool) {
	atime, aok := in.GetATime()
	mtime, mok := in.GetMTime()
	if !aok && !mok {
		return nil, false
	}
	omit := unix.Timespec{Nsec: unix.UTIME_OMIT}
	ts := []unix.Timespec{omit, omit}
	if aok {
		ts[0] = toTimespec(atime)
	}
	if mok {
		ts[1] = toTimespec(mtime)
	}
	return ts, true
}

func toTimespec(t time.Time) unix.Timespec {
	return unix.NsecToTimespec(t.UnixNano())
}
