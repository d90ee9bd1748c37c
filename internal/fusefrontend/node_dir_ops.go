package fusefrontend

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/jmastr/aesfs/internal/syscallcompat"
	"github.com/jmastr/aesfs/internal/tlog"
	"github.com/jmastr/aesfs/internal/volume"
)

// Mkdir - FUSE call. Create a directory at n/name.
func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if errno := n.writable(); errno != 0 {
		return nil, errno
	}
	cPath, errno := n.cPath(name)
	if errno != 0 {
		return nil, errno
	}
	err := syscallcompat.Mkdir(cPath, mode)
	if err != nil {
		return nil, toErrno(err)
	}
	if errno = n.chownToCaller(ctx, cPath); errno != 0 {
		syscallcompat.Rmdir(cPath)
		return nil, errno
	}
	var st syscall.Stat_t
	errno = n.lstat(cPath, &st)
	if errno != 0 {
		return nil, errno
	}
	return n.newChild(ctx, &st, out), 0
}

// Readdir - FUSE call.
//
// Entries with undecodable names are skipped, see volume.ListDirectory.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	cDir, errno := n.cPath("")
	if errno != 0 {
		return nil, errno
	}
	entries, err := n.rootNode().vol.ListDirectory(cDir)
	if err != nil {
		return nil, toErrno(err)
	}
	return fs.NewListDirStream(toFuseDirEntries(entries)), 0
}

// toFuseDirEntries converts a volume listing to go-fuse entries. go-fuse
// synthesizes "." and ".." itself, so we drop them.
func toFuseDirEntries(entries []volume.DirEntry) []fuse.DirEntry {
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, fuse.DirEntry{
			Name: e.Name,
			Mode: modeToType(e.Mode),
		})
	}
	return out
}

// Rmdir - FUSE call.
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	if errno := n.writable(); errno != 0 {
		return errno
	}
	cPath, errno := n.cPath(name)
	if errno != 0 {
		return errno
	}
	err := syscallcompat.Rmdir(cPath)
	if err != nil {
		tlog.Debug.Printf("Rmdir %q: %v", cPath, err)
	}
	return toErrno(err)
}
