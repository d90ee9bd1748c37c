package fusefrontend

import (
	"bytes"
	"context"
	"errors"
	"syscall"

	"github.com/pkg/xattr"
)

// Extended attributes are stored encrypted on the backing file, see
// volume.XattrStorePrefix.

// Getxattr - FUSE call. Reads the value of extended attribute "attr".
func (n *Node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	cPath, errno := n.cPath("")
	if errno != 0 {
		return 0, errno
	}
	data, err := n.rootNode().vol.GetXattr(cPath, attr)
	if err != nil {
		return 0, xattrErrno(err)
	}
	if len(dest) < len(data) {
		return uint32(len(data)), syscall.ERANGE
	}
	l := copy(dest, data)
	return uint32(l), 0
}

// Setxattr - FUSE call. Set extended attribute.
func (n *Node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	if errno := n.writable(); errno != 0 {
		return errno
	}
	cPath, errno := n.cPath("")
	if errno != 0 {
		return errno
	}
	return xattrErrno(n.rootNode().vol.SetXattr(cPath, attr, data, int(flags)))
}

// Removexattr - FUSE call.
func (n *Node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	if errno := n.writable(); errno != 0 {
		return errno
	}
	cPath, errno := n.cPath("")
	if errno != 0 {
		return errno
	}
	return xattrErrno(n.rootNode().vol.RemoveXattr(cPath, attr))
}

// Listxattr - FUSE call. Lists extended attributes on the file.
func (n *Node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	cPath, errno := n.cPath("")
	if errno != 0 {
		return 0, errno
	}
	names, err := n.rootNode().vol.ListXattr(cPath)
	if err != nil {
		return 0, xattrErrno(err)
	}
	var buf bytes.Buffer
	for _, name := range names {
		buf.WriteString(name + "\000")
	}
	if buf.Len() > len(dest) {
		return uint32(buf.Len()), syscall.ERANGE
	}
	return uint32(copy(dest, buf.Bytes())), 0
}

// xattrErrno unpacks the *xattr.Error wrapper.
func xattrErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var xerr *xattr.Error
	if errors.As(err, &xerr) {
		return toErrno(xerr.Err)
	}
	return toErrno(err)
}
