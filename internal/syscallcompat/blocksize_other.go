//go:build !linux

package syscallcompat

import (
	"syscall"
)

// BlockSize returns the block size of the filesystem "path" lives on.
// Only Linux reports f_frsize through statfs, elsewhere we use f_bsize.
func BlockSize(path string) (uint64, error) {
	var st syscall.Statfs_t
	err := Statfs(path, &st)
	if err != nil {
		return 0, err
	}
	return uint64(st.Bsize), nil
}
