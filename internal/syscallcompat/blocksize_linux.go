package syscallcompat

import (
	"syscall"
)

// BlockSize returns the fragment size (f_frsize) of the filesystem "path"
// lives on.
func BlockSize(path string) (uint64, error) {
	var st syscall.Statfs_t
	err := Statfs(path, &st)
	if err != nil {
		return 0, err
	}
	if st.Frsize > 0 {
		return uint64(st.Frsize), nil
	}
	return uint64(st.Bsize), nil
}
