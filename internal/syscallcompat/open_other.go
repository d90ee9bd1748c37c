//go:build !linux

package syscallcompat

// O_DIRECT does not exist outside Linux.
const O_DIRECT = 0
