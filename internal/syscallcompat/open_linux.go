package syscallcompat

import "golang.org/x/sys/unix"

// O_DIRECT is stripped from open flags, see mangleOpenFlags.
const O_DIRECT = unix.O_DIRECT
