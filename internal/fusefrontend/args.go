package fusefrontend

// Args is a container for arguments that are passed from main() to fusefrontend
type Args struct {
	// Cipherdir is the backing storage directory (absolute path).
	Cipherdir string
	// Should we chown a file after it has been created?
	// This only makes sense if (1) allow_other is set and (2) we run as root.
	PreserveOwner bool
	// ReadOnly rejects all modifying operations with EROFS. The kernel
	// already does this for "-ro" mounts; we check again so the flag also
	// protects against a misbehaving caller.
	ReadOnly bool
}
