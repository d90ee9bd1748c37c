// Package fusefrontend binds an unlocked volume to the go-fuse node API.
package fusefrontend

import (
	"github.com/jmastr/aesfs/internal/volume"
)

// RootNode is the root of the filesystem tree of Nodes.
type RootNode struct {
	Node
	// args stores configuration arguments
	args Args
	// vol does all the crypto work
	vol *volume.Volume
}

// NewRootNode returns an encrypted FUSE filesystem backed by "vol".
func NewRootNode(args Args, vol *volume.Volume) *RootNode {
	if args.Cipherdir == "" {
		args.Cipherdir = vol.CipherDir()
	}
	return &RootNode{
		args: args,
		vol:  vol,
	}
}

// Volume returns the volume this filesystem is backed by.
func (rn *RootNode) Volume() *volume.Volume {
	return rn.vol
}
