package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/jmastr/aesfs/internal/exitcodes"
	"github.com/jmastr/aesfs/internal/syscallcompat"
	"github.com/jmastr/aesfs/internal/volume"
)

type fsckObj struct {
	vol *volume.Volume
	// out receives the problem reports
	out io.Writer
	// List of corrupt files
	corruptList []string
	// Protects corruptList
	listLock sync.Mutex
}

func (ck *fsckObj) markCorrupt(path string) {
	ck.listLock.Lock()
	ck.corruptList = append(ck.corruptList, path)
	ck.listLock.Unlock()
}

// watchMitigatedCorruptions reports the corruptions ListDirectory skips
// over until "done" is closed.
func (ck *fsckObj) watchMitigatedCorruptions(dir string, done chan struct{}) {
	for {
		select {
		case item := <-ck.vol.MitigatedCorruptions:
			fmt.Fprintf(ck.out, "fsck: corrupt entry in dir %q: %q\n", dir, item)
			ck.markCorrupt(item)
		case <-done:
			return
		}
	}
}

// Recursively check dir for corruption
func (ck *fsckObj) dir(path string) {
	cDir, err := ck.vol.TranslatePath(path)
	if err != nil {
		fmt.Fprintf(ck.out, "fsck: error translating dir %q: %v\n", path, err)
		ck.markCorrupt(path)
		return
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		ck.watchMitigatedCorruptions(path, done)
		close(stopped)
	}()
	entries, err := ck.vol.ListDirectory(cDir)
	close(done)
	<-stopped
	if err != nil {
		fmt.Fprintf(ck.out, "fsck: error opening dir %q: %v\n", path, err)
		ck.markCorrupt(path)
		return
	}
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		nextPath := filepath.Join(path, entry.Name)
		switch {
		case entry.Mode.IsDir():
			ck.dir(nextPath)
		case entry.Mode.IsRegular():
			ck.file(nextPath)
		case entry.Mode&os.ModeSymlink != 0:
			ck.symlink(nextPath)
		default:
			// Devices, FIFOs and sockets have no content to check
		}
	}
}

func (ck *fsckObj) symlink(path string) {
	cPath, err := ck.vol.TranslatePath(path)
	if err == nil {
		_, err = syscallcompat.Readlink(cPath)
	}
	if err != nil {
		fmt.Fprintf(ck.out, "fsck: error reading symlink %q: %v\n", path, err)
		ck.markCorrupt(path)
	}
}

// check file for corruption
func (ck *fsckObj) file(path string) {
	h, err := ck.vol.Open(path, syscall.O_RDONLY)
	if err != nil {
		fmt.Fprintf(ck.out, "fsck: error opening file %q: %v\n", path, err)
		ck.markCorrupt(path)
		return
	}
	defer h.Release()
	var st syscall.Stat_t
	if err = h.Stat(&st); err != nil {
		fmt.Fprintf(ck.out, "fsck: error stat()ing file %q: %v\n", path, err)
		ck.markCorrupt(path)
		return
	}
	var off uint64
	for off < uint64(st.Size) {
		data, err := h.Read(off, uint64(fuse.MAX_KERNEL_WRITE))
		if err != nil {
			fmt.Fprintf(ck.out, "fsck: error reading file %q at offset %d: %v\n", path, off, err)
			ck.markCorrupt(path)
			return
		}
		if len(data) == 0 {
			fmt.Fprintf(ck.out, "fsck: file %q is shorter than its size %d\n", path, st.Size)
			ck.markCorrupt(path)
			return
		}
		off += uint64(len(data))
	}
}

// check walks the whole volume and returns the list of corrupt paths.
func (ck *fsckObj) check() []string {
	ck.vol.MitigatedCorruptions = make(chan string)
	ck.dir("")
	ck.vol.MitigatedCorruptions = nil
	sort.Strings(ck.corruptList)
	return ck.corruptList
}

func fsck(args *argContainer) (exitcode int, err error) {
	vault, err := unlockVault(args)
	if err != nil {
		return 0, err
	}
	defer vault.Wipe()
	ck := fsckObj{
		vol: volume.New(args.cipherdir, vault),
		out: os.Stdout,
	}
	corrupt := ck.check()
	if len(corrupt) == 0 {
		fmt.Printf("fsck summary: no problems found\n")
		return 0, nil
	}
	fmt.Printf("fsck summary: %d corrupt files\n", len(corrupt))
	for _, path := range corrupt {
		fmt.Printf("  %q\n", path)
	}
	return exitcodes.FsckErrors, nil
}
