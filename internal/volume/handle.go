package volume

import (
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/jmastr/aesfs/internal/contentenc"
	"github.com/jmastr/aesfs/internal/cryptocore"
	"github.com/jmastr/aesfs/internal/syscallcompat"
	"github.com/jmastr/aesfs/internal/tlog"
)

// zeroFillMax is the largest amount of zeros we write in one go when
// filling a gap.
const zeroFillMax = 128 * 1024

// Handle is an open encrypted file. It owns the backing file descriptor
// and the per-file key.
//
// All methods are safe for concurrent use; operations on one Handle are
// serialized. Different Handles on the same file are not coordinated.
type Handle struct {
	vol *Volume
	ce  *contentenc.ContentEnc
	// mu protects all fields below and serializes read-modify-write cycles
	mu sync.Mutex
	// Backing file
	fd *os.File
	// Per-file content key. nil as long as the backing file has no header.
	aead *cryptocore.AEAD
	// Release() has been called
	released bool
}

func newHandle(v *Volume, fd *os.File) *Handle {
	return &Handle{
		vol: v,
		ce:  v.contentEnc,
		fd:  fd,
	}
}

// Name returns the backing file path.
func (h *Handle) Name() string {
	return h.fd.Name()
}

// Fd returns the backing file descriptor.
func (h *Handle) Fd() int {
	return int(h.fd.Fd())
}

// createHeader creates a new random header and writes it to disk.
// Caller must hold h.mu.
func (h *Handle) createHeader() error {
	fh, err := contentenc.RandomHeader()
	if err != nil {
		return err
	}
	_, err = h.fd.WriteAt(fh.Pack(), 0)
	if err != nil {
		return err
	}
	return h.setKey(fh)
}

// loadHeader reads the header and derives the file key. A backing file
// without any content has no header yet; it is created on the first
// write. Caller must hold h.mu.
func (h *Handle) loadHeader() error {
	buf := make([]byte, contentenc.HeaderLen)
	n, err := h.fd.ReadAt(buf, 0)
	if err == io.EOF && n == 0 {
		return nil
	}
	if err == io.EOF {
		tlog.Warn.Printf("loadHeader %q: header is truncated to %d bytes", h.fd.Name(), n)
		return syscall.EIO
	}
	if err != nil {
		return err
	}
	fh, err := contentenc.ParseHeader(buf)
	if err != nil {
		tlog.Warn.Printf("loadHeader %q: %v", h.fd.Name(), err)
		return syscall.EIO
	}
	return h.setKey(fh)
}

func (h *Handle) setKey(fh *contentenc.FileHeader) error {
	aead, err := contentenc.FileKey(h.vol.masterKey, fh)
	if err != nil {
		return err
	}
	h.aead = aead
	return nil
}

// physicalSize returns the size of the backing file. Caller must hold h.mu.
func (h *Handle) physicalSize() (uint64, error) {
	var st syscall.Stat_t
	err := syscallcompat.Fstat(int(h.fd.Fd()), &st)
	if err != nil {
		return 0, err
	}
	return uint64(st.Size), nil
}

// plainSize returns the logical file size. Caller must hold h.mu.
func (h *Handle) plainSize() (uint64, error) {
	cSize, err := h.physicalSize()
	if err != nil {
		return 0, err
	}
	return h.ce.CipherSizeToPlainSize(cSize), nil
}

// Stat fills "st" from the backing file and replaces the size by the
// logical size.
func (h *Handle) Stat(st *syscall.Stat_t) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return syscall.EBADF
	}
	err := syscallcompat.Fstat(int(h.fd.Fd()), st)
	if err != nil {
		return err
	}
	st.Size = int64(h.ce.CipherSizeToPlainSize(uint64(st.Size)))
	return nil
}

// Read reads up to "length" bytes at logical offset "off". Reading past
// the end of the file returns less data, or none.
func (h *Handle) Read(off uint64, length uint64) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, syscall.EBADF
	}
	return h.doRead(off, length)
}

// doRead reads the chunks covering the range in a single pread, decrypts
// them and crops the result. Caller must hold h.mu.
func (h *Handle) doRead(off uint64, length uint64) ([]byte, error) {
	if length == 0 || h.aead == nil {
		return nil, nil
	}
	// Never allocate more than the file can return
	size, err := h.plainSize()
	if err != nil {
		return nil, err
	}
	if off >= size {
		return nil, nil
	}
	length = contentenc.MinUint64(length, size-off)
	// Read the backing ciphertext in one go
	blocks := h.ce.ExplodePlainRange(off, length)
	alignedOffset, alignedLength := h.ce.JointCiphertextRange(blocks)
	ciphertext := make([]byte, alignedLength)
	n, err := h.fd.ReadAt(ciphertext, int64(alignedOffset))
	if err != nil && err != io.EOF {
		tlog.Warn.Printf("doRead %q: ReadAt: %v", h.fd.Name(), err)
		return nil, err
	}
	// The last block is sized from what is actually on disk
	ciphertext = ciphertext[:n]
	if len(ciphertext) == 0 {
		return nil, nil
	}
	firstBlockNo := blocks[0].BlockNo
	tlog.Debug.Printf("doRead: off=%d len=%d -> off=%d len=%d, got %d bytes",
		off, length, alignedOffset, alignedLength, n)

	// Decrypt it
	plaintext, err := h.ce.DecryptBlocks(h.aead, ciphertext, firstBlockNo)
	if err != nil {
		tlog.Warn.Printf("doRead %q: off=%d len=%d: %v", h.fd.Name(), off, length, err)
		return nil, err
	}

	// Crop down to the relevant part
	skip := blocks[0].Skip
	if skip >= uint64(len(plaintext)) {
		return nil, nil
	}
	out := plaintext[skip:]
	if uint64(len(out)) > length {
		out = out[:length]
	}
	return out, nil
}

// Write writes "data" at logical offset "off". A write that starts past
// the end of the file zero-fills the gap first.
func (h *Handle) Write(data []byte, off uint64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return 0, syscall.EBADF
	}
	if len(data) == 0 {
		return 0, nil
	}
	plainSize, err := h.plainSize()
	if err != nil {
		return 0, err
	}
	if off > plainSize {
		if err := h.zeroFill(plainSize, off); err != nil {
			return 0, err
		}
	}
	return h.doWrite(data, off)
}

// doWrite encrypts and writes "data" at logical offset "off". Partial
// blocks are read, merged and re-encrypted under a fresh nonce.
// Caller must hold h.mu.
func (h *Handle) doWrite(data []byte, off uint64) (int, error) {
	if h.aead == nil {
		if err := h.createHeader(); err != nil {
			return 0, err
		}
	}
	// Handle payload data
	blocks := h.ce.ExplodePlainRange(off, uint64(len(data)))
	toEncrypt := make([][]byte, len(blocks))
	for i, b := range blocks {
		blockData := data[:b.Length]
		data = data[b.Length:]
		// Incomplete block -> Read-Modify-Write
		if b.IsPartial() {
			// Read
			oldData, err := h.doRead(b.BlockPlainOff(), h.ce.PlainBS())
			if err != nil {
				tlog.Warn.Printf("doWrite %q: RMW read of block #%d failed: %v", h.fd.Name(), b.BlockNo, err)
				return 0, err
			}
			// Modify
			blockData = h.ce.MergeBlocks(oldData, blockData, int(b.Skip))
			tlog.Debug.Printf("doWrite: RMW block #%d, merged len=%d", b.BlockNo, len(blockData))
		}
		toEncrypt[i] = blockData
	}
	// Encrypt all blocks
	ciphertext, err := h.ce.EncryptBlocks(h.aead, toEncrypt, blocks[0].BlockNo)
	if err != nil {
		return 0, err
	}
	// Write
	cOff := blocks[0].BlockCipherOff()
	_, err = h.fd.WriteAt(ciphertext, int64(cOff))
	if err != nil {
		tlog.Warn.Printf("doWrite %q: WriteAt off=%d len=%d: %v", h.fd.Name(), cOff, len(ciphertext), err)
		return 0, err
	}
	written := 0
	for _, b := range blocks {
		written += int(b.Length)
	}
	return written, nil
}

// zeroFill writes zeros to the logical range [from, to). Caller must hold
// h.mu.
func (h *Handle) zeroFill(from uint64, to uint64) error {
	for from < to {
		n := contentenc.MinUint64(to-from, zeroFillMax)
		_, err := h.doWrite(make([]byte, n), from)
		if err != nil {
			return err
		}
		from += n
	}
	return nil
}

// Truncate sets the logical size to "newSize". Shrinking re-encrypts the new
// last block, so the file always consists of whole blocks.
func (h *Handle) Truncate(newSize uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return syscall.EBADF
	}
	oldSize, err := h.plainSize()
	if err != nil {
		return err
	}
	tlog.Debug.Printf("Truncate %q: %d -> %d bytes", h.fd.Name(), oldSize, newSize)
	if newSize == oldSize {
		return nil
	}
	// File grows
	if newSize > oldSize {
		return h.zeroFill(oldSize, newSize)
	}
	// File shrinks
	blockNo := h.ce.PlainOffToBlockNo(newSize)
	cipherOff := h.ce.BlockNoToCipherOff(blockNo)
	plainOff := h.ce.BlockNoToPlainOff(blockNo)
	lastBlockLen := newSize - plainOff
	var data []byte
	if lastBlockLen > 0 {
		data, err = h.doRead(plainOff, lastBlockLen)
		if err != nil {
			tlog.Warn.Printf("Truncate %q: reading block #%d failed: %v", h.fd.Name(), blockNo, err)
			return err
		}
	}
	// Truncate down to the last complete block
	err = syscall.Ftruncate(int(h.fd.Fd()), int64(cipherOff))
	if err != nil {
		tlog.Warn.Printf("Truncate %q: Ftruncate(%d) failed: %v", h.fd.Name(), cipherOff, err)
		return err
	}
	// Append partial block
	if lastBlockLen > 0 {
		_, err = h.doWrite(data, plainOff)
	}
	return err
}

// Fsync flushes the backing file to stable storage.
func (h *Handle) Fsync() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return syscall.EBADF
	}
	return h.fd.Sync()
}

// Release wipes the file key and closes the backing file. Any later
// operation on the handle fails with EBADF.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return syscall.EBADF
	}
	h.released = true
	if h.aead != nil {
		h.aead.Wipe()
		h.aead = nil
	}
	return h.fd.Close()
}
