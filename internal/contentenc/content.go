// Package contentenc encrypts and decrypts file blocks.
//
// A file on disk consists of a FileHeader followed by any number of
// ciphertext blocks. Each block is laid out as
//
//	nonce (16 bytes) || GCM tag (16 bytes) || ciphertext (up to plainBS bytes)
//
// Only the last block of a file may be shorter than plainBS.
package contentenc

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/jmastr/aesfs/internal/cryptocore"
	"github.com/jmastr/aesfs/internal/tlog"
)

const (
	// DefaultBS is the default plaintext block size, used when the backing
	// filesystem does not report a usable one.
	DefaultBS = 4096
	// MinBS and MaxBS bound the plaintext block sizes we accept.
	MinBS = 512
	MaxBS = 1024 * 1024
)

// ErrCorruptBlock means a ciphertext block is structurally invalid, for
// example because it has been cut short.
var ErrCorruptBlock = errors.New("corrupt ciphertext block")

// ContentEnc is used to encrypt and decrypt file content.
type ContentEnc struct {
	// Plaintext block size
	plainBS uint64
	// Ciphertext block size
	cipherBS uint64
}

// New returns an initialized ContentEnc instance.
func New(plainBS uint64) *ContentEnc {
	if plainBS == 0 {
		panic("plainBS must not be zero")
	}
	return &ContentEnc{
		plainBS:  plainBS,
		cipherBS: plainBS + cryptocore.Overhead,
	}
}

// PlainBS returns the plaintext block size
func (be *ContentEnc) PlainBS() uint64 {
	return be.plainBS
}

// CipherBS returns the ciphertext block size
func (be *ContentEnc) CipherBS() uint64 {
	return be.cipherBS
}

// DecryptBlocks decrypts a number of blocks. The last block may be partial:
// its length is taken from what is actually in "ciphertext".
func (be *ContentEnc) DecryptBlocks(aead *cryptocore.AEAD, ciphertext []byte, firstBlockNo uint64) ([]byte, error) {
	cBuf := bytes.NewBuffer(ciphertext)
	var pBuf bytes.Buffer
	for cBuf.Len() > 0 {
		cBlock := cBuf.Next(int(be.cipherBS))
		pBlock, err := be.DecryptBlock(aead, cBlock, firstBlockNo)
		if err != nil {
			return nil, err
		}
		pBuf.Write(pBlock)
		firstBlockNo++
	}
	return pBuf.Bytes(), nil
}

// DecryptBlock verifies and decrypts a single block.
func (be *ContentEnc) DecryptBlock(aead *cryptocore.AEAD, ciphertext []byte, blockNo uint64) ([]byte, error) {
	// Empty block?
	if len(ciphertext) == 0 {
		return ciphertext, nil
	}
	if len(ciphertext) < cryptocore.Overhead {
		tlog.Warn.Printf("DecryptBlock: block %d is too short: %d bytes", blockNo, len(ciphertext))
		return nil, ErrCorruptBlock
	}
	if uint64(len(ciphertext)) > be.cipherBS {
		tlog.Warn.Printf("DecryptBlock: block %d is too long: %d bytes", blockNo, len(ciphertext))
		return nil, ErrCorruptBlock
	}
	plaintext, err := aead.Open(ciphertext, blockAData(blockNo))
	if err != nil {
		tlog.Warn.Printf("DecryptBlock: block %d: %v, len=%d", blockNo, err, len(ciphertext))
		tlog.Debug.Println(hex.Dump(ciphertext))
		return nil, err
	}
	return plaintext, nil
}

// EncryptBlocks encrypts a number of blocks, numbered consecutively starting
// at "firstBlockNo", and returns the concatenated ciphertext.
func (be *ContentEnc) EncryptBlocks(aead *cryptocore.AEAD, plaintextBlocks [][]byte, firstBlockNo uint64) ([]byte, error) {
	var outBuf bytes.Buffer
	for i, in := range plaintextBlocks {
		out, err := be.EncryptBlock(aead, in, firstBlockNo+uint64(i))
		if err != nil {
			return nil, err
		}
		outBuf.Write(out)
	}
	return outBuf.Bytes(), nil
}

// EncryptBlock encrypts a single block under a fresh nonce. The block number
// is authenticated so blocks cannot be reordered undetected.
func (be *ContentEnc) EncryptBlock(aead *cryptocore.AEAD, plaintext []byte, blockNo uint64) ([]byte, error) {
	// Empty block?
	if len(plaintext) == 0 {
		return plaintext, nil
	}
	if uint64(len(plaintext)) > be.plainBS {
		panic("BUG: plaintext block larger than plainBS")
	}
	return aead.Seal(plaintext, blockAData(blockNo))
}

// MergeBlocks merges newData into oldData at offset.
// The result may be bigger than both newData and oldData. Gaps are
// zero-filled.
func (be *ContentEnc) MergeBlocks(oldData []byte, newData []byte, offset int) []byte {
	// Make block of maximum size
	out := make([]byte, be.plainBS)
	// Copy old and new data into it
	copy(out, oldData)
	l := len(newData)
	copy(out[offset:offset+l], newData)
	// Crop to length
	outLen := len(oldData)
	newLen := offset + len(newData)
	if outLen < newLen {
		outLen = newLen
	}
	return out[0:outLen]
}

func blockAData(blockNo uint64) []byte {
	aData := make([]byte, 8)
	binary.BigEndian.PutUint64(aData, blockNo)
	return aData
}
