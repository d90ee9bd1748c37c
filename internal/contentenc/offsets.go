package contentenc

import (
	"log"

	"github.com/jmastr/aesfs/internal/cryptocore"
	"github.com/jmastr/aesfs/internal/tlog"
)

// Contentenc methods that translate offsets between ciphertext and plaintext

// PlainOffToBlockNo converts a plaintext offset to the ciphertext block number.
func (be *ContentEnc) PlainOffToBlockNo(plainOffset uint64) uint64 {
	return plainOffset / be.plainBS
}

// CipherOffToBlockNo converts the ciphertext offset to the plaintext block number.
func (be *ContentEnc) CipherOffToBlockNo(cipherOffset uint64) uint64 {
	if cipherOffset < HeaderLen {
		log.Panicf("BUG: offset %d is inside the file header", cipherOffset)
	}
	return (cipherOffset - HeaderLen) / be.cipherBS
}

// BlockNoToCipherOff gets the ciphertext offset of block "blockNo"
func (be *ContentEnc) BlockNoToCipherOff(blockNo uint64) uint64 {
	return HeaderLen + blockNo*be.cipherBS
}

// BlockNoToPlainOff gets the plaintext offset of block "blockNo"
func (be *ContentEnc) BlockNoToPlainOff(blockNo uint64) uint64 {
	return blockNo * be.plainBS
}

// CipherSizeToPlainSize calculates the plaintext size from a ciphertext size
func (be *ContentEnc) CipherSizeToPlainSize(cipherSize uint64) uint64 {
	// Zero-sized files stay zero-sized
	if cipherSize == 0 {
		return 0
	}
	if cipherSize < HeaderLen {
		tlog.Warn.Printf("cipherSize %d < header size %d: corrupt file", cipherSize, HeaderLen)
		return 0
	}
	if cipherSize == HeaderLen {
		return 0
	}
	// Block number at last byte
	blockNo := be.CipherOffToBlockNo(cipherSize - 1)
	blockCount := blockNo + 1
	lastBlockLen := cipherSize - be.BlockNoToCipherOff(blockNo)
	if lastBlockLen <= be.BlockOverhead() {
		tlog.Warn.Printf("cipherSize %d: last block has only %d bytes: corrupt file", cipherSize, lastBlockLen)
		return be.BlockNoToPlainOff(blockNo)
	}
	overhead := be.BlockOverhead()*blockCount + HeaderLen
	return cipherSize - overhead
}

// PlainSizeToCipherSize calculates the ciphertext size from a plaintext size.
// Every file carries a header, so an empty file has HeaderLen bytes.
func (be *ContentEnc) PlainSizeToCipherSize(plainSize uint64) uint64 {
	if plainSize == 0 {
		return HeaderLen
	}
	// Block number at last byte
	blockNo := be.PlainOffToBlockNo(plainSize - 1)
	blockCount := blockNo + 1
	overhead := be.BlockOverhead()*blockCount + HeaderLen
	return plainSize + overhead
}

// ExplodePlainRange splits a plaintext byte range into (possibly partial)
// blocks. Returns an empty slice if length == 0.
func (be *ContentEnc) ExplodePlainRange(offset uint64, length uint64) []IntraBlock {
	var blocks []IntraBlock
	var nextBlock IntraBlock
	nextBlock.fs = be

	for length > 0 {
		nextBlock.BlockNo = be.PlainOffToBlockNo(offset)
		nextBlock.Skip = offset - be.BlockNoToPlainOff(nextBlock.BlockNo)

		// Minimum of remaining plaintext data and remaining space in the block
		nextBlock.Length = MinUint64(length, be.plainBS-nextBlock.Skip)

		blocks = append(blocks, nextBlock)
		offset += nextBlock.Length
		length -= nextBlock.Length
	}
	return blocks
}

// BlockOverhead returns the per-block overhead.
func (be *ContentEnc) BlockOverhead() uint64 {
	return cryptocore.Overhead
}

// MinUint64 returns the minimum of two uint64 values.
func MinUint64(x uint64, y uint64) uint64 {
	if x < y {
		return x
	}
	return y
}
