package contentenc

// IntraBlock identifies a part of a file block
type IntraBlock struct {
	// BlockNo is the block number in the file
	BlockNo uint64
	// Skip is an offset into the block payload
	// In forward mode: block plaintext
	Skip uint64
	// Length of payload data in this block
	Length uint64
	// Pointer to enclosing ContentEnc
	fs *ContentEnc
}

// IsPartial is a block partial? This means we have to do read-modify-write.
func (ib *IntraBlock) IsPartial() bool {
	if ib.Skip > 0 || ib.Length < ib.fs.plainBS {
		return true
	}
	return false
}

// BlockCipherOff returns the ciphertext offset corresponding to BlockNo
func (ib *IntraBlock) BlockCipherOff() (offset uint64) {
	return ib.fs.BlockNoToCipherOff(ib.BlockNo)
}

// BlockPlainOff returns the plaintext offset corresponding to BlockNo
func (ib *IntraBlock) BlockPlainOff() (offset uint64) {
	return ib.fs.BlockNoToPlainOff(ib.BlockNo)
}

// CropBlock crops a full plaintext block down to the relevant part
func (ib *IntraBlock) CropBlock(d []byte) []byte {
	lenHave := len(d)
	lenWant := int(ib.Skip + ib.Length)
	if lenHave < int(ib.Skip) {
		return nil
	}
	if lenHave < lenWant {
		return d[ib.Skip:lenHave]
	}
	return d[ib.Skip:lenWant]
}

// JointCiphertextRange is the ciphertext range corresponding to the sum of all
// "blocks" (complete blocks)
func (be *ContentEnc) JointCiphertextRange(blocks []IntraBlock) (offset uint64, length uint64) {
	firstBlock := blocks[0]
	lastBlock := blocks[len(blocks)-1]

	offset = be.BlockNoToCipherOff(firstBlock.BlockNo)
	offsetLast := be.BlockNoToCipherOff(lastBlock.BlockNo)
	length = offsetLast + be.cipherBS - offset

	return offset, length
}
