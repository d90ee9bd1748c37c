package configfile

import (
	"fmt"

	"github.com/jmastr/aesfs/internal/contentenc"
	"github.com/jmastr/aesfs/internal/cryptocore"
)

// Validate that the settings make sense
func (cf *ConfFile) Validate() error {
	if len(cf.EncryptedKey) != wrappedKeyLen {
		return fmt.Errorf("masterkey has %d bytes, want %d", len(cf.EncryptedKey), wrappedKeyLen)
	}
	if len(cf.FilenameSalt) != cryptocore.SaltLen {
		return fmt.Errorf("rand_salt has %d bytes, want %d", len(cf.FilenameSalt), cryptocore.SaltLen)
	}
	if cf.ChunkSize != 0 && (cf.ChunkSize < contentenc.MinBS || cf.ChunkSize > contentenc.MaxBS) {
		return fmt.Errorf("chunk_size %d is out of range [%d, %d]", cf.ChunkSize, contentenc.MinBS, contentenc.MaxBS)
	}
	return nil
}
