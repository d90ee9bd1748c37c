package volume

import (
	"strings"
	"syscall"

	"github.com/pkg/xattr"

	"github.com/jmastr/aesfs/internal/cryptocore"
	"github.com/jmastr/aesfs/internal/nametransform"
	"github.com/jmastr/aesfs/internal/tlog"
)

// XattrStorePrefix is the namespace that holds our encrypted extended
// attributes on the backing files. The encrypted attribute name follows
// the prefix. Backing attributes outside of it are invisible.
const XattrStorePrefix = "user.aesfs."

// xattrNameMax is XATTR_NAME_MAX on Linux
const xattrNameMax = 255

// xattrKeySalt separates the xattr keys from every other key derived from
// the master key.
var xattrKeySalt = []byte("aesfs xattr keys")

// xattrCrypto encrypts names like file names, but under its own key, so
// an attribute and a file with the same name do not share a token. Values
// are sealed with the encrypted name as additional data, so they cannot be
// moved between attributes.
type xattrCrypto struct {
	names *nametransform.NameTransform
	aead  *cryptocore.AEAD
}

func newXattrCrypto(masterKey []byte) *xattrCrypto {
	k, err := cryptocore.DeriveKey(masterKey, xattrKeySalt, 2*cryptocore.KeyLen)
	if err != nil {
		panic(err)
	}
	return &xattrCrypto{
		names: nametransform.New(k[:cryptocore.KeyLen]),
		aead:  cryptocore.New(k[cryptocore.KeyLen:]),
	}
}

// encryptXattrName turns "user.foo" into "user.aesfs.<token>".
func (v *Volume) encryptXattrName(attr string) (string, error) {
	token, err := v.xattr.names.EncryptName(attr)
	if err != nil {
		return "", err
	}
	cAttr := XattrStorePrefix + token
	if len(cAttr) > xattrNameMax {
		return "", syscall.ERANGE
	}
	return cAttr, nil
}

func (v *Volume) decryptXattrName(cAttr string) (string, error) {
	if !strings.HasPrefix(cAttr, XattrStorePrefix) {
		return "", nametransform.ErrNameDecode
	}
	return v.xattr.names.DecryptName(cAttr[len(XattrStorePrefix):])
}

// GetXattr returns the plaintext value of attribute "attr" of the backing
// file or directory "cPath".
func (v *Volume) GetXattr(cPath string, attr string) ([]byte, error) {
	cAttr, err := v.encryptXattrName(attr)
	if err != nil {
		return nil, err
	}
	cData, err := xattr.LGet(cPath, cAttr)
	if err != nil {
		return nil, err
	}
	data, err := v.xattr.aead.Open(cData, []byte(cAttr))
	if err != nil {
		tlog.Warn.Printf("GetXattr %q %q: %v", cPath, attr, err)
		return nil, err
	}
	return data, nil
}

// SetXattr encrypts "data" and stores it as attribute "attr". "flags" are
// XATTR_CREATE / XATTR_REPLACE.
func (v *Volume) SetXattr(cPath string, attr string, data []byte, flags int) error {
	cAttr, err := v.encryptXattrName(attr)
	if err != nil {
		return err
	}
	cData, err := v.xattr.aead.Seal(data, []byte(cAttr))
	if err != nil {
		return err
	}
	return xattr.LSetWithFlags(cPath, cAttr, cData, flags)
}

// RemoveXattr deletes attribute "attr".
func (v *Volume) RemoveXattr(cPath string, attr string) error {
	cAttr, err := v.encryptXattrName(attr)
	if err != nil {
		return err
	}
	return xattr.LRemove(cPath, cAttr)
}

// ListXattr returns the decrypted attribute names. Undecodable names are
// logged and reported on MitigatedCorruptions.
func (v *Volume) ListXattr(cPath string) ([]string, error) {
	cNames, err := xattr.LList(cPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cNames))
	for _, cAttr := range cNames {
		if !strings.HasPrefix(cAttr, XattrStorePrefix) {
			continue
		}
		attr, err := v.decryptXattrName(cAttr)
		if err != nil {
			tlog.Warn.Printf("ListXattr %q: undecodable attribute %q", cPath, cAttr)
			v.reportMitigatedCorruption(cPath + " xattr " + cAttr)
			continue
		}
		names = append(names, attr)
	}
	return names, nil
}
