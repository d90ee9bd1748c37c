package volume

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/pkg/xattr"

	"github.com/jmastr/aesfs/internal/cryptocore"
)

// xattrFile creates an encrypted file and returns its backing path. Skips
// the test when the backing filesystem has no user xattrs.
func xattrFile(t *testing.T, vol *Volume) string {
	h, err := vol.Create("f", os.O_RDWR, 0600)
	if err != nil {
		t.Fatal(err)
	}
	h.Release()
	cPath, _ := vol.TranslatePath("f")
	err = xattr.LSet(cPath, "user.support_check", []byte("x"))
	if errors.Is(err, syscall.ENOTSUP) || errors.Is(err, syscall.EOPNOTSUPP) {
		t.Skipf("no user xattrs on %s", vol.CipherDir())
	} else if err != nil {
		t.Fatal(err)
	}
	xattr.LRemove(cPath, "user.support_check")
	return cPath
}

func TestXattrRoundTrip(t *testing.T) {
	vol := newTestVolume(t, 4096)
	cPath := xattrFile(t, vol)
	secret := []byte("very secret value")
	if err := vol.SetXattr(cPath, "user.secret", secret, 0); err != nil {
		t.Fatal(err)
	}
	// Empty values are legal
	if err := vol.SetXattr(cPath, "user.empty", nil, 0); err != nil {
		t.Fatal(err)
	}
	data, err := vol.GetXattr(cPath, "user.secret")
	if err != nil || !bytes.Equal(data, secret) {
		t.Errorf("GetXattr: %q, %v", data, err)
	}
	if data, err = vol.GetXattr(cPath, "user.empty"); err != nil || len(data) != 0 {
		t.Errorf("GetXattr empty: %q, %v", data, err)
	}
	names, err := vol.ListXattr(cPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "user.secret,user.empty" && strings.Join(names, ",") != "user.empty,user.secret" {
		t.Errorf("ListXattr: %q", names)
	}
	if err = vol.RemoveXattr(cPath, "user.secret"); err != nil {
		t.Fatal(err)
	}
	if _, err = vol.GetXattr(cPath, "user.secret"); err == nil {
		t.Error("removed attribute still readable")
	}
}

// Neither the attribute name nor its value show up on the backing file
func TestXattrBackingIsEncrypted(t *testing.T) {
	vol := newTestVolume(t, 4096)
	cPath := xattrFile(t, vol)
	secret := []byte("very secret value")
	if err := vol.SetXattr(cPath, "user.secret", secret, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := xattr.LGet(cPath, "user.secret"); err == nil {
		t.Error("plaintext attribute name present on backing file")
	}
	cNames, err := xattr.LList(cPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(cNames) != 1 || !strings.HasPrefix(cNames[0], XattrStorePrefix) {
		t.Fatalf("backing attributes: %q", cNames)
	}
	if strings.Contains(cNames[0], "secret") {
		t.Errorf("backing name %q leaks the plaintext", cNames[0])
	}
	raw, err := xattr.LGet(cPath, cNames[0])
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, secret) {
		t.Error("backing value contains the plaintext")
	}
	if len(raw) != len(secret)+cryptocore.Overhead {
		t.Errorf("backing value has %d bytes, want %d", len(raw), len(secret)+cryptocore.Overhead)
	}
	// Tampering is detected
	raw[len(raw)-1] ^= 1
	if err = xattr.LSet(cPath, cNames[0], raw); err != nil {
		t.Fatal(err)
	}
	if _, err = vol.GetXattr(cPath, "user.secret"); !errors.Is(err, cryptocore.ErrAuth) {
		t.Errorf("tampered value: %v", err)
	}
}

// Foreign backing attributes are hidden, undecodable ones are reported
func TestListXattrForeign(t *testing.T) {
	vol := newTestVolume(t, 4096)
	cPath := xattrFile(t, vol)
	xattr.LSet(cPath, "user.foreign", []byte("x"))
	xattr.LSet(cPath, XattrStorePrefix+"garbage!", []byte("x"))
	vol.MitigatedCorruptions = make(chan string, 10)
	names, err := vol.ListXattr(cPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("ListXattr: %q", names)
	}
	select {
	case item := <-vol.MitigatedCorruptions:
		if !strings.Contains(item, "garbage!") {
			t.Errorf("wrong report %q", item)
		}
	default:
		t.Error("undecodable attribute not reported")
	}
}

// The same plaintext as file name and as attribute name encrypts
// differently
func TestXattrNameKeySeparation(t *testing.T) {
	vol := newTestVolume(t, 4096)
	cAttr, err := vol.encryptXattrName("user.x")
	if err != nil {
		t.Fatal(err)
	}
	token, _ := vol.NameTransform().EncryptName("user.x")
	if cAttr[len(XattrStorePrefix):] == token {
		t.Error("xattr name and file name share a token")
	}
	attr, err := vol.decryptXattrName(cAttr)
	if err != nil || attr != "user.x" {
		t.Errorf("decryptXattrName: %q, %v", attr, err)
	}
	if _, err = vol.encryptXattrName("user." + strings.Repeat("x", 200)); err == nil {
		t.Error("overlong name accepted")
	}
}
