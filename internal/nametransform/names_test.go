package nametransform

import (
	"bytes"
	"errors"
	"strings"
	"syscall"
	"testing"
)

func newTestTransform() *NameTransform {
	return New(bytes.Repeat([]byte{0x42}, 32))
}

func TestPad16(t *testing.T) {
	var s [][]byte
	s = append(s, []byte("foo"))
	s = append(s, []byte("1234567890123456"))
	s = append(s, []byte("12345678901234567"))
	s = append(s, []byte("12345678901234567abcdefg"))

	for i := range s {
		orig := s[i]
		padded := pad16(orig)
		if len(padded) <= len(orig) {
			t.Errorf("Padded length not bigger than orig: %d", len(padded))
		}
		if len(padded)%16 != 0 {
			t.Errorf("Length is not aligend: %d", len(padded))
		}
		unpadded, err := unPad16(padded)
		if err != nil {
			t.Error("unPad16 returned error:", err)
		}
		if !bytes.Equal(orig, unpadded) {
			t.Error("Content mismatch orig vs unpadded")
		}
	}
}

// TestUnpad16Garbage - unPad16 should never crash on corrupt or malicious inputs
func TestUnpad16Garbage(t *testing.T) {
	var testCases [][]byte
	testCases = append(testCases, make([]byte, 0))
	testCases = append(testCases, make([]byte, 16))
	testCases = append(testCases, make([]byte, 1))
	testCases = append(testCases, make([]byte, 17))
	testCases = append(testCases, bytes.Repeat([]byte{16}, 16))
	testCases = append(testCases, bytes.Repeat([]byte{17}, 16))
	for _, v := range testCases {
		_, err := unPad16([]byte(v))
		if err == nil {
			t.Fail()
		}
	}
}

func TestEncryptDecryptName(t *testing.T) {
	n := newTestTransform()
	names := []string{"a", "foo.txt", "1234567890123456", strings.Repeat("x", 175), "ä ö ü", ".hidden"}
	for _, name := range names {
		c, err := n.EncryptName(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if strings.ContainsAny(c, "/\x00") {
			t.Errorf("%q: token %q contains forbidden bytes", name, c)
		}
		// Deterministic
		c2, _ := n.EncryptName(name)
		if c != c2 {
			t.Errorf("%q: not deterministic", name)
		}
		p, err := n.DecryptName(c)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if p != name {
			t.Errorf("round-trip mismatch: %q != %q", p, name)
		}
	}
}

// The token must not contain "." so it can never collide with the config
// file name.
func TestTokenAlphabet(t *testing.T) {
	n := newTestTransform()
	for i := 1; i < 100; i++ {
		c, err := n.EncryptName(strings.Repeat("z", i))
		if err != nil {
			t.Fatal(err)
		}
		if strings.ContainsAny(c, ".-") {
			t.Errorf("token %q contains unexpected characters", c)
		}
	}
}

func TestNameTooLong(t *testing.T) {
	n := newTestTransform()
	_, err := n.EncryptName(strings.Repeat("x", 200))
	if err != syscall.ENAMETOOLONG {
		t.Errorf("expected ENAMETOOLONG, got %v", err)
	}
}

func TestInvalidNames(t *testing.T) {
	n := newTestTransform()
	for _, name := range []string{"", ".", "..", "a/b", "a\x00b"} {
		if _, err := n.EncryptName(name); err == nil {
			t.Errorf("%q should be rejected", name)
		}
	}
}

func TestDecryptNameGarbage(t *testing.T) {
	n := newTestTransform()
	testCases := []string{
		"",
		"!!!!",
		// 3 bytes, not aligned
		"AAAA",
		// not base64
		"aesfs.conf",
		// 18 bytes, not aligned
		strings.Repeat("A", 24),
	}
	for _, tc := range testCases {
		_, err := n.DecryptName(tc)
		if !errors.Is(err, ErrNameDecode) {
			t.Errorf("%q: expected ErrNameDecode, got %v", tc, err)
		}
	}
	// Token from a different key
	other := New(bytes.Repeat([]byte{0x43}, 32))
	c, _ := other.EncryptName("secret.txt")
	if p, err := n.DecryptName(c); err == nil && p == "secret.txt" {
		t.Error("decrypted with the wrong key")
	}
}

func TestEncryptDecryptPath(t *testing.T) {
	n := newTestTransform()
	testCases := []string{"", "a", "a/b/c", "/a/b", "a/b/", "dir//file"}
	for _, tc := range testCases {
		c, err := n.EncryptPath(tc)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Count(c, "/") != strings.Count(tc, "/") {
			t.Errorf("%q: separators not preserved: %q", tc, c)
		}
		p, err := n.DecryptPath(c)
		if err != nil {
			t.Fatal(err)
		}
		if p != tc {
			t.Errorf("round-trip mismatch: %q != %q", p, tc)
		}
	}
	// Same segment name gives the same token everywhere
	c1, _ := n.EncryptPath("x/same")
	c2, _ := n.EncryptPath("y/same")
	if c1[strings.Index(c1, "/"):] != c2[strings.Index(c2, "/"):] {
		t.Error("identical segment names should give identical tokens")
	}
}

func TestIsValidName(t *testing.T) {
	testCases := []struct {
		name  string
		valid bool
	}{
		{"", false},
		{".", false},
		{"..", false},
		{"...", true},
		{"a/b", false},
		{"a\x00", false},
		{strings.Repeat("x", NameMax), true},
		{strings.Repeat("x", NameMax+1), false},
	}
	for _, tc := range testCases {
		err := IsValidName(tc.name)
		if (err == nil) != tc.valid {
			t.Errorf("IsValidName(%q) = %v", tc.name, err)
		}
	}
}
