package contentenc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jmastr/aesfs/internal/cryptocore"
)

func testAEAD() *cryptocore.AEAD {
	return cryptocore.New(make([]byte, cryptocore.KeyLen))
}

// Round-trip over various block sizes and data lengths
func TestBlocksRoundTrip(t *testing.T) {
	aead := testAEAD()
	for _, bs := range []uint64{512, 4096, 65536} {
		ce := New(bs)
		for _, l := range []uint64{1, bs - 1, bs, bs + 1, 3*bs + 7} {
			plain := make([]byte, l)
			for i := range plain {
				plain[i] = byte(i)
			}
			var blocks [][]byte
			for buf := bytes.NewBuffer(plain); buf.Len() > 0; {
				blocks = append(blocks, buf.Next(int(bs)))
			}
			ciphertext, err := ce.EncryptBlocks(aead, blocks, 0)
			if err != nil {
				t.Fatal(err)
			}
			if HeaderLen+uint64(len(ciphertext)) != ce.PlainSizeToCipherSize(l) {
				t.Errorf("bs=%d l=%d: ciphertext length %d does not match PlainSizeToCipherSize", bs, l, len(ciphertext))
			}
			plain2, err := ce.DecryptBlocks(aead, ciphertext, 0)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(plain, plain2) {
				t.Errorf("bs=%d l=%d: round-trip mismatch", bs, l)
			}
		}
	}
}

// Every single-bit modification of a block must be detected
func TestBlockTamper(t *testing.T) {
	aead := testAEAD()
	ce := New(512)
	c, err := ce.EncryptBlock(aead, bytes.Repeat([]byte("x"), 100), 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(c)*8; i++ {
		c2 := append([]byte{}, c...)
		c2[i/8] ^= 1 << uint(i%8)
		_, err := ce.DecryptBlock(aead, c2, 3)
		if !errors.Is(err, cryptocore.ErrAuth) {
			t.Fatalf("bit %d: expected ErrAuth, got %v", i, err)
		}
	}
}

// A block moved to another position must not decrypt
func TestBlockSwap(t *testing.T) {
	aead := testAEAD()
	ce := New(512)
	c, err := ce.EncryptBlock(aead, []byte("hello"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ce.DecryptBlock(aead, c, 1); !errors.Is(err, cryptocore.ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestShortBlock(t *testing.T) {
	ce := New(512)
	_, err := ce.DecryptBlock(testAEAD(), make([]byte, cryptocore.Overhead-1), 0)
	if !errors.Is(err, ErrCorruptBlock) {
		t.Errorf("expected ErrCorruptBlock, got %v", err)
	}
}

func TestMergeBlocks(t *testing.T) {
	ce := New(16)
	testCases := []struct {
		old    string
		new    string
		offset int
		want   string
	}{
		{"aaaaaaaa", "bb", 2, "aabbaaaa"},
		{"aaaa", "bb", 3, "aaabb"},
		{"aa", "bb", 4, "aa\x00\x00bb"},
		{"", "bb", 0, "bb"},
	}
	for _, tc := range testCases {
		have := ce.MergeBlocks([]byte(tc.old), []byte(tc.new), tc.offset)
		if string(have) != tc.want {
			t.Errorf("MergeBlocks(%q, %q, %d) = %q, want %q", tc.old, tc.new, tc.offset, have, tc.want)
		}
	}
}

func TestFileHeader(t *testing.T) {
	h, err := RandomHeader()
	if err != nil {
		t.Fatal(err)
	}
	buf := h.Pack()
	if len(buf) != HeaderLen {
		t.Fatalf("wrong length %d", len(buf))
	}
	h2, err := ParseHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(h.Salt, h2.Salt) {
		t.Error("salt mismatch")
	}
	if _, err := ParseHeader(buf[:HeaderLen-1]); err == nil {
		t.Error("short header should be rejected")
	}
}

// Different file salts must give different keys
func TestFileKey(t *testing.T) {
	mk := make([]byte, cryptocore.KeyLen)
	h1, _ := RandomHeader()
	h2, _ := RandomHeader()
	a1, err := FileKey(mk, h1)
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := FileKey(mk, h2)
	c, _ := a1.Seal([]byte("secret"), nil)
	if _, err := a2.Open(c, nil); !errors.Is(err, cryptocore.ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}
