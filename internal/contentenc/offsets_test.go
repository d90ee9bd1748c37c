package contentenc

import (
	"testing"
)

// TestSizeToSize tests CipherSizeToPlainSize and PlainSizeToCipherSize
func TestSizeToSize(t *testing.T) {
	for _, bs := range []uint64{512, 4096} {
		ce := New(bs)
		for l := uint64(0); l < 5*bs; l++ {
			p := ce.PlainSizeToCipherSize(l)
			if l2 := ce.CipherSizeToPlainSize(p); l2 != l {
				t.Fatalf("bs=%d: CipherSizeToPlainSize(PlainSizeToCipherSize(%d)) = %d", bs, l, l2)
			}
			if p2 := ce.PlainSizeToCipherSize(ce.CipherSizeToPlainSize(p)); p2 != p {
				t.Fatalf("bs=%d: PlainSizeToCipherSize(CipherSizeToPlainSize(%d)) = %d", bs, p, p2)
			}
			if l > 0 && p <= ce.PlainSizeToCipherSize(l-1) {
				t.Fatalf("bs=%d: PlainSizeToCipherSize is not monotonic at %d", bs, l)
			}
		}
	}
}

func TestSizeFormula(t *testing.T) {
	ce := New(4096)
	testCases := []struct {
		plain  uint64
		cipher uint64
	}{
		{0, 16},
		{1, 16 + 32 + 1},
		{4096, 16 + 32 + 4096},
		{4097, 16 + 2*32 + 4097},
		{3 * 4096, 16 + 3*32 + 3*4096},
	}
	for _, tc := range testCases {
		if c := ce.PlainSizeToCipherSize(tc.plain); c != tc.cipher {
			t.Errorf("PlainSizeToCipherSize(%d) = %d, want %d", tc.plain, c, tc.cipher)
		}
		if p := ce.CipherSizeToPlainSize(tc.cipher); p != tc.plain {
			t.Errorf("CipherSizeToPlainSize(%d) = %d, want %d", tc.cipher, p, tc.plain)
		}
	}
}

// Corrupt sizes must not underflow
func TestCipherSizeCorrupt(t *testing.T) {
	ce := New(4096)
	for _, c := range []uint64{1, 15, 17, 16 + 32, 16 + 4128 + 5} {
		p := ce.CipherSizeToPlainSize(c)
		if p > c {
			t.Errorf("CipherSizeToPlainSize(%d) = %d: underflow", c, p)
		}
	}
	if ce.CipherSizeToPlainSize(16+4128+5) != 4096 {
		t.Error("trailing fragment should be ignored")
	}
}

func TestBlockNoToCipherOff(t *testing.T) {
	ce := New(4096)
	for i := uint64(0); i < 10; i++ {
		if ce.BlockNoToCipherOff(i) != 16+i*(32+4096) {
			t.Errorf("BlockNoToCipherOff(%d) wrong", i)
		}
		if ce.CipherOffToBlockNo(ce.BlockNoToCipherOff(i)) != i {
			t.Errorf("CipherOffToBlockNo(BlockNoToCipherOff(%d)) wrong", i)
		}
	}
}

func TestExplodePlainRange(t *testing.T) {
	ce := New(4096)
	if len(ce.ExplodePlainRange(100, 0)) != 0 {
		t.Error("zero-length range should give no blocks")
	}
	blocks := ce.ExplodePlainRange(4000, 5000)
	if len(blocks) != 3 {
		t.Fatalf("want 3 blocks, got %d", len(blocks))
	}
	if blocks[0].BlockNo != 0 || blocks[0].Skip != 4000 || blocks[0].Length != 96 || !blocks[0].IsPartial() {
		t.Errorf("block 0 wrong: %+v", blocks[0])
	}
	if blocks[1].BlockNo != 1 || blocks[1].Skip != 0 || blocks[1].Length != 4096 || blocks[1].IsPartial() {
		t.Errorf("block 1 wrong: %+v", blocks[1])
	}
	if blocks[2].BlockNo != 2 || blocks[2].Skip != 0 || blocks[2].Length != 808 || !blocks[2].IsPartial() {
		t.Errorf("block 2 wrong: %+v", blocks[2])
	}
	off, length := ce.JointCiphertextRange(blocks)
	if off != 16 || length != 3*(4096+32) {
		t.Errorf("JointCiphertextRange = %d, %d", off, length)
	}
}

func TestCropBlock(t *testing.T) {
	ce := New(16)
	b := ce.ExplodePlainRange(4, 8)[0]
	d := []byte("0123456789abcdef")
	if string(b.CropBlock(d)) != "456789ab" {
		t.Errorf("got %q", b.CropBlock(d))
	}
	if string(b.CropBlock(d[:6])) != "45" {
		t.Errorf("got %q", b.CropBlock(d[:6]))
	}
	if len(b.CropBlock(d[:2])) != 0 {
		t.Error("short block should crop to nothing")
	}
}
