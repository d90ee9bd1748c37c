package syscallcompat

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

func TestRetryEINTR(t *testing.T) {
	calls := 0
	err := retryEINTR(func() error {
		calls++
		if calls < 3 {
			return syscall.EINTR
		}
		return syscall.ENOENT
	})
	if err != syscall.ENOENT || calls != 3 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestBlockSize(t *testing.T) {
	bs, err := BlockSize(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if bs == 0 {
		t.Error("block size is zero")
	}
	if _, err := BlockSize("/does/not/exist"); err == nil {
		t.Error("should fail on missing path")
	}
}

func TestReadlink(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 600)
	link := filepath.Join(dir, "link")
	if err := Symlink(long, link); err != nil {
		t.Fatal(err)
	}
	target, err := Readlink(link)
	if err != nil {
		t.Fatal(err)
	}
	if target != long {
		t.Errorf("target truncated to %d bytes", len(target))
	}
}

func TestMkdirLstat(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "d")
	if err := Mkdir(dir, 0700); err != nil {
		t.Fatal(err)
	}
	var st syscall.Stat_t
	if err := Lstat(dir, &st); err != nil {
		t.Fatal(err)
	}
	if st.Mode&syscall.S_IFMT != syscall.S_IFDIR {
		t.Errorf("not a directory: %o", st.Mode)
	}
	if err := Rmdir(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("directory still exists: %v", err)
	}
}
