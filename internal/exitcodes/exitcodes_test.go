package exitcodes

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	sentinel := errors.New("sentinel")
	testCases := []struct {
		err  error
		code int
	}{
		{errors.New("plain"), Other},
		{NewErr("x", Usage), Usage},
		{Wrap(sentinel, PasswordIncorrect), PasswordIncorrect},
		{fmt.Errorf("outer: %w", Wrap(sentinel, CipherDir)), CipherDir},
		{Errorf(WriteConf, "cannot write %q", "f"), WriteConf},
	}
	for _, tc := range testCases {
		if c := CodeOf(tc.err); c != tc.code {
			t.Errorf("CodeOf(%v) = %d, want %d", tc.err, c, tc.code)
		}
	}
}

func TestWrapIs(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := Wrap(sentinel, PasswordMismatch)
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is does not see through Err")
	}
	if err.Error() != "sentinel" {
		t.Errorf("wrong message %q", err.Error())
	}
}
