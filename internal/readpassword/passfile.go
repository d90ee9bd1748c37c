package readpassword

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/jmastr/aesfs/internal/exitcodes"
	"github.com/jmastr/aesfs/internal/tlog"
)

// readPassFileConcatenate joins the first lines of all passfiles, in order.
func readPassFileConcatenate(passfiles []string) ([]byte, error) {
	var pw []byte
	for _, p := range passfiles {
		line, err := readPassFile(p)
		if err != nil {
			return nil, err
		}
		pw = append(pw, line...)
	}
	return pw, nil
}

// readPassFile returns the first line of "passfile" without the newline.
// Anything after the first line is ignored with a warning.
func readPassFile(passfile string) ([]byte, error) {
	tlog.Info.Printf("passfile: reading from file %q", passfile)
	f, err := os.Open(passfile)
	if err != nil {
		return nil, exitcodes.Errorf(exitcodes.ReadPassword, "passfile: %w", err)
	}
	defer f.Close()
	// One byte more than allowed plus the newline lets us see an overlong line
	r := bufio.NewReader(io.LimitReader(f, maxPasswordLen+2))
	line, err := r.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, exitcodes.Errorf(exitcodes.ReadPassword, "passfile: reading %q: %w", passfile, err)
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	switch {
	case len(line) == 0:
		return nil, exitcodes.Errorf(exitcodes.PasswordEmpty, "passfile: empty first line in %q", passfile)
	case len(line) > maxPasswordLen:
		return nil, exitcodes.Errorf(exitcodes.ReadPassword, "passfile: max password length (%d bytes) exceeded", maxPasswordLen)
	}
	if rest, _ := r.Peek(1); len(rest) > 0 {
		tlog.Warn.Printf("passfile: ignoring trailing garbage after first line of %q", passfile)
	}
	return line, nil
}
