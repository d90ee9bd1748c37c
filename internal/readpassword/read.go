// Package readpassword reads a password from the terminal, from stdin, from
// a file or from an external program.
package readpassword

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"

	"github.com/jmastr/aesfs/internal/exitcodes"
	"github.com/jmastr/aesfs/internal/tlog"
)

const (
	// 2kB limit like EncFS
	maxPasswordLen = 2048
)

// Once tries to get a password from the user, either from the terminal,
// extpass, passfile or stdin. Leave "prompt" empty to use the default
// "Password: " prompt.
func Once(extpass []string, passfile []string, prompt string) ([]byte, error) {
	if len(passfile) != 0 {
		return readPassFileConcatenate(passfile)
	}
	if len(extpass) != 0 {
		return readPasswordExtpass(extpass)
	}
	if prompt == "" {
		prompt = "Password"
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return readPasswordStdin(prompt)
	}
	return readPasswordTerminal(prompt + ": ")
}

// Twice is the same as Once but will prompt twice if we get the password from
// the terminal. Both entries are returned, comparing them is up to the
// caller. Non-interactive sources are read once and returned twice.
func Twice(extpass []string, passfile []string) (password []byte, confirm []byte, err error) {
	if len(passfile) != 0 || len(extpass) != 0 || !term.IsTerminal(int(os.Stdin.Fd())) {
		password, err = Once(extpass, passfile, "")
		if err != nil {
			return nil, nil, err
		}
		return password, append([]byte{}, password...), nil
	}
	password, err = readPasswordTerminal("Password: ")
	if err != nil {
		return nil, nil, err
	}
	confirm, err = readPasswordTerminal("Repeat: ")
	if err != nil {
		return nil, nil, err
	}
	return password, confirm, nil
}

// readPasswordTerminal reads a line from the terminal.
// Fails on read error or empty result.
func readPasswordTerminal(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	fmt.Fprint(os.Stderr, prompt)
	// term.ReadPassword removes the trailing newline
	p, err := term.ReadPassword(fd)
	fmt.Fprintf(os.Stderr, "\n")
	if err != nil {
		return nil, exitcodes.Errorf(exitcodes.ReadPassword, "could not read password from terminal: %v", err)
	}
	if len(p) == 0 {
		return nil, exitcodes.NewErr("password is empty", exitcodes.PasswordEmpty)
	}
	return p, nil
}

// readPasswordStdin reads a line from stdin.
// Fails on read error or empty result.
func readPasswordStdin(prompt string) ([]byte, error) {
	tlog.Info.Printf("Reading %s from stdin", strings.ToLower(prompt))
	p, err := readLineUnbuffered(os.Stdin)
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, exitcodes.Errorf(exitcodes.PasswordEmpty, "got empty %s from stdin", strings.ToLower(prompt))
	}
	return p, nil
}

// readPasswordExtpass executes the "extpass" program and returns the first line
// of the output.
// A single-element "extpass" is split on spaces, like a shell would do.
func readPasswordExtpass(extpass []string) ([]byte, error) {
	tlog.Info.Println("Reading password from extpass program")
	var parts []string
	if len(extpass) == 1 {
		parts = strings.Split(extpass[0], " ")
	} else {
		parts = extpass
	}
	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Stderr = os.Stderr
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, exitcodes.Errorf(exitcodes.ReadPassword, "extpass pipe setup failed: %v", err)
	}
	err = cmd.Start()
	if err != nil {
		return nil, exitcodes.Errorf(exitcodes.ReadPassword, "extpass cmd start failed: %v", err)
	}
	p, err := readLineUnbuffered(pipe)
	pipe.Close()
	if werr := cmd.Wait(); werr != nil && err == nil {
		return nil, exitcodes.Errorf(exitcodes.ReadPassword, "extpass program returned an error: %v", werr)
	}
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, exitcodes.NewErr("extpass: password is empty", exitcodes.PasswordEmpty)
	}
	return p, nil
}

// readLineUnbuffered reads single bytes from "r" util it gets "\n" or EOF.
// The returned string does NOT contain the trailing "\n".
func readLineUnbuffered(r io.Reader) ([]byte, error) {
	var l bytes.Buffer
	b := make([]byte, 1)
	for {
		if l.Len() > maxPasswordLen {
			return nil, exitcodes.Errorf(exitcodes.ReadPassword, "maximum password length of %d bytes exceeded", maxPasswordLen)
		}
		n, err := r.Read(b)
		if err == io.EOF {
			return l.Bytes(), nil
		}
		if err != nil {
			return nil, exitcodes.Errorf(exitcodes.ReadPassword, "readLineUnbuffered: %v", err)
		}
		if n == 0 {
			continue
		}
		if b[0] == '\n' {
			return l.Bytes(), nil
		}
		l.WriteByte(b[0])
	}
}
