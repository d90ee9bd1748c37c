package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/jmastr/aesfs/internal/exitcodes"
	"github.com/jmastr/aesfs/internal/tlog"
)

// Go cannot fork(2), so "daemonizing" means re-executing ourselves in the
// foreground with -notifypid set. The child sends SIGUSR1 to the parent once
// the filesystem is mounted. Until then the parent waits and mirrors the
// child's exit status if it dies first.

// forkChild starts the foreground child and returns the exit code for the
// parent process.
func forkChild() int {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	childArgs := append([]string{"-fg", fmt.Sprintf("-notifypid=%d", os.Getpid())}, os.Args[1:]...)
	tlog.Debug.Printf("forkChild: %q %q", exe, childArgs)
	c := exec.Command(exe, childArgs...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	mounted := make(chan os.Signal, 1)
	signal.Notify(mounted, syscall.SIGUSR1)
	go func() {
		<-mounted
		os.Exit(0)
	}()

	if err = c.Start(); err != nil {
		tlog.Fatal.Printf("forkChild: starting %s failed: %v", exe, err)
		return exitcodes.ForkChild
	}
	err = c.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
		return exitErr.ExitCode()
	default:
		tlog.Fatal.Printf("forkChild: wait: %v", err)
		return exitcodes.ForkChild
	}
}

// sendUsr1 tells the parent with the given pid that the mount is up.
func sendUsr1(pid int) {
	p, err := os.FindProcess(pid)
	if err == nil {
		err = p.Signal(syscall.SIGUSR1)
	}
	if err != nil {
		tlog.Warn.Printf("sendUsr1: %v", err)
	}
}
