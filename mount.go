package main

import (
	"bytes"
	"fmt"
	"log/syslog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/jmastr/aesfs/internal/configfile"
	"github.com/jmastr/aesfs/internal/exitcodes"
	"github.com/jmastr/aesfs/internal/fusefrontend"
	"github.com/jmastr/aesfs/internal/tlog"
	"github.com/jmastr/aesfs/internal/volume"
)

// doMount unlocks (or creates) the volume in CIPHERDIR and serves it at
// MOUNTPOINT until it is unmounted.
func doMount(args *argContainer) error {
	var err error
	args.mountpoint, err = filepath.Abs(flagSet.Arg(1))
	if err != nil {
		return exitcodes.Errorf(exitcodes.MountPoint, "invalid mountpoint: %w", err)
	}
	if err = checkMountpoint(args.cipherdir, args.mountpoint); err != nil {
		return exitcodes.Wrap(err, exitcodes.MountPoint)
	}
	tlog.Debug.Printf("cli args: %#v", args)
	// May prompt for the password
	rn, wipeKeys, err := initFuseFrontend(args)
	if err != nil {
		return err
	}
	defer wipeKeys()
	srv, err := initGoFuse(rn, args)
	if err != nil {
		return err
	}
	tlog.Info.Println(tlog.ColorGreen + "Filesystem mounted and ready." + tlog.ColorReset)
	// notifypid is set when we are the background child of forkChild
	if args.notifypid > 0 {
		detach(args)
	}
	setOpenFileLimit()
	// Unmount on Ctrl-C instead of leaving a dead mountpoint behind
	handleSigint(srv, args.mountpoint, wipeKeys)
	// The KDF scratch memory is garbage now
	debug.FreeOSMemory()
	// Returns after the kernel sent the unmount request
	srv.Wait()
	return nil
}

// checkMountpoint rejects mountpoints that overlap with the cipherdir and
// mountpoints that are not empty directories. Both paths must be absolute.
func checkMountpoint(cipherdir string, mountpoint string) error {
	// The mount would hide the cipherdir from ourselves
	if cipherdir == mountpoint || strings.HasPrefix(cipherdir, mountpoint+"/") {
		return fmt.Errorf("mountpoint %q would shadow cipherdir %q", mountpoint, cipherdir)
	}
	// The mountpoint would show up encrypted inside itself
	if strings.HasPrefix(mountpoint, cipherdir+"/") {
		return fmt.Errorf("mountpoint %q is inside cipherdir %q", mountpoint, cipherdir)
	}
	if err := isEmptyDir(mountpoint); err != nil {
		return fmt.Errorf("invalid mountpoint: %w", err)
	}
	return nil
}

// detach finishes daemonizing: logs go to syslog, we leave the terminal
// session and tell the waiting parent that the mount is up.
func detach(args *argContainer) {
	// Do not keep the parent's working directory busy
	os.Chdir("/")
	if !args.nosyslog {
		tlog.Info.SwitchToSyslog(syslog.LOG_USER | syslog.LOG_INFO)
		tlog.Debug.SwitchToSyslog(syslog.LOG_USER | syslog.LOG_DEBUG)
		tlog.Warn.SwitchToSyslog(syslog.LOG_USER | syslog.LOG_WARNING)
		tlog.Fatal.SwitchToSyslog(syslog.LOG_USER | syslog.LOG_CRIT)
		tlog.SwitchLoggerToSyslog()
	}
	// A Ctrl-C in the shell that started us must not reach the daemon
	if _, err := syscall.Setsid(); err != nil {
		tlog.Warn.Printf("Setsid: %v", err)
	}
	sendUsr1(args.notifypid)
}

// setOpenFileLimit tries to increase the open file limit to 4096 (the default hard
// limit on Linux).
func setOpenFileLimit() {
	var lim syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim)
	if err != nil {
		tlog.Warn.Printf("Getting RLIMIT_NOFILE failed: %v", err)
		return
	}
	if lim.Cur >= 4096 {
		return
	}
	lim.Cur = 4096
	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &lim)
	if err != nil {
		tlog.Warn.Printf("Setting RLIMIT_NOFILE to %+v failed: %v", lim, err)
	}
}

// openVault unlocks the volume in args.cipherdir. An empty CIPHERDIR
// without a config file gets a new volume, after asking for the password
// twice.
func openVault(args *argContainer) (*configfile.Vault, error) {
	state, err := configfile.Probe(args.cipherdir, args.config)
	if err != nil {
		return nil, err
	}
	if state == configfile.Uninitialized {
		tlog.Info.Printf("CIPHERDIR %q is empty, creating a new volume.", args.cipherdir)
		return createVault(args)
	}
	return unlockVault(args)
}

// initFuseFrontend - initialize aesfs/fusefrontend
func initFuseFrontend(args *argContainer) (rn *fusefrontend.RootNode, wipeKeys func(), err error) {
	vault, err := openVault(args)
	if err != nil {
		return nil, nil, err
	}
	frontendArgs := fusefrontend.Args{
		Cipherdir: args.cipherdir,
		ReadOnly:  args.ro,
	}
	// Only root can hand new files to the user who created them
	if args.allow_other && os.Getuid() == 0 {
		frontendArgs.PreserveOwner = true
	}
	tlog.Debug.Printf("frontendArgs: %s", tlog.JSONDump(frontendArgs))
	tlog.Debug.Printf("chunk size: %d", vault.ChunkSize)

	vol := volume.New(args.cipherdir, vault)
	rn = fusefrontend.NewRootNode(frontendArgs, vol)
	return rn, vault.Wipe, nil
}

// fuseOptions translates the command line into go-fuse mount options.
func fuseOptions(args *argContainer) *fs.Options {
	sec := time.Second
	opts := &fs.Options{
		// libfuse defaults
		EntryTimeout:    &sec,
		AttrTimeout:     &sec,
		NegativeTimeout: &sec,
	}
	m := &opts.MountOptions
	// The kernel caps requests at 128kiB anyway, say so explicitly
	m.MaxWrite = fuse.MAX_KERNEL_WRITE
	m.Options = []string{fmt.Sprintf("max_read=%d", fuse.MAX_KERNEL_WRITE)}
	m.Debug = args.fusedebug
	if args.allow_other {
		m.AllowOther = true
		// Let the kernel enforce file permissions for other users
		m.Options = append(m.Options, "default_permissions")
	}
	if args.ro {
		m.Options = append(m.Options, "ro")
	}
	// "Filesystem" column in df. Commas would split the mount option string.
	m.FsName = args.cipherdir
	if args.fsname != "" {
		m.FsName = args.fsname
	}
	if strings.Contains(m.FsName, ",") {
		escaped := strings.ReplaceAll(m.FsName, ",", "_")
		tlog.Warn.Printf("fsname %q is shown as %q", m.FsName, escaped)
		m.FsName = escaped
	}
	// "Type" column in df: fuse.aesfs
	m.Name = tlog.ProgramName
	// -ko goes last so it can override the options above
	if args.ko != "" {
		m.Options = append(m.Options, strings.Split(args.ko, ",")...)
	}
	return opts
}

func initGoFuse(rn *fusefrontend.RootNode, args *argContainer) (*fuse.Server, error) {
	opts := fuseOptions(args)
	if args.allow_other {
		tlog.Info.Printf(tlog.ColorYellow + "-allow_other is set, other users can access the mount " +
			"as far as file permissions allow." + tlog.ColorReset)
	}
	tlog.Debug.Printf("mount options: %v", opts.MountOptions.Options)
	// Create and Mkdir carry the requested mode, the process umask must
	// not mask it a second time.
	syscall.Umask(0)
	srv, err := fs.Mount(args.mountpoint, rn, opts)
	if err != nil {
		msg := strings.TrimSpace(err.Error())
		if runtime.GOOS == "linux" && !haveFusermount() {
			msg += " (fusermount not found, is FUSE installed?)"
		}
		return nil, exitcodes.Errorf(exitcodes.FuseNewServer, "fs.Mount failed: %s", msg)
	}
	return srv, nil
}

// haveFusermount finds out if a "fusermount" or "fusermount3" binary is
// available.
func haveFusermount() bool {
	for _, name := range []string{"fusermount3", "fusermount"} {
		cmd := exec.Command(name, "-V")
		var out bytes.Buffer
		cmd.Stdout = &out
		if cmd.Run() == nil {
			tlog.Debug.Printf("haveFusermount: %s", strings.TrimSpace(out.String()))
			return true
		}
	}
	return false
}

func handleSigint(srv *fuse.Server, mountpoint string, wipeKeys func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	signal.Notify(ch, syscall.SIGTERM)
	go func() {
		<-ch
		unmount(srv, mountpoint)
		wipeKeys()
		os.Exit(exitcodes.SigInt)
	}()
}

func unmount(srv *fuse.Server, mountpoint string) {
	err := srv.Unmount()
	if err != nil {
		tlog.Warn.Printf("unmount: srv.Unmount returned %v", err)
		if runtime.GOOS == "linux" {
			// MacOSX does not support lazy unmount
			tlog.Info.Printf("Trying lazy unmount")
			cmd := exec.Command("fusermount", "-u", "-z", mountpoint)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			cmd.Run()
		}
	}
}
