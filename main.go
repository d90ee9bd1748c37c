package main

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/jmastr/aesfs/internal/configfile"
	"github.com/jmastr/aesfs/internal/exitcodes"
	"github.com/jmastr/aesfs/internal/readpassword"
	"github.com/jmastr/aesfs/internal/tlog"
)

// unlockVault reads the password and unwraps the master key stored in
// args.config.
func unlockVault(args *argContainer) (*configfile.Vault, error) {
	// Check if the file exists at all before prompting for a password
	if _, err := os.Stat(args.config); err != nil {
		tlog.Fatal.Printf("Config file not found: %v", err)
		return nil, exitcodes.Wrap(err, exitcodes.OpenConf)
	}
	pw, err := readpassword.Once(args.extpass, args.passfile, "")
	if err != nil {
		return nil, err
	}
	defer wipe(pw)
	tlog.Info.Println("Decrypting master key")
	return configfile.Unlock(args.cipherdir, args.config, pw)
}

// changePassword - change the password of config file "filename"
func changePassword(args *argContainer) error {
	if _, err := os.Stat(args.config); err != nil {
		tlog.Fatal.Printf("Config file not found: %v", err)
		return exitcodes.Wrap(err, exitcodes.OpenConf)
	}
	oldPw, err := readpassword.Once(args.extpass, args.passfile, "Old password")
	if err != nil {
		return err
	}
	defer wipe(oldPw)
	tlog.Info.Println("Please enter your new password.")
	newPw, confirm, err := readpassword.Twice(nil, nil)
	if err != nil {
		return err
	}
	defer wipe(newPw)
	defer wipe(confirm)
	err = configfile.ChangePassword(args.config, oldPw, newPw, confirm)
	if err != nil {
		return err
	}
	tlog.Info.Printf(tlog.ColorGreen + "Password changed." + tlog.ColorReset)
	return nil
}

// wipe overwrites a password buffer.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func main() {
	mxp := runtime.GOMAXPROCS(0)
	if mxp < 4 {
		// On a 2-core machine, setting maxprocs to 4 gives 10% better performance
		runtime.GOMAXPROCS(4)
	}
	// Parse all command-line options (i.e. arguments starting with "-")
	// into "args". Path arguments are parsed below.
	args, err := parseCliOpts(os.Args)
	if err != nil {
		tlog.Fatal.Printf("%v. Try '%s -help'.", err, tlog.ProgramName)
		exitcodes.Exit(err)
	}
	// Fork a child into the background if "-fg" is not set AND we are mounting
	// a filesystem. The child will do all the work.
	if !args.fg && flagSet.NArg() == 2 && countOpFlags(&args) == 0 {
		ret := forkChild()
		os.Exit(ret)
	}
	if args.debug || args.verbose >= 2 {
		tlog.Debug.Enabled = true
	}
	tlog.Debug.Printf("cli args: %q", prettyArgs())
	// "-V" brings back informational messages even when "-q" was passed
	if args.quiet && args.verbose == 0 {
		tlog.Info.Enabled = false
	}
	if args.wpanic {
		tlog.Warn.Wpanic = true
		tlog.Debug.Printf("Panicking on warnings")
	}
	// "-h"
	if args.help {
		helpShort()
		os.Exit(0)
	}
	// "-version"
	if args.version {
		printVersion()
		os.Exit(0)
	}
	// Every operation below requires CIPHERDIR. Exit if we don't have it.
	if flagSet.NArg() == 0 {
		if flagSet.NFlag() == 0 {
			// Naked call to "aesfs". Just print the help text.
			helpShort()
		} else {
			tlog.Fatal.Printf("Missing argument CIPHERDIR. Try '%s -help'.", tlog.ProgramName)
		}
		os.Exit(exitcodes.Usage)
	}
	args.cipherdir, err = filepath.Abs(flagSet.Arg(0))
	if err != nil {
		tlog.Fatal.Printf("Invalid cipherdir: %v", err)
		os.Exit(exitcodes.CipherDir)
	}
	err = isDir(args.cipherdir)
	if err != nil {
		tlog.Fatal.Printf("Invalid cipherdir: %v", err)
		os.Exit(exitcodes.CipherDir)
	}
	// "-config"
	if args.config != "" {
		args.config, err = filepath.Abs(args.config)
		if err != nil {
			tlog.Fatal.Printf("Invalid \"-config\" setting: %v", err)
			os.Exit(exitcodes.Init)
		}
		tlog.Info.Printf("Using config file at custom location %s", args.config)
	} else {
		args.config = configfile.DefaultFilename(args.cipherdir)
	}
	// Operation flags
	nOps := countOpFlags(&args)
	if nOps > 0 && flagSet.NArg() > 1 {
		tlog.Fatal.Printf("Usage: %s -init|-passwd|-info|-fsck [OPTIONS] CIPHERDIR", tlog.ProgramName)
		os.Exit(exitcodes.Usage)
	}
	switch {
	case args.info:
		err = info(args.config)
	case args.init:
		err = initDir(&args)
	case args.passwd:
		err = changePassword(&args)
	case args.fsck:
		var code int
		code, err = fsck(&args)
		if err == nil {
			os.Exit(code)
		}
	default:
		// Default operation: mount.
		if flagSet.NArg() != 2 {
			tlog.Fatal.Printf("Usage: %s [OPTIONS] CIPHERDIR MOUNTPOINT [-o COMMA-SEPARATED-OPTIONS]", tlog.ProgramName)
			os.Exit(exitcodes.Usage)
		}
		err = doMount(&args)
	}
	if err != nil {
		tlog.Fatal.Println(err)
		exitcodes.Exit(err)
	}
}
