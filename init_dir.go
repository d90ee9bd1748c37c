package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jmastr/aesfs/internal/configfile"
	"github.com/jmastr/aesfs/internal/readpassword"
	"github.com/jmastr/aesfs/internal/tlog"
)

// createVault creates a new volume in args.cipherdir, prompting twice for
// the password.
func createVault(args *argContainer) (*configfile.Vault, error) {
	if len(args.extpass) == 0 && len(args.passfile) == 0 {
		tlog.Info.Printf("Choose a password for protecting your files.")
	} else {
		tlog.Info.Printf("Using password provided via -extpass or -passfile.")
	}
	password, confirm, err := readpassword.Twice(args.extpass, args.passfile)
	if err != nil {
		return nil, err
	}
	defer wipe(password)
	defer wipe(confirm)
	creator := tlog.ProgramName + " " + GitVersion
	return configfile.Initialize(args.cipherdir, &configfile.CreateArgs{
		Filename: args.config,
		Password: password,
		Confirm:  confirm,
		Creator:  creator,
	})
}

// initDir initializes an empty directory for use as an aesfs cipherdir.
func initDir(args *argContainer) error {
	vault, err := createVault(args)
	if err != nil {
		return err
	}
	vault.Wipe()
	tlog.Info.Printf(tlog.ColorGreen+"The aesfs filesystem has been created successfully (chunk size %d)."+tlog.ColorReset,
		vault.ChunkSize)
	wd, _ := os.Getwd()
	friendlyPath, _ := filepath.Rel(wd, args.cipherdir)
	if strings.HasPrefix(friendlyPath, "../") {
		// A relative path that starts with "../" is pretty unfriendly, just
		// keep the absolute path.
		friendlyPath = args.cipherdir
	}
	if strings.Contains(friendlyPath, " ") {
		friendlyPath = "\"" + friendlyPath + "\""
	}
	tlog.Info.Printf(tlog.ColorGrey+"You can now mount it using: %s %s MOUNTPOINT"+tlog.ColorReset,
		tlog.ProgramName, friendlyPath)
	return nil
}
