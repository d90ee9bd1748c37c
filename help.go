package main

import (
	"fmt"

	"github.com/jmastr/aesfs/internal/tlog"
)

const tUsage = "" +
	"Usage: " + tlog.ProgramName + " [OPTIONS] CIPHERDIR MOUNTPOINT\n" +
	"       " + tlog.ProgramName + " -init|-passwd|-info|-fsck [OPTIONS] CIPHERDIR\n"

const tNotes = `
Mounting an empty CIPHERDIR without a config file creates a new volume in it.
Options may be written with one or two dashes. "-o a,b" is the same as "-a -b".
A standalone "--" ends option parsing.
`

// helpShort prints the usage text for "-h" and for syntax errors.
func helpShort() {
	printVersion()
	fmt.Println()
	fmt.Print(tUsage)
	fmt.Println("\nOptions:")
	flagSet.PrintDefaults()
	fmt.Print(tNotes)
}
