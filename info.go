package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jmastr/aesfs/internal/configfile"
)

// info pretty-prints the contents of the config file at "filename" for human
// consumption, stripping out sensitive data.
// This is called when you pass the "-info" option.
func info(filename string) error {
	return printInfo(os.Stdout, filename)
}

func printInfo(w io.Writer, filename string) error {
	cf, err := configfile.Load(filename)
	if err != nil {
		return err
	}
	chunkSize := "(backing block size)"
	if cf.ChunkSize != 0 {
		chunkSize = fmt.Sprintf("%d", cf.ChunkSize)
	}
	// Pretty-print
	fmt.Fprintf(w, "Creator:      %s\n", cf.Creator)
	fmt.Fprintf(w, "EncryptedKey: %dB\n", len(cf.EncryptedKey))
	fmt.Fprintf(w, "FilenameSalt: %dB\n", len(cf.FilenameSalt))
	fmt.Fprintf(w, "ChunkSize:    %s\n", chunkSize)
	return nil
}
