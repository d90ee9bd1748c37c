package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/jmastr/aesfs/internal/tlog"
)

const goFuseModule = "github.com/hanwen/go-fuse/v2"

// Release builds set these with
//
//	go build -ldflags "-X main.GitVersion=... -X main.BuildDate=..."
//
// Otherwise they are filled from the module build info.
var (
	GitVersion     string
	GitVersionFuse string
	BuildDate      string
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	settings := make(map[string]string)
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	if GitVersion == "" {
		GitVersion = info.Main.Version
		if rev := settings["vcs.revision"]; GitVersion == "(devel)" && rev != "" {
			GitVersion = "vcs.revision=" + rev
		}
		if settings["vcs.modified"] == "true" {
			GitVersion += "-dirty"
		}
	}
	if GitVersionFuse == "" {
		for _, m := range info.Deps {
			if m.Path != goFuseModule {
				continue
			}
			GitVersionFuse = m.Version
			if m.Replace != nil {
				GitVersionFuse = m.Replace.Version
			}
		}
	}
	if BuildDate == "" && settings["vcs.time"] != "" {
		BuildDate = "vcs.time=" + settings["vcs.time"]
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "[unknown]"
	}
	return s
}

// printVersion prints a line like
// aesfs v1.0-3-gcf99cfd; go-fuse v2.5.1; 2026-05-12 go1.24 linux/amd64
func printVersion() {
	fmt.Printf("%s %s; go-fuse %s; %s %s %s/%s\n",
		tlog.ProgramName, orUnknown(GitVersion), orUnknown(GitVersionFuse),
		orUnknown(BuildDate), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
