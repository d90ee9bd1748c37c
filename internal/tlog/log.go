// Package tlog provides the "toggled loggers" Debug, Info, Warn and Fatal.
// Each one can be switched on and off at runtime and colors its output when
// stdout is a terminal.
package tlog

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/syslog"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	// ProgramName is used in log reports.
	ProgramName = "aesfs"
	wpanicMsg   = "-wpanic turns this warning into a panic: "
)

// Terminal escape sequences. They stay empty unless stdout is a terminal.
var (
	ColorReset  string
	ColorGrey   string
	ColorRed    string
	ColorGreen  string
	ColorYellow string
)

// JSONDump returns obj as indented JSON, or the marshal error text.
func JSONDump(obj interface{}) string {
	b, err := json.MarshalIndent(obj, "", "\t")
	if err != nil {
		return err.Error()
	}
	return string(b)
}

// toggledLogger is a log.Logger that can be switched off.
type toggledLogger struct {
	Enabled bool
	// Wpanic makes every message panic after it was logged
	Wpanic bool
	// prefix and postfix wrap each message, used for coloring
	prefix  string
	postfix string

	Logger *log.Logger
}

func newLogger(w io.Writer, enabled bool, color string) *toggledLogger {
	l := &toggledLogger{
		Enabled: enabled,
		Logger:  log.New(w, "", 0),
	}
	if color != "" {
		l.prefix = color
		l.postfix = ColorReset
	}
	return l
}

func trimNewline(msg string) string {
	return strings.TrimSuffix(msg, "\n")
}

func (l *toggledLogger) output(msg string) {
	msg = trimNewline(msg)
	l.Logger.Print(l.prefix + msg + l.postfix)
	if l.Wpanic {
		l.Logger.Panic(wpanicMsg + msg)
	}
}

func (l *toggledLogger) Printf(format string, v ...interface{}) {
	if l.Enabled {
		l.output(fmt.Sprintf(format, v...))
	}
}

func (l *toggledLogger) Println(v ...interface{}) {
	if l.Enabled {
		l.output(fmt.Sprint(v...))
	}
}

var (
	// Debug is off by default, "-d" or "-VV" turn it on.
	Debug *toggledLogger
	// Info is on by default, "-q" turns it off.
	Info *toggledLogger
	// Warn reports conditions that are not fatal by themselves, like a
	// corrupt block or an undecodable file name. "-wpanic" makes it panic.
	Warn *toggledLogger
	// Fatal is used right before we exit with an error.
	Fatal *toggledLogger
)

func init() {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		ColorReset = "\033[0m"
		ColorGrey = "\033[2m"
		ColorRed = "\033[31m"
		ColorGreen = "\033[32m"
		ColorYellow = "\033[33m"
	}
	Debug = newLogger(os.Stdout, false, "")
	Info = newLogger(os.Stdout, true, "")
	Warn = newLogger(os.Stderr, true, ColorYellow)
	Fatal = newLogger(os.Stderr, true, ColorRed)
}

// SwitchToSyslog sends this logger's output to syslog with priority p
// (facility | severity) and drops the colors.
func (l *toggledLogger) SwitchToSyslog(p syslog.Priority) {
	w, err := syslog.New(p, ProgramName)
	if err != nil {
		Warn.Printf("SwitchToSyslog: %v", err)
		return
	}
	l.Logger.SetOutput(w)
	l.prefix = ""
	l.postfix = ""
}

// SwitchLoggerToSyslog sends the standard library logger, which go-fuse
// writes to, to syslog.
func SwitchLoggerToSyslog() {
	w, err := syslog.New(syslog.LOG_USER|syslog.LOG_WARNING, ProgramName)
	if err != nil {
		Warn.Printf("SwitchLoggerToSyslog: %v", err)
		return
	}
	log.SetPrefix("go-fuse: ")
	// syslog adds its own timestamp
	log.SetFlags(0)
	log.SetOutput(w)
}
