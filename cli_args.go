package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/jmastr/aesfs/internal/configfile"
	"github.com/jmastr/aesfs/internal/exitcodes"
	"github.com/jmastr/aesfs/internal/tlog"
)

// argContainer stores the parsed CLI options and arguments
type argContainer struct {
	debug, init, passwd, fg, version, quiet, nosyslog, wpanic,
	allow_other, ro, info, fsck, fusedebug, help bool
	// verbose counts "-V" flags: 1 = info, 2 = debug
	verbose int
	cipherdir, mountpoint, ko, fsname string
	// -extpass and -passfile can be passed multiple times
	extpass, passfile []string
	// Configuration file name override
	config    string
	notifypid int
	// Helper variables that are NOT cli options all start with an underscore
	// _configCustom is true when the user sets a custom config file name.
	_configCustom bool
}

var flagSet *flag.FlagSet

// prefixOArgs transform options passed via "-o foo,bar" into regular options
// like "-foo -bar" and prefixes them to the command line.
// Testcases in TestPrefixOArgs().
func prefixOArgs(osArgs []string) ([]string, error) {
	// Need at least 3, example: aesfs -o    foo,bar
	//                               ^ 0    ^ 1    ^ 2
	if len(osArgs) < 3 {
		return osArgs, nil
	}
	// Passing "--" disables "-o" parsing. Ignore element 0 (program name).
	for _, v := range osArgs[1:] {
		if v == "--" {
			return osArgs, nil
		}
	}
	// Find and extract "-o foo,bar"
	var otherArgs, oOpts []string
	for i := 1; i < len(osArgs); i++ {
		if osArgs[i] == "-o" {
			// Last argument?
			if i+1 >= len(osArgs) {
				return nil, fmt.Errorf("the \"-o\" option requires an argument")
			}
			oOpts = strings.Split(osArgs[i+1], ",")
			// Skip over the arguments to "-o"
			i++
		} else if strings.HasPrefix(osArgs[i], "-o=") {
			oOpts = strings.Split(osArgs[i][3:], ",")
		} else {
			otherArgs = append(otherArgs, osArgs[i])
		}
	}
	// Start with program name
	newArgs := []string{osArgs[0]}
	// Add options from "-o"
	for _, o := range oOpts {
		if o == "" {
			continue
		}
		if o == "o" || o == "-o" {
			return nil, fmt.Errorf("you can't pass \"-o\" to \"-o\"")
		}
		newArgs = append(newArgs, "-"+o)
	}
	// Add other arguments
	newArgs = append(newArgs, otherArgs...)
	return newArgs, nil
}

// convertToDoubleDash converts args like "-debug" (Go stdlib `flag` style)
// into "--debug" (spf13/pflag style).
// pflag would interpret "-debug" as a combination of single-letter shorthands,
// which is not what we want. "-h" and "-V", "-VV" stay shorthands.
func convertToDoubleDash(args []string) (out []string) {
	if args == nil {
		return nil
	}
	out = append(out, args...)
	for i, v := range out {
		// Leave "--" alone, everything after it is a positional argument
		if v == "--" {
			break
		}
		if v == "-h" || isVerboseShorthand(v) {
			continue
		}
		if len(v) >= 2 && v[0] == '-' && v[1] != '-' {
			out[i] = "-" + out[i]
		}
	}
	return out
}

// isVerboseShorthand matches "-V", "-VV", ...
func isVerboseShorthand(v string) bool {
	return len(v) >= 2 && v[0] == '-' && strings.Trim(v[1:], "V") == ""
}

// parseCliOpts - parse command line options (i.e. arguments that start with "-")
func parseCliOpts(osArgs []string) (args argContainer, err error) {
	if len(osArgs) == 0 {
		osArgs = []string{tlog.ProgramName}
	}
	osArgs, err = prefixOArgs(osArgs)
	if err != nil {
		return args, exitcodes.Wrap(err, exitcodes.Usage)
	}
	osArgs = convertToDoubleDash(osArgs)

	flagSet = flag.NewFlagSet(tlog.ProgramName, flag.ContinueOnError)
	flagSet.Usage = func() {}
	flagSet.SetOutput(os.Stderr)
	flagSet.SortFlags = false

	flagSet.BoolVar(&args.debug, "d", false, "")
	flagSet.BoolVar(&args.debug, "debug", false, "Enable debug output")
	flagSet.BoolVar(&args.fusedebug, "fusedebug", false, "Enable fuse library debug output")
	flagSet.BoolVar(&args.init, "init", false, "Initialize encrypted directory")
	flagSet.BoolVar(&args.passwd, "passwd", false, "Change password")
	flagSet.BoolVar(&args.info, "info", false, "Display information about CIPHERDIR")
	flagSet.BoolVar(&args.fsck, "fsck", false, "Run a filesystem check on CIPHERDIR")
	flagSet.BoolVar(&args.fg, "f", false, "")
	flagSet.BoolVar(&args.fg, "fg", false, "Stay in the foreground")
	flagSet.BoolVar(&args.version, "version", false, "Print version and exit")
	flagSet.BoolVar(&args.quiet, "q", false, "")
	flagSet.BoolVar(&args.quiet, "quiet", false, "Quiet - silence informational messages")
	flagSet.CountVarP(&args.verbose, "verbose", "V", "Increase verbosity. Once: info, twice: debug (implies -fg)")
	flagSet.BoolVar(&args.nosyslog, "nosyslog", false, "Do not redirect output to syslog when running in the background")
	flagSet.BoolVar(&args.wpanic, "wpanic", false, "When encountering a warning, panic and exit immediately")
	flagSet.BoolVar(&args.allow_other, "allow_other", false, "Allow other users to access the filesystem. "+
		"Only works if user_allow_other is set in /etc/fuse.conf.")
	flagSet.BoolVar(&args.ro, "ro", false, "Mount the filesystem read-only")
	flagSet.BoolVarP(&args.help, "help", "h", false, "Show this help text")

	flagSet.StringVar(&args.config, "config", "", "Use specified config file instead of CIPHERDIR/"+configfile.ConfDefaultName)
	flagSet.StringVar(&args.ko, "ko", "", "Pass additional options directly to the kernel, comma-separated list")
	flagSet.StringVar(&args.fsname, "fsname", "", "Override the filesystem name")

	flagSet.StringArrayVar(&args.extpass, "extpass", nil, "Use external program for the password prompt")
	flagSet.StringArrayVar(&args.passfile, "passfile", nil, "Read password from file")

	flagSet.IntVar(&args.notifypid, "notifypid", 0, "Send USR1 to the specified process after "+
		"successful mount - used internally for daemonization")
	flagSet.MarkHidden("notifypid")

	var dummyString string
	flagSet.StringVar(&dummyString, "o", "", "For compatibility with mount(1), options can be also passed as a comma-separated list to -o on the end.")

	// Actual parsing
	err = flagSet.Parse(osArgs[1:])
	if err != nil {
		return args, exitcodes.Errorf(exitcodes.Usage, "invalid command line: %v", err)
	}
	if flagSet.Changed("config") {
		args._configCustom = true
	}
	if len(args.extpass) > 0 && len(args.passfile) > 0 {
		return args, exitcodes.NewErr("the options -extpass and -passfile cannot be used at the same time", exitcodes.Usage)
	}
	// "-VV" is a debugging session, the user wants to see the output
	if args.verbose >= 2 {
		args.fg = true
	}
	if countOpFlags(&args) > 1 {
		return args, exitcodes.NewErr("at most one of -init, -passwd, -info, -fsck is allowed", exitcodes.Usage)
	}
	return args, nil
}

// prettyArgs pretty-prints the command-line arguments.
func prettyArgs() string {
	pa := fmt.Sprintf("%v", os.Args)
	// Get rid of "[" and "]"
	pa = pa[1 : len(pa)-1]
	return pa
}

// countOpFlags counts the number of operation flags we were passed.
func countOpFlags(args *argContainer) int {
	var count int
	for _, f := range []bool{args.info, args.passwd, args.init, args.fsck} {
		if f {
			count++
		}
	}
	return count
}
