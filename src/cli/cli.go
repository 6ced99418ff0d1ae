// Package cli defines kiln's command-line surface.
package cli

import (
	"os"

	flags "github.com/thought-machine/go-flags"
	logging "gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("cli")

// Opts is the parsed command line.
type Opts struct {
	Usage string `usage:"kiln is a cross-platform, multi-threaded build orchestrator."`

	BuildFlags struct {
		NumThreads   int      `short:"j" long:"num_threads" description:"Number of concurrent build operations. Defaults to number of CPUs + 2."`
		RepoRoot     string   `short:"r" long:"repo_root" description:"Root of the repository to build." default:"."`
		KeepGoing    bool     `short:"k" long:"keep_going" description:"Don't stop the whole build on the first failed target."`
		Rebuild      bool     `long:"rebuild" description:"Clean and rebuild the requested targets and their dependencies regardless of cache state."`
		IgnoreDeps   bool     `long:"ignore_deps" description:"Don't force a target to rebuild just because a dependency rebuilt."`
		FailureRetries int    `long:"retries" description:"Number of times to retry a target's build step before giving up."`
	} `group:"Options controlling what to build & how to build it"`

	OutputFlags struct {
		Verbosity int  `short:"v" long:"verbosity" description:"Verbosity of output (0=error .. 4=debug)" default:"2"`
		LogFile   string `long:"log_file" description:"File to echo full logging output to."`
	} `group:"Options controlling output"`

	Search struct {
		Query string `long:"search" description:"Substring or /regex/ to search target and tag names for."`
	} `group:"Options controlling target search"`

	FindTarget struct {
		Name string `long:"find_target" description:"Find a single target by exact or fuzzy name, suggesting close matches if not found."`
	} `group:"Options controlling target lookup"`

	TargetInfo struct {
		Label string `long:"target_info" description:"Print detailed information about a single target."`
	} `group:"Options controlling target lookup"`

	Args struct {
		Targets []string `positional-arg-name:"targets" description:"Targets or tags to build, e.g. //pkg:target, //pkg:all, full."`
	} `positional-args:"true"`
}

// ParseArgs parses argv (excluding argv[0]) into an Opts.
func ParseArgs(argv []string) (*Opts, error) {
	opts := &Opts{}
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.ParseArgs(argv); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}
	return opts, nil
}

// ExitCode maps a run's outcome to the process exit code convention: 0
// success, 1 build failure, 2 usage/configuration error.
func ExitCode(err error, usageError bool) int {
	if err == nil {
		return 0
	}
	if usageError {
		return 2
	}
	return 1
}

// Fatalf logs a message at error severity and exits 2, for configuration
// errors discovered before a build run can start.
func Fatalf(format string, args ...interface{}) {
	log.Errorf(format, args...)
	os.Exit(2)
}
