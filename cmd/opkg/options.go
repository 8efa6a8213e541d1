package main

import (
	"flag"
	"os"

	"github.com/peterbourgon/ff/v3"

	"github.com/openpackage/opkg/internal/logging"
	"github.com/openpackage/opkg/internal/opkgerr"
)

// commonFlags are the logging/workspace flags shared by every subcommand,
// grounded on the teacher's cmd/launcher/options.go precedence chain:
// built-in default < config file < environment variable < flag.
type commonFlags struct {
	debug   *bool
	logFile *string
	workDir *string
}

func bindCommonFlags(flagset *flag.FlagSet) *commonFlags {
	return &commonFlags{
		debug:   flagset.Bool("debug", false, "enable debug-level logging"),
		logFile: flagset.String("log-file", "", "path to a rotating log file (optional)"),
		workDir: flagset.String("workdir", "", "workspace root (default: current directory)"),
	}
}

// parseWithPrecedence applies the ff precedence chain documented above for
// a given subcommand's flagset.
func parseWithPrecedence(flagset *flag.FlagSet, args []string) error {
	return ff.Parse(flagset, args,
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("OPKG"),
	)
}

func (c *commonFlags) newLogger() *logging.MultiSlogger {
	return logging.NewRootLogger(logging.Options{Debug: *c.debug, LogFile: *c.logFile})
}

func (c *commonFlags) workspaceRoot() (string, error) {
	if *c.workDir != "" {
		return *c.workDir, nil
	}
	return os.Getwd()
}

func usageError(message string) error {
	return opkgerr.New(opkgerr.Validation, message)
}

func homeDir() (string, error) {
	if h := os.Getenv("OPKG_HOME"); h != "" {
		return h, nil
	}
	return os.UserHomeDir()
}
