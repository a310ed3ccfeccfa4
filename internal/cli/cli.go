package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/spf13/afero"
)

// Version is reported by -version.
const Version = "0.1.0"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Execute parses the global flags, dispatches args to a subcommand and turns
// a non-zero exit status into an ExitError. Command results go to outW,
// diagnostics and logs to errW.
func Execute(args []string, outW, errW io.Writer, fs afero.Fs) error {
	slog.Debug("CLI parser started.")
	meta, rest, err := parseGlobal(args, outW, errW, fs)
	if err != nil {
		return err
	}

	c := cli.NewCLI("stackmark", Version)
	c.Args = rest
	c.HelpWriter = outW
	c.ErrorWriter = errW
	c.Commands = Commands(meta)

	code, err := c.Run()
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// Commands returns the subcommand factories sharing meta.
func Commands(meta *Meta) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"build": func() (cli.Command, error) {
			return &BuildCommand{Meta: meta}, nil
		},
		"plan": func() (cli.Command, error) {
			return &PlanCommand{Meta: meta}, nil
		},
		"graph": func() (cli.Command, error) {
			return &GraphCommand{Meta: meta}, nil
		},
		"invalidate": func() (cli.Command, error) {
			return &InvalidateCommand{Meta: meta}, nil
		},
	}
}

// parseGlobal reads the flags placed before the subcommand name.
func parseGlobal(args []string, outW, errW io.Writer, fs afero.Fs) (*Meta, []string, error) {
	flagSet := flag.NewFlagSet("stackmark", flag.ContinueOnError)
	flagSet.SetOutput(errW)
	flagSet.Usage = func() {
		fmt.Fprint(errW, `
Usage:
  stackmark [global options] <command> [options]

Global options:
`)
		flagSet.PrintDefaults()
	}

	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	versionFlag := flagSet.Bool("version", false, "Print the version and exit.")

	var rest []string
	if err := flagSet.Parse(args); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			return nil, nil, &ExitError{Code: 2, Message: err.Error()}
		}
		// The command list is printed by the subcommand dispatcher.
		rest = []string{"-help"}
	} else {
		rest = flagSet.Args()
	}
	if *versionFlag {
		rest = []string{"-version"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, nil, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, nil, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("Global flags parsed.", "log_level", logLevel, "log_format", logFormat)

	meta := &Meta{
		Ui:        &cli.BasicUi{Writer: outW, ErrorWriter: errW},
		Fs:        fs,
		Out:       outW,
		Logs:      errW,
		LogLevel:  logLevel,
		LogFormat: logFormat,
	}
	return meta, rest, nil
}
