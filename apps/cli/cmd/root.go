package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	verboseFlag int // 0=off, 1=-v, 2=-vv, 3=-vvv
	quietFlag   bool
	noColorFlag bool
	configFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "xmlhttp",
	Short: "XMLHttpRequest semantics from the command line.",
	Long: `xmlhttp sends requests through a browser-style XMLHttpRequest
emulation: ready states, lifecycle events, response types, redirects and
the forbidden header policy behave the way a page script would see them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		var e *exitError
		if !errors.As(err, &e) || !e.reported {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv, -vvv for more detail)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("XMLHTTP_QUIET", false), "Suppress all output except failures (env: XMLHTTP_QUIET)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output (env: XMLHTTP_NO_COLOR)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("XMLHTTP_CONFIG", ""), "Path to config file (env: XMLHTTP_CONFIG)")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

// exitError carries the process exit code for err. reported is set when
// the formatter already showed err.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func reported(code int, err error) error {
	return &exitError{code: code, err: err, reported: true}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	// flag and argument errors come straight from cobra
	return ExitUsageError
}

func logLevel(verbose int, quiet bool) logrus.Level {
	switch {
	case quiet:
		return logrus.ErrorLevel
	case verbose >= 3:
		return logrus.TraceLevel
	case verbose == 2:
		return logrus.DebugLevel
	case verbose == 1:
		return logrus.InfoLevel
	default:
		return logrus.WarnLevel
	}
}

func newLogger(w io.Writer, noColor bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logLevel(verboseFlag, quietFlag))
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:    noColor,
		DisableTimestamp: true,
	})
	return logger
}
