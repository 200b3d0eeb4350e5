package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grantcarthew/cdpconn/internal/logger"
)

// Version is set at build time.
var Version = "dev"

// Debug enables verbose debug output.
var Debug bool

// NoColor disables color output.
var NoColor bool

// log is shared by all commands. Its level is set from -v/--verbosity and --debug.
var log = logger.New("cdpconn", os.Stderr)

var rootCmd = &cobra.Command{
	Use:           "cdpconn",
	Short:         "Raw Chrome DevTools Protocol connection",
	Long:          "cdpconn discovers a debuggable target on a local remote-debugging port, opens its WebSocket and relays raw protocol frames.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if Debug && !cmd.Flags().Changed("verbosity") {
			log.SetVerbosity(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable verbose debug output (same as -v 1)")
	rootCmd.PersistentFlags().BoolVar(&NoColor, "no-color", false, "Disable color output")
	log.AddLevelFlag(rootCmd.PersistentFlags())
	rootCmd.SetVersionTemplate(`cdpconn version {{.Version}}
`)
}

// Execute runs the root command.
func Execute() error {
	defer log.Flush()
	return rootCmd.Execute()
}

// shouldUseColor determines if color output should be used based on flags and environment.
func shouldUseColor() bool {
	if NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// outputStatus writes an informational line to w.
func outputStatus(w io.Writer, format string, args ...any) {
	if shouldUseColor() {
		color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
		return
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// outputError writes an error line to w, with a colored prefix on terminals.
func outputError(w io.Writer, err error) {
	if shouldUseColor() {
		color.New(color.FgRed).Fprint(w, "Error:")
		fmt.Fprintf(w, " %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// printedError marks an error that has already been written to stderr.
type printedError struct {
	err error
}

func (e *printedError) Error() string { return e.err.Error() }
func (e *printedError) Unwrap() error { return e.err }

// IsPrintedError reports whether err was already shown to the user.
func IsPrintedError(err error) bool {
	_, ok := err.(*printedError)
	return ok
}
