package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grantcarthew/cdpconn/internal/cdp"
)

// connectOptions holds the flag values for the connect command.
type connectOptions struct {
	port           int
	command        string
	maxAttempts    int
	requestTimeout time.Duration
	readLimit      int64
}

var connectOpts connectOptions

func (o connectOptions) validate() error {
	if o.maxAttempts < 1 || o.maxAttempts > cdp.MaxAttemptsLimit {
		return fmt.Errorf("--max-attempts must be between 1 and %d", cdp.MaxAttemptsLimit)
	}
	return nil
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open a DevTools WebSocket and relay raw frames",
	Long: `Discovers a target via http://127.0.0.1:<port>/json/<command>, opens its
WebSocket and relays frames: each stdin line is sent as one frame, each
received frame is printed as one stdout line.

The session ends when stdin closes, on interrupt, or when the browser closes
the connection.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectOpts.validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := runConnect(ctx, connectOpts, relayIO{
			in:     cmd.InOrStdin(),
			out:    cmd.OutOrStdout(),
			errOut: cmd.ErrOrStderr(),
			prompt: term.IsTerminal(int(os.Stdin.Fd())),
		})
		if err != nil {
			outputError(cmd.ErrOrStderr(), err)
			return &printedError{err: err}
		}
		return nil
	},
}

func init() {
	f := connectCmd.Flags()
	f.IntVar(&connectOpts.port, "port", cdp.DefaultPort, "Remote debugging port")
	f.StringVar(&connectOpts.command, "command", cdp.DefaultCommand, "Discovery command appended to /json/")
	f.IntVar(&connectOpts.maxAttempts, "max-attempts", cdp.DefaultMaxAttempts, "Discovery attempts before giving up")
	f.DurationVar(&connectOpts.requestTimeout, "timeout", cdp.DefaultRequestTimeout, "Timeout for each discovery request")
	f.Int64Var(&connectOpts.readLimit, "read-limit", cdp.DefaultReadLimit, "Maximum size in bytes of one inbound frame")
	rootCmd.AddCommand(connectCmd)
}

// relayIO is the terminal side of a relay session.
type relayIO struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	// prompt prints "> " on errOut before each line is read
	prompt bool
}

// runConnect connects and relays frames until stdin ends, ctx is cancelled
// or the browser closes the channel.
func runConnect(ctx context.Context, opts connectOptions, rio relayIO) error {
	var outMu sync.Mutex
	conn := cdp.New(cdp.Config{
		Port:           opts.port,
		Command:        opts.command,
		MaxAttempts:    opts.maxAttempts,
		RequestTimeout: opts.requestTimeout,
		ReadLimit:      opts.readLimit,
		OnRawMessage: func(payload string) {
			outMu.Lock()
			defer outMu.Unlock()
			fmt.Fprintln(rio.out, payload)
		},
		Logger: log.Logger,
	})

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect to port %d: %w", opts.port, err)
	}
	outputStatus(rio.errOut, "Connected on port %d", opts.port)

	lines := make(chan string)
	stopReading := make(chan struct{})
	defer close(stopReading)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(rio.in)
		scanner.Buffer(make([]byte, 64*1024), int(opts.readLimit))
		for {
			if rio.prompt {
				fmt.Fprint(rio.errOut, "> ")
			}
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					log.Error(err, "Reading input failed")
				}
				return
			}
			select {
			case lines <- scanner.Text():
			case <-stopReading:
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return disconnect(conn, rio.errOut)
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := conn.SendRawMessage(ctx, line); err != nil {
				_ = disconnect(conn, rio.errOut)
				return err
			}
		case <-conn.Done():
			return fmt.Errorf("browser closed the connection: %w", conn.Err())
		case <-ctx.Done():
			return disconnect(conn, rio.errOut)
		}
	}
}

func disconnect(conn *cdp.Connection, errOut io.Writer) error {
	if err := conn.Disconnect(); err != nil {
		return err
	}
	outputStatus(errOut, "Disconnected")
	return nil
}
