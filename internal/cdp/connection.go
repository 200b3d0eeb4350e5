package cdp

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/go-logr/logr"
)

// DefaultPort is the conventional Chrome remote debugging port.
const DefaultPort = 9222

// DefaultCommand is the discovery command used by Connect.
const DefaultCommand = "new"

// DefaultReadLimit caps a single inbound frame. DevTools responses such as
// screenshots and DOM snapshots routinely exceed the websocket default.
const DefaultReadLimit = 64 << 20

// Config configures a Connection. Zero values select the defaults.
type Config struct {
	Port    int
	Command string
	// MaxAttempts bounds discovery requests. Values above MaxAttemptsLimit
	// are capped to it.
	MaxAttempts    int
	RequestTimeout time.Duration
	ReadLimit      int64

	// Backoff creates the wait policy for one discovery run.
	Backoff func() backoff.BackOff

	// HTTPClient is used by the default discovery client.
	HTTPClient *http.Client

	// Fetcher replaces the default DiscoveryClient.
	Fetcher TargetFetcher

	// Dialer opens the channel. Defaults to WebSocketDialer(ReadLimit).
	Dialer Dialer

	// OnRawMessage receives every inbound frame while the channel is open.
	// It runs on the dispatch goroutine and must not call Disconnect.
	OnRawMessage RawMessageHandler

	// OnDispose runs once if the channel closes without Disconnect.
	// It runs on the dispatch goroutine and must not call Disconnect.
	OnDispose DisposeHandler

	Logger logr.Logger
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventClose
)

// event is one notification from the channel to the dispatch goroutine.
type event struct {
	kind    eventKind
	payload []byte
	err     error
}

// Connection owns one persistent channel to a DevTools target.
type Connection struct {
	config  Config
	log     logr.Logger
	fetcher TargetFetcher

	mu       sync.Mutex
	state    ConnectionState
	conn     Conn
	closeErr error

	writeMu sync.Mutex

	events chan event
	// detached is closed by Disconnect to stop both loops
	detached chan struct{}
	// closedCh is closed on entering StateClosed
	closedCh chan struct{}
	// loops tracks the read and dispatch goroutines
	loops sync.WaitGroup
}

// New creates an unconnected Connection.
func New(cfg Config) *Connection {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxAttempts > MaxAttemptsLimit {
		cfg.MaxAttempts = MaxAttemptsLimit
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if cfg.Backoff == nil {
		cfg.Backoff = func() backoff.BackOff { return NewSchedule() }
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer(cfg.ReadLimit)
	}

	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	log = log.WithValues("port", cfg.Port)

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = &DiscoveryClient{
			Port:       cfg.Port,
			Timeout:    cfg.RequestTimeout,
			HTTPClient: cfg.HTTPClient,
			Logger:     log,
		}
	}

	log.V(1).Info("Going to connect")

	return &Connection{
		config:   cfg,
		log:      log,
		fetcher:  fetcher,
		state:    StateUnconnected,
		events:   make(chan event),
		detached: make(chan struct{}),
		closedCh: make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done returns a channel that is closed once the connection is closed,
// by Disconnect or by the peer.
func (c *Connection) Done() <-chan struct{} {
	return c.closedCh
}

// Err returns the error that closed the channel without Disconnect, if any.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// Connect discovers the target's WebSocket URL and opens the channel.
// Discovery is retried with backoff; a failed dial is not retried.
// On failure the connection returns to StateUnconnected.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUnconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrConnectPrecondition, state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	result, err := DiscoverWithRetry(ctx, c.log, c.fetcher, c.config.Command, c.config.MaxAttempts, c.config.Backoff())
	if err != nil {
		c.setState(StateUnconnected)
		return err
	}
	c.log.V(1).Info("WebSocket URL acquired", "url", result.WebSocketURL)

	conn, err := c.config.Dialer(ctx, result.WebSocketURL)
	if err != nil {
		c.log.Error(err, "Error in web socket")
		c.setState(StateUnconnected)
		return &TransportOpenError{URL: result.WebSocketURL, Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()
	c.log.V(1).Info("Web socket opened")

	c.loops.Add(2)
	go c.readLoop(conn)
	go c.dispatchLoop()
	return nil
}

// Disconnect detaches the frame handler, closes the channel and moves to
// StateClosed. It fails with ErrDisconnectPrecondition unless the channel
// is open. No frame is delivered after Disconnect returns.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.state != StateOpen {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrDisconnectPrecondition, state)
	}
	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	close(c.detached)
	close(c.closedCh)
	c.mu.Unlock()

	err := conn.Close(websocket.StatusNormalClosure, "client disconnecting")

	// Wait for the loops so no frame is delivered after we return.
	c.loops.Wait()

	if err != nil {
		c.log.V(1).Info("Close handshake did not complete", "error", err.Error())
	}
	c.log.V(1).Info("Disconnected")
	return nil
}

// SendRawMessage writes payload verbatim as one text frame.
// It fails with ErrSendPrecondition unless the channel is open.
func (c *Connection) SendRawMessage(ctx context.Context, payload string) error {
	c.mu.Lock()
	state, conn := c.state, c.conn
	c.mu.Unlock()

	if state != StateOpen {
		return fmt.Errorf("%w (state %s)", ErrSendPrecondition, state)
	}

	c.writeMu.Lock()
	err := conn.Write(ctx, websocket.MessageText, []byte(payload))
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Connection) setState(state ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// readLoop turns channel reads into events until the channel fails or the
// connection is detached.
func (c *Connection) readLoop(conn Conn) {
	defer c.loops.Done()

	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)

		ev := event{kind: eventMessage, payload: data}
		if err != nil {
			ev = event{kind: eventClose, err: err}
		}

		select {
		case c.events <- ev:
		case <-c.detached:
			return
		}

		if err != nil {
			return
		}
	}
}

// dispatchLoop is the single consumer of channel events. Frames are
// delivered in arrival order.
func (c *Connection) dispatchLoop() {
	defer c.loops.Done()

	for {
		select {
		case <-c.detached:
			return
		case ev := <-c.events:
			switch ev.kind {
			case eventMessage:
				if c.State() != StateOpen {
					return
				}
				if c.config.OnRawMessage != nil {
					c.config.OnRawMessage(string(ev.payload))
				}
			case eventClose:
				c.dispose(ev.err)
				return
			}
		}
	}
}

// dispose handles a channel that closed while open and Disconnect was not
// called.
func (c *Connection) dispose(err error) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.closeErr = err
	conn := c.conn
	c.conn = nil
	close(c.closedCh)
	c.mu.Unlock()

	if closeErr := conn.Close(websocket.StatusNormalClosure, ""); closeErr != nil {
		c.log.V(1).Info("Close after peer close failed", "error", closeErr.Error())
	}

	c.log.Info("Channel closed by peer", "reason", err.Error())
	if c.config.OnDispose != nil {
		c.config.OnDispose(err)
	}
}
