package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	zmq "github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/multifrost/dynproxy"
)

var ErrClientClosed = errors.New("client closed")

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	// Endpoint is the server endpoint to dial, e.g. "tcp://localhost:5555".
	// Empty means $DYNPROXY_ENDPOINT, or discovery of ServiceID.
	Endpoint string

	// ServiceID is looked up in Directory when Endpoint is empty
	ServiceID        string
	Directory        *Directory
	DiscoveryTimeout time.Duration

	Namespace string

	// Timeout bounds each call whose context has no deadline. Zero means
	// no bound.
	Timeout time.Duration

	Logger *zap.Logger
}

// Client calls functions of a remote Server over a ZeroMQ DEALER socket.
// It is safe for concurrent use.
type Client struct {
	cfg      ClientConfig
	logger   *zap.Logger
	endpoint string

	socket zmq.Socket
	sendMu sync.Mutex

	// Pending requests
	mu      sync.RWMutex
	pending map[string]chan *Message

	closed atomic.Bool
	stop   chan struct{}
}

// Dial connects to the server described by cfg
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = dynproxy.Logger()
	}

	endpoint, err := resolveClientEndpoint(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger.Named("client"),
		endpoint: endpoint,
		pending:  make(map[string]chan *Message),
		stop:     make(chan struct{}),
	}

	// Setup ZeroMQ DEALER socket
	identity := zmq.SocketIdentity(uuid.NewString())
	c.socket = zmq.NewDealer(context.Background(), zmq.WithID(identity))
	if err := c.socket.Dial(endpoint); err != nil {
		c.socket.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	go c.messageLoop()

	c.logger.Debug("client connected", zap.String("endpoint", endpoint))
	return c, nil
}

func resolveClientEndpoint(ctx context.Context, cfg ClientConfig) (string, error) {
	if cfg.Endpoint != "" {
		return cfg.Endpoint, nil
	}
	if env := os.Getenv(EndpointEnv); env != "" {
		return env, nil
	}
	if cfg.ServiceID == "" {
		return "", fmt.Errorf("need Endpoint, %s env or ServiceID", EndpointEnv)
	}

	dir := cfg.Directory
	if dir == nil {
		dir = NewDirectory("")
	}
	info, err := dir.Discover(ctx, cfg.ServiceID, cfg.DiscoveryTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to discover service '%s': %w", cfg.ServiceID, err)
	}
	if info.Endpoint != "" {
		return info.Endpoint, nil
	}
	return fmt.Sprintf("tcp://localhost:%d", info.Port), nil
}

// messageLoop handles incoming ZMQ messages
func (c *Client) messageLoop() {
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		// DEALER socket receives: [empty_frame, message_data]
		msg, err := c.socket.Recv()
		if err != nil {
			if c.closed.Load() {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}

		frames := msg.Frames
		if len(frames) >= 2 {
			// frames[0] is empty delimiter
			c.handleMessage(frames[1])
		}
	}
}

// handleMessage routes a reply to the request waiting for it
func (c *Client) handleMessage(data []byte) {
	msg, err := Unpack(data)
	if err != nil {
		c.logger.Warn("failed to unpack message", zap.Error(err))
		return
	}

	// Validate app
	if msg.App != AppName || msg.ID == "" {
		return
	}

	c.mu.Lock()
	ch, exists := c.pending[msg.ID]
	if exists {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()

	if !exists {
		c.logger.Debug("dropping reply without pending request", zap.String("id", msg.ID))
		return
	}
	ch <- msg
}

// roundTrip sends msg and waits for the reply with the same ID
func (c *Client) roundTrip(ctx context.Context, msg *Message, what string) (*Message, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	if _, ok := ctx.Deadline(); !ok && c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	reply := make(chan *Message, 1)
	c.mu.Lock()
	c.pending[msg.ID] = reply
	c.mu.Unlock()

	// Cleanup on exit
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	data, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("failed to pack message: %w", err)
	}

	// DEALER envelope: [empty_frame, message_data]
	c.sendMu.Lock()
	err = c.socket.Send(zmq.NewMsgFrom([]byte{}, data))
	c.sendMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out: %w", what, ctx.Err())
		}
		return nil, ctx.Err()
	case <-c.stop:
		return nil, ErrClientClosed
	case resp := <-reply:
		return resp, nil
	}
}

// Call invokes the remote function and returns its result. Arguments must be
// values dynproxy.EncodeValue accepts. Errors reported by the server are
// *RemoteCallError and match the dynproxy sentinels with errors.Is.
func (c *Client) Call(ctx context.Context, function string, args ...any) (any, error) {
	msg, err := CreateCall(function, args, c.cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("call %q: %w", function, err)
	}

	resp, err := c.roundTrip(ctx, msg, fmt.Sprintf("function '%s'", function))
	if err != nil {
		return nil, err
	}
	if resp.Type == string(MessageTypeError) {
		return nil, &RemoteCallError{Function: function, Kind: resp.ErrorKind, Message: resp.Error}
	}
	return resp.Result, nil
}

// Go invokes the remote function on its own goroutine
func (c *Client) Go(function string, args ...any) *dynproxy.Future {
	return dynproxy.Go(func() (any, error) {
		return c.Call(context.Background(), function, args...)
	})
}

// Functions returns the descriptors of the functions the server offers
func (c *Client) Functions(ctx context.Context) ([]dynproxy.FunctionInfo, error) {
	resp, err := c.roundTrip(ctx, CreateList(c.cfg.Namespace), "list")
	if err != nil {
		return nil, err
	}
	if resp.Type == string(MessageTypeError) {
		return nil, &RemoteCallError{Kind: resp.ErrorKind, Message: resp.Error}
	}
	return resp.Functions, nil
}

// Ping sends a heartbeat and returns the round-trip time
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.roundTrip(ctx, CreateHeartbeat(), "heartbeat"); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Shutdown asks the server to stop. It does not wait for a reply.
func (c *Client) Shutdown() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	data, err := NewMessage(MessageTypeShutdown).Pack()
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.socket.Send(zmq.NewMsgFrom([]byte{}, data))
}

// Endpoint returns the endpoint the client is connected to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close stops the client. Calls waiting for a reply fail with ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Signal stop
	close(c.stop)

	c.mu.Lock()
	c.pending = make(map[string]chan *Message)
	c.mu.Unlock()

	return c.socket.Close()
}
