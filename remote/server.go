package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	zmq "github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/multifrost/dynproxy"
)

// EndpointEnv supplies the endpoint when a config leaves it empty
const EndpointEnv = "DYNPROXY_ENDPOINT"

const defaultNamespace = "default"

// ServerConfig holds configuration for creating a Server
type ServerConfig struct {
	// Endpoint is the ZeroMQ endpoint to listen on, e.g. "tcp://*:5555".
	// Empty means $DYNPROXY_ENDPOINT, or a free loopback port when
	// ServiceID is set.
	Endpoint string

	// ServiceID registers the server in Directory under this name
	ServiceID string
	Directory *Directory

	// Namespace filters incoming requests. Requests with an empty namespace
	// are always accepted.
	Namespace string

	Logger *zap.Logger
}

// Server serves the callables of a dynproxy.Registry over a ZeroMQ ROUTER
// socket. Each call runs on its own goroutine.
type Server struct {
	cfg      ServerConfig
	registry *dynproxy.Registry
	logger   *zap.Logger

	socket   zmq.Socket
	sendMu   sync.Mutex
	endpoint string
	port     int

	ctx      context.Context
	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once

	// closing stops new calls from being tracked once Stop has begun
	stateMu sync.Mutex
	closing bool
	calls   sync.WaitGroup
}

// NewServer creates a server for registry
func NewServer(registry *dynproxy.Registry, cfg ServerConfig) *Server {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if cfg.ServiceID != "" && cfg.Directory == nil {
		cfg.Directory = NewDirectory("")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = dynproxy.Logger()
	}

	return &Server{
		cfg:      cfg,
		registry: registry,
		logger:   logger.Named("server"),
		done:     make(chan struct{}),
	}
}

// Start binds the socket and begins the message loop
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	endpoint, err := s.resolveEndpoint()
	if err != nil {
		return err
	}
	port, err := endpointPort(endpoint)
	if err != nil {
		return err
	}
	if port != 0 {
		if err := ValidatePort(port); err != nil {
			return err
		}
	}

	// Create ROUTER socket
	s.ctx = ctx
	s.socket = zmq.NewRouter(ctx)
	if err := s.socket.Listen(endpoint); err != nil {
		s.socket.Close()
		return fmt.Errorf("failed to bind to %s: %w", endpoint, err)
	}
	s.endpoint = endpoint
	s.port = port

	if s.cfg.ServiceID != "" {
		if err := s.cfg.Directory.Register(s.cfg.ServiceID, dialEndpoint(endpoint), port); err != nil {
			s.socket.Close()
			return fmt.Errorf("failed to register service: %w", err)
		}
	}

	s.running.Store(true)
	go s.messageLoop()

	s.logger.Info("server ready",
		zap.String("endpoint", endpoint),
		zap.String("service_id", s.cfg.ServiceID),
		zap.Strings("functions", s.registry.Names()))
	return nil
}

func (s *Server) resolveEndpoint() (string, error) {
	if s.cfg.Endpoint != "" {
		return s.cfg.Endpoint, nil
	}
	if env := os.Getenv(EndpointEnv); env != "" {
		return env, nil
	}
	if s.cfg.ServiceID != "" {
		port, err := findFreePort()
		if err != nil {
			return "", fmt.Errorf("find free port: %w", err)
		}
		return fmt.Sprintf("tcp://127.0.0.1:%d", port), nil
	}
	return "", fmt.Errorf("need Endpoint, %s env or ServiceID", EndpointEnv)
}

// messageLoop handles incoming messages
func (s *Server) messageLoop() {
	for s.running.Load() {
		// ROUTER socket receives: [sender_id, empty_frame, message_data]
		msg, err := s.socket.Recv()
		if err != nil {
			if !s.running.Load() {
				return
			}
			if s.ctx.Err() != nil {
				go s.Stop()
				return
			}
			s.logger.Warn("receive failed", zap.Error(err))
			continue
		}

		frames := msg.Frames
		if len(frames) >= 3 {
			senderID := frames[0]
			// frames[1] is empty delimiter
			s.handleMessage(frames[2], senderID)
		}
	}
}

// handleMessage processes an incoming message
func (s *Server) handleMessage(data []byte, senderID []byte) {
	msg, err := Unpack(data)
	if err != nil {
		s.logger.Warn("failed to unpack message", zap.Error(err))
		return
	}

	// Validate app
	if msg.App != AppName {
		return
	}

	// Check namespace
	if msg.Namespace != "" && msg.Namespace != s.cfg.Namespace {
		s.logger.Debug("dropping message for other namespace",
			zap.String("namespace", msg.Namespace), zap.String("id", msg.ID))
		return
	}

	switch msg.Type {
	case string(MessageTypeCall):
		if !s.track() {
			return
		}
		go func() {
			defer s.calls.Done()
			s.handleFunctionCall(msg, senderID)
		}()
	case string(MessageTypeList):
		response := NewMessage(MessageTypeResponse)
		response.ID = msg.ID
		response.Functions = s.registry.Infos()
		s.sendResponse(response, senderID)
	case string(MessageTypeHeartbeat):
		s.handleHeartbeat(msg, senderID)
	case string(MessageTypeShutdown):
		s.logger.Info("shutdown requested", zap.String("id", msg.ID))
		go s.Stop()
	}
}

// track registers an in-flight call unless the server is stopping
func (s *Server) track() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.closing {
		return false
	}
	s.calls.Add(1)
	return true
}

// handleHeartbeat echoes a heartbeat with the original timestamp
func (s *Server) handleHeartbeat(msg *Message, senderID []byte) {
	var originalTs float64
	if msg.Metadata != nil {
		if ts, ok := msg.Metadata["hb_timestamp"].(float64); ok {
			originalTs = ts
		}
	}
	s.sendResponse(CreateHeartbeatResponse(msg.ID, originalTs), senderID)
}

// handleFunctionCall processes a function call message
func (s *Server) handleFunctionCall(msg *Message, senderID []byte) {
	log := s.logger.With(zap.String("id", msg.ID), zap.String("function", msg.Function))

	// Validate message
	if msg.Function == "" || msg.ID == "" {
		s.sendResponse(CreateError(errors.New("message missing 'function' or 'id' field"), msg.ID), senderID)
		return
	}

	// Check for private functions
	if strings.HasPrefix(msg.Function, "_") {
		err := fmt.Errorf("cannot call private function %q", msg.Function)
		s.sendResponse(CreateError(err, msg.ID), senderID)
		return
	}

	result, err := s.registry.Call(msg.Function, msg.Args)
	if err == nil {
		result, err = dynproxy.EncodeValue(result)
	}
	if err != nil {
		log.Debug("call failed", zap.Error(err))
		s.sendResponse(CreateError(err, msg.ID), senderID)
		return
	}

	log.Debug("call succeeded")
	s.sendResponse(CreateResponse(result, msg.ID), senderID)
}

// sendResponse sends a response message with ROUTER envelope
func (s *Server) sendResponse(msg *Message, senderID []byte) {
	data, err := msg.Pack()
	if err != nil {
		s.logger.Error("failed to pack response", zap.String("id", msg.ID), zap.Error(err))
		return
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if !s.running.Load() {
		return
	}

	// ROUTER envelope: [sender_id, empty_frame, response_data]
	zmqMsg := zmq.NewMsgFrom(senderID, []byte{}, data)
	if err := s.socket.Send(zmqMsg); err != nil {
		s.logger.Error("failed to send response", zap.String("id", msg.ID), zap.Error(err))
	}
}

// Stop stops the server, waits for in-flight calls and cleans up resources.
// It is safe to call more than once.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.stateMu.Lock()
		s.closing = true
		s.stateMu.Unlock()
		s.calls.Wait()

		s.sendMu.Lock()
		s.running.Store(false)
		s.sendMu.Unlock()

		// Cleanup directory entry
		if s.cfg.ServiceID != "" {
			if uerr := s.cfg.Directory.Unregister(s.cfg.ServiceID); uerr != nil {
				s.logger.Warn("failed to unregister service", zap.Error(uerr))
			}
		}

		if s.socket != nil {
			err = s.socket.Close()
		}
		close(s.done)
		s.logger.Info("server stopped", zap.String("endpoint", s.endpoint))
	})
	return err
}

// Run starts the server and blocks until ctx is done, a shutdown message
// arrives or the process receives SIGINT or SIGTERM.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		s.logger.Info("received signal, shutting down")
	case <-s.done:
	}
	return s.Stop()
}

// Endpoint returns the endpoint the server listens on
func (s *Server) Endpoint() string {
	return s.endpoint
}

// Port returns the TCP port, or 0 for non-TCP endpoints
func (s *Server) Port() int {
	return s.port
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Done returns a channel that closes when the server stops
func (s *Server) Done() <-chan struct{} {
	return s.done
}
