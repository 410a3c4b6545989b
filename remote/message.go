package remote

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/multifrost/dynproxy"
)

const AppName = "dynproxy_rpc_v1"

// MessageType represents the type of RPC message
type MessageType string

const (
	MessageTypeCall      MessageType = "call"
	MessageTypeResponse  MessageType = "response"
	MessageTypeError     MessageType = "error"
	MessageTypeList      MessageType = "list"
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypeShutdown  MessageType = "shutdown"
)

// errorKindNotFound marks an error response for an unknown function
const errorKindNotFound = "function_not_found"

// Message is the RPC envelope exchanged between Client and Server
type Message struct {
	App       string                  `msgpack:"app"`
	ID        string                  `msgpack:"id"`
	Type      string                  `msgpack:"type"`
	Timestamp float64                 `msgpack:"timestamp"`
	Function  string                  `msgpack:"function,omitempty"`
	Args      []any                   `msgpack:"args,omitempty"`
	Namespace string                  `msgpack:"namespace,omitempty"`
	Result    any                     `msgpack:"result"`
	Functions []dynproxy.FunctionInfo `msgpack:"functions,omitempty"`
	Error     string                  `msgpack:"error,omitempty"`
	ErrorKind string                  `msgpack:"error_kind,omitempty"`
	Metadata  map[string]any          `msgpack:"metadata,omitempty"`
}

// NewMessage creates a new message with defaults
func NewMessage(msgType MessageType) *Message {
	return &Message{
		App:       AppName,
		ID:        uuid.New().String(),
		Type:      string(msgType),
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
}

// CreateCall creates a function call message. Arguments must be encodable
// dynamic values (see dynproxy.EncodeValue).
func CreateCall(function string, args []any, namespace string) (*Message, error) {
	encoded := make([]any, len(args))
	for i, arg := range args {
		v, err := dynproxy.EncodeValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		encoded[i] = v
	}

	msg := NewMessage(MessageTypeCall)
	msg.Function = function
	msg.Args = encoded
	msg.Namespace = namespace
	return msg, nil
}

// CreateResponse creates a response message
func CreateResponse(result any, msgID string) *Message {
	msg := NewMessage(MessageTypeResponse)
	msg.Result = result
	msg.ID = msgID
	return msg
}

// CreateError creates an error message. The error kind is carried along so
// the client can rebuild a typed error.
func CreateError(err error, msgID string) *Message {
	msg := NewMessage(MessageTypeError)
	msg.Error = err.Error()
	msg.ErrorKind = string(dynproxy.KindOf(err))
	if errors.Is(err, dynproxy.ErrFunctionNotFound) {
		msg.ErrorKind = errorKindNotFound
	}
	msg.ID = msgID
	return msg
}

// CreateList creates a request for the server's function descriptors
func CreateList(namespace string) *Message {
	msg := NewMessage(MessageTypeList)
	msg.Namespace = namespace
	return msg
}

// CreateHeartbeat creates a heartbeat request message
func CreateHeartbeat() *Message {
	msg := NewMessage(MessageTypeHeartbeat)
	msg.Metadata = map[string]any{
		"hb_timestamp": msg.Timestamp,
	}
	return msg
}

// CreateHeartbeatResponse creates a heartbeat response message
func CreateHeartbeatResponse(requestID string, originalTimestamp float64) *Message {
	msg := NewMessage(MessageTypeHeartbeat)
	msg.ID = requestID
	msg.Metadata = map[string]any{
		"hb_timestamp": originalTimestamp,
		"hb_response":  true,
	}
	return msg
}

// Pack serializes the message to msgpack
func (m *Message) Pack() ([]byte, error) {
	return msgpack.Marshal(m)
}

const maxMessageSize = 10 * 1024 * 1024 // 10MB

// Unpack deserializes a message and normalizes its dynamic values
func Unpack(data []byte) (*Message, error) {
	if len(data) > maxMessageSize {
		return nil, fmt.Errorf("message size %d exceeds limit %d", len(data), maxMessageSize)
	}

	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	if math.IsNaN(msg.Timestamp) || math.IsInf(msg.Timestamp, 0) {
		msg.Timestamp = 0.0
	}

	for i, arg := range msg.Args {
		v, err := dynproxy.NormalizeValue(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid args: index %d: %w", i, err)
		}
		msg.Args[i] = v
	}

	result, err := dynproxy.NormalizeValue(msg.Result)
	if err != nil {
		return nil, fmt.Errorf("invalid result: %w", err)
	}
	msg.Result = result

	for k, v := range msg.Metadata {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			msg.Metadata[k] = 0.0
		}
	}

	return &msg, nil
}

// RemoteCallError represents an error reported by the server
type RemoteCallError struct {
	Function string
	Kind     string
	Message  string
}

func (e *RemoteCallError) Error() string {
	if e.Function == "" {
		return "remote call failed: " + e.Message
	}
	return fmt.Sprintf("remote call %q failed: %s", e.Function, e.Message)
}

// Unwrap exposes the server-side error kind for errors.Is support
func (e *RemoteCallError) Unwrap() error {
	switch e.Kind {
	case "":
		return nil
	case errorKindNotFound:
		return dynproxy.ErrFunctionNotFound
	default:
		return &dynproxy.Error{Kind: dynproxy.Kind(e.Kind), Detail: e.Message}
	}
}
