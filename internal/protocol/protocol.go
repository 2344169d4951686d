// Package protocol defines the two-message contract spoken with a subset
// worker: one INIT carrying the codepoint set immediately after the worker
// starts, then one SUBSET per transform request. Messages travel as
// length-prefixed msgpack frames so font binaries cross the boundary
// without a text encoding.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxMessageSize is the maximum allowed message payload (64 MiB); large
// enough for any realistic font binary.
const MaxMessageSize = 64 << 20

// Request commands.
const (
	CommandInit   = "INIT"
	CommandSubset = "SUBSET"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Machine-readable error codes carried on error responses.
const (
	CodeUninitialized = "uninitialized"
	CodePipeline      = "pipeline"
	CodeInternal      = "internal"
)

// ErrUninitialized is the host-side form of a CodeUninitialized response:
// a SUBSET arrived at a worker that never received its INIT.
var ErrUninitialized = errors.New("subset request before initialization")

// Request is a host-to-worker message. For SUBSET, ownership of Data moves to
// the worker: the sender must not touch the slice after a successful send.
type Request struct {
	Command    string `msgpack:"command"`
	CodePoints []rune `msgpack:"code_points,omitempty"`
	Data       []byte `msgpack:"data,omitempty"`
}

// Response is a worker-to-host message. On success Data holds the transformed
// binary with ownership transferred to the host.
type Response struct {
	Status string `msgpack:"status"`
	Data   []byte `msgpack:"data,omitempty"`
	Code   string `msgpack:"code,omitempty"`
	Error  string `msgpack:"error,omitempty"`
}

// Err converts an error response into a Go error, mapping known codes onto
// sentinel errors.
func (r *Response) Err() error {
	if r.Status != StatusError {
		return nil
	}
	if r.Code == CodeUninitialized {
		return fmt.Errorf("%w: %s", ErrUninitialized, r.Error)
	}
	return fmt.Errorf("worker error (%s): %s", r.Code, r.Error)
}

// WriteMessage writes a length-prefixed msgpack message to w.
// The frame format is: 4-byte big-endian length prefix followed by the
// msgpack payload.
func WriteMessage(w io.Writer, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message size %d exceeds maximum %d", len(data), MaxMessageSize)
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// ReadMessage reads a length-prefixed msgpack message from r and decodes it
// into v.
func ReadMessage(r io.Reader, v any) error {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return fmt.Errorf("read length prefix: %w", err)
	}

	if length > MaxMessageSize {
		return fmt.Errorf("message size %d exceeds maximum %d", length, MaxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	return nil
}
