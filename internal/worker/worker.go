// Package worker implements the background execution context that performs
// font subsetting off the calling goroutine. A worker receives one INIT
// with the codepoint set for its whole lifetime, then serves SUBSET
// requests one at a time, speaking the framed protocol over a byte stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/glyphlab/woffle/internal/pipeline"
	"github.com/glyphlab/woffle/internal/protocol"
)

// Serve runs the worker message loop on conn until the peer closes the
// connection or a read error occurs. It never returns for a transform
// failure; those are reported to the peer as error responses.
func Serve(ctx context.Context, conn io.ReadWriter, codec pipeline.Codec, logger *slog.Logger) error {
	var codePoints []rune
	initialized := false

	for {
		var req protocol.Request
		if err := protocol.ReadMessage(conn, &req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		switch req.Command {
		case protocol.CommandInit:
			if initialized {
				logger.Warn("duplicate INIT, replacing codepoint set")
			}
			codePoints = req.CodePoints
			initialized = true

		case protocol.CommandSubset:
			var resp protocol.Response
			if !initialized {
				// Proceeding would subset against an empty codepoint set and
				// silently strip every glyph, so this fails loudly instead.
				logger.Error("SUBSET received before INIT")
				resp = protocol.Response{
					Status: protocol.StatusError,
					Code:   protocol.CodeUninitialized,
					Error:  "SUBSET received before INIT",
				}
			} else {
				resp = transform(ctx, codec, req.Data, codePoints)
			}
			if err := protocol.WriteMessage(conn, &resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}

		default:
			resp := protocol.Response{
				Status: protocol.StatusError,
				Code:   protocol.CodeInternal,
				Error:  fmt.Sprintf("unknown command %q", req.Command),
			}
			if err := protocol.WriteMessage(conn, &resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}

// transform runs one subset request, converting panics and transform
// errors into error responses.
func transform(ctx context.Context, codec pipeline.Codec, data []byte, codePoints []rune) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = protocol.Response{
				Status: protocol.StatusError,
				Code:   protocol.CodeInternal,
				Error:  fmt.Sprintf("panic during transform: %v", r),
			}
		}
	}()

	out, err := pipeline.Transform(ctx, codec, data, codePoints)
	if err != nil {
		return protocol.Response{
			Status: protocol.StatusError,
			Code:   protocol.CodePipeline,
			Error:  err.Error(),
		}
	}
	return protocol.Response{Status: protocol.StatusOK, Data: out}
}
