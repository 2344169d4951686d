// Command woffle-worker is a standalone subset worker. It speaks the framed
// subset protocol on stdin/stdout: one INIT with the codepoint set, then
// one SUBSET per font to transform. woffled launches one process per pool
// worker when WOFFLE_WORKER_BIN is configured.
package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/glyphlab/woffle/internal/pipeline"
	"github.com/glyphlab/woffle/internal/worker"
)

// stdioConn joins stdin and stdout into the worker's message stream.
type stdioConn struct {
	io.Reader
	io.Writer
}

func main() {
	// Diagnostics go to stderr; stdout carries protocol frames only.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	conn := stdioConn{Reader: os.Stdin, Writer: os.Stdout}
	if err := worker.Serve(context.Background(), conn, pipeline.DefaultCodec(), logger); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
