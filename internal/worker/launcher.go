package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/exec"

	"github.com/glyphlab/woffle/internal/pipeline"
	"github.com/glyphlab/woffle/internal/pool"
	"github.com/glyphlab/woffle/internal/protocol"
)

// Launcher starts workers as goroutines inside the current process,
// connected over an in-memory pipe. Isolation is by message passing only:
// the worker shares no mutable state with the host side, and every buffer
// crosses the pipe as a serialized frame.
type Launcher struct {
	Codec  pipeline.Codec
	Logger *slog.Logger
}

// NewLauncher creates an in-process launcher using codec for transforms.
func NewLauncher(codec pipeline.Codec, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Launcher{Codec: codec, Logger: logger}
}

// Launch starts a worker goroutine and returns the host side of its
// connection. Closing the transport shuts the worker down.
func (l *Launcher) Launch(ctx context.Context) (pool.Transport, error) {
	host, remote := net.Pipe()

	// The worker outlives the dispatch that created it, so its serve loop
	// must not inherit that dispatch's cancellation.
	serveCtx := context.WithoutCancel(ctx)

	go func() {
		defer remote.Close()
		if err := Serve(serveCtx, remote, l.Codec, l.Logger); err != nil {
			l.Logger.Debug("worker stopped", "error", err)
		}
	}()

	return protocol.NewStream(host), nil
}

// ProcessLauncher starts workers as separate OS processes running the
// woffle-worker binary, speaking the protocol over stdin/stdout.
type ProcessLauncher struct {
	// Bin is the path to the worker executable.
	Bin    string
	Logger *slog.Logger
}

// Launch starts one worker process.
func (l *ProcessLauncher) Launch(_ context.Context) (pool.Transport, error) {
	cmd := exec.Command(l.Bin)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %s: %w", l.Bin, err)
	}
	if l.Logger != nil {
		l.Logger.Debug("worker process started", "bin", l.Bin, "pid", cmd.Process.Pid)
	}

	return protocol.NewStream(&processConn{stdin: stdin, stdout: stdout, cmd: cmd}), nil
}

// processConn adapts a worker subprocess's pipes to io.ReadWriteCloser.
// Close terminates the process.
type processConn struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
	cmd    *exec.Cmd
}

func (c *processConn) Read(p []byte) (int, error)  { return c.stdout.Read(p) }
func (c *processConn) Write(p []byte) (int, error) { return c.stdin.Write(p) }

func (c *processConn) Close() error {
	c.stdin.Close()
	c.stdout.Close()
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}
