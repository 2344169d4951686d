package pool

import (
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/glyphlab/woffle/internal/protocol"
)

type handleState int

const (
	stateIdle handleState = iota
	stateActive
)

// recvResult carries one worker reply, or the read error that ended the
// worker's connection.
type recvResult struct {
	resp *protocol.Response
	err  error
}

// handle is one background worker as seen by the pool: its transport, its
// single TTL timer, and the channel its pending request is resolved on.
// state, destroyed, gen, and timer are guarded by the pool mutex.
type handle struct {
	id        string
	transport Transport
	recv      chan recvResult

	state     handleState
	destroyed bool
	timer     *time.Timer
	gen       uint64

	// timedOut distinguishes a TTL termination from other read errors.
	timedOut atomic.Bool
}

func newHandle(t Transport) *handle {
	return &handle{
		id:        ulid.Make().String(),
		transport: t,
		// Capacity 2: one in-flight response plus the terminal read error,
		// so readLoop can always exit without a receiver.
		recv:      make(chan recvResult, 2),
		state:     stateActive,
	}
}

// readLoop forwards worker replies to the pending dispatch. At most one
// request is in flight per worker, so matching responses to requests needs
// no correlation ids. The loop ends on the first read error, which also
// covers transport teardown.
func (h *handle) readLoop() {
	for {
		resp, err := h.transport.Recv()
		h.recv <- recvResult{resp: resp, err: err}
		if err != nil {
			return
		}
	}
}
