package protocol

import "io"

// Stream speaks the framed protocol over a byte stream. The host side of a
// worker connection holds one Stream; a Stream is used by at most one
// sender and one receiver goroutine at a time.
type Stream struct {
	rwc io.ReadWriteCloser
}

// NewStream wraps a connection in a Stream.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	return &Stream{rwc: rwc}
}

// Send writes one request frame.
func (s *Stream) Send(req *Request) error {
	return WriteMessage(s.rwc, req)
}

// Recv reads one response frame. It returns io.EOF once the peer closes
// the connection.
func (s *Stream) Recv() (*Response, error) {
	var resp Response
	if err := ReadMessage(s.rwc, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	return s.rwc.Close()
}
