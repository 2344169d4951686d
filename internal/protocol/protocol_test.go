package protocol_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/glyphlab/woffle/internal/protocol"
)

func TestMessageRoundTrip(t *testing.T) {
	req := &protocol.Request{
		Command:    protocol.CommandSubset,
		CodePoints: []rune{'A', 'B', 0x1F600},
		Data:       []byte{0x00, 0x01, 0xFF},
	}

	var buf bytes.Buffer
	if err := protocol.WriteMessage(&buf, req); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	var got protocol.Request
	if err := protocol.ReadMessage(&buf, &got); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Command != req.Command {
		t.Errorf("command = %q, want %q", got.Command, req.Command)
	}
	if len(got.CodePoints) != 3 || got.CodePoints[2] != 0x1F600 {
		t.Errorf("code points = %v, want %v", got.CodePoints, req.CodePoints)
	}
	if !bytes.Equal(got.Data, req.Data) {
		t.Errorf("data = %v, want %v", got.Data, req.Data)
	}
}

func TestReadMessageEOF(t *testing.T) {
	var req protocol.Request
	if err := protocol.ReadMessage(bytes.NewReader(nil), &req); err != io.EOF {
		t.Errorf("empty stream: err = %v, want io.EOF", err)
	}
	// A partial length prefix is still a clean end of stream.
	if err := protocol.ReadMessage(bytes.NewReader([]byte{0, 0}), &req); err != io.EOF {
		t.Errorf("partial prefix: err = %v, want io.EOF", err)
	}
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(protocol.MaxMessageSize+1))

	var req protocol.Request
	if err := protocol.ReadMessage(&buf, &req); err == nil {
		t.Fatal("oversized frame accepted")
	}
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(100))
	buf.Write([]byte("short"))

	var req protocol.Request
	if err := protocol.ReadMessage(&buf, &req); err == nil {
		t.Fatal("truncated payload accepted")
	}
}

func TestResponseErr(t *testing.T) {
	ok := &protocol.Response{Status: protocol.StatusOK, Data: []byte("x")}
	if err := ok.Err(); err != nil {
		t.Errorf("ok response: err = %v", err)
	}

	uninit := &protocol.Response{
		Status: protocol.StatusError,
		Code:   protocol.CodeUninitialized,
		Error:  "SUBSET received before INIT",
	}
	if err := uninit.Err(); !errors.Is(err, protocol.ErrUninitialized) {
		t.Errorf("uninitialized response: err = %v, want ErrUninitialized", err)
	}

	pipe := &protocol.Response{Status: protocol.StatusError, Code: protocol.CodePipeline, Error: "bad font"}
	if err := pipe.Err(); err == nil || errors.Is(err, protocol.ErrUninitialized) {
		t.Errorf("pipeline response: err = %v", err)
	}
}

func TestStreamOverPipe(t *testing.T) {
	host, remote := net.Pipe()
	s := protocol.NewStream(host)
	defer s.Close()

	go func() {
		var req protocol.Request
		if err := protocol.ReadMessage(remote, &req); err != nil {
			t.Errorf("remote read: %v", err)
			remote.Close()
			return
		}
		resp := &protocol.Response{Status: protocol.StatusOK, Data: req.Data}
		if err := protocol.WriteMessage(remote, resp); err != nil {
			t.Errorf("remote write: %v", err)
		}
		remote.Close()
	}()

	if err := s.Send(&protocol.Request{Command: protocol.CommandSubset, Data: []byte("abc")}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(resp.Data) != "abc" {
		t.Errorf("echoed data = %q, want %q", resp.Data, "abc")
	}
	if _, err := s.Recv(); err != io.EOF {
		t.Errorf("after close: err = %v, want io.EOF", err)
	}
}
