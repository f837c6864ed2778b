package pconn

import (
	"net"
	"testing"
	"time"
)

func TestWriteFrameReadFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := NewPayload()
	payload.PushString("hello")
	payload.PushMessageID(2)

	errCh := make(chan error, 1)
	go func() { errCh <- writeFrame(client, payload) }()

	size, err := readSize(server, 0)
	if err != nil {
		t.Fatalf("readSize: %v", err)
	}
	if size != uint64(payload.Size()) {
		t.Fatalf("readSize = %d, want %d", size, payload.Size())
	}
	body, err := readBody(server, size)
	if err != nil {
		t.Fatalf("readBody: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	id, err := body.PopMessageID()
	if err != nil || id != 2 {
		t.Fatalf("PopMessageID() = %d, %v", id, err)
	}
	msg, err := body.PopString()
	if err != nil || msg != "hello" {
		t.Fatalf("PopString() = %q, %v", msg, err)
	}
}

func TestReadSizeRejectsOversizedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		header := encodeHeader(1 << 30)
		client.Write(header[:])
	}()

	_, err := readSize(server, 1<<20)
	if err == nil {
		t.Fatal("expected FramingError for oversized frame")
	}
	if _, ok := err.(*FramingError); !ok {
		t.Fatalf("expected *FramingError, got %T: %v", err, err)
	}
}

func TestReadSizeShortReadIsIOError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		client.Close()
	}()

	_, err := readSize(server, 0)
	if err == nil {
		t.Fatal("expected error on peer close mid-header")
	}
	if _, ok := err.(*IOError); !ok {
		t.Fatalf("expected *IOError, got %T: %v", err, err)
	}
}
