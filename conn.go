package pconn

import (
	"io"
	"net"

	"github.com/sagernet/sing/common/bufio"
)

// writeFrame atomically writes encodeHeader(payload.Size()) || payload.Bytes()
// to conn. Callers are responsible for serializing concurrent calls; a
// Session does this by routing every write through its single sendLoop
// goroutine, matching the teacher's sendLoop which is likewise the only
// goroutine that ever touches the raw conn for writes.
//
// When the underlying conn exposes a vectorised writer (most real sockets
// do, via sing's bufio helpers), the header and body are written in a
// single syscall; otherwise they are coalesced into one buffer first so a
// partial write can only ever split a single Write call, never the two
// logical pieces independently.
func writeFrame(conn net.Conn, p *Payload) error {
	header := encodeHeader(uint64(p.Size()))

	if bw, ok := bufio.CreateVectorisedWriter(conn); ok {
		vec := [][]byte{header[:], p.Bytes()}
		if _, err := bufio.WriteVectorised(bw, vec); err != nil {
			return newIOError("write", err)
		}
		return nil
	}

	buf := make([]byte, 0, HeaderSize+p.Size())
	buf = append(buf, header[:]...)
	buf = append(buf, p.Bytes()...)
	if _, err := conn.Write(buf); err != nil {
		return newIOError("write", err)
	}
	return nil
}

// readSize reads exactly HeaderSize bytes and decodes the declared body
// length. maxFrameSize caps the result: a declared size above it is a
// FramingError, never attempted as an allocation.
func readSize(conn net.Conn, maxFrameSize uint64) (uint64, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return 0, newIOError("read size", err)
	}
	n := decodeHeader(hdr[:])
	if maxFrameSize > 0 && n > maxFrameSize {
		return 0, &FramingError{Reason: "declared frame size exceeds MaxFrameSize"}
	}
	return n, nil
}

// readBody reads exactly n bytes and returns them wrapped in a Payload
// that borrows (does not copy) the freshly allocated buffer.
func readBody(conn net.Conn, n uint64) (*Payload, error) {
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(conn, buf); err != nil {
			return nil, newIOError("read body", err)
		}
	}
	return payloadFromBytes(buf), nil
}
