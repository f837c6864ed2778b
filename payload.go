package pconn

import (
	"encoding/binary"
)

// HeaderSize is the fixed width, in bytes, of the size field that precedes
// every frame on the wire. It is a compile-time constant shared by both
// peers; it is never negotiated.
const HeaderSize = 8

// MessageID identifies the kind of a Payload. The owner's enumeration of
// application message ids MUST start at FirstUserMessageID; ids below it
// are reserved by the keepalive protocol.
type MessageID uint32

const (
	// PingRequest is sent by the keepalive initiator.
	PingRequest MessageID = 0
	// PingResponse answers a PingRequest.
	PingResponse MessageID = 1
	// FirstUserMessageID is the lowest id an owner may assign to its own
	// message kinds.
	FirstUserMessageID MessageID = 2
)

// Payload is a bidirectional byte buffer with typed push/pop of trivially
// copyable values and variable-length byte sequences. Push appends to the
// tail; Pop removes from the tail, so extraction order is the reverse of
// insertion order. This mirrors the sender's convention of pushing the
// message id last so the receiver can pop it first.
//
// A Payload is not safe for concurrent use; each Session owns exactly one
// in-flight inbound Payload and one outbound Payload per Send call.
type Payload struct {
	buf []byte
}

// NewPayload returns an empty payload ready for pushing.
func NewPayload() *Payload {
	return &Payload{buf: make([]byte, 0, 64)}
}

// payloadFromBytes wraps an already-decoded body without copying it. Used
// by the inbound read path, which owns the buffer it allocated for the
// frame body.
func payloadFromBytes(b []byte) *Payload {
	return &Payload{buf: b}
}

// Size returns the current body length in bytes.
func (p *Payload) Size() int { return len(p.buf) }

// Bytes returns a borrowed view of the body for framing. Callers must not
// retain it past the next Push/Pop call.
func (p *Payload) Bytes() []byte { return p.buf }

func (p *Payload) popTail(n int) ([]byte, error) {
	if len(p.buf) < n {
		return nil, &CodecError{Reason: "pop underflow"}
	}
	start := len(p.buf) - n
	out := p.buf[start:]
	p.buf = p.buf[:start]
	return out, nil
}

// PushBytes appends a byte sequence followed by its length, so the
// length lands on top of the stack and PopBytes can read it back first
// to know how much data follows beneath it.
func (p *Payload) PushBytes(b []byte) {
	p.buf = append(p.buf, b...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	p.buf = append(p.buf, lenBuf[:]...)
}

// PopBytes removes and returns the most recently pushed byte sequence,
// reading its trailing length first.
func (p *Payload) PopBytes() ([]byte, error) {
	lenBytes, err := p.popTail(4)
	if err != nil {
		return nil, &CodecError{Reason: "pop bytes: underflow reading length"}
	}
	n := binary.LittleEndian.Uint32(lenBytes)
	data, err := p.popTail(int(n))
	if err != nil {
		return nil, &CodecError{Reason: "pop bytes: underflow reading data"}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// PushString appends a UTF-8 string followed by its length, as PushBytes.
func (p *Payload) PushString(s string) { p.PushBytes([]byte(s)) }

// PopString removes and returns the most recently pushed string.
func (p *Payload) PopString() (string, error) {
	b, err := p.PopBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PushUint8 appends a single byte.
func (p *Payload) PushUint8(v uint8) { p.buf = append(p.buf, v) }

// PopUint8 removes and returns the most recently pushed byte.
func (p *Payload) PopUint8() (uint8, error) {
	b, err := p.popTail(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// PushUint16 appends a little-endian uint16.
func (p *Payload) PushUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	p.buf = append(p.buf, b[:]...)
}

// PopUint16 removes and returns the most recently pushed uint16.
func (p *Payload) PopUint16() (uint16, error) {
	b, err := p.popTail(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// PushUint32 appends a little-endian uint32.
func (p *Payload) PushUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	p.buf = append(p.buf, b[:]...)
}

// PopUint32 removes and returns the most recently pushed uint32.
func (p *Payload) PopUint32() (uint32, error) {
	b, err := p.popTail(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// PushUint64 appends a little-endian uint64.
func (p *Payload) PushUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	p.buf = append(p.buf, b[:]...)
}

// PopUint64 removes and returns the most recently pushed uint64.
func (p *Payload) PopUint64() (uint64, error) {
	b, err := p.popTail(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// PushMessageID appends the message id. Senders push this last so the
// receiver can pop it first.
func (p *Payload) PushMessageID(id MessageID) { p.PushUint32(uint32(id)) }

// PopMessageID removes and returns the message id. Receivers call this
// first, before popping any other field.
func (p *Payload) PopMessageID() (MessageID, error) {
	v, err := p.PopUint32()
	if err != nil {
		return 0, &CodecError{Reason: "pop message id: " + err.Error()}
	}
	return MessageID(v), nil
}

func encodeHeader(n uint64) [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint64(b[:], n)
	return b
}

func decodeHeader(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
