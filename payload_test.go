package pconn

import (
	"bytes"
	"testing"
)

func TestPayloadLIFORoundTrip(t *testing.T) {
	// S6: push [id=7, u32=42, string "ab"], pop in reverse order, and the
	// re-serialized frame must be byte-equal to the original.
	p := NewPayload()
	p.PushMessageID(7)
	p.PushUint32(42)
	p.PushString("ab")

	original := append([]byte(nil), p.Bytes()...)

	s, err := p.PopString()
	if err != nil || s != "ab" {
		t.Fatalf("PopString() = %q, %v; want \"ab\", nil", s, err)
	}
	u, err := p.PopUint32()
	if err != nil || u != 42 {
		t.Fatalf("PopUint32() = %d, %v; want 42, nil", u, err)
	}
	id, err := p.PopMessageID()
	if err != nil || id != 7 {
		t.Fatalf("PopMessageID() = %d, %v; want 7, nil", id, err)
	}
	if p.Size() != 0 {
		t.Fatalf("payload not fully drained, size = %d", p.Size())
	}

	rebuilt := NewPayload()
	rebuilt.PushMessageID(id)
	rebuilt.PushUint32(u)
	rebuilt.PushString(s)
	if !bytes.Equal(rebuilt.Bytes(), original) {
		t.Fatalf("rebuilt frame != original:\n got  %x\n want %x", rebuilt.Bytes(), original)
	}
}

func TestPayloadScalarRoundTrip(t *testing.T) {
	p := NewPayload()
	p.PushUint8(0xAB)
	p.PushUint16(0x1234)
	p.PushUint64(0x0102030405060708)
	p.PushBytes([]byte{1, 2, 3, 4})

	b, err := p.PopBytes()
	if err != nil || !bytes.Equal(b, []byte{1, 2, 3, 4}) {
		t.Fatalf("PopBytes() = %v, %v", b, err)
	}
	u64, err := p.PopUint64()
	if err != nil || u64 != 0x0102030405060708 {
		t.Fatalf("PopUint64() = %x, %v", u64, err)
	}
	u16, err := p.PopUint16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("PopUint16() = %x, %v", u16, err)
	}
	u8, err := p.PopUint8()
	if err != nil || u8 != 0xAB {
		t.Fatalf("PopUint8() = %x, %v", u8, err)
	}
}

func TestPayloadUnderflowIsCodecError(t *testing.T) {
	p := NewPayload()
	if _, err := p.PopUint32(); err == nil {
		t.Fatal("expected underflow error on empty payload")
	} else if _, ok := err.(*CodecError); !ok {
		t.Fatalf("expected *CodecError, got %T", err)
	}

	p.PushUint8(1)
	if _, err := p.PopUint64(); err == nil {
		t.Fatal("expected underflow error popping 8 bytes from a 1-byte payload")
	}
}

func TestHeaderEncodeDecode(t *testing.T) {
	for _, n := range []uint64{0, 1, 255, 1 << 20, 1<<64 - 1} {
		h := encodeHeader(n)
		if got := decodeHeader(h[:]); got != n {
			t.Fatalf("decodeHeader(encodeHeader(%d)) = %d", n, got)
		}
	}
}
