package ipc

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{PacketID: 7, Version: ProtocolVersion, EventID: 0xdeadbeef, Payload: []byte("hello")}
	wire := Encode(f)

	got, n, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(wire) {
		t.Errorf("consumed %d bytes, want %d", n, len(wire))
	}
	if got.PacketID != f.PacketID || got.Version != f.Version || got.EventID != f.EventID {
		t.Errorf("Decode header = %+v, want %+v", got, f)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Errorf("Decode payload = %q, want %q", got.Payload, f.Payload)
	}
}

func TestEncodeDefaultsVersion(t *testing.T) {
	wire := Encode(Frame{PacketID: 1})
	if wire[1] != ProtocolVersion {
		t.Errorf("version byte = %d, want %d", wire[1], ProtocolVersion)
	}
}

func TestEncodeDecodeEmptyPayload(t *testing.T) {
	f := Frame{PacketID: 2, Version: ProtocolVersion, EventID: 1}
	got, n, err := Decode(Encode(f))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != headerSize {
		t.Errorf("consumed %d bytes, want header-only %d", n, headerSize)
	}
	if len(got.Payload) != 0 {
		t.Errorf("Payload = %v, want empty", got.Payload)
	}
}

func TestDecodeIncompleteHeaderWaitsForMore(t *testing.T) {
	f, n, err := Decode([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 0 {
		t.Errorf("consumed = %d, want 0 for a short header", n)
	}
	if f != (Frame{}) {
		t.Errorf("Decode = %+v, want zero value", f)
	}
}

func TestDecodeIncompletePayloadWaitsForMore(t *testing.T) {
	wire := Encode(Frame{PacketID: 1, Payload: []byte("0123456789")})
	_, n, err := Decode(wire[:headerSize+3])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 0 {
		t.Errorf("consumed = %d, want 0 when fewer bytes than the declared payload size are available", n)
	}
}

func TestDecodeConsumesOnlyOneFrameFromABuffer(t *testing.T) {
	wire := append(Encode(Frame{PacketID: 1, Payload: []byte("a")}), Encode(Frame{PacketID: 2, Payload: []byte("bb")})...)

	first, n1, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode first: %v", err)
	}
	if first.PacketID != 1 || !bytes.Equal(first.Payload, []byte("a")) {
		t.Errorf("first frame = %+v", first)
	}

	second, n2, err := Decode(wire[n1:])
	if err != nil {
		t.Fatalf("Decode second: %v", err)
	}
	if second.PacketID != 2 || !bytes.Equal(second.Payload, []byte("bb")) {
		t.Errorf("second frame = %+v", second)
	}
	if n1+n2 != len(wire) {
		t.Errorf("total consumed %d, want %d", n1+n2, len(wire))
	}
}

func TestPayloadWriterReaderRoundTrip(t *testing.T) {
	var w PayloadWriter
	w.U8(0xab)
	w.U16(0x1234)
	w.U32(0xdeadbeef)
	w.I32(-7)
	w.U64(0x0102030405060708)
	w.F32(3.5)
	w.F64(2.71828)
	w.ShortString("mascotd")

	r := NewPayloadReader(w.Bytes())
	if v := r.U8(); v != 0xab {
		t.Errorf("U8 = %x, want ab", v)
	}
	if v := r.U16(); v != 0x1234 {
		t.Errorf("U16 = %x, want 1234", v)
	}
	if v := r.U32(); v != 0xdeadbeef {
		t.Errorf("U32 = %x, want deadbeef", v)
	}
	if v := r.I32(); v != -7 {
		t.Errorf("I32 = %d, want -7", v)
	}
	if v := r.U64(); v != 0x0102030405060708 {
		t.Errorf("U64 = %x, want 0102030405060708", v)
	}
	if v := r.F32(); v != 3.5 {
		t.Errorf("F32 = %v, want 3.5", v)
	}
	if v := r.F64(); v != 2.71828 {
		t.Errorf("F64 = %v, want 2.71828", v)
	}
	if v := r.ShortString(); v != "mascotd" {
		t.Errorf("ShortString = %q, want %q", v, "mascotd")
	}
	if err := r.Err(); err != nil {
		t.Errorf("Err() = %v, want nil after a fully consumed buffer", err)
	}
}

func TestShortStringTruncatesAt255Bytes(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 300)
	var w PayloadWriter
	w.ShortString(string(long))

	r := NewPayloadReader(w.Bytes())
	got := r.ShortString()
	if len(got) != 255 {
		t.Errorf("len(ShortString) = %d, want 255", len(got))
	}
}

func TestVariableRoundTripWithBacking(t *testing.T) {
	v := Variable{Value: 99, Kind: 1, InUse: true, Evaluated: true, HasBacking: true, BackingID: 42}
	var w PayloadWriter
	w.Variable(v)

	r := NewPayloadReader(w.Bytes())
	got := r.Variable()
	if got != v {
		t.Errorf("Variable round trip = %+v, want %+v", got, v)
	}
}

func TestVariableRoundTripWithoutBacking(t *testing.T) {
	v := Variable{Value: 1, Kind: 0, InUse: false, Evaluated: false, HasBacking: false}
	var w PayloadWriter
	w.Variable(v)

	r := NewPayloadReader(w.Bytes())
	got := r.Variable()
	if got != v {
		t.Errorf("Variable round trip = %+v, want %+v", got, v)
	}
	if len(w.Bytes()) != 4+1+1+1+1 {
		t.Errorf("encoded length = %d, want 8 bytes (no trailing BackingID)", len(w.Bytes()))
	}
}

func TestPayloadReaderErrPropagatesAcrossReads(t *testing.T) {
	r := NewPayloadReader([]byte{1})
	r.U32() // needs 4 bytes, only 1 available
	if r.Err() == nil {
		t.Fatal("Err() = nil after an out-of-range read")
	}
	if v := r.U8(); v != 0 {
		t.Errorf("U8 after error = %d, want 0 (reader latches the error)", v)
	}
}

func TestErrMalformedMessage(t *testing.T) {
	err := &ErrMalformed{Reason: "short buffer"}
	if err.Error() != "ipc: malformed frame: short buffer" {
		t.Errorf("Error() = %q", err.Error())
	}
}
