// Package ipc implements the length-delimited packet protocol external
// controllers use to observe and manipulate live agents (spec.md §4.G).
// Framing and payload-atom encoding are hand-rolled because the wire
// layout is a fixed, small, self-describing byte format the way
// original_source/src/packet_handler.c defines it; no pack library
// models this shape better than direct encoding/binary use.
package ipc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ProtocolVersion is the only version field value currently issued.
const ProtocolVersion uint8 = 1

// Frame is one length-delimited packet: `u8 packet_id | u8 version | u16
// payload_size | u32 event_id | payload`.
type Frame struct {
	PacketID  uint8
	Version   uint8
	EventID   uint32
	Payload   []byte
}

const headerSize = 1 + 1 + 2 + 4

// ErrMalformed is returned by PayloadReader when a payload field runs past
// the bytes available.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string { return "ipc: malformed frame: " + e.Reason }

// Encode serializes f to its wire form. Version defaults to
// ProtocolVersion if unset.
func Encode(f Frame) []byte {
	version := f.Version
	if version == 0 {
		version = ProtocolVersion
	}
	buf := make([]byte, headerSize+len(f.Payload))
	buf[0] = f.PacketID
	buf[1] = version
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(f.Payload)))
	binary.BigEndian.PutUint32(buf[4:8], f.EventID)
	copy(buf[headerSize:], f.Payload)
	return buf
}

// Decode parses a single frame from the head of buf, returning the frame
// and the number of bytes consumed; a count of 0 means no complete frame
// is available yet. The error is always nil. It never blocks; callers
// loop it over a buffered reader.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < headerSize {
		return Frame{}, 0, nil
	}
	payloadSize := int(binary.BigEndian.Uint16(buf[2:4]))
	total := headerSize + payloadSize
	if len(buf) < total {
		return Frame{}, 0, nil
	}
	f := Frame{
		PacketID: buf[0],
		Version:  buf[1],
		EventID:  binary.BigEndian.Uint32(buf[4:8]),
		Payload:  append([]byte(nil), buf[headerSize:total]...),
	}
	return f, total, nil
}

// PayloadWriter accumulates payload atoms in wire order.
type PayloadWriter struct {
	buf bytes.Buffer
}

func (w *PayloadWriter) Bytes() []byte { return w.buf.Bytes() }

func (w *PayloadWriter) U8(v uint8)   { w.buf.WriteByte(v) }
func (w *PayloadWriter) U16(v uint16) { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *PayloadWriter) U32(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *PayloadWriter) I32(v int32)  { w.U32(uint32(v)) }
func (w *PayloadWriter) U64(v uint64) { var b [8]byte; binary.BigEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *PayloadWriter) F32(v float32) { w.U32(math.Float32bits(v)) }
func (w *PayloadWriter) F64(v float64) { w.U64(math.Float64bits(v)) }

// ShortString writes a u8-length-prefixed string, truncating to 255 bytes.
func (w *PayloadWriter) ShortString(s string) {
	b := []byte(s)
	if len(b) > 255 {
		b = b[:255]
	}
	w.U8(uint8(len(b)))
	w.buf.Write(b)
}

// Variable is the composite "variable" payload atom (spec.md §4.G): a
// local/global symbol's current value plus the bookkeeping bits the
// interpreter tracks for it.
type Variable struct {
	Value      uint32
	Kind       uint8
	InUse      bool
	Evaluated  bool
	HasBacking bool
	BackingID  uint32
}

func (w *PayloadWriter) Variable(v Variable) {
	w.U32(v.Value)
	w.U8(v.Kind)
	w.U8(boolByte(v.InUse))
	w.U8(boolByte(v.Evaluated))
	w.U8(boolByte(v.HasBacking))
	if v.HasBacking {
		w.U32(v.BackingID)
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// PayloadReader consumes payload atoms in wire order, recording the first
// error encountered so callers can chain reads and check once at the end.
type PayloadReader struct {
	buf []byte
	pos int
	err error
}

func NewPayloadReader(b []byte) *PayloadReader { return &PayloadReader{buf: b} }

func (r *PayloadReader) Err() error { return r.err }

func (r *PayloadReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = &ErrMalformed{Reason: fmt.Sprintf("need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))}
		return false
	}
	return true
}

func (r *PayloadReader) U8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *PayloadReader) U16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *PayloadReader) U32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *PayloadReader) I32() int32 { return int32(r.U32()) }

func (r *PayloadReader) U64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *PayloadReader) F32() float32 { return math.Float32frombits(r.U32()) }
func (r *PayloadReader) F64() float64 { return math.Float64frombits(r.U64()) }

func (r *PayloadReader) ShortString() string {
	n := int(r.U8())
	if !r.need(n) {
		return ""
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s
}

func (r *PayloadReader) Variable() Variable {
	v := Variable{
		Value:      r.U32(),
		Kind:       r.U8(),
		InUse:      r.U8() != 0,
		Evaluated:  r.U8() != 0,
		HasBacking: r.U8() != 0,
	}
	if v.HasBacking {
		v.BackingID = r.U32()
	}
	return v
}
