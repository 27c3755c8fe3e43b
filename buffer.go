package x64code

import (
	"encoding/binary"
)

// buffer accumulates the bytes of one expression.
type buffer struct {
	b []byte
}

func (b *buffer) Len() int    { return len(b.b) }
func (b *buffer) Get() []byte { return b.b }

func (b *buffer) Byte(v byte) { b.b = append(b.b, v) }

func (b *buffer) Byte2(v1, v2 byte) { b.b = append(b.b, v1, v2) }

func (b *buffer) Bytes(v []byte) { b.b = append(b.b, v...) }

func (b *buffer) Int8(v int8) { b.Byte(byte(v)) }

func (b *buffer) Int16(v int16) { b.b = binary.LittleEndian.AppendUint16(b.b, uint16(v)) }

func (b *buffer) Int32(v int32) { b.b = binary.LittleEndian.AppendUint32(b.b, uint32(v)) }

func (b *buffer) Int64(v int64) { b.b = binary.LittleEndian.AppendUint64(b.b, uint64(v)) }

// Append the low width bytes of v in little-endian order. Higher bytes are discarded.
func (b *buffer) Int(width uint8, v int64) {
	switch width {
	case 1:
		b.Int8(int8(v))
	case 2:
		b.Int16(int16(v))
	case 4:
		b.Int32(int32(v))
	case 8:
		b.Int64(v)
	}
}

func (b *buffer) Nop(length int) {
	b.b = appendNops(b.b, length)
}

// Recommended multi-byte NOP sequences, indexed by length-1.
var nops = [...][]byte{
	{0x90},
	{0x66, 0x90},
	{0x0f, 0x1f, 0x00},
	{0x0f, 0x1f, 0x40, 0x00},
	{0x0f, 0x1f, 0x44, 0x00, 0x00},
	{0x66, 0x0f, 0x1f, 0x44, 0x00, 0x00},
	{0x0f, 0x1f, 0x80, 0x00, 0x00, 0x00, 0x00},
	{0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0x66, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
}

func appendNops(b []byte, length int) []byte {
	for length > 0 {
		n := length
		if n > len(nops) {
			n = len(nops)
		}
		b = append(b, nops[n-1]...)
		length -= n
	}
	return b
}

// Put the low width bytes of v at b[0:width] in little-endian order.
func putInt(b []byte, width uint8, v int64) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
}
