package ncom

import (
	"encoding/binary"
	"math"
)

// cursor reads little-endian fields strictly left to right. The first
// failed read is sticky: later reads return zero values and the error is
// collected once at the end.
type cursor struct {
	buf []byte
	off int
	err error
}

func (c *cursor) take(n int, field string) []byte {
	if c.err != nil {
		return nil
	}
	if c.off+n > len(c.buf) {
		c.err = &ProtocolError{
			Kind:     Truncated,
			Expected: n,
			Actual:   len(c.buf) - c.off,
			Offset:   c.off,
			Field:    field,
			Length:   len(c.buf),
			Channel:  -1,
		}
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) u8(field string) uint8 {
	b := c.take(1, field)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16(field string) uint16 {
	b := c.take(2, field)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u32(field string) uint32 {
	b := c.take(4, field)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// i24 sign-extends a 3 byte little-endian two's complement integer.
func (c *cursor) i24(field string) int32 {
	b := c.take(3, field)
	if b == nil {
		return 0
	}
	return int24(b)
}

func (c *cursor) f32(field string) float32 {
	b := c.take(4, field)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (c *cursor) f64(field string) float64 {
	b := c.take(8, field)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (c *cursor) bytes(dst []byte, field string) {
	b := c.take(len(dst), field)
	if b != nil {
		copy(dst, b)
	}
}

// end fails unless every byte of the buffer was consumed.
func (c *cursor) end(expected int) error {
	if c.err != nil {
		return c.err
	}
	if c.off != expected || c.off != len(c.buf) {
		return &ProtocolError{
			Kind:     Misaligned,
			Expected: expected,
			Actual:   c.off,
			Offset:   c.off,
			Length:   len(c.buf),
			Channel:  -1,
		}
	}
	return nil
}

func int24(b []byte) int32 {
	v := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
	return v << 8 >> 8
}

func putInt24(b []byte, v int32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
