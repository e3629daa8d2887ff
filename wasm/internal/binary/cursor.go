package binary

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/wippyai/wasm-inspect/errors"
)

// Cursor is a forward-only, bounds-checked reader over an immutable byte
// slice. Every read either succeeds and advances, or fails and leaves the
// cursor where it was. There is no rewind; use Clone for speculative reads.
//
// Offsets reported in errors are absolute: a cursor produced by Take keeps
// the position of its first byte within the outermost buffer.
type Cursor struct {
	data []byte
	off  int
	base int
}

// NewCursor creates a cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// NewCursorAt creates a cursor over data whose first byte sits at absolute
// offset base in some larger buffer.
func NewCursorAt(data []byte, base int) *Cursor {
	return &Cursor{data: data, base: base}
}

// Clone returns an independent copy sharing the same buffer.
func (c *Cursor) Clone() *Cursor {
	cp := *c
	return &cp
}

// Offset returns the absolute position of the next unread byte.
func (c *Cursor) Offset() int {
	return c.base + c.off
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.off
}

// Len returns the total length of the buffer the cursor walks.
func (c *Cursor) Len() int {
	return len(c.data)
}

// Done reports whether all bytes were consumed.
func (c *Cursor) Done() bool {
	return c.off >= len(c.data)
}

// Rest returns the unread bytes without advancing.
func (c *Cursor) Rest() []byte {
	return c.data[c.off:]
}

// ReadByte reads a single byte.
func (c *Cursor) ReadByte() (byte, error) {
	if c.off >= len(c.data) {
		return 0, errors.UnexpectedEOF(c.Offset(), 1, 0)
	}
	b := c.data[c.off]
	c.off++
	return b, nil
}

// ReadFixed returns the next n bytes. The slice aliases the cursor's buffer;
// copy it to retain it past the buffer's lifetime.
func (c *Cursor) ReadFixed(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, errors.UnexpectedEOF(c.Offset(), n, c.Remaining())
	}
	b := c.data[c.off : c.off+n : c.off+n]
	c.off += n
	return b, nil
}

// Take returns a sub-cursor over the next n bytes and advances past them.
// No bytes are copied.
func (c *Cursor) Take(n int) (*Cursor, error) {
	start := c.Offset()
	b, err := c.ReadFixed(n)
	if err != nil {
		return nil, err
	}
	return &Cursor{data: b, base: start}, nil
}

// ReadU32LE reads a little-endian uint32 (fixed 4 bytes).
func (c *Cursor) ReadU32LE() (uint32, error) {
	b, err := c.ReadFixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadF32 reads a little-endian IEEE 754 float32.
func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32LE()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadF64 reads a little-endian IEEE 754 float64.
func (c *Cursor) ReadF64() (float64, error) {
	b, err := c.ReadFixed(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadVarU32 reads an unsigned LEB128 encoded uint32.
func (c *Cursor) ReadVarU32() (uint32, error) {
	v, err := c.readVarUint(32)
	return uint32(v), err
}

// ReadVarU64 reads an unsigned LEB128 encoded uint64.
func (c *Cursor) ReadVarU64() (uint64, error) {
	return c.readVarUint(64)
}

// ReadVarS32 reads a signed LEB128 encoded int32.
func (c *Cursor) ReadVarS32() (int32, error) {
	v, err := c.readVarSint(32)
	return int32(v), err
}

// ReadVarS64 reads a signed LEB128 encoded int64.
func (c *Cursor) ReadVarS64() (int64, error) {
	return c.readVarSint(64)
}

// ReadName reads a length-prefixed UTF-8 string.
func (c *Cursor) ReadName() (string, error) {
	probe := c.Clone()
	length, err := probe.ReadVarU32()
	if err != nil {
		return "", err
	}
	at := probe.Offset()
	b, err := probe.ReadFixed(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.InvalidUTF8(at, b)
	}
	*c = *probe
	return string(b), nil
}

// readVarUint decodes at most ceil(width/7) bytes. The final permitted byte
// must have its continuation bit clear and no bits set above width.
func (c *Cursor) readVarUint(width uint) (uint64, error) {
	maxBytes := int((width + 6) / 7)
	var result uint64
	for i := 0; ; i++ {
		if c.off+i >= len(c.data) {
			if i == 0 {
				return 0, errors.UnexpectedEOF(c.Offset(), 1, 0)
			}
			return 0, errors.MalformedVarint(c.Offset(), "unterminated varint at end of buffer")
		}
		b := c.data[c.off+i]
		if i == maxBytes-1 {
			if b&0x80 != 0 {
				return 0, errors.MalformedVarint(c.Offset(),
					fmt.Sprintf("varint longer than %d bytes", maxBytes))
			}
			used := width - uint(7*i)
			if (b&0x7f)>>used != 0 {
				return 0, errors.MalformedVarint(c.Offset(), fmt.Sprintf("varint overflows u%d", width))
			}
		}
		result |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			c.off += i + 1
			return result, nil
		}
	}
}

// readVarSint is readVarUint with sign extension from bit 6 of the final
// byte. Unused bits of a maximal-length encoding must repeat the sign bit.
func (c *Cursor) readVarSint(width uint) (int64, error) {
	maxBytes := int((width + 6) / 7)
	var result int64
	var shift uint
	for i := 0; ; i++ {
		if c.off+i >= len(c.data) {
			if i == 0 {
				return 0, errors.UnexpectedEOF(c.Offset(), 1, 0)
			}
			return 0, errors.MalformedVarint(c.Offset(), "unterminated varint at end of buffer")
		}
		b := c.data[c.off+i]
		payload := b & 0x7f
		if i == maxBytes-1 {
			if b&0x80 != 0 {
				return 0, errors.MalformedVarint(c.Offset(),
					fmt.Sprintf("varint longer than %d bytes", maxBytes))
			}
			used := width - uint(7*i)
			pad := payload >> (used - 1)
			if pad != 0 && pad != 0x7f>>(used-1) {
				return 0, errors.MalformedVarint(c.Offset(), fmt.Sprintf("varint overflows s%d", width))
			}
		}
		result |= int64(payload) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && payload&0x40 != 0 {
				result |= -1 << shift
			}
			c.off += i + 1
			return result, nil
		}
	}
}
