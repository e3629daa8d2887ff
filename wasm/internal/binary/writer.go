package binary

import (
	"encoding/binary"
	"math"
)

// Writer builds a module image by appending to a byte slice. It mirrors
// Cursor and never fails.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes returns the image so far. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len is the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *Writer) WriteBytes(data []byte) {
	w.buf = append(w.buf, data...)
}

// WriteVec appends len(data) as a varint, then data.
func (w *Writer) WriteVec(data []byte) {
	w.WriteU32(uint32(len(data)))
	w.buf = append(w.buf, data...)
}

func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.AppendUvarint(w.buf, uint64(v))
}

// WriteU64 appends v in unsigned LEB128, which is the uvarint encoding.
func (w *Writer) WriteU64(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

// WritePaddedU32 stretches v to exactly n bytes with continuation bits.
// Padded encodings are legal as long as the final byte carries no stray bits.
func (w *Writer) WritePaddedU32(v uint32, n int) {
	for i := range n {
		b := byte(v) & 0x7f
		v >>= 7
		if i != n-1 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
	}
}

func (w *Writer) WriteS32(v int32) {
	w.WriteS64(int64(v))
}

// WriteS64 appends v in signed LEB128. Encoding stops once the remaining
// value is pure sign and bit 6 of the last group agrees with it.
func (w *Writer) WriteS64(v int64) {
	for {
		b := byte(v) & 0x7f
		v >>= 7
		sign := b&0x40 != 0
		if (v == 0 && !sign) || (v == -1 && sign) {
			w.buf = append(w.buf, b)
			return
		}
		w.buf = append(w.buf, b|0x80)
	}
}

func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) WriteU32LE(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteF32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) WriteF64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteSection appends a section: id byte, payload size, payload.
func (w *Writer) WriteSection(id byte, payload []byte) {
	w.buf = append(w.buf, id)
	w.WriteVec(payload)
}
