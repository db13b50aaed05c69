// Package codec implements the primitive integer and tg_bytes encodings
// the MTProto wire format is built from (spec.md §4.1).
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/telegram-mtproto/mtclient/internal/errs"
)

// Writer accumulates a little-endian-by-default wire payload.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with buf pre-sized to the caller's best
// estimate of the final length; 0 is fine.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated payload. The returned slice aliases the
// writer's internal buffer and must not be mutated by the caller.
func (w *Writer) Bytes() []byte { return w.buf }

// Len reports the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Int32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) Int64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// Raw appends p verbatim.
func (w *Writer) Raw(p []byte) {
	w.buf = append(w.buf, p...)
}

// TgBytes appends p as a length-prefixed, 4-byte-aligned tg_bytes string.
func (w *Writer) TgBytes(p []byte) {
	w.buf = append(w.buf, encodeTgBytes(p)...)
}

func encodeTgBytes(p []byte) []byte {
	var head []byte
	n := len(p)
	if n < 254 {
		head = []byte{byte(n)}
	} else {
		head = []byte{0xfe, byte(n), byte(n >> 8), byte(n >> 16)}
	}
	total := len(head) + n
	pad := (4 - total%4) % 4
	out := make([]byte, 0, total+pad)
	out = append(out, head...)
	out = append(out, p...)
	for i := 0; i < pad; i++ {
		out = append(out, 0)
	}
	return out
}

// Reader consumes a byte slice sequentially with the same encodings Writer
// produces.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many unread bytes are left.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if n < 0 || r.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", errs.MalformedFrame, n, r.Remaining())
	}
	return nil
}

func (r *Reader) Raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *Reader) Int32() (int32, error) {
	b, err := r.Raw(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Raw(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) Int64() (int64, error) {
	b, err := r.Raw(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Raw(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// TgBytes reads a length-prefixed, 4-byte-aligned tg_bytes string and
// consumes its padding.
func (r *Reader) TgBytes() ([]byte, error) {
	lenByte, err := r.Raw(1)
	if err != nil {
		return nil, err
	}
	var n int
	var prefixLen int
	if lenByte[0] < 0xfe {
		n = int(lenByte[0])
		prefixLen = 1
	} else {
		rest, err := r.Raw(3)
		if err != nil {
			return nil, err
		}
		n = int(rest[0]) | int(rest[1])<<8 | int(rest[2])<<16
		prefixLen = 4
	}
	data, err := r.Raw(n)
	if err != nil {
		return nil, err
	}
	total := prefixLen + n
	pad := (4 - total%4) % 4
	if pad > 0 {
		if _, err := r.Raw(pad); err != nil {
			return nil, err
		}
	}
	return data, nil
}
