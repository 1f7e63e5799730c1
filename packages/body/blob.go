package body

import (
	"bytes"
	"io"
	"strings"
)

// Blob is an immutable byte payload with a MIME type.
type Blob struct {
	typ  string
	data []byte
}

// NewBlob wraps data. The slice is retained, not copied.
func NewBlob(data []byte, contentType string) *Blob {
	return &Blob{typ: strings.ToLower(contentType), data: data}
}

// Size returns the payload length in bytes.
func (b *Blob) Size() int64 {
	return int64(len(b.data))
}

// Type returns the lower-cased MIME type, possibly empty.
func (b *Blob) Type() string {
	return b.typ
}

// Bytes returns the payload.
func (b *Blob) Bytes() []byte {
	return b.data
}

// Text decodes the payload as UTF-8.
func (b *Blob) Text() string {
	return decodeText(string(b.data))
}

// Reader returns a reader over the payload.
func (b *Blob) Reader() io.Reader {
	return bytes.NewReader(b.data)
}

// Slice returns the bytes in [start, end) as a new blob. Negative offsets
// count from the end, out of range offsets are clamped.
func (b *Blob) Slice(start, end int64, contentType string) *Blob {
	size := b.Size()
	start = clampOffset(start, size)
	end = clampOffset(end, size)
	if end < start {
		end = start
	}
	out := make([]byte, end-start)
	copy(out, b.data[start:end])
	return NewBlob(out, contentType)
}

func clampOffset(off, size int64) int64 {
	if off < 0 {
		off += size
		if off < 0 {
			return 0
		}
	}
	if off > size {
		return size
	}
	return off
}
