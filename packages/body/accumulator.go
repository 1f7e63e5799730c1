package body

import "strings"

// Accumulator collects the chunks of an asynchronous transfer. Text-like
// response types append to a text buffer, binary types keep the chunks.
type Accumulator struct {
	rt     ResponseType
	text   strings.Builder
	chunks [][]byte
	n      int64
}

// NewAccumulator creates an accumulator for rt.
func NewAccumulator(rt ResponseType) *Accumulator {
	return &Accumulator{rt: rt}
}

// Write stores a copy of p. It never fails.
func (a *Accumulator) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if a.rt.IsBinary() {
		chunk := make([]byte, len(p))
		copy(chunk, p)
		a.chunks = append(a.chunks, chunk)
	} else {
		a.text.Write(p)
	}
	a.n += int64(len(p))
	return len(p), nil
}

// Len returns the number of bytes written so far.
func (a *Accumulator) Len() int64 {
	return a.n
}

// Text returns the text received so far. It is empty for binary types.
func (a *Accumulator) Text() string {
	return decodeText(a.text.String())
}

// Bytes concatenates the received chunks into an exactly sized buffer.
func (a *Accumulator) Bytes() []byte {
	if a.rt.IsBinary() {
		return Concat(a.chunks)
	}
	return Concat([][]byte{[]byte(a.text.String())})
}

// Concat copies chunks into one buffer whose length and capacity both equal
// the total byte count.
func Concat(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, total)
	off := 0
	for _, c := range chunks {
		off += copy(out[off:], c)
	}
	return out
}

func decodeText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
