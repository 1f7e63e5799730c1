package transport

import (
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding is advertised when decompression is enabled.
const AcceptEncoding = "gzip, deflate, br, zstd"

type decoderFunc func(r io.Reader) (io.ReadCloser, error)

var decoders = map[string]decoderFunc{
	"gzip":    newGzipReader,
	"x-gzip":  newGzipReader,
	"deflate": func(r io.Reader) (io.ReadCloser, error) { return zlib.NewReader(r) },
	"br":      func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(brotli.NewReader(r)), nil },
	"zstd": func(r io.Reader) (io.ReadCloser, error) {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	},
}

func newGzipReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// lazyDecoder builds its decoder on the first Read, so an empty body
// decodes to nothing instead of failing on a missing header.
type lazyDecoder struct {
	src  io.Reader
	open decoderFunc
	rc   io.ReadCloser
	err  error
}

func (d *lazyDecoder) Read(p []byte) (int, error) {
	if d.rc == nil && d.err == nil {
		d.rc, d.err = d.open(d.src)
	}
	if d.err != nil {
		return 0, d.err
	}
	return d.rc.Read(p)
}

func (d *lazyDecoder) Close() error {
	if d.err != nil || d.rc == nil {
		return nil
	}
	return d.rc.Close()
}

// decoderStack reads through the outermost decoder and closes every layer.
type decoderStack []*lazyDecoder

func (s decoderStack) Read(p []byte) (int, error) {
	return s[len(s)-1].Read(p)
}

func (s decoderStack) Close() error {
	var first error
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// decodeBody wraps r in decoders for encoding, which may list several
// codings. ok is false when any coding is not one we decode; r is then
// returned as is.
func decodeBody(encoding string, r io.Reader) (rc io.ReadCloser, ok bool) {
	var codings []decoderFunc
	for _, name := range strings.Split(encoding, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || name == "identity" {
			continue
		}
		open, known := decoders[name]
		if !known {
			return io.NopCloser(r), false
		}
		codings = append(codings, open)
	}
	if len(codings) == 0 {
		return io.NopCloser(r), false
	}

	// codings are listed in the order they were applied
	stack := make(decoderStack, 0, len(codings))
	src := r
	for i := len(codings) - 1; i >= 0; i-- {
		d := &lazyDecoder{src: src, open: codings[i]}
		stack = append(stack, d)
		src = d
	}
	return stack, true
}
