package body

import (
	"bytes"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// DocumentParser parses markup into a document.
type DocumentParser func(r io.Reader) (*goquery.Document, error)

// Result is a materialized response.
type Result struct {
	// Value is the typed response: string, JSON value, []byte or *Blob.
	// It is nil for "document" and for invalid JSON.
	Value any
	// Text is the response text; empty unless the type keeps text.
	Text string
	// Document is set only for "document".
	Document *goquery.Document
}

// Materializer builds Results.
type Materializer struct {
	parseDocument DocumentParser
	logger        logrus.FieldLogger
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithDocumentParser replaces the goquery document parser.
func WithDocumentParser(p DocumentParser) Option {
	return func(m *Materializer) {
		m.parseDocument = p
	}
}

// WithLogger sets the logger used for parse failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Materializer) {
		m.logger = l
	}
}

// New creates a Materializer.
func New(opts ...Option) *Materializer {
	m := &Materializer{
		parseDocument: goquery.NewDocumentFromReader,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		m.logger = l
	}
	return m
}

// Finalize materializes everything written to a.
func (m *Materializer) Finalize(a *Accumulator, contentType string) Result {
	if a.rt.IsBinary() {
		return m.binary(a.rt, Concat(a.chunks), contentType)
	}
	return m.textual(a.rt, a.Text())
}

// FromBytes materializes a complete buffer. data is copied, never retained.
func (m *Materializer) FromBytes(rt ResponseType, contentType string, data []byte) Result {
	if rt.IsBinary() {
		return m.binary(rt, Concat([][]byte{data}), contentType)
	}
	return m.textual(rt, decodeText(string(data)))
}

func (m *Materializer) binary(rt ResponseType, buf []byte, contentType string) Result {
	if rt == TypeBlob {
		return Result{Value: NewBlob(buf, contentType)}
	}
	return Result{Value: buf}
}

func (m *Materializer) textual(rt ResponseType, text string) Result {
	switch rt {
	case TypeJSON:
		return Result{Value: parseJSON(text, m.logger)}
	case TypeDocument:
		doc, err := m.parseDocument(bytes.NewReader([]byte(text)))
		if err != nil {
			m.logger.WithError(err).Debug("document parse failed")
			return Result{}
		}
		return Result{Document: doc}
	default:
		return Result{Value: text, Text: text}
	}
}

func parseJSON(text string, logger logrus.FieldLogger) any {
	if !gjson.Valid(text) {
		logger.WithField("bytes", len(text)).Debug("response is not valid JSON")
		return nil
	}
	return gjson.Parse(text).Value()
}
