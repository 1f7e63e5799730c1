package capture

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Source is a request that has reached the DONE state.
type Source interface {
	Status() int
	GetResponseHeader(name string) string
	ResponseURL() string
	ResponseBytes() []byte
}

// Kind is where a Capture reads its value from.
type Kind string

const (
	KindBody   Kind = "body"
	KindHeader Kind = "header"
	KindStatus Kind = "status"
	KindURL    Kind = "url"
)

// Capture is a parsed capture expression.
type Capture struct {
	Name string
	Kind Kind
	Path string
}

// Parse reads an expression of the form [name=]kind[:path]. Without a name
// the expression itself is used as the name.
func Parse(expr string) (*Capture, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty capture expression")
	}

	name, spec := expr, expr
	if i := strings.Index(expr, "="); i >= 0 {
		name, spec = strings.TrimSpace(expr[:i]), strings.TrimSpace(expr[i+1:])
		if name == "" {
			return nil, fmt.Errorf("capture %q: missing name", expr)
		}
	}

	kind, path, _ := strings.Cut(spec, ":")
	c := &Capture{Name: name, Kind: Kind(strings.ToLower(kind)), Path: path}

	switch c.Kind {
	case KindBody:
	case KindHeader:
		if c.Path == "" {
			return nil, fmt.Errorf("capture %q: header name required", expr)
		}
	case KindStatus, KindURL:
		if c.Path != "" {
			return nil, fmt.Errorf("capture %q: %s takes no path", expr, c.Kind)
		}
	default:
		return nil, fmt.Errorf("capture %q: unknown source %q", expr, kind)
	}
	return c, nil
}

// ParseAll parses every expression, stopping at the first error.
func ParseAll(exprs []string) ([]*Capture, error) {
	captures := make([]*Capture, 0, len(exprs))
	for _, expr := range exprs {
		c, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, nil
}

type Extractor struct {
	src      Source
	body     []byte
	bodyJSON gjson.Result
}

func NewExtractor(src Source) *Extractor {
	e := &Extractor{
		src:  src,
		body: src.ResponseBytes(),
	}
	if gjson.ValidBytes(e.body) {
		e.bodyJSON = gjson.ParseBytes(e.body)
	}
	return e
}

// Extract returns the captured value and whether it was present.
func (e *Extractor) Extract(c *Capture) (any, bool) {
	switch c.Kind {
	case KindBody:
		return e.extractFromBody(c.Path)
	case KindHeader:
		return e.extractFromHeader(c.Path)
	case KindStatus:
		return e.src.Status(), true
	case KindURL:
		u := e.src.ResponseURL()
		return u, u != ""
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return string(e.body), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.src.GetResponseHeader(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// Extract parses expr and extracts it from src.
func Extract(src Source, expr string) (any, bool, error) {
	c, err := Parse(expr)
	if err != nil {
		return nil, false, err
	}
	v, ok := NewExtractor(src).Extract(c)
	return v, ok, nil
}

// ExtractAll returns the values of the captures present in src, keyed by
// capture name.
func ExtractAll(src Source, captures []*Capture) map[string]any {
	extractor := NewExtractor(src)
	results := make(map[string]any)

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		}
	}

	return results
}
