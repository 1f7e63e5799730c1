package syncbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/abdul-hamid-achik/xmlhttp/packages/transport"
)

// Envelope is the complete result of a blocking transfer.
type Envelope struct {
	StatusCode int         `json:"statusCode"`
	StatusText string      `json:"statusText"`
	Headers    http.Header `json:"headers"`
	URL        string      `json:"url"`
	// Body is exact bytes; JSON carries it as base64.
	Body  []byte `json:"body"`
	Error string `json:"error,omitempty"`
}

// Head returns the envelope's response head.
func (e *Envelope) Head() *transport.Head {
	return &transport.Head{
		StatusCode:    e.StatusCode,
		StatusText:    e.StatusText,
		Header:        e.Headers,
		URL:           e.URL,
		ContentLength: int64(len(e.Body)),
	}
}

func newEnvelope(c *transport.Collector) *Envelope {
	env := &Envelope{Body: c.Bytes()}
	if h := c.Response; h != nil {
		env.StatusCode = h.StatusCode
		env.StatusText = h.StatusText
		env.Headers = h.Header
		env.URL = h.URL
	}
	return env
}

func decodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed result: %w", ErrWorkerFailed, err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("%w: %w", ErrWorkerFailed, errors.New(env.Error))
	}
	if env.StatusCode == 0 {
		return nil, fmt.Errorf("%w: result has no status", ErrWorkerFailed)
	}
	return &env, nil
}
