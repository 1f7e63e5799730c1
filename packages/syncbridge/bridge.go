package syncbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/xmlhttp/packages/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ErrWorkerFailed is returned when the worker could not produce a response.
var ErrWorkerFailed = errors.New("sync worker failed")

// StatusWorkerFailed is the status reported for a failed blocking transfer.
const StatusWorkerFailed = http.StatusServiceUnavailable

// DefaultPollInterval is how often spool mode stats the sentinel when no
// filesystem notification arrives.
const DefaultPollInterval = 10 * time.Millisecond

// Mode selects how the worker hands its result back.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeSpool  Mode = "spool"
)

// ParseMode parses "direct" or "spool". The empty string means direct.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDirect:
		return ModeDirect, nil
	case ModeSpool:
		return ModeSpool, nil
	default:
		return "", fmt.Errorf("unknown sync mode %q (expected direct or spool)", s)
	}
}

// Job performs one transfer, reporting the response to h.
type Job func(ctx context.Context, h transport.Handler) error

// Bridge runs Jobs on a worker goroutine and blocks until they finish.
type Bridge struct {
	mode   Mode
	fs     afero.Fs
	dir    string
	poll   time.Duration
	logger logrus.FieldLogger
}

type Option func(*Bridge)

func WithMode(m Mode) Option {
	return func(b *Bridge) {
		b.mode = m
	}
}

// WithFs sets the filesystem spool artifacts are written to.
func WithFs(fs afero.Fs) Option {
	return func(b *Bridge) {
		b.fs = fs
	}
}

// WithDir sets the directory spool artifacts are written to.
func WithDir(dir string) Option {
	return func(b *Bridge) {
		b.dir = dir
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(b *Bridge) {
		b.poll = d
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// New creates a Bridge. The default is direct mode.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		mode: ModeDirect,
		fs:   afero.NewOsFs(),
		dir:  os.TempDir(),
		poll: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		b.logger = l
	}
	return b
}

// Mode returns the bridge's mode.
func (b *Bridge) Mode() Mode {
	return b.mode
}

// Run executes job and blocks until its response is complete. Failures of
// the job wrap ErrWorkerFailed. When ctx is cancelled the transfer is
// stopped and ctx's error is returned once the worker has exited.
func (b *Bridge) Run(ctx context.Context, job Job) (*Envelope, error) {
	if b.mode == ModeSpool {
		return b.runSpool(ctx, job)
	}
	return b.runDirect(ctx, job)
}

type outcome struct {
	env *Envelope
	err error
}

func (b *Bridge) runDirect(ctx context.Context, job Job) (*Envelope, error) {
	done := make(chan outcome, 1)
	go func() {
		env, err := collect(ctx, job)
		done <- outcome{env: env, err: err}
	}()

	res := <-done
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkerFailed, res.err)
	}
	return res.env, nil
}

func collect(ctx context.Context, job Job) (*Envelope, error) {
	var c transport.Collector
	if err := job(ctx, &c); err != nil {
		return nil, err
	}
	return newEnvelope(&c), nil
}
