package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/afero"
)

// FilePath returns the filesystem path a file URL points at.
func FilePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Path
}

// doFile reads the whole file and hands it to h as one block.
func (d *Dispatcher) doFile(ctx context.Context, u *url.URL, h Handler) error {
	path := FilePath(u)
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h.Head(&Head{
		StatusCode:    http.StatusOK,
		StatusText:    http.StatusText(http.StatusOK),
		Header:        http.Header{},
		URL:           u.String(),
		ContentLength: int64(len(data)),
	})
	h.Data(data)
	return nil
}
