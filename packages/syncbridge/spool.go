package syncbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// artifacts are the two files of one spooled transfer.
type artifacts struct {
	sentinel string
	content  string
}

func (b *Bridge) newArtifacts() artifacts {
	base := fmt.Sprintf("xmlhttp-sync-%d-%s", os.Getpid(), uuid.NewString())
	return artifacts{
		sentinel: filepath.Join(b.dir, base+".lock"),
		content:  filepath.Join(b.dir, base+".json"),
	}
}

func (b *Bridge) runSpool(ctx context.Context, job Job) (*Envelope, error) {
	if err := b.fs.MkdirAll(b.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkerFailed, err)
	}

	files := b.newArtifacts()
	log := b.logger.WithFields(logrus.Fields{
		"sentinel": files.sentinel,
		"content":  files.content,
	})
	if err := afero.WriteFile(b.fs, files.sentinel, nil, 0o600); err != nil {
		return nil, fmt.Errorf("%w: creating sentinel: %w", ErrWorkerFailed, err)
	}
	log.Debug("sync transfer spooled")

	// the watcher must exist before the worker can remove the sentinel
	watcher := b.watch()
	if watcher != nil {
		defer watcher.Close()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.work(ctx, job, files, log)
	}()

	waitErr := b.waitRemoved(ctx, files.sentinel, watcher)
	<-done

	defer b.cleanup(files, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if waitErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkerFailed, waitErr)
	}

	data, err := afero.ReadFile(b.fs, files.content)
	if err != nil {
		return nil, fmt.Errorf("%w: reading result: %w", ErrWorkerFailed, err)
	}
	if err := b.fs.Remove(files.content); err != nil {
		log.WithError(err).Debug("could not remove content file")
	}
	return decodeEnvelope(data)
}

// work runs on the worker goroutine. It writes the content file first and
// removes the sentinel last.
func (b *Bridge) work(ctx context.Context, job Job, files artifacts, log logrus.FieldLogger) {
	defer func() {
		if err := b.fs.Remove(files.sentinel); err != nil {
			log.WithError(err).Debug("could not remove sentinel")
		}
	}()

	env, err := collect(ctx, job)
	if err != nil {
		env = &Envelope{Error: err.Error()}
	}
	data, err := json.Marshal(env)
	if err != nil {
		data = []byte(`{"error":"encoding result failed"}`)
	}
	if err := afero.WriteFile(b.fs, files.content, data, 0o600); err != nil {
		log.WithError(err).Debug("could not write content file")
	}
}

// watch returns a watcher on the spool directory, or nil when the
// filesystem is not the OS one or watching is unavailable.
func (b *Bridge) watch() *fsnotify.Watcher {
	if _, ok := b.fs.(*afero.OsFs); !ok {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		b.logger.WithError(err).Debug("fsnotify unavailable, polling sentinel")
		return nil
	}
	if err := w.Add(b.dir); err != nil {
		b.logger.WithError(err).Debug("cannot watch spool dir, polling sentinel")
		_ = w.Close()
		return nil
	}
	return w
}

// waitRemoved blocks until path no longer exists. Notifications wake it
// early; the stat poll catches anything a watcher misses.
func (b *Bridge) waitRemoved(ctx context.Context, path string, w *fsnotify.Watcher) error {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if w != nil {
		events = w.Events
		errs = w.Errors
	}

	for {
		exists, err := afero.Exists(b.fs, path)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
			} else if ev.Name != path {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
			} else {
				b.logger.WithError(err).Debug("watcher error, falling back to polling")
			}
		}
	}
}

func (b *Bridge) cleanup(files artifacts, log logrus.FieldLogger) {
	for _, path := range []string{files.sentinel, files.content} {
		if err := b.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Debug("could not remove artifact")
		}
	}
}
