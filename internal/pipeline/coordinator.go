// Package pipeline is the single consumer of the upload queue. It gates
// each image through armed state and working hours, delegates detection,
// and triggers notification and cleanup. Exactly one image is processed
// at a time regardless of how many cameras upload concurrently; that
// bounds the heavyweight detection step to one concurrent call.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"camsentry/internal/alert"
	"camsentry/internal/annotate"
	"camsentry/internal/armed"
	"camsentry/internal/config"
	"camsentry/internal/detect"
	"camsentry/internal/fsutil"
	"camsentry/internal/notify"
	"camsentry/internal/queue"
	"camsentry/internal/schedule"
)

type Coordinator struct {
	Queue     *queue.Queue
	Cfg       *config.Config
	Armed     *armed.Store
	Detector  detect.Detector
	Messenger notify.Messenger
	Deduper   *alert.Deduper
	FS        afero.Fs
	Logger    *slog.Logger

	// DeleteAfter removes originals once an item is fully handled. The
	// daemon always sets it; tests may keep files around.
	DeleteAfter bool

	// Now is replaceable for schedule tests.
	Now func() time.Time
}

// Run consumes the queue until ctx is done. Item failures are logged and
// never stop the loop.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		it, err := c.Queue.Get(ctx)
		if err != nil {
			return nil
		}
		if err := c.Process(ctx, it, c.DeleteAfter); err != nil {
			c.Logger.Warn("image discarded", "path", it.Path, "user", it.User.Username, "reason", err)
		}
	}
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Process runs the gating sequence for one dequeued item. The first
// failing gate removes the file and returns a typed error. Settings come
// from the snapshot taken at enqueue time; only the owning user id is
// resolved against the live configuration.
func (c *Coordinator) Process(ctx context.Context, it queue.Item, deleteAfter bool) error {
	lg := c.Logger.With("path", it.Path)
	lg.Info("processing image")

	id, _, ok := c.Cfg.FindByUsername(it.User.Username)
	if !ok {
		_ = fsutil.CleanupFile(c.FS, it.Path, c.Cfg.RootDir)
		return fmt.Errorf("%w: %q", ErrUserNotFound, it.User.Username)
	}
	u := it.User
	root := filepath.Join(c.Cfg.RootDir, id)

	if !c.Armed.Get(ctx, id) {
		_ = fsutil.CleanupFile(c.FS, it.Path, root)
		return fmt.Errorf("%w: %s", ErrDisarmed, id)
	}

	w, err := schedule.WindowFor(u.WorkingHours)
	if err != nil {
		_ = fsutil.CleanupFile(c.FS, it.Path, root)
		return fmt.Errorf("working hours for %s: %w", id, err)
	}
	if !w.Within(c.now()) {
		_ = fsutil.CleanupFile(c.FS, it.Path, root)
		return fmt.Errorf("%w: %s", ErrOutsideSchedule, id)
	}

	res, err := c.Detector.Detect(ctx, it.Path, u)
	if err != nil {
		_ = fsutil.CleanupFile(c.FS, it.Path, root)
		return fmt.Errorf("%w: %v", ErrDetectionFailed, err)
	}

	objects := detect.Filter(res, u)
	if len(objects) == 0 {
		lg.Info("no relevant objects detected")
	} else if err := c.dispatch(ctx, id, u, it.Path, res, objects, lg); err != nil {
		_ = fsutil.CleanupFile(c.FS, it.Path, root)
		return err
	}

	if deleteAfter {
		if err := fsutil.CleanupFile(c.FS, it.Path, root); err != nil {
			lg.Warn("cleanup failed", "error", err)
		} else {
			lg.Info("processed file deleted")
		}
	}
	return nil
}

// dispatch archives, annotates, and fans the result out to the messaging
// and alert collaborators. Notification failures are logged and swallowed;
// only annotation itself can fail the item.
func (c *Coordinator) dispatch(ctx context.Context, id string, u config.UserConfig, path string, res detect.Result, objects []string, lg *slog.Logger) error {
	if c.Cfg.Archive.Enable {
		if _, err := fsutil.ArchiveCopy(c.FS, path, u.Username, c.Cfg.Archive.Dir, c.now()); err != nil {
			lg.Warn("archive copy failed", "error", err)
		}
	}

	marked, err := annotate.Annotate(c.FS, path, res, u.Username, u.WatermarkText, c.now())
	if err != nil {
		return fmt.Errorf("annotate: %w", err)
	}

	caption := "Detected: " + strings.Join(objects, ", ")
	if err := c.Messenger.SendPhoto(ctx, u.TelegramChatID, marked, caption); err != nil {
		lg.Warn("chat notification failed", "user", id, "error", err)
	}
	c.Deduper.Notify(ctx, id, u, marked, caption)

	if err := c.FS.Remove(marked); err != nil {
		lg.Warn("removing annotated copy failed", "path", marked, "error", err)
	}
	lg.Info("detections dispatched", "user", id, "objects", objects)
	return nil
}
