// Package daemon wires configuration, the external store, the ingestion
// server, the pipeline coordinator, and the auto-arm scheduler into one
// long-running service.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"camsentry/internal/alert"
	"camsentry/internal/armed"
	"camsentry/internal/config"
	"camsentry/internal/detect"
	"camsentry/internal/ftpserver"
	"camsentry/internal/notify"
	"camsentry/internal/pipeline"
	"camsentry/internal/queue"
	"camsentry/internal/schedule"
	"camsentry/internal/store"
)

type Options struct {
	Cfg    *config.Config
	Logger *slog.Logger

	// Overrides below default to the real collaborators; tests inject
	// fakes.
	FS        afero.Fs
	Detector  detect.Detector
	Messenger notify.Messenger
	Webhook   alert.Webhook
	KV        store.KV
	Locker    store.Locker

	Grace time.Duration
}

// Run starts the service and blocks until ctx is canceled or a component
// fails. Only a listener bind failure (surfaced through the ftp server)
// or invalid options are fatal; everything else degrades and logs.
func Run(ctx context.Context, opt Options) error {
	if opt.Cfg == nil {
		return errors.New("config is required")
	}
	if opt.Logger == nil {
		return errors.New("logger is required")
	}
	cfg, lg := opt.Cfg, opt.Logger

	fs := opt.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	kv, locker := opt.KV, opt.Locker
	if kv == nil || locker == nil {
		rd := store.NewRedis(cfg.Store.Addr, cfg.Store.Password, cfg.Store.DB)
		defer rd.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rd.Ping(pingCtx); err != nil {
			// Not fatal: reads fall back to config defaults until the
			// store becomes reachable.
			lg.Warn("external store unreachable at startup", "addr", cfg.Store.Addr, "error", err)
		}
		cancel()
		if kv == nil {
			kv = rd
		}
		if locker == nil {
			locker = rd
		}
	}

	armedStore := armed.New(kv, cfg.Store.ArmedKeyPrefix, cfg.Users, lg)
	if err := armedStore.SeedDefaults(ctx); err != nil {
		lg.Warn("seeding armed defaults failed", "error", err)
	}

	if err := ensureDirectories(fs, cfg); err != nil {
		return err
	}

	q := queue.New(cfg.QueueSize)

	det := opt.Detector
	if det == nil {
		det = detect.NewHTTP(cfg.Detector.URL, fs, time.Duration(cfg.Detector.TimeoutSec)*time.Second)
	}
	msg := opt.Messenger
	if msg == nil {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken)
		if err != nil {
			lg.Warn("telegram unavailable, chat notifications disabled", "error", err)
			msg = notify.Disabled{Reason: err}
		} else {
			msg = tg
		}
	}
	wh := opt.Webhook
	if wh == nil {
		wh = alert.NewHTTPWebhook(fs)
	}

	coord := &pipeline.Coordinator{
		Queue:       q,
		Cfg:         cfg,
		Armed:       armedStore,
		Detector:    det,
		Messenger:   msg,
		Deduper:     &alert.Deduper{Locker: locker, KV: kv, Webhook: wh, Logger: lg},
		FS:          fs,
		Logger:      lg,
		DeleteAfter: true,
	}
	sched := &schedule.Scheduler{
		Users:  cfg.Users,
		Policy: schedule.WorkingHoursPolicy{},
		Armed:  armedStore,
		Logger: lg,
	}
	srv, err := ftpserver.New(ftpserver.Options{
		Addr:   net.JoinHostPort(cfg.Listen.Host, strconv.Itoa(cfg.Listen.Port)),
		Cfg:    cfg,
		FS:     fs,
		Queue:  q,
		Grace:  opt.Grace,
		Logger: lg,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go func() { errCh <- srv.ListenAndServe(runCtx) }()
	go func() { errCh <- coord.Run(runCtx) }()
	go func() { errCh <- sched.Run(runCtx) }()

	lg.Info("camsentry started", "users", len(cfg.Users), "queue_capacity", q.Cap())

	// First exit wins; the rest are given a bounded window to unwind.
	err = <-errCh
	cancel()
	deadline := time.After(10 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-errCh:
		case <-deadline:
			lg.Warn("shutdown deadline elapsed")
			return err
		}
	}
	lg.Info("camsentry stopped")
	return err
}

// ensureDirectories creates the upload root, per-user roots, and the
// archive directory.
func ensureDirectories(fs afero.Fs, cfg *config.Config) error {
	if err := fs.MkdirAll(cfg.RootDir, 0o700); err != nil {
		return err
	}
	if cfg.Archive.Enable {
		if err := fs.MkdirAll(cfg.Archive.Dir, 0o700); err != nil {
			return err
		}
	}
	for id := range cfg.Users {
		if err := fs.MkdirAll(filepath.Join(cfg.RootDir, id), 0o700); err != nil {
			return err
		}
	}
	return nil
}
