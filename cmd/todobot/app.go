package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sandeepkv93/todobot/internal/commands"
	"github.com/sandeepkv93/todobot/internal/config"
	"github.com/sandeepkv93/todobot/internal/logging"
	"github.com/sandeepkv93/todobot/internal/notify"
	"github.com/sandeepkv93/todobot/internal/scheduler"
	"github.com/sandeepkv93/todobot/internal/storage"
	"github.com/sandeepkv93/todobot/internal/todo"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	loc     *time.Location
	crypter *storage.Crypter
	store   *storage.FileStore
	repo    *todo.Repository
	ledger  storage.DeliveryLedger
}

type appOptions struct {
	logOutput  io.Writer
	withLedger bool
}

func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	opt := logging.DefaultOptions()
	opt.Level = cfg.LogLevel
	opt.Format = cfg.LogFormat
	logger, err := logging.New(opts.logOutput, opt)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if cfg.EncryptionEnabled && cfg.UsesDefaultKey() {
		logger.Warn("using the default encryption key; set ENCRYPTION_KEY before storing real data")
	}

	crypter := storage.NewCrypter(cfg.EncryptionKey, cfg.EncryptionEnabled, logger)
	store := storage.NewFileStore(cfg.DataFile, crypter, logger)
	now := func() time.Time { return time.Now().In(loc) }
	repo, err := todo.Open(store, crypter, todo.Options{
		MaxTasks:     cfg.MaxTasksPerUser,
		MaxReminders: cfg.MaxRemindersPerUser,
		SaveDebounce: cfg.SaveDebounce.Duration,
		CacheSize:    cfg.CacheSize,
		Now:          now,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, loc: loc, crypter: crypter, store: store, repo: repo, ledger: storage.NopLedger{}}
	if opts.withLedger && cfg.LedgerFile != "" {
		ledger, err := storage.OpenLedger(ctx, cfg.LedgerFile)
		if err != nil {
			logger.Warn("delivery ledger unavailable, continuing without it", "path", cfg.LedgerFile, "err", err)
		} else {
			a.ledger = ledger
		}
	}
	return a, nil
}

func (a *app) now() time.Time {
	return time.Now().In(a.loc)
}

func (a *app) dispatcher() *commands.Dispatcher {
	return &commands.Dispatcher{
		Repo: a.repo,
		Now:  a.now,
		Limits: commands.Limits{
			MaxTaskLength:     a.cfg.MaxTaskLength,
			MaxReminderLength: commands.DefaultLimits().MaxReminderLength,
		},
	}
}

func (a *app) sweeper(n notify.Notifier) (*scheduler.Sweeper, error) {
	return scheduler.NewSweeper(a.repo, n, scheduler.Options{
		Interval:        a.cfg.ScanInterval.Duration,
		Lookahead:       a.cfg.DeadlineLookahead(),
		MaxConcurrent:   a.cfg.MaxConcurrentDeliveries,
		Ledger:          a.ledger,
		LedgerRetention: a.cfg.LedgerRetention.Duration,
		Now:             a.now,
		Logger:          a.logger,
	})
}

// baseNotifier logs every delivery and, when enabled, raises a desktop
// notification too.
func (a *app) baseNotifier() notify.Notifier {
	targets := notify.Multi{notify.LogNotifier{Logger: a.logger}}
	if a.cfg.DesktopNotifications {
		targets = append(targets, notify.NewDesktopNotifier())
	}
	return targets
}

// release closes the ledger and leaves the data file untouched. Read-only
// commands use it instead of close.
func (a *app) release() error {
	return a.ledger.Close()
}

func (a *app) close() error {
	var errs []error
	if err := a.repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("save data: %w", err))
	}
	if err := a.ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close ledger: %w", err))
	}
	return errors.Join(errs...)
}
