// clipstashd is the host process for the clipboard history engine: it
// wires the store, dedup engine, notification bus, and poller together
// and runs until interrupted. UI surfaces (menu bar, search overlay)
// attach to the same components in the desktop build.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goflags "github.com/jessevdk/go-flags"

	"github.com/runnerr0/clipstash/internal/bus"
	"github.com/runnerr0/clipstash/internal/clipboard"
	"github.com/runnerr0/clipstash/internal/config"
	"github.com/runnerr0/clipstash/internal/history"
	"github.com/runnerr0/clipstash/internal/logging"
	"github.com/runnerr0/clipstash/internal/storage"
)

var version = "dev"

type options struct {
	Config   string `long:"config" description:"Path to config file"`
	LogLevel string `long:"log-level" description:"Override configured log level"`
	Version  bool   `long:"version" description:"Show version and exit"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "clipstashd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	parser := goflags.NewParser(&opts, goflags.Default)
	parser.Name = "clipstashd"
	parser.LongDescription = "Clipboard history daemon: monitors the system clipboard and maintains a searchable, deduplicated history."

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}

	if opts.Version {
		fmt.Printf("clipstashd %s\n", version)
		return nil
	}

	var cfg *config.Config
	var err error
	if opts.Config != "" {
		cfg, err = config.LoadOrCreateAt(opts.Config)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logging.Setup(logging.ParseFormat(cfg.Logging.Format), logging.ParseLevel(level))

	root, err := config.ExpandPath(cfg.Storage.Path)
	if err != nil {
		return err
	}

	store, db, err := storage.Open(root, cfg.Storage.SQLiteFile)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Reconcile(ctx); err != nil {
		slog.Warn("payload reconcile failed", "err", err)
	}

	changes := bus.New()
	manager := history.New(store, changes, cfg.History.MaxItems, cfg.History.RecentLimit)

	device, err := clipboard.NewDevice()
	if err != nil {
		return fmt.Errorf("open clipboard: %w", err)
	}
	defer device.Close()

	poller := clipboard.NewPoller(device, manager,
		time.Duration(cfg.Poll.IntervalMS)*time.Millisecond)
	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer poller.Stop()

	// Keep a subscription open for the process lifetime; UI components
	// attach their own and re-query on each signal.
	sub := changes.Subscribe()
	defer sub.Close()

	slog.Info("clipstashd running", "version", version, "storage", root)

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case <-sub.C:
			slog.Debug("content changed")
		}
	}
}
