// Command splitwatch attaches to a supported game and publishes timer events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"splitwatch/bridge"
	"splitwatch/config"
	"splitwatch/drivers"
	"splitwatch/game"
	"splitwatch/httpapi"
	"splitwatch/journal"
	"splitwatch/process_host"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sync/errgroup"
)

var log = logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, "splitwatch"))

func main() {
	listFlag := flag.Bool("list", false, "List the available drivers and exit")
	flag.Parse()

	registry := drivers.Default()
	if *listFlag {
		fmt.Println(strings.Join(registry.IDs(), "\n"))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, registry); err != nil {
		fmt.Fprintf(os.Stderr, "splitwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, registry *drivers.Registry) error {
	det, err := registry.New(cfg.Driver)
	if err != nil {
		return fmt.Errorf("driver %q: %w (available: %s)", cfg.Driver, err, strings.Join(registry.IDs(), ", "))
	}

	b := bridge.New(cfg.MaxBacklog)
	engine, err := game.NewEngine(game.Options{
		Detector:       det,
		Opener:         process_host.NewHelper(),
		Bridge:         b,
		ProcessNames:   cfg.ProcessNames,
		PollInterval:   cfg.PollInterval,
		AttachInterval: cfg.AttachInterval,
		RemoteTimeout:  cfg.RemoteTimeout,
	})
	if err != nil {
		return err
	}

	var store *journal.Store
	if cfg.JournalPath != "" {
		store, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	names := cfg.ProcessNames
	if len(names) == 0 {
		names = det.Info().ProcessNames
	}
	log.Infoln("driver", det.Info().ID, "watching", strings.Join(names, ","))

	g, ctx := errgroup.WithContext(ctx)

	console := b.Subscribe("console", cfg.EventBuffer)
	g.Go(func() error {
		for ev := range console.Events() {
			log.Infoln(ev.String())
		}
		if n := console.Dropped(); n > 0 {
			log.Warn(fmt.Sprintf("console dropped %d events", n))
		}
		return nil
	})

	if store != nil {
		sub := b.Subscribe("journal", cfg.EventBuffer)
		g.Go(func() error {
			return store.Run(ctx, sub)
		})
	}

	if cfg.HTTPAddr != "" {
		var j httpapi.Journal
		if store != nil {
			j = store
		}
		srv := httpapi.NewServer(engine, j)
		g.Go(func() error {
			return srv.Serve(ctx, cfg.HTTPAddr)
		})
	}

	g.Go(func() error {
		defer b.Close()
		return engine.Run(ctx)
	})

	return g.Wait()
}
