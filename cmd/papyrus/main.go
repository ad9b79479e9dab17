package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/papyrus-app/papyrus/pkg/classify"
	"github.com/papyrus-app/papyrus/pkg/config"
	"github.com/papyrus-app/papyrus/pkg/feed"
	"github.com/papyrus-app/papyrus/pkg/ranker"
	"github.com/papyrus-app/papyrus/pkg/scheduler"
	"github.com/papyrus-app/papyrus/pkg/store"
	"github.com/papyrus-app/papyrus/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" description:"config file (yaml)"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address override"`
	DSN    string `long:"dsn" env:"DSN" description:"database DSN override"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor)

	log.Printf("[INFO] starting papyrus version %s", revision)

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	log.Print("[INFO] shutdown complete")
}

func loadConfig(opts Opts) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	if opts.DSN != "" {
		cfg.Database.DSN = opts.DSN
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, debug bool) error {
	db, err := store.New(store.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	feedParser := feed.NewParser(cfg.Schedule.FetchTimeout, "Papyrus/"+revision)

	model := classify.NewModel(classify.Params{
		MinCorpusSize: cfg.Model.MinCorpusSize,
		MaxComponents: cfg.Model.MaxComponents,
		Visualize:     cfg.Model.Visualize,
		PlotFile:      cfg.Model.PlotFile,
	})

	sched := scheduler.NewScheduler(db, feedParser, scheduler.Config{
		FeedTTL:        cfg.Schedule.FeedTTL,
		UpdateInterval: cfg.Schedule.UpdateInterval,
		FetchTimeout:   cfg.Schedule.FetchTimeout,
		MaxWorkers:     cfg.Schedule.MaxWorkers,
	})

	rnk := ranker.New(db, model, sched, ranker.Config{
		MaxArticles: cfg.Ranking.MaxArticles,
		DatasetSize: cfg.Model.DatasetSize,
		CacheTTL:    cfg.Ranking.CacheTTL,
	})
	sched.SetRetrainer(rnk)

	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(db, rnk, feedParser, server.Config{
		Listen:  cfg.Server.Listen,
		Timeout: cfg.Server.Timeout,
		Version: revision,
		Debug:   debug,
	})

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
