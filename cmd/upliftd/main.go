package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"uplift/internal/config"
	"uplift/internal/daemon"
	"uplift/internal/logging"
	"uplift/internal/pipeline"
	"uplift/internal/sampler"
	"uplift/internal/store"
)

func main() {
	configFlag := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		os.Exit(1)
	}

	engine := sampler.NewClient(cfg.Sampler.URL, cfg.Sampler.TimeoutSeconds)
	runner := pipeline.NewRunner(st, engine, logger)

	d, err := daemon.New(cfg, st, runner, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		st.Close()
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("upliftd shutting down")
}
