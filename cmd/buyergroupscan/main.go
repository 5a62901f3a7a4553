package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/adrata/buyergroup/internal/app"
	"github.com/adrata/buyergroup/internal/config"
	"github.com/adrata/buyergroup/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single batch and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.ForFormat(cfg.Logging.Format, cfg.Logging.Level)

	application := app.New(cfg, logger)

	run := application.RunScheduled
	if *once {
		run = application.Run
	}

	if err := run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
