package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyndnsd/dyndnsd/internal/jsoncfg"
	"github.com/dyndnsd/dyndnsd/service"
	"github.com/dyndnsd/dyndnsd/tslog"
)

var (
	logNoColor bool
	logNoTime  bool
	logLevel   slog.Level
	confPath   string
	oneshot    bool
)

func init() {
	flag.BoolVar(&logNoColor, "logNoColor", false, "Disable colors in log output")
	flag.BoolVar(&logNoTime, "logNoTime", false, "Disable timestamps in log output")
	flag.TextVar(&logLevel, "logLevel", slog.LevelInfo, "Log level")
	flag.StringVar(&confPath, "confPath", "config.json", "Path to the configuration file")
	flag.BoolVar(&oneshot, "oneshot", false, "Reconcile every record once and exit")
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := tslog.New(logLevel, logNoColor, logNoTime)

	var cfg service.Config
	if err := jsoncfg.OpenAndDecodeDisallowUnknownFields(confPath, &cfg); err != nil {
		logger.Error("Failed to load configuration",
			slog.String("path", confPath),
			tslog.Err(err),
		)
		os.Exit(1)
	}

	svc, err := cfg.NewService(ctx, logger)
	if err != nil {
		logger.Error("Failed to build service", tslog.Err(err))
		os.Exit(1)
	}

	if oneshot {
		if err := svc.RunOnce(ctx); err != nil {
			logger.Error("Reconciliation failed", tslog.Err(err))
			os.Exit(1)
		}
		return
	}

	// SIGHUP forces an immediate check of every record.
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			svc.ForceAll()
		}
	}()

	svc.Run(ctx)
}
