// lineage-arbiter is a long-lived claim arbiter. It owns the graph
// snapshot for its lifetime and serializes task claims from concurrent
// workers, answering over an NNG rep socket. Prometheus metrics are
// exposed over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dd0wney/cluso-lineage/pkg/arbiter"
	"github.com/dd0wney/cluso-lineage/pkg/audit"
	"github.com/dd0wney/cluso-lineage/pkg/config"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "lineage.yaml", "Config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	metricsAddr := flag.String("metrics", "", "Metrics HTTP address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Arbiter.Addr = *addr
	}
	if *metricsAddr != "" {
		cfg.Arbiter.MetricsAddr = *metricsAddr
	}

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.Error("arbiter exited", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	reg := metrics.NewRegistry()

	server, err := arbiter.NewServer(arbiter.ServerConfig{
		Addr:      cfg.Arbiter.Addr,
		GraphPath: cfg.GraphPath(),
		Sink:      sink,
		Logger:    logger,
		Metrics:   reg,
	})
	if err != nil {
		return err
	}
	defer server.Close()

	if cfg.Arbiter.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		go func() {
			logger.Info("metrics listening", logging.Path(cfg.Arbiter.MetricsAddr))
			if err := http.ListenAndServe(cfg.Arbiter.MetricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", logging.Error(err))
			}
		}()
	}

	logger.Info("arbiter listening", logging.Path(cfg.Arbiter.Addr))
	return server.Serve(ctx)
}

func openSink(ctx context.Context, cfg *config.Config) (audit.Sink, func(), error) {
	if cfg.Postgres.URL != "" {
		store, err := audit.NewPGStore(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	logger, err := audit.NewFileLogger(cfg.EventLogPath())
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { logger.Close() }, nil
}
