package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/relay"
	"github.com/Tyrowin/gorelay/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	config := server.NewConfigFromEnv()

	logger, err := logging.New(config.LogLevel, config.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	relayConfig := config.RelayConfig()
	ln, err := relay.Bind(relayConfig.Address)
	if errors.Is(err, relay.ErrAddressInUse) {
		fmt.Fprintf(os.Stderr, "Address %s is already in use\n", relayConfig.Address)
		logger.Warn("Address already in use; not serving", zap.String("address", relayConfig.Address))
		return 0
	}
	if err != nil {
		logger.Error("Failed to bind relay address", zap.Error(err))
		return 1
	}
	fmt.Printf("Server running on %s\n", ln.Addr())

	rs := relay.NewServer(relayConfig, logger, relay.NewMetrics(registry))

	var opsServer *http.Server
	if config.OpsAddr != "" {
		handlers := server.NewHandlers(rs, config, logger)
		opsServer = server.CreateServer(config.OpsAddr, server.SetupRoutes(handlers, registry))
		go func() {
			if err := server.StartServer(opsServer, logger); err != nil {
				logger.Error("Ops server failed", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- rs.Serve(ln)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		logger.Error("Relay stopped accepting", zap.Error(err))
		return 1
	}

	if opsServer != nil {
		_ = server.ShutdownServer(opsServer, shutdownTimeout, logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rs.Shutdown(ctx); err != nil {
		logger.Warn("Relay shutdown incomplete", zap.Error(err))
	}
	return 0
}
