// Command opcuad-server starts a standalone OPC UA binary server: it
// loads internal/config, builds internal/server with a zap logger,
// serves the Prometheus endpoint, and shuts down on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/config"
	"github.com/ironspan/opcuad/internal/metrics"
	"github.com/ironspan/opcuad/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file (defaults are used if omitted)")
	metricsAddr := flag.String("metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	identity, err := server.LoadIdentity(cfg.ServerCertificatePath, cfg.ServerPrivateKeyPath)
	if err != nil {
		return fmt.Errorf("loading server identity: %w", err)
	}

	srv, err := server.New(cfg, identity, logger)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	if cfg.EnableMetrics {
		srv.Metrics().Register(prometheus.DefaultRegisterer)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.TCPHost, cfg.TCPPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	logger.Info("opcuad listening", zap.String("address", addr))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Serve(ctx, ln); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	srv.Shutdown()
	return nil
}
