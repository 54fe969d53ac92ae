// Package main runs the lending monitor: an HTTP shell over the multi-network pool
// monitoring core.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/lending-monitor/internal/aggregate"
	"github.com/yourorg/lending-monitor/internal/chain"
	"github.com/yourorg/lending-monitor/internal/config"
	"github.com/yourorg/lending-monitor/internal/fetch"
	"github.com/yourorg/lending-monitor/internal/history"
	"github.com/yourorg/lending-monitor/internal/monitor"
	"github.com/yourorg/lending-monitor/internal/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg.LogFormat, cfg.LogLevel)

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	manager := chain.NewManager(cfg, chain.Options{
		PollInterval: cfg.BlockPollInterval,
		CallTimeout:  cfg.RPCTimeout,
		Subscribe:    cfg.BlockSubscribe,
		DialRetries:  cfg.DialRetries,
		RateLimit:    cfg.RPCRateLimit,
		RateBurst:    cfg.RPCRateBurst,
	})
	defer manager.Close()

	registry := fetch.NewRegistry(manager)
	aggregator := aggregate.New(registry, manager, cfg.SweepParallelism)
	service := monitor.NewService(manager, aggregator, history.NewStore(), monitor.Options{
		DefaultNetwork: cfg.DefaultNetwork,
		MaxHistory:     cfg.MaxHistory,
		OpportunityAPY: cfg.OpportunityAPY,
	})

	logrus.WithFields(logrus.Fields{
		"default_network": cfg.DefaultNetwork,
		"max_history":     cfg.MaxHistory,
		"subscriptions":   cfg.BlockSubscribe,
	}).Info("Lending monitor configured")

	NewServer(cfg.Port, service).Start()
}

// setupLogging configures the logging for the application
func setupLogging(format, level string) {
	switch strings.ToLower(format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// Server is the HTTP shell around the monitoring core.
type Server struct {
	port   string
	core   Core
	server *http.Server
}

func NewServer(port string, core Core) *Server {
	return &Server{port: port, core: core}
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	logrus.Info("Server stopped")
}
