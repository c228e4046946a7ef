package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/config"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/handlers"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/logging"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/publish"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/server"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/service"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	topo, err := config.LoadTopology(cfg.Monitor.TopologyFile)
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}

	src, err := source.NewNATSSource(source.NATSConfig{
		URL:        cfg.Source.NATSURL,
		Subject:    cfg.Source.Subject,
		BufferSize: cfg.Source.BufferSize,
	}, logger.WithComponent("source"))
	if err != nil {
		return fmt.Errorf("connect record source: %w", err)
	}
	defer src.Close()

	var collector *publish.Collector
	if cfg.Publish.Enabled {
		client, err := publish.NewClient(cfg.Publish.RedisURL, cfg.Publish.InstanceID)
		if err != nil {
			logger.Warn("stats publishing disabled, redis unavailable", "error", err)
		} else {
			defer client.Close()
			collector = publish.NewCollector(client, cfg.Publish.FlushInterval, logger.WithComponent("publish"))
		}
	}

	monitor := service.New(cfg, topo, src, collector, logger.WithComponent("monitor"))
	defer monitor.Close()

	handler := handlers.NewMonitorHandler(monitor)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := monitor.Run(ctx); err != nil {
			logger.Error("ingestion loop exited", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("monitor listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	return nil
}
