package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/api"
	"github.com/solatis/rulekeeper/internal/core/server"
	"github.com/solatis/rulekeeper/internal/metrics"
	"github.com/solatis/rulekeeper/internal/tracing"
)

const shutdownGrace = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC rule engine service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	cmd.Flags().Int("port", 50061, "gRPC server port")
	cmd.Flags().String("metrics-addr", ":9090", "Prometheus /metrics listen address (empty disables)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("host") {
		a.cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		a.cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("metrics-addr") {
		a.cfg.Server.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}

	if err := a.requireMigrated(ctx); err != nil {
		return err
	}

	shutdownTracing, err := tracing.Init(ctx, Version)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	m := metrics.New()
	engine, err := a.engine(m)
	if err != nil {
		return err
	}

	service, err := api.NewRuleEngineService(engine, a.store, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(a.cfg.Server, service, m, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	admin, err := api.NewRuleAdminService(a.store, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create admin service: %w", err)
	}
	grpcServer.RegisterAdmin(admin)

	var metricsServer *http.Server
	if addr := a.cfg.Server.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("metrics listening", "addr", addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	a.logger.Info("starting rulekeeper",
		"version", Version,
		"host", a.cfg.Server.Host,
		"port", a.cfg.Server.Port,
		"count_policy", a.cfg.Engine.CountPolicy,
		"audit", a.cfg.Engine.Audit,
	)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		a.logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("metrics server shutdown failed", "error", err)
			}
		}
		return grpcServer.Shutdown(shutdownCtx)
	}
}
