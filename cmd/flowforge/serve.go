package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/release"
	"github.com/flowforge/flowforge/engine/workflow"
	"github.com/flowforge/flowforge/pkg/logger"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch every registered workflow's cron schedule and release it when due",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().String("addr", ":9090", "address the metrics endpoint listens on")
	cmd.Flags().Int64("rate-per-minute", 0, "cap releases per workflow per minute (0 disables the limit)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(contextWithLogger(cmd.Context(), cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.FromContext(ctx)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}

	specs := make([]workflow.Spec, 0, len(a.specs))
	for _, spec := range a.specs {
		specs = append(specs, spec)
	}

	ratePerMinute, _ := cmd.Flags().GetInt64("rate-per-minute")
	sched, err := release.New(a.driver, specs, release.Config{
		RatePerMinute: ratePerMinute,
		OnResult:      logReleaseResult(log),
	})
	if err != nil {
		return fmt.Errorf("building release scheduler: %w", err)
	}

	addr, _ := cmd.Flags().GetString("addr")
	metricsSrv := startMetricsServer(addr, a.metrics.ExporterHandler(), log)
	defer shutdownMetricsServer(metricsSrv, log)

	tok, cancelTok := core.NewCancelToken(ctx)
	defer cancelTok()

	log.Info("serving scheduled releases", "workflows", len(specs), "metrics_addr", addr)
	sched.Run(ctx, tok)
	log.Info("shutdown signal received, draining in-flight releases")
	return nil
}

// logReleaseResult is the host-level observer release.Scheduler calls for
// every fired release; the scheduler itself has no audit/logging opinion
// by design, so serve supplies one here.
func logReleaseResult(log logger.Logger) release.ResultFunc {
	return func(workflowName string, releaseTime time.Time, res workflow.Result, err error) {
		if err != nil {
			log.Error("release failed", "workflow", workflowName, "release_time", releaseTime, "error", err)
			return
		}
		log.Info("release finished", "workflow", workflowName, "release_time", releaseTime, "status", res.Status, "run_id", res.RunID)
	}
}

func startMetricsServer(addr string, handler http.Handler, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped unexpectedly", "error", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}
}
