package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/jobchat/internal/config"
	"github.com/jonathan/jobchat/internal/observability"
	"github.com/jonathan/jobchat/internal/server"
	"github.com/jonathan/jobchat/internal/server/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interview API server",
	Long:  `Start an HTTP server that exposes application creation, interview turns, report generation and data extraction.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (default 8080)")
	bindFlag("port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: "jobchat",
		Exporter:    a.cfg.Tracing.Exporter,
		Endpoint:    a.cfg.Tracing.Endpoint,
	}, a.log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	if err := a.openStore(ctx); err != nil {
		return err
	}
	if err := a.openClient(ctx); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Port:      a.cfg.Port,
		RateLimit: rateLimitConfig(a.cfg.RateLimit),
		Logger:    a.log.Named("http"),
	}, a.interviewService(), a.extractionService())

	return srv.Start(ctx)
}

// rateLimitConfig applies the configured defaults to the built-in route rules
func rateLimitConfig(c config.RateLimitConfig) *ratelimit.Config {
	return &ratelimit.Config{
		Enabled:         c.Enabled,
		DefaultLimit:    c.DefaultLimit,
		DefaultWindow:   c.DefaultWindow,
		CleanupInterval: c.CleanupInterval,
		Whitelist:       ratelimit.IPSet(c.Whitelist),
		Blacklist:       ratelimit.IPSet(c.Blacklist),
		Rules:           ratelimit.DefaultRules(),
	}
}
