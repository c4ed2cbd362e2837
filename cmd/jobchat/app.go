package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jonathan/jobchat/internal/config"
	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/extraction"
	"github.com/jonathan/jobchat/internal/interview"
	"github.com/jonathan/jobchat/internal/llm"
	"github.com/jonathan/jobchat/internal/logger"
)

// bindFlag ties a flag to a config key. An unset flag leaves the file and
// environment values in effect.
func bindFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag.Name, err))
	}
}

// app holds the dependencies shared by the subcommands
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	store  db.Store
	client llm.Client
}

// loadApp reads the configuration and builds the logger. Store and client
// are opened on demand by the commands that need them.
func loadApp() (*app, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

// openStore connects the configured document store
func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store {
	case config.StoreMemory:
		a.log.Warn("using the in-memory store: data is lost on exit")
		a.store = db.NewMemoryStore()
		return nil
	default:
		if a.cfg.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the postgres store (set DATABASE_URL or JOBCHAT_DATABASE_URL)")
		}
		conn, err := db.Connect(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.store = db.NewPostgresStore(conn)
		return nil
	}
}

// openClient creates the completion client with retries and timeouts
func (a *app) openClient(ctx context.Context) error {
	if a.cfg.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required (set GEMINI_API_KEY or JOBCHAT_GEMINI_API_KEY)")
	}
	models := a.cfg.ModelConfig()
	if err := models.Validate(); err != nil {
		return err
	}
	inner, err := llm.NewClient(ctx, models, a.cfg.Gemini.APIKey)
	if err != nil {
		return err
	}
	a.client = llm.WithResilience(inner, a.cfg.RetryPolicy(), a.log)
	return nil
}

func (a *app) interviewService() *interview.Service {
	return interview.NewService(a.store, a.client, interview.Options{
		InterviewTemperature: a.cfg.Interview.Temperature,
		ReportTemperature:    a.cfg.Report.Temperature,
		Logger:               a.log.Named("interview"),
	})
}

func (a *app) extractionService() *extraction.Service {
	return extraction.NewService(a.store, a.client, extraction.Options{
		Temperature: a.cfg.Extraction.Temperature,
		Logger:      a.log.Named("extraction"),
	})
}

// close releases the store and client and flushes the logger
func (a *app) close() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.log.Warn("closing completion client", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.log.Sync()
}
