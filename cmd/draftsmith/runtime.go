package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/draftsmith-ai/draftsmith/internal/agentdef"
	"github.com/draftsmith-ai/draftsmith/internal/client"
	"github.com/draftsmith-ai/draftsmith/internal/config"
	"github.com/draftsmith-ai/draftsmith/internal/exec"
	"github.com/draftsmith-ai/draftsmith/internal/observability"
	"github.com/draftsmith-ai/draftsmith/internal/provider"
	"github.com/draftsmith-ai/draftsmith/internal/storage"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// runtime bundles everything a command needs after config wiring.
type runtime struct {
	cfg     *config.Config
	client  *client.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

// buildRuntime loads config and assembles the client with its
// collaborators. The caller owns Close.
func buildRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})

	llm, err := provider.New(provider.Config{
		Type:    cfg.Provider.Type,
		APIKey:  cfg.Provider.APIKey,
		Model:   cfg.Provider.Model,
		BaseURL: cfg.Provider.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	store, err := buildStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	loader := agentdef.NewLoader(agentdef.LoaderOptions{
		BaseDir:            cfg.Agents.BaseDir,
		FallbackDir:        cfg.Agents.FallbackDir,
		ExpansionPackPaths: cfg.Agents.ExpansionPacks,
		Logger:             logger,
	})

	var runner *exec.Executor
	if cfg.Exec.Enabled {
		runner = exec.New(exec.Options{
			Whitelist: commandWhitelist(cfg.Exec),
			Timeout:   cfg.Exec.Timeout,
			Env:       cfg.Exec.Env,
			Logger:    logger,
		})
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		go serveMetrics(cfg.Metrics.Listen, metrics, logger)
	}

	c, err := client.New(client.Options{
		Provider: llm,
		Storage:  store,
		Loader:   loader,
		Runner:   runner,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &runtime{cfg: cfg, client: c, logger: logger, metrics: metrics}, nil
}

func (r *runtime) Close() error {
	return r.client.Close()
}

// sessionOptions applies the config's session defaults, letting flags win.
func (r *runtime) sessionOptions(costLimit float64) models.SessionOptions {
	opts := models.SessionOptions{
		CostLimit:       r.cfg.Session.CostLimit,
		AutoSave:        r.cfg.Session.AutoSave,
		MaxOutputTokens: r.cfg.Session.MaxOutputTokens,
	}
	if costLimit > 0 {
		opts.CostLimit = costLimit
	}
	return opts
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// No file is fine when env vars carry the provider key.
		cfg := config.Default()
		cfg.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.Provider.APIKey == "" {
			cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
			if cfg.Provider.APIKey != "" {
				cfg.Provider.Type = "openai"
			}
		}
		return cfg, nil
	}
	return config.Load(path)
}

func buildStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Type {
	case "", "memory":
		return storage.NewMemoryBackend(), nil
	case "s3":
		backend, err := storage.NewS3Backend(ctx, storage.S3Config{
			Bucket:          cfg.Storage.S3.Bucket,
			Region:          cfg.Storage.S3.Region,
			Endpoint:        cfg.Storage.S3.Endpoint,
			Prefix:          cfg.Storage.S3.Prefix,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		if err := backend.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize s3 storage: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func commandWhitelist(cfg config.ExecConfig) []string {
	switch cfg.Whitelist {
	case "content-creation":
		return exec.ContentCreationWhitelist
	case "custom":
		return cfg.Commands
	default:
		return exec.DefaultWhitelist
	}
}

func serveMetrics(listen string, metrics *observability.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(listen, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}
