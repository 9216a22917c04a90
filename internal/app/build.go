package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Adityashandilya555/personifi-aria-sub001/internal/config"
	"github.com/Adityashandilya555/personifi-aria-sub001/internal/httpapi"
	"github.com/Adityashandilya555/personifi-aria-sub001/internal/intent"
	"github.com/Adityashandilya555/personifi-aria-sub001/internal/intentruntime"
	"github.com/Adityashandilya555/personifi-aria-sub001/internal/observability"
	"github.com/Adityashandilya555/personifi-aria-sub001/internal/social"
)

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Service *intentruntime.Service
	Metrics *observability.Metrics
	Logger  *zap.Logger

	// Cleanup should be called on shutdown to release external resources (DB pool, log buffers).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := intent.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("topic store init failed: %w", err)
	}

	provider, err := social.NewProvider(social.Config{
		Mode:    cfg.SocialProviderMode,
		HTTPURL: cfg.SocialHTTPURL,
		Timeout: cfg.SocialTimeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("social provider init failed: %w", err)
	}

	service := intentruntime.New(intentruntime.Config{
		StaleAfter:        cfg.StaleAfter,
		CacheTTL:          cfg.CacheTTL,
		ActiveTopicLimit:  cfg.ActiveTopicLimit,
		SocialTimeout:     cfg.SocialTimeout,
		SocialPulseWindow: cfg.SocialPulseWindow,
	}, store, provider, metrics, logger)

	logger.Info("topic store ready", zap.String("mode", service.StoreMode()))

	api := httpapi.New(cfg, service, metrics)

	cleanup := func() error {
		var errs []string
		if err := service.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		_ = logger.Sync()
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Service: service,
		Metrics: metrics,
		Logger:  logger,
		Cleanup: cleanup,
	}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("APP_LOG_LEVEL parse error: %w", err)
	}
	logCfg := zap.NewProductionConfig()
	logCfg.Level = lvl
	return logCfg.Build()
}
