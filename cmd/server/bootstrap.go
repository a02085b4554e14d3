package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appconn "github.com/erp/connhub/internal/application/connection"
	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/auth"
	"github.com/erp/connhub/internal/infrastructure/config"
	"github.com/erp/connhub/internal/infrastructure/ecommerce"
	"github.com/erp/connhub/internal/infrastructure/scheduler"
	"github.com/erp/connhub/internal/infrastructure/storage"
)

// buildRegistry creates an adapter for every enabled platform
func buildRegistry(cfg *config.Config, log *zap.Logger) (*ecommerce.Registry, error) {
	var adapters []connection.PlatformAdapter

	if cfg.Shopline.Enabled {
		slCfg := ecommerce.NewShoplineConfig(cfg.Shopline.AppKey, cfg.Shopline.AppSecret, cfg.Shopline.RedirectURI)
		if len(cfg.Shopline.Scopes) > 0 {
			slCfg.Scopes = cfg.Shopline.Scopes
		}
		if cfg.Shopline.APIVersion != "" {
			slCfg.APIVersion = cfg.Shopline.APIVersion
		}
		if cfg.Shopline.TimeoutSeconds > 0 {
			slCfg.TimeoutSeconds = cfg.Shopline.TimeoutSeconds
		}
		slCfg.BaseURL = cfg.Shopline.BaseURL

		adapter, err := ecommerce.NewShoplineAdapter(slCfg, log)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	if cfg.NextEngine.Enabled {
		neCfg := ecommerce.NewNextEngineConfig(cfg.NextEngine.ClientID, cfg.NextEngine.ClientSecret, cfg.NextEngine.RedirectURI)
		if cfg.NextEngine.AuthBaseURL != "" {
			neCfg.AuthBaseURL = cfg.NextEngine.AuthBaseURL
		}
		if cfg.NextEngine.APIBaseURL != "" {
			neCfg.APIBaseURL = cfg.NextEngine.APIBaseURL
		}
		if cfg.NextEngine.CorrelationQueryKey != "" {
			neCfg.CorrelationQueryKey = cfg.NextEngine.CorrelationQueryKey
		}
		if cfg.NextEngine.TimeoutSeconds > 0 {
			neCfg.TimeoutSeconds = cfg.NextEngine.TimeoutSeconds
		}

		adapter, err := ecommerce.NewNextEngineAdapter(neCfg, log)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no platform is enabled")
	}
	return ecommerce.NewRegistry(adapters...)
}

// identityStrategies lists the callback identity strategies in resolution order
func identityStrategies(
	cfg *config.Config,
	store connection.CorrelationStore,
	sealer *auth.TokenSealer,
	jwtService *auth.JWTService,
	log *zap.Logger,
) []appconn.IdentityStrategy {
	strategies := []appconn.IdentityStrategy{
		appconn.NewTokenCacheStrategy(store),
		appconn.NewSealedTokenStrategy(sealer, jwtService),
		appconn.NewHandleStrategy(store),
		appconn.NewRequestAuthStrategy(jwtService, jwtService),
	}

	if cfg.Correlation.SystemUserFallback && !cfg.App.IsProduction() {
		platforms := make([]connection.PlatformCode, 0, len(cfg.Correlation.StatelessPlatforms))
		for _, raw := range cfg.Correlation.StatelessPlatforms {
			p, err := connection.ParsePlatformCode(raw)
			if err != nil {
				log.Warn("Ignoring unknown stateless platform", zap.String("platform", raw))
				continue
			}
			platforms = append(platforms, p)
		}
		strategies = append(strategies, appconn.NewSystemUserStrategy(cfg.Correlation.SystemUserID, platforms, log))
	}
	return strategies
}

// buildScheduler registers the background jobs. It returns nil when scheduling is disabled.
func buildScheduler(
	cfg *config.Config,
	conns connection.ConnectionRepository,
	audits connection.AuditLogRepository,
	refresher scheduler.TokenRefresher,
	log *zap.Logger,
) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}

	s, err := scheduler.New(scheduler.Config{
		JobTimeout: cfg.Scheduler.JobTimeout,
		Location:   time.UTC,
	}, log)
	if err != nil {
		return nil, err
	}

	refreshJob, err := scheduler.NewRefreshJob(scheduler.RefreshJobConfig{
		Window:         cfg.Scheduler.RefreshWindow,
		BatchSize:      cfg.Scheduler.RefreshBatch,
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
		ParkDuration:   cfg.Scheduler.RefreshPark,
	}, conns, refresher, log)
	if err != nil {
		return nil, err
	}
	if err := s.Register(scheduler.RefreshJobName, cfg.Scheduler.RefreshCron, refreshJob.Run); err != nil {
		return nil, err
	}

	if cfg.Archive.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		archive, err := storage.NewS3AuditArchive(ctx, &cfg.Archive, storage.WithLogger(log))
		if err != nil {
			return nil, err
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		archiveJob := scheduler.NewArchiveJob(audits, archive, log)
		if err := s.Register(scheduler.ArchiveJobName, cfg.Scheduler.ArchiveCron, archiveJob.Run); err != nil {
			return nil, err
		}
	}

	return s, nil
}
