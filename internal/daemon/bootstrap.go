package daemon

import (
	"log/slog"
	"time"

	"clipper/internal/api"
	"clipper/internal/config"
	"clipper/internal/encoding"
	"clipper/internal/plan"
	"clipper/internal/queue"
	"clipper/internal/sourcing"
	"clipper/internal/staging"
	"clipper/internal/storage"
	"clipper/internal/tracking"
	"clipper/internal/workflow"
)

type components struct {
	store      *queue.Store
	workspaces *staging.Manager
	manager    *workflow.Manager
	handler    *api.Handler
}

func buildComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, err
	}

	workspaces, err := staging.NewManager(cfg.Paths.StagingDir, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	publisher, err := storage.NewLocalStore(cfg.Paths.PublishDir, cfg.Storage.PublicBaseURL, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	provider := sourcing.NewProvider(time.Duration(cfg.Sourcing.DownloadTimeout)*time.Second, logger)
	analyzer := tracking.NewCommandAnalyzer(cfg.Tracking.AnalyzerBinary)
	encoder := encoding.NewFFmpegEncoder(
		cfg.Encoding.FFmpegBinary,
		cfg.Encoding.FFprobeBinary,
		time.Duration(cfg.Encoding.EncodeTimeout)*time.Second,
		logger,
	)

	catalog := catalogFromConfig(cfg)
	orchestrator := workflow.NewOrchestrator(
		cfg, store, workspaces, provider, analyzer, encoder, publisher, catalog, logger,
	)
	manager := workflow.NewManager(cfg, store, orchestrator, logger)

	gate := plan.NewGate(catalog, store)
	service := api.NewService(cfg, store, gate, logger)
	handler := api.NewHandler(service, cfg.Paths.APIToken, logger)

	return &components{
		store:      store,
		workspaces: workspaces,
		manager:    manager,
		handler:    handler,
	}, nil
}

// catalogFromConfig materializes the configured plan tiers. Configuration
// validation has already checked resolutions and limit ranges.
func catalogFromConfig(cfg *config.Config) *plan.Catalog {
	limits := make([]plan.Limits, 0, len(cfg.Plans))
	for code, p := range cfg.Plans {
		resolution, err := plan.ParseResolution(p.MaxResolution)
		if err != nil {
			resolution = plan.Res1080p
		}
		limits = append(limits, plan.Limits{
			Code:             code,
			MaxResolution:    resolution,
			WatermarkForced:  p.WatermarkForced,
			DailyClipLimit:   p.DailyClipLimit,
			MonthlyClipLimit: p.MonthlyClipLimit,
			Priority:         p.Priority,
		})
	}
	if len(limits) == 0 {
		return plan.DefaultCatalog()
	}
	return plan.NewCatalog(limits)
}
