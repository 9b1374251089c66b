// Package app wires the pipeline collaborators selected by configuration.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"poflow/internal"
	"poflow/internal/archive"
	"poflow/internal/catalog"
	"poflow/internal/config"
	"poflow/internal/document"
	"poflow/internal/extract"
	"poflow/internal/listener"
	"poflow/internal/pipeline"
	"poflow/internal/remote"
	"poflow/internal/session"
	"poflow/internal/storage"
)

// OrderService is an ingestion backend that can also list stored items.
type OrderService interface {
	pipeline.OrderService
	ListItems(ctx context.Context, orderID string) ([]internal.OrderItem, error)
}

type App struct {
	Config  config.Config
	Log     zerolog.Logger
	DB      *storage.DB
	Orders  OrderService
	Deps    pipeline.Deps
	Merge   pipeline.MergeOptions
	Catalog *catalog.ImportService
}

func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &App{
		Config: cfg,
		Log:    log,
		DB:     db,
		Merge: pipeline.MergeOptions{
			AutoSelect:         cfg.MatchAutoSelect,
			AutoSelectMinScore: cfg.MatchAutoSelectMinScore,
		},
	}
	if err := a.wire(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config
	remoteOpts := remote.OptionsFromConfig(cfg, a.Log)

	switch cfg.OrdersBackend {
	case "remote":
		if err := cfg.Require("ORDERS_API_BASE_URL", cfg.OrdersAPIBaseURL); err != nil {
			return err
		}
		a.Orders = remote.NewOrdersClient(cfg.OrdersAPIBaseURL, remoteOpts)
	case "local", "":
		arch, err := archive.FromConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		var archiver storage.Archiver
		if arch != nil {
			archiver = arch
		}
		a.Orders = storage.NewOrderStore(a.DB, filepath.Join(cfg.OutputDir, "orders"), archiver, a.Log)
	default:
		return fmt.Errorf("unknown ORDERS_BACKEND %q", cfg.OrdersBackend)
	}

	var extractor pipeline.Extractor
	switch cfg.Extractor {
	case "remote":
		if err := cfg.Require("EXTRACTION_API_URL", cfg.ExtractionAPIURL); err != nil {
			return err
		}
		extractor = remote.NewExtractionClient(cfg.ExtractionAPIURL, remoteOpts)
	case "local", "":
		extractor = extract.New(a.Log)
	default:
		return fmt.Errorf("unknown EXTRACTOR %q", cfg.Extractor)
	}

	localMatcher := catalog.NewMatcher(a.DB, catalog.MatcherOptions{TopN: cfg.MatchTopN, MinScore: cfg.MatchMinScore}, a.Log)
	a.Catalog = catalog.NewImportService(a.DB, localMatcher, a.Log)

	var matcher pipeline.Matcher
	switch cfg.Matcher {
	case "remote":
		if err := cfg.Require("MATCHING_API_URL", cfg.MatchingAPIURL); err != nil {
			return err
		}
		matcher = remote.NewMatchClient(cfg.MatchingAPIURL, remoteOpts)
	case "local", "":
		matcher = localMatcher
	default:
		return fmt.Errorf("unknown MATCHER %q", cfg.Matcher)
	}

	a.Deps = pipeline.Deps{
		Orders:    a.Orders,
		Extractor: extractor,
		Matcher:   matcher,
		Previewer: document.NewPreviewer(cfg.PreviewDir, a.Log),
	}
	a.Log.Debug().
		Str("orders", cfg.OrdersBackend).
		Str("extractor", cfg.Extractor).
		Str("matcher", cfg.Matcher).
		Str("archive", cfg.ArchiveBackend).
		Msg("collaborators wired")
	return nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// NewOrchestrator starts a fresh session over the wired collaborators.
func (a *App) NewOrchestrator() *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(session.New(), a.Deps, a.Merge, a.Log)
}

func (a *App) Processor() *listener.Processor {
	return listener.NewProcessor(a.DB, a.Deps, a.Merge, a.Config.OutputDir, a.Config.MailListenerAutoExport, a.Log)
}

func (a *App) Listener() *listener.Service {
	return listener.NewService(a.DB, listener.OptionsFromConfig(a.Config), listener.NewConnector(a.Config), a.Processor(), a.Log)
}
