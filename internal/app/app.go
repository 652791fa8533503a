// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/pricebot/scraperd/internal/autoscaler"
	"github.com/pricebot/scraperd/internal/clock/system"
	"github.com/pricebot/scraperd/internal/config"
	"github.com/pricebot/scraperd/internal/controller"
	"github.com/pricebot/scraperd/internal/dispatch"
	discoverymemory "github.com/pricebot/scraperd/internal/discovery/memory"
	discoveryremote "github.com/pricebot/scraperd/internal/discovery/remote"
	envcompose "github.com/pricebot/scraperd/internal/env/compose"
	envmemory "github.com/pricebot/scraperd/internal/env/memory"
	executormemory "github.com/pricebot/scraperd/internal/executor/memory"
	executorremote "github.com/pricebot/scraperd/internal/executor/remote"
	"github.com/pricebot/scraperd/internal/export"
	"github.com/pricebot/scraperd/internal/id/uuid"
	"github.com/pricebot/scraperd/internal/metrics"
	"github.com/pricebot/scraperd/internal/progress"
	pubsubpublisher "github.com/pricebot/scraperd/internal/publisher/pubsub"
	"github.com/pricebot/scraperd/internal/scraper"
	"github.com/pricebot/scraperd/internal/sink"
	jsonlsink "github.com/pricebot/scraperd/internal/sink/jsonl"
	memorysink "github.com/pricebot/scraperd/internal/sink/memory"
	postgressink "github.com/pricebot/scraperd/internal/sink/postgres"
	"github.com/pricebot/scraperd/internal/storage/gcs"
	"github.com/pricebot/scraperd/internal/storage/local"
	storagememory "github.com/pricebot/scraperd/internal/storage/memory"
)

// App holds the shared, long-lived services for the orchestrator. It is
// initialized once at startup and handed to the binary's run loop.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Controller *controller.Controller
	Dispatcher *dispatch.Layer
	Autoscaler *autoscaler.Autoscaler

	closers []func()
}

// New creates and initializes an App based on the loaded configuration. It
// fails fast if any critical service cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}
	a.Metrics = m

	resultSink, err := a.buildSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	discoverer, err := a.buildDiscoverer(cfg)
	if err != nil {
		return nil, err
	}
	executor, err := a.buildExecutor(cfg)
	if err != nil {
		return nil, err
	}
	environment, err := a.buildEnvironment(cfg)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	archiver, err := a.buildArchiver(ctx, cfg, resultSink)
	if err != nil {
		return nil, err
	}

	tracker := progress.NewTracker()
	ctrl, err := controller.New(controller.Options{
		Discoverer:   discoverer,
		Tracker:      tracker,
		Sink:         resultSink,
		Clock:        system.New(),
		IDGen:        uuid.New(),
		Publisher:    publisher,
		PublishTopic: cfg.PubSub.TopicName,
		Archiver:     archiver,
		Metrics:      m,
		Logger:       logger.Named("controller"),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize controller: %w", err)
	}
	a.Controller = ctrl

	a.Dispatcher = dispatch.New(ctx, executor, resultSink, tracker, ctrl, dispatch.Config{
		PoolSize:    cfg.Dispatch.PoolSize,
		CallTimeout: cfg.DispatchCallTimeout(),
		ExecRetries: cfg.Dispatch.ExecRetries,
		ExecBackoff: cfg.DispatchExecBackoff(),
		SinkRetries: cfg.Dispatch.SinkRetries,
		SinkBackoff: cfg.DispatchSinkBackoff(),
	}, m, logger.Named("dispatch"))
	ctrl.Bind(a.Dispatcher)

	if cfg.Autoscaler.Enabled {
		a.Autoscaler = autoscaler.New(ctrl, environment, autoscaler.Config{
			Ratio:    cfg.Autoscaler.Ratio,
			Floor:    cfg.Autoscaler.Floor,
			Ceiling:  cfg.Autoscaler.Ceiling,
			Interval: cfg.AutoscalerInterval(),
		}, m, logger.Named("autoscaler"))
	}

	return a, nil
}

// Close shuts down the services the App owns, in reverse init order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) buildSink(ctx context.Context, cfg config.Config) (scraper.ResultSink, error) {
	var backends []scraper.ResultSink
	for _, provider := range cfg.Sink.Providers {
		switch provider {
		case "jsonl":
			s, err := jsonlsink.New(cfg.Sink.JSONLPath)
			if err != nil {
				return nil, fmt.Errorf("initialize jsonl sink: %w", err)
			}
			a.closers = append(a.closers, func() {
				if err := s.Close(); err != nil {
					a.Logger.Warn("close jsonl sink", zap.Error(err))
				}
			})
			backends = append(backends, s)
		case "postgres":
			s, err := postgressink.New(ctx, cfg.DB.DSN)
			if err != nil {
				return nil, fmt.Errorf("initialize postgres sink: %w", err)
			}
			a.closers = append(a.closers, s.Close)
			backends = append(backends, s)
		case "memory":
			backends = append(backends, memorysink.New())
		default:
			return nil, fmt.Errorf("unknown sink provider: %s", provider)
		}
	}
	a.Logger.Info("result sink initialized", zap.Strings("providers", cfg.Sink.Providers))
	return sink.NewFanout(backends...), nil
}

func (a *App) buildDiscoverer(cfg config.Config) (scraper.Discoverer, error) {
	switch cfg.Discovery.Provider {
	case "remote":
		a.Logger.Info("using remote discoverer", zap.String("base_url", cfg.Discovery.BaseURL))
		return discoveryremote.New(discoveryremote.Config{
			BaseURL: cfg.Discovery.BaseURL,
			Timeout: cfg.DiscoveryTimeout(),
		})
	case "memory":
		a.Logger.Info("using in-memory discoverer")
		return discoverymemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown discovery provider: %s", cfg.Discovery.Provider)
	}
}

func (a *App) buildExecutor(cfg config.Config) (scraper.Executor, error) {
	switch cfg.Executor.Provider {
	case "remote":
		a.Logger.Info("using remote executor", zap.String("base_url", cfg.Executor.BaseURL))
		return executorremote.New(executorremote.Config{
			BaseURL: cfg.Executor.BaseURL,
			Timeout: cfg.ExecutorTimeout(),
		})
	case "memory":
		a.Logger.Info("using in-memory executor")
		return executormemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown executor provider: %s", cfg.Executor.Provider)
	}
}

func (a *App) buildEnvironment(cfg config.Config) (scraper.Environment, error) {
	if cfg.Compose.Project != "" {
		a.Logger.Info("scaling workers via docker compose",
			zap.String("project", cfg.Compose.Project),
			zap.String("service", cfg.Compose.Service),
		)
		return envcompose.New(envcompose.Config{
			Project: cfg.Compose.Project,
			Service: cfg.Compose.Service,
		})
	}
	a.Logger.Info("using in-memory worker environment")
	return envmemory.New(0), nil
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (scraper.Publisher, error) {
	if !cfg.PubSub.Enabled {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("initialize pubsub client: %w", err)
	}
	pub, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		pub.Stop()
		if err := client.Close(); err != nil {
			a.Logger.Warn("close pubsub client", zap.Error(err))
		}
	})
	a.Logger.Info("publishing completion events", zap.String("topic", cfg.PubSub.TopicName))
	return pub, nil
}

func (a *App) buildArchiver(ctx context.Context, cfg config.Config, resultSink scraper.ResultSink) (controller.Archiver, error) {
	var store scraper.BlobStore
	switch cfg.Storage.Provider {
	case "":
		return nil, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs client: %w", err)
		}
		store, err = gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, err
		}
		a.Logger.Info("archiving results to gcs", zap.String("bucket", cfg.Storage.GCSBucket))
	case "local":
		var err error
		store, err = local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, err
		}
		a.Logger.Info("archiving results locally", zap.String("dir", cfg.Storage.LocalDir))
	case "memory":
		store = storagememory.NewBlobStore()
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
	return export.New(resultSink, store, a.Logger.Named("export")), nil
}
