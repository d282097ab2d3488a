// Package app wires configuration into concrete service dependencies.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Anjan854/filesure-devops-starter/internal/blob/gcs"
	"github.com/Anjan854/filesure-devops-starter/internal/blob/local"
	blobmemory "github.com/Anjan854/filesure-devops-starter/internal/blob/memory"
	"github.com/Anjan854/filesure-devops-starter/internal/clock/system"
	"github.com/Anjan854/filesure-devops-starter/internal/config"
	"github.com/Anjan854/filesure-devops-starter/internal/filesure"
	"github.com/Anjan854/filesure-devops-starter/internal/hash/sha256"
	"github.com/Anjan854/filesure-devops-starter/internal/id/uuid"
	ledgermemory "github.com/Anjan854/filesure-devops-starter/internal/ledger/memory"
	ledgerpostgres "github.com/Anjan854/filesure-devops-starter/internal/ledger/postgres"
	"github.com/Anjan854/filesure-devops-starter/internal/logging"
	pubmemory "github.com/Anjan854/filesure-devops-starter/internal/publisher/memory"
	pubgcp "github.com/Anjan854/filesure-devops-starter/internal/publisher/pubsub"
)

// App holds the assembled dependencies for one process. Both the API
// server and the worker build from the same container so provider
// selection lives in exactly one place.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Ledger    filesure.Ledger
	Sink      filesure.BlobSink
	Publisher filesure.Publisher
	Hasher    filesure.Hasher
	Clock     filesure.Clock
	IDGen     filesure.IDGenerator

	closers []func()
}

// New loads configuration and constructs every dependency it names.
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Hasher: sha256.New(),
		Clock:  system.New(),
		IDGen:  uuid.New(),
	}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := a.buildLedger(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildSink(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildLedger(ctx context.Context) error {
	switch a.Config.Ledger.Provider {
	case "postgres":
		ledger, err := ledgerpostgres.New(ctx, ledgerpostgres.Config{
			DSN:               a.Config.Ledger.DSN,
			Table:             a.Config.Ledger.Table,
			MaxConns:          a.Config.Ledger.MaxConns,
			MinConns:          a.Config.Ledger.MinConns,
			MaxAttempts:       a.Config.Worker.MaxAttempts,
			LivenessThreshold: a.Config.LivenessThreshold(),
		}, a.Clock, a.IDGen)
		if err != nil {
			return fmt.Errorf("build postgres ledger: %w", err)
		}
		a.Ledger = ledger
		a.closers = append(a.closers, ledger.Close)
	case "memory":
		a.Ledger = ledgermemory.New(ledgermemory.Config{
			MaxAttempts:       a.Config.Worker.MaxAttempts,
			LivenessThreshold: a.Config.LivenessThreshold(),
		}, a.Clock, a.IDGen)
	default:
		return fmt.Errorf("unknown ledger provider %q", a.Config.Ledger.Provider)
	}
	return nil
}

func (a *App) buildSink(ctx context.Context) error {
	switch a.Config.Storage.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("build storage client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		sink, err := gcs.New(client, gcs.Config{Bucket: a.Config.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("build gcs sink: %w", err)
		}
		a.Sink = sink
	case "local":
		sink, err := local.New(local.Config{BaseDir: a.Config.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("build local sink: %w", err)
		}
		a.Sink = sink
	case "memory":
		a.Sink = blobmemory.New()
	default:
		return fmt.Errorf("unknown storage provider %q", a.Config.Storage.Provider)
	}
	return nil
}

func (a *App) buildPublisher(ctx context.Context) error {
	switch a.Config.Publisher.Provider {
	case "pubsub":
		if a.Config.Publisher.ProjectID == "" || a.Config.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic are required for pubsub")
		}
		client, err := pubsub.NewClient(ctx, a.Config.Publisher.ProjectID)
		if err != nil {
			return fmt.Errorf("build pubsub client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		topic := client.Topic(a.Config.Publisher.Topic)
		a.closers = append(a.closers, topic.Stop)
		a.Publisher = pubgcp.New(topic)
	case "memory":
		a.Publisher = pubmemory.New()
	case "none":
		a.Publisher = nil
	default:
		return fmt.Errorf("unknown publisher provider %q", a.Config.Publisher.Provider)
	}
	return nil
}

// Close releases every held resource in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
