// Command sercha-ingest syncs wiki, issue-tracker and code-host sources
// into normalised documents for the ingestion pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/config/file"
	jsonlsink "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/ingest/jsonl"
	memorysink "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/ingest/memory"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/vault"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)
	cli.SetConfigInit(writeDefaultConfig)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// sink is what the ingest adapters provide.
type sink interface {
	driven.IngestionConsumer
	driven.Forgetter
}

// bootstrap wires config, storage, vault, connectors and services.
func bootstrap(configPath string) (*cli.Services, func(), error) {
	cfg, err := file.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	secret, err := cfg.RequireSecret()
	if err != nil {
		return nil, nil, err
	}
	v, err := vault.New(secret)
	if err != nil {
		return nil, nil, fmt.Errorf("creating vault: %w", err)
	}

	var (
		sourceStore driven.DataSourceStore
		taskStore   driven.SchedulerStore
		closers     []func()
	)
	switch cfg.Storage.Driver {
	case file.DriverMemory:
		sourceStore = memory.NewDataSourceStore()
		taskStore = memory.NewSchedulerStore()
	default:
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening store: %w", err)
		}
		logger.Debug("store: %s", store.Path())
		sourceStore = store.DataSourceStore()
		taskStore = store.SchedulerStore()
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing store: %v", err)
			}
		})
	}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	var consumer sink
	switch cfg.Ingest.Sink {
	case file.SinkMemory:
		consumer = memorysink.NewSink()
	default:
		s, err := jsonlsink.NewSink(cfg.Ingest.Dir)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("creating ingest sink: %w", err)
		}
		consumer = s
	}

	registry := services.NewConnectorRegistry(cfg.RESTOptions())
	dataSources := services.NewDataSourceService(sourceStore, v, registry, consumer)
	orch := services.NewSyncOrchestrator(sourceStore, v, registry, consumer)
	orch.SetConcurrency(cfg.Sync.Workers)

	// A crashed process can leave sources syncing forever.
	if n, err := orch.ResetStale(context.Background(), cfg.Sync.StaleAfter.Duration); err != nil {
		logger.Warn("stale sync reset: %v", err)
	} else if n > 0 {
		logger.Info("reset %d stale syncs", n)
	}

	return &cli.Services{
		DataSources: dataSources,
		Sync:        orch,
		Scheduler:   services.NewScheduler(cfg.SchedulerConfig(), taskStore, orch),
		Owner:       cfg.Owner,
		MetricsAddr: cfg.Metrics.Addr,
	}, cleanup, nil
}

// writeDefaultConfig writes the default configuration to path.
func writeDefaultConfig(path string, force bool) (string, error) {
	if path == "" {
		p, err := file.DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	if err := file.Save(path, file.Default()); err != nil {
		return "", err
	}
	return path, nil
}
