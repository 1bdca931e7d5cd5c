//                      _
//  ___ _   _ _ __   __| | _____  __
// / __| | | | '_ \ / _` |/ _ \ \/ /
// \__ \ |_| | | | | (_| |  __/>  <
// |___/\__, |_| |_|\__,_|\___/_/\_\
//      |___/
//
//  Copyright © 2019 - 2026 Syndex B.V. All rights reserved.
//
//  CONTACT: hello@syndex.io
//

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/syndex/syndex/adapters/repos/bleveindex"
	"github.com/syndex/syndex/adapters/repos/boltstore"
	"github.com/syndex/syndex/adapters/repos/elasticsearch"
	"github.com/syndex/syndex/adapters/repos/pebblestore"
	"github.com/syndex/syndex/entities/backend"
	enterrors "github.com/syndex/syndex/entities/errors"
	"github.com/syndex/syndex/entities/indexed"
	"github.com/syndex/syndex/entities/loading"
	"github.com/syndex/syndex/usecases/config"
	"github.com/syndex/syndex/usecases/massindexing"
	"github.com/syndex/syndex/usecases/monitoring"
)

const (
	TargetReindex = "reindex"
	TargetSeed    = "seed"
	TargetInspect = "inspect"
)

// Options represents Command line options
type Options struct {
	config.Flags

	Target    string `long:"target" description:"what to run, one of: reindex, seed, inspect" default:"reindex"`
	SeedCount int    `long:"seed-count" description:"objects per type the seed target writes" default:"1000"`
}

func main() {
	var opts Options
	log := logger()

	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		log.WithError(err).Fatal("failed to parse command line args")
	}

	cfg, err := config.Load(&opts.Flags, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.Target {
	case TargetReindex:
		err = runReindex(ctx, cfg, log)
	case TargetSeed:
		err = runSeed(ctx, cfg, opts.SeedCount, log)
	case TargetInspect:
		err = runInspect(ctx, cfg, log)
	default:
		log.Fatal("--target empty or unknown")
	}
	if err != nil {
		log.WithError(err).Fatalf("target %q failed", opts.Target)
	}
}

// logger initializes the logger "manually", reading the desired env vars
// and setting reasonable defaults if they are not set.
//
// Defaults to log level info and json format
func logger() *logrus.Logger {
	logger := logrus.New()
	if os.Getenv("LOG_FORMAT") != "text" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "trace":
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// objectStore is the part of the store drivers the targets need.
type objectStore interface {
	Open() error
	Close() error
	PutObject(typeName, tenant, id string, obj map[string]interface{}) error
	CountObjects(typeName, tenant string) (int64, error)
	Types() ([]string, error)
	LoadingStrategy() loading.Strategy
}

func runReindex(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.Close()

	registry, err := buildRegistry(cfg, store)
	if err != nil {
		return err
	}

	indexer := massindexing.New(registry, be, log)
	applyIndexingConfig(indexer, cfg)

	if cfg.Monitoring.Enabled {
		metrics := monitoring.NewPrometheusMetrics(nil)
		indexer.WithMetrics(metrics)
		if err := serveMetrics(cfg.Monitoring.Port, metrics, log); err != nil {
			return err
		}
	}

	return indexer.StartAndWait(ctx)
}

// runSeed fills the object store with synthetic objects so a reindex run
// has something to chew on.
func runSeed(ctx context.Context, cfg config.Config, count int, log *logrus.Logger) error {
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, t := range cfg.Types {
		for i := 0; i < count; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			id := uuid.New().String()
			obj := map[string]interface{}{
				"title": fmt.Sprintf("%s %d", strings.ToLower(t.Name), i),
				"body":  fmt.Sprintf("synthetic %s object number %d", t.Name, i),
				"seq":   i,
			}
			if err := store.PutObject(t.Name, cfg.Tenant, id, obj); err != nil {
				return errors.Wrapf(err, "seed object %d of type %s", i, t.Name)
			}
		}
		log.WithField("action", "seed").
			Infof("seeded %d objects of type %s", count, t.Name)
	}
	return nil
}

// runInspect prints object counts per type and, where the backend can
// tell, document counts per index.
func runInspect(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.Close()

	counter, countable := be.(interface {
		DocCount(index string) (uint64, error)
	})

	for _, t := range cfg.Types {
		objects, err := store.CountObjects(t.Name, cfg.Tenant)
		if err != nil {
			return errors.Wrapf(err, "count objects of type %s", t.Name)
		}

		entry := log.WithField("action", "inspect").
			WithField("type", t.Name).
			WithField("objects", objects)
		if countable {
			docs, err := counter.DocCount(t.Index)
			if err != nil {
				return errors.Wrapf(err, "count documents of index %s", t.Index)
			}
			entry = entry.WithField("documents", docs)
		}
		entry.Info("inspected type")
	}
	return nil
}

func openStore(cfg config.Config, log logrus.FieldLogger) (objectStore, error) {
	var store objectStore
	switch cfg.Store.Driver {
	case config.DriverBolt:
		store = boltstore.NewStore(cfg.Store.Path, log)
	case config.DriverPebble:
		store = pebblestore.NewStore(cfg.Store.Path, log)
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := store.Open(); err != nil {
		return nil, errors.Wrapf(err, "open %s store at %q", cfg.Store.Driver, cfg.Store.Path)
	}
	return store, nil
}

func openBackend(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (backend.Backend, error) {
	switch cfg.Backend.Driver {
	case config.DriverBleve:
		return bleveindex.New(cfg.Backend.Path, log), nil
	case config.DriverElasticsearch:
		return elasticsearch.New(ctx, elasticsearch.Config{
			URL:           cfg.Backend.URL,
			Username:      cfg.Backend.Username,
			Password:      cfg.Backend.Password,
			BulkWorkers:   cfg.Backend.BulkWorkers,
			BulkActions:   cfg.Backend.BulkActions,
			FlushInterval: cfg.Backend.FlushInterval,
			TuneForBulk:   cfg.Backend.TuneForBulk,
		}, log)
	default:
		return nil, errors.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

func buildRegistry(cfg config.Config, store objectStore) (*indexed.Registry, error) {
	registry := indexed.NewRegistry()
	strategy := store.LoadingStrategy()

	for _, t := range cfg.Types {
		err := registry.Add(indexed.Type{
			Name:    t.Name,
			Index:   t.Index,
			Builder: indexed.MapDocumentBuilder{},
			Loading: strategy,
		})
		if err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func applyIndexingConfig(indexer *massindexing.MassIndexer, cfg config.Config) {
	idx := cfg.Indexing
	if idx.QueueCapacity > 0 {
		indexer.QueueCapacity(idx.QueueCapacity)
	}
	if idx.ObjectLoadingThreads > 0 {
		indexer.ThreadsToLoadObjects(idx.ObjectLoadingThreads)
	}
	if idx.BatchSize > 0 {
		indexer.BatchSizeToLoadObjects(idx.BatchSize)
	}
	if idx.TypesInParallel > 0 {
		indexer.TypesToIndexInParallel(idx.TypesInParallel)
	}
	if idx.PurgeOnStart != nil {
		indexer.PurgeAllOnStart(*idx.PurgeOnStart)
	}
	if idx.MergeAfterPurge {
		indexer.MergeSegmentsAfterPurge(true)
	}
	if idx.MergeOnFinish {
		indexer.MergeSegmentsOnFinish(true)
	}
	if idx.DropAndCreateSchema {
		indexer.DropAndCreateSchemaOnStart(true)
	}
	if idx.FailureThreshold > 0 {
		indexer.FailureThreshold(idx.FailureThreshold)
	}
	if cfg.Tenant != "" {
		indexer.Tenant(cfg.Tenant)
	}
}

func serveMetrics(port int, metrics *monitoring.PrometheusMetrics, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrapf(err, "bind monitoring port %d", port)
	}

	server := &http.Server{Handler: mux}
	enterrors.GoWrapper(func() {
		counted := monitoring.CountingListener(listener, metrics.MonitoringConnections)
		if err := server.Serve(counted); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start monitoring server")
		}
	}, log)
	return nil
}
