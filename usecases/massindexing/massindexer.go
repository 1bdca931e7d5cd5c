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

package massindexing

import (
	"context"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/syndex/syndex/entities/backend"
	enterrors "github.com/syndex/syndex/entities/errors"
	"github.com/syndex/syndex/entities/indexed"
	"github.com/syndex/syndex/entities/loading"
	"github.com/syndex/syndex/usecases/monitoring"
)

// MassIndexer rebuilds the index content for registered types from scratch,
// out of band of regular writes. Configure it through the chainable setters,
// then run it with StartAndWait or Start:
//
//	err := massindexing.New(registry, backend, logger).
//		Types("Article", "Comment").
//		ThreadsToLoadObjects(4).
//		StartAndWait(ctx)
//
// A MassIndexer may be run again after a run finished, but never while one
// is still in flight.
type MassIndexer struct {
	logger   logrus.FieldLogger
	registry *indexed.Registry
	backend  backend.Backend
	metrics  *monitoring.PrometheusMetrics
	monitor  Monitor
	handler  FailureHandler

	opts      options
	typeNames []string

	running atomic.Bool
}

type options struct {
	tenant                     string
	typesToIndexInParallel     int
	threadsToLoadObjects       int
	batchSizeToLoadObjects     int
	queueCapacity              int
	failureThreshold           int64
	purgeAllOnStart            bool
	mergeSegmentsAfterPurge    bool
	mergeSegmentsOnFinish      bool
	dropAndCreateSchemaOnStart bool
	identifierInterceptors     []loading.Interceptor
	entityInterceptors         []loading.Interceptor
}

func defaultOptions() options {
	opts := options{
		typesToIndexInParallel: 1,
		threadsToLoadObjects:   6,
		batchSizeToLoadObjects: 10,
		queueCapacity:          1,
		failureThreshold:       defaultFailureThreshold,
		purgeAllOnStart:        true,
	}

	if v, _ := strconv.Atoi(os.Getenv("MASS_INDEXING_LOAD_THREADS")); v > 0 {
		opts.threadsToLoadObjects = v
	}
	if v, _ := strconv.Atoi(os.Getenv("MASS_INDEXING_BATCH_SIZE")); v > 0 {
		opts.batchSizeToLoadObjects = v
	}
	if v, _ := strconv.Atoi(os.Getenv("MASS_INDEXING_QUEUE_CAPACITY")); v > 0 {
		opts.queueCapacity = v
	}

	return opts
}

func (o options) validate() error {
	var errs *multierror.Error

	if o.typesToIndexInParallel < 1 {
		errs = multierror.Append(errs,
			enterrors.NewAssertionf("types to index in parallel must be positive, got %d",
				o.typesToIndexInParallel))
	}
	if o.threadsToLoadObjects < 1 {
		errs = multierror.Append(errs,
			enterrors.NewAssertionf("threads to load objects must be positive, got %d",
				o.threadsToLoadObjects))
	}
	if o.batchSizeToLoadObjects < 1 {
		errs = multierror.Append(errs,
			enterrors.NewAssertionf("batch size to load objects must be positive, got %d",
				o.batchSizeToLoadObjects))
	}
	if o.queueCapacity < 1 {
		errs = multierror.Append(errs,
			enterrors.NewAssertionf("queue capacity must be positive, got %d", o.queueCapacity))
	}
	if o.failureThreshold < 1 {
		errs = multierror.Append(errs,
			enterrors.NewAssertionf("failure threshold must be positive, got %d",
				o.failureThreshold))
	}

	return errs.ErrorOrNil()
}

func New(registry *indexed.Registry, backend backend.Backend, logger logrus.FieldLogger) *MassIndexer {
	return &MassIndexer{
		logger:   logger.WithField("component", "mass_indexer"),
		registry: registry,
		backend:  backend,
		opts:     defaultOptions(),
	}
}

// Types restricts the run to the named types. Without it, every registered
// type is indexed.
func (mi *MassIndexer) Types(names ...string) *MassIndexer {
	mi.typeNames = names
	return mi
}

// TypesToIndexInParallel bounds how many type groups run concurrently.
func (mi *MassIndexer) TypesToIndexInParallel(n int) *MassIndexer {
	mi.opts.typesToIndexInParallel = n
	return mi
}

// ThreadsToLoadObjects sets the number of entity loading workers per group.
func (mi *MassIndexer) ThreadsToLoadObjects(n int) *MassIndexer {
	mi.opts.threadsToLoadObjects = n
	return mi
}

// BatchSizeToLoadObjects sets how many identifiers each batch carries.
func (mi *MassIndexer) BatchSizeToLoadObjects(n int) *MassIndexer {
	mi.opts.batchSizeToLoadObjects = n
	return mi
}

// QueueCapacity sets how many identifier batches the handoff queue buffers.
// The default of 1 keeps producer and consumers in tight lockstep.
func (mi *MassIndexer) QueueCapacity(n int) *MassIndexer {
	mi.opts.queueCapacity = n
	return mi
}

// Tenant restricts the run to one tenant's objects.
func (mi *MassIndexer) Tenant(tenant string) *MassIndexer {
	mi.opts.tenant = tenant
	return mi
}

// PurgeAllOnStart controls whether target indexes are emptied before
// indexing. Enabled by default; ignored when the schema is dropped and
// recreated anyway.
func (mi *MassIndexer) PurgeAllOnStart(v bool) *MassIndexer {
	mi.opts.purgeAllOnStart = v
	return mi
}

func (mi *MassIndexer) MergeSegmentsAfterPurge(v bool) *MassIndexer {
	mi.opts.mergeSegmentsAfterPurge = v
	return mi
}

func (mi *MassIndexer) MergeSegmentsOnFinish(v bool) *MassIndexer {
	mi.opts.mergeSegmentsOnFinish = v
	return mi
}

func (mi *MassIndexer) DropAndCreateSchemaOnStart(v bool) *MassIndexer {
	mi.opts.dropAndCreateSchemaOnStart = v
	return mi
}

// FailureThreshold caps how many per-entity failures per type group are
// forwarded to the failure handler before reports are suppressed.
func (mi *MassIndexer) FailureThreshold(n int64) *MassIndexer {
	mi.opts.failureThreshold = n
	return mi
}

// Monitor replaces the default logging monitor.
func (mi *MassIndexer) Monitor(m Monitor) *MassIndexer {
	mi.monitor = m
	return mi
}

// FailureHandler replaces the default logging failure handler.
func (mi *MassIndexer) FailureHandler(h FailureHandler) *MassIndexer {
	mi.handler = h
	return mi
}

// WithMetrics wires prometheus meters into the run. Without it, metric
// calls are no-ops.
func (mi *MassIndexer) WithMetrics(pm *monitoring.PrometheusMetrics) *MassIndexer {
	mi.metrics = pm
	return mi
}

// WithIdentifierInterceptor appends a hook around each identifier loading
// session. Hooks run in the order they were added; a hook failure is fatal
// for the stage.
func (mi *MassIndexer) WithIdentifierInterceptor(i loading.Interceptor) *MassIndexer {
	mi.opts.identifierInterceptors = append(mi.opts.identifierInterceptors, i)
	return mi
}

// WithEntityInterceptor appends a hook around each entity loading session.
func (mi *MassIndexer) WithEntityInterceptor(i loading.Interceptor) *MassIndexer {
	mi.opts.entityInterceptors = append(mi.opts.entityInterceptors, i)
	return mi
}

// StartAndWait runs the whole mass indexing pass and blocks until it
// finished, failed or the context was cancelled. The returned error is nil
// only if every group completed and the index scope was closed out.
func (mi *MassIndexer) StartAndWait(ctx context.Context) error {
	if !mi.running.CompareAndSwap(false, true) {
		return enterrors.NewAssertionf("mass indexer is already running, overlapping starts are not supported")
	}
	defer mi.running.Store(false)

	if err := mi.opts.validate(); err != nil {
		return err
	}

	types, err := mi.registry.Select(mi.typeNames...)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		return errors.New("no indexed types registered")
	}

	monitor := mi.monitor
	if monitor == nil {
		monitor = NewLoggingMonitor(mi.logger)
	}
	handler := mi.handler
	if handler == nil {
		handler = NewLogFailureHandler(mi.logger)
	}

	groups := groupByStrategy(types)
	mi.logger.WithField("action", "mass_indexing_started").
		WithField("types", len(types)).
		WithField("groups", len(groups)).
		WithField("tenant", mi.opts.tenant).
		Infof("mass indexing %d types in %d groups", len(types), len(groups))

	c := &coordinator{
		logger:   mi.logger,
		notifier: newNotifier(monitor, handler, mi.metrics, mi.opts.failureThreshold, mi.logger),
		backend:  mi.backend,
		metrics:  mi.metrics,
		groups:   groups,
		opts:     mi.opts,
	}

	return c.run(ctx)
}

// Start runs StartAndWait on its own goroutine and reports the outcome on
// the returned channel, which is buffered so the result never blocks.
func (mi *MassIndexer) Start(ctx context.Context) <-chan error {
	result := make(chan error, 1)

	enterrors.GoWrapper(func() {
		result <- mi.StartAndWait(ctx)
	}, mi.logger)

	return result
}
