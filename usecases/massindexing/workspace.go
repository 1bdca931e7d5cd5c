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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/syndex/syndex/entities/backend"
	enterrors "github.com/syndex/syndex/entities/errors"
	"github.com/syndex/syndex/entities/loading"
)

// workerNamePrefix tags the worker field of every log line written by the
// pipeline's goroutines.
const workerNamePrefix = "Mass indexing - "

type workspaceState int32

const (
	workspaceCreated workspaceState = iota
	workspaceRunning
	workspaceCompleted
	workspaceFailed
	workspaceCancelled
)

func (s workspaceState) String() string {
	switch s {
	case workspaceCreated:
		return "created"
	case workspaceRunning:
		return "running"
	case workspaceCompleted:
		return "completed"
	case workspaceFailed:
		return "failed"
	case workspaceCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// workspace runs the indexing pipeline for one type group: one identifier
// loader feeding a bounded queue, entityThreads entity loaders draining it,
// one writer per target index. A workspace is single use; the massindexer
// builds fresh ones for every run.
type workspace struct {
	logger   logrus.FieldLogger
	notifier *notifier
	backend  backend.Backend
	types    typeGroup

	tenant        string
	batchSize     int
	queueCapacity int
	entityThreads int

	identifierInterceptors []loading.Interceptor
	entityInterceptors     []loading.Interceptor

	state atomic.Int32
}

func (w *workspace) currentState() workspaceState {
	return workspaceState(w.state.Load())
}

// run drives the whole pipeline for the group and blocks until every worker
// returned. Consumers start before the producer, so a full queue always has
// a reader. The first worker failure cancels all siblings; run still waits
// for them before returning the cause.
func (w *workspace) run(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(workspaceCreated), int32(workspaceRunning)) {
		return enterrors.NewAssertionf("workspace for group %q is not expected to be reused",
			w.types.name())
	}

	err := w.doRun(ctx)

	switch {
	case err == nil:
		w.state.Store(int32(workspaceCompleted))
	case enterrors.IsInterruption(err):
		w.state.Store(int32(workspaceCancelled))
	default:
		w.state.Store(int32(workspaceFailed))
	}

	return err
}

func (w *workspace) doRun(ctx context.Context) error {
	w.logger.WithField("group", w.types.name()).
		WithField("entity_threads", w.entityThreads).
		Debugf("starting workspace for group %q", w.types.name())

	writers, err := w.resolveWriters()
	if err != nil {
		w.notifier.reportRunnableFailure(w.types.name(), operationIndexScope, err)
		return err
	}
	defer w.closeWriters(writers)

	queue := newBatchQueue(w.queueCapacity)
	params := loading.Params{
		Types:     w.types.typeNames(),
		Tenant:    w.tenant,
		BatchSize: w.batchSize,
	}

	eg, gctx := enterrors.NewErrorGroupWithContextWrapper(w.logger, ctx)

	var consumersReady sync.WaitGroup
	consumersReady.Add(w.entityThreads)

	// Consumers first, then the producer: once the producer blocks on a
	// full queue there must already be a reader on the other end.
	for i := 0; i < w.entityThreads; i++ {
		loader := &entityLoader{
			logger: w.logger.WithField("worker",
				fmt.Sprintf("%s%s - Entity loading #%d", workerNamePrefix, w.types.name(), i+1)),
			notifier:     w.notifier,
			types:        w.types,
			strategy:     w.types.strategy(),
			params:       params,
			interceptors: w.entityInterceptors,
			queue:        queue,
			writers:      writers,
			ready:        readyOnce(&consumersReady),
		}
		eg.Go(func() error {
			return runFailureHandled(gctx, loader, w.notifier, loader.logger)
		}, loader.name())
	}

	producer := &identifierLoader{
		logger: w.logger.WithField("worker",
			workerNamePrefix+w.types.name()+" - ID loading"),
		notifier:     w.notifier,
		types:        w.types,
		strategy:     w.types.strategy(),
		params:       params,
		interceptors: w.identifierInterceptors,
		queue:        queue,
		consumersReady: func(ctx context.Context) error {
			return w.waitForConsumers(ctx, &consumersReady)
		},
	}
	eg.Go(func() error {
		return runFailureHandled(gctx, producer, w.notifier, producer.logger)
	}, producer.name())

	if err := eg.Wait(); err != nil {
		return err
	}

	// gctx is cancelled once Wait returns, use the parent context here.
	if err := w.flushWriters(ctx, writers); err != nil {
		w.notifier.reportRunnableFailure(w.types.name(), operationIndexScope, err)
		return err
	}

	w.notifier.groupCompleted(w.types.name())
	return nil
}

func (w *workspace) resolveWriters() (map[string]backend.Writer, error) {
	writers := map[string]backend.Writer{}

	for _, index := range w.types.indexes() {
		writer, err := w.backend.Writer(index)
		if err != nil {
			w.closeWriters(writers)
			return nil, errors.Wrapf(err, "resolve writer for index %q", index)
		}

		writers[index] = writer
	}

	return writers, nil
}

func (w *workspace) flushWriters(ctx context.Context, writers map[string]backend.Writer) error {
	for _, index := range w.types.indexes() {
		if err := writers[index].Flush(ctx); err != nil {
			return errors.Wrapf(err, "flush writer for index %q", index)
		}
	}

	return nil
}

func (w *workspace) closeWriters(writers map[string]backend.Writer) {
	for index, writer := range writers {
		if err := writer.Close(); err != nil {
			w.logger.WithError(err).Warnf("could not close writer for index %q", index)
		}
	}
}

// waitForConsumers blocks the producer until every entity loader reported
// ready, or the run is cancelled. Every entity loader fires its ready hook
// on all termination paths, so this cannot wait forever.
func (w *workspace) waitForConsumers(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	enterrors.GoWrapper(func() {
		wg.Wait()
		close(done)
	}, w.logger)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func readyOnce(wg *sync.WaitGroup) func() {
	var once sync.Once
	return func() {
		once.Do(wg.Done)
	}
}
