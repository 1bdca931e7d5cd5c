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
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syndex/syndex/entities/indexed"
)

func newCoordinatorForTest(t *testing.T, be *fakeBackend, opts options, types ...indexed.Type) (*coordinator, *fakeFailureHandler, *fakeMonitor) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	handler := &fakeFailureHandler{}
	monitor := &fakeMonitor{}

	return &coordinator{
		logger:   logger,
		notifier: newNotifier(monitor, handler, nil, 100, logger),
		backend:  be,
		groups:   groupByStrategy(types),
		opts:     opts,
	}, handler, monitor
}

func coordinatorOpts() options {
	return options{
		typesToIndexInParallel: 1,
		threadsToLoadObjects:   2,
		batchSizeToLoadObjects: 5,
		queueCapacity:          1,
		failureThreshold:       100,
		purgeAllOnStart:        true,
	}
}

func TestCoordinator_DefaultIndexScopeSequence(t *testing.T) {
	strategy := newFakeStrategy("store", testEntities("Article", 12)...)
	be := newFakeBackend()
	c, handler, monitor := newCoordinatorForTest(t, be, coordinatorOpts(),
		testType("Article", "articles", strategy))

	require.NoError(t, c.run(context.Background()))

	assert.Equal(t, []string{
		"ensure articles",
		"purge articles",
		"flush articles",
		"refresh articles",
	}, be.operations())
	assert.Equal(t, 12, be.writer("articles").docCount())
	assert.Empty(t, handler.fatalFailures())
	assert.Equal(t, int32(1), monitor.completed.Load())
}

func TestCoordinator_DropAndCreateReplacesPurge(t *testing.T) {
	strategy := newFakeStrategy("store", testEntities("Article", 3)...)
	be := newFakeBackend()
	opts := coordinatorOpts()
	opts.dropAndCreateSchemaOnStart = true
	c, _, _ := newCoordinatorForTest(t, be, opts, testType("Article", "articles", strategy))

	require.NoError(t, c.run(context.Background()))

	assert.Equal(t, []string{
		"drop_and_create articles",
		"flush articles",
		"refresh articles",
	}, be.operations())
}

func TestCoordinator_MergeSegmentOptions(t *testing.T) {
	strategy := newFakeStrategy("store", testEntities("Article", 3)...)
	be := newFakeBackend()
	opts := coordinatorOpts()
	opts.mergeSegmentsAfterPurge = true
	opts.mergeSegmentsOnFinish = true
	c, _, _ := newCoordinatorForTest(t, be, opts, testType("Article", "articles", strategy))

	require.NoError(t, c.run(context.Background()))

	assert.Equal(t, []string{
		"ensure articles",
		"purge articles",
		"merge articles",
		"merge articles",
		"flush articles",
		"refresh articles",
	}, be.operations())
}

func TestCoordinator_PurgeIsScopedToTenant(t *testing.T) {
	strategy := newFakeStrategy("store", testEntities("Article", 3)...)
	be := newFakeBackend()
	opts := coordinatorOpts()
	opts.tenant = "acme"
	c, _, _ := newCoordinatorForTest(t, be, opts, testType("Article", "articles", strategy))

	require.NoError(t, c.run(context.Background()))

	assert.Contains(t, be.operations(), "purge articles tenant=acme")
}

func TestCoordinator_RunsEveryGroup(t *testing.T) {
	mainStore := newFakeStrategy("store-main", testEntities("Article", 8)...)
	sideStore := newFakeStrategy("store-side", testEntities("Audit", 5)...)
	be := newFakeBackend()
	c, handler, monitor := newCoordinatorForTest(t, be, coordinatorOpts(),
		testType("Article", "articles", mainStore),
		testType("Audit", "audits", sideStore),
	)

	require.NoError(t, c.run(context.Background()))

	assert.Equal(t, 8, be.writer("articles").docCount())
	assert.Equal(t, 5, be.writer("audits").docCount())
	assert.Equal(t, int64(13), monitor.total.Load())
	assert.Equal(t, int64(13), monitor.indexed.Load())
	assert.Empty(t, handler.fatalFailures())

	// index scope operations cover both indexes, preparation first
	assert.Equal(t, []string{
		"ensure articles",
		"purge articles",
		"ensure audits",
		"purge audits",
		"flush articles",
		"refresh articles",
		"flush audits",
		"refresh audits",
	}, be.operations())
}

func TestCoordinator_PreparationFailureEndsTheRun(t *testing.T) {
	strategy := newFakeStrategy("store", testEntities("Article", 3)...)
	be := newFakeBackend()
	be.ensureErr = errors.New("index locked")
	c, handler, monitor := newCoordinatorForTest(t, be, coordinatorOpts(),
		testType("Article", "articles", strategy))

	err := c.run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index locked")

	// nothing was streamed, nothing was completed
	assert.Empty(t, strategy.openOrder())
	assert.Equal(t, int32(0), monitor.completed.Load())

	fatal := handler.fatalFailures()
	require.Len(t, fatal, 1)
	assert.Equal(t, operationIndexScope, fatal[0].Operation)
	assert.Empty(t, fatal[0].Group)
}

func TestCoordinator_GroupFailureSkipsFinish(t *testing.T) {
	strategy := newFakeStrategy("store", testEntities("Article", 30)...)
	strategy.loadErr = errors.New("store gone")
	be := newFakeBackend()
	c, _, monitor := newCoordinatorForTest(t, be, coordinatorOpts(),
		testType("Article", "articles", strategy))

	err := c.run(context.Background())

	require.Error(t, err)
	assert.Equal(t, int32(0), monitor.completed.Load())
	assert.NotContains(t, be.operations(), "flush articles")
	assert.NotContains(t, be.operations(), "refresh articles")
}

func TestCoordinator_FinishFailureEndsTheRun(t *testing.T) {
	strategy := newFakeStrategy("store", testEntities("Article", 3)...)
	be := newFakeBackend()
	be.flushErr = errors.New("disk full")
	c, handler, monitor := newCoordinatorForTest(t, be, coordinatorOpts(),
		testType("Article", "articles", strategy))

	err := c.run(context.Background())

	require.Error(t, err)
	assert.Equal(t, int32(0), monitor.completed.Load())

	fatal := handler.fatalFailures()
	require.Len(t, fatal, 1)
	assert.Equal(t, operationIndexScope, fatal[0].Operation)
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, "completed", runStatus(nil))
	assert.Equal(t, "cancelled", runStatus(context.Canceled))
	assert.Equal(t, "cancelled", runStatus(context.DeadlineExceeded))
	assert.Equal(t, "failed", runStatus(errors.New("boom")))
}
