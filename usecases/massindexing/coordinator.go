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
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/syndex/syndex/entities/backend"
	enterrors "github.com/syndex/syndex/entities/errors"
	"github.com/syndex/syndex/usecases/monitoring"
)

// coordinator owns one whole run: it prepares the target indexes, runs one
// workspace per type group with bounded parallelism, and closes the run out
// with the configured index scope operations.
type coordinator struct {
	logger   logrus.FieldLogger
	notifier *notifier
	backend  backend.Backend
	metrics  *monitoring.PrometheusMetrics
	groups   []typeGroup
	opts     options
}

func (c *coordinator) run(ctx context.Context) error {
	start := time.Now()
	err := c.doRun(ctx)
	c.metrics.ObserveRun(runStatus(err), time.Since(start))

	return err
}

func (c *coordinator) doRun(ctx context.Context) error {
	if err := c.prepareIndexes(ctx); err != nil {
		c.notifier.reportRunnableFailure("", operationIndexScope, err)
		return err
	}

	if err := c.runGroups(ctx); err != nil {
		// the failing worker already reported through its envelope
		return err
	}

	if err := c.finishIndexes(ctx); err != nil {
		c.notifier.reportRunnableFailure("", operationIndexScope, err)
		return err
	}

	c.notifier.runCompleted()
	return nil
}

// prepareIndexes brings every target index into the agreed starting shape.
// Dropping and recreating the schema replaces the purge; purging a fresh
// index would be a no-op.
func (c *coordinator) prepareIndexes(ctx context.Context) error {
	for _, index := range c.indexes() {
		if c.opts.dropAndCreateSchemaOnStart {
			if err := c.backend.DropAndCreateIndex(ctx, index); err != nil {
				return errors.Wrapf(err, "drop and create index %q", index)
			}
			continue
		}

		if err := c.backend.EnsureIndex(ctx, index); err != nil {
			return errors.Wrapf(err, "ensure index %q", index)
		}

		if !c.opts.purgeAllOnStart {
			continue
		}

		if err := c.backend.PurgeAll(ctx, index, c.opts.tenant); err != nil {
			return errors.Wrapf(err, "purge index %q", index)
		}

		if c.opts.mergeSegmentsAfterPurge {
			if err := c.backend.MergeSegments(ctx, index); err != nil {
				return errors.Wrapf(err, "merge segments of index %q after purge", index)
			}
		}
	}

	return nil
}

func (c *coordinator) runGroups(ctx context.Context) error {
	eg, gctx := enterrors.NewErrorGroupWithContextWrapper(c.logger, ctx)
	eg.SetLimit(c.opts.typesToIndexInParallel)

	for _, group := range c.groups {
		ws := c.newWorkspace(group)
		eg.Go(func() error {
			return ws.run(gctx)
		}, group.name())
	}

	return eg.Wait()
}

func (c *coordinator) newWorkspace(group typeGroup) *workspace {
	return &workspace{
		logger:                 c.logger,
		notifier:               c.notifier,
		backend:                c.backend,
		types:                  group,
		tenant:                 c.opts.tenant,
		batchSize:              c.opts.batchSizeToLoadObjects,
		queueCapacity:          c.opts.queueCapacity,
		entityThreads:          c.opts.threadsToLoadObjects,
		identifierInterceptors: c.opts.identifierInterceptors,
		entityInterceptors:     c.opts.entityInterceptors,
	}
}

func (c *coordinator) finishIndexes(ctx context.Context) error {
	for _, index := range c.indexes() {
		if c.opts.mergeSegmentsOnFinish {
			if err := c.backend.MergeSegments(ctx, index); err != nil {
				return errors.Wrapf(err, "merge segments of index %q", index)
			}
		}

		if err := c.backend.Flush(ctx, index); err != nil {
			return errors.Wrapf(err, "flush index %q", index)
		}

		if err := c.backend.Refresh(ctx, index); err != nil {
			return errors.Wrapf(err, "refresh index %q", index)
		}
	}

	return nil
}

// indexes returns the distinct target indexes across all groups, in first
// appearance order.
func (c *coordinator) indexes() []string {
	var names []string
	seen := map[string]bool{}

	for _, group := range c.groups {
		for _, index := range group.indexes() {
			if seen[index] {
				continue
			}

			seen[index] = true
			names = append(names, index)
		}
	}

	return names
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return "completed"
	case enterrors.IsInterruption(err):
		return "cancelled"
	default:
		return "failed"
	}
}
