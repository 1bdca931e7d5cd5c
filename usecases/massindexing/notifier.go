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
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/syndex/syndex/usecases/monitoring"
)

const defaultFailureThreshold = 100

// notifier aggregates progress and failures across every worker of one run.
// All workspaces of the run share one instance; its counters are the only
// state mutated from more than one workspace, so everything here is atomic
// or guarded.
type notifier struct {
	logger    logrus.FieldLogger
	monitor   Monitor
	handler   FailureHandler
	metrics   *monitoring.PrometheusMetrics
	threshold int64

	total      atomic.Int64
	firstFatal atomic.Pointer[fatalRecord]

	progress struct {
		sync.Mutex
		byGroup map[string]*groupProgress
	}
}

type fatalRecord struct {
	operation string
	group     string
	err       error
}

type groupProgress struct {
	loaded   atomic.Int64
	indexed  atomic.Int64
	failures atomic.Int64
}

func newNotifier(monitor Monitor, handler FailureHandler,
	metrics *monitoring.PrometheusMetrics, threshold int64, logger logrus.FieldLogger,
) *notifier {
	if threshold < 1 {
		threshold = defaultFailureThreshold
	}

	n := &notifier{
		logger:    logger,
		monitor:   monitor,
		handler:   handler,
		metrics:   metrics,
		threshold: threshold,
	}
	n.progress.byGroup = map[string]*groupProgress{}

	return n
}

func (n *notifier) progressFor(group string) *groupProgress {
	n.progress.Lock()
	defer n.progress.Unlock()

	p, ok := n.progress.byGroup[group]
	if !ok {
		p = &groupProgress{}
		n.progress.byGroup[group] = p
	}

	return p
}

// reportAddedTotalCount grows the number of entities the run expects to
// index, once the identifier loader of a group learned its total.
func (n *notifier) reportAddedTotalCount(group string, count int64) {
	n.total.Add(count)
	n.monitor.AddToTotal(count)
	n.metrics.AddToTotal(group, count)
}

func (n *notifier) reportEntitiesLoaded(group string, count int64) {
	n.progressFor(group).loaded.Add(count)
	n.monitor.EntitiesLoaded(count)
	n.metrics.EntitiesLoaded(group, count)
}

func (n *notifier) reportDocumentsIndexed(group string, count int64) {
	n.progressFor(group).indexed.Add(count)
	n.monitor.DocumentsIndexed(count)
	n.metrics.DocumentsIndexed(group, count)
}

// reportItemFailure records a skipped entity. The failure handler sees at
// most threshold reports per type group; beyond that the failures are still
// counted but no longer forwarded, so a systematically broken type cannot
// flood the handler.
func (n *notifier) reportItemFailure(fc ItemFailureContext) {
	failures := n.progressFor(fc.Group).failures.Add(1)
	n.metrics.ItemFailure(fc.Group)

	switch {
	case failures <= n.threshold:
		n.handler.HandleItem(fc)
	case failures == n.threshold+1:
		n.logger.WithField("group", fc.Group).
			WithField("threshold", n.threshold).
			Warnf("more than %d entities failed in group %q, suppressing further reports",
				n.threshold, fc.Group)
	}
}

// reportRunnableFailure records a stage failure. The first one wins the
// fatal slot; every one reaches the failure handler.
func (n *notifier) reportRunnableFailure(group, operation string, err error) {
	n.firstFatal.CompareAndSwap(nil, &fatalRecord{
		operation: operation,
		group:     group,
		err:       err,
	})
	n.metrics.FatalFailure(group)

	n.handler.Handle(FailureContext{
		Operation: operation,
		Group:     group,
		Err:       err,
	})
}

// fatalErr returns the recorded first fatal cause, or nil if no worker
// reported one.
func (n *notifier) fatalErr() error {
	if rec := n.firstFatal.Load(); rec != nil {
		return rec.err
	}

	return nil
}

// groupCompleted fires after one group's workspace finished cleanly.
func (n *notifier) groupCompleted(group string) {
	n.logger.WithField("group", group).
		Debugf("indexing for group %q is done", group)
}

// runCompleted fires after every group finished and the index scope was
// closed out. It is not called on failed or cancelled runs.
func (n *notifier) runCompleted() {
	indexed, failures := n.totals()

	entry := n.logger.WithField("action", "mass_indexing_completed").
		WithField("documents_indexed", indexed).
		WithField("entities_total", n.total.Load())
	if failures > 0 {
		entry.Warnf("mass indexing completed with %d skipped entities", failures)
	} else {
		entry.Info("mass indexing completed")
	}

	n.monitor.IndexingCompleted()
}

func (n *notifier) totals() (indexed, failures int64) {
	n.progress.Lock()
	defer n.progress.Unlock()

	for _, p := range n.progress.byGroup {
		indexed += p.indexed.Load()
		failures += p.failures.Load()
	}

	return indexed, failures
}
