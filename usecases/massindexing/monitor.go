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
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitor receives progress notifications while a mass indexing run is in
// flight. Implementations must be safe for concurrent use; increments arrive
// from several workers in no particular order, only the running totals are
// meaningful.
type Monitor interface {
	// AddToTotal grows the number of entities the run expects to index.
	AddToTotal(count int64)

	// EntitiesLoaded reports entities fetched from the object store.
	EntitiesLoaded(count int64)

	// DocumentsIndexed reports documents accepted by the index writers.
	DocumentsIndexed(count int64)

	// IndexingCompleted fires once, after the whole run succeeded.
	IndexingCompleted()
}

const defaultLogEvery = 50

// LoggingMonitor reports progress through the structured log, once every
// logEvery indexed documents and once more at the end of the run.
type LoggingMonitor struct {
	logger   logrus.FieldLogger
	logEvery int64
	start    time.Time

	total   atomic.Int64
	loaded  atomic.Int64
	indexed atomic.Int64
}

func NewLoggingMonitor(logger logrus.FieldLogger) *LoggingMonitor {
	return NewLoggingMonitorWithInterval(logger, defaultLogEvery)
}

func NewLoggingMonitorWithInterval(logger logrus.FieldLogger, logEvery int64) *LoggingMonitor {
	if logEvery < 1 {
		logEvery = 1
	}

	return &LoggingMonitor{
		logger:   logger.WithField("action", "mass_indexing_progress"),
		logEvery: logEvery,
		start:    time.Now(),
	}
}

func (m *LoggingMonitor) AddToTotal(count int64) {
	total := m.total.Add(count)
	m.logger.WithField("entities_total", total).
		Debugf("mass indexing now expects %d entities in total", total)
}

func (m *LoggingMonitor) EntitiesLoaded(count int64) {
	m.loaded.Add(count)
}

func (m *LoggingMonitor) DocumentsIndexed(count int64) {
	if count <= 0 {
		return
	}

	indexed := m.indexed.Add(count)
	if indexed/m.logEvery != (indexed-count)/m.logEvery {
		m.logProgress(indexed)
	}
}

func (m *LoggingMonitor) IndexingCompleted() {
	elapsed := time.Since(m.start)
	indexed := m.indexed.Load()

	m.logger.WithField("documents_indexed", indexed).
		WithField("entities_total", m.total.Load()).
		WithField("took", elapsed.String()).
		Infof("mass indexing complete: %d documents in %s (%.1f/s)",
			indexed, elapsed.Round(time.Millisecond), rate(indexed, elapsed))
}

func (m *LoggingMonitor) logProgress(indexed int64) {
	elapsed := time.Since(m.start)
	m.logger.WithField("documents_indexed", indexed).
		WithField("entities_total", m.total.Load()).
		Infof("indexed %d of %d entities (%.1f/s)",
			indexed, m.total.Load(), rate(indexed, elapsed))
}

func rate(count int64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}

	return float64(count) / secs
}

// CompositeMonitor fans every notification out to a list of monitors.
type CompositeMonitor struct {
	monitors []Monitor
}

func NewCompositeMonitor(monitors ...Monitor) *CompositeMonitor {
	return &CompositeMonitor{monitors: monitors}
}

func (c *CompositeMonitor) AddToTotal(count int64) {
	for _, m := range c.monitors {
		m.AddToTotal(count)
	}
}

func (c *CompositeMonitor) EntitiesLoaded(count int64) {
	for _, m := range c.monitors {
		m.EntitiesLoaded(count)
	}
}

func (c *CompositeMonitor) DocumentsIndexed(count int64) {
	for _, m := range c.monitors {
		m.DocumentsIndexed(count)
	}
}

func (c *CompositeMonitor) IndexingCompleted() {
	for _, m := range c.monitors {
		m.IndexingCompleted()
	}
}
