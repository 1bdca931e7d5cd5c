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

package bleveindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/syndex/syndex/entities/backend"
	enterrors "github.com/syndex/syndex/entities/errors"
	"github.com/syndex/syndex/entities/models"
)

// defaultBatchThreshold is the number of buffered documents that triggers
// an automatic batch apply.
const defaultBatchThreshold = 1000

// writer buffers documents into a bleve batch and applies it at the
// threshold, on Flush and on Close. All entity loading workers of a run
// share one writer per index.
type writer struct {
	name      string
	index     bleve.Index
	logger    logrus.FieldLogger
	threshold int

	cur struct {
		sync.Mutex
		batch *bleve.Batch
	}
}

var _ backend.Writer = (*writer)(nil)

func newWriter(name string, index bleve.Index, logger logrus.FieldLogger) *writer {
	return &writer{
		name:      name,
		index:     index,
		logger:    logger,
		threshold: defaultBatchThreshold,
	}
}

func (w *writer) Put(ctx context.Context, doc *models.Document) error {
	fields := make(map[string]interface{}, len(doc.Fields)+2)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields[typeField] = doc.Type
	if doc.Tenant != "" {
		fields[tenantField] = doc.Tenant
	}

	w.cur.Lock()
	defer w.cur.Unlock()

	if w.cur.batch == nil {
		w.cur.batch = w.index.NewBatch()
	}
	if err := w.cur.batch.Index(doc.IndexID(), fields); err != nil {
		return errors.Wrapf(err, "add document %q to batch", doc.IndexID())
	}
	if w.cur.batch.Size() >= w.threshold {
		return w.applyCurrentBatch()
	}
	return nil
}

func (w *writer) Flush(ctx context.Context) error {
	w.cur.Lock()
	defer w.cur.Unlock()
	return w.applyCurrentBatch()
}

// Close applies any still buffered documents. The underlying index stays
// open, it belongs to the backend and may serve later runs.
func (w *writer) Close() error {
	w.cur.Lock()
	defer w.cur.Unlock()
	return w.applyCurrentBatch()
}

// applyCurrentBatch writes the buffered batch to the index. Callers must
// hold the cur lock.
func (w *writer) applyCurrentBatch() error {
	if w.cur.batch == nil || w.cur.batch.Size() == 0 {
		return nil
	}

	size := w.cur.batch.Size()
	if err := w.index.Batch(w.cur.batch); err != nil {
		return enterrors.NewBackendUnavailable(
			fmt.Sprintf("apply batch of %d documents on index %q: %v", size, w.name, err))
	}
	w.cur.batch.Reset()

	w.logger.WithField("action", "index_batch").
		Debugf("applied batch of %d documents on index %q", size, w.name)
	return nil
}
