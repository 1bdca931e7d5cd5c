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

package elasticsearch

import (
	"context"

	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"

	"github.com/syndex/syndex/entities/backend"
	"github.com/syndex/syndex/entities/models"
)

type writer struct {
	backend *Backend
	index   string
}

var _ backend.Writer = (*writer)(nil)

// Put hands the document to the shared bulk processor. Execution is
// asynchronous, failures of earlier batches surface here or on Flush.
func (w *writer) Put(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := make(map[string]interface{}, len(doc.Fields)+2)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields[typeField] = doc.Type
	if doc.Tenant != "" {
		fields[tenantField] = doc.Tenant
	}

	req := elastic.NewBulkIndexRequest().
		Index(w.index).
		Id(doc.IndexID()).
		Doc(fields)
	w.backend.processor.Add(req)

	return w.backend.takeErr()
}

func (w *writer) Flush(ctx context.Context) error {
	if err := w.backend.processor.Flush(); err != nil {
		return errors.Wrap(err, "flush bulk processor")
	}
	return w.backend.takeErr()
}

// Close flushes outstanding requests. The processor itself is shared and
// stays up until the backend closes.
func (w *writer) Close() error {
	if err := w.backend.processor.Flush(); err != nil {
		return errors.Wrap(err, "flush bulk processor")
	}
	return w.backend.takeErr()
}
