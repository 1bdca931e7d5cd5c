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

// Package bleveindex is the embedded search backend. It keeps one bleve
// index per index name under a common root directory, all on the scorch
// engine. No external services are involved, which makes it the default
// choice for single node setups and for tests.
package bleveindex

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/syndex/syndex/entities/backend"
)

const (
	// tenantField and typeField are injected into every stored document,
	// so purges can be scoped without a dedicated index per tenant.
	tenantField = "_tenant"
	typeField   = "_type"

	purgePageSize = 1000
)

type Backend struct {
	rootDir string
	logger  logrus.FieldLogger

	indexes struct {
		sync.Mutex
		byName map[string]bleve.Index
	}
}

var _ backend.Backend = (*Backend)(nil)

func New(rootDir string, logger logrus.FieldLogger) *Backend {
	b := &Backend{
		rootDir: rootDir,
		logger:  logger.WithField("component", "bleveindex"),
	}
	b.indexes.byName = map[string]bleve.Index{}
	return b
}

// Writer returns a batching writer for the index, creating the index if
// it does not exist yet.
func (b *Backend) Writer(index string) (backend.Writer, error) {
	idx, err := b.openIndex(index)
	if err != nil {
		return nil, err
	}
	return newWriter(index, idx, b.logger), nil
}

func (b *Backend) EnsureIndex(ctx context.Context, index string) error {
	_, err := b.openIndex(index)
	return err
}

func (b *Backend) DropAndCreateIndex(ctx context.Context, index string) error {
	b.indexes.Lock()
	if idx, ok := b.indexes.byName[index]; ok {
		if err := idx.Close(); err != nil {
			b.indexes.Unlock()
			return errors.Wrapf(err, "close index %q before drop", index)
		}
		delete(b.indexes.byName, index)
	}
	b.indexes.Unlock()

	if err := os.RemoveAll(b.indexPath(index)); err != nil {
		return errors.Wrapf(err, "remove index %q", index)
	}
	_, err := b.openIndex(index)
	return err
}

// PurgeAll deletes every document of the index, or only one tenant's
// documents when tenant is non-empty. Deletes are searched and applied in
// pages, every round reads the first page again because the previous
// round's deletes shrink the result set.
func (b *Backend) PurgeAll(ctx context.Context, index, tenant string) error {
	idx, err := b.openIndex(index)
	if err != nil {
		return err
	}

	var q query.Query
	if tenant == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		tq := bleve.NewTermQuery(tenant)
		tq.SetField(tenantField)
		q = tq
	}

	removed := 0
	for {
		req := bleve.NewSearchRequest(q)
		req.Size = purgePageSize
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return errors.Wrapf(err, "search index %q for purge", index)
		}
		if len(res.Hits) == 0 {
			break
		}

		batch := idx.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := idx.Batch(batch); err != nil {
			return errors.Wrapf(err, "delete batch on index %q", index)
		}
		removed += len(res.Hits)
	}

	if removed > 0 {
		b.logger.WithField("action", "purge_index").
			Debugf("purged %d documents from index %q", removed, index)
	}
	return nil
}

// MergeSegments is a no-op, scorch merges segments in the background on
// its own.
func (b *Backend) MergeSegments(ctx context.Context, index string) error {
	b.logger.WithField("action", "merge_segments").
		Debugf("index %q merges in the background, nothing to do", index)
	return nil
}

// Flush is a no-op, applied batches are already durable.
func (b *Backend) Flush(ctx context.Context, index string) error {
	return nil
}

// Refresh is a no-op, applied batches are immediately visible to search.
func (b *Backend) Refresh(ctx context.Context, index string) error {
	return nil
}

// DocCount reports the number of documents currently in the index.
func (b *Backend) DocCount(index string) (uint64, error) {
	idx, err := b.openIndex(index)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

func (b *Backend) Close() error {
	b.indexes.Lock()
	defer b.indexes.Unlock()

	var errs *multierror.Error
	for name, idx := range b.indexes.byName {
		if err := idx.Close(); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "close index %q", name))
		}
	}
	b.indexes.byName = map[string]bleve.Index{}
	return errs.ErrorOrNil()
}

// openIndex returns the cached index, opening or creating it on first
// use.
func (b *Backend) openIndex(name string) (bleve.Index, error) {
	b.indexes.Lock()
	defer b.indexes.Unlock()

	if idx, ok := b.indexes.byName[name]; ok {
		return idx, nil
	}

	path := b.indexPath(name)
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		if mkErr := os.MkdirAll(b.rootDir, 0o777); mkErr != nil {
			return nil, errors.Wrapf(mkErr, "create index root %q", b.rootDir)
		}
		idx, err = bleve.NewUsing(path, indexMapping(), "scorch", "scorch", nil)
		if err == nil {
			b.logger.WithField("action", "create_index").
				Debugf("created index %q at %q", name, path)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open index %q at %q", name, path)
	}

	b.indexes.byName[name] = idx
	return idx, nil
}

func (b *Backend) indexPath(name string) string {
	return filepath.Join(b.rootDir, name)
}

// indexMapping treats tenant and type markers as opaque keywords, every
// other field goes through the default analyzer.
func indexMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	for _, name := range []string{tenantField, typeField} {
		field := bleve.NewTextFieldMapping()
		field.Analyzer = "keyword"
		docMapping.AddFieldMappingsAt(name, field)
	}
	m.DefaultMapping = docMapping

	return m
}
