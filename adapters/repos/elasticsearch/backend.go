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

// Package elasticsearch is the remote search backend. All writers of a
// run feed one shared bulk processor, which batches and retries against
// the cluster on its own goroutines. Bulk execution is asynchronous, so
// failures surface on later Put and Flush calls rather than on the Put
// that caused them.
package elasticsearch

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/syndex/syndex/entities/backend"
	enterrors "github.com/syndex/syndex/entities/errors"
)

const (
	// tenantField and typeField are stamped on every stored document so
	// purges can be scoped by tenant. Underscore prefixes would collide
	// with elasticsearch metadata fields, hence the syndex_ prefix.
	tenantField = "syndex_tenant"
	typeField   = "syndex_type"

	closeTimeout = 10 * time.Second
)

type Config struct {
	URL           string
	Username      string
	Password      string
	BulkWorkers   int
	BulkActions   int
	FlushInterval time.Duration

	// TuneForBulk disables the refresh interval of every touched index
	// while the backend is open. Close restores the default.
	TuneForBulk bool
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = "http://localhost:9200"
	}
	if c.BulkWorkers <= 0 {
		c.BulkWorkers = 2
	}
	if c.BulkActions <= 0 {
		c.BulkActions = 1000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	return c
}

type Backend struct {
	cfg       Config
	logger    logrus.FieldLogger
	client    *elastic.Client
	processor *elastic.BulkProcessor

	lastErr atomic.Pointer[bulkFailure]

	tuned struct {
		sync.Mutex
		indexes map[string]bool
	}
}

var _ backend.Backend = (*Backend)(nil)

type bulkFailure struct {
	err error
}

func New(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*Backend, error) {
	cfg = cfg.withDefaults()
	log := logger.WithField("component", "elasticsearch")

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.URL),
		elastic.SetSniff(false),
		elastic.SetErrorLog(log),
	}
	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}

	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to elasticsearch at %q", cfg.URL)
	}

	b := &Backend{cfg: cfg, logger: log, client: client}
	b.tuned.indexes = map[string]bool{}

	if err := b.awaitCluster(ctx); err != nil {
		client.Stop()
		return nil, err
	}

	// The processor outlives the constructor's context, it runs until
	// Close stops it.
	processor, err := client.BulkProcessor().
		Name("syndex-mass-indexing").
		Workers(cfg.BulkWorkers).
		BulkActions(cfg.BulkActions).
		FlushInterval(cfg.FlushInterval).
		After(b.afterBulk).
		Do(context.Background())
	if err != nil {
		client.Stop()
		return nil, errors.Wrap(err, "start bulk processor")
	}
	b.processor = processor

	log.WithField("action", "startup").
		Debugf("connected to elasticsearch at %q", cfg.URL)
	return b, nil
}

// awaitCluster pings until the cluster answers, new deployments often
// come up a little after the indexer does.
func (b *Backend) awaitCluster(ctx context.Context) error {
	return backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		_, code, err := b.client.Ping(b.cfg.URL).Do(ctx)
		if err != nil {
			return err
		}
		if code != http.StatusOK {
			return errors.Errorf("elasticsearch ping returned status %d", code)
		}
		return nil
	}, pingBackoff())
}

func pingBackoff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = 30 * time.Second
	return eb
}

// Writer returns a writer feeding the shared bulk processor.
func (b *Backend) Writer(index string) (backend.Writer, error) {
	return &writer{backend: b, index: index}, nil
}

func (b *Backend) EnsureIndex(ctx context.Context, index string) error {
	exists, err := b.client.IndexExists(index).Do(ctx)
	if err != nil {
		return errors.Wrapf(err, "check index %q", index)
	}
	if !exists {
		if err := b.createIndex(ctx, index); err != nil {
			return err
		}
	}
	return b.tuneForBulk(ctx, index)
}

func (b *Backend) DropAndCreateIndex(ctx context.Context, index string) error {
	if _, err := b.client.DeleteIndex(index).Do(ctx); err != nil && !elastic.IsNotFound(err) {
		return errors.Wrapf(err, "delete index %q", index)
	}
	if err := b.createIndex(ctx, index); err != nil {
		return err
	}
	return b.tuneForBulk(ctx, index)
}

func (b *Backend) createIndex(ctx context.Context, index string) error {
	created, err := b.client.CreateIndex(index).BodyJson(indexBody()).Do(ctx)
	if err != nil {
		return errors.Wrapf(err, "create index %q", index)
	}
	if !created.Acknowledged {
		b.logger.WithField("action", "create_index").
			Warnf("create of index %q was not acknowledged", index)
	}
	return nil
}

func (b *Backend) PurgeAll(ctx context.Context, index, tenant string) error {
	var q elastic.Query = elastic.NewMatchAllQuery()
	if tenant != "" {
		q = elastic.NewTermQuery(tenantField, tenant)
	}

	resp, err := b.client.DeleteByQuery(index).Query(q).Do(ctx)
	if err != nil {
		return errors.Wrapf(err, "purge index %q", index)
	}
	b.logger.WithField("action", "purge_index").
		Debugf("purged %d documents from index %q", resp.Deleted, index)
	return nil
}

func (b *Backend) MergeSegments(ctx context.Context, index string) error {
	if _, err := b.client.Forcemerge(index).MaxNumSegments(1).Do(ctx); err != nil {
		return errors.Wrapf(err, "merge segments of index %q", index)
	}
	return nil
}

// Flush drains the bulk processor, then asks the engine to commit the
// index to disk.
func (b *Backend) Flush(ctx context.Context, index string) error {
	if err := b.processor.Flush(); err != nil {
		return errors.Wrap(err, "flush bulk processor")
	}
	if err := b.takeErr(); err != nil {
		return err
	}
	if _, err := b.client.Flush(index).Do(ctx); err != nil {
		return errors.Wrapf(err, "flush index %q", index)
	}
	return nil
}

func (b *Backend) Refresh(ctx context.Context, index string) error {
	if _, err := b.client.Refresh(index).Do(ctx); err != nil {
		return errors.Wrapf(err, "refresh index %q", index)
	}
	return nil
}

// DocCount reports the number of documents currently in the index.
func (b *Backend) DocCount(index string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	count, err := b.client.Count(index).Do(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "count documents of index %q", index)
	}
	return uint64(count), nil
}

func (b *Backend) Close() error {
	var errs *multierror.Error

	// Flush can block for as long as the cluster is unreachable, bound it
	// so Close cannot hang shutdown.
	done := make(chan error, 1)
	enterrors.GoWrapper(func() {
		flushErr := b.processor.Flush()
		stopErr := b.processor.Stop()
		if flushErr != nil {
			done <- flushErr
			return
		}
		done <- stopErr
	}, b.logger)

	timer := time.NewTimer(closeTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, "stop bulk processor"))
		}
	case <-timer.C:
		errs = multierror.Append(errs, errors.New("bulk processor flush timed out"))
	}

	if err := b.takeErr(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := b.restoreTuned(); err != nil {
		errs = multierror.Append(errs, err)
	}
	b.client.Stop()

	return errs.ErrorOrNil()
}

// afterBulk runs on the processor's goroutines after every bulk
// execution. The most recent failure is kept in an atomic slot that the
// writers drain on their next call.
func (b *Backend) afterBulk(executionID int64, requests []elastic.BulkableRequest, response *elastic.BulkResponse, err error) {
	if err != nil {
		b.logger.WithField("action", "bulk_execute").WithError(err).
			Errorf("bulk execution %d failed as a whole", executionID)
		b.storeErr(enterrors.NewBackendUnavailable(err.Error()))
		return
	}
	if response == nil {
		return
	}
	failed := response.Failed()
	if len(failed) == 0 {
		return
	}

	first := failed[0]
	reason := ""
	if first.Error != nil {
		reason = first.Error.Reason
	}
	itemErr := errors.Errorf("%d of %d bulk items failed, first %s/%s: %s",
		len(failed), len(response.Items), first.Index, first.Id, reason)
	if first.Status == http.StatusTooManyRequests {
		itemErr = enterrors.NewTooManyRequests(itemErr.Error())
	}
	b.storeErr(itemErr)
	b.logger.WithField("action", "bulk_execute").
		Warnf("bulk execution %d: %v", executionID, itemErr)
}

func (b *Backend) storeErr(err error) {
	b.lastErr.Store(&bulkFailure{err: err})
}

// takeErr returns the most recent asynchronous bulk failure, at most
// once.
func (b *Backend) takeErr() error {
	if f := b.lastErr.Swap(nil); f != nil {
		return f.err
	}
	return nil
}

func (b *Backend) tuneForBulk(ctx context.Context, index string) error {
	if !b.cfg.TuneForBulk {
		return nil
	}
	if err := b.putRefreshInterval(ctx, index, "-1"); err != nil {
		return err
	}
	b.tuned.Lock()
	b.tuned.indexes[index] = true
	b.tuned.Unlock()
	return nil
}

func (b *Backend) restoreTuned() error {
	b.tuned.Lock()
	indexes := make([]string, 0, len(b.tuned.indexes))
	for index := range b.tuned.indexes {
		indexes = append(indexes, index)
	}
	b.tuned.indexes = map[string]bool{}
	b.tuned.Unlock()

	if len(indexes) == 0 {
		return nil
	}
	sort.Strings(indexes)

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs *multierror.Error
	for _, index := range indexes {
		if err := b.putRefreshInterval(ctx, index, nil); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// putRefreshInterval sets the refresh interval of the index, nil resets
// it to the engine default.
func (b *Backend) putRefreshInterval(ctx context.Context, index string, interval interface{}) error {
	body := map[string]interface{}{
		"index": map[string]interface{}{"refresh_interval": interval},
	}
	if _, err := b.client.IndexPutSettings(index).BodyJson(body).Do(ctx); err != nil {
		return errors.Wrapf(err, "set refresh_interval of index %q", index)
	}
	return nil
}

// indexBody carries the only mapping the backend insists on, tenant and
// type markers as keywords so purges can term-match them exactly.
func indexBody() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				tenantField: map[string]interface{}{"type": "keyword"},
				typeField:   map[string]interface{}{"type": "keyword"},
			},
		},
	}
}
