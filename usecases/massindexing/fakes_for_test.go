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
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/syndex/syndex/entities/backend"
	"github.com/syndex/syndex/entities/indexed"
	"github.com/syndex/syndex/entities/loading"
	"github.com/syndex/syndex/entities/models"
)

// fakeStrategy streams a fixed list of entities. Error fields inject
// failures at the corresponding stage; open order is recorded so tests can
// assert that consumers come up before the producer.
type fakeStrategy struct {
	key string

	mu    sync.Mutex
	list  []loading.Entity
	byID  map[string]loading.Entity
	opens []string

	identifiersErr error
	entitiesErr    error
	totalErr       error
	nextFailAfter  int
	loadErr        error

	identifierSessionsClosed atomic.Int32
	entitySessionsClosed     atomic.Int32
}

func newFakeStrategy(key string, entities ...loading.Entity) *fakeStrategy {
	byID := map[string]loading.Entity{}
	for _, e := range entities {
		byID[e.ID] = e
	}

	return &fakeStrategy{key: key, list: entities, byID: byID}
}

func (s *fakeStrategy) Key() string { return s.key }

func (s *fakeStrategy) Identifiers(ctx context.Context, params loading.Params) (loading.IdentifierSession, error) {
	s.recordOpen("identifiers")
	if s.identifiersErr != nil {
		return nil, s.identifiersErr
	}

	batchSize := params.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	return &fakeIdentifierSession{strategy: s, batchSize: batchSize}, nil
}

func (s *fakeStrategy) Entities(ctx context.Context, params loading.Params) (loading.EntitySession, error) {
	s.recordOpen("entities")
	if s.entitiesErr != nil {
		return nil, s.entitiesErr
	}

	return &fakeEntitySession{strategy: s}, nil
}

func (s *fakeStrategy) recordOpen(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opens = append(s.opens, kind)
}

func (s *fakeStrategy) openOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string{}, s.opens...)
}

type fakeIdentifierSession struct {
	strategy  *fakeStrategy
	batchSize int
	offset    int
	chunks    int
}

func (s *fakeIdentifierSession) Total(ctx context.Context) (int64, error) {
	if err := s.strategy.totalErr; err != nil {
		return 0, err
	}

	return int64(len(s.strategy.list)), nil
}

func (s *fakeIdentifierSession) Next(ctx context.Context) ([]string, error) {
	if after := s.strategy.nextFailAfter; after > 0 && s.chunks >= after {
		return nil, errors.Errorf("identifier chunk %d failed", s.chunks+1)
	}

	if s.offset >= len(s.strategy.list) {
		return nil, nil
	}

	end := s.offset + s.batchSize
	if end > len(s.strategy.list) {
		end = len(s.strategy.list)
	}

	ids := make([]string, 0, end-s.offset)
	for _, e := range s.strategy.list[s.offset:end] {
		ids = append(ids, e.ID)
	}

	s.offset = end
	s.chunks++
	return ids, nil
}

func (s *fakeIdentifierSession) Close() error {
	s.strategy.identifierSessionsClosed.Add(1)
	return nil
}

type fakeEntitySession struct {
	strategy *fakeStrategy
}

func (s *fakeEntitySession) Load(ctx context.Context, ids []string) ([]loading.Entity, error) {
	if err := s.strategy.loadErr; err != nil {
		return nil, err
	}

	out := make([]loading.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.strategy.byID[id]; ok {
			out = append(out, e)
		}
	}

	return out, nil
}

func (s *fakeEntitySession) Close() error {
	s.strategy.entitySessionsClosed.Add(1)
	return nil
}

// fakeBackend records every index scope operation in call order and hands
// out one shared fakeWriter per index.
type fakeBackend struct {
	mu      sync.Mutex
	ops     []string
	writers map[string]*fakeWriter

	writerErr error
	ensureErr error
	purgeErr  error
	flushErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{writers: map[string]*fakeWriter{}}
}

func (b *fakeBackend) Writer(index string) (backend.Writer, error) {
	if b.writerErr != nil {
		return nil, b.writerErr
	}

	return b.writer(index), nil
}

func (b *fakeBackend) writer(index string) *fakeWriter {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.writers[index]
	if !ok {
		w = &fakeWriter{index: index, docs: map[string]*models.Document{}}
		b.writers[index] = w
	}

	return w
}

func (b *fakeBackend) EnsureIndex(ctx context.Context, index string) error {
	b.record("ensure " + index)
	return b.ensureErr
}

func (b *fakeBackend) DropAndCreateIndex(ctx context.Context, index string) error {
	b.record("drop_and_create " + index)
	return nil
}

func (b *fakeBackend) PurgeAll(ctx context.Context, index, tenant string) error {
	if tenant != "" {
		b.record("purge " + index + " tenant=" + tenant)
	} else {
		b.record("purge " + index)
	}

	return b.purgeErr
}

func (b *fakeBackend) MergeSegments(ctx context.Context, index string) error {
	b.record("merge " + index)
	return nil
}

func (b *fakeBackend) Flush(ctx context.Context, index string) error {
	b.record("flush " + index)
	return b.flushErr
}

func (b *fakeBackend) Refresh(ctx context.Context, index string) error {
	b.record("refresh " + index)
	return nil
}

func (b *fakeBackend) Close() error {
	b.record("close")
	return nil
}

func (b *fakeBackend) record(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ops = append(b.ops, op)
}

func (b *fakeBackend) operations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string{}, b.ops...)
}

// fakeWriter collects documents keyed by their index id, so an upsert of
// the same entity overwrites instead of duplicating, like a real engine.
type fakeWriter struct {
	index string

	mu      sync.Mutex
	docs    map[string]*models.Document
	flushes int
	closes  int

	putErr     error
	failPutIDs map[string]error
}

func (w *fakeWriter) Put(ctx context.Context, doc *models.Document) error {
	if err, ok := w.failPutIDs[doc.ID]; ok {
		return err
	}
	if w.putErr != nil {
		return w.putErr
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.docs[doc.IndexID()] = doc
	return nil
}

func (w *fakeWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.flushes++
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closes++
	return nil
}

func (w *fakeWriter) docCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.docs)
}

func (w *fakeWriter) docIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]string, 0, len(w.docs))
	for id := range w.docs {
		ids = append(ids, id)
	}

	return ids
}

func (w *fakeWriter) flushCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.flushes
}

func (w *fakeWriter) closeCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.closes
}

type fakeMonitor struct {
	total     atomic.Int64
	loaded    atomic.Int64
	indexed   atomic.Int64
	completed atomic.Int32
}

func (m *fakeMonitor) AddToTotal(count int64) { m.total.Add(count) }

func (m *fakeMonitor) EntitiesLoaded(count int64) { m.loaded.Add(count) }

func (m *fakeMonitor) DocumentsIndexed(count int64) { m.indexed.Add(count) }

func (m *fakeMonitor) IndexingCompleted() { m.completed.Add(1) }

type fakeFailureHandler struct {
	mu    sync.Mutex
	fatal []FailureContext
	items []ItemFailureContext
}

func (h *fakeFailureHandler) Handle(fc FailureContext) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.fatal = append(h.fatal, fc)
}

func (h *fakeFailureHandler) HandleItem(fc ItemFailureContext) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, fc)
}

func (h *fakeFailureHandler) fatalFailures() []FailureContext {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]FailureContext{}, h.fatal...)
}

func (h *fakeFailureHandler) itemFailures() []ItemFailureContext {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]ItemFailureContext{}, h.items...)
}

// failingBuilder breaks document building for a chosen set of entity ids
// and behaves like MapDocumentBuilder for everything else.
type failingBuilder struct {
	failIDs map[string]bool
}

func (b failingBuilder) Build(ctx context.Context, entity loading.Entity) (*models.Document, error) {
	if b.failIDs[entity.ID] {
		return nil, errors.Errorf("no document for entity %s", entity.ID)
	}

	return indexed.MapDocumentBuilder{}.Build(ctx, entity)
}

func testEntities(typeName string, n int) []loading.Entity {
	out := make([]loading.Entity, n)
	for i := range out {
		out[i] = loading.Entity{
			Type: typeName,
			ID:   fmt.Sprintf("%s-%03d", strings.ToLower(typeName), i),
			Object: map[string]interface{}{
				"title": fmt.Sprintf("%s no %d", typeName, i),
				"seq":   i,
			},
		}
	}

	return out
}

func testType(name, index string, strategy loading.Strategy) indexed.Type {
	return indexed.Type{
		Name:    name,
		Index:   index,
		Builder: indexed.MapDocumentBuilder{},
		Loading: strategy,
	}
}
