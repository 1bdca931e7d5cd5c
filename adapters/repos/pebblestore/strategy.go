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

package pebblestore

import (
	"bytes"
	"context"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syndex/syndex/entities/loading"
)

// LoadingStrategy exposes the store to the mass indexing pipeline. Each
// session pins one pebble snapshot for its whole lifetime, so a run reads
// the store as it was when the session opened, no matter what is written
// concurrently.
//
// Identifiers are composite "<type>/<id>" strings; only this strategy
// produces and consumes them, the pipeline treats them as opaque.
func (s *Store) LoadingStrategy() loading.Strategy {
	return &strategy{store: s}
}

type strategy struct {
	store *Store
}

var _ loading.Strategy = (*strategy)(nil)

func (st *strategy) Key() string {
	return "pebblestore://" + st.store.homeDir
}

func (st *strategy) Identifiers(ctx context.Context, params loading.Params) (loading.IdentifierSession, error) {
	if st.store.db == nil {
		return nil, errors.New("store is not open")
	}

	batchSize := params.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	return &identifierSession{
		snap:      st.store.db.NewSnapshot(),
		types:     params.Types,
		tenant:    params.Tenant,
		batchSize: batchSize,
	}, nil
}

func (st *strategy) Entities(ctx context.Context, params loading.Params) (loading.EntitySession, error) {
	if st.store.db == nil {
		return nil, errors.New("store is not open")
	}

	return &entitySession{
		snap:   st.store.db.NewSnapshot(),
		tenant: params.Tenant,
	}, nil
}

// identifierSession walks the type key ranges of its snapshot in order,
// one short-lived iterator per chunk, resuming past the last returned key.
type identifierSession struct {
	snap      *pebble.Snapshot
	types     []string
	tenant    string
	batchSize int

	typeIdx int
	lastKey []byte
}

func (s *identifierSession) Total(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var total int64
	for _, typeName := range s.types {
		prefix := objectPrefix(typeName, s.tenant)

		iter, err := s.snap.NewIter(&pebble.IterOptions{})
		if err != nil {
			return 0, errors.Wrap(err, "create iterator")
		}

		for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
			if !bytes.HasPrefix(iter.Key(), prefix) {
				break
			}

			total++
		}

		if err := iter.Close(); err != nil {
			return 0, errors.Wrap(err, "close iterator")
		}
	}

	return total, nil
}

func (s *identifierSession) Next(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var batch []string
	for s.typeIdx < len(s.types) && len(batch) < s.batchSize {
		typeName := s.types[s.typeIdx]
		prefix := objectPrefix(typeName, s.tenant)

		iter, err := s.snap.NewIter(&pebble.IterOptions{})
		if err != nil {
			return nil, errors.Wrap(err, "create iterator")
		}

		seekFrom := prefix
		if s.lastKey != nil {
			seekFrom = s.lastKey
		}

		for iter.SeekGE(seekFrom); iter.Valid() && len(batch) < s.batchSize; iter.Next() {
			key := iter.Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}
			if s.lastKey != nil && bytes.Equal(key, s.lastKey) {
				continue
			}

			batch = append(batch, typeName+"/"+string(key[len(prefix):]))
			s.lastKey = append(s.lastKey[:0], key...)
		}

		if err := iter.Close(); err != nil {
			return nil, errors.Wrap(err, "close iterator")
		}

		if len(batch) < s.batchSize {
			s.advanceType()
		}
	}

	return batch, nil
}

func (s *identifierSession) advanceType() {
	s.typeIdx++
	s.lastKey = nil
}

// Close releases the snapshot. The pipeline closes sessions on every
// termination path; a leaked snapshot would pin memtables for good.
func (s *identifierSession) Close() error {
	return s.snap.Close()
}

type entitySession struct {
	snap   *pebble.Snapshot
	tenant string
}

// Load resolves a batch of composite identifiers against the session
// snapshot. Objects deleted before the session opened are simply absent
// from the result.
func (s *entitySession) Load(ctx context.Context, ids []string) ([]loading.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entities := make([]loading.Entity, 0, len(ids))
	for _, composite := range ids {
		typeName, id, ok := strings.Cut(composite, "/")
		if !ok {
			return nil, errors.Errorf("malformed identifier %q", composite)
		}

		v, closer, err := s.snap.Get(objectKey(typeName, s.tenant, id))
		if err == pebble.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "get object %s/%s", typeName, id)
		}

		data := append([]byte(nil), v...)
		closer.Close()

		var obj map[string]interface{}
		if err := msgpack.Unmarshal(data, &obj); err != nil {
			return nil, errors.Wrapf(err, "unmarshal object %s/%s", typeName, id)
		}

		entities = append(entities, loading.Entity{Type: typeName, ID: id, Object: obj})
	}

	return entities, nil
}

func (s *entitySession) Close() error {
	return s.snap.Close()
}
