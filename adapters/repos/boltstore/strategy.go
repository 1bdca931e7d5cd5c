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

package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/syndex/syndex/entities/loading"
)

// LoadingStrategy exposes the store to the mass indexing pipeline. All
// types kept in the same store share one strategy key, so they are indexed
// together in one pass.
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
	return "boltstore://" + st.store.homeDir
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
		store:     st.store,
		types:     params.Types,
		tenant:    params.Tenant,
		batchSize: batchSize,
	}, nil
}

func (st *strategy) Entities(ctx context.Context, params loading.Params) (loading.EntitySession, error) {
	if st.store.db == nil {
		return nil, errors.New("store is not open")
	}

	return &entitySession{store: st.store, tenant: params.Tenant}, nil
}

// identifierSession walks the type buckets in order, one read transaction
// per chunk. Each chunk sees a consistent view of the store; the cursor
// position is carried across chunks through the last returned key.
type identifierSession struct {
	store     *Store
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
	err := s.store.db.View(func(tx *bolt.Tx) error {
		for _, typeName := range s.types {
			b := tx.Bucket([]byte(typeName))
			if b == nil {
				continue
			}

			c := b.Cursor()
			for k, _ := first(c, s.tenant); k != nil && inTenant(k, s.tenant); k, _ = c.Next() {
				total++
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count objects: %w", err)
	}

	return total, nil
}

func (s *identifierSession) Next(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var batch []string
	err := s.store.db.View(func(tx *bolt.Tx) error {
		for s.typeIdx < len(s.types) && len(batch) < s.batchSize {
			typeName := s.types[s.typeIdx]
			b := tx.Bucket([]byte(typeName))
			if b == nil {
				s.advanceType()
				continue
			}

			c := b.Cursor()
			k, _ := s.position(c)
			for ; k != nil && inTenant(k, s.tenant) && len(batch) < s.batchSize; k, _ = c.Next() {
				batch = append(batch, typeName+"/"+plainID(k, s.tenant))
				s.lastKey = append(s.lastKey[:0], k...)
			}

			if k == nil || !inTenant(k, s.tenant) {
				s.advanceType()
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load identifier batch: %w", err)
	}

	return batch, nil
}

// position places the cursor at the first key of this chunk, seeking past
// the last key of the previous one. The last key may have been deleted in
// the meantime, so the seek result itself still counts when it moved.
func (s *identifierSession) position(c *bolt.Cursor) ([]byte, []byte) {
	if s.lastKey == nil {
		return first(c, s.tenant)
	}

	k, v := c.Seek(s.lastKey)
	if k != nil && bytes.Equal(k, s.lastKey) {
		return c.Next()
	}

	return k, v
}

func (s *identifierSession) advanceType() {
	s.typeIdx++
	s.lastKey = nil
}

func (s *identifierSession) Close() error {
	return nil
}

type entitySession struct {
	store  *Store
	tenant string
}

// Load resolves a batch of composite identifiers. Objects deleted since
// the identifier chunk was taken are simply absent from the result.
func (s *entitySession) Load(ctx context.Context, ids []string) ([]loading.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entities := make([]loading.Entity, 0, len(ids))
	err := s.store.db.View(func(tx *bolt.Tx) error {
		for _, composite := range ids {
			typeName, id := splitIdentifier(composite)
			if typeName == "" {
				return errors.Errorf("malformed identifier %q", composite)
			}

			b := tx.Bucket([]byte(typeName))
			if b == nil {
				continue
			}

			data := b.Get(objectKey(s.tenant, id))
			if data == nil {
				continue
			}

			var obj map[string]interface{}
			if err := json.Unmarshal(data, &obj); err != nil {
				return fmt.Errorf("unmarshal object %s/%s: %w", typeName, id, err)
			}

			entities = append(entities, loading.Entity{Type: typeName, ID: id, Object: obj})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entities, nil
}

func (s *entitySession) Close() error {
	return nil
}

func splitIdentifier(composite string) (typeName, id string) {
	parts := strings.SplitN(composite, "/", 2)
	if len(parts) != 2 {
		return "", composite
	}

	return parts[0], parts[1]
}

func objectKey(tenant, id string) []byte {
	if tenant == "" {
		return []byte(id)
	}

	return []byte(tenant + "/" + id)
}

func tenantPrefix(tenant string) []byte {
	if tenant == "" {
		return nil
	}

	return []byte(tenant + "/")
}

func first(c *bolt.Cursor, tenant string) ([]byte, []byte) {
	if p := tenantPrefix(tenant); p != nil {
		return c.Seek(p)
	}

	return c.First()
}

func inTenant(k []byte, tenant string) bool {
	p := tenantPrefix(tenant)
	if p == nil {
		return true
	}

	return bytes.HasPrefix(k, p)
}

func plainID(k []byte, tenant string) string {
	if tenant == "" {
		return string(k)
	}

	return string(k[len(tenant)+1:])
}
