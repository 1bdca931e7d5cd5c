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
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// Store keeps the source objects in a single bolt file, one bucket per
// type. Keys are "<tenant>/<id>" for tenanted objects and the plain id
// otherwise, so a tenant's objects form one contiguous key range.
type Store struct {
	homeDir string
	logger  logrus.FieldLogger
	db      *bolt.DB
}

// NewStore returns a new object store rooted at homeDir. Call Open before
// use and Close to free the resources.
func NewStore(homeDir string, logger logrus.FieldLogger) *Store {
	return &Store{
		homeDir: homeDir,
		logger:  logger.WithField("component", "boltstore"),
	}
}

func (s *Store) Open() error {
	if err := os.MkdirAll(s.homeDir, 0o777); err != nil {
		return fmt.Errorf("create root directory %q: %w", s.homeDir, err)
	}

	filePath := path.Join(s.homeDir, "objects.db")
	db, err := bolt.Open(filePath, 0o600, nil)
	if err != nil {
		return fmt.Errorf("open %q: %w", filePath, err)
	}

	s.db = db
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Store) PutObject(typeName, tenant, id string, obj map[string]interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal object %s/%s: %w", typeName, id, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(typeName))
		if err != nil {
			return fmt.Errorf("create bucket %q: %w", typeName, err)
		}

		return b.Put(objectKey(tenant, id), data)
	})
}

func (s *Store) GetObject(typeName, tenant, id string) (map[string]interface{}, bool, error) {
	var obj map[string]interface{}
	found := false

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(typeName))
		if b == nil {
			return nil
		}

		data := b.Get(objectKey(tenant, id))
		if data == nil {
			return nil
		}

		found = true
		return json.Unmarshal(data, &obj)
	})
	if err != nil {
		return nil, false, fmt.Errorf("get object %s/%s: %w", typeName, id, err)
	}

	return obj, found, nil
}

func (s *Store) DeleteObject(typeName, tenant, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(typeName))
		if b == nil {
			return nil
		}

		return b.Delete(objectKey(tenant, id))
	})
}

// CountObjects returns the number of objects of a type, optionally scoped
// to one tenant.
func (s *Store) CountObjects(typeName, tenant string) (int64, error) {
	var count int64

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(typeName))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		for k, _ := first(c, tenant); k != nil && inTenant(k, tenant); k, _ = c.Next() {
			count++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count objects of %q: %w", typeName, err)
	}

	return count, nil
}

// Types returns the names of all stored types in key order.
func (s *Store) Types() ([]string, error) {
	var types []string

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			types = append(types, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}

	return types, nil
}
