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
	"os"
	"path"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "obj/"

// Store keeps the source objects in a pebble database under keys of the
// form "obj/<type>/<tenant>/<id>", msgpack-encoded. Objects without a
// tenant live under the empty tenant segment.
type Store struct {
	homeDir string
	logger  logrus.FieldLogger
	db      *pebble.DB
}

// NewStore returns a new object store rooted at homeDir. Call Open before
// use and Close to free the resources.
func NewStore(homeDir string, logger logrus.FieldLogger) *Store {
	return &Store{
		homeDir: homeDir,
		logger:  logger.WithField("component", "pebblestore"),
	}
}

func (s *Store) Open() error {
	if err := os.MkdirAll(s.homeDir, 0o777); err != nil {
		return errors.Wrapf(err, "create root directory %q", s.homeDir)
	}

	dbPath := path.Join(s.homeDir, "objects")
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return errors.Wrapf(err, "open %q", dbPath)
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
	data, err := msgpack.Marshal(obj)
	if err != nil {
		return errors.Wrapf(err, "marshal object %s/%s", typeName, id)
	}

	key := objectKey(typeName, tenant, id)
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return errors.Wrapf(err, "put object %s/%s", typeName, id)
	}

	return nil
}

func (s *Store) GetObject(typeName, tenant, id string) (map[string]interface{}, bool, error) {
	v, closer, err := s.db.Get(objectKey(typeName, tenant, id))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get object %s/%s", typeName, id)
	}

	data := append([]byte(nil), v...)
	closer.Close()

	var obj map[string]interface{}
	if err := msgpack.Unmarshal(data, &obj); err != nil {
		return nil, false, errors.Wrapf(err, "unmarshal object %s/%s", typeName, id)
	}

	return obj, true, nil
}

func (s *Store) DeleteObject(typeName, tenant, id string) error {
	if err := s.db.Delete(objectKey(typeName, tenant, id), pebble.Sync); err != nil {
		return errors.Wrapf(err, "delete object %s/%s", typeName, id)
	}

	return nil
}

// CountObjects returns the number of objects of a type within one tenant
// segment.
func (s *Store) CountObjects(typeName, tenant string) (int64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "create iterator")
	}
	defer iter.Close()

	var count int64
	prefix := objectPrefix(typeName, tenant)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}

		count++
	}

	return count, nil
}

// Types returns the distinct stored type names in key order.
func (s *Store) Types() ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "create iterator")
	}
	defer iter.Close()

	var types []string
	prefix := []byte(keyPrefix)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}

		rest := string(key[len(prefix):])
		typeName, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}

		if len(types) == 0 || types[len(types)-1] != typeName {
			types = append(types, typeName)
		}
	}

	return types, nil
}

func objectKey(typeName, tenant, id string) []byte {
	return []byte(keyPrefix + typeName + "/" + tenant + "/" + id)
}

func objectPrefix(typeName, tenant string) []byte {
	return []byte(keyPrefix + typeName + "/" + tenant + "/")
}
