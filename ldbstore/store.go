// Package ldbstore persists solved strategies in a LevelDB database,
// rather than in memory. Lookups are substantially slower than the
// in-memory snapshot but scale to studies that do not fit in memory.
package ldbstore

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	obscuro "github.com/obscuro-ai/go-obscuro"
)

// Params are the configuration options for a Store.
type Params struct {
	Path         string
	Options      *opt.Options
	ReadOptions  *opt.ReadOptions
	WriteOptions *opt.WriteOptions
}

// DefaultParams returns default options for a database at the given
// path.
func DefaultParams(path string) Params {
	return Params{Path: path}
}

// Store implements obscuro.StrategyStore on top of LevelDB.
type Store struct {
	params Params
	db     *leveldb.DB
}

// New opens (creating if necessary) a strategy store at params.Path.
func New(params Params) (*Store, error) {
	db, err := leveldb.OpenFile(params.Path, params.Options)
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %s", params.Path)
	}

	return &Store{params: params, db: db}, nil
}

// Close implements obscuro.StrategyStore.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutStrategy implements obscuro.StrategyStore.
func (s *Store) PutStrategy(key string, entry obscuro.SnapshotEntry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return errors.Wrapf(err, "encoding strategy for %q", key)
	}

	if err := s.db.Put([]byte(key), buf.Bytes(), s.params.WriteOptions); err != nil {
		return errors.Wrapf(err, "writing strategy for %q", key)
	}

	glog.V(2).Infof("stored strategy for %q (%d bytes)", key, buf.Len())
	return nil
}

// GetStrategy implements obscuro.StrategyStore.
func (s *Store) GetStrategy(key string) (obscuro.SnapshotEntry, bool, error) {
	buf, err := s.db.Get([]byte(key), s.params.ReadOptions)
	if err == leveldb.ErrNotFound {
		return obscuro.SnapshotEntry{}, false, nil
	} else if err != nil {
		return obscuro.SnapshotEntry{}, false, errors.Wrapf(err, "reading strategy for %q", key)
	}

	var entry obscuro.SnapshotEntry
	if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&entry); err != nil {
		return obscuro.SnapshotEntry{}, false, errors.Wrapf(err, "decoding strategy for %q", key)
	}

	return entry, true, nil
}
