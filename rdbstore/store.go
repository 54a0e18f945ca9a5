// Package rdbstore persists solved strategies in a RocksDB database.
// It is functionally equivalent to ldbstore but rides RocksDB's write
// throughput for very large studies.
package rdbstore

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	rocksdb "github.com/tecbot/gorocksdb"

	obscuro "github.com/obscuro-ai/go-obscuro"
)

// Params are the configuration options for a Store.
type Params struct {
	Path         string
	Options      *rocksdb.Options
	ReadOptions  *rocksdb.ReadOptions
	WriteOptions *rocksdb.WriteOptions
}

// DefaultParams returns default RocksDB options for a database at the
// given path.
func DefaultParams(path string) Params {
	opts := rocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	return Params{
		Path:         path,
		Options:      opts,
		ReadOptions:  rocksdb.NewDefaultReadOptions(),
		WriteOptions: rocksdb.NewDefaultWriteOptions(),
	}
}

// Close releases the option structs. It does not close an open Store.
func (p Params) Close() {
	p.Options.Destroy()
	p.ReadOptions.Destroy()
	p.WriteOptions.Destroy()
}

// Store implements obscuro.StrategyStore on top of RocksDB.
type Store struct {
	params Params
	db     *rocksdb.DB
}

// New opens (creating if necessary) a strategy store at params.Path.
func New(params Params) (*Store, error) {
	db, err := rocksdb.OpenDb(params.Options, params.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening rocksdb at %s", params.Path)
	}

	return &Store{params: params, db: db}, nil
}

// Close implements obscuro.StrategyStore.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// PutStrategy implements obscuro.StrategyStore.
func (s *Store) PutStrategy(key string, entry obscuro.SnapshotEntry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return errors.Wrapf(err, "encoding strategy for %q", key)
	}

	if err := s.db.Put(s.params.WriteOptions, []byte(key), buf.Bytes()); err != nil {
		return errors.Wrapf(err, "writing strategy for %q", key)
	}

	glog.V(2).Infof("stored strategy for %q (%d bytes)", key, buf.Len())
	return nil
}

// GetStrategy implements obscuro.StrategyStore.
func (s *Store) GetStrategy(key string) (obscuro.SnapshotEntry, bool, error) {
	buf, err := s.db.Get(s.params.ReadOptions, []byte(key))
	if err != nil {
		return obscuro.SnapshotEntry{}, false, errors.Wrapf(err, "reading strategy for %q", key)
	}
	defer buf.Free()

	if buf.Data() == nil {
		return obscuro.SnapshotEntry{}, false, nil
	}

	var entry obscuro.SnapshotEntry
	if err := gob.NewDecoder(bytes.NewReader(buf.Data())).Decode(&entry); err != nil {
		return obscuro.SnapshotEntry{}, false, errors.Wrapf(err, "decoding strategy for %q", key)
	}

	return entry, true, nil
}
