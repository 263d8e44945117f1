package storage

import (
	"bytes"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/wippyai/javabinding/errors"
)

// openFileLimit is the limit for LevelDB OpenFilesCacheCapacity.
const openFileLimit = 128

// ErrNotFound is returned by Snapshot.Get for missing keys.
var ErrNotFound = leveldb.ErrNotFound

// DB is a key-value database. Reads go through snapshots and writes
// through forks, which are merged back as patches.
type DB struct {
	ldb    *leveldb.DB
	path   string
	closed atomic.Bool
}

// NewTemporaryDB creates an empty in-memory database.
func NewTemporaryDB() (*DB, error) {
	ldb, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Storage("failed to create temporary database", err)
	}
	return &DB{ldb: ldb}, nil
}

// Open opens or creates a database at path.
func Open(path string) (*DB, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: openFileLimit,
	})
	if err != nil {
		return nil, errors.Storage("failed to open database at "+path, err)
	}
	Logger().Info("database opened", zap.String("path", path))
	return &DB{ldb: ldb, path: path}, nil
}

// Snapshot returns a read-only view of the current state. The caller
// releases it.
func (db *DB) Snapshot() (Snapshot, error) {
	s, err := db.ldb.GetSnapshot()
	if err != nil {
		return nil, errors.Storage("failed to create snapshot", err)
	}
	return &snapshot{snap: s}, nil
}

// Fork returns a fork of the current state. Changes made to the fork are
// invisible to the database until merged as a patch.
func (db *DB) Fork() (*Fork, error) {
	s, err := db.ldb.GetSnapshot()
	if err != nil {
		return nil, errors.Storage("failed to create fork", err)
	}
	return &Fork{
		base:    s,
		flushed: memdb.New(comparer.DefaultComparer, 0),
		working: memdb.New(comparer.DefaultComparer, 0),
	}, nil
}

// Merge atomically applies a patch.
func (db *DB) Merge(p *Patch) error {
	if err := db.ldb.Write(p.batch, nil); err != nil {
		return errors.Storage("failed to merge patch", err)
	}
	return nil
}

// Close closes the database. It is safe to call more than once.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return db.ldb.Close()
}

// Drop closes the database when its handle is freed.
func (db *DB) Drop() {
	if err := db.Close(); err != nil {
		Logger().Error("failed to close database", zap.String("path", db.path), zap.Error(err))
	}
}

// Snapshot is an immutable view of the database state.
type Snapshot interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// Iterate calls fn for every key with the given prefix in key order
	// until fn returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	// Release frees the resources held by the snapshot.
	Release()
}

type snapshot struct {
	snap *leveldb.Snapshot
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	return s.snap.Get(key, nil)
}

func (s *snapshot) Has(key []byte) (bool, error) {
	return s.snap.Has(key, nil)
}

func (s *snapshot) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	it := s.snap.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if !fn(bytes.Clone(it.Key()), bytes.Clone(it.Value())) {
			break
		}
	}
	return it.Error()
}

func (s *snapshot) Release() {
	s.snap.Release()
}
