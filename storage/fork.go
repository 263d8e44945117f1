package storage

import (
	"bytes"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/wippyai/javabinding/errors"
)

// Overlay values carry a one-byte tag so deletions can shadow the base.
const (
	tagDeleted byte = 0
	tagValue   byte = 1
)

// Fork is a mutable view over a database snapshot. Changes accumulate in
// a working set; Flush moves them into the flushed set, which Rollback
// does not touch. IntoPatch turns the flushed changes into a Patch and
// consumes the fork.
//
// A Fork may be read from several goroutines but must not be mutated
// concurrently.
type Fork struct {
	base     *leveldb.Snapshot
	flushed  *memdb.DB
	working  *memdb.DB
	consumed bool
}

var _ Snapshot = (*Fork)(nil)

func (f *Fork) check() {
	if f.consumed {
		panic("fork already released or converted into a patch")
	}
}

// Get returns the value under key as seen by the fork, or ErrNotFound.
func (f *Fork) Get(key []byte) ([]byte, error) {
	f.check()
	for _, layer := range [...]*memdb.DB{f.working, f.flushed} {
		v, err := layer.Get(key)
		if err == nil {
			if v[0] == tagDeleted {
				return nil, ErrNotFound
			}
			return bytes.Clone(v[1:]), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return f.base.Get(key, nil)
}

// Has reports whether key is present in the fork.
func (f *Fork) Has(key []byte) (bool, error) {
	_, err := f.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Iterate implements Snapshot. Keys changed in the fork are merged with
// the base.
func (f *Fork) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	f.check()
	rng := util.BytesPrefix(prefix)

	merged := make(map[string][]byte)
	it := f.base.NewIterator(rng, nil)
	for it.Next() {
		merged[string(it.Key())] = bytes.Clone(it.Value())
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}

	for _, layer := range [...]*memdb.DB{f.flushed, f.working} {
		it := layer.NewIterator(rng)
		for it.Next() {
			v := it.Value()
			if v[0] == tagDeleted {
				delete(merged, string(it.Key()))
			} else {
				merged[string(it.Key())] = bytes.Clone(v[1:])
			}
		}
		it.Release()
		if err := it.Error(); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			break
		}
	}
	return nil
}

// Put stores value under key.
func (f *Fork) Put(key, value []byte) error {
	f.check()
	tagged := make([]byte, 0, len(value)+1)
	tagged = append(tagged, tagValue)
	tagged = append(tagged, value...)
	return f.working.Put(key, tagged)
}

// Delete removes key.
func (f *Fork) Delete(key []byte) error {
	f.check()
	return f.working.Put(key, []byte{tagDeleted})
}

// Flush makes the current changes survive a later Rollback.
func (f *Fork) Flush() {
	f.check()
	it := f.working.NewIterator(nil)
	defer it.Release()
	for it.Next() {
		// memdb copies key and value on Put.
		if err := f.flushed.Put(it.Key(), it.Value()); err != nil {
			panic(errors.Storage("failed to flush fork", err))
		}
	}
	f.working.Reset()
}

// Rollback discards the changes made since the last Flush, or all changes
// if Flush was never called.
func (f *Fork) Rollback() {
	f.check()
	f.working.Reset()
}

// Changes returns the number of keys changed in the fork.
func (f *Fork) Changes() int {
	f.check()
	n := f.flushed.Len()
	it := f.working.NewIterator(nil)
	defer it.Release()
	for it.Next() {
		if !f.flushed.Contains(it.Key()) {
			n++
		}
	}
	return n
}

// IntoPatch flushes the fork and converts its changes into a patch. The
// fork cannot be used afterwards.
func (f *Fork) IntoPatch() *Patch {
	f.Flush()

	batch := new(leveldb.Batch)
	it := f.flushed.NewIterator(nil)
	for it.Next() {
		v := it.Value()
		if v[0] == tagDeleted {
			batch.Delete(it.Key())
		} else {
			batch.Put(it.Key(), v[1:])
		}
	}
	it.Release()

	f.release()
	return &Patch{batch: batch}
}

// Release frees the snapshot the fork is based on. The fork cannot be
// used afterwards.
func (f *Fork) Release() {
	if f.consumed {
		return
	}
	f.release()
}

func (f *Fork) release() {
	f.consumed = true
	f.base.Release()
	f.flushed.Reset()
	f.working.Reset()
}

// Patch is an immutable set of changes ready to be merged into a DB.
type Patch struct {
	batch *leveldb.Batch
}

// Len returns the number of changes in the patch.
func (p *Patch) Len() int {
	return p.batch.Len()
}

// Replay calls put or del for every change in key order.
func (p *Patch) Replay(put func(key, value []byte), del func(key []byte)) error {
	return p.batch.Replay(replay{put: put, del: del})
}

type replay struct {
	put func(key, value []byte)
	del func(key []byte)
}

func (r replay) Put(key, value []byte) { r.put(key, value) }
func (r replay) Delete(key []byte)     { r.del(key) }
