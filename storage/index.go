package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/wippyai/javabinding/errors"
)

// Key prefixes of the index kinds, so that indexes of different kinds
// with the same name do not collide.
const (
	kindEntry byte = 'e'
	kindMap   byte = 'm'
	kindList  byte = 'l'
)

const (
	listLengthTag byte = 0
	listItemTag   byte = 1
)

// index is the common part of all indexes: a name-derived key prefix and
// the view it operates on.
type index struct {
	view   ViewRef
	prefix []byte
	name   string
}

func newIndex(kind byte, name string, view ViewRef) (index, error) {
	if name == "" {
		return index{}, errors.InvalidInput(errors.PhaseView, "index name must not be empty")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return index{}, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Value(name).
			Detail("index name %q contains a NUL byte", name).
			Build()
	}
	prefix := make([]byte, 0, len(name)+2)
	prefix = append(prefix, kind)
	prefix = append(prefix, name...)
	prefix = append(prefix, 0)
	return index{view: view, prefix: prefix, name: name}, nil
}

// Name returns the index name.
func (i *index) Name() string { return i.name }

func (i *index) key(suffix ...[]byte) []byte {
	k := bytes.Clone(i.prefix)
	for _, s := range suffix {
		k = append(k, s...)
	}
	return k
}

// fork returns the fork to write to. Writing through a snapshot is a
// protocol violation.
func (i *index) fork() *Fork {
	f, ok := i.view.Fork()
	if !ok {
		panic("Unable to modify snapshot.")
	}
	return f
}

// get returns nil without error for missing keys.
func (i *index) get(key []byte) ([]byte, error) {
	v, err := i.view.Snapshot().Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (i *index) has(key []byte) (bool, error) {
	return i.view.Snapshot().Has(key)
}

// Entry is an index holding at most one value.
type Entry struct {
	index
}

// NewEntry returns the entry with the given name.
func NewEntry(name string, view ViewRef) (*Entry, error) {
	idx, err := newIndex(kindEntry, name, view)
	if err != nil {
		return nil, err
	}
	return &Entry{idx}, nil
}

// Get returns the value, or nil if the entry is empty.
func (e *Entry) Get() ([]byte, error) { return e.get(e.key()) }

// IsPresent reports whether the entry holds a value.
func (e *Entry) IsPresent() (bool, error) { return e.has(e.key()) }

// Set stores v.
func (e *Entry) Set(v []byte) error { return e.fork().Put(e.key(), v) }

// Remove empties the entry.
func (e *Entry) Remove() error { return e.fork().Delete(e.key()) }

// MapIndex maps byte keys to byte values.
type MapIndex struct {
	index
}

// NewMapIndex returns the map index with the given name.
func NewMapIndex(name string, view ViewRef) (*MapIndex, error) {
	idx, err := newIndex(kindMap, name, view)
	if err != nil {
		return nil, err
	}
	return &MapIndex{idx}, nil
}

// Get returns the value under key, or nil.
func (m *MapIndex) Get(key []byte) ([]byte, error) { return m.get(m.key(key)) }

// ContainsKey reports whether key is present.
func (m *MapIndex) ContainsKey(key []byte) (bool, error) { return m.has(m.key(key)) }

// Put stores value under key.
func (m *MapIndex) Put(key, value []byte) error { return m.fork().Put(m.key(key), value) }

// Remove deletes key.
func (m *MapIndex) Remove(key []byte) error { return m.fork().Delete(m.key(key)) }

// Keys returns all keys in order.
func (m *MapIndex) Keys() ([][]byte, error) {
	var keys [][]byte
	err := m.view.Snapshot().Iterate(m.prefix, func(k, _ []byte) bool {
		keys = append(keys, k[len(m.prefix):])
		return true
	})
	return keys, err
}

// Clear removes all keys.
func (m *MapIndex) Clear() error {
	f := m.fork()
	keys, err := m.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := f.Delete(m.key(k)); err != nil {
			return err
		}
	}
	return nil
}

// ListIndex is an append-only list with random access by position.
type ListIndex struct {
	index
}

// NewListIndex returns the list index with the given name.
func NewListIndex(name string, view ViewRef) (*ListIndex, error) {
	idx, err := newIndex(kindList, name, view)
	if err != nil {
		return nil, err
	}
	return &ListIndex{idx}, nil
}

func (l *ListIndex) lengthKey() []byte {
	return l.key([]byte{listLengthTag})
}

func (l *ListIndex) itemKey(i uint64) []byte {
	var pos [9]byte
	pos[0] = listItemTag
	binary.BigEndian.PutUint64(pos[1:], i)
	return l.key(pos[:])
}

// Size returns the number of items.
func (l *ListIndex) Size() (uint64, error) {
	v, err := l.get(l.lengthKey())
	if err != nil || v == nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, errors.InvalidData(errors.PhaseView, fmt.Sprintf("corrupted length of list %q", l.name))
	}
	return binary.BigEndian.Uint64(v), nil
}

func (l *ListIndex) setSize(f *Fork, n uint64) error {
	if n == 0 {
		return f.Delete(l.lengthKey())
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return f.Put(l.lengthKey(), buf[:])
}

func (l *ListIndex) checkBounds(i, size uint64) error {
	if i >= size {
		return errors.New(errors.PhaseView, errors.KindInvalidInput).
			Value(i).
			Detail("index %d is out of bounds of list %q with size %d", i, l.name, size).
			Build()
	}
	return nil
}

// Get returns the item at position i.
func (l *ListIndex) Get(i uint64) ([]byte, error) {
	size, err := l.Size()
	if err != nil {
		return nil, err
	}
	if err := l.checkBounds(i, size); err != nil {
		return nil, err
	}
	return l.get(l.itemKey(i))
}

// Add appends v.
func (l *ListIndex) Add(v []byte) error {
	f := l.fork()
	size, err := l.Size()
	if err != nil {
		return err
	}
	if err := f.Put(l.itemKey(size), v); err != nil {
		return err
	}
	return l.setSize(f, size+1)
}

// Set replaces the item at position i.
func (l *ListIndex) Set(i uint64, v []byte) error {
	f := l.fork()
	size, err := l.Size()
	if err != nil {
		return err
	}
	if err := l.checkBounds(i, size); err != nil {
		return err
	}
	return f.Put(l.itemKey(i), v)
}

// Truncate shortens the list to at most n items.
func (l *ListIndex) Truncate(n uint64) error {
	f := l.fork()
	size, err := l.Size()
	if err != nil {
		return err
	}
	for i := n; i < size; i++ {
		if err := f.Delete(l.itemKey(i)); err != nil {
			return err
		}
	}
	if n < size {
		return l.setSize(f, n)
	}
	return nil
}

// Clear removes all items.
func (l *ListIndex) Clear() error {
	return l.Truncate(0)
}
