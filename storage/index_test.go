package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/javabinding/errors"
)

func TestIndex_Names(t *testing.T) {
	db := newDB(t)
	fork, err := db.Fork()
	require.NoError(t, err)
	defer fork.Release()

	_, err = NewEntry("", ForkRef(fork))
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput, Phase: errors.PhaseView})
	_, err = NewMapIndex("a\x00b", ForkRef(fork))
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput})

	// Same name, different kinds: no collision.
	entry, err := NewEntry("shared", ForkRef(fork))
	require.NoError(t, err)
	m, err := NewMapIndex("shared", ForkRef(fork))
	require.NoError(t, err)
	require.NoError(t, entry.Set([]byte("entry")))
	require.NoError(t, m.Put([]byte{}, []byte("map")))
	v, err := entry.Get()
	require.NoError(t, err)
	assert.Equal(t, []byte("entry"), v)
	assert.Equal(t, "shared", m.Name())
}

func TestEntry(t *testing.T) {
	db := newDB(t)
	fork, err := db.Fork()
	require.NoError(t, err)
	defer fork.Release()

	e, err := NewEntry("e", ForkRef(fork))
	require.NoError(t, err)

	v, err := e.Get()
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, e.Set([]byte("x")))
	ok, err := e.IsPresent()
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, e.Remove())
	ok, err = e.IsPresent()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMapIndex(t *testing.T) {
	db := newDB(t)
	fork, err := db.Fork()
	require.NoError(t, err)
	defer fork.Release()

	m, err := NewMapIndex("m", ForkRef(fork))
	require.NoError(t, err)
	other, err := NewMapIndex("m2", ForkRef(fork))
	require.NoError(t, err)
	require.NoError(t, other.Put([]byte("z"), []byte("other")))

	require.NoError(t, m.Put([]byte("b"), []byte("2")))
	require.NoError(t, m.Put([]byte("a"), []byte("1")))

	v, err := m.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	v, err = m.Get([]byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)

	keys, err := m.Keys()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, keys)

	require.NoError(t, m.Remove([]byte("a")))
	ok, err := m.ContainsKey([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Clear())
	keys, err = m.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	ok, err = other.ContainsKey([]byte("z"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListIndex(t *testing.T) {
	db := newDB(t)
	fork, err := db.Fork()
	require.NoError(t, err)
	defer fork.Release()

	l, err := NewListIndex("l", ForkRef(fork))
	require.NoError(t, err)
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, l.Add([]byte(s)))
	}

	size, err := l.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), size)

	require.NoError(t, l.Set(1, []byte("B")))
	v, err := l.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("B"), v)

	_, err = l.Get(3)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput, Phase: errors.PhaseView})
	assert.ErrorIs(t, l.Set(5, nil), &errors.Error{Kind: errors.KindInvalidInput})

	require.NoError(t, l.Truncate(1))
	size, err = l.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), size)
	require.NoError(t, l.Truncate(10))

	require.NoError(t, l.Clear())
	size, err = l.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestListIndex_CorruptedLength(t *testing.T) {
	db := newDB(t)
	fork, err := db.Fork()
	require.NoError(t, err)
	defer fork.Release()

	l, err := NewListIndex("l", ForkRef(fork))
	require.NoError(t, err)
	require.NoError(t, l.Add([]byte("a")))
	require.NoError(t, fork.Put(l.lengthKey(), []byte{1, 2, 3}))

	_, err = l.Size()
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidData, Phase: errors.PhaseView})
	assert.EqualError(t, err, `[view] invalid_data: corrupted length of list "l"`)
	assert.Error(t, l.Add([]byte("b")))
}

func TestIndex_SnapshotIsReadOnly(t *testing.T) {
	db := newDB(t)
	snap, err := db.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	e, err := NewEntry("e", SnapshotRef(snap))
	require.NoError(t, err)
	m, err := NewMapIndex("m", SnapshotRef(snap))
	require.NoError(t, err)
	l, err := NewListIndex("l", SnapshotRef(snap))
	require.NoError(t, err)

	const msg = "Unable to modify snapshot."
	assert.PanicsWithValue(t, msg, func() { _ = e.Set(nil) })
	assert.PanicsWithValue(t, msg, func() { _ = e.Remove() })
	assert.PanicsWithValue(t, msg, func() { _ = m.Put(nil, nil) })
	assert.PanicsWithValue(t, msg, func() { _ = m.Clear() })
	assert.PanicsWithValue(t, msg, func() { _ = l.Add(nil) })
	assert.PanicsWithValue(t, msg, func() { _ = l.Truncate(0) })

	size, err := l.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}
