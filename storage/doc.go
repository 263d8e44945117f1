// Package storage implements the database layer exposed to the managed
// runtime.
//
// A DB is backed by goleveldb. Reads go through a Snapshot; writes go to a
// Fork, which layers in-memory changes over a snapshot and is converted
// into a Patch to be merged atomically:
//
//	fork, _ := db.Fork()
//	entry, _ := storage.NewEntry("balance", storage.ForkRef(fork))
//	_ = entry.Set(value)
//	_ = db.Merge(fork.IntoPatch())
//
// A View wraps a snapshot or fork for handing over to managed code. Owned
// views release what they wrap on Drop; borrowed views are only valid for
// the duration of the call that created them. Only owned fork views can be
// converted back into a fork, and only owned or mutably borrowed fork
// views support checkpoints.
//
// Entry, MapIndex and ListIndex are named indexes over a ViewRef. Writes
// through a snapshot-backed index panic.
package storage
