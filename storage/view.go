package storage

import "fmt"

type variant uint8

const (
	ownedSnapshot variant = iota + 1
	ownedFork
	refSnapshot
	refFork
	refMutFork
)

func (v variant) String() string {
	switch v {
	case ownedSnapshot:
		return "OwnedSnapshot"
	case ownedFork:
		return "OwnedFork"
	case refSnapshot:
		return "RefSnapshot"
	case refFork:
		return "RefFork"
	case refMutFork:
		return "RefMutFork"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// View wraps a Snapshot or a Fork so that it can be handed to the managed
// side. Owned views release what they wrap when dropped. Borrowed views
// (the Ref constructors) do not, and must not outlive the call that
// created them; managed code must never keep their handles beyond the
// method invocation.
type View struct {
	snapshot Snapshot
	fork     *Fork
	variant  variant
	consumed bool
}

// FromOwnedSnapshot creates a view that owns s.
func FromOwnedSnapshot(s Snapshot) *View {
	return &View{variant: ownedSnapshot, snapshot: s}
}

// FromOwnedFork creates a view that owns f.
func FromOwnedFork(f *Fork) *View {
	return &View{variant: ownedFork, fork: f}
}

// FromRefSnapshot creates a view borrowing s.
func FromRefSnapshot(s Snapshot) *View {
	return &View{variant: refSnapshot, snapshot: s}
}

// FromRefFork creates a view borrowing f. Indexes over it may write, but
// checkpoints and rollbacks are not available.
func FromRefFork(f *Fork) *View {
	return &View{variant: refFork, fork: f}
}

// FromRefMutFork creates a view borrowing f with checkpoints and
// rollbacks available.
func FromRefMutFork(f *Fork) *View {
	return &View{variant: refMutFork, fork: f}
}

// String returns the variant name.
func (v *View) String() string {
	return v.variant.String()
}

func (v *View) check() {
	if v.consumed {
		panic(fmt.Sprintf("View %v was converted into a fork", v.variant))
	}
}

// Get returns a reference to the underlying snapshot or fork.
func (v *View) Get() ViewRef {
	v.check()
	switch v.variant {
	case ownedFork, refFork, refMutFork:
		return ViewRef{kind: RefFork, fork: v.fork}
	default:
		return ViewRef{kind: RefSnapshot, snapshot: v.snapshot}
	}
}

// CanConvertIntoFork reports whether IntoFork is possible.
func (v *View) CanConvertIntoFork() bool {
	return v.variant == ownedFork && !v.consumed
}

// IntoFork unwraps the owned fork. The view is consumed and dropping it
// afterwards releases nothing.
func (v *View) IntoFork() *Fork {
	if !v.CanConvertIntoFork() {
		panic(fmt.Sprintf("`IntoFork` called on non-owning View or Snapshot: %v", v))
	}
	v.consumed = true
	f := v.fork
	v.fork = nil
	return f
}

// CanRollback reports whether CreateCheckpoint and Rollback are available.
func (v *View) CanRollback() bool {
	return (v.variant == ownedFork || v.variant == refMutFork) && !v.consumed
}

// CreateCheckpoint flushes the fork so later rollbacks return to this
// state.
func (v *View) CreateCheckpoint() {
	if !v.CanRollback() {
		panic(fmt.Sprintf("Cannot create checkpoint because this View does not support it: %v", v))
	}
	v.fork.Flush()
}

// Rollback discards changes made since the latest checkpoint, or all
// changes when no checkpoint was created. The database is not affected.
func (v *View) Rollback() {
	if !v.CanRollback() {
		panic(fmt.Sprintf("Cannot rollback because this View does not support it: %v", v))
	}
	v.fork.Rollback()
}

// Drop releases owned snapshots and forks. Borrowed views release
// nothing.
func (v *View) Drop() {
	if v.consumed {
		return
	}
	switch v.variant {
	case ownedSnapshot:
		v.snapshot.Release()
	case ownedFork:
		v.fork.Release()
	}
	v.consumed = true
}

// RefKind tells a snapshot reference from a fork reference.
type RefKind uint8

const (
	RefSnapshot RefKind = iota + 1
	RefFork
)

func (k RefKind) String() string {
	switch k {
	case RefSnapshot:
		return "Snapshot"
	case RefFork:
		return "Fork"
	default:
		return fmt.Sprintf("RefKind(%d)", uint8(k))
	}
}

// ViewRef is a short-lived reference to the storage behind a View. It is
// cheap to copy.
type ViewRef struct {
	snapshot Snapshot
	fork     *Fork
	kind     RefKind
}

// SnapshotRef returns a ViewRef for reading s.
func SnapshotRef(s Snapshot) ViewRef {
	return ViewRef{kind: RefSnapshot, snapshot: s}
}

// ForkRef returns a ViewRef for reading and writing f.
func ForkRef(f *Fork) ViewRef {
	return ViewRef{kind: RefFork, fork: f}
}

// Kind returns whether the reference is to a snapshot or a fork.
func (r ViewRef) Kind() RefKind { return r.kind }

// Snapshot returns the readable storage. For a fork this is the fork
// itself, so reads see its changes.
func (r ViewRef) Snapshot() Snapshot {
	if r.kind == RefFork {
		return r.fork
	}
	return r.snapshot
}

// Fork returns the fork for a fork reference.
func (r ViewRef) Fork() (*Fork, bool) {
	return r.fork, r.kind == RefFork
}
