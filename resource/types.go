package resource

import (
	"fmt"
	"reflect"
)

// Handle is an opaque reference to a native value held by a Registry.
// Handle 0 is reserved and always invalid.
type Handle int64

// Ownership describes which side is responsible for destroying a resource.
type Ownership uint8

const (
	// JavaOwned resources live until the managed side asks for destruction.
	JavaOwned Ownership = iota + 1
	// NativeOwned resources are valid only while the native frame that
	// created them is active.
	NativeOwned
	// AnyOwnership disables the ownership check in Validate.
	AnyOwnership
)

func (o Ownership) String() string {
	switch o {
	case JavaOwned:
		return "JavaOwned"
	case NativeOwned:
		return "NativeOwned"
	case AnyOwnership:
		return "Any"
	default:
		return fmt.Sprintf("Ownership(%d)", uint8(o))
	}
}

// EventType identifies a registry lifecycle notification.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventUnregistered
)

func (t EventType) String() string {
	if t == EventRegistered {
		return "registered"
	}
	return "unregistered"
}

// Event represents a resource lifecycle event.
type Event struct {
	Value     any
	Type      reflect.Type
	Handle    Handle
	Ownership Ownership
	Kind      EventType
}

// Observer receives notifications about resource lifecycle events.
// Observers are called synchronously outside registry locks.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by resource values that need cleanup.
type Dropper interface {
	Drop()
}

// Violation is the panic value raised when the handle protocol is broken:
// an unknown handle, a double registration, a type or ownership mismatch.
// These are programming errors and are never returned as errors.
type Violation struct {
	Message string
	Handle  Handle
}

func (v *Violation) Error() string {
	return v.Message
}

func violate(h Handle, format string, args ...any) {
	panic(&Violation{Handle: h, Message: fmt.Sprintf(format, args...)})
}
