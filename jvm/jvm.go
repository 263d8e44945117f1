package jvm

// Object is a reference to a managed object. The zero value is the null
// reference. Local references are valid only on the thread and within the
// local frame that created them; global references are valid everywhere
// until deleted.
type Object uintptr

// Null is the null reference.
const Null Object = 0

// IsNull reports whether o is the null reference.
func (o Object) IsNull() bool { return o == Null }

// Value is an argument or result of a managed call. The dynamic type must
// match the signature descriptor:
//
//	Z bool   B int8    C uint16   S int16
//	I int32  J int64   F float32  D float64
//	L..; and [.. Object (or nil for null)
//	V nil (void results only)
type Value = any

// VM is a managed runtime instance shared by all threads of the process.
type VM interface {
	// GetEnv returns the environment of the calling OS thread, or an error
	// matching ErrThreadDetached when the thread is not attached.
	GetEnv() (Env, error)

	// AttachCurrentThread attaches the calling OS thread. Attaching an
	// already attached thread returns its existing environment.
	AttachCurrentThread() (Env, error)

	// DetachCurrentThread detaches the calling OS thread and releases all
	// of its local references.
	DetachCurrentThread() error
}

// Env is the per-thread interface to the managed runtime. An Env must only
// be used on the OS thread it belongs to.
type Env interface {
	VM() VM

	// Local frames.
	PushLocalFrame(capacity int) error
	PopLocalFrame(result Object) Object
	NewLocalRef(obj Object) Object
	DeleteLocalRef(obj Object)

	// Global references.
	NewGlobalRef(obj Object) Object
	DeleteGlobalRef(obj Object)
	IsSameObject(a, b Object) bool

	// Classes.
	FindClass(name string) (Object, error)
	GetObjectClass(obj Object) (Object, error)
	IsInstanceOf(obj, class Object) bool

	// Objects.
	NewObject(class Object, sig string, args ...Value) (Object, error)
	CallMethod(obj Object, name, sig string, args ...Value) (Value, error)
	CallStaticMethod(class Object, name, sig string, args ...Value) (Value, error)
	GetField(obj Object, name, sig string) (Value, error)
	SetField(obj Object, name, sig string, v Value) error

	// Strings and byte arrays. Contents are always copied across the
	// boundary.
	NewString(s string) (Object, error)
	GetString(obj Object) (string, error)
	NewByteArray(b []byte) (Object, error)
	GetByteArray(obj Object) ([]byte, error)

	// Exceptions.
	Throw(exc Object) error
	ThrowNew(class Object, msg string) error
	ExceptionCheck() bool
	ExceptionOccurred() Object
	ExceptionClear()
}
