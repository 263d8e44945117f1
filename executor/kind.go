package executor

import (
	"io"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/jvm"
)

// Kind names an executor strategy in configuration.
type Kind string

const (
	KindMain    Kind = "main"
	KindLeaking Kind = "leaking"
	KindDumb    Kind = "dumb"
	KindPool    Kind = "pool"
)

// New builds an executor of the given kind. limit is the attach limit for
// KindLeaking and the worker count for KindPool; it is ignored otherwise.
// The returned closer releases pool workers and is a no-op for other
// kinds.
func New(vm jvm.VM, kind Kind, limit int) (Executor, io.Closer, error) {
	switch kind {
	case KindMain, "":
		return NewMain(vm), nopCloser{}, nil
	case KindLeaking:
		if limit <= 0 {
			return nil, nil, errors.InvalidInput(errors.PhaseConfig, "leaking executor requires a positive attach limit")
		}
		return NewLeaking(vm, limit), nopCloser{}, nil
	case KindDumb:
		return NewDumb(vm), nopCloser{}, nil
	case KindPool:
		if limit <= 0 {
			limit = MainAttachLimit()
		}
		p, err := NewPool(vm, limit)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	default:
		return nil, nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(kind).
			Detail("unknown executor kind %q", kind).
			Build()
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
