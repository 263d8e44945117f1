package bindings

import (
	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/exceptions"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/resource"
	"github.com/wippyai/javabinding/storage"
)

func void(err error) (struct{}, error) { return struct{}{}, err }

// newIndex creates an index over the view behind viewHandle and returns its
// handle. The index must not outlive the view.
func newIndex[T any](b *Bridge, env jvm.Env, name jvm.Object, viewHandle int64,
	create func(string, storage.ViewRef) (T, error),
) (int64, error) {
	n, err := stringArg(env, name, "name")
	if err != nil {
		return 0, err
	}
	view := resource.CastHandle[*storage.View](b.registry, handle(viewHandle))
	idx, err := create(n, view.Get())
	if err != nil {
		return 0, err
	}
	return int64(resource.ToHandle(b.registry, idx)), nil
}

func position(i int64) (uint64, error) {
	if i < 0 {
		return 0, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Value(i).
			Detail("index must not be negative: %d", i).
			Build()
	}
	return uint64(i), nil
}

// EntryIndexProxyNativeCreate creates an entry named name over a view.
func (b *Bridge) EntryIndexProxyNativeCreate(env jvm.Env, name jvm.Object, viewHandle int64) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		return newIndex(b, env, name, viewHandle, storage.NewEntry)
	})
}

// EntryIndexProxyNativeGet returns the value, or null for an empty entry.
func (b *Bridge) EntryIndexProxyNativeGet(env jvm.Env, entryHandle int64) jvm.Object {
	return exceptions.Catch(env, jvm.Null, func() (jvm.Object, error) {
		v, err := resource.CastHandle[*storage.Entry](b.registry, handle(entryHandle)).Get()
		if err != nil {
			return jvm.Null, err
		}
		return bytesResult(env, v)
	})
}

func (b *Bridge) EntryIndexProxyNativeIsPresent(env jvm.Env, entryHandle int64) bool {
	return exceptions.CatchDefault(env, func() (bool, error) {
		return resource.CastHandle[*storage.Entry](b.registry, handle(entryHandle)).IsPresent()
	})
}

func (b *Bridge) EntryIndexProxyNativeSet(env jvm.Env, entryHandle int64, value jvm.Object) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		entry := resource.CastHandle[*storage.Entry](b.registry, handle(entryHandle))
		v, err := bytesArg(env, value, "value")
		if err != nil {
			return void(err)
		}
		return void(entry.Set(v))
	})
}

func (b *Bridge) EntryIndexProxyNativeRemove(env jvm.Env, entryHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		return void(resource.CastHandle[*storage.Entry](b.registry, handle(entryHandle)).Remove())
	})
}

func (b *Bridge) EntryIndexProxyNativeFree(env jvm.Env, entryHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		resource.DropHandle[*storage.Entry](b.registry, handle(entryHandle))
		return void(nil)
	})
}

// MapIndexProxyNativeCreate creates a map index named name over a view.
func (b *Bridge) MapIndexProxyNativeCreate(env jvm.Env, name jvm.Object, viewHandle int64) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		return newIndex(b, env, name, viewHandle, storage.NewMapIndex)
	})
}

func (b *Bridge) MapIndexProxyNativeGet(env jvm.Env, mapHandle int64, key jvm.Object) jvm.Object {
	return exceptions.Catch(env, jvm.Null, func() (jvm.Object, error) {
		m := resource.CastHandle[*storage.MapIndex](b.registry, handle(mapHandle))
		k, err := bytesArg(env, key, "key")
		if err != nil {
			return jvm.Null, err
		}
		v, err := m.Get(k)
		if err != nil {
			return jvm.Null, err
		}
		return bytesResult(env, v)
	})
}

func (b *Bridge) MapIndexProxyNativeContainsKey(env jvm.Env, mapHandle int64, key jvm.Object) bool {
	return exceptions.CatchDefault(env, func() (bool, error) {
		m := resource.CastHandle[*storage.MapIndex](b.registry, handle(mapHandle))
		k, err := bytesArg(env, key, "key")
		if err != nil {
			return false, err
		}
		return m.ContainsKey(k)
	})
}

func (b *Bridge) MapIndexProxyNativePut(env jvm.Env, mapHandle int64, key, value jvm.Object) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		m := resource.CastHandle[*storage.MapIndex](b.registry, handle(mapHandle))
		k, err := bytesArg(env, key, "key")
		if err != nil {
			return void(err)
		}
		v, err := bytesArg(env, value, "value")
		if err != nil {
			return void(err)
		}
		return void(m.Put(k, v))
	})
}

func (b *Bridge) MapIndexProxyNativeRemove(env jvm.Env, mapHandle int64, key jvm.Object) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		m := resource.CastHandle[*storage.MapIndex](b.registry, handle(mapHandle))
		k, err := bytesArg(env, key, "key")
		if err != nil {
			return void(err)
		}
		return void(m.Remove(k))
	})
}

// MapIndexProxyNativeSize returns the number of keys in the map.
func (b *Bridge) MapIndexProxyNativeSize(env jvm.Env, mapHandle int64) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		keys, err := resource.CastHandle[*storage.MapIndex](b.registry, handle(mapHandle)).Keys()
		return int64(len(keys)), err
	})
}

func (b *Bridge) MapIndexProxyNativeClear(env jvm.Env, mapHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		return void(resource.CastHandle[*storage.MapIndex](b.registry, handle(mapHandle)).Clear())
	})
}

func (b *Bridge) MapIndexProxyNativeFree(env jvm.Env, mapHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		resource.DropHandle[*storage.MapIndex](b.registry, handle(mapHandle))
		return void(nil)
	})
}

// ListIndexProxyNativeCreate creates a list index named name over a view.
func (b *Bridge) ListIndexProxyNativeCreate(env jvm.Env, name jvm.Object, viewHandle int64) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		return newIndex(b, env, name, viewHandle, storage.NewListIndex)
	})
}

func (b *Bridge) ListIndexProxyNativeGet(env jvm.Env, listHandle int64, index int64) jvm.Object {
	return exceptions.Catch(env, jvm.Null, func() (jvm.Object, error) {
		l := resource.CastHandle[*storage.ListIndex](b.registry, handle(listHandle))
		i, err := position(index)
		if err != nil {
			return jvm.Null, err
		}
		v, err := l.Get(i)
		if err != nil {
			return jvm.Null, err
		}
		return bytesResult(env, v)
	})
}

func (b *Bridge) ListIndexProxyNativeSize(env jvm.Env, listHandle int64) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		n, err := resource.CastHandle[*storage.ListIndex](b.registry, handle(listHandle)).Size()
		return int64(n), err
	})
}

func (b *Bridge) ListIndexProxyNativeAdd(env jvm.Env, listHandle int64, value jvm.Object) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		l := resource.CastHandle[*storage.ListIndex](b.registry, handle(listHandle))
		v, err := bytesArg(env, value, "value")
		if err != nil {
			return void(err)
		}
		return void(l.Add(v))
	})
}

func (b *Bridge) ListIndexProxyNativeSet(env jvm.Env, listHandle int64, index int64, value jvm.Object) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		l := resource.CastHandle[*storage.ListIndex](b.registry, handle(listHandle))
		i, err := position(index)
		if err != nil {
			return void(err)
		}
		v, err := bytesArg(env, value, "value")
		if err != nil {
			return void(err)
		}
		return void(l.Set(i, v))
	})
}

func (b *Bridge) ListIndexProxyNativeTruncate(env jvm.Env, listHandle int64, size int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		l := resource.CastHandle[*storage.ListIndex](b.registry, handle(listHandle))
		n, err := position(size)
		if err != nil {
			return void(err)
		}
		return void(l.Truncate(n))
	})
}

func (b *Bridge) ListIndexProxyNativeClear(env jvm.Env, listHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		return void(resource.CastHandle[*storage.ListIndex](b.registry, handle(listHandle)).Clear())
	})
}

func (b *Bridge) ListIndexProxyNativeFree(env jvm.Env, listHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		resource.DropHandle[*storage.ListIndex](b.registry, handle(listHandle))
		return void(nil)
	})
}
