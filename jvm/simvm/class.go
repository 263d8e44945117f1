package simvm

import (
	"fmt"
	"strings"

	"github.com/wippyai/javabinding/jvm"
)

// Method is the Go implementation of a managed method or constructor.
// this is Null for static methods. Throwing is done through env.Throw or
// env.ThrowNew; the returned error is for transport failures only.
type Method func(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error)

// ClassDef describes a managed class.
type ClassDef struct {
	// Name is the internal class name, e.g. "java/lang/String".
	Name string
	// Super defaults to java/lang/Object.
	Super string
	// Fields maps field names to their descriptors.
	Fields map[string]jvm.Type
	// Constructors are keyed by signature and are not inherited.
	Constructors map[string]Method
	// Methods are keyed by name followed by signature, e.g. "get()J".
	Methods map[string]Method
	// Static methods, keyed like Methods.
	Static map[string]Method
}

type class struct {
	name    string
	super   *class
	fields  map[string]jvm.Type
	ctors   map[string]Method
	methods map[string]Method
	statics map[string]Method
	mirror  *object
}

// dottedName is the name Class.getName reports.
func (c *class) dottedName() string {
	if strings.HasPrefix(c.name, "[") {
		return c.name
	}
	return strings.ReplaceAll(c.name, "/", ".")
}

func (c *class) isSubclassOf(other *class) bool {
	for k := c; k != nil; k = k.super {
		if k == other {
			return true
		}
	}
	return false
}

func (c *class) method(key string) (Method, bool) {
	for k := c; k != nil; k = k.super {
		if m, ok := k.methods[key]; ok {
			return m, true
		}
	}
	return nil, false
}

func (c *class) field(name string) (jvm.Type, bool) {
	for k := c; k != nil; k = k.super {
		if t, ok := k.fields[name]; ok {
			return t, true
		}
	}
	return "", false
}

type object struct {
	class  *class
	fields map[string]any
	native any
	id     uint64
}

// DefineClass makes a class available to FindClass. The superclass must
// already be defined.
func (vm *VM) DefineClass(def ClassDef) error {
	if def.Name == "" {
		return fmt.Errorf("simvm: class name is empty")
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	if _, exists := vm.classes[def.Name]; exists {
		return fmt.Errorf("simvm: class %s already defined", def.Name)
	}

	superName := def.Super
	if superName == "" && def.Name != ClassObject {
		superName = ClassObject
	}
	var super *class
	if superName != "" {
		var ok bool
		if super, ok = vm.classes[superName]; !ok {
			return fmt.Errorf("simvm: superclass %s of %s is not defined", superName, def.Name)
		}
	}

	for sig := range def.Constructors {
		if _, err := jvm.ParseSignature(sig); err != nil {
			return fmt.Errorf("simvm: constructor %s%s: %w", def.Name, sig, err)
		}
	}

	c := &class{
		name:    def.Name,
		super:   super,
		fields:  copyMap(def.Fields),
		ctors:   copyMap(def.Constructors),
		methods: copyMap(def.Methods),
		statics: copyMap(def.Static),
	}
	// java/lang/Class is defined before any mirror can be created; its own
	// mirror is patched once it exists.
	if classClass, ok := vm.classes[ClassClass]; ok {
		c.mirror = vm.newObject(classClass, c)
	} else if def.Name == ClassClass {
		c.mirror = vm.newObject(c, c)
		if obj, ok := vm.classes[ClassObject]; ok && obj.mirror == nil {
			obj.mirror = vm.newObject(c, obj)
		}
	}
	vm.classes[def.Name] = c
	return nil
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
