package jvm

import (
	"fmt"
	"strings"
)

// Type is a single field descriptor such as "I", "[B" or "Ljava/lang/String;".
type Type string

const (
	Boolean Type = "Z"
	Byte    Type = "B"
	Char    Type = "C"
	Short   Type = "S"
	Int     Type = "I"
	Long    Type = "J"
	Float   Type = "F"
	Double  Type = "D"
	Void    Type = "V"
)

// IsObject reports whether values of t are references.
func (t Type) IsObject() bool {
	return len(t) > 0 && (t[0] == 'L' || t[0] == '[')
}

// Signature is a parsed method descriptor.
type Signature struct {
	Args []Type
	Ret  Type
}

// ParseSignature parses a method descriptor such as "(IJ[B)V".
func ParseSignature(sig string) (Signature, error) {
	if !strings.HasPrefix(sig, "(") {
		return Signature{}, NewError(KindInvalidSignature, fmt.Sprintf("invalid method signature %q", sig))
	}
	end := strings.IndexByte(sig, ')')
	if end < 0 {
		return Signature{}, NewError(KindInvalidSignature, fmt.Sprintf("invalid method signature %q", sig))
	}

	var s Signature
	rest := sig[1:end]
	for rest != "" {
		t, n, err := parseType(rest, false)
		if err != nil {
			return Signature{}, err
		}
		s.Args = append(s.Args, t)
		rest = rest[n:]
	}

	ret, n, err := parseType(sig[end+1:], true)
	if err != nil {
		return Signature{}, err
	}
	if end+1+n != len(sig) {
		return Signature{}, NewError(KindInvalidSignature, fmt.Sprintf("trailing characters in signature %q", sig))
	}
	s.Ret = ret
	return s, nil
}

// ParseType parses a single field descriptor.
func ParseType(desc string) (Type, error) {
	t, n, err := parseType(desc, false)
	if err != nil {
		return "", err
	}
	if n != len(desc) {
		return "", NewError(KindInvalidSignature, fmt.Sprintf("invalid field descriptor %q", desc))
	}
	return t, nil
}

func parseType(s string, allowVoid bool) (Type, int, error) {
	if s == "" {
		return "", 0, NewError(KindInvalidSignature, "empty type descriptor")
	}
	switch s[0] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		return Type(s[:1]), 1, nil
	case 'V':
		if !allowVoid {
			return "", 0, NewError(KindInvalidSignature, "void is only valid as a return type")
		}
		return Void, 1, nil
	case 'L':
		semi := strings.IndexByte(s, ';')
		if semi < 2 {
			return "", 0, NewError(KindInvalidSignature, fmt.Sprintf("unterminated class descriptor %q", s))
		}
		return Type(s[:semi+1]), semi + 1, nil
	case '[':
		elem, n, err := parseType(s[1:], false)
		if err != nil {
			return "", 0, err
		}
		return "[" + elem, n + 1, nil
	default:
		return "", 0, NewError(KindInvalidSignature, fmt.Sprintf("unknown type descriptor %q", s[:1]))
	}
}

// CheckValue verifies that v has the Go type expected for t.
func CheckValue(t Type, v Value) error {
	ok := false
	switch t {
	case Boolean:
		_, ok = v.(bool)
	case Byte:
		_, ok = v.(int8)
	case Char:
		_, ok = v.(uint16)
	case Short:
		_, ok = v.(int16)
	case Int:
		_, ok = v.(int32)
	case Long:
		_, ok = v.(int64)
	case Float:
		_, ok = v.(float32)
	case Double:
		_, ok = v.(float64)
	case Void:
		ok = v == nil
	default:
		if v == nil {
			ok = true
		} else {
			_, ok = v.(Object)
		}
	}
	if !ok {
		return NewError(KindWrongValueType, fmt.Sprintf("wrong value type %T for descriptor %s", v, t))
	}
	return nil
}

// ZeroValue returns the default value for t.
func ZeroValue(t Type) Value {
	switch t {
	case Boolean:
		return false
	case Byte:
		return int8(0)
	case Char:
		return uint16(0)
	case Short:
		return int16(0)
	case Int:
		return int32(0)
	case Long:
		return int64(0)
	case Float:
		return float32(0)
	case Double:
		return float64(0)
	case Void:
		return nil
	default:
		return Null
	}
}

// ClassDescriptor returns the descriptor of a class given its internal
// name, e.g. "java/lang/String" becomes "Ljava/lang/String;".
func ClassDescriptor(name string) Type {
	return Type("L" + name + ";")
}
