package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// BaseType is the tag of a resolved base type. It replaces comparing type declarations by identity.
type BaseType int

// Type is the resolved type of a node or a declaration: a base type, a pointer depth and zero or more array
// dimensions, outermost first.
type Type struct {
	Base BaseType // Base type the pointers and arrays are built from.
	Ptr  int      // Number of pointer levels applied to Base.
	Dims []int    // Array dimensions applied on top of the pointer levels, outermost first.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Void BaseType = iota
	Null
	Char
	UChar
	Int
	UInt
)

// WordSize is the size of a machine word, a pointer and an int on the target.
const WordSize = 4

// bt provides print friendly names of base types, equal to the names used in tree files.
var bt = [...]string{
	"void",
	"null",
	"char",
	"uchar",
	"int",
	"uint",
}

// ---------------------
// ----- functions -----
// ---------------------

// String returns the tree file name of the base type b.
func (b BaseType) String() string {
	if b < 0 || int(b) >= len(bt) {
		return fmt.Sprintf("BaseType(%d)", int(b))
	}
	return bt[b]
}

// Signed returns true if values of base type b are compared and extended as signed values.
func (b BaseType) Signed() bool {
	return b != UChar && b != UInt
}

// size returns the storage size of a scalar of base type b.
func (b BaseType) size() int {
	switch b {
	case Char, UChar:
		return 1
	case Void:
		return 0
	default:
		return WordSize
	}
}

// Arr returns the number of array dimensions of t.
func (t Type) Arr() int {
	return len(t.Dims)
}

// PointerLike returns true if t has at least one pointer level or array dimension.
func (t Type) PointerLike() bool {
	return t.Arr()+t.Ptr > 0
}

// Size returns the storage size of a value of type t in bytes.
func (t Type) Size() int {
	if t.Arr() > 0 {
		return t.Dims[0] * t.Elem().Size()
	}
	if t.Ptr > 0 {
		return WordSize
	}
	return t.Base.size()
}

// Elem returns the type t points to. For arrays the outermost dimension is removed.
// Elem of a type that is not pointer-like is the type itself.
func (t Type) Elem() Type {
	if t.Arr() > 0 {
		return Type{Base: t.Base, Ptr: t.Ptr, Dims: t.Dims[1:]}
	}
	if t.Ptr > 0 {
		return Type{Base: t.Base, Ptr: t.Ptr - 1}
	}
	return t
}

// ElemSize returns the storage size of the type t points to, used to scale offsets in pointer arithmetic.
func (t Type) ElemSize() int {
	return t.Elem().Size()
}

// String returns the tree file notation of t.
func (t Type) String() string {
	sb := strings.Builder{}
	sb.WriteString(t.Base.String())
	sb.WriteString(strings.Repeat("*", t.Ptr))
	for _, e1 := range t.Dims {
		sb.WriteString("[")
		sb.WriteString(strconv.Itoa(e1))
		sb.WriteString("]")
	}
	return sb.String()
}

// ParseType parses the tree file notation of a type, i.e. "int", "char*" or "uint[4][2]".
func ParseType(s string) (Type, error) {
	var t Type
	i1 := 0
	for i1 < len(s) && s[i1] != '*' && s[i1] != '[' {
		i1++
	}
	name := s[:i1]
	found := false
	for i2, e2 := range bt {
		if e2 == name {
			t.Base = BaseType(i2)
			found = true
			break
		}
	}
	if !found {
		return t, fmt.Errorf("unknown base type %q", name)
	}
	for ; i1 < len(s) && s[i1] == '*'; i1++ {
		t.Ptr++
	}
	for i1 < len(s) {
		if s[i1] != '[' {
			return t, fmt.Errorf("malformed type %q", s)
		}
		end := strings.IndexByte(s[i1:], ']')
		if end < 0 {
			return t, fmt.Errorf("malformed type %q: missing ']'", s)
		}
		n, err := strconv.Atoi(s[i1+1 : i1+end])
		if err != nil || n <= 0 {
			return t, fmt.Errorf("malformed type %q: bad array dimension", s)
		}
		t.Dims = append(t.Dims, n)
		i1 += end + 1
	}
	return t, nil
}

// priority ranks base types when choosing between signed and unsigned operations, highest first. Types not listed
// rank below all others and are treated as signed.
var priority = [...]BaseType{UInt, Int, UChar, Char, Null}

// UnsignedOperands returns true if operands of types l and r are compared, divided and shifted as unsigned values.
// The signedness of the operand whose base type ranks highest decides.
func UnsignedOperands(l, r Type) bool {
	for _, e1 := range priority {
		if l.Base == e1 || r.Base == e1 {
			return !e1.Signed()
		}
	}
	return false
}
