package ir

import (
	"errors"
	"fmt"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// symType differentiates declarations, i.e. global variables, parameters and locals.
type symType int

// Decl is the declaration of a variable. Identifier nodes refer to the Decl they were bound to by the decoration
// stage.
type Decl struct {
	Typ    symType // Kind of declaration.
	Name   string  // Name of the variable.
	Type   Type    // Declared type of the variable.
	Seq    int     // Sequence number of the declaration within its scope.
	Offset int     // Byte offset: from the caller's stack pointer for parameters, into the locals area for locals.
}

// FuncDecl is the declaration of a function.
type FuncDecl struct {
	Name       string  // Name of the function, also its assembler label.
	Ret        Type    // Return type.
	Params     []*Decl // Parameters in declaration order.
	Locals     []*Decl // Local variables in declaration order.
	LocalsSize int     // Size in bytes of the locals area, rounded up to a whole number of words.
	Node       *Node   // FUNCTION node defining the function, <nil> for external functions.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	SymParam symType = iota
	SymLocal
	SymGlobal
)

// ErrArgLayout is returned when the argument layout of a callee cannot be computed.
var ErrArgLayout = errors.New("cannot compute argument layout")

// ---------------------
// ----- functions -----
// ---------------------

// String returns a print friendly string of the symbol type.
func (t symType) String() string {
	switch t {
	case SymParam:
		return "parameter"
	case SymLocal:
		return "local"
	case SymGlobal:
		return "global"
	}
	return fmt.Sprintf("symType(%d)", int(t))
}

// ArgWidth returns the number of bytes a value of type t occupies when passed as an argument.
// Only bytes and words are ever passed.
func ArgWidth(t Type) int {
	if !t.PointerLike() && t.Size() == 1 {
		return 1
	}
	return WordSize
}

// ArgLayout computes where the caller of f stores each argument, relative to the stack pointer after the caller
// decremented it by total bytes. Arguments are packed in order, each aligned to its own width, and total is rounded
// up to a whole number of words.
func ArgLayout(f *FuncDecl) (offsets, sizes []int, total int, err error) {
	if f == nil {
		return nil, nil, 0, fmt.Errorf("%w: callee declaration is <nil>", ErrArgLayout)
	}
	offsets = make([]int, len(f.Params))
	sizes = make([]int, len(f.Params))
	for i1, e1 := range f.Params {
		if e1 == nil || (e1.Type.Base == Void && !e1.Type.PointerLike()) {
			return nil, nil, 0, fmt.Errorf("%w: parameter %d of %q has no storage", ErrArgLayout, i1, f.Name)
		}
		w := ArgWidth(e1.Type)
		total = align(total, w)
		offsets[i1] = total
		sizes[i1] = w
		total += w
	}
	return offsets, sizes, align(total, WordSize), nil
}

// LayoutLocals assigns offsets into the locals area to every local of f and sets f.LocalsSize.
func LayoutLocals(f *FuncDecl) {
	off := 0
	for _, e1 := range f.Locals {
		size := e1.Type.Size()
		a := size
		if a > WordSize || e1.Type.Arr() > 0 {
			a = WordSize
		}
		if a < 1 {
			a = 1
		}
		off = align(off, a)
		e1.Offset = off
		off += size
	}
	f.LocalsSize = align(off, WordSize)
}

// align rounds n up to a multiple of a.
func align(n, a int) int {
	if a <= 1 {
		return n
	}
	if r := n % a; r != 0 {
		n += a - r
	}
	return n
}
