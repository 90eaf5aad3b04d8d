package riscv

import (
	"cgen/src/ir"
)

// TypeRules truncates and extends register values to the width of the node that produced them.
type TypeRules interface {
	// ApplyTypeRules adjusts the value in r to the declared width of n.
	ApplyTypeRules(n *ir.Node, r Reg)
	// MatchSizes extends the operand values in lr and rr, belonging to l and r, to a common width.
	MatchSizes(l *ir.Node, lr Reg, r *ir.Node, rr Reg)
}

// typeRules emits the extension instructions for 1 byte types. Words and pointer-like values are left alone.
type typeRules struct {
	em *Emitter
}

// NewTypeRules returns the TypeRules of the RV32 target emitting to em.
func NewTypeRules(em *Emitter) TypeRules {
	return typeRules{em: em}
}

func (t typeRules) ApplyTypeRules(n *ir.Node, r Reg) {
	t.extend(n.Type, r)
}

// MatchSizes extends sub-word operands to a full word, each according to its own signedness.
func (t typeRules) MatchSizes(l *ir.Node, lr Reg, r *ir.Node, rr Reg) {
	t.extend(l.Type, lr)
	t.extend(r.Type, rr)
}

func (t typeRules) extend(typ ir.Type, r Reg) {
	if typ.PointerLike() || typ.Size() != 1 {
		return
	}
	shift := 8 * (ir.WordSize - 1)
	switch typ.Base {
	case ir.Char:
		t.em.Slli(r, r, shift)
		t.em.Srai(r, r, shift)
	case ir.UChar:
		t.em.Andi(r, r, 0xff)
	}
}
