// This file contains the additive, multiplicative and shift operators.

package riscv

import (
	"cgen/src/ir"
)

// elemSize returns the scale of pointer arithmetic on values of type t. Pointers to void step by one byte.
func elemSize(t ir.Type) int {
	if s := t.ElemSize(); s > 0 {
		return s
	}
	return 1
}

// scale multiplies the integer in r by size into t1.
func (g *Generator) scale(r Reg, size int) {
	g.em.Addi(t1, zero, size)
	g.em.Mul(t1, t1, r)
}

// genAdd generates +. If exactly one operand is pointer-like, the other is scaled by the pointed-to size.
func (g *Generator) genAdd(n *ir.Node, loop Loop) {
	c1, c2 := n.Children[0], n.Children[1]
	l := g.binaryOperands(n, loop)
	g.rules.MatchSizes(c1, l, c2, acc)

	switch {
	case c1.PointerLike() && !c2.PointerLike():
		g.scale(acc, elemSize(c1.Type))
		g.em.Add(acc, l, t1)
	case c2.PointerLike() && !c1.PointerLike():
		g.scale(l, elemSize(c2.Type))
		g.em.Add(acc, acc, t1)
	default:
		g.em.Add(acc, acc, l)
	}
	g.rules.ApplyTypeRules(n, acc)
}

// genSub generates -. The difference of two pointers is the number of elements between them.
func (g *Generator) genSub(n *ir.Node, loop Loop) {
	c1, c2 := n.Children[0], n.Children[1]
	l := g.binaryOperands(n, loop)
	g.rules.MatchSizes(c1, l, c2, acc)

	switch p1, p2 := c1.PointerLike(), c2.PointerLike(); {
	case p1 && !p2:
		g.scale(acc, elemSize(c1.Type))
		g.em.Sub(acc, l, t1)
	case p2 && !p1:
		g.scale(l, elemSize(c2.Type))
		g.em.Sub(acc, t1, acc)
	case p1 && p2:
		g.em.Sub(acc, l, acc)
		g.em.Addi(t0, zero, elemSize(c1.Type))
		g.em.Div(acc, acc, t0)
	default:
		g.em.Sub(acc, l, acc)
	}
	g.rules.ApplyTypeRules(n, acc)
}

// genMultiplicative generates *, / and %. Division and remainder are unsigned if the operand types say so.
func (g *Generator) genMultiplicative(n *ir.Node, loop Loop) {
	c1, c2 := n.Children[0], n.Children[1]
	l := g.binaryOperands(n, loop)
	g.rules.MatchSizes(c1, l, c2, acc)

	unsigned := unsignedOperands(c1, c2)
	switch {
	case n.Typ == ir.MUL:
		g.em.Mul(acc, l, acc)
	case n.Typ == ir.DIV && unsigned:
		g.em.Divu(acc, l, acc)
	case n.Typ == ir.DIV:
		g.em.Div(acc, l, acc)
	case unsigned:
		g.em.Remu(acc, l, acc)
	default:
		g.em.Rem(acc, l, acc)
	}
	g.rules.ApplyTypeRules(n, acc)
}

// genShift generates << and >>. Right shifts are logical if the operand types are unsigned.
func (g *Generator) genShift(n *ir.Node, loop Loop) {
	c1, c2 := n.Children[0], n.Children[1]
	l := g.binaryOperands(n, loop)
	g.rules.MatchSizes(c1, l, c2, acc)

	switch {
	case n.Typ == ir.LSH:
		g.em.Sll(acc, l, acc)
	case unsignedOperands(c1, c2):
		g.em.Srl(acc, l, acc)
	default:
		g.em.Sra(acc, l, acc)
	}
	g.rules.ApplyTypeRules(n, acc)
}
