// This file contains the binary operand protocol and the bitwise, logical and equality operators.

package riscv

import (
	"cgen/src/ir"
)

// binaryOperands generates both operands of the binary node n. The left operand is spilled to a stack slot while
// the right operand is generated, then reloaded into a0. The right operand is left in the accumulator and the
// stack pointer is restored. The register holding the left operand is returned.
func (g *Generator) binaryOperands(n *ir.Node, loop Loop) Reg {
	g.children(n, 2, 2)
	g.em.Addi(sp, sp, -g.word)
	g.Dispatch(n.Children[0], loop)
	g.em.Sw(acc, sp, 0)
	g.Dispatch(n.Children[1], loop)
	g.em.Lw(a0, sp, 0)
	g.em.Addi(sp, sp, g.word)
	g.rules.ApplyTypeRules(n, acc)
	return a0
}

// genBitwise generates &, | and ^.
func (g *Generator) genBitwise(n *ir.Node, loop Loop) {
	l := g.binaryOperands(n, loop)
	g.rules.MatchSizes(n.Children[0], l, n.Children[1], acc)
	switch n.Typ {
	case ir.BIT_AND:
		g.em.And(acc, l, acc)
	case ir.BIT_OR:
		g.em.Or(acc, acc, l)
	case ir.BIT_XOR:
		g.em.Xor(acc, acc, l)
	}
	g.rules.ApplyTypeRules(n, acc)
}

// genLogicAnd generates &&. Both operands are always evaluated.
func (g *Generator) genLogicAnd(n *ir.Node, loop Loop) {
	l := g.binaryOperands(n, loop)
	lfalse := g.labels.Generate()
	defer g.labels.Release(lfalse)
	lend := g.labels.Generate()
	defer g.labels.Release(lend)

	g.em.Beq(l, zero, lfalse)
	g.em.Beq(acc, zero, lfalse)
	g.em.Addi(acc, zero, 1)
	g.em.J(lend)
	g.em.Label(lfalse)
	g.em.Add(acc, zero, zero)
	g.em.Label(lend)
	g.rules.ApplyTypeRules(n, acc)
}

// genLogicOr generates ||. Both operands are always evaluated.
func (g *Generator) genLogicOr(n *ir.Node, loop Loop) {
	l := g.binaryOperands(n, loop)
	ltrue := g.labels.Generate()
	defer g.labels.Release(ltrue)
	lend := g.labels.Generate()
	defer g.labels.Release(lend)

	g.em.Bne(l, zero, ltrue)
	g.em.Bne(acc, zero, ltrue)
	g.em.Add(acc, zero, zero)
	g.em.J(lend)
	g.em.Label(ltrue)
	g.em.Addi(acc, zero, 1)
	g.em.Label(lend)
	g.rules.ApplyTypeRules(n, acc)
}

// genEquality generates == and !=. Operand types only matter for extending bytes to words.
func (g *Generator) genEquality(n *ir.Node, loop Loop) {
	l := g.binaryOperands(n, loop)
	g.rules.MatchSizes(n.Children[0], l, n.Children[1], acc)
	ldiff := g.labels.Generate()
	defer g.labels.Release(ldiff)
	lend := g.labels.Generate()
	defer g.labels.Release(lend)

	eq, ne := 1, 0
	if n.Typ == ir.NOT_EQ {
		eq, ne = 0, 1
	}
	g.em.Bne(l, acc, ldiff)
	g.em.Addi(acc, zero, eq)
	g.em.J(lend)
	g.em.Label(ldiff)
	g.em.Addi(acc, zero, ne)
	g.em.Label(lend)
	g.rules.ApplyTypeRules(n, acc)
}
