package riscv

import (
	"cgen/src/ir"
)

// unsignedOperands returns true if the operands l and r are compared as unsigned values.
func unsignedOperands(l, r *ir.Node) bool {
	return ir.UnsignedOperands(l.Type, r.Type)
}

// genRelational generates <, <=, > and >=. Pointers always compare unsigned. <= and >= branch to the true case on
// equality before testing the strict relation.
func (g *Generator) genRelational(n *ir.Node, loop Loop) {
	c1, c2 := n.Children[0], n.Children[1]
	l := g.binaryOperands(n, loop)
	g.rules.MatchSizes(c1, l, c2, acc)

	unsigned := unsignedOperands(c1, c2)
	if c1.PointerLike() && c2.PointerLike() {
		unsigned = true
	}
	slt := g.em.Slt
	if unsigned {
		slt = g.em.Sltu
	}

	ltrue := g.labels.Generate()
	defer g.labels.Release(ltrue)
	lend := g.labels.Generate()
	defer g.labels.Release(lend)

	if n.Typ == ir.LT_EQ || n.Typ == ir.GT_EQ {
		g.em.Beq(l, acc, ltrue)
	}
	switch n.Typ {
	case ir.LT, ir.LT_EQ:
		slt(acc, l, acc)
	case ir.GT, ir.GT_EQ:
		slt(acc, acc, l)
	}
	g.em.Bne(acc, zero, ltrue)
	g.em.Add(acc, zero, zero)
	g.em.J(lend)
	g.em.Label(ltrue)
	g.em.Addi(acc, zero, 1)
	g.em.Label(lend)
	g.rules.ApplyTypeRules(n, acc)
}
