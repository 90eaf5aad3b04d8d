// This file contains RISC-V assembly generating code for leaves, unary expressions and assignments.

package riscv

import (
	"cgen/src/ir"
)

// genInteger loads an integer literal into the accumulator.
func (g *Generator) genInteger(n *ir.Node) {
	g.em.Li(acc, n.Value)
	g.rules.ApplyTypeRules(n, acc)
}

// location returns the base register and offset addressing the variable d. The address of a global is loaded into
// t0 first.
func (g *Generator) location(n *ir.Node, d *ir.Decl) (Reg, int) {
	switch d.Typ {
	case ir.SymParam:
		return fp, d.Offset
	case ir.SymLocal:
		return fp, g.localBase() + d.Offset
	case ir.SymGlobal:
		g.em.La(t0, d.Name)
		return t0, 0
	}
	g.invariant(n, "identifier %q has unknown declaration kind %s", n.Name, d.Typ)
	return zero, 0
}

// load loads the value of type t at off(base) into rd.
func (g *Generator) load(t ir.Type, rd, base Reg, off int) {
	switch {
	case t.PointerLike() || t.Size() == g.word:
		g.em.Lw(rd, base, off)
	case t.Size() == 1 && t.Base == ir.UChar:
		g.em.Lbu(rd, base, off)
	case t.Size() == 1:
		g.em.Lb(rd, base, off)
	default:
		g.em.Add(rd, zero, zero)
	}
}

// store stores rs as a value of type t to off(base).
func (g *Generator) store(t ir.Type, rs, base Reg, off int) {
	if !t.PointerLike() && t.Size() == 1 {
		g.em.Sb(rs, base, off)
	} else {
		g.em.Sw(rs, base, off)
	}
}

// address puts the address of the variable bound to n in the accumulator.
func (g *Generator) address(n *ir.Node) {
	d := n.Decl
	if d == nil {
		g.invariant(n, "identifier %q is not bound to a declaration", n.Name)
	}
	base, off := g.location(n, d)
	if d.Typ == ir.SymParam && d.Type.Arr() > 0 {
		// Array parameters are passed by address.
		g.em.Lw(acc, base, off)
		return
	}
	g.em.Addi(acc, base, off)
}

// genIdentifier loads the value of a variable. Arrays evaluate to their address.
func (g *Generator) genIdentifier(n *ir.Node) {
	d := n.Decl
	if d == nil {
		g.invariant(n, "identifier %q is not bound to a declaration", n.Name)
	}
	if d.Type.Arr() > 0 {
		g.address(n)
		return
	}
	base, off := g.location(n, d)
	g.load(d.Type, acc, base, off)
}

// genAddressOf generates &x and &*p.
func (g *Generator) genAddressOf(n *ir.Node, loop Loop) {
	g.children(n, 1, 1)
	switch c := n.Children[0]; c.Typ {
	case ir.IDENTIFIER_DATA:
		g.address(c)
	case ir.DEREFERENCE:
		g.children(c, 1, 1)
		g.Dispatch(c.Children[0], loop)
	default:
		g.invariant(n, "cannot take address of %s", c.Typ)
	}
}

// genDeref generates *p. Dereferencing a pointer to an array yields the address of the array.
func (g *Generator) genDeref(n *ir.Node, loop Loop) {
	g.children(n, 1, 1)
	g.Dispatch(n.Children[0], loop)
	if n.Type.Arr() > 0 {
		return
	}
	g.load(n.Type, acc, acc, 0)
}

// genAssign generates an assignment to a variable or through a pointer. The assigned value is left in the
// accumulator, adjusted to the type of the target.
func (g *Generator) genAssign(n *ir.Node, loop Loop) {
	g.children(n, 2, 2)
	lhs, rhs := n.Children[0], n.Children[1]
	switch lhs.Typ {
	case ir.IDENTIFIER_DATA:
		if lhs.Decl == nil {
			g.invariant(lhs, "identifier %q is not bound to a declaration", lhs.Name)
		}
		g.Dispatch(rhs, loop)
		base, off := g.location(lhs, lhs.Decl)
		g.store(lhs.Type, acc, base, off)
	case ir.DEREFERENCE:
		g.children(lhs, 1, 1)
		g.em.Addi(sp, sp, -g.word)
		g.Dispatch(lhs.Children[0], loop)
		g.em.Sw(acc, sp, 0)
		g.Dispatch(rhs, loop)
		g.em.Lw(t0, sp, 0)
		g.em.Addi(sp, sp, g.word)
		g.store(lhs.Type, acc, t0, 0)
	default:
		g.invariant(n, "cannot assign to %s", lhs.Typ)
	}
	g.rules.ApplyTypeRules(lhs, acc)
}

// genNegate generates -x by flipping all bits and adding 1.
func (g *Generator) genNegate(n *ir.Node, loop Loop) {
	g.children(n, 1, 1)
	g.Dispatch(n.Children[0], loop)
	g.em.Xori(acc, acc, -1)
	g.em.Addi(acc, acc, 1)
	g.rules.ApplyTypeRules(n, acc)
}

// genBitNot generates ~x.
func (g *Generator) genBitNot(n *ir.Node, loop Loop) {
	g.children(n, 1, 1)
	g.Dispatch(n.Children[0], loop)
	g.em.Xori(acc, acc, -1)
	g.rules.ApplyTypeRules(n, acc)
}

// genLogicNot generates !x as exactly 1 or 0.
func (g *Generator) genLogicNot(n *ir.Node, loop Loop) {
	g.children(n, 1, 1)
	g.Dispatch(n.Children[0], loop)
	ltrue := g.labels.Generate()
	defer g.labels.Release(ltrue)
	lend := g.labels.Generate()
	defer g.labels.Release(lend)

	g.em.Beq(acc, zero, ltrue)
	g.em.Add(acc, zero, zero)
	g.em.J(lend)
	g.em.Label(ltrue)
	g.em.Addi(acc, zero, 1)
	g.em.Label(lend)
}
