// This file contains RISC-V assembly generating code for conditionals such as WHILE and IF-ELSE statements.

package riscv

import (
	"cgen/src/ir"
)

// genIf generates an IF or IF-ELSE statement. The condition is false when the accumulator is zero.
func (g *Generator) genIf(n *ir.Node, loop Loop) {
	g.children(n, 2, 3)
	lend := g.labels.Generate()
	defer g.labels.Release(lend)

	g.Dispatch(n.Children[0], loop)
	if len(n.Children) == 2 {
		// IF-THEN.
		g.em.Beq(acc, zero, lend)
		g.Dispatch(n.Children[1], loop)
	} else {
		// IF-THEN-ELSE.
		lelse := g.labels.Generate()
		defer g.labels.Release(lelse)

		g.em.Beq(acc, zero, lelse)
		g.Dispatch(n.Children[1], loop)
		g.em.J(lend)
		g.em.Label(lelse)
		g.Dispatch(n.Children[2], loop)
	}
	g.em.Label(lend)
}

// genWhile generates a WHILE statement. The body is generated with the labels of this loop.
func (g *Generator) genWhile(n *ir.Node, loop Loop) {
	g.children(n, 2, 2)
	head := g.labels.Generate()
	defer g.labels.Release(head)
	end := g.labels.Generate()
	defer g.labels.Release(end)

	g.em.Label(head)
	g.Dispatch(n.Children[0], loop)
	g.em.Beq(acc, zero, end)
	g.Dispatch(n.Children[1], Loop{Entry: head, Exit: end})
	g.em.J(head)
	g.em.Label(end)
}

// genBreak jumps to the exit of the enclosing loop.
func (g *Generator) genBreak(n *ir.Node, loop Loop) {
	if loop.Exit == "" {
		g.invariant(n, "break outside loop")
	}
	g.em.J(loop.Exit)
}

// genContinue jumps to the head of the enclosing loop.
func (g *Generator) genContinue(n *ir.Node, loop Loop) {
	if loop.Entry == "" {
		g.invariant(n, "continue outside loop")
	}
	g.em.J(loop.Entry)
}
