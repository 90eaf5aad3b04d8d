package riscv

import (
	"fmt"

	"cgen/src/ir"
)

// genCall generates a call. Arguments are evaluated left to right, each stored to its slot of the outgoing
// argument area before the next one is evaluated. The stack pointer is restored after the call.
func (g *Generator) genCall(n *ir.Node, loop Loop) {
	if n.Func == nil {
		g.invariant(n, "call to %q has no callee declaration", n.Name)
	}
	if len(n.Children) == 0 {
		g.em.Jal(ra, n.Name)
		g.em.Add(acc, zero, a0)
		g.rules.ApplyTypeRules(n, acc)
		return
	}

	offsets, sizes, total, err := g.Layout(n.Func)
	if err == nil && (len(offsets) != len(n.Children) || len(sizes) != len(n.Children)) {
		err = fmt.Errorf("%w: %d slots for %d arguments of %q", ir.ErrArgLayout, len(offsets), len(n.Children), n.Name)
	}
	if err != nil {
		g.Fatal(fmt.Errorf("line %d:%d: %w", n.Line, n.Pos, err))
		return
	}

	g.em.Addi(sp, sp, -total)
	for i1, e1 := range n.Children {
		g.Dispatch(e1, loop)
		switch sizes[i1] {
		case 1:
			g.em.Sb(acc, sp, offsets[i1])
		case g.word:
			g.em.Sw(acc, sp, offsets[i1])
		default:
			g.invariant(e1, "argument %d of %q has width %d", i1, n.Name, sizes[i1])
		}
	}
	g.em.Jal(ra, n.Name)
	g.em.Add(acc, zero, a0)
	g.em.Addi(sp, sp, total)
	g.rules.ApplyTypeRules(n, acc)
}
