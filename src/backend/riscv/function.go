package riscv

import (
	"cgen/src/ir"
	"cgen/src/util"
)

// Stack frame of a function, from higher to lower addresses:
//
//	fp+off      arguments, stored by the caller at the offsets of the argument layout
//	fp-48..fp   register save area, see SaveRegisters
//	fp-52       caller's frame pointer
//	fp-52-L     locals area of L bytes
//
// The frame pointer holds the stack pointer at entry.

// localBase returns the offset from the frame pointer of the bottom of the locals area.
func (g *Generator) localBase() int {
	return -(len(saved)*g.word + g.word + g.fn.LocalsSize)
}

// genFunction generates the FUNCTION node n: prologue, body and a single epilogue every return jumps to.
func (g *Generator) genFunction(n *ir.Node) {
	g.children(n, 1, 1)
	g.fn = n.Func
	g.ret = g.labels.Generate()
	defer g.labels.Release(g.ret)
	locals := n.Func.LocalsSize

	g.em.Label(util.Label(n.Name))
	frame := g.SaveRegisters()
	g.em.Addi(sp, sp, -g.word)
	g.em.Sw(fp, sp, 0)
	g.em.Addi(fp, sp, frame+g.word)
	if locals > 0 {
		g.em.Addi(sp, sp, -locals)
	}

	// Functions falling off their end return 0.
	g.Dispatch(n.Children[0], Loop{})
	g.em.Add(a0, zero, zero)

	g.em.Label(g.ret)
	if locals > 0 {
		g.em.Addi(sp, sp, locals)
	}
	g.em.Lw(fp, sp, 0)
	g.em.Addi(sp, sp, g.word)
	g.RestoreRegisters()
	g.em.Ret()
}

// genReturn moves the returned value, or 0, to a0 and jumps to the epilogue.
func (g *Generator) genReturn(n *ir.Node, loop Loop) {
	g.children(n, 0, 1)
	if g.fn == nil {
		g.invariant(n, "return outside function")
	}
	if len(n.Children) == 1 {
		g.Dispatch(n.Children[0], loop)
		g.rules.ApplyTypeRules(&ir.Node{Type: g.fn.Ret}, acc)
		g.em.Add(a0, zero, acc)
	} else {
		g.em.Add(a0, zero, zero)
	}
	g.em.J(g.ret)
}
