package riscv

import (
	"fmt"

	"cgen/src/ir"
	"cgen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Loop holds the labels of the nearest enclosing loop. Both are empty outside loops.
type Loop struct {
	Entry util.Label // Target of continue.
	Exit  util.Label // Target of break.
}

// Generator lowers the statements and expressions of one function to an instruction stream.
type Generator struct {
	em     *Emitter
	labels *util.LabelAllocator
	rules  TypeRules
	word   int

	// Layout computes the argument layout of a callee. Defaults to ir.ArgLayout.
	Layout func(f *ir.FuncDecl) (offsets, sizes []int, total int, err error)

	// Fatal is invoked when a call cannot be laid out. The default panics, aborting generation of the function.
	Fatal func(err error)

	fn  *ir.FuncDecl // Function being generated.
	ret util.Label   // Epilogue label of fn.
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewGenerator returns a Generator emitting to em with labels drawn from labels.
func NewGenerator(em *Emitter, labels *util.LabelAllocator, word int) *Generator {
	return &Generator{
		em:     em,
		labels: labels,
		rules:  NewTypeRules(em),
		word:   word,
		Layout: ir.ArgLayout,
		Fatal:  func(err error) { panic(fatalError{err: err}) },
	}
}

// Emitter returns the emitter of g.
func (g *Generator) Emitter() *Emitter {
	return g.em
}

// SetTypeRules replaces the type rules of g.
func (g *Generator) SetTypeRules(r TypeRules) {
	g.rules = r
}

// invariant aborts generation on a malformed tree.
func (g *Generator) invariant(n *ir.Node, format string, args ...interface{}) {
	e := &InvariantError{Msg: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Line, e.Pos = n.Line, n.Pos
	}
	panic(e)
}

// children asserts that n has between lo and hi children.
func (g *Generator) children(n *ir.Node, lo, hi int) {
	if len(n.Children) < lo || len(n.Children) > hi {
		g.invariant(n, "%s has %d children, expected %d to %d", n.Typ, len(n.Children), lo, hi)
	}
}

// Dispatch generates n. Expressions leave their value in the accumulator; loop is passed on to nested statements
// unchanged except by while loops.
func (g *Generator) Dispatch(n *ir.Node, loop Loop) {
	if n == nil {
		g.invariant(nil, "syntax tree node is <nil>")
	}
	switch n.Typ {
	// Statements.
	case ir.BLOCK:
		for _, e1 := range n.Children {
			g.Dispatch(e1, loop)
		}
	case ir.IF_STATEMENT:
		g.genIf(n, loop)
	case ir.WHILE_STATEMENT:
		g.genWhile(n, loop)
	case ir.RETURN_STATEMENT:
		g.genReturn(n, loop)
	case ir.BREAK_STATEMENT:
		g.genBreak(n, loop)
	case ir.CONTINUE_STATEMENT:
		g.genContinue(n, loop)

	// Leaves.
	case ir.INTEGER_DATA:
		g.genInteger(n)
	case ir.NULL_DATA:
		g.em.Add(acc, zero, zero)
	case ir.IDENTIFIER_DATA:
		g.genIdentifier(n)

	// Expressions.
	case ir.CALL_EXPRESSION:
		g.genCall(n, loop)
	case ir.ASSIGNMENT:
		g.genAssign(n, loop)
	case ir.ADDRESS_OF:
		g.genAddressOf(n, loop)
	case ir.DEREFERENCE:
		g.genDeref(n, loop)
	case ir.NEGATE:
		g.genNegate(n, loop)
	case ir.BIT_NOT:
		g.genBitNot(n, loop)
	case ir.LOGIC_NOT:
		g.genLogicNot(n, loop)
	case ir.BIT_AND, ir.BIT_OR, ir.BIT_XOR:
		g.genBitwise(n, loop)
	case ir.LOGIC_AND:
		g.genLogicAnd(n, loop)
	case ir.LOGIC_OR:
		g.genLogicOr(n, loop)
	case ir.EQ, ir.NOT_EQ:
		g.genEquality(n, loop)
	case ir.ADD:
		g.genAdd(n, loop)
	case ir.SUB:
		g.genSub(n, loop)
	case ir.MUL, ir.DIV, ir.MOD:
		g.genMultiplicative(n, loop)
	case ir.LSH, ir.RSH:
		g.genShift(n, loop)
	case ir.LT, ir.LT_EQ, ir.GT, ir.GT_EQ:
		g.genRelational(n, loop)
	default:
		g.invariant(n, "cannot generate %s", n.Typ)
	}
}
