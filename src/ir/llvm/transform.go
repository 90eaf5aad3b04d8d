// Package llvm lowers the decorated syntax tree to LLVM IR for the system installed LLVM runtime. All values are
// 32-bit integers, like the accumulator of the assembler backend. Pointers are converted to and from integers where
// memory is accessed.
package llvm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

import (
	"tinygo.org/x/go-llvm"
)

import (
	ast "cgen/src/ir"
	"cgen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// loop holds the blocks continue and break branch to.
type loop struct {
	head, exit llvm.BasicBlock
}

// lowerer holds the state of lowering one module.
type lowerer struct {
	b     llvm.Builder
	m     llvm.Module
	i32   llvm.Type
	i8    llvm.Type
	funcs map[string]llvm.Value    // Functions by name.
	vars  map[*ast.Decl]llvm.Value // Storage of globals, parameters and locals.
	fun   llvm.Value               // Function being lowered.
	fn    *ast.FuncDecl            // Declaration of fun.
	loops util.Stack[loop]
}

// lowerError carries a malformed tree out of the recursive lowering methods.
type lowerError struct {
	err error
}

// ---------------------
// ----- functions -----
// ---------------------

// GenLLVM lowers the PROGRAM node root to an LLVM module and verifies it. The textual IR is written to w, unless
// opt.Out names an object file (extension .o), in which case the module is compiled for the target architecture
// and written there.
func GenLLVM(opt util.Options, root *ast.Node, w io.Writer) error {
	if root == nil {
		return errors.New("syntax tree node is <nil>")
	}
	if root.Typ != ast.PROGRAM {
		return fmt.Errorf("expected PROGRAM root node, got %s", root.Typ)
	}

	ctx := llvm.NewContext()
	defer ctx.Dispose()

	// Builder constructs LLVM IR instructions on basic block level.
	b := ctx.NewBuilder()
	defer b.Dispose()

	// Set module name equal file name without file extension.
	name := strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src))
	if len(name) == 0 || name == "." {
		name = "stdin"
	}
	m := ctx.NewModule(name)
	defer m.Dispose()

	l := &lowerer{
		b:     b,
		m:     m,
		i32:   ctx.Int32Type(),
		i8:    ctx.Int8Type(),
		funcs: make(map[string]llvm.Value),
		vars:  make(map[*ast.Decl]llvm.Value),
	}

	// The context is not safe for concurrent use, functions are lowered sequentially regardless of opt.Threads.
	if err := l.lower(root); err != nil {
		return err
	}
	if err := llvm.VerifyModule(m, llvm.ReturnStatusAction); err != nil {
		return fmt.Errorf("LLVM module verification failed: %w", err)
	}
	if opt.Verbose {
		fmt.Printf("lowered %d functions to LLVM IR\n", len(l.funcs))
	}

	if filepath.Ext(opt.Out) == ".o" {
		return emitObject(opt, m)
	}
	_, err := io.WriteString(w, m.String())
	return err
}

// lower declares all globals and function headers before lowering any function body, so that calls may refer to
// functions defined later in the tree.
func (l *lowerer) lower(root *ast.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(lowerError)
			if !ok {
				panic(r)
			}
			err = e.err
		}
	}()

	for _, e1 := range root.Children {
		switch e1.Typ {
		case ast.GLOBAL:
			if e1.Decl == nil {
				fail(e1, "global %q has no declaration", e1.Name)
			}
			t := l.storage(e1.Type)
			g := llvm.AddGlobal(l.m, t, e1.Name)
			g.SetInitializer(llvm.ConstNull(t))
			l.vars[e1.Decl] = g
		case ast.FUNCTION:
			if e1.Func == nil {
				fail(e1, "function %q has no declaration", e1.Name)
			}
			params := make([]llvm.Type, len(e1.Func.Params))
			for i1 := range params {
				params[i1] = l.i32
			}
			l.funcs[e1.Name] = llvm.AddFunction(l.m, e1.Name, llvm.FunctionType(l.i32, params, false))
		default:
			fail(e1, "expected FUNCTION or GLOBAL, got %s", e1.Typ)
		}
	}
	for _, e1 := range root.Children {
		if e1.Typ == ast.FUNCTION {
			l.function(e1)
		}
	}
	return nil
}

// fail aborts lowering on a malformed tree.
func fail(n *ast.Node, format string, args ...interface{}) {
	panic(lowerError{err: fmt.Errorf("line %d:%d: %s", n.Line, n.Pos, fmt.Sprintf(format, args...))})
}

// storage returns the in-memory type of values of type t. Bytes are stored as i8, arrays as LLVM arrays and
// everything else as i32.
func (l *lowerer) storage(t ast.Type) llvm.Type {
	if t.Arr() > 0 {
		return llvm.ArrayType(l.storage(t.Elem()), t.Dims[0])
	}
	if isByte(t) {
		return l.i8
	}
	return l.i32
}

func isByte(t ast.Type) bool {
	return !t.PointerLike() && t.Size() == 1
}

// extend widens the i8 value v of type t to i32.
func (l *lowerer) extend(v llvm.Value, t ast.Type) llvm.Value {
	if t.Base == ast.UChar {
		return l.b.CreateZExt(v, l.i32, "")
	}
	return l.b.CreateSExt(v, l.i32, "")
}

// adjust truncates v to the width of t and extends it back to i32.
func (l *lowerer) adjust(v llvm.Value, t ast.Type) llvm.Value {
	if !isByte(t) {
		return v
	}
	return l.extend(l.b.CreateTrunc(v, l.i8, ""), t)
}

// match extends byte operands to a common word width. Operands are already i32; only their upper bits need fixing.
func (l *lowerer) match(n *ast.Node, v llvm.Value) llvm.Value {
	return l.adjust(v, n.Type)
}

func (l *lowerer) constant(v int) llvm.Value {
	return llvm.ConstInt(l.i32, uint64(int64(v)), true)
}

// truth converts the i32 v to an i1 that is set if v is not zero.
func (l *lowerer) truth(v llvm.Value) llvm.Value {
	return l.b.CreateICmp(llvm.IntNE, v, l.constant(0), "")
}

// word converts the i1 v to exactly 1 or 0.
func (l *lowerer) word(v llvm.Value) llvm.Value {
	return l.b.CreateZExt(v, l.i32, "")
}

// ptr converts the address v to a pointer to values of type t.
func (l *lowerer) ptr(v llvm.Value, t ast.Type) llvm.Value {
	return l.b.CreateIntToPtr(v, llvm.PointerType(l.storage(t), 0), "")
}

// load reads a value of type t from the pointer p.
func (l *lowerer) load(p llvm.Value, t ast.Type) llvm.Value {
	v := l.b.CreateLoad(p, "")
	if isByte(t) {
		return l.extend(v, t)
	}
	return v
}

// store writes the i32 v as a value of type t to the pointer p.
func (l *lowerer) store(v, p llvm.Value, t ast.Type) {
	if isByte(t) {
		v = l.b.CreateTrunc(v, l.i8, "")
	}
	l.b.CreateStore(v, p)
}

// ----------------------
// ----- Statements -----
// ----------------------

// function lowers the body of the FUNCTION node n. Parameters and locals get stack slots in the entry block.
func (l *lowerer) function(n *ast.Node) {
	if len(n.Children) != 1 {
		fail(n, "function %q has no body", n.Name)
	}
	l.fn = n.Func
	l.fun = l.funcs[n.Name]
	l.b.SetInsertPointAtEnd(llvm.AddBasicBlock(l.fun, "entry"))

	for i1, e1 := range l.fn.Params {
		l.fun.Param(i1).SetName(e1.Name)
		if e1.Type.Arr() > 0 {
			// Array parameters are passed by address.
			p := l.b.CreateAlloca(l.i32, e1.Name+".addr")
			l.b.CreateStore(l.fun.Param(i1), p)
			l.vars[e1] = p
			continue
		}
		p := l.b.CreateAlloca(l.storage(e1.Type), e1.Name+".addr")
		l.store(l.fun.Param(i1), p, e1.Type)
		l.vars[e1] = p
	}
	for _, e1 := range l.fn.Locals {
		t := l.storage(e1.Type)
		p := l.b.CreateAlloca(t, e1.Name)
		l.b.CreateStore(llvm.ConstNull(t), p)
		l.vars[e1] = p
	}

	l.stmt(n.Children[0])

	// Functions falling off their end return 0.
	l.b.CreateRet(l.constant(0))
}

// terminate opens a new block after a terminator. Statements following return, break or continue land there and
// are unreachable.
func (l *lowerer) terminate() {
	l.b.SetInsertPointAtEnd(llvm.AddBasicBlock(l.fun, ""))
}

// stmt lowers a statement. Expression statements are lowered for their side effects.
func (l *lowerer) stmt(n *ast.Node) {
	switch n.Typ {
	case ast.BLOCK:
		for _, e1 := range n.Children {
			l.stmt(e1)
		}
	case ast.IF_STATEMENT:
		l.want(n, 2, 3)
		cond := l.truth(l.expr(n.Children[0]))
		thn := llvm.AddBasicBlock(l.fun, "then")
		var els llvm.BasicBlock
		if len(n.Children) == 3 {
			els = llvm.AddBasicBlock(l.fun, "else")
		}
		end := llvm.AddBasicBlock(l.fun, "endif")
		if len(n.Children) == 3 {
			l.b.CreateCondBr(cond, thn, els)
		} else {
			l.b.CreateCondBr(cond, thn, end)
		}
		l.b.SetInsertPointAtEnd(thn)
		l.stmt(n.Children[1])
		l.b.CreateBr(end)
		if len(n.Children) == 3 {
			l.b.SetInsertPointAtEnd(els)
			l.stmt(n.Children[2])
			l.b.CreateBr(end)
		}
		l.b.SetInsertPointAtEnd(end)
	case ast.WHILE_STATEMENT:
		l.want(n, 2, 2)
		head := llvm.AddBasicBlock(l.fun, "while")
		body := llvm.AddBasicBlock(l.fun, "body")
		exit := llvm.AddBasicBlock(l.fun, "endwhile")
		l.b.CreateBr(head)
		l.b.SetInsertPointAtEnd(head)
		l.b.CreateCondBr(l.truth(l.expr(n.Children[0])), body, exit)
		l.b.SetInsertPointAtEnd(body)
		l.loops.Push(loop{head: head, exit: exit})
		l.stmt(n.Children[1])
		l.loops.Pop()
		l.b.CreateBr(head)
		l.b.SetInsertPointAtEnd(exit)
	case ast.RETURN_STATEMENT:
		l.want(n, 0, 1)
		v := l.constant(0)
		if len(n.Children) == 1 {
			v = l.adjust(l.expr(n.Children[0]), l.fn.Ret)
		}
		l.b.CreateRet(v)
		l.terminate()
	case ast.BREAK_STATEMENT, ast.CONTINUE_STATEMENT:
		lp, ok := l.loops.Peek()
		if !ok {
			fail(n, "%s outside loop", n.Typ)
		}
		if n.Typ == ast.BREAK_STATEMENT {
			l.b.CreateBr(lp.exit)
		} else {
			l.b.CreateBr(lp.head)
		}
		l.terminate()
	default:
		l.expr(n)
	}
}

// want asserts that n has between lo and hi children.
func (l *lowerer) want(n *ast.Node, lo, hi int) {
	if len(n.Children) < lo || len(n.Children) > hi {
		fail(n, "%s has %d children, expected %d to %d", n.Typ, len(n.Children), lo, hi)
	}
}

// -----------------------
// ----- Expressions -----
// -----------------------

// expr lowers an expression to an i32 value.
func (l *lowerer) expr(n *ast.Node) llvm.Value {
	switch n.Typ {
	case ast.INTEGER_DATA:
		return l.adjust(l.constant(n.Value), n.Type)
	case ast.NULL_DATA:
		return l.constant(0)
	case ast.IDENTIFIER_DATA:
		if n.Decl == nil {
			fail(n, "identifier %q is not bound to a declaration", n.Name)
		}
		if n.Decl.Type.Arr() > 0 {
			return l.address(n)
		}
		return l.load(l.slot(n), n.Decl.Type)
	case ast.CALL_EXPRESSION:
		return l.call(n)
	case ast.ASSIGNMENT:
		return l.assign(n)
	case ast.ADDRESS_OF:
		l.want(n, 1, 1)
		switch c := n.Children[0]; c.Typ {
		case ast.IDENTIFIER_DATA:
			return l.address(c)
		case ast.DEREFERENCE:
			l.want(c, 1, 1)
			return l.expr(c.Children[0])
		default:
			fail(n, "cannot take address of %s", c.Typ)
		}
	case ast.DEREFERENCE:
		l.want(n, 1, 1)
		a := l.expr(n.Children[0])
		if n.Type.Arr() > 0 {
			return a
		}
		return l.load(l.ptr(a, n.Type), n.Type)
	case ast.NEGATE:
		l.want(n, 1, 1)
		return l.adjust(l.b.CreateNeg(l.expr(n.Children[0]), ""), n.Type)
	case ast.BIT_NOT:
		l.want(n, 1, 1)
		return l.adjust(l.b.CreateNot(l.expr(n.Children[0]), ""), n.Type)
	case ast.LOGIC_NOT:
		l.want(n, 1, 1)
		return l.word(l.b.CreateICmp(llvm.IntEQ, l.expr(n.Children[0]), l.constant(0), ""))
	}
	if n.Typ.Binary() {
		return l.binary(n)
	}
	fail(n, "cannot lower %s", n.Typ)
	return llvm.Value{}
}

// slot returns the storage of the variable bound to n.
func (l *lowerer) slot(n *ast.Node) llvm.Value {
	p, ok := l.vars[n.Decl]
	if !ok {
		fail(n, "identifier %q has no storage", n.Name)
	}
	return p
}

// address returns the address of the variable bound to n as an i32.
func (l *lowerer) address(n *ast.Node) llvm.Value {
	if n.Decl == nil {
		fail(n, "identifier %q is not bound to a declaration", n.Name)
	}
	p := l.slot(n)
	if n.Decl.Typ == ast.SymParam && n.Decl.Type.Arr() > 0 {
		return l.b.CreateLoad(p, "")
	}
	return l.b.CreatePtrToInt(p, l.i32, "")
}

// assign stores the value of the right hand side and returns it, adjusted to the type of the target.
func (l *lowerer) assign(n *ast.Node) llvm.Value {
	l.want(n, 2, 2)
	lhs, rhs := n.Children[0], n.Children[1]
	var p, v llvm.Value
	switch lhs.Typ {
	case ast.IDENTIFIER_DATA:
		if lhs.Decl == nil {
			fail(lhs, "identifier %q is not bound to a declaration", lhs.Name)
		}
		v = l.expr(rhs)
		p = l.slot(lhs)
	case ast.DEREFERENCE:
		l.want(lhs, 1, 1)
		a := l.expr(lhs.Children[0])
		v = l.expr(rhs)
		p = l.ptr(a, lhs.Type)
	default:
		fail(n, "cannot assign to %s", lhs.Typ)
	}
	l.store(v, p, lhs.Type)
	return l.adjust(v, lhs.Type)
}

// call evaluates the arguments left to right and calls the function. Byte arguments are passed with their upper
// bits adjusted to the parameter type.
func (l *lowerer) call(n *ast.Node) llvm.Value {
	f, ok := l.funcs[n.Name]
	if !ok || n.Func == nil {
		fail(n, "call to undeclared function %q", n.Name)
	}
	if len(n.Children) != len(n.Func.Params) {
		fail(n, "function %q expects %d arguments, got %d", n.Name, len(n.Func.Params), len(n.Children))
	}
	args := make([]llvm.Value, len(n.Children))
	for i1, e1 := range n.Children {
		args[i1] = l.adjust(l.expr(e1), n.Func.Params[i1].Type)
	}
	return l.adjust(l.b.CreateCall(f, args, ""), n.Type)
}

// binary lowers the binary expression n. Both operands are always evaluated, left first.
func (l *lowerer) binary(n *ast.Node) llvm.Value {
	l.want(n, 2, 2)
	c1, c2 := n.Children[0], n.Children[1]
	x := l.match(c1, l.expr(c1))
	y := l.match(c2, l.expr(c2))
	unsigned := ast.UnsignedOperands(c1.Type, c2.Type)

	var v llvm.Value
	switch n.Typ {
	case ast.BIT_AND:
		v = l.b.CreateAnd(x, y, "")
	case ast.BIT_OR:
		v = l.b.CreateOr(x, y, "")
	case ast.BIT_XOR:
		v = l.b.CreateXor(x, y, "")
	case ast.LOGIC_AND:
		return l.word(l.b.CreateAnd(l.truth(x), l.truth(y), ""))
	case ast.LOGIC_OR:
		return l.word(l.b.CreateOr(l.truth(x), l.truth(y), ""))
	case ast.EQ:
		return l.word(l.b.CreateICmp(llvm.IntEQ, x, y, ""))
	case ast.NOT_EQ:
		return l.word(l.b.CreateICmp(llvm.IntNE, x, y, ""))
	case ast.ADD:
		switch {
		case c1.PointerLike() && !c2.PointerLike():
			y = l.b.CreateMul(y, l.constant(elemSize(c1.Type)), "")
		case c2.PointerLike() && !c1.PointerLike():
			x = l.b.CreateMul(x, l.constant(elemSize(c2.Type)), "")
		}
		v = l.b.CreateAdd(x, y, "")
	case ast.SUB:
		switch p1, p2 := c1.PointerLike(), c2.PointerLike(); {
		case p1 && !p2:
			v = l.b.CreateSub(x, l.b.CreateMul(y, l.constant(elemSize(c1.Type)), ""), "")
		case p2 && !p1:
			v = l.b.CreateSub(l.b.CreateMul(x, l.constant(elemSize(c2.Type)), ""), y, "")
		case p1 && p2:
			v = l.b.CreateSDiv(l.b.CreateSub(x, y, ""), l.constant(elemSize(c1.Type)), "")
		default:
			v = l.b.CreateSub(x, y, "")
		}
	case ast.MUL:
		v = l.b.CreateMul(x, y, "")
	case ast.DIV:
		if unsigned {
			v = l.b.CreateUDiv(x, y, "")
		} else {
			v = l.b.CreateSDiv(x, y, "")
		}
	case ast.MOD:
		if unsigned {
			v = l.b.CreateURem(x, y, "")
		} else {
			v = l.b.CreateSRem(x, y, "")
		}
	case ast.LSH:
		v = l.b.CreateShl(x, y, "")
	case ast.RSH:
		if unsigned {
			v = l.b.CreateLShr(x, y, "")
		} else {
			v = l.b.CreateAShr(x, y, "")
		}
	case ast.LT, ast.LT_EQ, ast.GT, ast.GT_EQ:
		if c1.PointerLike() && c2.PointerLike() {
			unsigned = true
		}
		return l.word(l.b.CreateICmp(predicate(n.Typ, unsigned), x, y, ""))
	default:
		fail(n, "cannot lower %s", n.Typ)
	}
	return l.adjust(v, n.Type)
}

// elemSize returns the scale of pointer arithmetic on values of type t. Pointers to void step by one byte.
func elemSize(t ast.Type) int {
	if s := t.ElemSize(); s > 0 {
		return s
	}
	return 1
}

// predicate returns the comparison of the relational operator typ.
func predicate(typ ast.NodeType, unsigned bool) llvm.IntPredicate {
	switch typ {
	case ast.LT:
		if unsigned {
			return llvm.IntULT
		}
		return llvm.IntSLT
	case ast.LT_EQ:
		if unsigned {
			return llvm.IntULE
		}
		return llvm.IntSLE
	case ast.GT:
		if unsigned {
			return llvm.IntUGT
		}
		return llvm.IntSGT
	default:
		if unsigned {
			return llvm.IntUGE
		}
		return llvm.IntSGE
	}
}

// -----------------------
// ----- Object code -----
// -----------------------

// emitObject compiles m for the target architecture of opt and writes the object file to opt.Out.
func emitObject(opt util.Options, m llvm.Module) error {
	// Initialise LLVM code generation.
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	t, tt, err := genTargetTriple(opt)
	if err != nil {
		return err
	}

	// Configure hardware properties for target.
	var cpu string
	switch opt.TargetArch {
	case util.Riscv64:
		cpu = "generic-rv64"
	case util.Riscv32, util.UnknownArch:
		cpu = "generic-rv32"
	default:
		cpu = "generic"
	}

	tm := t.CreateTargetMachine(tt, cpu, "",
		llvm.CodeGenLevelNone,
		llvm.RelocDefault,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	m.SetDataLayout(td.String())
	m.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if err != nil {
		return err
	} else if buf.IsNil() {
		return errors.New("could not emit compiled code to memory")
	}
	defer buf.Dispose()

	if err := os.WriteFile(opt.Out, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing object file: %w", err)
	}
	if opt.Verbose {
		fmt.Printf("wrote %d bytes of object code to %s\n", len(buf.Bytes()), opt.Out)
	}
	return nil
}

// genTargetTriple generates an LLVM target triple for the target architecture of opt. Generated code does not
// depend on an operating system, so the triple always names a bare metal ELF target.
func genTargetTriple(opt util.Options) (llvm.Target, string, error) {
	var triple string
	switch opt.TargetArch {
	case util.Riscv32, util.UnknownArch:
		triple = "riscv32-unknown-elf"
	case util.Riscv64:
		triple = "riscv64-unknown-elf"
	case util.Aarch64:
		triple = "aarch64-unknown-elf"
	default:
		return llvm.Target{}, "", fmt.Errorf("unsupported target architecture identifier %d", opt.TargetArch)
	}

	if opt.Verbose {
		fmt.Printf("compiling for target %s\n", triple)
	}
	llvm.InitializeAllTargets()
	if tt, err := llvm.GetTargetFromTriple(triple); err != nil {
		return llvm.Target{}, "", err
	} else {
		return tt, triple, nil
	}
}
