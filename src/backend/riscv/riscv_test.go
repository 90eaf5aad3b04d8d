package riscv

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cgen/src/ir"
	"cgen/src/util"
)

// ----------------------------
// ----- Helper functions -----
// ----------------------------

// build parses src and generates a program from it.
func build(t *testing.T, src string, threads int) *Program {
	t.Helper()
	root, err := ir.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}
	p, err := GenRiscv(util.Options{Threads: threads, TargetArch: util.Riscv32}, root)
	if err != nil {
		t.Fatalf("code generation error: %s", err)
	}
	return p
}

// machine builds src and loads it into a new machine.
func machine(t *testing.T, src string) *Machine {
	t.Helper()
	m, err := NewMachine(build(t, src, 1))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// call builds src and simulates a call to fn.
func call(t *testing.T, src, fn string, args ...int) int32 {
	t.Helper()
	v, err := machine(t, src).Call(fn, args...)
	if err != nil {
		t.Fatalf("simulation error: %s", err)
	}
	return v
}

// expr wraps the expression e in a function f returning int.
func expr(e string) string {
	return "(global data int[4]) (func f int () () (return " + e + "))"
}

// texts returns the assembler text of ins.
func texts(ins []Instruction) []string {
	s := make([]string, len(ins))
	for i1, e1 := range ins {
		s[i1] = e1.String()
	}
	return s
}

// contains returns true if fn of p contains the instruction text ins.
func contains(p *Program, fn, ins string) bool {
	f, ok := p.Lookup(fn)
	if !ok {
		return false
	}
	for _, e1 := range f.Text {
		if e1.String() == ins {
			return true
		}
	}
	return false
}

// -----------------
// ----- Tests -----
// -----------------

func TestExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
		exp  int32
	}{
		{"add", "(+ int (num int 2) (num int 3))", 5},
		{"sub", "(- int (num int 2) (num int 7))", -5},
		{"mul", "(* int (num int -6) (num int 7))", -42},
		{"div", "(/ int (num int -7) (num int 2))", -3},
		{"mod", "(% int (num int -7) (num int 2))", -1},
		{"divu", "(/ uint (num uint -8) (num uint 2))", 2147483644},
		{"div by zero", "(/ int (num int 7) (num int 0))", -1},
		{"lsh", "(<< int (num int 3) (num int 4))", 48},
		{"rsh signed", "(>> int (num int -16) (num int 2))", -4},
		{"rsh unsigned", "(>> uint (num uint -16) (num int 2))", 1073741820},
		{"and", "(& int (num int 12) (num int 10))", 8},
		{"or", "(| int (num int 12) (num int 10))", 14},
		{"xor", "(^ int (num int 12) (num int 10))", 6},
		{"neg", "(neg int (num int 5))", -5},
		{"not", "(not int (num int 0))", -1},
		{"large literal", "(+ int (num int 100000) (num int 1))", 100001},
		{"char wraps", "(+ char (num char 127) (num char 1))", -128},
		{"uchar wraps", "(+ uchar (num uchar 255) (num uchar 1))", 0},
		{"null", "(== int (null) (num int 0))", 1},
		{"nested", "(- int (* int (num int 3) (+ int (num int 4) (num int 5))) (/ int (num int 8) (num int 2)))", 23},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			if got := call(t, expr(e1.expr), "f"); got != e1.exp {
				t.Errorf("expected %d, got %d", e1.exp, got)
			}
		})
	}
}

// TestBooleans verifies that logical, equality and relational operators produce exactly 1 or 0.
func TestBooleans(t *testing.T) {
	tests := []struct {
		expr string
		exp  int32
	}{
		{"(&& int (num int 5) (num int 7))", 1},
		{"(&& int (num int 5) (num int 0))", 0},
		{"(&& int (num int 0) (num int 9))", 0},
		{"(|| int (num int 0) (num int -3))", 1},
		{"(|| int (num int 0) (num int 0))", 0},
		{"(== int (num int 4) (num int 4))", 1},
		{"(!= int (num int 4) (num int 4))", 0},
		{"(!= int (num int 4) (num int 9))", 1},
		{"(== int (num uchar 255) (num char -1))", 0},
		{"(lnot int (num int 9))", 0},
		{"(lnot int (num int 0))", 1},
		{"(< int (num int 2) (num int 3))", 1},
		{"(< int (num int 3) (num int 3))", 0},
		{"(<= int (num int 3) (num int 3))", 1},
		{"(<= int (num int 4) (num int 3))", 0},
		{"(> int (num int 5) (num int 2))", 1},
		{"(> int (num int -5) (num int 2))", 0},
		{"(>= int (num int 2) (num int 3))", 0},
		{"(>= int (num int 3) (num int 3))", 1},
		{"(< int (num char -1) (num int 1))", 1},
		{"(< int (num char -1) (num uint 1))", 0},
		{"(> int (num uchar 200) (num char 100))", 1},
	}
	for _, e1 := range tests {
		t.Run(e1.expr, func(t *testing.T) {
			if got := call(t, expr(e1.expr), "f"); got != e1.exp {
				t.Errorf("expected %d, got %d", e1.exp, got)
			}
		})
	}
}

// TestRelationalSignedness verifies the comparison instruction chosen for mixed operand types.
func TestRelationalSignedness(t *testing.T) {
	p := build(t, expr("(< int (num char -1) (num uint 1))"), 1)
	if !contains(p, "f", "sltu s1, a0, s1") {
		t.Errorf("expected unsigned comparison, got\n%s", strings.Join(texts(p.Funcs[0].Text), "\n"))
	}
	p = build(t, expr("(> int (num char -1) (num int 1))"), 1)
	if !contains(p, "f", "slt s1, s1, a0") {
		t.Errorf("expected signed comparison, got\n%s", strings.Join(texts(p.Funcs[0].Text), "\n"))
	}
	p = build(t, expr("(< int (id data) (+ int* (id data) (num int 1)))"), 1)
	if !contains(p, "f", "sltu s1, a0, s1") {
		t.Errorf("expected pointers to compare unsigned")
	}
	if got := call(t, expr("(< int (id data) (+ int* (id data) (num int 1)))"), "f"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

// TestPointerArithmetic verifies scaling of integer operands and the difference of pointers.
func TestPointerArithmetic(t *testing.T) {
	src := `
(global data int[4])
(global text char[8])
(func index int* ((i int)) () (return (+ int* (id data) (id i))))
(func rindex int* ((i int)) () (return (+ int* (id i) (id data))))
(func back int* () () (return (- int* (+ int* (id data) (num int 3)) (num int 2))))
(func diff int () () (return (- int (+ int* (id data) (num int 3)) (id data))))
(func cdiff int () () (return (- int (+ char* (id text) (num int 5)) (id text))))
(func rsub int () () (return (- int (num int 2) (id data))))
`
	m := machine(t, src)
	base, ok := m.Global("data")
	if !ok {
		t.Fatal("global data not placed")
	}

	tests := []struct {
		fn   string
		args []int
		exp  int32
	}{
		{"index", []int{3}, int32(base) + 12},
		{"rindex", []int{2}, int32(base) + 8},
		{"back", nil, int32(base) + 4},
		{"diff", nil, 3},
		{"cdiff", nil, 5},
		{"rsub", nil, 8 - int32(base)},
	}
	for _, e1 := range tests {
		t.Run(e1.fn, func(t *testing.T) {
			got, err := m.Call(e1.fn, e1.args...)
			if err != nil {
				t.Fatal(err)
			}
			if got != e1.exp {
				t.Errorf("expected %#x, got %#x", e1.exp, got)
			}
		})
	}
}

// TestMemory stores through pointers and reads the values back.
func TestMemory(t *testing.T) {
	src := `
(global buf char[4])
(global data int[4])
(global count int)
(func store int () ()
  (block
    (= (deref (+ int* (id data) (num int 2))) (num int 77))
    (= (id count) (+ int (id count) (num int 1)))
    (return (= (deref (+ char* (id buf) (num int 1))) (num int 300)))))
(func load int () () (return (+ int (deref (+ int* (id data) (num int 2))) (id count))))
(func swap int ((p int*) (q int*)) ((t int))
  (block
    (= (id t) (deref (id p)))
    (= (deref (id p)) (deref (id q)))
    (= (deref (id q)) (id t))
    (return (num int 0))))
(func local int () ((x int) (p int*))
  (block
    (= (id x) (num int 5))
    (= (id p) (addr (id x)))
    (= (deref (id p)) (+ int (deref (id p)) (num int 1)))
    (return (id x))))
`
	m := machine(t, src)
	v, err := m.Call("store")
	if err != nil {
		t.Fatal(err)
	}
	if v != 44 {
		t.Errorf("expected assignment to char to yield 44, got %d", v)
	}
	buf, _ := m.Global("buf")
	if b, _ := m.Byte(buf + 1); b != 44 {
		t.Errorf("expected byte 44 stored, got %d", b)
	}
	if b, _ := m.Byte(buf + 2); b != 0 {
		t.Errorf("expected neighbouring byte untouched, got %d", b)
	}
	if v, err = m.Call("load"); err != nil || v != 78 {
		t.Errorf("expected 78, got %d (%v)", v, err)
	}

	data, _ := m.Global("data")
	_ = m.SetWord(data, 11)
	_ = m.SetWord(data+4, 22)
	if _, err := m.Call("swap", int(data), int(data+4)); err != nil {
		t.Fatal(err)
	}
	w0, _ := m.Word(data)
	w1, _ := m.Word(data + 4)
	if w0 != 22 || w1 != 11 {
		t.Errorf("expected swapped words 22 and 11, got %d and %d", w0, w1)
	}

	if v, err := m.Call("local"); err != nil || v != 6 {
		t.Errorf("expected 6, got %d (%v)", v, err)
	}
}

// TestLargeFrame uses a locals area whose offsets do not fit in 12-bit immediates.
func TestLargeFrame(t *testing.T) {
	src := `
(func big int ((v int)) ((a int[600]) (i int))
  (block
    (= (id i) (num int 599))
    (= (deref (+ int* (id a) (id i))) (id v))
    (return (+ int (deref (+ int* (id a) (num int 599))) (id i)))))
`
	p := build(t, src, 1)
	if !contains(p, "big", "addi sp, sp, -2404") && !contains(p, "big", "li t2, -2404") {
		t.Errorf("expected locals area of 2404 bytes, got\n%s", strings.Join(texts(p.Funcs[0].Text), "\n"))
	}
	m, err := NewMachine(p)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := m.Call("big", 1); err != nil || v != 600 {
		t.Errorf("expected 600, got %d (%v)", v, err)
	}
}

// TestCalls verifies argument layout, the stack pointer and preserved registers for calls with 0, 1 and many
// arguments.
func TestCalls(t *testing.T) {
	src := `
(func noargs int () () (return (num int 7)))
(func one int ((a int)) () (return (* int (id a) (num int 2))))
(func many int ((a char) (b int) (c char)) () (return (+ int (* int (id a) (num int 100)) (+ int (id b) (id c)))))
(func main int () ()
  (return (+ int (call noargs) (+ int (call one (num int 5)) (call many (num char 3) (num int 40) (num char -2))))))
`
	p := build(t, src, 1)
	m, err := NewMachine(p)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := m.Call("main"); err != nil || v != 7+10+338 {
		t.Errorf("expected %d, got %d (%v)", 7+10+338, v, err)
	}
	if v, err := m.Call("many", 3, 40, -2); err != nil || v != 338 {
		t.Errorf("expected 338, got %d (%v)", v, err)
	}

	for _, e1 := range []string{
		"jal ra, noargs",
		"addi sp, sp, -4",
		"sw s1, 0(sp)",
		"jal ra, one",
		"addi sp, sp, -12",
		"sb s1, 0(sp)",
		"sw s1, 4(sp)",
		"sb s1, 8(sp)",
		"jal ra, many",
		"add s1, zero, a0",
		"addi sp, sp, 12",
	} {
		if !contains(p, "main", e1) {
			t.Errorf("expected %q in main", e1)
		}
	}

	// The call without arguments does not touch the stack pointer.
	f, _ := p.Lookup("main")
	for i1, e1 := range f.Text {
		if e1.Op != JAL || e1.Sym != "noargs" {
			continue
		}
		if next := f.Text[i1+1].String(); next != "add s1, zero, a0" {
			t.Errorf("expected result moved to the accumulator after call, got %s", next)
		}
		if next := f.Text[i1+2]; next.Op == ADDI && next.Rd == sp {
			t.Errorf("unexpected stack adjustment after call without arguments: %s", next)
		}
	}
}

// TestRecursion runs recursive functions.
func TestRecursion(t *testing.T) {
	src := `
(func fib int ((n int)) ()
  (block
    (if (< int (id n) (num int 2)) (return (id n)))
    (return (+ int (call fib (- int (id n) (num int 1))) (call fib (- int (id n) (num int 2)))))))
(func fact uint ((n uint)) ()
  (if (== int (id n) (num uint 0)) (return (num uint 1)) (return (* uint (id n) (call fact (- uint (id n) (num uint 1)))))))
`
	m := machine(t, src)
	if v, err := m.Call("fib", 15); err != nil || v != 610 {
		t.Errorf("expected fib(15) = 610, got %d (%v)", v, err)
	}
	if v, err := m.Call("fact", 10); err != nil || v != 3628800 {
		t.Errorf("expected fact(10) = 3628800, got %d (%v)", v, err)
	}
}

// TestSaveRestore verifies that the save area is written and read back symmetrically.
func TestSaveRestore(t *testing.T) {
	g := NewGenerator(NewEmitter(), util.NewLabelAllocator("t"), ir.WordSize)
	if n := g.SaveRegisters(); n != 48 {
		t.Errorf("expected save area of 48 bytes, got %d", n)
	}
	if n := g.RestoreRegisters(); n != 48 {
		t.Errorf("expected save area of 48 bytes, got %d", n)
	}

	exp := []string{"addi sp, sp, -48"}
	for i1, e1 := range saved {
		exp = append(exp, (Instruction{Op: SW, Rd: e1, Rs1: sp, Imm: 4 * i1}).String())
	}
	for i1 := len(saved) - 1; i1 >= 0; i1-- {
		exp = append(exp, (Instruction{Op: LW, Rd: saved[i1], Rs1: sp, Imm: 4 * i1}).String())
	}
	exp = append(exp, "addi sp, sp, 48")
	if diff := cmp.Diff(exp, texts(g.Emitter().Instructions())); diff != "" {
		t.Errorf("save area mismatch (-want +got):\n%s", diff)
	}
	if saved[0] != s1 || saved[len(saved)-1] != ra || len(saved) != 12 {
		t.Errorf("unexpected save set %v", saved)
	}
}

// TestClobbered verifies that the machine detects a function not restoring a callee saved register.
func TestClobbered(t *testing.T) {
	p := &Program{Funcs: []Function{{
		Name: "bad",
		Text: []Instruction{
			{Op: LABEL, Sym: "bad"},
			{Op: ADDI, Rd: s2, Rs1: zero, Imm: 1},
			{Op: RET},
		},
	}}}
	m, err := NewMachine(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Call("bad"); !errors.Is(err, ErrClobbered) {
		t.Errorf("expected ErrClobbered, got %v", err)
	}

	p.Funcs[0].Text[1] = Instruction{Op: ADDI, Rd: sp, Rs1: sp, Imm: -4}
	if m, err = NewMachine(p); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Call("bad"); !errors.Is(err, ErrStackBalance) {
		t.Errorf("expected ErrStackBalance, got %v", err)
	}
}

// TestIf verifies that the body of a false condition without else is skipped and both branches of an else work.
func TestIf(t *testing.T) {
	src := `
(global hit int)
(func f int ((c int)) ()
  (block
    (if (id c) (= (id hit) (num int 1)))
    (return (num int 5))))
(func g int ((c int)) ()
  (if (> int (id c) (num int 0)) (return (num int 1)) (return (num int -1))))
`
	m := machine(t, src)
	executed := false
	m.Trace = func(pc int, ins Instruction) {
		if ins.Op == LA && ins.Sym == "hit" {
			executed = true
		}
	}
	if v, err := m.Call("f", 0); err != nil || v != 5 {
		t.Fatalf("expected 5, got %d (%v)", v, err)
	}
	if executed {
		t.Error("body of false condition executed")
	}
	if v, err := m.Call("f", 3); err != nil || v != 5 || !executed {
		t.Errorf("expected body of true condition to execute, got %d (%v)", v, err)
	}
	hit, _ := m.Global("hit")
	if w, _ := m.Word(hit); w != 1 {
		t.Errorf("expected hit = 1, got %d", w)
	}

	m.Trace = nil
	for _, e1 := range []struct{ arg, exp int }{{4, 1}, {0, -1}, {-4, -1}} {
		if v, err := m.Call("g", e1.arg); err != nil || int(v) != e1.exp {
			t.Errorf("g(%d): expected %d, got %d (%v)", e1.arg, e1.exp, v, err)
		}
	}
}

// TestIfShape verifies that an if without else branches straight to its end label and places no other label.
func TestIfShape(t *testing.T) {
	p := build(t, "(func f int ((c int)) () (if (id c) (return (num int 1))))", 1)
	f := p.Funcs[0]
	var branch, placed []string
	jumps := 0
	for _, e1 := range f.Text {
		switch e1.Op {
		case BEQ:
			branch = append(branch, e1.Sym)
		case LABEL:
			placed = append(placed, e1.Sym)
		case J:
			jumps++
		}
	}
	// Function label, if end and epilogue.
	if len(placed) != 3 || len(branch) != 1 || branch[0] != placed[1] {
		t.Errorf("expected beq to the only if label, got branches %v and labels %v", branch, placed)
	}
	// The return statement is the only jump.
	if jumps != 1 {
		t.Errorf("expected 1 jump, got %d", jumps)
	}
	for _, e1 := range []struct{ arg, exp int }{{0, 0}, {7, 1}} {
		if v := call(t, "(func f int ((c int)) () (if (id c) (return (num int 1))))", "f", e1.arg); int(v) != e1.exp {
			t.Errorf("f(%d): expected %d, got %d", e1.arg, e1.exp, v)
		}
	}
}

// TestLabelNames verifies that generated labels never collide with function names, whatever the names.
func TestLabelNames(t *testing.T) {
	src := `
(func f int () () (if (num int 1) (return (num int 1)) (return (num int 2))))
(func _Rf int () () (return (call f)))
(func _Lf_000 int () () (return (+ int (call _Rf) (num int 1))))
(func _Lf_001 int () () (while (num int 0) (block)))
`
	p := build(t, src, 2)
	names := map[string]bool{"f": true, "_Rf": true, "_Lf_000": true, "_Lf_001": true}
	seen := make(map[string]bool)
	for _, e1 := range p.Funcs {
		for _, e2 := range e1.Text {
			if e2.Op != LABEL {
				continue
			}
			if seen[e2.Sym] {
				t.Errorf("label %s placed twice", e2.Sym)
			}
			seen[e2.Sym] = true
			if e2.Sym != e1.Name && names[e2.Sym] {
				t.Errorf("function %s places label %s naming another function", e1.Name, e2.Sym)
			}
		}
	}
	m, err := NewMachine(p)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := m.Call("_Lf_000"); err != nil || v != 2 {
		t.Errorf("expected 2, got %d (%v)", v, err)
	}
}

const loops = `
(func f int ((n int)) ((i int) (j int) (c int))
  (block
    (= (id i) (num int 0))
    (= (id c) (num int 0))
    (while (< int (id i) (id n))
      (block
        (= (id j) (num int 0))
        (while (num int 1)
          (block
            (if (== int (id j) (num int 4)) (break))
            (= (id j) (+ int (id j) (num int 1)))
            (if (== int (% int (id j) (num int 2)) (num int 0)) (continue))
            (= (id c) (+ int (id c) (num int 1)))))
        (= (id i) (+ int (id i) (num int 1)))))
    (return (id c))))
`

// TestWhile runs nested loops with break and continue and checks that every label is placed once.
func TestWhile(t *testing.T) {
	p := build(t, loops, 1)
	seen := make(map[string]bool)
	for _, e1 := range p.Funcs[0].Text {
		if e1.Op != LABEL {
			continue
		}
		if seen[e1.Sym] {
			t.Errorf("label %s placed twice", e1.Sym)
		}
		seen[e1.Sym] = true
	}

	m, err := NewMachine(p)
	if err != nil {
		t.Fatal(err)
	}
	for _, e1 := range []struct{ n, exp int }{{0, 0}, {1, 2}, {3, 6}} {
		if v, err := m.Call("f", e1.n); err != nil || int(v) != e1.exp {
			t.Errorf("f(%d): expected %d, got %d (%v)", e1.n, e1.exp, v, err)
		}
	}
}

// TestLabelsReleased verifies that generating a function leaves no live labels.
func TestLabelsReleased(t *testing.T) {
	root, err := ir.Parse(loops)
	if err != nil {
		t.Fatal(err)
	}
	labels := util.NewLabelAllocator("f")
	g := NewGenerator(NewEmitter(), labels, ir.WordSize)
	g.genFunction(root.Children[0])
	if labels.Count() == 0 {
		t.Error("expected labels to be generated")
	}
	if live := labels.Live(); len(live) != 0 {
		t.Errorf("expected all labels released, got %v", live)
	}
}

// TestStepLimit stops an endless loop.
func TestStepLimit(t *testing.T) {
	m := machine(t, "(func f int () () (while (num int 1) (block)))")
	m.MaxSteps = 1000
	if _, err := m.Call("f"); !errors.Is(err, ErrStepLimit) {
		t.Errorf("expected ErrStepLimit, got %v", err)
	}
}

// TestFallOff verifies that functions without return statements return 0.
func TestFallOff(t *testing.T) {
	if v := call(t, "(func f int () () (block))", "f"); v != 0 {
		t.Errorf("expected 0, got %d", v)
	}
	if v := call(t, "(func f int () () (return))", "f"); v != 0 {
		t.Errorf("expected 0, got %d", v)
	}
	if v := call(t, "(func f char () () (return (num int 511)))", "f"); v != -1 {
		t.Errorf("expected return value adjusted to char, got %d", v)
	}
}

// TestLayoutFatal verifies that an argument layout failure is reported through Fatal.
func TestLayoutFatal(t *testing.T) {
	root, err := ir.Parse(`
(func g int ((a int)) () (return (id a)))
(func f int () () (return (call g (num int 1))))`)
	if err != nil {
		t.Fatal(err)
	}
	f := root.Children[1]

	var got error
	g := NewGenerator(NewEmitter(), util.NewLabelAllocator("f"), ir.WordSize)
	g.Layout = func(*ir.FuncDecl) ([]int, []int, int, error) {
		return nil, nil, 0, errors.New("no layout")
	}
	g.Fatal = func(err error) { got = err }
	g.genFunction(f)
	if got == nil || !strings.Contains(got.Error(), "no layout") {
		t.Errorf("expected layout error, got %v", got)
	}

	got = nil
	g = NewGenerator(NewEmitter(), util.NewLabelAllocator("f"), ir.WordSize)
	g.Layout = func(*ir.FuncDecl) ([]int, []int, int, error) {
		return []int{0, 4}, []int{4, 4}, 8, nil
	}
	g.Fatal = func(err error) { got = err }
	g.genFunction(f)
	if !errors.Is(got, ir.ErrArgLayout) {
		t.Errorf("expected ErrArgLayout for mismatched layout, got %v", got)
	}

	// The default reporter aborts generation of the function.
	root.Children[0].Func.Params[0].Type = ir.Type{Base: ir.Void}
	if _, err := GenFunction(f, ir.WordSize); !errors.Is(err, ir.ErrArgLayout) {
		t.Errorf("expected ErrArgLayout, got %v", err)
	}
}

// TestInvariants verifies that malformed trees are reported as errors.
func TestInvariants(t *testing.T) {
	for _, e1 := range []string{
		"(func f int () () (break))",
		"(func f int () () (continue))",
		"(func f int () () (if (num int 1) (continue)))",
	} {
		root, err := ir.Parse(e1)
		if err != nil {
			t.Fatal(err)
		}
		_, err = GenFunction(root.Children[0], ir.WordSize)
		var ie *InvariantError
		if !errors.As(err, &ie) {
			t.Errorf("%s: expected InvariantError, got %v", e1, err)
		}
	}

	g := NewGenerator(NewEmitter(), util.NewLabelAllocator("f"), ir.WordSize)
	func() {
		defer func() {
			if _, ok := recover().(*InvariantError); !ok {
				t.Error("expected InvariantError panic for unbound identifier")
			}
		}()
		g.Dispatch(&ir.Node{Typ: ir.IDENTIFIER_DATA, Name: "x"}, Loop{})
	}()
}

// TestWordWidth verifies that only 4 byte words are supported.
func TestWordWidth(t *testing.T) {
	root, err := ir.Parse("(func f int () () (return (num int 1)))")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GenFunction(root.Children[0], 8); !errors.Is(err, ErrUnsupportedWord) {
		t.Errorf("expected ErrUnsupportedWord, got %v", err)
	}
	if _, err := GenRiscv(util.Options{TargetArch: util.Riscv64}, root); !errors.Is(err, ErrUnsupportedWord) {
		t.Errorf("expected ErrUnsupportedWord, got %v", err)
	}
}

// recordingRules records the nodes type rules are applied to.
type recordingRules struct {
	TypeRules
	applied []*ir.Node
}

func (r *recordingRules) ApplyTypeRules(n *ir.Node, reg Reg) {
	r.applied = append(r.applied, n)
	r.TypeRules.ApplyTypeRules(n, reg)
}

// TestTypeRulesApplied verifies that every binary operator finishes by applying the type rules of its node.
func TestTypeRulesApplied(t *testing.T) {
	for _, e1 := range []string{"+", "-", "*", "/", "%", "<<", ">>", "&", "|", "^",
		"&&", "||", "==", "!=", "<", "<=", ">", ">="} {
		root, err := ir.Parse("(func f int ((a int)) () (return (" + e1 + " char (id a) (num int 3))))")
		if err != nil {
			t.Fatal(err)
		}
		n := root.Children[0].Children[0].Children[0]
		em := NewEmitter()
		g := NewGenerator(em, util.NewLabelAllocator("f"), ir.WordSize)
		r := &recordingRules{TypeRules: NewTypeRules(em)}
		g.SetTypeRules(r)
		g.fn = root.Children[0].Func
		g.Dispatch(n, Loop{})
		if len(r.applied) == 0 || r.applied[len(r.applied)-1] != n {
			t.Errorf("%s: type rules not applied to the operator node last", e1)
		}
		ins := em.Instructions()
		if last := ins[len(ins)-1]; last.Op != SRAI || last.Rd != acc {
			t.Errorf("%s: expected result sign extended in the accumulator, got %s", e1, last)
		}
	}
}

// TestParallel verifies that parallel generation produces the same output as sequential generation.
func TestParallel(t *testing.T) {
	src := loops + `
(global data int[4])
(global count int)
(func a int () () (return (call f (num int 2))))
(func b int ((x int)) () (if (id x) (return (num int 1)) (return (num int 2))))
(func c int ((x char)) () (while (id x) (= (id x) (- char (id x) (num int 1)))))
`
	render := func(threads int) string {
		sb := strings.Builder{}
		if _, err := build(t, src, threads).WriteTo(&sb); err != nil {
			t.Fatal(err)
		}
		return sb.String()
	}
	seq := render(1)
	for _, e1 := range []int{2, 4, 8} {
		if diff := cmp.Diff(seq, render(e1)); diff != "" {
			t.Errorf("threads=%d: output mismatch (-sequential +parallel):\n%s", e1, diff)
		}
	}

	for _, e1 := range []string{"\t.globl\tf\n", "\t.globl\tc\n", "\nf:\n", "\t.data\n", "count:\n\t.word\t0\n", "data:\n\t.space\t16\n", "\tret\n"} {
		if !strings.Contains(seq, e1) {
			t.Errorf("expected %q in output", e1)
		}
	}
}
