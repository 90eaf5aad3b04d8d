package ir

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sample = `
; Sums the elements of a global array.
(global data int[4])
(global count int)
(func sum int ((p int*) (n char)) ((i int) (s int))
  (block
    (= (id s) (num int 0))
    (while (< int (id i) (id n))
      (block
        (= (id s) (+ int (id s) (deref (+ int* (id p) (id i)))))
        (= (id i) (+ int (id i) (num int 1)))))
    (return (id s))))
(func main int () ()
  (return (call sum (id data) (num char 4))))
`

func TestParse(t *testing.T) {
	root, err := Parse(sample)
	if err != nil {
		t.Fatal(err)
	}
	if root.Typ != PROGRAM || len(root.Children) != 4 {
		t.Fatalf("expected PROGRAM with 4 children, got %s with %d", root.Typ, len(root.Children))
	}
	if err := ValidateTree(root); err != nil {
		t.Fatalf("parsed tree does not validate: %s", err)
	}

	kinds := make([]NodeType, len(root.Children))
	for i1, e1 := range root.Children {
		kinds[i1] = e1.Typ
	}
	if diff := cmp.Diff([]NodeType{GLOBAL, GLOBAL, FUNCTION, FUNCTION}, kinds); diff != "" {
		t.Errorf("top level mismatch (-want +got):\n%s", diff)
	}

	sum := root.Children[2].Func
	if sum.Name != "sum" || len(sum.Params) != 2 || len(sum.Locals) != 2 {
		t.Fatalf("unexpected declaration of sum: %+v", sum)
	}
	if sum.Params[0].Offset != 0 || sum.Params[1].Offset != 4 {
		t.Errorf("unexpected parameter offsets %d and %d", sum.Params[0].Offset, sum.Params[1].Offset)
	}
	if sum.LocalsSize != 8 {
		t.Errorf("expected locals size 8, got %d", sum.LocalsSize)
	}

	// Identifiers are bound to their declarations and inherit their types.
	call := root.Children[3].Children[0].Children[0]
	if call.Typ != CALL_EXPRESSION || call.Func != sum {
		t.Fatalf("expected call bound to sum, got %s", call)
	}
	arg := call.Children[0]
	if arg.Decl == nil || arg.Decl.Typ != SymGlobal || arg.Type.String() != "int[4]" {
		t.Errorf("unexpected argument %s bound to %+v", arg, arg.Decl)
	}

	deref := findNode(root, DEREFERENCE)
	if deref == nil || deref.Type.String() != "int" {
		t.Errorf("expected dereference of type int, got %v", deref)
	}
}

func findNode(n *Node, typ NodeType) *Node {
	if n.Typ == typ {
		return n
	}
	for _, e1 := range n.Children {
		if f := findNode(e1, typ); f != nil {
			return f
		}
	}
	return nil
}

func TestParseAddressOf(t *testing.T) {
	root, err := Parse(`(func f int () ((a char[4]) (x int))
  (block (return (addr (id x))) (return (addr (id a)))))`)
	if err != nil {
		t.Fatal(err)
	}
	body := root.Children[0].Children[0]
	if got := body.Children[0].Children[0].Type.String(); got != "int*" {
		t.Errorf("expected &x of type int*, got %s", got)
	}
	if got := body.Children[1].Children[0].Type.String(); got != "char*" {
		t.Errorf("expected &a of type char*, got %s", got)
	}
}

func TestParseFileTxtar(t *testing.T) {
	data := []byte("-- comment --\nanything\n-- tree --\n(func main int () () (return (num int 7)))\n")
	root, err := ParseFile("prog.txtar", data)
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Children) != 1 || root.Children[0].Name != "main" {
		t.Errorf("unexpected tree %v", root.Children)
	}
	if _, err := ParseFile("prog.txtar", []byte("-- other --\n")); err == nil {
		t.Error("expected error for archive without tree member")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"empty", "", "empty"},
		{"unbalanced", "(func f int () () (block)))", "unbalanced"},
		{"unterminated", "(func f int () () (block)", "unterminated"},
		{"undeclared", "(func f int () () (return (id x)))", "undeclared identifier"},
		{"unknown function", "(func f int () () (return (call g)))", "undeclared function"},
		{"arguments", "(func f int ((a int)) () (return (call f)))", "expects 1 arguments"},
		{"operator", "(func f int () () (return (** int (num int 1) (num int 2))))", "unknown operator"},
		{"arity", "(func f int () () (return (+ int (num int 1))))", "operands"},
		{"assign", "(func f int () () (= (num int 1) (num int 2)))", "cannot assign"},
		{"deref", "(func f int ((a int)) () (return (deref (id a))))", "cannot dereference"},
		{"duplicate", "(global x int) (global x int)", "duplicate global"},
		{"type", "(global x float)", "unknown base type"},
		{"top level", "(block)", "expected global or func"},
		{"function name", "(func .Lf_000 int () () (block))", "invalid identifier"},
		{"global name", "(global 1x int)", "invalid identifier"},
		{"parameter name", "(func f int ((a.b int)) () (block))", "invalid identifier"},
		{"local name", "(func f int () ((x-1 int)) (block))", "invalid identifier"},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			_, err := Parse(e1.src)
			if err == nil {
				t.Fatalf("expected error containing %q", e1.msg)
			}
			if !strings.Contains(err.Error(), e1.msg) {
				t.Errorf("expected error containing %q, got %q", e1.msg, err)
			}
		})
	}
}

func TestPrint(t *testing.T) {
	root, err := Parse("(func main int () () (return (num int 7)))")
	if err != nil {
		t.Fatal(err)
	}
	buf := bytes.Buffer{}
	root.Print(&buf, 0)
	exp := "PROGRAM\n  FUNCTION [\"main\"] int\n    RETURN_STATEMENT\n      INTEGER_DATA [7] int\n"
	if diff := cmp.Diff(exp, buf.String()); diff != "" {
		t.Errorf("print mismatch (-want +got):\n%s", diff)
	}
}
