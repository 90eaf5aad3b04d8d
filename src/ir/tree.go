// tree.go reads decorated syntax trees from their s-expression notation. Besides building the nodes the reader
// performs the decoration a tree file cannot spell out: identifiers are bound to their declarations, identifier,
// call, assignment, address-of and dereference nodes inherit their types, and parameter and local offsets are
// assigned.

package ir

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/tools/txtar"

	"cgen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// sexpr is either an atom or a parenthesised list of s-expressions.
type sexpr struct {
	atom   string   // Atom text, empty for lists.
	list   []*sexpr // Elements of a list.
	isList bool     // Set true for lists.
	line   int      // Line of the atom or the opening parenthesis.
	pos    int      // Position on the line.
}

// decorator binds names while building nodes from s-expressions.
type decorator struct {
	globals map[string]*Decl
	funcs   map[string]*FuncDecl
	locals  map[string]*Decl // Parameters and locals of the function currently being built.
}

// ---------------------
// ----- Constants -----
// ---------------------

// TreeFile is the name of the archive member holding the tree when reading txtar archives.
const TreeFile = "tree"

// unary maps tree file operators of unary expressions to node types.
var unary = map[string]NodeType{
	"neg":  NEGATE,
	"not":  BIT_NOT,
	"lnot": LOGIC_NOT,
}

// binary maps tree file operators of binary expressions to node types.
var binary = map[string]NodeType{
	"&":  BIT_AND,
	"|":  BIT_OR,
	"^":  BIT_XOR,
	"&&": LOGIC_AND,
	"||": LOGIC_OR,
	"==": EQ,
	"!=": NOT_EQ,
	"+":  ADD,
	"-":  SUB,
	"*":  MUL,
	"/":  DIV,
	"%":  MOD,
	"<<": LSH,
	">>": RSH,
	"<":  LT,
	"<=": LT_EQ,
	">":  GT,
	">=": GT_EQ,
}

// ---------------------
// ----- functions -----
// ---------------------

// ParseFile parses the tree held by data. Files with the extension .txtar are read as txtar archives and the tree
// is taken from the member named TreeFile.
func ParseFile(name string, data []byte) (*Node, error) {
	if filepath.Ext(name) != ".txtar" {
		return Parse(string(data))
	}
	a := txtar.Parse(data)
	for _, e1 := range a.Files {
		if e1.Name == TreeFile {
			return Parse(string(e1.Data))
		}
	}
	return nil, fmt.Errorf("archive %s has no %q member", name, TreeFile)
}

// Parse parses a decorated syntax tree from its s-expression notation and returns the PROGRAM root node.
func Parse(src string) (*Node, error) {
	forms, err := read(src)
	if err != nil {
		return nil, err
	}

	d := decorator{
		globals: make(map[string]*Decl),
		funcs:   make(map[string]*FuncDecl),
	}
	root := &Node{Typ: PROGRAM, Line: 1, Pos: 1}

	// Declare all globals and function headers first, so that calls may refer to functions defined later.
	bodies := make(map[*FuncDecl]*sexpr)
	for _, e1 := range forms {
		if !e1.isList || len(e1.list) == 0 || e1.list[0].isList {
			return nil, fmt.Errorf("line %d:%d: expected global or func declaration", e1.line, e1.pos)
		}
		switch e1.list[0].atom {
		case "global":
			n, err := d.global(e1)
			if err != nil {
				return nil, err
			}
			root.Children = append(root.Children, n)
		case "func":
			n, body, err := d.header(e1)
			if err != nil {
				return nil, err
			}
			bodies[n.Func] = body
			root.Children = append(root.Children, n)
		default:
			return nil, fmt.Errorf("line %d:%d: expected global or func declaration, got %q",
				e1.line, e1.pos, e1.list[0].atom)
		}
	}

	// Build function bodies.
	for _, e1 := range root.Children {
		if e1.Typ != FUNCTION {
			continue
		}
		f := e1.Func
		d.locals = make(map[string]*Decl, len(f.Params)+len(f.Locals))
		for _, e2 := range f.Params {
			d.locals[e2.Name] = e2
		}
		for _, e2 := range f.Locals {
			if _, ok := d.locals[e2.Name]; ok {
				return nil, fmt.Errorf("line %d:%d: duplicate declaration of %q in function %q",
					e1.Line, e1.Pos, e2.Name, f.Name)
			}
			d.locals[e2.Name] = e2
		}
		body, err := d.node(bodies[f])
		if err != nil {
			return nil, err
		}
		e1.Children = []*Node{body}
	}
	return root, nil
}

// read splits src into top level s-expressions. Comments start with ';' and run to the end of the line.
func read(src string) ([]*sexpr, error) {
	var forms []*sexpr
	var open util.Stack[*sexpr]
	line, pos := 1, 0

	add := func(s *sexpr) {
		if top, ok := open.Peek(); ok {
			top.list = append(top.list, s)
		} else {
			forms = append(forms, s)
		}
	}

	for i1 := 0; i1 < len(src); i1++ {
		c := src[i1]
		pos++
		switch {
		case c == '\n':
			line++
			pos = 0
		case c == ' ' || c == '\t' || c == '\r':
		case c == ';':
			for i1+1 < len(src) && src[i1+1] != '\n' {
				i1++
			}
		case c == '(':
			s := &sexpr{isList: true, line: line, pos: pos}
			add(s)
			open.Push(s)
		case c == ')':
			if _, ok := open.Pop(); !ok {
				return nil, fmt.Errorf("line %d:%d: unbalanced ')'", line, pos)
			}
		default:
			start, spos := i1, pos
			for i1+1 < len(src) && !strings.ContainsRune(" \t\r\n();", rune(src[i1+1])) {
				i1++
				pos++
			}
			add(&sexpr{atom: src[start : i1+1], line: line, pos: spos})
		}
	}
	if s, ok := open.Peek(); ok {
		return nil, fmt.Errorf("line %d:%d: unterminated list", s.line, s.pos)
	}
	if len(forms) == 0 {
		return nil, errors.New("tree is empty")
	}
	return forms, nil
}

// global builds a GLOBAL node from (global NAME TYPE).
func (d *decorator) global(s *sexpr) (*Node, error) {
	if len(s.list) != 3 || s.list[1].isList || s.list[2].isList {
		return nil, fmt.Errorf("line %d:%d: expected (global NAME TYPE)", s.line, s.pos)
	}
	name := s.list[1].atom
	if err := checkName(s.list[1]); err != nil {
		return nil, err
	}
	t, err := ParseType(s.list[2].atom)
	if err != nil {
		return nil, fmt.Errorf("line %d:%d: %s", s.list[2].line, s.list[2].pos, err)
	}
	if _, ok := d.globals[name]; ok {
		return nil, fmt.Errorf("line %d:%d: duplicate global %q", s.line, s.pos, name)
	}
	decl := &Decl{Typ: SymGlobal, Name: name, Type: t, Seq: len(d.globals)}
	d.globals[name] = decl
	return &Node{Typ: GLOBAL, Line: s.line, Pos: s.pos, Name: name, Type: t, Size: t.Size(), Decl: decl}, nil
}

// header builds the FUNCTION node and declaration of (func NAME RET PARAMS LOCALS BODY). The body is returned
// unparsed.
func (d *decorator) header(s *sexpr) (*Node, *sexpr, error) {
	if len(s.list) != 6 || s.list[1].isList || s.list[2].isList || !s.list[3].isList || !s.list[4].isList {
		return nil, nil, fmt.Errorf("line %d:%d: expected (func NAME RET (PARAMS) (LOCALS) BODY)", s.line, s.pos)
	}
	name := s.list[1].atom
	if err := checkName(s.list[1]); err != nil {
		return nil, nil, err
	}
	if _, ok := d.funcs[name]; ok {
		return nil, nil, fmt.Errorf("line %d:%d: duplicate function %q", s.line, s.pos, name)
	}
	ret, err := ParseType(s.list[2].atom)
	if err != nil {
		return nil, nil, fmt.Errorf("line %d:%d: %s", s.list[2].line, s.list[2].pos, err)
	}
	f := &FuncDecl{Name: name, Ret: ret}
	if f.Params, err = declList(s.list[3], SymParam); err != nil {
		return nil, nil, err
	}
	if f.Locals, err = declList(s.list[4], SymLocal); err != nil {
		return nil, nil, err
	}

	offsets, _, _, err := ArgLayout(f)
	if err != nil {
		return nil, nil, fmt.Errorf("line %d:%d: %w", s.line, s.pos, err)
	}
	for i1, e1 := range f.Params {
		e1.Offset = offsets[i1]
	}
	LayoutLocals(f)

	n := &Node{Typ: FUNCTION, Line: s.line, Pos: s.pos, Name: name, Type: ret, Size: ret.Size(), Func: f}
	f.Node = n
	d.funcs[name] = f
	return n, s.list[5], nil
}

// checkName fails unless the atom s is an identifier: a letter or underscore followed by letters, digits and
// underscores. Generated labels start with a dot and never collide with identifiers.
func checkName(s *sexpr) error {
	for i1, e1 := range s.atom {
		if e1 == '_' || 'a' <= e1 && e1 <= 'z' || 'A' <= e1 && e1 <= 'Z' || i1 > 0 && '0' <= e1 && e1 <= '9' {
			continue
		}
		return fmt.Errorf("line %d:%d: invalid identifier %q", s.line, s.pos, s.atom)
	}
	if len(s.atom) == 0 {
		return fmt.Errorf("line %d:%d: empty identifier", s.line, s.pos)
	}
	return nil
}

// declList parses a list of (NAME TYPE) pairs.
func declList(s *sexpr, typ symType) ([]*Decl, error) {
	decls := make([]*Decl, 0, len(s.list))
	seen := make(map[string]bool, len(s.list))
	for i1, e1 := range s.list {
		if !e1.isList || len(e1.list) != 2 || e1.list[0].isList || e1.list[1].isList {
			return nil, fmt.Errorf("line %d:%d: expected (NAME TYPE)", e1.line, e1.pos)
		}
		name := e1.list[0].atom
		if err := checkName(e1.list[0]); err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, fmt.Errorf("line %d:%d: duplicate %s %q", e1.line, e1.pos, typ, name)
		}
		seen[name] = true
		t, err := ParseType(e1.list[1].atom)
		if err != nil {
			return nil, fmt.Errorf("line %d:%d: %s", e1.list[1].line, e1.list[1].pos, err)
		}
		decls = append(decls, &Decl{Typ: typ, Name: name, Type: t, Seq: i1})
	}
	return decls, nil
}

// node recursively builds the node of a statement or expression.
func (d *decorator) node(s *sexpr) (*Node, error) {
	if !s.isList || len(s.list) == 0 || s.list[0].isList {
		return nil, fmt.Errorf("line %d:%d: expected statement or expression, got %q", s.line, s.pos, s.atom)
	}
	op := s.list[0].atom
	args := s.list[1:]
	n := &Node{Line: s.line, Pos: s.pos}

	arity := func(lo, hi int) error {
		if len(args) < lo || len(args) > hi {
			return fmt.Errorf("line %d:%d: %q takes %d to %d operands, got %d", s.line, s.pos, op, lo, hi, len(args))
		}
		return nil
	}

	switch op {
	case "block":
		n.Typ = BLOCK
		if err := d.children(n, args); err != nil {
			return nil, err
		}
	case "if":
		if err := arity(2, 3); err != nil {
			return nil, err
		}
		n.Typ = IF_STATEMENT
		if err := d.children(n, args); err != nil {
			return nil, err
		}
	case "while":
		if err := arity(2, 2); err != nil {
			return nil, err
		}
		n.Typ = WHILE_STATEMENT
		if err := d.children(n, args); err != nil {
			return nil, err
		}
	case "return":
		if err := arity(0, 1); err != nil {
			return nil, err
		}
		n.Typ = RETURN_STATEMENT
		if err := d.children(n, args); err != nil {
			return nil, err
		}
	case "break", "continue":
		if err := arity(0, 0); err != nil {
			return nil, err
		}
		n.Typ = BREAK_STATEMENT
		if op == "continue" {
			n.Typ = CONTINUE_STATEMENT
		}
	case "num":
		if err := arity(2, 2); err != nil {
			return nil, err
		}
		n.Typ = INTEGER_DATA
		t, err := d.typ(args[0])
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(args[1].atom, 0, 64)
		if err != nil || args[1].isList {
			return nil, fmt.Errorf("line %d:%d: expected integer literal", args[1].line, args[1].pos)
		}
		n.Type, n.Value = t, int(v)
	case "null":
		if err := arity(0, 0); err != nil {
			return nil, err
		}
		n.Typ = NULL_DATA
		n.Type = Type{Base: Null}
	case "id":
		if err := arity(1, 1); err != nil {
			return nil, err
		}
		n.Typ = IDENTIFIER_DATA
		n.Name = args[0].atom
		if decl, ok := d.locals[n.Name]; ok {
			n.Decl = decl
		} else if decl, ok := d.globals[n.Name]; ok {
			n.Decl = decl
		} else {
			return nil, fmt.Errorf("line %d:%d: undeclared identifier %q", s.line, s.pos, n.Name)
		}
		n.Type = n.Decl.Type
	case "call":
		if len(args) < 1 || args[0].isList {
			return nil, fmt.Errorf("line %d:%d: expected (call NAME ARGS...)", s.line, s.pos)
		}
		n.Typ = CALL_EXPRESSION
		n.Name = args[0].atom
		f, ok := d.funcs[n.Name]
		if !ok {
			return nil, fmt.Errorf("line %d:%d: undeclared function %q", s.line, s.pos, n.Name)
		}
		if len(args)-1 != len(f.Params) {
			return nil, fmt.Errorf("line %d:%d: function %q expects %d arguments, got %d",
				s.line, s.pos, n.Name, len(f.Params), len(args)-1)
		}
		n.Func = f
		n.Type = f.Ret
		if err := d.children(n, args[1:]); err != nil {
			return nil, err
		}
	case "=":
		if err := arity(2, 2); err != nil {
			return nil, err
		}
		n.Typ = ASSIGNMENT
		if err := d.children(n, args); err != nil {
			return nil, err
		}
		lhs := n.Children[0]
		if lhs.Typ != IDENTIFIER_DATA && lhs.Typ != DEREFERENCE {
			return nil, fmt.Errorf("line %d:%d: cannot assign to %s", lhs.Line, lhs.Pos, lhs.Typ)
		}
		if lhs.Type.Arr() > 0 {
			return nil, fmt.Errorf("line %d:%d: cannot assign to array", lhs.Line, lhs.Pos)
		}
		n.Type = lhs.Type
	case "addr":
		if err := arity(1, 1); err != nil {
			return nil, err
		}
		n.Typ = ADDRESS_OF
		if err := d.children(n, args); err != nil {
			return nil, err
		}
		c := n.Children[0]
		if c.Typ != IDENTIFIER_DATA && c.Typ != DEREFERENCE {
			return nil, fmt.Errorf("line %d:%d: cannot take address of %s", c.Line, c.Pos, c.Typ)
		}
		n.Type = c.Type
		if n.Type.Arr() > 0 {
			n.Type = n.Type.Elem()
		}
		n.Type.Ptr++
	case "deref":
		if err := arity(1, 1); err != nil {
			return nil, err
		}
		n.Typ = DEREFERENCE
		if err := d.children(n, args); err != nil {
			return nil, err
		}
		c := n.Children[0]
		if !c.PointerLike() {
			return nil, fmt.Errorf("line %d:%d: cannot dereference %s", c.Line, c.Pos, c.Type)
		}
		n.Type = c.Type.Elem()
	default:
		var ok bool
		if n.Typ, ok = unary[op]; ok {
			if err := arity(2, 2); err != nil {
				return nil, err
			}
		} else if n.Typ, ok = binary[op]; ok {
			if err := arity(3, 3); err != nil {
				return nil, err
			}
		} else {
			return nil, fmt.Errorf("line %d:%d: unknown operator %q", s.line, s.pos, op)
		}
		t, err := d.typ(args[0])
		if err != nil {
			return nil, err
		}
		n.Type = t
		if err := d.children(n, args[1:]); err != nil {
			return nil, err
		}
	}
	n.Size = n.Type.Size()
	return n, nil
}

// children builds the nodes of args and appends them to n.
func (d *decorator) children(n *Node, args []*sexpr) error {
	for _, e1 := range args {
		c, err := d.node(e1)
		if err != nil {
			return err
		}
		n.Children = append(n.Children, c)
	}
	return nil
}

// typ parses the type atom s.
func (d *decorator) typ(s *sexpr) (Type, error) {
	if s.isList {
		return Type{}, fmt.Errorf("line %d:%d: expected type", s.line, s.pos)
	}
	t, err := ParseType(s.atom)
	if err != nil {
		return t, fmt.Errorf("line %d:%d: %s", s.line, s.pos, err)
	}
	return t, nil
}
