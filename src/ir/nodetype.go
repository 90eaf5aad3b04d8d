package ir

import (
	"fmt"
	"io"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// NodeType differentiates the kinds of nodes in the decorated syntax tree.
type NodeType int

// Node represents a single node in the decorated syntax tree. Nodes are produced by the decoration stage and are
// never modified by code generation.
type Node struct {
	Typ      NodeType  // The kind of Node, i.e. binary addition, identifier or while statement.
	Line     int       // Line in the tree file Node is declared.
	Pos      int       // Position on the line in the tree file Node is declared.
	Type     Type      // Resolved type of the value the node produces.
	Size     int       // Storage size in bytes of the value the node produces.
	Value    int       // Literal value of INTEGER_DATA nodes.
	Name     string    // Identifier or callee name.
	Decl     *Decl     // Variable declaration bound to IDENTIFIER_DATA nodes.
	Func     *FuncDecl // Callee of CALL_EXPRESSION nodes, or the function defined by FUNCTION nodes.
	Children []*Node   // Children of this node that constitutes its local sub-tree.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	PROGRAM NodeType = iota
	FUNCTION
	GLOBAL
	BLOCK
	IF_STATEMENT
	WHILE_STATEMENT
	RETURN_STATEMENT
	BREAK_STATEMENT
	CONTINUE_STATEMENT
	INTEGER_DATA
	NULL_DATA
	IDENTIFIER_DATA
	CALL_EXPRESSION
	ASSIGNMENT
	ADDRESS_OF
	DEREFERENCE
	NEGATE
	BIT_NOT
	LOGIC_NOT
	BIT_AND
	BIT_OR
	BIT_XOR
	LOGIC_AND
	LOGIC_OR
	EQ
	NOT_EQ
	ADD
	SUB
	MUL
	DIV
	MOD
	LSH
	RSH
	LT
	LT_EQ
	GT
	GT_EQ
)

// nt provides an array of strings used for printing NodeType in a print friendly manner.
var nt = [...]string{
	"PROGRAM",
	"FUNCTION",
	"GLOBAL",
	"BLOCK",
	"IF_STATEMENT",
	"WHILE_STATEMENT",
	"RETURN_STATEMENT",
	"BREAK_STATEMENT",
	"CONTINUE_STATEMENT",
	"INTEGER_DATA",
	"NULL_DATA",
	"IDENTIFIER_DATA",
	"CALL_EXPRESSION",
	"ASSIGNMENT",
	"ADDRESS_OF",
	"DEREFERENCE",
	"NEGATE",
	"BIT_NOT",
	"LOGIC_NOT",
	"BIT_AND",
	"BIT_OR",
	"BIT_XOR",
	"LOGIC_AND",
	"LOGIC_OR",
	"EQ",
	"NOT_EQ",
	"ADD",
	"SUB",
	"MUL",
	"DIV",
	"MOD",
	"LSH",
	"RSH",
	"LT",
	"LT_EQ",
	"GT",
	"GT_EQ",
}

// ----------------------
// ----- functions ------
// ----------------------

// String returns a print friendly string of NodeType t.
func (t NodeType) String() string {
	if t < 0 || int(t) >= len(nt) {
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
	return nt[t]
}

// Binary returns true if nodes of type t are binary operators.
func (t NodeType) Binary() bool {
	return t >= BIT_AND && t <= GT_EQ
}

// Unary returns true if nodes of type t are unary operators.
func (t NodeType) Unary() bool {
	return t >= ADDRESS_OF && t <= LOGIC_NOT
}

// String returns a print friendly string of Node n.
func (n *Node) String() string {
	if n == nil {
		return "---> [NIL POINTER]"
	}
	if n.Typ < 0 || int(n.Typ) >= len(nt) {
		// This Node has been mis-configured.
		return fmt.Sprintf("---> MISCONFIGURED NODE [Node.Typ = %d]", int(n.Typ))
	}

	switch n.Typ {
	case INTEGER_DATA:
		return fmt.Sprintf("%s [%d] %s", nt[n.Typ], n.Value, n.Type)
	case IDENTIFIER_DATA, CALL_EXPRESSION, FUNCTION, GLOBAL:
		return fmt.Sprintf("%s [%q] %s", nt[n.Typ], n.Name, n.Type)
	}
	if n.Typ.Binary() || n.Typ.Unary() || n.Typ == ASSIGNMENT {
		return fmt.Sprintf("%s %s", nt[n.Typ], n.Type)
	}
	return nt[n.Typ]
}

// Print recursively prints this Node and all its Children to w while indenting for every recursive call.
// depth is the number of times nodes are padded to the right, having the root node with padding 0.
func (n *Node) Print(w io.Writer, depth int) {
	if depth < 0 {
		depth = 0
	}
	pad := strings.Repeat("  ", depth)
	if n == nil {
		_, _ = fmt.Fprintf(w, "%s---> NIL\n", pad)
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", pad, n.String())
	for _, e1 := range n.Children {
		e1.Print(w, depth+1)
	}
}

// PointerLike returns true if the value produced by n is a pointer or an array.
func (n *Node) PointerLike() bool {
	return n.Type.PointerLike()
}
