package ir

import (
	"errors"
	"fmt"
)

// ----------------------
// ----- Functions ------
// ----------------------

// ValidateTree checks the shape of a decorated syntax tree: child counts per node type, bound declarations and
// call targets. Code generation trusts its input; ValidateTree is run by the driver on trees that did not come
// from Parse.
func ValidateTree(root *Node) error {
	if root == nil {
		return errors.New("syntax tree node is <nil>")
	}
	if root.Typ != PROGRAM {
		return fmt.Errorf("expected PROGRAM root, got %s", root.Typ)
	}
	for _, e1 := range root.Children {
		switch e1.Typ {
		case GLOBAL:
			if e1.Decl == nil {
				return fmt.Errorf("line %d:%d: global %q has no declaration", e1.Line, e1.Pos, e1.Name)
			}
		case FUNCTION:
			if e1.Func == nil || len(e1.Children) != 1 {
				return fmt.Errorf("line %d:%d: function %q has no declaration or body", e1.Line, e1.Pos, e1.Name)
			}
			if err := e1.Children[0].validate(); err != nil {
				return fmt.Errorf("function %q: %w", e1.Name, err)
			}
		default:
			return fmt.Errorf("line %d:%d: expected FUNCTION or GLOBAL, got %s", e1.Line, e1.Pos, e1.Typ)
		}
	}
	return nil
}

// validate recursively checks the sub-tree of n.
func (n *Node) validate() error {
	if n == nil {
		return errors.New("syntax tree node is <nil>")
	}
	want := func(lo, hi int) error {
		if len(n.Children) < lo || len(n.Children) > hi {
			return fmt.Errorf("line %d:%d: %s expects %d to %d children, got %d",
				n.Line, n.Pos, n.Typ, lo, hi, len(n.Children))
		}
		return nil
	}

	var err error
	switch {
	case n.Typ == BLOCK:
	case n.Typ == IF_STATEMENT:
		err = want(2, 3)
	case n.Typ == WHILE_STATEMENT:
		err = want(2, 2)
	case n.Typ == RETURN_STATEMENT:
		err = want(0, 1)
	case n.Typ == BREAK_STATEMENT, n.Typ == CONTINUE_STATEMENT, n.Typ == NULL_DATA, n.Typ == INTEGER_DATA:
		err = want(0, 0)
	case n.Typ == IDENTIFIER_DATA:
		if err = want(0, 0); err == nil && n.Decl == nil {
			err = fmt.Errorf("line %d:%d: identifier %q is not bound to a declaration", n.Line, n.Pos, n.Name)
		}
	case n.Typ == CALL_EXPRESSION:
		if n.Func == nil {
			err = fmt.Errorf("line %d:%d: call to %q has no callee declaration", n.Line, n.Pos, n.Name)
		} else {
			err = want(len(n.Func.Params), len(n.Func.Params))
		}
	case n.Typ == ASSIGNMENT:
		if err = want(2, 2); err == nil {
			if lhs := n.Children[0]; lhs.Typ != IDENTIFIER_DATA && lhs.Typ != DEREFERENCE {
				err = fmt.Errorf("line %d:%d: cannot assign to %s", lhs.Line, lhs.Pos, lhs.Typ)
			}
		}
	case n.Typ.Unary():
		err = want(1, 1)
	case n.Typ.Binary():
		err = want(2, 2)
	default:
		err = fmt.Errorf("line %d:%d: unexpected %s inside function body", n.Line, n.Pos, n.Typ)
	}
	if err != nil {
		return err
	}

	for _, e1 := range n.Children {
		if err := e1.validate(); err != nil {
			return err
		}
	}
	return nil
}
