// RISC-V has a downward growing stack. The generator targets RV32IM: the accumulator s1 holds the most recently
// computed value, a0, t0 and t1 are scratch registers and t2 is reserved for expanding immediates that do not fit
// in 12 bits.

package riscv

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"cgen/src/ir"
	"cgen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Reg is one of the 32 base integer registers.
type Reg int

// Data is a global variable placed in the data segment.
type Data struct {
	Name string // Label of the variable.
	Size int    // Size in bytes.
}

// Program is the generated code of a whole tree.
type Program struct {
	Funcs []Function // Functions in source order.
	Data  []Data     // Global variables in source order.
}

// Function is the generated code of a single function.
type Function struct {
	Name   string        // Name and entry label of the function.
	Text   []Instruction // Instruction stream, including label placements.
	Labels int           // Number of labels generated for the function.
	Decl   *ir.FuncDecl  // Declaration of the function.
}

// InvariantError reports a malformed tree reaching code generation.
type InvariantError struct {
	Line, Pos int
	Msg       string
}

// fatalError carries the error given to the default fatal reporter up to GenRiscv.
type fatalError struct {
	err error
}

// ---------------------
// ----- Constants -----
// ---------------------

// Base registers (integer).
const (
	x0  Reg = iota // Zero register, RO.
	x1             // Return address (caller save).
	x2             // Stack pointer (callee save).
	x3             // Global pointer.
	x4             // Thread pointer.
	x5             // Temp register (caller saved).
	x6             // Temp register (caller saved).
	x7             // Temp register (caller saved).
	x8             // Frame pointer (callee saved).
	x9             // Saved (callee saved).
	x10            // Function args and return (caller saved).
	x11            // Function args and return (caller saved).
	x12            // Function arguments (caller saved).
	x13            // Function arguments (caller saved).
	x14            // Function arguments (caller saved).
	x15            // Function arguments (caller saved).
	x16            // Function arguments (caller saved).
	x17            // Function arguments (caller saved).
	x18            // Saved (callee saved).
	x19            // Saved (callee saved).
	x20            // Saved (callee saved).
	x21            // Saved (callee saved).
	x22            // Saved (callee saved).
	x23            // Saved (callee saved).
	x24            // Saved (callee saved).
	x25            // Saved (callee saved).
	x26            // Saved (callee saved).
	x27            // Saved (callee saved).
	x28            // Temp (caller saved).
	x29            // Temp (caller saved).
	x30            // Temp (caller saved).
	x31            // Temp (caller saved).
)

// Aliases.
const (
	zero = x0 // Zero.
	ra   = x1 // Return address.
	sp   = x2 // Stack pointer.
	fp   = x8 // Frame pointer.
	a0   = x10
	a1   = x11
	t0   = x5
	t1   = x6
	t2   = x7
)

// Callee saved registers.
const (
	s1 = x9
	s2 = iota + x18 - 1
	s3
	s4
	s5
	s6
	s7
	s8
	s9
	s10
	s11
)

// acc is the accumulator register.
const acc = s1

// maxImm defines the maximum 12-bit immediate.
const maxImm = 2047

// minImm defines the minimum 12-bit immediate.
const minImm = -2048

// ErrUnsupportedWord is returned when code generation is requested for any word width but 4 bytes.
var ErrUnsupportedWord = errors.New("unsupported word width")

// regi contains the ABI names of the base integer registers.
var regi = [...]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"fp", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the ABI name of register r.
func (r Reg) String() string {
	if r < 0 || int(r) >= len(regi) {
		return fmt.Sprintf("x?%d", int(r))
	}
	return regi[r]
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("line %d:%d: internal error: %s", e.Line, e.Pos, e.Msg)
}

// GenRiscv generates RISC-V assembler for every function and global of the PROGRAM node root. Functions are
// generated in parallel when opt.Threads is greater than 1; the result is the same in either case since every
// function has its own label scope.
func GenRiscv(opt util.Options, root *ir.Node) (*Program, error) {
	word := ir.WordSize
	switch opt.TargetArch {
	case util.Riscv32, util.UnknownArch:
	case util.Riscv64:
		return nil, fmt.Errorf("%w: riscv64 uses %d byte words", ErrUnsupportedWord, 8)
	default:
		return nil, fmt.Errorf("unsupported output architecture %s", util.ArchName(opt.TargetArch))
	}
	if root == nil || root.Typ != ir.PROGRAM {
		return nil, errors.New("expected PROGRAM root node")
	}

	p := &Program{}
	var funcs []*ir.Node
	for _, e1 := range root.Children {
		switch e1.Typ {
		case ir.FUNCTION:
			funcs = append(funcs, e1)
		case ir.GLOBAL:
			p.Data = append(p.Data, Data{Name: e1.Name, Size: e1.Type.Size()})
		}
	}
	p.Funcs = make([]Function, len(funcs))

	gen := func(i int) error {
		f, err := GenFunction(funcs[i], word)
		if err != nil {
			return err
		}
		p.Funcs[i] = f
		if opt.Verbose {
			fmt.Printf("riscv: generated %q: %d instructions, %d labels\n", f.Name, len(f.Text), f.Labels)
		}
		return nil
	}

	if opt.Threads > 1 {
		// Parallel.
		var g errgroup.Group
		g.SetLimit(opt.Threads)
		for i1 := range funcs {
			i1 := i1
			g.Go(func() error { return gen(i1) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		// Sequential.
		for i1 := range funcs {
			if err := gen(i1); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// GenFunction generates the FUNCTION node n with its own emitter and label scope. Invariant violations and fatal
// reports raised while generating are returned as errors.
func GenFunction(n *ir.Node, word int) (f Function, err error) {
	if word != ir.WordSize {
		return f, fmt.Errorf("%w: %d", ErrUnsupportedWord, word)
	}
	if n == nil || n.Typ != ir.FUNCTION || n.Func == nil {
		return f, errors.New("expected FUNCTION node")
	}
	g := NewGenerator(NewEmitter(), util.NewLabelAllocator(n.Name), word)
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case fatalError:
				err = fmt.Errorf("function %q: %w", n.Name, e.err)
			case *InvariantError:
				err = fmt.Errorf("function %q: %w", n.Name, e)
			default:
				panic(r)
			}
		}
	}()
	g.genFunction(n)
	return Function{Name: n.Name, Text: g.em.Instructions(), Labels: g.labels.Count(), Decl: n.Func}, nil
}

// WriteTo renders the program as assembler text to w.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	var total int64
	wr := util.Writer{}
	wr.Write("\t.text\n")
	for _, e1 := range p.Funcs {
		wr.Write("\t.globl\t%s\n", e1.Name)
	}
	for _, e1 := range p.Funcs {
		wr.Write("\n")
		render(&wr, e1.Text)
		n, err := wr.WriteTo(w)
		total += n
		if err != nil {
			return total, err
		}
	}

	// Global variables are zero initialised.
	if len(p.Data) > 0 {
		wr.Write("\n\t.data\n")
		for _, e1 := range p.Data {
			wr.Write("\t.align\t2\n")
			wr.Label(e1.Name)
			if e1.Size == ir.WordSize {
				wr.Write("\t.word\t0\n")
			} else {
				wr.Write("\t.space\t%d\n", e1.Size)
			}
		}
	}
	n, err := wr.WriteTo(w)
	return total + n, err
}

// Lookup returns the generated function with the given name.
func (p *Program) Lookup(name string) (Function, bool) {
	for _, e1 := range p.Funcs {
		if e1.Name == name {
			return e1, true
		}
	}
	return Function{}, false
}
