package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Writer buffers assembler text in a strings.Builder. Each function is rendered into its own Writer and the
// buffers are written to the output in source order by WriteTo.
type Writer struct {
	sb strings.Builder
}

// ---------------------
// ----- Constants -----
// ---------------------

// stdinTimeout is how long ReadSource waits for input on stdin when no source file is given.
const stdinTimeout = 500 * time.Millisecond

// ---------------------
// ----- Functions -----
// ---------------------

// Write writes a format string to the Writer's buffer.
func (w *Writer) Write(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(&w.sb, format, args...)
}

// Ins0 writes a one-line instruction without operands.
func (w *Writer) Ins0(op string) {
	_, _ = fmt.Fprintf(&w.sb, "\t%s\n", op)
}

// Ins1 writes a one-line instruction using the operator and single operand.
func (w *Writer) Ins1(op, rs1 string) {
	_, _ = fmt.Fprintf(&w.sb, "\t%s\t%s\n", op, rs1)
}

// Ins2 writes a one-line instruction using the operator, destination register and single source register.
func (w *Writer) Ins2(op, rd, rs1 string) {
	_, _ = fmt.Fprintf(&w.sb, "\t%s\t%s, %s\n", op, rd, rs1)
}

// Ins2imm writes a one-line instruction using the operator, destination register, single source register and
// signed immediate.
func (w *Writer) Ins2imm(op, rd, rs1 string, imm int) {
	_, _ = fmt.Fprintf(&w.sb, "\t%s\t%s, %s, %d\n", op, rd, rs1, imm)
}

// Ins3 writes a one-line instruction using the operator, destination register and two source registers.
func (w *Writer) Ins3(op, rd, rs1, rs2 string) {
	_, _ = fmt.Fprintf(&w.sb, "\t%s\t%s, %s, %s\n", op, rd, rs1, rs2)
}

// LoadStore writes a one-line load or store instruction addressing imm(base).
func (w *Writer) LoadStore(op, r, base string, imm int) {
	_, _ = fmt.Fprintf(&w.sb, "\t%s\t%s, %d(%s)\n", op, r, imm, base)
}

// Label writes a one-line label with the given name.
func (w *Writer) Label(name string) {
	_, _ = fmt.Fprintf(&w.sb, "%s:\n", name)
}

// Len returns the number of buffered bytes.
func (w *Writer) Len() int {
	return w.sb.Len()
}

// String returns the buffered text.
func (w *Writer) String() string {
	return w.sb.String()
}

// WriteTo writes the buffered text to out and empties the buffer.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	n, err := io.WriteString(out, w.sb.String())
	w.sb.Reset()
	return int64(n), err
}

// ReadSource reads the tree from file or stdin.
// If the Options structure holds a string for source the file will be opened and read.
// Else the function waits for a short period for input on stdin. If no input on stdin is
// provided the function returns an error.
func ReadSource(opt Options) ([]byte, error) {
	if len(opt.Src) > 0 {
		return os.ReadFile(opt.Src)
	}

	type result struct {
		b   []byte
		err error
	}
	c := make(chan result, 1)
	go func() {
		b, err := io.ReadAll(os.Stdin)
		c <- result{b: b, err: err}
	}()

	select {
	case <-time.After(stdinTimeout):
		return nil, errors.New("expected input from stdin, got none")
	case r := <-c:
		if r.err == nil && len(r.b) == 0 {
			return nil, errors.New("expected input from stdin, got none")
		}
		return r.b, r.err
	}
}
