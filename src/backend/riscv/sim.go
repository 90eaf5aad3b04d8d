// sim.go executes generated programs on a minimal RV32IM machine. Instructions are executed in their symbolic
// form; the program counter is an index into the concatenated instruction streams of all functions.

package riscv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"cgen/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Machine is a RV32IM machine with little-endian byte memory.
type Machine struct {
	Regs     [32]uint32
	PC       int
	Mem      []byte
	Steps    int // Instructions executed by the last Call.
	MaxSteps int // Call fails with ErrStepLimit after this many instructions.
	Halted   bool

	// Trace, if set, is called with the index and instruction before each instruction is executed.
	Trace func(pc int, ins Instruction)

	text    []Instruction
	labels  map[string]int
	globals map[string]uint32
	funcs   map[string]*ir.FuncDecl
	halt    int
}

// ---------------------
// ----- Constants -----
// ---------------------

// DefaultMemory is the memory size of machines created by NewMachine.
const DefaultMemory = 1 << 20

// DefaultMaxSteps is the default step limit.
const DefaultMaxSteps = 1 << 24

// dataBase is the address of the first global variable.
const dataBase = 0x1000

var (
	ErrStepLimit    = errors.New("step limit exceeded")
	ErrMemory       = errors.New("memory access out of bounds")
	ErrUndefined    = errors.New("undefined symbol")
	ErrClobbered    = errors.New("callee saved register not preserved")
	ErrStackBalance = errors.New("stack pointer not restored")
)

// ---------------------
// ----- Functions -----
// ---------------------

// NewMachine loads the program p into a new machine.
func NewMachine(p *Program) (*Machine, error) {
	m := &Machine{
		Mem:      make([]byte, DefaultMemory),
		MaxSteps: DefaultMaxSteps,
		labels:   make(map[string]int),
		globals:  make(map[string]uint32),
		funcs:    make(map[string]*ir.FuncDecl),
	}
	for _, e1 := range p.Funcs {
		m.funcs[e1.Name] = e1.Decl
		for _, e2 := range e1.Text {
			if e2.Op == LABEL {
				if _, ok := m.labels[e2.Sym]; ok {
					return nil, fmt.Errorf("label %q placed twice", e2.Sym)
				}
				m.labels[e2.Sym] = len(m.text)
			}
			m.text = append(m.text, e2)
		}
	}
	m.halt = len(m.text)

	addr := uint32(dataBase)
	for _, e1 := range p.Data {
		if _, ok := m.globals[e1.Name]; ok {
			return nil, fmt.Errorf("global %q defined twice", e1.Name)
		}
		m.globals[e1.Name] = addr
		addr += uint32(e1.Size)
		addr = (addr + 3) &^ 3
	}
	if int(addr) > len(m.Mem)/2 {
		return nil, fmt.Errorf("%w: data segment of %d bytes", ErrMemory, addr)
	}
	return m, nil
}

// Global returns the address of the global variable name.
func (m *Machine) Global(name string) (uint32, bool) {
	a, ok := m.globals[name]
	return a, ok
}

// Call runs the function fn with the arguments args, stored on the stack the way generated callers store them,
// and returns the value of a0. Call fails if the stack pointer or any callee saved register differs from its
// value before the call.
func (m *Machine) Call(fn string, args ...int) (int32, error) {
	decl, ok := m.funcs[fn]
	if !ok {
		return 0, fmt.Errorf("%w: function %q", ErrUndefined, fn)
	}
	if decl != nil && len(args) != len(decl.Params) {
		return 0, fmt.Errorf("function %q expects %d arguments, got %d", fn, len(decl.Params), len(args))
	}

	m.Regs = [32]uint32{}
	top := uint32(len(m.Mem))
	m.Regs[sp] = top
	m.Regs[ra] = uint32(m.halt)
	for i1, e1 := range saved {
		if e1 != ra {
			m.Regs[e1] = 0x5a5a0000 + uint32(i1)
		}
	}
	m.Regs[fp] = 0x5a5a00ff
	before := m.Regs

	total := 0
	if len(args) > 0 {
		offsets, sizes, n, err := ir.ArgLayout(decl)
		if err != nil {
			return 0, err
		}
		total = n
		m.Regs[sp] -= uint32(total)
		for i1, e1 := range args {
			if err := m.store(m.Regs[sp]+uint32(offsets[i1]), sizes[i1], uint32(e1)); err != nil {
				return 0, err
			}
		}
	}

	m.PC = m.labels[fn]
	m.Steps = 0
	m.Halted = false
	if err := m.Run(); err != nil {
		return 0, fmt.Errorf("%s: %w", fn, err)
	}
	m.Regs[sp] += uint32(total)

	if m.Regs[sp] != before[sp] {
		return 0, fmt.Errorf("%s: %w: sp = %#x, expected %#x", fn, ErrStackBalance, m.Regs[sp], before[sp])
	}
	for _, e1 := range append(saved[:len(saved)-1:len(saved)-1], fp) {
		if m.Regs[e1] != before[e1] {
			return 0, fmt.Errorf("%s: %w: %s = %#x, expected %#x", fn, ErrClobbered, e1, m.Regs[e1], before[e1])
		}
	}
	return int32(m.Regs[a0]), nil
}

// Run executes instructions until the machine returns past its outermost call or fails.
func (m *Machine) Run() error {
	for !m.Halted {
		if m.Steps >= m.MaxSteps {
			return ErrStepLimit
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes a single instruction.
func (m *Machine) Step() error {
	if m.Halted {
		return nil
	}
	if m.PC == m.halt {
		m.Halted = true
		return nil
	}
	if m.PC < 0 || m.PC > m.halt {
		return fmt.Errorf("program counter %d out of range", m.PC)
	}
	ins := m.text[m.PC]
	if m.Trace != nil {
		m.Trace(m.PC, ins)
	}
	m.Steps++
	next := m.PC + 1
	r := &m.Regs
	rs1, rs2 := r[ins.Rs1], r[ins.Rs2]
	var res uint32
	write := true

	switch ins.Op {
	case ADD:
		res = rs1 + rs2
	case SUB:
		res = rs1 - rs2
	case MUL:
		res = rs1 * rs2
	case DIV:
		res = uint32(div(int32(rs1), int32(rs2)))
	case DIVU:
		if rs2 == 0 {
			res = math.MaxUint32
		} else {
			res = rs1 / rs2
		}
	case REM:
		res = uint32(rem(int32(rs1), int32(rs2)))
	case REMU:
		if rs2 == 0 {
			res = rs1
		} else {
			res = rs1 % rs2
		}
	case AND:
		res = rs1 & rs2
	case OR:
		res = rs1 | rs2
	case XOR:
		res = rs1 ^ rs2
	case SLL:
		res = rs1 << (rs2 & 31)
	case SRL:
		res = rs1 >> (rs2 & 31)
	case SRA:
		res = uint32(int32(rs1) >> (rs2 & 31))
	case SLT:
		res = b2u(int32(rs1) < int32(rs2))
	case SLTU:
		res = b2u(rs1 < rs2)
	case ADDI:
		res = rs1 + uint32(ins.Imm)
	case ANDI:
		res = rs1 & uint32(ins.Imm)
	case XORI:
		res = rs1 ^ uint32(ins.Imm)
	case SLLI:
		res = rs1 << (uint(ins.Imm) & 31)
	case SRLI:
		res = rs1 >> (uint(ins.Imm) & 31)
	case SRAI:
		res = uint32(int32(rs1) >> (uint(ins.Imm) & 31))
	case LW, LB, LBU:
		size := 4
		if ins.Op != LW {
			size = 1
		}
		v, err := m.load(rs1+uint32(ins.Imm), size)
		if err != nil {
			return fmt.Errorf("pc %d: %s: %w", m.PC, ins, err)
		}
		res = v
		if ins.Op == LB {
			res = uint32(int32(int8(v)))
		}
	case SW, SB:
		size := 4
		if ins.Op == SB {
			size = 1
		}
		if err := m.store(rs1+uint32(ins.Imm), size, r[ins.Rd]); err != nil {
			return fmt.Errorf("pc %d: %s: %w", m.PC, ins, err)
		}
		write = false
	case BEQ, BNE:
		write = false
		if (r[ins.Rd] == rs1) == (ins.Op == BEQ) {
			t, err := m.target(ins.Sym)
			if err != nil {
				return err
			}
			next = t
		}
	case J:
		write = false
		t, err := m.target(ins.Sym)
		if err != nil {
			return err
		}
		next = t
	case JAL:
		t, err := m.target(ins.Sym)
		if err != nil {
			return err
		}
		res = uint32(next)
		next = t
	case RET:
		write = false
		next = int(r[ra])
	case LI:
		res = uint32(ins.Imm)
	case LA:
		a, ok := m.globals[ins.Sym]
		if !ok {
			return fmt.Errorf("pc %d: %w: global %q", m.PC, ErrUndefined, ins.Sym)
		}
		res = a
	case LABEL:
		write = false
	default:
		return fmt.Errorf("pc %d: unknown instruction %s", m.PC, ins.Op)
	}

	if write && ins.Rd != zero {
		r[ins.Rd] = res
	}
	m.PC = next
	return nil
}

// target returns the instruction index of the label l.
func (m *Machine) target(l string) (int, error) {
	t, ok := m.labels[l]
	if !ok {
		return 0, fmt.Errorf("pc %d: %w: label %q", m.PC, ErrUndefined, l)
	}
	return t, nil
}

// load reads size bytes at addr, zero-extended.
func (m *Machine) load(addr uint32, size int) (uint32, error) {
	if uint64(addr)+uint64(size) > uint64(len(m.Mem)) {
		return 0, fmt.Errorf("%w: %d bytes at %#x", ErrMemory, size, addr)
	}
	if size == 1 {
		return uint32(m.Mem[addr]), nil
	}
	return binary.LittleEndian.Uint32(m.Mem[addr:]), nil
}

func (m *Machine) store(addr uint32, size int, v uint32) error {
	if uint64(addr)+uint64(size) > uint64(len(m.Mem)) {
		return fmt.Errorf("%w: %d bytes at %#x", ErrMemory, size, addr)
	}
	if size == 1 {
		m.Mem[addr] = byte(v)
		return nil
	}
	binary.LittleEndian.PutUint32(m.Mem[addr:], v)
	return nil
}

// Word returns the word stored at addr.
func (m *Machine) Word(addr uint32) (uint32, error) {
	return m.load(addr, 4)
}

// SetWord stores v at addr.
func (m *Machine) SetWord(addr uint32, v uint32) error {
	return m.store(addr, 4, v)
}

// Byte returns the byte stored at addr.
func (m *Machine) Byte(addr uint32) (byte, error) {
	v, err := m.load(addr, 1)
	return byte(v), err
}

func div(a, b int32) int32 {
	switch {
	case b == 0:
		return -1
	case a == math.MinInt32 && b == -1:
		return a
	}
	return a / b
}

func rem(a, b int32) int32 {
	switch {
	case b == 0:
		return a
	case a == math.MinInt32 && b == -1:
		return 0
	}
	return a % b
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
