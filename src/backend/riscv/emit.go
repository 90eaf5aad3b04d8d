// This file contains the instruction model and the emitter that appends instructions to an ordered stream.

package riscv

import (
	"fmt"

	"cgen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Op is an instruction mnemonic. LABEL is a pseudo instruction placing a label.
type Op int

// Instruction is a single emitted instruction.
type Instruction struct {
	Op  Op
	Rd  Reg    // Destination, or the source register of stores and the first operand of branches.
	Rs1 Reg    // First source, or the base register of loads and stores, or the second operand of branches.
	Rs2 Reg    // Second source of register-register instructions.
	Imm int    // Immediate or memory offset.
	Sym string // Branch target, callee, symbol of la or the placed label.
}

// Emitter appends instructions to a stream. Emitters are not safe for concurrent use; every function is generated
// with its own Emitter.
type Emitter struct {
	ins []Instruction
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	ADD Op = iota
	ADDI
	SUB
	MUL
	DIV
	DIVU
	REM
	REMU
	AND
	ANDI
	OR
	XOR
	XORI
	SLL
	SRL
	SRA
	SLLI
	SRLI
	SRAI
	SLT
	SLTU
	LW
	LB
	LBU
	SW
	SB
	BEQ
	BNE
	J
	JAL
	RET
	LI
	LA
	LABEL
)

// ops provides the assembler mnemonics of Op.
var ops = [...]string{
	"add", "addi", "sub", "mul", "div", "divu", "rem", "remu",
	"and", "andi", "or", "xor", "xori", "sll", "srl", "sra",
	"slli", "srli", "srai", "slt", "sltu", "lw", "lb", "lbu",
	"sw", "sb", "beq", "bne", "j", "jal", "ret", "li",
	"la", "label",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the mnemonic of o.
func (o Op) String() string {
	if o < 0 || int(o) >= len(ops) {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return ops[o]
}

// String returns the assembler text of i without indentation.
func (i Instruction) String() string {
	switch i.Op {
	case ADD, SUB, MUL, DIV, DIVU, REM, REMU, AND, OR, XOR, SLL, SRL, SRA, SLT, SLTU:
		return fmt.Sprintf("%s %s, %s, %s", i.Op, i.Rd, i.Rs1, i.Rs2)
	case ADDI, ANDI, XORI, SLLI, SRLI, SRAI:
		return fmt.Sprintf("%s %s, %s, %d", i.Op, i.Rd, i.Rs1, i.Imm)
	case LW, LB, LBU, SW, SB:
		return fmt.Sprintf("%s %s, %d(%s)", i.Op, i.Rd, i.Imm, i.Rs1)
	case BEQ, BNE:
		return fmt.Sprintf("%s %s, %s, %s", i.Op, i.Rd, i.Rs1, i.Sym)
	case J:
		return fmt.Sprintf("j %s", i.Sym)
	case JAL:
		return fmt.Sprintf("jal %s, %s", i.Rd, i.Sym)
	case RET:
		return "ret"
	case LI:
		return fmt.Sprintf("li %s, %d", i.Rd, i.Imm)
	case LA:
		return fmt.Sprintf("la %s, %s", i.Rd, i.Sym)
	case LABEL:
		return i.Sym + ":"
	}
	return i.Op.String()
}

// render writes the instructions ins as assembler text to wr.
func render(wr *util.Writer, ins []Instruction) {
	for _, e1 := range ins {
		switch e1.Op {
		case ADD, SUB, MUL, DIV, DIVU, REM, REMU, AND, OR, XOR, SLL, SRL, SRA, SLT, SLTU:
			wr.Ins3(e1.Op.String(), e1.Rd.String(), e1.Rs1.String(), e1.Rs2.String())
		case ADDI, ANDI, XORI, SLLI, SRLI, SRAI:
			wr.Ins2imm(e1.Op.String(), e1.Rd.String(), e1.Rs1.String(), e1.Imm)
		case LW, LB, LBU, SW, SB:
			wr.LoadStore(e1.Op.String(), e1.Rd.String(), e1.Rs1.String(), e1.Imm)
		case BEQ, BNE:
			wr.Ins3(e1.Op.String(), e1.Rd.String(), e1.Rs1.String(), e1.Sym)
		case J:
			wr.Ins1("j", e1.Sym)
		case JAL:
			wr.Ins2("jal", e1.Rd.String(), e1.Sym)
		case RET:
			wr.Ins0("ret")
		case LI:
			wr.Write("\tli\t%s, %d\n", e1.Rd, e1.Imm)
		case LA:
			wr.Ins2("la", e1.Rd.String(), e1.Sym)
		case LABEL:
			wr.Label(e1.Sym)
		}
	}
}

// NewEmitter returns an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{ins: make([]Instruction, 0, 64)}
}

// Instructions returns the emitted stream.
func (e *Emitter) Instructions() []Instruction {
	return e.ins
}

// Len returns the number of emitted instructions.
func (e *Emitter) Len() int {
	return len(e.ins)
}

func (e *Emitter) emit(i Instruction) {
	e.ins = append(e.ins, i)
}

func (e *Emitter) r3(op Op, rd, rs1, rs2 Reg) {
	e.emit(Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2})
}

// i2 emits an immediate instruction. Immediates out of 12-bit range are only expected for addi, which is expanded
// through t2.
func (e *Emitter) i2(op Op, rd, rs1 Reg, imm int) {
	if op == ADDI && (imm < minImm || imm > maxImm) {
		e.Li(t2, imm)
		e.Add(rd, rs1, t2)
		return
	}
	e.emit(Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm})
}

// mem emits a load or store. Offsets out of 12-bit range are added to the base in t2.
func (e *Emitter) mem(op Op, r, base Reg, off int) {
	if off < minImm || off > maxImm {
		e.Li(t2, off)
		e.Add(t2, base, t2)
		base, off = t2, 0
	}
	e.emit(Instruction{Op: op, Rd: r, Rs1: base, Imm: off})
}

func (e *Emitter) Add(rd, rs1, rs2 Reg)  { e.r3(ADD, rd, rs1, rs2) }
func (e *Emitter) Sub(rd, rs1, rs2 Reg)  { e.r3(SUB, rd, rs1, rs2) }
func (e *Emitter) Mul(rd, rs1, rs2 Reg)  { e.r3(MUL, rd, rs1, rs2) }
func (e *Emitter) Div(rd, rs1, rs2 Reg)  { e.r3(DIV, rd, rs1, rs2) }
func (e *Emitter) Divu(rd, rs1, rs2 Reg) { e.r3(DIVU, rd, rs1, rs2) }
func (e *Emitter) Rem(rd, rs1, rs2 Reg)  { e.r3(REM, rd, rs1, rs2) }
func (e *Emitter) Remu(rd, rs1, rs2 Reg) { e.r3(REMU, rd, rs1, rs2) }
func (e *Emitter) And(rd, rs1, rs2 Reg)  { e.r3(AND, rd, rs1, rs2) }
func (e *Emitter) Or(rd, rs1, rs2 Reg)   { e.r3(OR, rd, rs1, rs2) }
func (e *Emitter) Xor(rd, rs1, rs2 Reg)  { e.r3(XOR, rd, rs1, rs2) }
func (e *Emitter) Sll(rd, rs1, rs2 Reg)  { e.r3(SLL, rd, rs1, rs2) }
func (e *Emitter) Srl(rd, rs1, rs2 Reg)  { e.r3(SRL, rd, rs1, rs2) }
func (e *Emitter) Sra(rd, rs1, rs2 Reg)  { e.r3(SRA, rd, rs1, rs2) }
func (e *Emitter) Slt(rd, rs1, rs2 Reg)  { e.r3(SLT, rd, rs1, rs2) }
func (e *Emitter) Sltu(rd, rs1, rs2 Reg) { e.r3(SLTU, rd, rs1, rs2) }

func (e *Emitter) Addi(rd, rs1 Reg, imm int) { e.i2(ADDI, rd, rs1, imm) }
func (e *Emitter) Andi(rd, rs1 Reg, imm int) { e.i2(ANDI, rd, rs1, imm) }
func (e *Emitter) Xori(rd, rs1 Reg, imm int) { e.i2(XORI, rd, rs1, imm) }
func (e *Emitter) Slli(rd, rs1 Reg, imm int) { e.i2(SLLI, rd, rs1, imm) }
func (e *Emitter) Srli(rd, rs1 Reg, imm int) { e.i2(SRLI, rd, rs1, imm) }
func (e *Emitter) Srai(rd, rs1 Reg, imm int) { e.i2(SRAI, rd, rs1, imm) }

// Lw loads the word at off(base) into rd.
func (e *Emitter) Lw(rd, base Reg, off int) { e.mem(LW, rd, base, off) }

// Lb loads and sign-extends the byte at off(base) into rd.
func (e *Emitter) Lb(rd, base Reg, off int) { e.mem(LB, rd, base, off) }

// Lbu loads and zero-extends the byte at off(base) into rd.
func (e *Emitter) Lbu(rd, base Reg, off int) { e.mem(LBU, rd, base, off) }

// Sw stores the word in rs to off(base).
func (e *Emitter) Sw(rs, base Reg, off int) { e.mem(SW, rs, base, off) }

// Sb stores the low byte of rs to off(base).
func (e *Emitter) Sb(rs, base Reg, off int) { e.mem(SB, rs, base, off) }

// Beq branches to l if rs1 equals rs2.
func (e *Emitter) Beq(rs1, rs2 Reg, l util.Label) {
	e.emit(Instruction{Op: BEQ, Rd: rs1, Rs1: rs2, Sym: string(l)})
}

// Bne branches to l if rs1 differs from rs2.
func (e *Emitter) Bne(rs1, rs2 Reg, l util.Label) {
	e.emit(Instruction{Op: BNE, Rd: rs1, Rs1: rs2, Sym: string(l)})
}

// J jumps unconditionally to l.
func (e *Emitter) J(l util.Label) {
	e.emit(Instruction{Op: J, Sym: string(l)})
}

// Jal calls the function fn, linking the return address in rd.
func (e *Emitter) Jal(rd Reg, fn string) {
	e.emit(Instruction{Op: JAL, Rd: rd, Sym: fn})
}

// Ret returns to the address in ra.
func (e *Emitter) Ret() {
	e.emit(Instruction{Op: RET})
}

// Li loads the immediate imm into rd.
func (e *Emitter) Li(rd Reg, imm int) {
	e.emit(Instruction{Op: LI, Rd: rd, Imm: imm})
}

// La loads the address of the symbol sym into rd.
func (e *Emitter) La(rd Reg, sym string) {
	e.emit(Instruction{Op: LA, Rd: rd, Sym: sym})
}

// Label places the label l at the current position of the stream.
func (e *Emitter) Label(l util.Label) {
	e.emit(Instruction{Op: LABEL, Sym: string(l)})
}
