package riscv

// saved lists the registers preserved by every function, in the order they are stored from the bottom of the save
// area. The frame pointer is saved separately by the function prologue.
var saved = [...]Reg{s1, s2, s3, s4, s5, s6, s7, s8, s9, s10, s11, ra}

// SaveRegisters reserves the register save area and stores every callee saved register and the return address
// into it. The number of bytes the stack pointer was decremented by is returned.
func (g *Generator) SaveRegisters() int {
	size := len(saved) * g.word
	g.em.Addi(sp, sp, -size)
	for i1, e1 := range saved {
		g.em.Sw(e1, sp, i1*g.word)
	}
	return size
}

// RestoreRegisters reloads the registers stored by SaveRegisters, in reverse order, and releases the save area.
// The stack pointer must be where SaveRegisters left it.
func (g *Generator) RestoreRegisters() int {
	size := len(saved) * g.word
	for i1 := len(saved) - 1; i1 >= 0; i1-- {
		g.em.Lw(saved[i1], sp, i1*g.word)
	}
	g.em.Addi(sp, sp, size)
	return size
}
