package backend

import (
	"fmt"
	"io"

	"cgen/src/backend/riscv"
	"cgen/src/ir"
	"cgen/src/util"
)

// GenerateAssembler takes the syntax tree and generates output assembler code to w
// based on architecture defined by opt. The generated program is returned for simulation.
func GenerateAssembler(opt util.Options, root *ir.Node, w io.Writer) (*riscv.Program, error) {
	switch opt.TargetArch {
	case util.Riscv32, util.Riscv64, util.UnknownArch:
		p, err := riscv.GenRiscv(opt, root)
		if err != nil {
			return nil, err
		}
		if _, err := p.WriteTo(w); err != nil {
			return nil, fmt.Errorf("writing assembler: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported output architecture %s", util.ArchName(opt.TargetArch))
	}
}
