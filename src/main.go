package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cgen/src/backend"
	"cgen/src/backend/riscv"
	"cgen/src/ir"
	"cgen/src/ir/llvm"
	"cgen/src/util"
)

func main() {
	// Parse command line arguments.
	opt, err := util.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}
	if opt.Help {
		util.PrintHelp(os.Stdout)
		os.Exit(0)
	}
	if opt.Version {
		fmt.Println(util.AppVersion)
		os.Exit(0)
	}

	if err := run(opt, os.Stdout); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// run reads the tree named by opt and generates code for it. Output goes to opt.Out, or to stdout if opt.Out is
// empty.
func run(opt util.Options, stdout io.Writer) error {
	// Read decorated tree.
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read tree: %w", err)
	}
	name := opt.Src
	if len(name) == 0 {
		name = "stdin"
	}
	root, err := ir.ParseFile(name, src)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if err := ir.ValidateTree(root); err != nil {
		return fmt.Errorf("tree error: %w", err)
	}

	// If -ts flag was passed: print the decorated tree and exit.
	if opt.TokenStream {
		root.Print(stdout, 0)
		return nil
	}

	// Initiate output writer.
	out := stdout
	if len(opt.Out) > 0 && !(opt.LLVM && filepath.Ext(opt.Out) == ".o") {
		f, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		defer func(f *os.File) {
			if err := f.Close(); err != nil {
				fmt.Println(err)
			}
		}(f)
		out = f
	}

	if opt.LLVM {
		if err := llvm.GenLLVM(opt, root, out); err != nil {
			return fmt.Errorf("error reported by LLVM: %w", err)
		}
		return nil
	}

	// Generate assembler.
	p, err := backend.GenerateAssembler(opt, root, out)
	if err != nil {
		return fmt.Errorf("code generation error: %w", err)
	}

	if len(opt.Run) > 0 {
		m, err := riscv.NewMachine(p)
		if err != nil {
			return err
		}
		v, err := m.Call(opt.Run, opt.Args...)
		if err != nil {
			return fmt.Errorf("simulation error: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "%s returned %d after %d instructions\n", opt.Run, v, m.Steps)
	}
	return nil
}
