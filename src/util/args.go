package util

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

type Options struct {
	Src         string   // Path to tree file.
	Out         string   // Path to output file.
	Threads     int      // Thread count.
	Verbose     bool     // Set true if the generator should log statistical data to stdout.
	TokenStream bool     // Set true if the generator should print the decorated tree and exit.
	LLVM        bool     // Set true if the generator should lower the tree through the LLVM framework.
	TargetArch  int      // Output target architecture.
	Run         string   // Name of function to simulate after code generation, empty if none.
	Args        []int    // Arguments passed to the simulated function.
	Help        bool     // Set true if the usage message was requested.
	Version     bool     // Set true if the application version was requested.
	extra       []string // Positional arguments not yet consumed.
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads allowed executing in parallel.
const AppVersion = "cgen 1.0"

// Target machine architectures.
const (
	UnknownArch = iota
	Riscv32
	Riscv64
	Aarch64
)

// ErrMissingValue is returned when a flag expecting a value is the last argument.
var ErrMissingValue = errors.New("flag expects a value")

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses the command line arguments args, excluding the program name. The last positional argument is
// the path of the tree file. Unless -arch is given the target is riscv32.
func ParseArgs(args []string) (Options, error) {
	opt := Options{Threads: 1, TargetArch: Riscv32}

	value := func(i1 int) (string, error) {
		if i1+1 >= len(args) {
			return "", fmt.Errorf("%w: %s", ErrMissingValue, args[i1])
		}
		if strings.HasPrefix(args[i1+1], "-") && len(args[i1+1]) > 1 {
			if _, err := strconv.Atoi(args[i1+1]); err != nil {
				return "", fmt.Errorf("expected value for flag %s, got new flag %s", args[i1], args[i1+1])
			}
		}
		return args[i1+1], nil
	}

	for i1 := 0; i1 < len(args); i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			opt.Help = true
		case "-v", "--v", "-version", "--version":
			// Application version.
			opt.Version = true
		case "-ll":
			// Lower through LLVM.
			opt.LLVM = true
		case "-ts":
			// Print the decorated tree.
			opt.TokenStream = true
		case "-vb":
			// Verbose mode.
			opt.Verbose = true
		case "-o":
			// Output file.
			v, err := value(i1)
			if err != nil {
				return opt, err
			}
			opt.Out = v
			i1++
		case "-t":
			// Thread count.
			v, err := value(i1)
			if err != nil {
				return opt, err
			}
			t, err := strconv.Atoi(v)
			if err != nil {
				return opt, fmt.Errorf("expected integer thread count, got: %s", v)
			}
			if t < 1 || t > maxThreads {
				return opt, fmt.Errorf("thread count must be integer in range [1, %d]", maxThreads)
			}
			opt.Threads = t
			i1++
		case "-arch":
			// Output architecture.
			v, err := value(i1)
			if err != nil {
				return opt, err
			}
			switch v {
			case "riscv32":
				opt.TargetArch = Riscv32
			case "riscv64":
				opt.TargetArch = Riscv64
			case "aarch64":
				opt.TargetArch = Aarch64
			default:
				return opt, fmt.Errorf("unexpected architecture identifier: %s", v)
			}
			i1++
		case "-run":
			// Simulate a function: -run NAME[,ARG...]
			v, err := value(i1)
			if err != nil {
				return opt, err
			}
			parts := strings.Split(v, ",")
			opt.Run = parts[0]
			if len(opt.Run) == 0 {
				return opt, errors.New("expected function name for -run")
			}
			for _, e1 := range parts[1:] {
				a, err := strconv.Atoi(strings.TrimSpace(e1))
				if err != nil {
					return opt, fmt.Errorf("expected integer argument for -run, got: %s", e1)
				}
				opt.Args = append(opt.Args, a)
			}
			i1++
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i1])
			}
			opt.extra = append(opt.extra, args[i1])
		}
	}
	switch len(opt.extra) {
	case 0:
	case 1:
		opt.Src = opt.extra[0]
	default:
		return opt, fmt.Errorf("expected one tree file, got %d", len(opt.extra))
	}
	return opt, nil
}

// ArchName returns the -arch identifier of the target architecture arch.
func ArchName(arch int) string {
	switch arch {
	case Riscv32:
		return "riscv32"
	case Riscv64:
		return "riscv64"
	case Aarch64:
		return "aarch64"
	}
	return "unknown"
}

// PrintHelp prints a helpful usage message to w.
func PrintHelp(w io.Writer) {
	tw := tabwriter.NewWriter(w, 6, 1, 1, ' ', 0)
	_, _ = fmt.Fprintln(tw, "usage: cgen [flags] [tree file]")
	_, _ = fmt.Fprintln(tw, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(tw, "-ll\tLower the tree to LLVM IR instead of generating RISC-V assembler.")
	_, _ = fmt.Fprintln(tw, "-o\tPath and name of the output file.")
	_, _ = fmt.Fprintf(tw, "-t\tNumber of threads to run in parallel. Must be in range [1, %d].\n", maxThreads)
	_, _ = fmt.Fprintln(tw, "-arch\tOutput architecture. Only 'riscv32' is supported. Defaults to 'riscv32'.")
	_, _ = fmt.Fprintln(tw, "-run\tSimulate a function after generation, i.e. '-run main' or '-run add,2,3'.")
	_, _ = fmt.Fprintln(tw, "-ts\tPrint the decorated tree and exit.")
	_, _ = fmt.Fprintln(tw, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(tw, "-vb\tVerbose mode: print generator statistics to stdout.")
	_ = tw.Flush()
}
