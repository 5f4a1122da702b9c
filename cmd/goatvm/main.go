// Command goatvm compiles a goat source file and runs it, printing the
// program's output to stdout. Exit code is non-zero on a compile error
// or a fatal runtime error.
package main

import (
	"fmt"
	"os"

	"github.com/goatlang/goat/internal/compiler"
	"github.com/goatlang/goat/internal/vm"
)

const usage = `goatvm - compiler and runtime for the goat language

Usage:
  goatvm run <file>            Compile and execute <file>
  goatvm check <file>          Parse, resolve and type-check only
  goatvm -disasm <file>        Print compiled bytecode for <file>

Options:
  -heap <bytes>       Heap arena size (default 67108864)
  -callstack <bytes>  Per-thread call-stack size (default 8192)
  -opstack <bytes>    Per-thread operand-stack size (default 1024)
  -main <name>        Entry function name (default "main")
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		handleCheck(os.Args[2:])
	case "-disasm", "disasm":
		handleDisasm(os.Args[2:])
	case "run":
		handleRun(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		// Bare `goatvm <file>` is equivalent to `goatvm run <file>`.
		handleRun(os.Args[1:])
	}
}

func handleRun(args []string) {
	cfg := vm.DefaultConfig()
	filePath := parseRunFlags(args, &cfg)
	if filePath == "" {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		os.Exit(1)
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %s\n", err)
		os.Exit(1)
	}

	prog, diags := compiler.BuildProgram(string(source))
	if diags != nil && diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.Format(filePath))
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	rt := vm.New(prog, cfg, os.Stdout)
	if err := rt.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func parseRunFlags(args []string, cfg *vm.Config) string {
	var filePath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-heap":
			i++
			cfg.HeapSize = parseUint(args[i])
		case "-callstack":
			i++
			cfg.CallStackSize = parseUint(args[i])
		case "-opstack":
			i++
			cfg.OperandStackSize = parseUint(args[i])
		case "-main":
			i++
			cfg.MainFunc = args[i]
		default:
			filePath = args[i]
		}
	}
	return filePath
}

func parseUint(s string) uint64 {
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + uint64(c-'0')
	}
	return v
}

func handleCheck(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		os.Exit(1)
	}
	filePath := args[0]
	source, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %s\n", err)
		os.Exit(1)
	}

	diags := compiler.Check(string(source))
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.Format(filePath))
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}
	fmt.Println("No errors found.")
}

func handleDisasm(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		os.Exit(1)
	}
	filePath := args[0]
	source, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %s\n", err)
		os.Exit(1)
	}

	res := compiler.Compile(string(source))
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		fmt.Fprint(os.Stderr, res.Diagnostics.Format(filePath))
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}
	for _, fn := range res.Funcs {
		fmt.Print(fn.Disassemble())
	}
}
