package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/teris-io/cli"

	"rmcc/pkg/codegen"
	"rmcc/pkg/diag"
	"rmcc/pkg/frontend"
	"rmcc/pkg/optimize"
	"rmcc/pkg/regalloc"
	"rmcc/pkg/target"
)

var Description = strings.ReplaceAll(`
rmcc compiles programs written in the register-machine source language of
spec.md into the eight-register target machine's assembly text: parsing,
semantic checking, optimization (array-to-scalar promotion, constant
folding/propagation, dead-store elimination), register allocation and
code generation, then label resolution and rendering.
`, "\n", " ")

var Compile = cli.New(Description).
	WithArg(cli.NewArg("input", "The source file to compile")).
	WithArg(cli.NewArg("output", "The compiled target-assembly output file")).
	WithOption(cli.NewOption("debug", "Emits label-name comments alongside resolved jump targets").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	input, err := os.Open(args[0])
	if err != nil {
		fmt.Printf("ERROR: unable to open input file: %s\n", err)
		return 1
	}
	defer input.Close()

	output, err := os.Create(args[1])
	if err != nil {
		fmt.Printf("ERROR: unable to open output file: %s\n", err)
		return 1
	}
	defer output.Close()

	sink := diag.NewSink(args[0])

	result, err := frontend.Compile(input, sink)
	if err != nil {
		sink.Render(os.Stderr)
		fmt.Println("ERROR: unable to complete 'frontend' pass")
		return 1
	}
	if err := sink.Validate(); err != nil {
		sink.Render(os.Stderr)
		return 1
	}

	pipeline := &optimize.Pipeline{}
	if _, err := pipeline.Run(result.Program); err != nil {
		fmt.Printf("ERROR: unable to complete 'optimize' pass: %s\n", err)
		return 1
	}

	addr := regalloc.NewAddressTable(1)
	gen := codegen.NewGenerator(addr)
	compiled, err := gen.Generate(result.Program)
	if err != nil {
		fmt.Printf("ERROR: unable to complete 'codegen' pass: %s\n", err)
		return 1
	}

	_, debugEnabled := options["debug"]
	if debugEnabled {
		printAddressSummary(addr)
	}
	asm := target.NewAssembler(debugEnabled)
	resolved, labels, err := asm.Resolve(compiled)
	if err != nil {
		fmt.Printf("ERROR: unable to complete 'assembly' pass: %s\n", err)
		return 1
	}
	if err := asm.Render(output, resolved, labels); err != nil {
		fmt.Printf("ERROR: unable to write output file: %s\n", err)
		return 1
	}

	sink.Render(os.Stderr) // any warnings accumulated along the way
	return 0
}

// printAddressSummary lists the final variable/array -> memory address
// assignments the allocator settled on, in address order, as "# addr: key"
// comment lines on stderr. Debug-only: invaluable when a program starts
// spilling and the address table grows past what was expected by hand.
func printAddressSummary(addr *regalloc.AddressTable) {
	entries := addr.Entries()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return entries[keys[i]] < entries[keys[j]] })
	for _, k := range keys {
		fmt.Fprintf(os.Stderr, "# %d: %s\n", entries[k], k)
	}
}

func main() { os.Exit(Compile.Run(os.Args, os.Stdout)) }
