// Command arsenal assembles and runs arsenalVM source files, or executes a
// previously compiled object file.
//
// Usage:
//
//	arsenal [flags] [input]
//
// The positional input file defaults to in.ars. .ars input is assembled
// then run immediately unless -c is given, in which case it is compiled to
// the -o output path (default out.arc) and not run. .arc input is always
// treated as a precompiled object and run directly.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/pkg/errors"

	"github.com/LuisNordlSlav/arsenalVM/asm"
	"github.com/LuisNordlSlav/arsenalVM/object"
	"github.com/LuisNordlSlav/arsenalVM/vm"
)

var (
	outputPath  string
	compileOnly bool
	debug       bool
	showSymbols bool
)

var command = &cobra.Command{
	Use:   "arsenal [input]",
	Short: "Assemble and run arsenalVM bytecode programs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

func init() {
	command.Flags().StringVarP(&outputPath, "output", "o", "", "output object file path (default out.arc)")
	command.Flags().BoolVarP(&compileOnly, "compile", "c", false, "compile to an object file without running it")
	command.Flags().BoolVar(&debug, "debug", false, "dump register/stack state to stderr on a runtime fault")
	command.Flags().BoolVar(&showSymbols, "symbols", false, "print the resolved label/size symbol table to stderr after assembling")
}

func main() {
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	input := "in.ars"
	if len(args) == 1 {
		input = args[0]
	}

	if filepath.Ext(input) == ".arc" {
		return runObjectFile(input)
	}
	return assembleAndAct(cmd, input)
}

// assembleAndAct handles .ars (and extensionless) input. -o alone writes
// the compiled object and still runs it; -c writes the object and skips
// the run (spec §6).
func assembleAndAct(cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()

	image, symbols, err := asm.AssembleWithSymbols(f)
	if err != nil {
		return errors.Wrap(err, "assemble")
	}
	if showSymbols {
		printSymbols(symbols)
	}

	if compileOnly || cmd.Flags().Changed("output") {
		out := outputPath
		if out == "" {
			out = "out.arc"
		}
		if err := writeObjectFile(out, object.NewCompiled(image)); err != nil {
			return err
		}
	}
	if compileOnly {
		return nil
	}

	return runImage(image)
}

func runObjectFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()

	obj, err := object.Decode(f)
	if err != nil {
		return errors.Wrap(err, "decode object")
	}
	image, err := obj.Instructions()
	if err != nil {
		return err
	}
	return runImage(image)
}

func writeObjectFile(path string, obj object.Object) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %q", path)
	}
	defer f.Close()
	return object.Encode(f, obj)
}

func runImage(image []byte) error {
	m, err := vm.New(image)
	if err != nil {
		return errors.Wrap(err, "construct machine")
	}
	if err := m.Run(); err != nil {
		if debug {
			dumpRuntimeError(err)
		}
		return err
	}
	return nil
}

// dumpRuntimeError writes a best-effort register/stack dump to stderr when
// err itself is a *vm.RuntimeError; wrapped errors are not unwrapped.
func dumpRuntimeError(err error) {
	rerr, ok := err.(*vm.RuntimeError)
	if !ok {
		return
	}
	fmt.Fprintf(os.Stderr, "fault in thread %q at pc=%d sp=%d\n", rerr.ThreadName, rerr.PC, rerr.StackPointer)
	if rerr.Thread != nil {
		if err := rerr.Thread.Dump(os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "dump failed: %v\n", err)
		}
	}
}

// printSymbols renders the label/size tables sorted by name, using lo's
// collection helpers instead of a hand-rolled sort-and-loop.
func printSymbols(s asm.Symbols) {
	labelNames := lo.Keys(s.Labels)
	sort.Strings(labelNames)
	lines := lo.Map(labelNames, func(name string, _ int) string {
		return fmt.Sprintf("label %s = %d", name, s.Labels[name])
	})
	sizeNames := lo.Keys(s.Sizes)
	sort.Strings(sizeNames)
	lines = append(lines, lo.Map(sizeNames, func(name string, _ int) string {
		return fmt.Sprintf("size %s = %d", name, s.Sizes[name])
	})...)
	fmt.Fprintln(os.Stderr, strings.Join(lines, "\n"))
}
