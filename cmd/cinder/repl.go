package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/kristofer/cinder/pkg/asm"
	"github.com/kristofer/cinder/pkg/program"
	"github.com/kristofer/cinder/pkg/stdlib"
	"github.com/kristofer/cinder/pkg/value"
	"github.com/kristofer/cinder/pkg/vm"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "start an interactive assembler REPL",
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepl(cmd)
			return nil
		},
	}
}

// replHistoryFile is where input history persists across sessions, the
// way liner's own examples use it.
func replHistoryFile() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".cinder_history"
	}
	return filepath.Join(dir, ".cinder_history")
}

// runRepl starts an interactive loop over one persistent Program and VM:
// enter a whole `func NAME(...) ... end` block to assemble and load it,
// or `:call NAME arg...` to invoke an already-loaded function.
//
// A function body spans multiple lines with no single-line form, so the
// buffering rule is simple: accumulate lines until one equal to "end"
// closes the outermost func block.
func runRepl(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "cinder REPL")
	fmt.Fprintln(out, "Type ':help' for help, ':quit' to exit")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	if f, err := os.Open(replHistoryFile()); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(replHistoryFile()); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	prog := program.New()
	stdlib.Register(prog)
	machine := vm.New(prog)

	var buf strings.Builder
	for {
		prompt := "cinder> "
		if buf.Len() > 0 {
			prompt = "   ...> "
		}
		input, err := line.Prompt(prompt)
		if err != nil { // EOF or Ctrl-C
			fmt.Fprintln(out)
			return
		}
		line.AppendHistory(input)

		trimmed := strings.TrimSpace(input)
		if buf.Len() == 0 {
			switch {
			case trimmed == ":quit" || trimmed == ":exit":
				return
			case trimmed == ":help":
				printReplHelp(out)
				continue
			case strings.HasPrefix(trimmed, ":call"):
				replCall(out, machine, trimmed)
				continue
			case trimmed == "":
				continue
			}
		}

		buf.WriteString(input)
		buf.WriteString("\n")
		if trimmed != "end" {
			continue
		}

		b, err := asm.Assemble(buf.String())
		buf.Reset()
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		prog.LoadBuilder(b)
		for _, fn := range b.Funcs() {
			fmt.Fprintf(out, "loaded %s(nparams=%d, nregs=%d)\n", fn.Name, fn.NParams, fn.NRegs)
		}
	}
}

// replCall handles ":call NAME arg...", parsing each arg as a number and
// invoking the named function on the REPL's persistent VM.
func replCall(out io.Writer, machine *vm.VM, input string) {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		fmt.Fprintln(out, "usage: :call NAME arg...")
		return
	}
	name := fields[1]
	args := make([]value.Value, 0, len(fields)-2)
	for _, raw := range fields[2:] {
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fmt.Fprintf(out, "bad argument %q: %s\n", raw, err)
			return
		}
		args = append(args, value.NumberVal(n))
	}

	result, err := machine.CallFunction(name, args)
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}
	fmt.Fprintln(out, formatValue(result))
}

func printReplHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  :call NAME arg...   call a loaded function with numeric arguments")
	fmt.Fprintln(out, "  :help               show this help")
	fmt.Fprintln(out, "  :quit, :exit        exit the REPL")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Enter a func NAME(nparams=N, nregs=M) ... end block to assemble and load it.")
}
