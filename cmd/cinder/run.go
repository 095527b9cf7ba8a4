package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kristofer/cinder/pkg/asm"
	"github.com/kristofer/cinder/pkg/program"
	"github.com/kristofer/cinder/pkg/stdlib"
	"github.com/kristofer/cinder/pkg/value"
	"github.com/kristofer/cinder/pkg/vm"
)

func newRunCmd() *cobra.Command {
	var entry string
	cmd := &cobra.Command{
		Use:   "run FILE [ARG...]",
		Short: "assemble and run a cinder assembly file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd, args[0], entry, args[1:])
		},
	}
	cmd.Flags().StringVar(&entry, "entry", "main", "name of the function to call")
	return cmd
}

func runFile(cmd *cobra.Command, path, entry string, rawArgs []string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b, err := asm.Assemble(string(src))
	if err != nil {
		return err
	}

	prog := program.New()
	prog.LoadBuilder(b)
	stdlib.Register(prog)

	callArgs, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}

	machine := vm.New(prog)
	result, err := machine.CallFunction(entry, callArgs)
	if err != nil {
		return fmt.Errorf("%s: %s", err, prog.LastError())
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatValue(result))
	return nil
}

func parseArgs(rawArgs []string) ([]value.Value, error) {
	args := make([]value.Value, len(rawArgs))
	for i, raw := range rawArgs {
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not a number: %w", raw, err)
		}
		args[i] = value.NumberVal(n)
	}
	return args, nil
}

func formatValue(v value.Value) string {
	switch v.Type {
	case value.Number:
		return strconv.FormatFloat(v.Num(), 'g', -1, 64)
	case value.String:
		s, _ := v.AsString()
		if i := strings.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		return s
	default:
		return v.Type.String()
	}
}
