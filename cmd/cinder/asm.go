package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kristofer/cinder/pkg/asm"
)

func newAsmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "asm FILE",
		Short: "assemble a cinder assembly file and report its function table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return assembleAndReport(cmd, args[0])
		},
	}
}

func assembleAndReport(cmd *cobra.Command, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b, err := asm.Assemble(string(src))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d instruction word(s)\n", len(b.Instructions()))
	for _, fn := range b.Funcs() {
		fmt.Fprintf(out, "  %s(nparams=%d, nregs=%d) at pc=%d, %d constant(s)\n",
			fn.Name, fn.NParams, fn.NRegs, fn.PC, len(b.FuncConsts(fn)))
	}
	return nil
}
