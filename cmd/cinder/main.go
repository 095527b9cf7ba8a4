// Command cinder is an example embedder built around the VM core. It
// never touches the VM's internals directly — it only ever assembles a
// program with pkg/asm, loads it with pkg/program, and drives pkg/vm
// the same way any other embedder would.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kristofer/cinder/internal/vmlog"
)

const version = "0.1.0"

var verbose bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cinder",
		Short:         "cinder runs register-machine bytecode programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			vmlog.ConfigureConsole(level)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log VM diagnostics to stderr")

	root.AddCommand(newRunCmd())
	root.AddCommand(newAsmCmd())
	root.AddCommand(newReplCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the cinder version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "cinder %s\n", version)
			return nil
		},
	}
}
