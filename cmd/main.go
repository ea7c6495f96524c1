package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "c3",
		Short:         "Command Claude and Conquer entity service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "c3.yaml", "path to the YAML config file")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newConfigCmd())
	return root
}
