package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/javabinding/config"
)

func newCheckConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print the managed runtime arguments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			internal, err := internalConfig()
			if err != nil {
				return err
			}
			args, err := config.JVMArgs(a.cfg, internal)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "executor: %s\n", a.cfg.Executor.Kind)
			if a.cfg.Database.Path == "" {
				fmt.Fprintln(out, "database: in-memory")
			} else {
				fmt.Fprintf(out, "database: %s\n", a.cfg.Database.Path)
			}
			fmt.Fprintln(out, "jvm arguments:")
			for _, arg := range args {
				fmt.Fprintf(out, "  %s\n", arg)
			}
			return nil
		},
	}
}
