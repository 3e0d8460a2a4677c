package main

import (
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the graph and print it in start order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.file.Builder().Build()
			if err != nil {
				return err
			}
			return printGraph(cmd.OutOrStdout(), g)
		},
	}
}
