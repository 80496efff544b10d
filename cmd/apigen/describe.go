package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wham/apigen/internal/compiler"
	"github.com/wham/apigen/internal/describe"
)

func newDescribeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <schema>",
		Short: "Print the schema with what the analysis inferred",
		Long: `Print the schema annotated with the direction, guard, estimated size and base class
the generator settled on for every message.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c, err := compiler.NewContext(in.Main, a.cfg.Codegen(), a.logger)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), describe.Render(c))
			return nil
		},
	}
}
