package main

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wham/apigen/internal/loader"
)

func newReflectCommand(a *app) *cobra.Command {
	var (
		outFile string
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "reflect <target>",
		Short: "Save the schema of a running gRPC server as a descriptor set",
		Long: `Fetch the descriptors of every service a gRPC server exposes through server reflection
and save them as a descriptor set that generate, describe, encode and decode accept.

Examples:
  apigen reflect localhost:6053 -o api.binpb
  apigen reflect grpcs://proxy.example.com -o api.json --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loader.NewReflectionClient(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a.logger.Debug("Discovering services", "target", args[0])
			set, err := client.Discover(ctx)
			if err != nil {
				return err
			}
			if err := loader.WriteSet(outFile, set, asJSON); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Saved %d files to %s\n", len(set.GetFile()), outFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "descriptor set to write")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write protojson instead of binary")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long discovery may take")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
