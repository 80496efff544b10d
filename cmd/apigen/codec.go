package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wham/apigen/internal/codec"
	"github.com/wham/apigen/internal/loader"
)

func newEncodeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <schema> <message> <json>",
		Short: "Encode a message the way the generated code does",
		Long: `Encode a message given as JSON and print the bytes in hex. Default values are left
out and repeated fields are never packed, matching the generated encode routines.

Example:
  apigen encode api.proto HelloRequest '{"client_info": "cli", "api_version_major": 1}'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, name, err := a.codec(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			m, err := c.FromJSON(name, []byte(args[2]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(codec.Encode(nil, m)))
			return nil
		},
	}
}

func newDecodeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <schema> <message> <hex>",
		Short: "Decode a message payload and print it as JSON",
		Long: `Decode a message payload given in hex and print it as JSON. Packed and unpacked
repeated fields are both accepted and unknown fields are dropped.

Example:
  apigen decode api.proto HelloResponse 08011007`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, name, err := a.codec(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			payload, err := hex.DecodeString(strings.Join(strings.Fields(args[2]), ""))
			if err != nil {
				return fmt.Errorf("payload is not hex: %w", err)
			}
			m, err := c.Decode(name, payload)
			if err != nil {
				return err
			}
			out, err := codec.ToJSON(m)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// codec loads the schema and qualifies a bare message name with the package of the main file.
func (a *app) codec(cmd *cobra.Command, schemaPath, message string) (*codec.Codec, string, error) {
	in, err := a.load(cmd.Context(), schemaPath)
	if err != nil {
		return nil, "", err
	}
	c, err := codec.New(in.Set)
	if err != nil {
		return nil, "", err
	}
	return c, qualify(in, message), nil
}

func qualify(in *loader.Input, message string) string {
	if strings.Contains(message, ".") || in.Main.GetPackage() == "" {
		return message
	}
	return in.Main.GetPackage() + "." + message
}
