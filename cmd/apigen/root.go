package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wham/apigen/internal/config"
	"github.com/wham/apigen/internal/loader"
	"github.com/wham/apigen/internal/logging"
)

// app is the state shared by all subcommands, set up before any of them runs.
type app struct {
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *logging.Logger
}

// settingFlags maps flags to the config keys they override.
var settingFlags = []struct {
	flag  string
	key   string
	usage string
}{
	{"namespace", config.KeyNamespace, "C++ namespace of the generated code"},
	{"output-base", config.KeyOutputBase, "base name of the generated files"},
	{"service-class", config.KeyServiceClass, "name of the generated connection class"},
	{"dump-guard", config.KeyDumpGuard, "macro guarding the dump routines"},
	{"log-macro", config.KeyLogMacro, "logging macro for message dumps"},
	{"log-tag", config.KeyLogTag, "log tag of the service implementation"},
	{"parser", config.KeyParser, "how .proto sources are parsed: protoc or builtin"},
	{"protoc", config.KeyProtoc, "protoc binary"},
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "apigen",
		Short: "Generate embedded C++ protobuf code from an API schema",
		Long: `apigen compiles a protobuf API schema into C++ message classes with encode, decode,
size and dump routines, plus the dispatch layer of the connection that serves the API.

Settings come from apigen.yaml in the working directory, APIGEN_* environment variables
and flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default apigen.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug messages")
	for _, f := range settingFlags {
		flags.String(f.flag, "", f.usage)
	}
	flags.StringSliceP("import-path", "I", nil, "directories imports are resolved in")

	root.AddCommand(
		newGenerateCommand(a),
		newDescribeCommand(a),
		newEncodeCommand(a),
		newDecodeCommand(a),
		newReflectCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	a.logger = logging.New(slog.Default())

	v := config.New(a.configFile)
	flags := cmd.Root().PersistentFlags()
	bind := func(key string, f *pflag.Flag) error {
		if !f.Changed {
			return nil
		}
		return v.BindPFlag(key, f)
	}
	for _, f := range settingFlags {
		if err := bind(f.key, flags.Lookup(f.flag)); err != nil {
			return err
		}
	}
	if err := bind(config.KeyImportPaths, flags.Lookup("import-path")); err != nil {
		return err
	}

	cfg, err := config.Load(v, a.logger)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) load(ctx context.Context, path string) (*loader.Input, error) {
	a.logger.Debug("Loading schema", "path", path, "parser", a.cfg.Parser)
	return loader.Load(ctx, path, a.cfg.Loader())
}
