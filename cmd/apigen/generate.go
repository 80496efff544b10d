package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wham/apigen/internal/compiler"
	"github.com/wham/apigen/internal/output"
	"github.com/wham/apigen/internal/tempdir"
	"github.com/wham/apigen/internal/watch"
)

func newGenerateCommand(a *app) *cobra.Command {
	var (
		outDir  string
		check   bool
		watchIt bool
	)
	cmd := &cobra.Command{
		Use:   "generate <schema>",
		Short: "Generate C++ code for a schema",
		Long: `Generate the C++ files for a schema. The schema is a .proto file or a descriptor set
(.pb, .binpb, .desc or .json).

Examples:
  apigen generate api.proto -o esphome/components/api
  apigen generate api.proto -o esphome/components/api --check
  apigen generate api.proto -o gen --watch --parser builtin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if check && watchIt {
				return fmt.Errorf("--check and --watch cannot be combined")
			}
			if !watchIt {
				return a.generate(cmd, args[0], outDir, check)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd, args[0], outDir)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory the files are written to")
	cmd.Flags().BoolVar(&check, "check", false, "compare with the files on disk instead of writing, fail when they are stale")
	cmd.Flags().BoolVar(&watchIt, "watch", false, "regenerate whenever the schema changes")
	return cmd
}

func (a *app) generate(cmd *cobra.Command, schemaPath, outDir string, check bool) error {
	in, err := a.load(cmd.Context(), schemaPath)
	if err != nil {
		return err
	}
	result, err := compiler.Compile(in.Main, a.cfg.Codegen(), a.logger)
	if err != nil {
		return err
	}

	if check {
		stale, err := output.Check(outDir, result.Artifacts)
		if err != nil {
			return err
		}
		for _, s := range stale {
			fmt.Fprint(cmd.OutOrStdout(), s.Diff)
		}
		if len(stale) > 0 {
			return fmt.Errorf("%d of %d generated files are stale, run apigen generate", len(stale), len(result.Artifacts))
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "All %d generated files are up to date\n", len(result.Artifacts))
		return nil
	}

	if err := output.Write(outDir, result.Artifacts); err != nil {
		return err
	}
	color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "Generated %d files in %s\n", len(result.Artifacts), outDir)
	return nil
}

func (a *app) watch(ctx context.Context, cmd *cobra.Command, schemaPath, outDir string) error {
	tempdir.StartCleanup()

	if err := a.generate(cmd, schemaPath, outDir, false); err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "%v\n", err)
	}

	files, err := a.sources(ctx, schemaPath)
	if err != nil {
		return err
	}
	w, err := watch.New(files, watch.DefaultDelay)
	if err != nil {
		return err
	}
	defer w.Close()

	runs := make(chan []string, 1)
	w.Subscribe(func(changed []string) {
		select {
		case runs <- changed:
		default:
		}
	})
	color.New(color.FgCyan).Fprintf(cmd.OutOrStdout(), "Watching %d files, press Ctrl+C to stop\n", len(files))

	for {
		select {
		case <-ctx.Done():
			return nil
		case changed := <-runs:
			a.logger.Info("Regenerating", "changed", changed)
			if err := a.generate(cmd, schemaPath, outDir, false); err != nil {
				color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "%v\n", err)
			}
		}
	}
}

// sources lists the files a schema is read from: the schema itself and, for .proto sources, every
// import found on disk under the import paths.
func (a *app) sources(ctx context.Context, schemaPath string) ([]string, error) {
	files := []string{schemaPath}
	if filepath.Ext(schemaPath) != ".proto" {
		return files, nil
	}
	in, err := a.load(ctx, schemaPath)
	if err != nil {
		return files, nil
	}
	importPaths := a.cfg.ImportPaths
	if len(importPaths) == 0 {
		importPaths = []string{filepath.Dir(schemaPath)}
	}
	seen := map[string]bool{in.Main.GetName(): true}
	for _, fd := range in.Set.GetFile() {
		if seen[fd.GetName()] {
			continue
		}
		seen[fd.GetName()] = true
		if path, ok := findImport(fd.GetName(), importPaths); ok {
			files = append(files, path)
		}
	}
	return files, nil
}

func findImport(name string, importPaths []string) (string, bool) {
	for _, ip := range importPaths {
		path := filepath.Join(ip, filepath.FromSlash(name))
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}
