package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/internal/tempdir"
)

// RunProtoc compiles name with protoc into a descriptor set that includes every import.
func RunProtoc(ctx context.Context, protoc string, name string, importPaths []string) (*descriptorpb.FileDescriptorSet, error) {
	if protoc == "" {
		protoc = "protoc"
	}
	dir, err := tempdir.New("protoc")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "set.pb")
	args := []string{"--include_imports", "--descriptor_set_out=" + out}
	for _, ip := range importPaths {
		args = append(args, "-I"+ip)
	}
	args = append(args, name)

	slog.Debug("Running protoc", "command", protoc+" "+strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, protoc, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Error("Failed to run protoc", "error", err, "stderr", stderr.String())
		return nil, fmt.Errorf("protoc failed: %w\n%s", err, strings.TrimSpace(stderr.String()))
	}
	slog.Debug("Protoc completed successfully")

	return ReadBinarySet(out)
}
