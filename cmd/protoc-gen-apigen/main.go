// Command protoc-gen-apigen is the protoc plugin form of apigen:
//
//	protoc --apigen_out=namespace=esphome::api:gen api.proto
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"

	"github.com/wham/apigen/internal/compiler"
	"github.com/wham/apigen/internal/config"
	"github.com/wham/apigen/internal/logging"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		os.Stderr.WriteString("failed to read input: " + err.Error() + "\n")
		os.Exit(1)
	}

	req := &pluginpb.CodeGeneratorRequest{}
	if err := proto.Unmarshal(input, req); err != nil {
		os.Stderr.WriteString("failed to unmarshal request: " + err.Error() + "\n")
		os.Exit(1)
	}

	resp := generate(req)

	output, err := proto.Marshal(resp)
	if err != nil {
		os.Stderr.WriteString("failed to marshal response: " + err.Error() + "\n")
		os.Exit(1)
	}
	os.Stdout.Write(output)
}

// generate compiles every file protoc asks for. Generated files land next to their .proto file.
// Any failure is reported through the response error and no files are returned.
func generate(req *pluginpb.CodeGeneratorRequest) *pluginpb.CodeGeneratorResponse {
	resp := &pluginpb.CodeGeneratorResponse{
		SupportedFeatures: proto.Uint64(uint64(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL)),
	}
	fail := func(err error) *pluginpb.CodeGeneratorResponse {
		resp.File = nil
		resp.Error = proto.String(err.Error())
		return resp
	}

	logger := logging.New(nil)
	v := config.New("")
	if err := config.ApplyParameter(v, req.GetParameter()); err != nil {
		return fail(err)
	}
	cfg, err := config.Load(v, logger)
	if err != nil {
		return fail(err)
	}

	written := make(map[string]string)
	for _, name := range req.GetFileToGenerate() {
		fd := findFile(req.GetProtoFile(), name)
		if fd == nil {
			return fail(fmt.Errorf("%s is missing from the request", name))
		}
		result, err := compiler.Compile(fd, cfg.Codegen(), logger)
		if err != nil {
			return fail(fmt.Errorf("%s: %w", name, err))
		}
		for _, a := range result.Artifacts {
			out := path.Join(path.Dir(name), a.Name)
			if prev, ok := written[out]; ok {
				return fail(fmt.Errorf("%s and %s both generate %s, set a different output_base", prev, name, out))
			}
			written[out] = name
			resp.File = append(resp.File, &pluginpb.CodeGeneratorResponse_File{
				Name:    proto.String(out),
				Content: proto.String(a.Content),
			})
		}
	}
	return resp
}

func findFile(files []*descriptorpb.FileDescriptorProto, name string) *descriptorpb.FileDescriptorProto {
	for _, f := range files {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}
