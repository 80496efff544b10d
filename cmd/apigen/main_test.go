package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/internal/loader"
	st "github.com/wham/apigen/internal/schematest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), err
}

// writeSchema saves a Ping/Pong descriptor set in a fresh working directory.
func writeSchema(t *testing.T) string {
	t.Helper()
	chdir(t, t.TempDir())
	fd := st.File(
		st.ID(st.Message("Ping"), 7),
		st.ID(st.Message("Pong", st.Field("count", 1, st.Uint32), st.Repeated(st.Field("values", 2, st.Sint32))), 8),
		st.Service("APIConnection", st.Method("ping", "Ping", "Pong")),
	)
	set := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{fd}}
	require.NoError(t, loader.WriteSet("api.binpb", set, false))
	return "api.binpb"
}

func TestGenerateAndCheck(t *testing.T) {
	schemaPath := writeSchema(t)

	out, err := run(t, "generate", schemaPath, "-o", "gen")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 5 files in gen")
	header, err := os.ReadFile(filepath.Join("gen", "api_pb2.h"))
	require.NoError(t, err)
	assert.Contains(t, string(header), "class Pong : public ProtoDecodableMessage {")

	out, err = run(t, "generate", schemaPath, "-o", "gen", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "All 5 generated files are up to date")

	require.NoError(t, os.WriteFile(filepath.Join("gen", "api_pb2.cpp"), []byte("// edited\n"), 0644))
	out, err = run(t, "generate", schemaPath, "-o", "gen", "--check")
	assert.EqualError(t, err, "1 of 5 generated files are stale, run apigen generate")
	assert.Contains(t, out, "-// edited")
	assert.Contains(t, out, "api_pb2.cpp (generated)")
}

func TestGenerateFlagsOverrideConfig(t *testing.T) {
	schemaPath := writeSchema(t)
	require.NoError(t, os.WriteFile("apigen.yaml", []byte("namespace: from_file\noutput_base: proxy_pb\n"), 0644))

	_, err := run(t, "generate", schemaPath, "-o", ".", "--namespace", "from_flag")
	require.NoError(t, err)
	header, err := os.ReadFile("proxy_pb.h")
	require.NoError(t, err)
	assert.Contains(t, string(header), "namespace from_flag {")
}

func TestGenerateRejectsCheckWithWatch(t *testing.T) {
	schemaPath := writeSchema(t)
	_, err := run(t, "generate", schemaPath, "--check", "--watch")
	assert.EqualError(t, err, "--check and --watch cannot be combined")
}

func TestInvalidSettings(t *testing.T) {
	schemaPath := writeSchema(t)
	_, err := run(t, "generate", schemaPath, "--parser", "clang")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parser "clang" is not supported, use protoc or builtin`)
}

func TestDescribe(t *testing.T) {
	schemaPath := writeSchema(t)
	out, err := run(t, "describe", schemaPath)
	require.NoError(t, err)
	assert.Contains(t, out, "package test;")
	assert.Contains(t, out, "message Pong {\n  uint32 count = 1;\n")
	assert.Contains(t, out, "rpc ping(Ping) returns (Pong);")
}

func TestEncodeDecode(t *testing.T) {
	schemaPath := writeSchema(t)

	out, err := run(t, "encode", schemaPath, "Pong", `{"count": 5, "values": [0, -1]}`)
	require.NoError(t, err)
	assert.Equal(t, "080510001001\n", out)

	out, err = run(t, "decode", schemaPath, "Pong", "08 05 12 02 00 01")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 5, "values": [0, -1]}`, out)

	_, err = run(t, "decode", schemaPath, "Pong", "zz")
	assert.ErrorContains(t, err, "payload is not hex")

	_, err = run(t, "encode", schemaPath, "Missing", `{}`)
	assert.EqualError(t, err, "message test.Missing not found")
}

func TestReflect(t *testing.T) {
	chdir(t, t.TempDir())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, health.NewServer())
	reflection.Register(srv)
	go srv.Serve(lis)
	defer srv.Stop()

	out, err := run(t, "reflect", "grpc://"+lis.Addr().String(), "-o", "health.json", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "to health.json")

	set, err := loader.ReadJSONSet("health.json")
	require.NoError(t, err)
	require.NotEmpty(t, set.GetFile())
}
