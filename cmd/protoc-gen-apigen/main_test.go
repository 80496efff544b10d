package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"

	st "github.com/wham/apigen/internal/schematest"
)

func request(parameter string, files ...*descriptorpb.FileDescriptorProto) *pluginpb.CodeGeneratorRequest {
	req := &pluginpb.CodeGeneratorRequest{ProtoFile: files}
	if parameter != "" {
		req.Parameter = proto.String(parameter)
	}
	for _, f := range files {
		req.FileToGenerate = append(req.FileToGenerate, f.GetName())
	}
	return req
}

func pingPong(name string) *descriptorpb.FileDescriptorProto {
	fd := st.File(
		st.ID(st.Message("Ping"), 7),
		st.ID(st.Message("Pong", st.Field("count", 1, st.Uint32)), 8),
		st.Service("APIConnection", st.Method("ping", "Ping", "Pong")),
	)
	fd.Name = proto.String(name)
	return fd
}

func TestGenerate(t *testing.T) {
	chdir(t, t.TempDir())

	resp := generate(request("namespace=proxy,output_base=proxy_pb", pingPong("proxy/api.proto")))
	require.Empty(t, resp.GetError())

	var names []string
	for _, f := range resp.GetFile() {
		names = append(names, f.GetName())
	}
	assert.Equal(t, []string{
		"proxy/proxy_pb.h", "proxy/proxy_pb.cpp", "proxy/proxy_pb_dump.cpp",
		"proxy/proxy_pb_service.h", "proxy/proxy_pb_service.cpp",
	}, names)
	assert.Contains(t, resp.GetFile()[0].GetContent(), "namespace proxy {")
	assert.Contains(t, resp.GetFile()[1].GetContent(), "buffer.encode_uint32(1, this->count);")
}

func TestGenerateReportsSchemaErrors(t *testing.T) {
	chdir(t, t.TempDir())

	fd := st.File(st.ID(st.Message("Big"), 300))
	resp := generate(request("", fd))
	assert.Contains(t, resp.GetError(), "test.proto: Big: message id 300 exceeds maximum of 255")
	assert.Empty(t, resp.GetFile())
}

func TestGenerateRejectsBadParameters(t *testing.T) {
	chdir(t, t.TempDir())

	resp := generate(request("colour=red", pingPong("api.proto")))
	assert.Equal(t, `unknown parameter "colour"`, resp.GetError())

	resp = generate(request("namespace=1up", pingPong("api.proto")))
	assert.Contains(t, resp.GetError(), "is not a C++ identifier")
}

func TestGenerateRejectsCollidingOutputs(t *testing.T) {
	chdir(t, t.TempDir())

	resp := generate(request("", pingPong("a.proto"), pingPong("b.proto")))
	assert.Equal(t, "a.proto and b.proto both generate api_pb2.h, set a different output_base", resp.GetError())
	assert.Empty(t, resp.GetFile())
}
