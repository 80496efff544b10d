package compiler

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/internal/codegen"
	"github.com/wham/apigen/internal/logging"
	"github.com/wham/apigen/internal/schema"
	st "github.com/wham/apigen/internal/schematest"
)

func pingPong() *descriptorpb.FileDescriptorProto {
	return st.File(
		st.ID(st.Message("Ping"), 1),
		st.ID(st.Message("Pong", st.Field("count", 1, st.Uint32)), 2),
		st.Service("APIConnection", st.Method("ping", "Ping", "Pong")),
	)
}

func artifact(t *testing.T, r *Result, name string) string {
	t.Helper()
	for _, a := range r.Artifacts {
		if a.Name == name {
			return a.Content
		}
	}
	t.Fatalf("artifact %s not generated", name)
	return ""
}

func TestCompilePingPong(t *testing.T) {
	r, err := Compile(pingPong(), codegen.DefaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, r.Artifacts, 5)

	h := artifact(t, r, "api_pb2.h")
	assert.Contains(t, h, "class Ping : public ProtoDecodableMessage {")
	assert.Contains(t, h, "static constexpr uint8_t MESSAGE_TYPE = 2;")
	assert.Contains(t, h, "static constexpr uint8_t ESTIMATED_SIZE = 4;")
	assert.Contains(t, h, "uint32_t count{0};")

	cpp := artifact(t, r, "api_pb2.cpp")
	assert.Contains(t, cpp, "void Ping::encode(ProtoWriteBuffer buffer) const {}")
	assert.Contains(t, cpp, "void Ping::calculate_size(uint32_t &total_size) const {}")
	assert.Contains(t, cpp, "void Pong::encode(ProtoWriteBuffer buffer) const { buffer.encode_uint32(1, this->count); }")
	assert.Contains(t, cpp, "ProtoSize::add_uint32_field(total_size, 1, this->count);")

	svc := artifact(t, r, "api_pb2_service.cpp")
	assert.Contains(t, svc, "Pong ret = this->ping(msg);")
	assert.Contains(t, svc, "    case 1: {\n      Ping msg;\n")

	assert.NotEmpty(t, r.Diagnostics)
}

func TestCompileIsDeterministic(t *testing.T) {
	first, err := Compile(pingPong(), codegen.DefaultOptions(), nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Compile(pingPong(), codegen.DefaultOptions(), nil)
		require.NoError(t, err)
		assert.Equal(t, first.Artifacts, again.Artifacts)
	}
}

func TestCompileRejectsLargeID(t *testing.T) {
	fd := st.File(st.ID(st.Message("Big"), 300))

	r, err := Compile(fd, codegen.DefaultOptions(), nil)
	assert.Nil(t, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestCompileRejectsFixedArrayOnDecodedMessage(t *testing.T) {
	fd := st.File(st.ID(st.Message("Readings",
		st.FixedArraySize(st.Repeated(st.Field("values", 1, st.Float)), 4),
	), 20))

	_, err := Compile(fd, codegen.DefaultOptions(), nil)
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Readings.values", verr.Subject)
	assert.Contains(t, verr.Msg, "fixed_array_size is only allowed on encode-only messages")

	fd = st.File(st.ID(st.Source(st.Message("Readings",
		st.FixedArraySize(st.Repeated(st.Field("values", 1, st.Float)), 4),
	), schema.SourceServer), 20))
	_, err = Compile(fd, codegen.DefaultOptions(), nil)
	assert.NoError(t, err)
}

func TestCompileRejectsOversizedEstimate(t *testing.T) {
	var fields []*descriptorpb.FieldDescriptorProto
	for i, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o", "p"} {
		fields = append(fields, st.MessageField(name, int32(i+1), "Inner"))
	}
	fd := st.File(
		st.Message("Inner", st.Field("x", 1, st.Uint32)),
		st.ID(st.Message("Outer", fields...), 30),
	)

	_, err := Compile(fd, codegen.DefaultOptions(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Outer: estimated size 272 exceeds maximum of 255")
}

func TestCompileCollectsFieldErrors(t *testing.T) {
	fd := st.File(
		st.Message("A", st.Field("x", 1, st.Double)),
		st.Message("B", st.Field("y", 1, st.Fixed64), st.Field("z", 2, st.Sint64)),
	)

	_, err := Compile(fd, codegen.DefaultOptions(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A.x")
	assert.Contains(t, err.Error(), "B.y")
	assert.Contains(t, err.Error(), "B.z")
}

func TestCompileChecksMethods(t *testing.T) {
	tests := []struct {
		name string
		fd   *descriptorpb.FileDescriptorProto
		want string
	}{
		{
			name: "input never received",
			fd: st.File(
				st.ID(st.Source(st.Message("State"), schema.SourceServer), 1),
				st.Service("S", st.Method("push", "State", "void")),
			),
			want: "S.push: input message State is never received, its source is SERVER",
		},
		{
			name: "output never sent",
			fd: st.File(
				st.ID(st.Message("Req"), 1),
				st.ID(st.Source(st.Message("Resp"), schema.SourceClient), 2),
				st.Service("S", st.Method("call", "Req", "Resp")),
			),
			want: "S.call: output message Resp is never sent, its source is CLIENT",
		},
		{
			name: "input handled twice",
			fd: st.File(
				st.ID(st.Message("Req"), 1),
				st.Service("S", st.Method("first", "Req", "void"), st.Method("second", "Req", "void")),
			),
			want: "S.second: input message Req is already handled by S.first",
		},
		{
			name: "output guarded differently",
			fd: st.File(
				st.Ifdef(st.ID(st.Message("Req"), 1), "USE_A"),
				st.Ifdef(st.ID(st.Source(st.Message("Resp"), schema.SourceServer), 2), "USE_B"),
				st.Service("S", st.Method("call", "Req", "Resp")),
			),
			want: `S.call: output message Resp is guarded by USE_B, the handler by "USE_A"`,
		},
		{
			name: "guarded output of an unguarded handler",
			fd: st.File(
				st.ID(st.Message("Req"), 1),
				st.Ifdef(st.ID(st.Source(st.Message("Resp"), schema.SourceServer), 2), "USE_B"),
				st.Service("S", st.Method("call", "Req", "Resp")),
			),
			want: `S.call: output message Resp is guarded by USE_B, the handler by ""`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.fd, codegen.DefaultOptions(), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompileAcceptsUnguardedOutput(t *testing.T) {
	fd := st.File(
		st.Ifdef(st.ID(st.Message("Req"), 1), "USE_A"),
		st.ID(st.Source(st.Message("Resp"), schema.SourceServer), 2),
		st.Service("S", st.Method("call", "Req", "Resp")),
	)

	r, err := Compile(fd, codegen.DefaultOptions(), nil)
	require.NoError(t, err)
	svc := artifact(t, r, "api_pb2_service.cpp")
	assert.Contains(t, svc, "#ifdef USE_A\nvoid APIServerConnection::on_req(const Req &msg) {")
}

func TestCompileReportsMissingReferenceAsInternal(t *testing.T) {
	fd := st.File(st.Message("A", st.MessageField("b", 1, "Missing")))

	_, err := Compile(fd, codegen.DefaultOptions(), nil)
	var ierr *schema.InternalError
	assert.True(t, errors.As(err, &ierr))
}

func TestCompileLogsFailure(t *testing.T) {
	logger := logging.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := Compile(st.File(st.ID(st.Message("Big"), 300)), codegen.DefaultOptions(), logger)
	require.Error(t, err)

	d := logger.Diagnostics()
	require.NotEmpty(t, d)
	last := d[len(d)-1]
	assert.Equal(t, slog.LevelError, last.Level)
	assert.Contains(t, last.Message, "Compilation failed")
}

func TestNewContextPlansEveryMessage(t *testing.T) {
	c, err := NewContext(pingPong(), codegen.DefaultOptions(), logging.New(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	assert.Len(t, c.Plan.Fields["Pong"], 1)
	assert.Empty(t, c.Plan.Fields["Ping"])
	assert.Equal(t, map[string]int{"Ping": 0, "Pong": 4}, c.Plan.Estimates)
	assert.Equal(t, schema.SourceBoth, c.Usage.SourceOf("Ping"))
}
