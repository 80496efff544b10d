package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/internal/schema"
	st "github.com/wham/apigen/internal/schematest"
)

func TestFromDescriptor(t *testing.T) {
	fd := st.File(
		st.Enum("Color", "COLOR_RED", "COLOR_GREEN"),
		st.Ifdef(st.Source(st.ID(st.Message("Light",
			st.Field("key", 1, st.Fixed32),
			st.EnumField("color", 2, "Color"),
			st.Deprecated(st.Field("legacy", 3, st.Bool)),
			st.FieldIfdef(st.Field("effect", 4, st.String), "USE_LIGHT_EFFECTS"),
		), 10), schema.SourceServer), "USE_LIGHT"),
		st.NoLog(st.ID(st.Message("LightCommand", st.Field("key", 1, st.Fixed32)), 11)),
		st.Service("APIConnection",
			st.NoAuthentication(st.Method("light_command", "LightCommand", "void")),
			st.Method("light_state", "LightCommand", "Light"),
		),
	)

	f, err := schema.FromDescriptor(fd)
	require.NoError(t, err)

	assert.Equal(t, "test", f.Package)
	require.Len(t, f.Messages, 2, "void placeholder is skipped")

	light := f.Message("Light")
	require.NotNil(t, light)
	assert.True(t, light.HasID)
	assert.Equal(t, uint32(10), light.ID)
	assert.True(t, light.HasSource)
	assert.Equal(t, schema.SourceServer, light.Source)
	assert.Equal(t, "USE_LIGHT", light.Ifdef)
	assert.True(t, light.Log)

	require.Len(t, light.Fields, 4)
	assert.Equal(t, "Color", light.Fields[1].TypeName)
	assert.True(t, light.Fields[1].IsEnum())
	assert.True(t, light.Fields[2].Deprecated)
	assert.Equal(t, "USE_LIGHT_EFFECTS", light.Fields[3].Ifdef)

	active := light.ActiveFields()
	require.Len(t, active, 3)
	assert.Equal(t, "effect", active[2].Name)

	cmd := f.Message("LightCommand")
	assert.False(t, cmd.Log)
	assert.False(t, cmd.HasSource)

	require.Len(t, f.Services, 1)
	methods := f.Services[0].Methods
	require.Len(t, methods, 2)
	assert.True(t, methods[0].Void())
	assert.True(t, methods[0].NeedsSetupConnection)
	assert.False(t, methods[0].NeedsAuthentication)
	assert.Equal(t, "Light", methods[1].Output)
	assert.True(t, methods[1].NeedsAuthentication)

	require.Len(t, f.IDMessages(), 2)
	assert.Equal(t, []schema.EnumValue{{Name: "COLOR_RED", Number: 0}, {Name: "COLOR_GREEN", Number: 1}}, f.Enum("Color").Values)
}

func TestFromDescriptorMessageIDExceedsMaximum(t *testing.T) {
	fd := st.File(st.ID(st.Message("Big"), 300))

	_, err := schema.FromDescriptor(fd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")

	var verr *schema.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "Big", verr.Subject)
}

func TestFromDescriptorValidation(t *testing.T) {
	tests := []struct {
		name string
		fd   *descriptorpb.FileDescriptorProto
		want string
	}{
		{
			name: "duplicate id",
			fd:   st.File(st.ID(st.Message("A"), 1), st.ID(st.Message("B"), 1)),
			want: "B: message id 1 already used by A",
		},
		{
			name: "duplicate field number",
			fd:   st.File(st.Message("A", st.Field("x", 1, st.Bool), st.Field("y", 1, st.Bool))),
			want: "reuses number 1",
		},
		{
			name: "field number zero",
			fd:   st.File(st.Message("A", st.Field("x", 0, st.Bool))),
			want: "out of range",
		},
		{
			name: "duplicate message",
			fd:   st.File(st.Message("A"), st.Message("A")),
			want: "declared twice",
		},
		{
			name: "unknown source",
			fd:   st.File(st.Source(st.Message("A"), schema.Source(9))),
			want: "unknown source 9",
		},
		{
			name: "zero fixed array size",
			fd:   st.File(st.Message("A", st.FixedArraySize(st.Repeated(st.Field("x", 1, st.Uint32)), 0))),
			want: "fixed_array_size 0",
		},
		{
			name: "method input without id",
			fd: st.File(
				st.Message("A"),
				st.Service("S", st.Method("a", "A", "void")),
			),
			want: "input message A has no id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.FromDescriptor(tt.fd)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var verr *schema.ValidationError
			assert.True(t, errors.As(err, &verr), "want a validation error, got %T", err)
		})
	}
}

func TestFromDescriptorNestedTypes(t *testing.T) {
	outer := st.Message("Outer")
	outer.NestedType = []*descriptorpb.DescriptorProto{st.Message("Inner")}

	_, err := schema.FromDescriptor(st.File(outer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested types are not supported")
}

func TestFromDescriptorNegativeEnumValue(t *testing.T) {
	e := st.Enum("Direction", "DIRECTION_FORWARD")
	e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
		Name:   proto.String("DIRECTION_BACK"),
		Number: proto.Int32(-1),
	})

	_, err := schema.FromDescriptor(st.File(e))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Direction.DIRECTION_BACK: negative value -1 does not fit the uint32_t enum")

	var verr *schema.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestFromDescriptorMissingReference(t *testing.T) {
	fd := st.File(st.Message("A", st.MessageField("b", 1, "Missing")))

	_, err := schema.FromDescriptor(fd)
	require.Error(t, err)

	var ierr *schema.InternalError
	require.True(t, errors.As(err, &ierr))
	assert.Contains(t, ierr.Error(), "internal error: A.b references undeclared message Missing")
}

func TestFromDescriptorCollectsMessageErrors(t *testing.T) {
	fd := st.File(
		st.ID(st.Message("A"), 256),
		st.ID(st.Message("B"), 1000),
	)

	_, err := schema.FromDescriptor(fd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A: message id 256")
	assert.Contains(t, err.Error(), "B: message id 1000")
}

func TestFromDescriptorWithoutPackage(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name: proto.String("bare.proto"),
		MessageType: []*descriptorpb.DescriptorProto{
			st.Message("A"),
			st.Message("B", &descriptorpb.FieldDescriptorProto{
				Name:     proto.String("a"),
				Number:   proto.Int32(1),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
				TypeName: proto.String(".A"),
			}),
		},
	}

	f, err := schema.FromDescriptor(fd)
	require.NoError(t, err)
	assert.Equal(t, "A", f.Message("B").Fields[0].TypeName)
}

func TestSourceCapabilities(t *testing.T) {
	assert.True(t, schema.SourceBoth.Encodes())
	assert.True(t, schema.SourceBoth.Decodes())
	assert.True(t, schema.SourceServer.Encodes())
	assert.False(t, schema.SourceServer.Decodes())
	assert.False(t, schema.SourceClient.Encodes())
	assert.True(t, schema.SourceClient.Decodes())
	assert.Equal(t, "CLIENT", schema.SourceClient.String())
}
