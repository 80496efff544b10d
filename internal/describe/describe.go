// Package describe prints a schema back as .proto text, annotated with what the analysis passes
// decided about every declaration.
package describe

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/internal/compiler"
	"github.com/wham/apigen/internal/schema"
)

// Render describes the schema of c.
func Render(c *compiler.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s\n\n", c.File.Name)
	if c.File.Package != "" {
		fmt.Fprintf(&b, "package %s;\n\n", c.File.Package)
	}

	for _, en := range c.File.Enums {
		writeEnum(&b, c, en)
	}
	for _, base := range c.Usage.BaseClasses() {
		fmt.Fprintf(&b, "// base class %s of %s shares %s\n\n", base.Name, strings.Join(base.Members, ", "), fieldNames(base.Fields))
	}
	for _, m := range c.File.Messages {
		writeMessage(&b, c, m)
	}
	for _, s := range c.File.Services {
		writeService(&b, s)
	}
	return b.String()
}

func fieldNames(fields []*schema.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

func writeEnum(b *strings.Builder, c *compiler.Context, en *schema.Enum) {
	if guard := c.Usage.IfdefOf(en.Name); guard != "" {
		fmt.Fprintf(b, "// ifdef %s\n", guard)
	}
	fmt.Fprintf(b, "enum %s {\n", en.Name)
	for _, v := range en.Values {
		fmt.Fprintf(b, "  %s = %d;\n", v.Name, v.Number)
	}
	b.WriteString("}\n\n")
}

func writeMessage(b *strings.Builder, c *compiler.Context, m *schema.Message) {
	var notes []string
	if m.HasID {
		notes = append(notes, fmt.Sprintf("id %d", m.ID), fmt.Sprintf("estimated size %d", c.Plan.Estimates[m.Name]))
	}
	source := c.Usage.SourceOf(m.Name).String()
	if !m.HasSource {
		source += " (inferred)"
	}
	notes = append(notes, "source "+source)
	if guard := c.Usage.IfdefOf(m.Name); guard != "" {
		if m.Ifdef == "" {
			guard += " (inferred)"
		}
		notes = append(notes, "ifdef "+guard)
	}
	if !c.Usage.UsedByID(m.Name) {
		notes = append(notes, "unreachable from any id message")
	}
	if base := c.Usage.BaseOf(m.Name); base != nil {
		notes = append(notes, "base class "+base.Name)
	}
	if !m.Log {
		notes = append(notes, "not logged")
	}
	fmt.Fprintf(b, "// %s\n", strings.Join(notes, ", "))

	fmt.Fprintf(b, "message %s {\n", m.Name)
	for _, f := range m.Fields {
		writeField(b, f)
	}
	b.WriteString("}\n\n")
}

func writeField(b *strings.Builder, f *schema.Field) {
	label := ""
	if f.Repeated {
		label = "repeated "
	}
	fmt.Fprintf(b, "  %s%s %s = %d;", label, typeName(f), f.Name, f.Number)

	var notes []string
	if f.Ifdef != "" {
		notes = append(notes, "ifdef "+f.Ifdef)
	}
	if f.FixedArraySize > 0 {
		notes = append(notes, fmt.Sprintf("fixed_array_size %d", f.FixedArraySize))
	}
	if f.Deprecated {
		notes = append(notes, "deprecated, not generated")
	}
	if len(notes) > 0 {
		fmt.Fprintf(b, " // %s", strings.Join(notes, ", "))
	}
	b.WriteString("\n")
}

func typeName(f *schema.Field) string {
	switch f.Type {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		return f.TypeName
	}
	return strings.ToLower(strings.TrimPrefix(f.Type.String(), "TYPE_"))
}

func writeService(b *strings.Builder, s *schema.Service) {
	fmt.Fprintf(b, "service %s {\n", s.Name)
	for _, m := range s.Methods {
		output := m.Output
		if m.Void() {
			output = "void"
		}
		fmt.Fprintf(b, "  rpc %s(%s) returns (%s);", m.Name, m.Input, output)
		switch {
		case m.NeedsAuthentication:
			b.WriteString(" // needs authentication")
		case m.NeedsSetupConnection:
			b.WriteString(" // needs connection setup")
		default:
			b.WriteString(" // always allowed")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}
