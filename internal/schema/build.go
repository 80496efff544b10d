package schema

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/pkg/wire"
)

// MaxMessageID is the largest message-type id; the dispatch table is keyed by one byte.
const MaxMessageID = 255

// voidType names the placeholder message used as the output of methods without a response.
const voidType = "void"

// FromDescriptor builds the schema model of fd and validates everything that can be checked
// without cross-message analysis.
func FromDescriptor(fd *descriptorpb.FileDescriptorProto) (*File, error) {
	f := &File{
		Name:     fd.GetName(),
		Package:  fd.GetPackage(),
		messages: make(map[string]*Message),
		enums:    make(map[string]*Enum),
	}

	for _, ed := range fd.GetEnumType() {
		e := &Enum{Name: ed.GetName()}
		for _, v := range ed.GetValue() {
			if v.GetNumber() < 0 {
				return nil, Errorf(e.Name+"."+v.GetName(), "negative value %d does not fit the uint32_t enum", v.GetNumber())
			}
			e.Values = append(e.Values, EnumValue{Name: v.GetName(), Number: v.GetNumber()})
		}
		if _, dup := f.enums[e.Name]; dup {
			return nil, Errorf(e.Name, "enum declared twice")
		}
		f.enums[e.Name] = e
		f.Enums = append(f.Enums, e)
	}

	var errs []error
	for _, md := range fd.GetMessageType() {
		if md.GetName() == voidType {
			continue
		}
		m, err := f.buildMessage(md)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		f.messages[m.Name] = m
		f.Messages = append(f.Messages, m)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := f.checkReferences(); err != nil {
		return nil, err
	}
	if err := f.checkIDs(); err != nil {
		return nil, err
	}

	for _, sd := range fd.GetService() {
		s, err := f.buildService(sd)
		if err != nil {
			return nil, err
		}
		f.Services = append(f.Services, s)
	}
	return f, nil
}

func (f *File) buildMessage(md *descriptorpb.DescriptorProto) (*Message, error) {
	name := md.GetName()
	if len(md.GetNestedType()) > 0 || len(md.GetEnumType()) > 0 {
		return nil, Errorf(name, "nested types are not supported, declare them at file scope")
	}
	if _, dup := f.messages[name]; dup {
		return nil, Errorf(name, "message declared twice")
	}

	opts, err := parseCustomOptions(md.GetOptions())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	m := &Message{
		Name:      name,
		Ifdef:     opts.stringOpt(OptMessageIfdef),
		Log:       opts.boolOpt(OptMessageLog, true),
		BaseClass: opts.stringOpt(OptMessageBaseClass),
	}
	if id, ok := opts.varintOpt(OptMessageID); ok {
		if id > MaxMessageID {
			return nil, Errorf(name, "message id %d exceeds maximum of %d", id, MaxMessageID)
		}
		m.ID = uint32(id)
		m.HasID = true
	}
	if src, ok := opts.varintOpt(OptMessageSource); ok {
		if src > uint64(SourceClient) {
			return nil, Errorf(name, "unknown source %d", src)
		}
		m.Source = Source(src)
		m.HasSource = true
	}

	numbers := make(map[int32]string)
	for _, fdp := range md.GetField() {
		field, err := f.buildField(name, fdp)
		if err != nil {
			return nil, err
		}
		if prev, dup := numbers[field.Number]; dup {
			return nil, Errorf(name, "field %s reuses number %d of field %s", field.Name, field.Number, prev)
		}
		numbers[field.Number] = field.Name
		m.Fields = append(m.Fields, field)
	}
	return m, nil
}

func (f *File) buildField(msgName string, fdp *descriptorpb.FieldDescriptorProto) (*Field, error) {
	subject := msgName + "." + fdp.GetName()
	if fdp.GetNumber() < 1 || fdp.GetNumber() > wire.MaxFieldNumber {
		return nil, Errorf(subject, "field number %d out of range 1..%d", fdp.GetNumber(), wire.MaxFieldNumber)
	}
	if fdp.OneofIndex != nil && !fdp.GetProto3Optional() {
		return nil, Errorf(subject, "oneof fields are not supported")
	}

	opts, err := parseCustomOptions(fdp.GetOptions())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", subject, err)
	}

	field := &Field{
		Name:       fdp.GetName(),
		Number:     fdp.GetNumber(),
		Type:       fdp.GetType(),
		Repeated:   fdp.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED,
		Ifdef:      opts.stringOpt(OptFieldIfdef),
		Deprecated: fdp.GetOptions().GetDeprecated(),
	}
	if size, ok := opts.varintOpt(OptFieldFixedArraySize); ok {
		if size == 0 || size > 1<<16-1 {
			return nil, Errorf(subject, "fixed_array_size %d out of range 1..65535", size)
		}
		field.FixedArraySize = uint32(size)
	}
	if field.IsMessage() || field.IsEnum() {
		field.TypeName, err = f.localTypeName(fdp.GetTypeName())
		if err != nil {
			return nil, Errorf(subject, "%v", err)
		}
	}
	return field, nil
}

func (f *File) buildService(sd *descriptorpb.ServiceDescriptorProto) (*Service, error) {
	s := &Service{Name: sd.GetName()}
	for _, md := range sd.GetMethod() {
		subject := s.Name + "." + md.GetName()
		if md.GetClientStreaming() || md.GetServerStreaming() {
			return nil, Errorf(subject, "streaming methods are not supported")
		}

		opts, err := parseCustomOptions(md.GetOptions())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", subject, err)
		}
		m := &Method{
			Name:                 md.GetName(),
			NeedsSetupConnection: opts.boolOpt(OptMethodNeedsSetupConnection, true),
			NeedsAuthentication:  opts.boolOpt(OptMethodNeedsAuthentication, true),
		}

		if m.Input, err = f.localTypeName(md.GetInputType()); err != nil {
			return nil, Errorf(subject, "%v", err)
		}
		in := f.Message(m.Input)
		if in == nil {
			return nil, internalErrorf("%s: input type %s is not declared", subject, m.Input)
		}
		if !in.HasID {
			return nil, Errorf(subject, "input message %s has no id", m.Input)
		}

		out, err := f.localTypeName(md.GetOutputType())
		if err != nil {
			return nil, Errorf(subject, "%v", err)
		}
		if out != voidType {
			if f.Message(out) == nil {
				return nil, internalErrorf("%s: output type %s is not declared", subject, out)
			}
			if !f.Message(out).HasID {
				return nil, Errorf(subject, "output message %s has no id", out)
			}
			m.Output = out
		}
		s.Methods = append(s.Methods, m)
	}
	return s, nil
}

// localTypeName turns a fully-qualified reference like ".pkg.Name" into the file-scope name.
func (f *File) localTypeName(ref string) (string, error) {
	name := strings.TrimPrefix(ref, ".")
	if f.Package != "" {
		name = strings.TrimPrefix(name, f.Package+".")
	}
	if name == "" || strings.Contains(name, ".") {
		return "", fmt.Errorf("type %s is not declared at file scope of package %q", ref, f.Package)
	}
	return name, nil
}

func (f *File) checkReferences() error {
	for _, m := range f.Messages {
		for _, field := range m.Fields {
			switch {
			case field.IsMessage() && f.Message(field.TypeName) == nil:
				return internalErrorf("%s.%s references undeclared message %s", m.Name, field.Name, field.TypeName)
			case field.IsEnum() && f.Enum(field.TypeName) == nil:
				return internalErrorf("%s.%s references undeclared enum %s", m.Name, field.Name, field.TypeName)
			}
		}
	}
	return nil
}

func (f *File) checkIDs() error {
	owners := make(map[uint32]string)
	for _, m := range f.Messages {
		if !m.HasID {
			continue
		}
		if prev, dup := owners[m.ID]; dup {
			return Errorf(m.Name, "message id %d already used by %s", m.ID, prev)
		}
		owners[m.ID] = m.Name
	}
	return nil
}
