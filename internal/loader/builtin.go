package loader

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ParseBuiltin parses name in-process, for machines without protoc. Standard imports such as
// google/protobuf/descriptor.proto are provided by the parser.
func ParseBuiltin(name string, importPaths []string) (*descriptorpb.FileDescriptorSet, error) {
	parser := protoparse.Parser{
		ImportPaths:           importPaths,
		IncludeSourceCodeInfo: false,
	}
	fds, err := parser.ParseFiles(name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proto file %s: %w", name, err)
	}

	set := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	var add func(fd *desc.FileDescriptor)
	add = func(fd *desc.FileDescriptor) {
		if seen[fd.GetName()] {
			return
		}
		seen[fd.GetName()] = true
		for _, dep := range fd.GetDependencies() {
			add(dep)
		}
		set.File = append(set.File, fd.AsFileDescriptorProto())
	}
	for _, fd := range fds {
		add(fd)
	}
	// The parser may hand custom options back as resolved extensions; the schema reads them from
	// unknown fields, the way protoc delivers them.
	return reparse(set, nil)
}
