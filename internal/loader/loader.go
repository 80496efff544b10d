// Package loader turns the user's input into a descriptor set: .proto sources through protoc or
// the built-in parser, saved descriptor sets in binary or JSON form, or a live gRPC server.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

type Parser string

const (
	ParserProtoc  Parser = "protoc"
	ParserBuiltin Parser = "builtin"
)

type Options struct {
	Parser      Parser
	ImportPaths []string
	// Protoc is the protoc binary; "" looks it up in PATH.
	Protoc string
}

// Input is a loaded descriptor set and the file code is generated for. Dependencies come before
// the files importing them.
type Input struct {
	Set  *descriptorpb.FileDescriptorSet
	Main *descriptorpb.FileDescriptorProto
}

// Load reads path. Descriptor sets are recognized by extension: .json is protojson, .pb, .binpb
// and .desc are binary. Everything else is parsed as a .proto source.
func Load(ctx context.Context, path string, opts Options) (*Input, error) {
	var (
		set *descriptorpb.FileDescriptorSet
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		set, err = ReadJSONSet(path)
	case ".pb", ".binpb", ".desc":
		set, err = ReadBinarySet(path)
	default:
		return loadProto(ctx, path, opts)
	}
	if err != nil {
		return nil, err
	}
	return fromSet(set, "")
}

func loadProto(ctx context.Context, path string, opts Options) (*Input, error) {
	importPaths := opts.ImportPaths
	if len(importPaths) == 0 {
		importPaths = []string{filepath.Dir(path)}
	}
	name, err := relativeName(path, importPaths)
	if err != nil {
		return nil, err
	}

	var set *descriptorpb.FileDescriptorSet
	switch opts.Parser {
	case ParserBuiltin:
		set, err = ParseBuiltin(name, importPaths)
	case ParserProtoc, "":
		set, err = RunProtoc(ctx, opts.Protoc, name, importPaths)
	default:
		return nil, fmt.Errorf("unknown parser %q, use %s or %s", opts.Parser, ParserProtoc, ParserBuiltin)
	}
	if err != nil {
		return nil, err
	}
	return fromSet(set, name)
}

// relativeName returns path relative to the first import path containing it, which is how protoc
// names files.
func relativeName(path string, importPaths []string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for _, ip := range importPaths {
		root, err := filepath.Abs(ip)
		if err != nil {
			return "", err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.ToSlash(rel), nil
	}
	return "", fmt.Errorf("%s is not under any import path %v", path, importPaths)
}

// fromSet orders set and picks main: the file called name, or the last file when name is "".
func fromSet(set *descriptorpb.FileDescriptorSet, name string) (*Input, error) {
	if len(set.GetFile()) == 0 {
		return nil, fmt.Errorf("descriptor set is empty")
	}
	sorted, err := Sort(set.GetFile())
	if err != nil {
		return nil, err
	}
	set = &descriptorpb.FileDescriptorSet{File: sorted}

	if name == "" {
		return &Input{Set: set, Main: sorted[len(sorted)-1]}, nil
	}
	for _, fd := range sorted {
		if fd.GetName() == name {
			return &Input{Set: set, Main: fd}, nil
		}
	}
	return nil, fmt.Errorf("%s is missing from the descriptor set", name)
}

// Sort orders files so that every file follows its dependencies. Files without a relation keep
// their input order.
func Sort(files []*descriptorpb.FileDescriptorProto) ([]*descriptorpb.FileDescriptorProto, error) {
	byName := make(map[string]*descriptorpb.FileDescriptorProto, len(files))
	for _, fd := range files {
		if _, ok := byName[fd.GetName()]; ok {
			return nil, fmt.Errorf("file %s appears twice in the descriptor set", fd.GetName())
		}
		byName[fd.GetName()] = fd
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var out []*descriptorpb.FileDescriptorProto
	var visit func(fd *descriptorpb.FileDescriptorProto) error
	visit = func(fd *descriptorpb.FileDescriptorProto) error {
		switch state[fd.GetName()] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("import cycle through %s", fd.GetName())
		}
		state[fd.GetName()] = visiting
		for _, dep := range fd.GetDependency() {
			d, ok := byName[dep]
			if !ok {
				return fmt.Errorf("%s imports %s which is missing from the descriptor set", fd.GetName(), dep)
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		state[fd.GetName()] = done
		out = append(out, fd)
		return nil
	}
	for _, fd := range files {
		if err := visit(fd); err != nil {
			return nil, err
		}
	}
	return out, nil
}
