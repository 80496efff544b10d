// Package compiler runs the generator pipeline over one descriptor file.
package compiler

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/apigen/internal/analyzer"
	"github.com/wham/apigen/internal/codegen"
	"github.com/wham/apigen/internal/estimator"
	"github.com/wham/apigen/internal/fieldtype"
	"github.com/wham/apigen/internal/logging"
	"github.com/wham/apigen/internal/schema"
)

// Context owns all state of one run. Nothing in it changes once emission starts.
type Context struct {
	File    *schema.File
	Usage   *analyzer.Usage
	Plan    *codegen.Plan
	Options codegen.Options
	Logger  *logging.Logger
}

type Result struct {
	Artifacts   []codegen.Artifact
	Diagnostics []logging.Diagnostic
}

// Compile turns fd into the generated files. On error no artifacts are returned.
func Compile(fd *descriptorpb.FileDescriptorProto, opts codegen.Options, logger *logging.Logger) (*Result, error) {
	if logger == nil {
		logger = logging.New(nil)
	}
	ctx, err := NewContext(fd, opts, logger)
	if err != nil {
		logger.Error("Compilation failed", err)
		return nil, err
	}
	artifacts := codegen.Generate(ctx.Plan, opts)
	for _, a := range artifacts {
		logger.Debug("Generated "+a.Name, "bytes", len(a.Content))
	}
	logger.Info("Compilation completed", "file", fd.GetName(), "messages", len(ctx.File.Messages))
	return &Result{Artifacts: artifacts, Diagnostics: logger.Diagnostics()}, nil
}

// NewContext validates fd and computes everything emission needs.
func NewContext(fd *descriptorpb.FileDescriptorProto, opts codegen.Options, logger *logging.Logger) (*Context, error) {
	logger.Debug("Reading schema", "file", fd.GetName())
	file, err := schema.FromDescriptor(fd)
	if err != nil {
		return nil, err
	}

	c := &Context{
		File:    file,
		Usage:   analyzer.Analyze(file, logger.Slog()),
		Options: opts,
		Logger:  logger,
	}
	c.Plan = &codegen.Plan{
		File:      file,
		Usage:     c.Usage,
		Fields:    make(map[string][]fieldtype.TypeInfo),
		Estimates: make(map[string]int),
	}

	var errs []error
	for _, m := range file.Messages {
		if err := c.planMessage(m); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, c.checkMethods()...)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Context) planMessage(m *schema.Message) error {
	dir := c.Usage.SourceOf(m.Name)
	logger := c.Logger.Slog().With("message", m.Name)
	logger.Debug("Planning message", "source", dir.String(), "ifdef", c.Usage.IfdefOf(m.Name))

	var errs []error
	var fields []fieldtype.TypeInfo
	for _, f := range m.ActiveFields() {
		ti, err := fieldtype.New(m, f, dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fields = append(fields, ti)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.Plan.Fields[m.Name] = fields

	if !m.HasID {
		return nil
	}
	est, err := estimator.Message(m, fields)
	if err != nil {
		return err
	}
	c.Plan.Estimates[m.Name] = est
	return nil
}

// checkMethods makes sure every method can be dispatched: its input is received, its output is
// sent and compiled wherever the handler is, and no input message is claimed by two methods.
func (c *Context) checkMethods() []error {
	var errs []error
	handled := make(map[string]string)
	for _, s := range c.File.Services {
		for _, m := range s.Methods {
			subject := fmt.Sprintf("%s.%s", s.Name, m.Name)
			if !c.Usage.SourceOf(m.Input).Decodes() {
				errs = append(errs, schema.Errorf(subject, "input message %s is never received, its source is %s", m.Input, c.Usage.SourceOf(m.Input)))
			}
			if !m.Void() && !c.Usage.SourceOf(m.Output).Encodes() {
				errs = append(errs, schema.Errorf(subject, "output message %s is never sent, its source is %s", m.Output, c.Usage.SourceOf(m.Output)))
			}
			// The handler is emitted under the input's guard.
			if !m.Void() {
				in, out := c.Usage.IfdefOf(m.Input), c.Usage.IfdefOf(m.Output)
				if out != "" && out != in {
					errs = append(errs, schema.Errorf(subject, "output message %s is guarded by %s, the handler by %q", m.Output, out, in))
				}
			}
			if prev, ok := handled[m.Input]; ok {
				errs = append(errs, schema.Errorf(subject, "input message %s is already handled by %s", m.Input, prev))
				continue
			}
			handled[m.Input] = subject
		}
	}
	return errs
}
