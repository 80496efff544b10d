// Package codegen emits the C++ message classes, their wire routines, the dump routines and the
// service dispatch layer.
package codegen

import (
	"regexp"
	"strings"

	"github.com/wham/apigen/internal/analyzer"
	"github.com/wham/apigen/internal/fieldtype"
	"github.com/wham/apigen/internal/schema"
)

// Options control naming in the generated code.
type Options struct {
	Namespace    string
	OutputBase   string
	ServiceClass string
	DumpGuard    string
	LogMacro     string
	LogTag       string
}

// DefaultOptions match the layout of the ESPHome native API component.
func DefaultOptions() Options {
	return Options{
		Namespace:    "esphome::api",
		OutputBase:   "api_pb2",
		ServiceClass: "APIServerConnection",
		DumpGuard:    "HAS_PROTO_MESSAGE_DUMP",
		LogMacro:     "ESP_LOGVV",
		LogTag:       "api.service",
	}
}

// Plan is everything emission reads: the schema, the analysis results and the per-field behavior
// of every message. It is not modified while files are emitted.
type Plan struct {
	File  *schema.File
	Usage *analyzer.Usage

	// Fields holds the active fields of every message, in declaration order.
	Fields map[string][]fieldtype.TypeInfo
	// Estimates holds ESTIMATED_SIZE of every message with an id.
	Estimates map[string]int
}

// Artifact is one generated file.
type Artifact struct {
	Name    string
	Content string
}

// Generate renders all files of plan. Files come back in a fixed order: header, implementation,
// dump implementation, service header, service implementation.
func Generate(plan *Plan, opts Options) []Artifact {
	e := &emitter{plan: plan, opts: opts}
	return []Artifact{
		{Name: opts.OutputBase + ".h", Content: e.header()},
		{Name: opts.OutputBase + ".cpp", Content: e.implementation()},
		{Name: opts.OutputBase + "_dump.cpp", Content: e.dumpImplementation()},
		{Name: opts.OutputBase + "_service.h", Content: e.serviceHeader()},
		{Name: opts.OutputBase + "_service.cpp", Content: e.serviceImplementation()},
	}
}

type emitter struct {
	plan *Plan
	opts Options
}

func (e *emitter) source(m *schema.Message) schema.Source {
	return e.plan.Usage.SourceOf(m.Name)
}

func (e *emitter) prelude(g *printer, includes ...string) {
	g.p("// Code generated by apigen from %s. DO NOT EDIT.", e.plan.File.Name)
	g.blank()
	for _, inc := range includes {
		g.text(inc)
	}
	g.blank()
}

func (e *emitter) openNamespace(g *printer) {
	for _, ns := range strings.Split(e.opts.Namespace, "::") {
		g.p("namespace %s {", ns)
	}
	g.blank()
}

func (e *emitter) closeNamespace(g *printer) {
	g.setGuard("")
	g.blank()
	parts := strings.Split(e.opts.Namespace, "::")
	for i := len(parts) - 1; i >= 0; i-- {
		g.p("}  // namespace %s", parts[i])
	}
}

var (
	camelWord  = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	camelUpper = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// snakeCase turns HelloRequest into hello_request and BluetoothLEAdvertisement into
// bluetooth_le_advertisement.
func snakeCase(name string) string {
	s := camelWord.ReplaceAllString(name, "${1}_${2}")
	return strings.ToLower(camelUpper.ReplaceAllString(s, "${1}_${2}"))
}
