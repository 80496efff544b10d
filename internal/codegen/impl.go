package codegen

import (
	"fmt"

	"github.com/wham/apigen/internal/fieldtype"
	"github.com/wham/apigen/internal/schema"
)

func (e *emitter) implementation() string {
	g := &printer{}
	e.prelude(g,
		fmt.Sprintf(`#include "%s.h"`, e.opts.OutputBase),
		`#include "esphome/core/log.h"`,
		`#include "esphome/core/helpers.h"`,
	)
	e.openNamespace(g)

	for _, m := range e.plan.File.Messages {
		g.setGuard(e.plan.Usage.IfdefOf(m.Name))
		e.messageRoutines(g, m)
	}

	e.closeNamespace(g)
	return g.finish()
}

func (e *emitter) messageRoutines(g *printer, m *schema.Message) {
	fields := e.plan.Fields[m.Name]

	for _, entry := range fieldtype.DecodeEntries {
		arms := decodeArms(fields, entry)
		if len(arms) == 0 {
			continue
		}
		g.p("bool %s::%s(uint32_t field_id, %s value) {", m.Name, entry.Method(), entry.ValueType())
		g.in()
		g.p("switch (field_id) {")
		g.in()
		for _, arm := range arms {
			g.text(arm)
		}
		g.p("default:")
		g.p("  return false;")
		g.out()
		g.p("}")
		g.out()
		g.p("}")
	}

	if !e.source(m).Encodes() {
		return
	}
	var encode, size []string
	for _, ti := range fields {
		if s := ti.Encode(); s != "" {
			encode = append(encode, guarded(ti.Field().Ifdef, s))
		}
		if s := ti.Size(); s != "" {
			size = append(size, guarded(ti.Field().Ifdef, s))
		}
	}
	g.function(fmt.Sprintf("void %s::encode(ProtoWriteBuffer buffer) const", m.Name), encode)
	g.function(fmt.Sprintf("void %s::calculate_size(uint32_t &total_size) const", m.Name), size)
}

func (e *emitter) dumpImplementation() string {
	g := &printer{}
	e.prelude(g,
		fmt.Sprintf(`#include "%s.h"`, e.opts.OutputBase),
		`#include "esphome/core/helpers.h"`,
		"",
		"#include <cinttypes>",
	)
	g.text("#ifdef " + e.opts.DumpGuard)
	g.blank()
	e.openNamespace(g)

	for _, en := range e.plan.File.Enums {
		g.setGuard(e.plan.Usage.IfdefOf(en.Name))
		e.enumToString(g, en)
	}
	for _, m := range e.plan.File.Messages {
		g.setGuard(e.plan.Usage.IfdefOf(m.Name))
		e.dumpTo(g, m)
	}

	e.closeNamespace(g)
	g.blank()
	g.text("#endif  // " + e.opts.DumpGuard)
	return g.finish()
}

func (e *emitter) enumToString(g *printer, en *schema.Enum) {
	g.p("template<> const char *proto_enum_to_string<enums::%s>(enums::%s value) {", en.Name, en.Name)
	g.in()
	g.p("switch (value) {")
	g.in()
	for _, v := range en.Values {
		g.p("case enums::%s:", v.Name)
		g.p("  return \"%s\";", v.Name)
	}
	g.p("default:")
	g.p("  return \"UNKNOWN\";")
	g.out()
	g.p("}")
	g.out()
	g.p("}")
}

func (e *emitter) dumpTo(g *printer, m *schema.Message) {
	signature := fmt.Sprintf("void %s::dump_to(std::string &out) const", m.Name)
	fields := e.plan.Fields[m.Name]
	if len(fields) == 0 {
		g.function(signature, []string{fmt.Sprintf(`out.append("%s {}");`, m.Name)})
		return
	}

	body := []string{
		"__attribute__((unused)) char buffer[64];",
		fmt.Sprintf(`out.append("%s {\n");`, m.Name),
	}
	for _, ti := range fields {
		body = append(body, guarded(ti.Field().Ifdef, ti.Dump()))
	}
	body = append(body, `out.append("}");`)
	g.function(signature, body)
}
