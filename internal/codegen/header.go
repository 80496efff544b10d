package codegen

import (
	"fmt"

	"github.com/wham/apigen/internal/analyzer"
	"github.com/wham/apigen/internal/fieldtype"
	"github.com/wham/apigen/internal/schema"
)

func (e *emitter) header() string {
	g := &printer{}
	e.prelude(g, "#pragma once", "", `#include "esphome/core/defines.h"`, "", `#include "proto.h"`)
	e.openNamespace(g)

	if len(e.plan.File.Enums) > 0 {
		g.p("namespace enums {")
		g.blank()
		for _, en := range e.plan.File.Enums {
			g.setGuard(e.plan.Usage.IfdefOf(en.Name))
			g.p("enum %s : uint32_t {", en.Name)
			g.in()
			for _, v := range en.Values {
				g.p("%s = %d,", v.Name, v.Number)
			}
			g.out()
			g.p("};")
		}
		g.setGuard("")
		g.blank()
		g.p("}  // namespace enums")
		g.blank()
	}

	emitted := make(map[string]bool)
	for _, m := range e.plan.File.Messages {
		if b := e.plan.Usage.BaseOf(m.Name); b != nil && !emitted[b.Name] {
			emitted[b.Name] = true
			e.baseClass(g, b)
		}
		g.setGuard(e.plan.Usage.IfdefOf(m.Name))
		e.messageClass(g, m)
	}

	e.closeNamespace(g)
	return g.finish()
}

// baseGuard is the guard every member of b shares, or "".
func (e *emitter) baseGuard(b *analyzer.BaseClass) string {
	guard := e.plan.Usage.IfdefOf(b.Members[0])
	for _, m := range b.Members[1:] {
		if e.plan.Usage.IfdefOf(m) != guard {
			return ""
		}
	}
	return guard
}

func (e *emitter) baseClass(g *printer, b *analyzer.BaseClass) {
	parent := "ProtoMessage"
	for _, name := range b.Members {
		if e.plan.Usage.SourceOf(name).Decodes() {
			parent = "ProtoDecodableMessage"
		}
	}

	// Storage comes from the first member; the shared fields are declared alike in all of them.
	first := b.Members[0]
	var public, protected []string
	for _, ti := range e.plan.Fields[first] {
		if !b.Hoisted(ti.Field().Name) {
			continue
		}
		public = append(public, fieldDecls(ti, ti.Public())...)
		protected = append(protected, fieldDecls(ti, ti.Protected())...)
	}

	g.setGuard(e.baseGuard(b))
	g.p("class %s : public %s {", b.Name, parent)
	g.p(" public:")
	g.in()
	g.p("~%s() override = default;", b.Name)
	for _, d := range public {
		g.text(d)
	}
	g.out()
	if len(protected) > 0 {
		g.blank()
		g.p(" protected:")
		g.in()
		for _, d := range protected {
			g.text(d)
		}
		g.out()
	}
	g.p("};")
}

func fieldDecls(ti fieldtype.TypeInfo, decls []string) []string {
	out := make([]string, 0, len(decls))
	for _, d := range decls {
		out = append(out, guarded(ti.Field().Ifdef, d))
	}
	return out
}

func (e *emitter) parentOf(m *schema.Message) string {
	if b := e.plan.Usage.BaseOf(m.Name); b != nil {
		return b.Name
	}
	if e.source(m).Decodes() {
		return "ProtoDecodableMessage"
	}
	return "ProtoMessage"
}

func (e *emitter) messageClass(g *printer, m *schema.Message) {
	dir := e.source(m)
	base := e.plan.Usage.BaseOf(m.Name)
	fields := e.plan.Fields[m.Name]

	var public, protected []string
	if m.HasID {
		public = append(public,
			fmt.Sprintf("static constexpr uint8_t MESSAGE_TYPE = %d;", m.ID),
			fmt.Sprintf("static constexpr uint8_t ESTIMATED_SIZE = %d;", e.plan.Estimates[m.Name]),
			guarded(e.opts.DumpGuard, fmt.Sprintf(`const char *message_name() const override { return "%s"; }`, snakeCase(m.Name))),
		)
	}
	for _, ti := range fields {
		if base != nil && base.Hoisted(ti.Field().Name) {
			continue
		}
		public = append(public, fieldDecls(ti, ti.Public())...)
		protected = append(protected, fieldDecls(ti, ti.Protected())...)
	}
	if dir.Encodes() {
		public = append(public,
			"void encode(ProtoWriteBuffer buffer) const override;",
			"void calculate_size(uint32_t &total_size) const override;",
		)
	}
	public = append(public, guarded(e.opts.DumpGuard, "void dump_to(std::string &out) const override;"))

	var decoders []string
	for _, entry := range fieldtype.DecodeEntries {
		if len(decodeArms(fields, entry)) > 0 {
			decoders = append(decoders, fmt.Sprintf("bool %s(uint32_t field_id, %s value) override;", entry.Method(), entry.ValueType()))
		}
	}
	protected = append(decoders, protected...)

	g.p("class %s : public %s {", m.Name, e.parentOf(m))
	g.p(" public:")
	g.in()
	for _, d := range public {
		g.text(d)
	}
	g.out()
	if len(protected) > 0 {
		g.blank()
		g.p(" protected:")
		g.in()
		for _, d := range protected {
			g.text(d)
		}
		g.out()
	}
	g.p("};")
}

// decodeArms collects the switch cases of one decode callback.
func decodeArms(fields []fieldtype.TypeInfo, entry fieldtype.DecodeEntry) []string {
	var arms []string
	for _, ti := range fields {
		if arm := ti.DecodeArm(entry); arm != "" {
			arms = append(arms, guarded(ti.Field().Ifdef, arm))
		}
	}
	return arms
}
