package codegen

import (
	"fmt"
	"sort"

	"github.com/wham/apigen/internal/schema"
)

func (e *emitter) baseServiceClass() string {
	return e.opts.ServiceClass + "Base"
}

func (e *emitter) serviceHeader() string {
	g := &printer{}
	e.prelude(g,
		"#pragma once",
		"",
		fmt.Sprintf(`#include "%s.h"`, e.opts.OutputBase),
		`#include "esphome/core/defines.h"`,
	)
	e.openNamespace(g)

	g.p("class %s : public ProtoService {", e.baseServiceClass())
	g.p(" public:")
	g.in()
	for _, m := range e.plan.File.IDMessages() {
		g.setGuard(e.plan.Usage.IfdefOf(m.Name))
		dir := e.source(m)
		snake := snakeCase(m.Name)
		if dir.Encodes() {
			g.p("bool send_%s(const %s &msg);", snake, m.Name)
		}
		if dir.Decodes() {
			g.p("virtual void on_%s(const %s &value){};", snake, m.Name)
		}
	}
	g.setGuard("")
	g.out()
	g.blank()
	g.p(" protected:")
	g.p("  bool read_message(uint32_t msg_size, uint32_t msg_type, uint8_t *msg_data) override;")
	g.p("};")
	g.blank()

	methods := e.methods()
	g.p("class %s : public %s {", e.opts.ServiceClass, e.baseServiceClass())
	g.p(" public:")
	g.in()
	for _, m := range methods {
		g.setGuard(e.plan.Usage.IfdefOf(m.Input))
		ret := "void"
		if !m.Void() {
			ret = m.Output
		}
		g.p("virtual %s %s(const %s &msg) = 0;", ret, m.Name, m.Input)
	}
	g.setGuard("")
	g.out()
	g.blank()
	g.p(" protected:")
	g.in()
	for _, m := range methods {
		g.setGuard(e.plan.Usage.IfdefOf(m.Input))
		g.p("void on_%s(const %s &msg) override;", snakeCase(m.Input), m.Input)
	}
	g.setGuard("")
	g.out()
	g.p("};")

	e.closeNamespace(g)
	return g.finish()
}

// methods flattens every service of the file into the single connection class.
func (e *emitter) methods() []*schema.Method {
	var out []*schema.Method
	for _, s := range e.plan.File.Services {
		out = append(out, s.Methods...)
	}
	return out
}

func (e *emitter) serviceImplementation() string {
	g := &printer{}
	e.prelude(g,
		fmt.Sprintf(`#include "%s_service.h"`, e.opts.OutputBase),
		`#include "esphome/core/log.h"`,
	)
	e.openNamespace(g)
	g.p("static const char *const TAG = \"%s\";", e.opts.LogTag)
	g.blank()

	for _, m := range e.plan.File.IDMessages() {
		if !e.source(m).Encodes() {
			continue
		}
		g.setGuard(e.plan.Usage.IfdefOf(m.Name))
		e.sendHelper(g, m)
	}
	g.setGuard("")
	e.readMessage(g)

	for _, m := range e.methods() {
		g.setGuard(e.plan.Usage.IfdefOf(m.Input))
		e.methodDispatch(g, m)
	}

	e.closeNamespace(g)
	return g.finish()
}

func (e *emitter) logDump(g *printer, function string, m *schema.Message) {
	if !m.Log {
		return
	}
	g.text(guarded(e.opts.DumpGuard,
		fmt.Sprintf(`%s(TAG, "%s: %%s", msg.dump().c_str());`, e.opts.LogMacro, function)))
}

func (e *emitter) sendHelper(g *printer, m *schema.Message) {
	function := "send_" + snakeCase(m.Name)
	g.p("bool %s::%s(const %s &msg) {", e.baseServiceClass(), function, m.Name)
	g.in()
	e.logDump(g, function, m)
	g.p("return this->send_message(msg, %s::MESSAGE_TYPE);", m.Name)
	g.out()
	g.p("}")
}

// readMessage dispatches on the message type byte. Types this side never receives fall through to
// default, so newer peers can send messages this build does not know.
func (e *emitter) readMessage(g *printer) {
	var received []*schema.Message
	for _, m := range e.plan.File.IDMessages() {
		if e.source(m).Decodes() {
			received = append(received, m)
		}
	}
	sort.SliceStable(received, func(i, j int) bool { return received[i].ID < received[j].ID })

	g.p("bool %s::read_message(uint32_t msg_size, uint32_t msg_type, uint8_t *msg_data) {", e.baseServiceClass())
	g.in()
	g.p("switch (msg_type) {")
	g.in()
	for _, m := range received {
		function := "on_" + snakeCase(m.Name)
		guard := e.plan.Usage.IfdefOf(m.Name)
		g.p("case %d: {", m.ID)
		g.in()
		if guard != "" {
			g.text("#ifdef " + guard)
		}
		g.p("%s msg;", m.Name)
		g.p("msg.decode(msg_data, msg_size);")
		e.logDump(g, function, m)
		g.p("this->%s(msg);", function)
		if guard != "" {
			g.text("#endif")
		}
		g.p("break;")
		g.out()
		g.p("}")
	}
	g.p("default:")
	g.p("  break;")
	g.out()
	g.p("}")
	g.p("return true;")
	g.out()
	g.p("}")
}

// methodDispatch checks the connection state the method requires, runs the handler and sends its
// result. Authentication implies a completed setup, so only one check is emitted.
func (e *emitter) methodDispatch(g *printer, m *schema.Method) {
	g.p("void %s::on_%s(const %s &msg) {", e.opts.ServiceClass, snakeCase(m.Input), m.Input)
	g.in()
	switch {
	case m.NeedsAuthentication:
		g.p("if (!this->check_authenticated_()) {")
		g.p("  return;")
		g.p("}")
	case m.NeedsSetupConnection:
		g.p("if (!this->check_connection_setup_()) {")
		g.p("  return;")
		g.p("}")
	}
	if m.Void() {
		g.p("this->%s(msg);", m.Name)
	} else {
		g.p("%s ret = this->%s(msg);", m.Output, m.Name)
		g.p("if (!this->send_message(ret, %s::MESSAGE_TYPE)) {", m.Output)
		g.p("  this->on_fatal_error();")
		g.p("}")
	}
	g.out()
	g.p("}")
}
