package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wnu/wpypp/pkg/ast"
	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/util"
)

// nasmBackend renders a lowered program as NASM source for one Target. The
// target's argument registers decide between register passing with shadow
// space and right-to-left stack pushes.
type nasmBackend struct {
	t   *Target
	rep *util.Reporter
	out *strings.Builder
}

func NewNASMBackend(t *Target, rep *util.Reporter) Backend {
	return &nasmBackend{t: t, rep: rep}
}

func (b *nasmBackend) Generate(prog *ast.Node, cfg *config.Config) (*bytes.Buffer, error) {
	var sb strings.Builder
	b.out = &sb

	p := lower(prog, b.t, cfg, b.rep)

	b.out.WriteString("section .data\n")
	for _, f := range p.usedFormats() {
		b.out.WriteString(EncodeDB(f.label, []byte(f.data)))
		b.out.WriteString("\n")
	}
	for _, n := range p.strings.order {
		label, _ := p.strings.label(n)
		b.out.WriteString(EncodeDB(label, []byte(n.Data.(ast.LiteralNode).Value)))
		b.out.WriteString("\n")
	}

	b.out.WriteString("\nsection .text\n")
	for _, sym := range b.t.Externs {
		fmt.Fprintf(b.out, "extern %s\n", sym)
	}
	fmt.Fprintf(b.out, "global %s\n\n", b.t.EntrySymbol)
	fmt.Fprintf(b.out, "%s:\n", b.t.EntrySymbol)
	if b.registerABI() {
		// rsp is 8 mod 16 on entry; realign once so every call site is 16-aligned.
		b.emit("sub rsp, 8")
	}

	for _, in := range p.body {
		if in.ret {
			b.genReturn(in.code)
			continue
		}
		b.genCall(in.call, in.args)
	}
	return bytes.NewBufferString(sb.String()), nil
}

func (b *nasmBackend) emit(format string, args ...interface{}) {
	b.out.WriteString("    ")
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteString("\n")
}

func (b *nasmBackend) genReturn(code uint32) {
	if b.t.ExitSymbol != "" {
		b.genCall(b.t.ExitSymbol, []operand{imm(code)})
		return
	}
	if code == 0 {
		b.emit("xor %s, %s", b.t.ReturnReg, b.t.ReturnReg)
	} else {
		b.emit("mov %s, %d", b.t.ReturnReg, code)
	}
	if b.registerABI() {
		b.emit("add rsp, 8")
	}
	b.emit("ret")
}

func (b *nasmBackend) registerABI() bool { return len(b.t.ArgRegs) > 0 }

func (b *nasmBackend) genCall(symbol string, args []operand) {
	if !b.registerABI() {
		b.genStackCall(symbol, args)
		return
	}
	b.genRegisterCall(symbol, args)
}

// genRegisterCall reserves the shadow area, plus one slot per argument past
// the register list rounded up to 16 bytes, and releases it after the call.
func (b *nasmBackend) genRegisterCall(symbol string, args []operand) {
	regs := b.t.ArgRegs
	extra := 0
	if len(args) > len(regs) {
		extra = len(args) - len(regs)
	}
	reserve := (b.t.ShadowSpace + extra*b.t.WordSize + 15) &^ 15

	if reserve > 0 {
		b.emit("sub rsp, %d", reserve)
	}
	for i := len(regs); i < len(args); i++ {
		off := b.t.ShadowSpace + (i-len(regs))*b.t.WordSize
		switch args[i].kind {
		case opLabel:
			b.emit("lea rax, [rel %s]", args[i].label)
			b.emit("mov [rsp+%d], rax", off)
		default:
			b.emit("mov qword [rsp+%d], %d", off, args[i].imm)
		}
	}
	for i, arg := range args {
		if i >= len(regs) {
			break
		}
		switch arg.kind {
		case opLabel:
			b.emit("lea %s, [rel %s]", regs[i], arg.label)
		default:
			b.emit("mov %s, %d", dword(regs[i]), arg.imm)
		}
	}
	b.emit("call %s", symbol)
	if reserve > 0 {
		b.emit("add rsp, %d", reserve)
	}
}

// genStackCall pushes arguments right to left and pops them after the call.
func (b *nasmBackend) genStackCall(symbol string, args []operand) {
	for i := len(args) - 1; i >= 0; i-- {
		switch args[i].kind {
		case opLabel:
			b.emit("push %s", args[i].label)
		default:
			b.emit("push dword %d", args[i].imm)
		}
	}
	b.emit("call %s", symbol)
	if len(args) > 0 {
		b.emit("add esp, %d", len(args)*b.t.WordSize)
	}
}

// dword names the low 32 bits of a 64-bit general purpose register.
func dword(reg string) string {
	switch reg {
	case "rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rsp", "rbp":
		return "e" + reg[1:]
	}
	if strings.HasPrefix(reg, "r") {
		return reg + "d"
	}
	return reg
}
