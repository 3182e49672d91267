package codegen

import (
	"fmt"
	"strings"

	"github.com/wnu/wpypp/pkg/ast"
	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/util"
)

// qbeBackend lowers the same program to QBE IR and hands it to QBE for the
// host target. Generate lives in the build-tagged files next to this one.
type qbeBackend struct {
	t   *Target
	rep *util.Reporter
	out *strings.Builder
}

func NewQBEBackend(t *Target, rep *util.Reporter) Backend {
	return &qbeBackend{t: t, rep: rep}
}

// GenerateIR returns the QBE IR text for prog without compiling it.
func (b *qbeBackend) GenerateIR(prog *ast.Node, cfg *config.Config) (string, error) {
	var sb strings.Builder
	b.out = &sb

	p := lower(prog, b.t, cfg, b.rep)

	for _, f := range p.usedFormats() {
		b.out.WriteString(EncodeQBEData(f.label, []byte(f.data)))
		b.out.WriteString("\n")
	}
	for _, n := range p.strings.order {
		label, _ := p.strings.label(n)
		b.out.WriteString(EncodeQBEData(label, []byte(n.Data.(ast.LiteralNode).Value)))
		b.out.WriteString("\n")
	}

	fmt.Fprintf(b.out, "\nexport function w $%s() {\n@start\n", b.t.EntrySymbol)
	for _, in := range p.body {
		if in.ret {
			if b.t.ExitSymbol != "" {
				fmt.Fprintf(b.out, "\tcall $%s(w %d)\n", b.t.ExitSymbol, in.code)
			}
			fmt.Fprintf(b.out, "\tret %d\n", in.code)
			break
		}
		b.genCall(in.call, in.args)
	}
	b.out.WriteString("}\n")
	return sb.String(), nil
}

// genCall emits one call instruction. The print entry point is variadic, so
// everything after its format argument goes behind QBE's '...' marker.
func (b *qbeBackend) genCall(symbol string, args []operand) {
	ops := make([]string, 0, len(args)+1)
	for i, arg := range args {
		if symbol == b.t.PrintSymbol && i == 1 {
			ops = append(ops, "...")
		}
		switch arg.kind {
		case opLabel:
			ops = append(ops, "l $"+arg.label)
		default:
			ops = append(ops, fmt.Sprintf("w %d", arg.imm))
		}
	}
	fmt.Fprintf(b.out, "\tcall $%s(%s)\n", symbol, strings.Join(ops, ", "))
}
