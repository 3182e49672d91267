package codegen

import (
	"math"
	"strconv"

	"github.com/wnu/wpypp/pkg/ast"
	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/util"
)

type operandKind int

const (
	opImm operandKind = iota
	opLabel
)

// operand is one call argument: a 32-bit immediate or the address of a label.
type operand struct {
	kind  operandKind
	imm   uint32
	label string
}

func imm(v uint32) operand      { return operand{kind: opImm, imm: v} }
func addr(label string) operand { return operand{kind: opLabel, label: label} }

// instr is one target-independent step of the entry function: either a call
// into the runtime or the terminating return.
type instr struct {
	call string
	args []operand

	ret  bool
	code uint32
}

// Format strings handed to the print entry point, in emission order.
const (
	fmtStr = "fmt_str"
	fmtInt = "fmt_int"
	fmtChr = "fmt_chr"
)

type format struct{ label, data string }

var formatData = []format{
	{fmtStr, "%s"},
	{fmtInt, "%d"},
	{fmtChr, "%c"},
}

// program is the lowered form of one compilation unit, shared by the NASM and
// QBE renderers.
type program struct {
	strings *stringTable
	formats map[string]bool
	body    []instr
}

// usedFormats returns the format labels referenced by the body, in a fixed
// order.
func (p *program) usedFormats() []format {
	var out []format
	for _, f := range formatData {
		if p.formats[f.label] {
			out = append(out, f)
		}
	}
	return out
}

type lowerer struct {
	t   *Target
	cfg *config.Config
	rep *util.Reporter
	p   *program
}

// lower selects the entry function and turns its body into instrs. It never
// fails: anything the target cannot express is reported as a warning and
// left out.
func lower(prog *ast.Node, t *Target, cfg *config.Config, rep *util.Reporter) *program {
	l := &lowerer{t: t, cfg: cfg, rep: rep, p: &program{
		strings: collectStrings(prog, t, cfg),
		formats: make(map[string]bool),
	}}

	var entry *ast.Node
	for _, fn := range prog.Data.(ast.ProgramNode).Funcs {
		name := fn.Data.(ast.FuncNode).Name
		switch {
		case name != cfg.EntryFunc:
			rep.Warn(config.WarnSkipped, fn.Tok, "function '%s' is never called and is not lowered", name)
		case entry != nil:
			rep.Warn(config.WarnExtra, fn.Tok, "duplicate definition of '%s' ignored", name)
		default:
			entry = fn
		}
	}
	if entry == nil {
		rep.Warn(config.WarnExtra, prog.Tok, "no '%s' function; emitting an empty entry point", cfg.EntryFunc)
		l.p.body = append(l.p.body, instr{ret: true})
		return l.p
	}

	stmts := entry.Data.(ast.FuncNode).Body.Data.(ast.BlockNode).Stmts
	for i, stmt := range stmts {
		if l.stmt(stmt) {
			if i+1 < len(stmts) {
				rep.Warn(config.WarnSkipped, stmts[i+1].Tok, "unreachable code after return")
			}
			return l.p
		}
	}
	l.p.body = append(l.p.body, instr{ret: true})
	return l.p
}

// stmt lowers one statement and reports whether it terminated the function.
func (l *lowerer) stmt(n *ast.Node) bool {
	switch n.Type {
	case ast.Return:
		var code uint32
		if v := n.Data.(ast.ReturnNode).Value; v != nil {
			code = l.immediate(v)
		}
		l.p.body = append(l.p.body, instr{ret: true, code: code})
		return true
	case ast.Print:
		if l.t.PrintSymbol == "" {
			l.rep.Warn(config.WarnSkipped, n.Tok, "print is not available on target %s", l.t.Name)
			return false
		}
		for _, arg := range n.Data.(ast.PrintNode).Args {
			l.print(arg)
		}
	case ast.Call:
		l.call(n)
	default:
		l.rep.Warn(config.WarnSkipped, n.Tok, "%s statement is not lowered", n.Type)
	}
	return false
}

func (l *lowerer) print(arg *ast.Node) {
	if arg.Type != ast.Literal {
		l.rep.Warn(config.WarnSkipped, arg.Tok, "cannot print %s: only literals are supported", arg.Type)
		return
	}
	var fmtLabel string
	var value operand
	switch arg.Data.(ast.LiteralNode).Kind {
	case ast.LitString:
		label, _ := l.p.strings.label(arg)
		fmtLabel, value = fmtStr, addr(label)
	case ast.LitChar:
		fmtLabel, value = fmtChr, imm(l.immediate(arg))
	default:
		fmtLabel, value = fmtInt, imm(l.immediate(arg))
	}
	l.p.formats[fmtLabel] = true
	l.p.body = append(l.p.body, instr{call: l.t.PrintSymbol, args: []operand{addr(fmtLabel), value}})
}

func (l *lowerer) call(n *ast.Node) {
	c := n.Data.(ast.CallNode)
	sc, ok := l.t.lowers(l.cfg, c.Module, c.Name)
	if !ok {
		l.rep.Warn(config.WarnSkipped, n.Tok, "call to '%s' is not lowered on target %s", c.Callee(), l.t.Name)
		return
	}
	if len(c.Args) != len(sc.Params) {
		l.rep.Warn(config.WarnSkipped, n.Tok, "'%s' takes %d arguments, got %d; call dropped", c.Callee(), len(sc.Params), len(c.Args))
		return
	}

	args := make([]operand, 0, len(c.Args))
	for i, arg := range c.Args {
		var kind ast.LiteralKind = -1
		if arg.Type == ast.Literal {
			kind = arg.Data.(ast.LiteralNode).Kind
		}
		switch {
		case sc.Params[i] == ParamString && kind == ast.LitString:
			label, _ := l.p.strings.label(arg)
			args = append(args, addr(label))
		case sc.Params[i] == ParamInt && (kind == ast.LitInt || kind == ast.LitChar):
			args = append(args, imm(l.immediate(arg)))
		default:
			l.rep.Warn(config.WarnSkipped, arg.Tok, "argument %d of '%s' has the wrong kind; call dropped", i+1, c.Callee())
			return
		}
	}
	l.p.body = append(l.p.body, instr{call: sc.Symbol, args: args})
}

// immediate evaluates an int, char, success or failure literal.
func (l *lowerer) immediate(n *ast.Node) uint32 {
	lit := n.Data.(ast.LiteralNode)
	switch lit.Kind {
	case ast.LitSuccess:
		return 0
	case ast.LitFailure:
		return 1
	case ast.LitChar:
		return charCode(lit.Value)
	}
	v, err := strconv.ParseUint(lit.Value, 10, 64)
	if err != nil {
		l.rep.Warn(config.WarnOverflow, n.Tok, "integer literal %s is out of range; using 0", lit.Value)
		return 0
	}
	if v > math.MaxUint32 {
		l.rep.Warn(config.WarnOverflow, n.Tok, "integer literal %s truncated to 32 bits", lit.Value)
	}
	return uint32(v)
}

// charCode decodes the text of a character literal: one character or a
// backslash pair. The empty literal is NUL.
func charCode(s string) uint32 {
	r := []rune(s)
	switch {
	case len(r) == 0:
		return 0
	case r[0] != '\\' || len(r) == 1:
		return uint32(r[0])
	}
	switch r[1] {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case 'a':
		return 7
	case 'b':
		return 8
	case 'f':
		return 12
	case 'v':
		return 11
	case 'e':
		return 27
	}
	return uint32(r[1])
}
