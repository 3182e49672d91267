// Package compiler runs one source file through the whole pipeline: tokens,
// AST, and one assembly unit per selected target.
package compiler

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/wnu/wpypp/pkg/ast"
	"github.com/wnu/wpypp/pkg/codegen"
	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/lexer"
	"github.com/wnu/wpypp/pkg/parser"
	"github.com/wnu/wpypp/pkg/token"
	"github.com/wnu/wpypp/pkg/util"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Unit is the state of one compilation. Nothing in it is shared with other
// units, so independent units may be compiled concurrently.
type Unit struct {
	Name      string
	Source    []rune
	FileIndex int

	Cfg *config.Config
	Rep *util.Reporter
}

// Output is the generated assembly for one target.
type Output struct {
	Target *codegen.Target
	Asm    *bytes.Buffer
}

type Result struct {
	Tokens  []token.Token
	Program *ast.Node
	Outputs []Output
}

// NewUnit prepares a compilation of src. Diagnostics are written to diag,
// which may be nil.
func NewUnit(name string, src []byte, cfg *config.Config, diag io.Writer) *Unit {
	u := &Unit{Name: name, Source: []rune(string(src)), Cfg: cfg}
	u.Rep = util.NewReporter(diag, cfg)
	u.FileIndex = u.Rep.AddFile(name, u.Source)
	return u
}

func (u *Unit) Tokenize(ctx context.Context) []token.Token {
	toks := lexer.Tokenize(lexer.NewLexer(u.Source, u.FileIndex, u.Cfg, u.Rep))
	tlog.SpanFromContext(ctx).Printw("tokenized", "name", u.Name, "tokens", len(toks))
	return toks
}

func (u *Unit) Parse(ctx context.Context, toks []token.Token) (*ast.Node, error) {
	prog, err := parser.NewParser(toks, u.Cfg, u.Rep).Parse()
	if err != nil {
		return nil, err
	}
	tlog.SpanFromContext(ctx).Printw("parsed", "name", u.Name, "funcs", len(prog.Data.(ast.ProgramNode).Funcs))
	return prog, nil
}

func (u *Unit) Generate(ctx context.Context, prog *ast.Node, t *codegen.Target) (*bytes.Buffer, error) {
	asm, err := codegen.NewBackend(t, u.Rep).Generate(prog, u.Cfg)
	if err != nil {
		return nil, errors.Wrap(err, "generate %v", t.Name)
	}
	tlog.SpanFromContext(ctx).Printw("generated", "target", t.Name, "size", asm.Len())
	return asm, nil
}

// Targets returns the targets a build with cfg produces: the primary target,
// then the secondary 32-bit console target when that feature is on and the
// primary is the 64-bit console target.
func Targets(cfg *config.Config) ([]*codegen.Target, error) {
	primary, err := codegen.LookupTarget(cfg.TargetName, cfg)
	if err != nil {
		return nil, err
	}
	targets := []*codegen.Target{primary}
	if primary == codegen.Win64 && cfg.IsFeatureEnabled(config.FeatSecondary32) {
		targets = append(targets, codegen.Win32)
	}
	return targets, nil
}

// Compile runs src through every stage for each target. With no targets only
// tokens and the AST are produced. A parse failure returns a *util.Diagnostic
// and no Result.
func (u *Unit) Compile(ctx context.Context, targets ...*codegen.Target) (res *Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "name", u.Name)
	defer tr.Finish("err", &err)

	res = &Result{Tokens: u.Tokenize(ctx)}

	res.Program, err = u.Parse(ctx, res.Tokens)
	if err != nil {
		return nil, err
	}

	for _, t := range targets {
		asm, err := u.Generate(ctx, res.Program, t)
		if err != nil {
			return nil, err
		}
		res.Outputs = append(res.Outputs, Output{Target: t, Asm: asm})
	}
	return res, nil
}

// Compile is shorthand for NewUnit followed by Unit.Compile.
func Compile(ctx context.Context, name string, src []byte, cfg *config.Config, diag io.Writer, targets ...*codegen.Target) (*Result, *util.Reporter, error) {
	u := NewUnit(name, src, cfg, diag)
	res, err := u.Compile(ctx, targets...)
	return res, u.Rep, err
}

// CompileFile reads path and compiles it. A read failure is an io Diagnostic.
func CompileFile(ctx context.Context, path string, cfg *config.Config, diag io.Writer, targets ...*codegen.Target) (*Result, *util.Reporter, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, util.Errorf(util.KindIO, token.Token{FileIndex: -1}, "could not read file '%s': %v", path, err)
	}
	tlog.SpanFromContext(ctx).Printw("read file", "size", len(src), "name", path)
	return Compile(ctx, path, src, cfg, diag, targets...)
}

// WriteOutputs writes each output's assembly to its target's fixed file name
// under dir and returns the paths written, in order.
func WriteOutputs(dir string, outs []Output) ([]string, error) {
	var paths []string
	for _, o := range outs {
		p := filepath.Join(dir, o.Target.Artifacts.Asm)
		if err := os.WriteFile(p, o.Asm.Bytes(), 0o644); err != nil {
			return paths, util.Errorf(util.KindIO, token.Token{FileIndex: -1}, "could not write '%s': %v", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
