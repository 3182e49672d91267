package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/token"
	"golang.org/x/term"
)

// Kind classifies a Diagnostic by the pipeline stage that produced it.
type Kind int

const (
	KindIO Kind = iota
	KindLexical
	KindSyntax
	KindScope
	KindCodegen
	KindToolchain
)

var kindNames = [...]string{
	KindIO:        "io",
	KindLexical:   "lexical",
	KindSyntax:    "syntax",
	KindScope:     "scope",
	KindCodegen:   "codegen",
	KindToolchain: "toolchain",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Diagnostic is a located compile error. Warnings use the same shape but are
// only ever printed, never returned.
type Diagnostic struct {
	Kind Kind
	Tok  token.Token
	Msg  string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s error: %s", d.Tok.Line, d.Tok.Column, d.Kind, d.Msg)
}

// Errorf builds a Diagnostic anchored at tok.
func Errorf(kind Kind, tok token.Token, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// AsDiagnostic unwraps err down to a *Diagnostic, if there is one.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Warning is a recorded, already-printed warning.
type Warning struct {
	Warning config.Warning
	Tok     token.Token
	Msg     string
}

// Reporter prints diagnostics for one compilation. It is not shared between
// compilations.
type Reporter struct {
	Out      io.Writer
	Files    []SourceFileRecord
	Warnings []Warning

	cfg   *config.Config
	color bool
}

func NewReporter(out io.Writer, cfg *config.Config) *Reporter {
	r := &Reporter{Out: out, cfg: cfg}
	if f, ok := out.(*os.File); ok {
		r.color = term.IsTerminal(int(f.Fd()))
	}
	return r
}

// AddFile registers source content and returns its file index.
func (r *Reporter) AddFile(name string, content []rune) int {
	r.Files = append(r.Files, SourceFileRecord{Name: name, Content: content})
	return len(r.Files) - 1
}

func (r *Reporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + "\033[0m"
}

// findFileAndLine converts a token to a file-specific location
func (r *Reporter) findFileAndLine(tok token.Token) (filename string, line, col int) {
	if r == nil || tok.FileIndex < 0 || tok.FileIndex >= len(r.Files) {
		return "unknown", tok.Line, tok.Column
	}
	return r.Files[tok.FileIndex].Name, tok.Line, tok.Column
}

// printErrorLine prints the source line and a caret indicating the error position
func (r *Reporter) printErrorLine(tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.Files) || tok.Line == 0 {
		return
	}

	content := r.Files[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, ch := range content {
		if lineNum <= 1 {
			break
		}
		if ch == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(r.Out, "  %s\n", string(content[lineStart:lineEnd]))

	col := tok.Column - 1
	if col < 0 {
		col = 0
	}
	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(r.Out, "  %s%s\n", strings.Repeat(" ", col), r.paint("\033[32m", caret))
}

// Warn prints a warning if the corresponding switch is enabled and records it.
func (r *Reporter) Warn(wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if r == nil || r.cfg == nil || !r.cfg.IsWarningEnabled(wt) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, Warning{Warning: wt, Tok: tok, Msg: msg})
	if r.Out == nil {
		return
	}
	filename, line, col := r.findFileAndLine(tok)
	fmt.Fprintf(r.Out, "%s:%d:%d: %s %s [-W%s]\n", filename, line, col, r.paint("\033[33m", "warning:"), msg, r.cfg.Warnings[wt].Name)
	r.printErrorLine(tok)
}

// Report prints err. Diagnostics get a location and a caret line; anything
// else is printed as a plain fatal error.
func (r *Reporter) Report(err error) {
	if err == nil || r.Out == nil {
		return
	}
	d, ok := AsDiagnostic(err)
	if !ok {
		fmt.Fprintf(r.Out, "wpypp: %s %v\n", r.paint("\033[1;31m", "fatal error:"), err)
		return
	}
	filename, line, col := r.findFileAndLine(d.Tok)
	fmt.Fprintf(r.Out, "%s:%d:%d: %s %s\n", filename, line, col, r.paint("\033[31m", d.Kind.String()+" error:"), d.Msg)
	r.printErrorLine(d.Tok)
}
