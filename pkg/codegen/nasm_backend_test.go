package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnu/wpypp/pkg/ast"
	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/lexer"
	"github.com/wnu/wpypp/pkg/parser"
	"github.com/wnu/wpypp/pkg/util"
)

func parseProgram(t *testing.T, cfg *config.Config, src string) *ast.Node {
	t.Helper()
	toks := lexer.Tokenize(lexer.NewLexer([]rune(src), 0, cfg, nil))
	prog, err := parser.NewParser(toks, cfg, nil).Parse()
	require.NoError(t, err)
	return prog
}

func generate(t *testing.T, target *Target, src string) (string, *util.Reporter) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.ImplicitModules = []string{cfg.GraphicsModule}
	cfg.SetAllWarnings(true)
	rep := util.NewReporter(nil, cfg)

	out, err := NewBackend(target, rep).Generate(parseProgram(t, cfg, src), cfg)
	require.NoError(t, err)
	return out.String(), rep
}

func assertAsm(t *testing.T, want, got string) {
	t.Helper()
	if diff := cmp.Diff(strings.Split(want, "\n"), strings.Split(got, "\n")); diff != "" {
		t.Errorf("assembly mismatch (-want +got):\n%s", diff)
	}
}

func TestWin64ReturnZero(t *testing.T) {
	got, _ := generate(t, Win64, "func main() { return 0; }")
	assertAsm(t, `section .data

section .text
extern printf
extern exit
global main

main:
    sub rsp, 8
    sub rsp, 32
    mov ecx, 0
    call exit
    add rsp, 32
`, got)
}

func TestEmptyMainGetsDefaultReturn(t *testing.T) {
	explicit, _ := generate(t, Win64, "func main() { return 0; }")
	empty, _ := generate(t, Win64, "func main() { }")
	assert.Equal(t, explicit, empty)

	gra, _ := generate(t, Gra64, "func main() { }")
	assert.True(t, strings.HasSuffix(gra, "WinMain:\n    sub rsp, 8\n    xor eax, eax\n    add rsp, 8\n    ret\n"), gra)
}

func TestWin64Print(t *testing.T) {
	got, _ := generate(t, Win64, `func main() { pypstdio.print("hi"); return; }`)
	assertAsm(t, `section .data
fmt_str db "%s", 0
str0 db "hi", 0

section .text
extern printf
extern exit
global main

main:
    sub rsp, 8
    sub rsp, 32
    lea rcx, [rel fmt_str]
    lea rdx, [rel str0]
    call printf
    add rsp, 32
    sub rsp, 32
    mov ecx, 0
    call exit
    add rsp, 32
`, got)

	// Exactly one string label holding h, i, 0.
	var labels []string
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "str") {
			labels = append(labels, line)
		}
	}
	require.Len(t, labels, 1)
	data, err := DecodeDB(labels[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}

func TestWin32Print(t *testing.T) {
	got, _ := generate(t, Win32, `func main() { pyppstdio.print("hi", 7); return 2; }`)
	assertAsm(t, `section .data
fmt_str db "%s", 0
fmt_int db "%d", 0
str0 db "hi", 0

section .text
extern _printf
extern _exit
global _main

_main:
    push str0
    push fmt_str
    call _printf
    add esp, 8
    push dword 7
    push fmt_int
    call _printf
    add esp, 8
    push dword 2
    call _exit
    add esp, 4
`, got)
}

func TestPrintChar(t *testing.T) {
	got, _ := generate(t, Win64, `func main() { pyppstdio.print('\n'); }`)
	assert.Contains(t, got, "fmt_chr db \"%c\", 0\n")
	assert.Contains(t, got, "    lea rcx, [rel fmt_chr]\n    mov edx, 10\n    call printf\n")
}

func TestReturnSentinels(t *testing.T) {
	got, _ := generate(t, Win64, "func main() { return failure; }")
	assert.Contains(t, got, "    mov ecx, 1\n    call exit\n")

	got, _ = generate(t, Gra64, "func main() { return 3; }")
	assert.True(t, strings.HasSuffix(got, "    mov eax, 3\n    add rsp, 8\n    ret\n"), got)
}

func TestGraphicsProgram(t *testing.T) {
	src := `func main() {
    graphics.Init("Demo", 640, 480);
    graphics.Clear("black");
    graphics.DrawText(10, 20, "Hello");
    graphics.DrawRect(1, 2, 3, 4);
    graphics.Loop();
    return 0;
}`
	got, _ := generate(t, Gra64, src)
	assertAsm(t, `section .data
str0 db "Demo", 0
str1 db "black", 0
str2 db "Hello", 0

section .text
extern graphics_Init
extern graphics_Clear
extern graphics_DrawText
extern graphics_DrawRect
extern graphics_Loop
global WinMain

WinMain:
    sub rsp, 8
    sub rsp, 32
    lea rcx, [rel str0]
    mov edx, 640
    mov r8d, 480
    call graphics_Init
    add rsp, 32
    sub rsp, 32
    lea rcx, [rel str1]
    call graphics_Clear
    add rsp, 32
    sub rsp, 32
    mov ecx, 10
    mov edx, 20
    lea r8, [rel str2]
    call graphics_DrawText
    add rsp, 32
    sub rsp, 32
    mov ecx, 1
    mov edx, 2
    mov r8d, 3
    mov r9d, 4
    call graphics_DrawRect
    add rsp, 32
    sub rsp, 32
    call graphics_Loop
    add rsp, 32
    xor eax, eax
    add rsp, 8
    ret
`, got)
}

func TestGraphicsIgnoresPrintAndUnknownCalls(t *testing.T) {
	got, rep := generate(t, Gra64, `func main() { pyppstdio.print("x"); graphics.Spin(1); graphics.Clear(5); }`)
	assert.NotContains(t, got, "str0")
	assert.NotContains(t, got, "call")
	assert.Len(t, rep.Warnings, 3)
	for _, w := range rep.Warnings {
		assert.Equal(t, config.WarnSkipped, w.Warning)
	}
}

func TestConsoleTargetSkipsGraphicsCalls(t *testing.T) {
	got, _ := generate(t, Win64, `func main() { graphics.Clear("black"); pyppstdio.print("a"); }`)
	assert.NotContains(t, got, "graphics_")
	// The graphics argument gets no label, so numbering starts at the print.
	assert.Contains(t, got, "str0 db \"a\", 0\n")
	assert.NotContains(t, got, "str1")
}

func TestLabelsAreGaplessInDocumentOrder(t *testing.T) {
	src := `func helper() { pyppstdio.print("h0"); }
func main() {
    pyppstdio.print("m0", 1, "m1");
    pyppstdio.print("m2");
}`
	cfg := config.NewConfig()
	prog := parseProgram(t, cfg, src)
	st := collectStrings(prog, Win64, cfg)

	var got []string
	for _, n := range st.order {
		label, ok := st.label(n)
		require.True(t, ok)
		got = append(got, label+"="+n.Data.(ast.LiteralNode).Value)
	}
	assert.Equal(t, []string{"str0=h0", "str1=m0", "str2=m1", "str3=m2"}, got)
}

func TestGenerateDoesNotMutateAST(t *testing.T) {
	cfg := config.NewConfig()
	prog := parseProgram(t, cfg, `func main() { pyppstdio.print("keep me"); }`)
	before := parseProgram(t, cfg, `func main() { pyppstdio.print("keep me"); }`)

	_, err := NewNASMBackend(Win64, nil).Generate(prog, cfg)
	require.NoError(t, err)
	if diff := cmp.Diff(before, prog); diff != "" {
		t.Errorf("AST changed during generation:\n%s", diff)
	}
}

func TestOnlyEntryFunctionIsLowered(t *testing.T) {
	got, rep := generate(t, Win64, `func other() { return 5; } func main() { return 1; } func main() { return 2; }`)
	assert.Contains(t, got, "mov ecx, 1\n")
	assert.NotContains(t, got, "mov ecx, 5")
	assert.NotContains(t, got, "mov ecx, 2")
	assert.Len(t, rep.Warnings, 2)
}

func TestMissingEntryFunction(t *testing.T) {
	got, rep := generate(t, Win64, `func other() { }`)
	assert.True(t, strings.HasSuffix(got, "main:\n    sub rsp, 8\n    sub rsp, 32\n    mov ecx, 0\n    call exit\n    add rsp, 32\n"), got)
	require.NotEmpty(t, rep.Warnings)
}

func TestStatementsAfterReturnAreDropped(t *testing.T) {
	got, rep := generate(t, Win64, `func main() { return 4; pyppstdio.print("late"); }`)
	assert.NotContains(t, got, "printf\n    add")
	assert.Equal(t, 1, strings.Count(got, "call exit"))
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, config.WarnSkipped, rep.Warnings[0].Warning)
}

func TestIntegerOverflow(t *testing.T) {
	got, rep := generate(t, Win64, `func main() { return 4294967297; }`)
	assert.Contains(t, got, "mov ecx, 1\n")
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, config.WarnOverflow, rep.Warnings[0].Warning)

	got, rep = generate(t, Win64, `func main() { return 99999999999999999999999; }`)
	assert.Contains(t, got, "mov ecx, 0\n")
	require.Len(t, rep.Warnings, 1)
}

func TestRegisterCallSpillsExtraArguments(t *testing.T) {
	b := &nasmBackend{t: Win64, out: &strings.Builder{}}
	b.genCall("f", []operand{imm(1), imm(2), imm(3), imm(4), imm(5), addr("str0")})
	assertAsm(t, `    sub rsp, 48
    mov qword [rsp+32], 5
    lea rax, [rel str0]
    mov [rsp+40], rax
    mov ecx, 1
    mov edx, 2
    mov r8d, 3
    mov r9d, 4
    call f
    add rsp, 48
`, b.out.String())
}

func TestRegisterCallKeepsStackAligned(t *testing.T) {
	b := &nasmBackend{t: Win64, out: &strings.Builder{}}
	b.genCall("f", []operand{imm(1), imm(2), imm(3), imm(4), imm(5)})
	assertAsm(t, `    sub rsp, 48
    mov qword [rsp+32], 5
    mov ecx, 1
    mov edx, 2
    mov r8d, 3
    mov r9d, 4
    call f
    add rsp, 48
`, b.out.String())
}

func TestEntryRealignsOnlyRegisterTargets(t *testing.T) {
	got, _ := generate(t, Win64, "func main() { }")
	assert.Contains(t, got, "main:\n    sub rsp, 8\n")

	got, _ = generate(t, Win32, "func main() { }")
	assert.NotContains(t, got, "rsp")
	assert.True(t, strings.HasSuffix(got, "_main:\n    push dword 0\n    call _exit\n    add esp, 4\n"), got)
}

func TestCharCode(t *testing.T) {
	cases := map[string]uint32{
		"":   0,
		"a":  'a',
		`\n`: 10,
		`\t`: 9,
		`\r`: 13,
		`\0`: 0,
		`\\`: '\\',
		`\'`: '\'',
		`\"`: '"',
		`\e`: 27,
		`\q`: 'q',
		`\`:  '\\',
		"é":  0xe9,
	}
	for in, want := range cases {
		assert.Equal(t, want, charCode(in), "char %q", in)
	}
}

func TestLookupTarget(t *testing.T) {
	cfg := config.NewConfig()
	for name, want := range map[string]*Target{"": Win64, "win64": Win64, "win32": Win32, "gra64": Gra64, "graphics": Gra64} {
		got, err := LookupTarget(name, cfg)
		require.NoError(t, err)
		assert.Same(t, want, got, name)
	}
	qbe, err := LookupTarget("qbe", cfg)
	require.NoError(t, err)
	assert.Equal(t, AssemblerCC, qbe.Assembler)

	_, err = LookupTarget("z80", cfg)
	assert.Error(t, err)
}
