package codegen

import (
	"fmt"

	"github.com/wnu/wpypp/pkg/config"
)

// Assembler selects the external tool family that consumes a target's output.
type Assembler int

const (
	AssemblerNASM Assembler = iota
	AssemblerCC
)

// ParamKind is the literal kind a graphics runtime parameter accepts.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamString
)

// SurfaceCall maps one namespaced source call onto a runtime entry point.
type SurfaceCall struct {
	Symbol string
	Params []ParamKind
}

// Artifacts are the fixed file names a target produces.
type Artifacts struct {
	Asm string
	Obj string
	Exe string
}

// Target describes one lowering variant: word size, calling convention,
// runtime symbols and the call surface it accepts.
type Target struct {
	Name     string
	WordSize int

	// ArgRegs holds integer/pointer argument registers in order. An empty
	// list means arguments are pushed right to left.
	ArgRegs     []string
	ShadowSpace int
	ReturnReg   string

	EntrySymbol string
	PrintSymbol string // empty when the target has no print lowering
	ExitSymbol  string // empty when the entry point returns instead
	Externs     []string
	Surface     map[string]SurfaceCall

	Assembler Assembler
	ObjFormat string
	Subsystem string
	LinkLibs  []string
	Artifacts Artifacts
}

var Win64 = &Target{
	Name:        "win64",
	WordSize:    8,
	ArgRegs:     []string{"rcx", "rdx", "r8", "r9"},
	ShadowSpace: 32,
	ReturnReg:   "eax",
	EntrySymbol: "main",
	PrintSymbol: "printf",
	ExitSymbol:  "exit",
	Externs:     []string{"printf", "exit"},
	Assembler:   AssemblerNASM,
	ObjFormat:   "win64",
	Subsystem:   "console",
	Artifacts:   Artifacts{Asm: "out.asm", Obj: "out.o", Exe: "out.exe"},
}

var Win32 = &Target{
	Name:        "win32",
	WordSize:    4,
	ReturnReg:   "eax",
	EntrySymbol: "_main",
	PrintSymbol: "_printf",
	ExitSymbol:  "_exit",
	Externs:     []string{"_printf", "_exit"},
	Assembler:   AssemblerNASM,
	ObjFormat:   "win32",
	Subsystem:   "console",
	LinkLibs:    []string{"-lmsvcrt"},
	Artifacts:   Artifacts{Asm: "out32.asm", Obj: "out32.o", Exe: "out32.exe"},
}

var Gra64 = &Target{
	Name:        "gra64",
	WordSize:    8,
	ArgRegs:     []string{"rcx", "rdx", "r8", "r9"},
	ShadowSpace: 32,
	ReturnReg:   "eax",
	EntrySymbol: "WinMain",
	Externs: []string{
		"graphics_Init",
		"graphics_Clear",
		"graphics_DrawText",
		"graphics_DrawRect",
		"graphics_Loop",
	},
	Surface: map[string]SurfaceCall{
		"Init":     {Symbol: "graphics_Init", Params: []ParamKind{ParamString, ParamInt, ParamInt}},
		"Clear":    {Symbol: "graphics_Clear", Params: []ParamKind{ParamString}},
		"DrawText": {Symbol: "graphics_DrawText", Params: []ParamKind{ParamInt, ParamInt, ParamString}},
		"DrawRect": {Symbol: "graphics_DrawRect", Params: []ParamKind{ParamInt, ParamInt, ParamInt, ParamInt}},
		"Loop":     {Symbol: "graphics_Loop"},
	},
	Assembler: AssemblerNASM,
	ObjFormat: "win64",
	Subsystem: "windows",
	LinkLibs:  []string{"-lgdi32", "-luser32"},
	Artifacts: Artifacts{Asm: "graout.asm", Obj: "graout.obj", Exe: "graout.exe"},
}

// QBE returns the host target lowered through QBE IR. Word size follows the
// QBE target resolved in cfg.
func QBE(cfg *config.Config) *Target {
	ws := cfg.WordSize
	if ws == 0 {
		ws = 8
	}
	return &Target{
		Name:        "qbe",
		WordSize:    ws,
		EntrySymbol: "main",
		PrintSymbol: "printf",
		ExitSymbol:  "exit",
		Externs:     []string{"printf", "exit"},
		Assembler:   AssemblerCC,
		Subsystem:   "console",
		Artifacts:   Artifacts{Asm: "outqbe.s", Obj: "outqbe.o", Exe: "outqbe"},
	}
}

// LookupTarget resolves a target name as accepted by config.SetTarget.
func LookupTarget(name string, cfg *config.Config) (*Target, error) {
	switch name {
	case "win64", "":
		return Win64, nil
	case "win32":
		return Win32, nil
	case "gra64", "graphics":
		return Gra64, nil
	case "qbe":
		return QBE(cfg), nil
	}
	return nil, fmt.Errorf("unknown target '%s'", name)
}

// lowers reports whether the target emits code for a call to module.name.
func (t *Target) lowers(cfg *config.Config, module, name string) (SurfaceCall, bool) {
	if t.Surface == nil || module != cfg.GraphicsModule {
		return SurfaceCall{}, false
	}
	sc, ok := t.Surface[name]
	return sc, ok
}
