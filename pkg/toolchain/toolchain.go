package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/wnu/wpypp/pkg/codegen"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Runner executes one external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ToolError is a failed external command.
type ToolError struct {
	Path   string
	Args   []string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Path, strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Toolchain assembles and links the output of one compilation.
type Toolchain struct {
	Locator *Locator
	Run     Runner

	// Stamps skips re-assembly when the object was built from identical input
	// with an identical command line.
	Stamps bool
}

func New(loc *Locator) *Toolchain {
	return &Toolchain{Locator: loc, Run: execRunner, Stamps: true}
}

// AssemblerCommand returns the tool and arguments that turn src into obj for t.
func (tc *Toolchain) AssemblerCommand(src, obj string, t *codegen.Target) (string, []string, error) {
	if t.Assembler == codegen.AssemblerCC {
		cc, err := tc.Locator.Find(CC)
		if err != nil {
			return "", nil, err
		}
		return cc, []string{"-c", src, "-o", obj}, nil
	}
	nasm, err := tc.Locator.Find(NASM)
	if err != nil {
		return "", nil, err
	}
	return nasm, []string{"-f", t.ObjFormat, src, "-o", obj}, nil
}

// LinkerCommand returns the tool and arguments that link obj into exe for t.
func (tc *Toolchain) LinkerCommand(obj, exe string, t *codegen.Target, extra []string) (string, []string, error) {
	var tool Tool
	switch {
	case t.Assembler == codegen.AssemblerCC:
		tool = CC
	case t.WordSize == 4:
		tool = GCC32
	default:
		tool = GCC64
	}
	path, err := tc.Locator.Find(tool)
	if err != nil {
		return "", nil, err
	}

	args := []string{obj, "-o", exe}
	if t.Assembler == codegen.AssemblerCC {
		args = append([]string{"-no-pie"}, args...)
	} else {
		args = append(args, t.LinkLibs...)
		args = append(args, "-Wl,-subsystem,"+t.Subsystem)
	}
	args = append(args, extra...)
	return path, args, nil
}

// Assemble runs the assembler for t on src, producing obj.
func (tc *Toolchain) Assemble(ctx context.Context, src, obj string, t *codegen.Target) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "assemble", "src", src, "obj", obj, "target", t.Name)
	defer tr.Finish("err", &err)

	path, args, err := tc.AssemblerCommand(src, obj, t)
	if err != nil {
		return errors.Wrap(err, "assemble %v", src)
	}

	var stamp string
	if tc.Stamps {
		stamp, err = stampFor(src, path, args)
		if err != nil {
			return errors.Wrap(err, "assemble %v", src)
		}
		if upToDate(obj, stamp) {
			tr.Printw("object up to date", "obj", obj)
			return nil
		}
	}

	if err = tc.run(ctx, path, args); err != nil {
		return errors.Wrap(err, "assemble %v", src)
	}

	if tc.Stamps {
		if err = os.WriteFile(stampPath(obj), []byte(stamp+"\n"), 0o644); err != nil {
			return errors.Wrap(err, "write stamp")
		}
	}
	return nil
}

// Link runs the linker for t on obj, producing exe.
func (tc *Toolchain) Link(ctx context.Context, obj, exe string, t *codegen.Target, extra []string) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "link", "obj", obj, "exe", exe, "target", t.Name)
	defer tr.Finish("err", &err)

	path, args, err := tc.LinkerCommand(obj, exe, t, extra)
	if err != nil {
		return errors.Wrap(err, "link %v", exe)
	}
	if err = tc.run(ctx, path, args); err != nil {
		return errors.Wrap(err, "link %v", exe)
	}
	return nil
}

func (tc *Toolchain) run(ctx context.Context, path string, args []string) error {
	tlog.SpanFromContext(ctx).Printw("exec", "path", path, "args", args)

	run := tc.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, path, args...)
	if err != nil {
		return &ToolError{Path: path, Args: args, Output: string(out), Err: err}
	}
	return nil
}

func stampPath(obj string) string { return obj + ".xxh" }

// stampFor digests the assembler input together with the command line.
func stampFor(src, path string, args []string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	d := xxhash.New()
	d.Write(data)
	d.WriteString("\x00" + path)
	for _, a := range args {
		d.WriteString("\x00" + a)
	}
	return fmt.Sprintf("%016x", d.Sum64()), nil
}

func upToDate(obj, stamp string) bool {
	if !fileExists(obj) {
		return false
	}
	old, err := os.ReadFile(stampPath(obj))
	if err != nil {
		return false
	}
	return string(bytes.TrimSpace(old)) == stamp
}
