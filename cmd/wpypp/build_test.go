package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnu/wpypp/pkg/cli"
	"github.com/wnu/wpypp/pkg/codegen"
	"github.com/wnu/wpypp/pkg/compiler"
	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/toolchain"
)

// fakeToolchain resolves every tool to its bare name and fails any command
// whose output file is listed in failing.
func fakeToolchain(failing ...string) (*toolchain.Toolchain, *[]string) {
	var ran []string
	tc := toolchain.New(&toolchain.Locator{
		Getenv:   func(string) string { return "" },
		Exists:   func(string) bool { return false },
		LookPath: func(name string) (string, error) { return name, nil },
	})
	tc.Stamps = false
	tc.Run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		out := args[len(args)-1]
		for i, a := range args {
			if a == "-o" {
				out = args[i+1]
			}
		}
		ran = append(ran, name+" "+filepath.Base(out))
		for _, f := range failing {
			if filepath.Base(out) == f {
				return []byte("error: " + f), errors.New("exit status 1")
			}
		}
		return nil, nil
	}
	return tc, &ran
}

func writeOutputs(t *testing.T, targets ...*codegen.Target) (string, []compiler.Output) {
	t.Helper()
	dir := t.TempDir()
	var outs []compiler.Output
	for _, tg := range targets {
		outs = append(outs, compiler.Output{Target: tg, Asm: bytes.NewBufferString("; " + tg.Name + "\n")})
	}
	_, err := compiler.WriteOutputs(dir, outs)
	require.NoError(t, err)
	return dir, outs
}

func TestBuildBothOutputs(t *testing.T) {
	dir, outs := writeOutputs(t, codegen.Win64, codegen.Win32)
	tc, ran := fakeToolchain()

	var log bytes.Buffer
	exes, err := build(context.Background(), tc, dir, outs, []string{"-s"}, &log)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "out.exe"), filepath.Join(dir, "out32.exe")}, exes)
	assert.Equal(t, []string{
		"nasm out.o",
		"x86_64-w64-mingw32-gcc out.exe",
		"nasm out32.o",
		"i686-w64-mingw32-gcc out32.exe",
	}, *ran)
	assert.Contains(t, log.String(), "Linking to create '"+filepath.Join(dir, "out32.exe")+"'...\n")
}

func TestBuildSecondaryFailureIsSoft(t *testing.T) {
	dir, outs := writeOutputs(t, codegen.Win64, codegen.Win32)
	tc, _ := fakeToolchain("out32.exe")

	var log bytes.Buffer
	exes, err := build(context.Background(), tc, dir, outs, nil, &log)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "out.exe")}, exes)
	assert.Contains(t, log.String(), "warning: win32 build failed, continuing without it")
}

func TestBuildPrimaryFailureIsFatal(t *testing.T) {
	dir, outs := writeOutputs(t, codegen.Win64, codegen.Win32)
	tc, ran := fakeToolchain("out.o")

	_, err := build(context.Background(), tc, dir, outs, nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, []string{"nasm out.o"}, *ran)

	var te *toolchain.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "error: out.o", te.Output)
}

func TestBuildPrimary32BitFailureIsFatal(t *testing.T) {
	dir, outs := writeOutputs(t, codegen.Win32)
	tc, _ := fakeToolchain("out32.o")

	_, err := build(context.Background(), tc, dir, outs, nil, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestTargetNames(t *testing.T) {
	assert.Equal(t, "inspection", targetNames(nil))
	assert.Equal(t, "win64, win32", targetNames([]*codegen.Target{codegen.Win64, codegen.Win32}))
}

func TestRunEmitOnly(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "hello.pypp")
	require.NoError(t, os.WriteFile(input, []byte(`func main() { pypstdio.print("hi"); }`), 0o644))

	cfg := newTestConfig(t)
	out := filepath.Join(dir, "build")
	require.NoError(t, run(context.Background(), cfg, input, options{outDir: out, emitOnly: true}))
	assert.FileExists(t, filepath.Join(out, "out.asm"))
	assert.FileExists(t, filepath.Join(out, "out32.asm"))

	err := run(context.Background(), cfg, filepath.Join(dir, "missing.pypp"), options{outDir: out, emitOnly: true})
	assert.Error(t, err)
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	require.NoError(t, cfg.SetTarget("windows", "amd64", "win64"))
	return cfg
}

func TestAddLinkerArgs(t *testing.T) {
	cfg := config.NewConfig()
	err := addLinkerArgs(cfg, []string{"-s"}, []string{`linker_args=-Wl,--stack,4096 "-L C:/my libs"`}, []string{"gdi32", "user32"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-s", "-Wl,--stack,4096", "-L C:/my libs", "-lgdi32", "-luser32"}, cfg.LinkerArgs)

	assert.Error(t, addLinkerArgs(config.NewConfig(), nil, []string{"opt=3"}, nil))
	assert.Error(t, addLinkerArgs(config.NewConfig(), nil, []string{`linker_args="open`}, nil))
}

func TestLibraryFlagReachesLinker(t *testing.T) {
	var libs []string
	fs := cli.NewFlagSet("wpypp")
	fs.Special(&libs, "l", "", "lib")
	require.NoError(t, fs.Parse([]string{"-lgdi32", "in.pypp", "-lmsvcrt"}))

	cfg := config.NewConfig()
	require.NoError(t, addLinkerArgs(cfg, nil, nil, libs))

	dir, outs := writeOutputs(t, codegen.Win64)
	tc, _ := fakeToolchain()
	var args []string
	run := tc.Run
	tc.Run = func(ctx context.Context, name string, a ...string) ([]byte, error) {
		args = a
		return run(ctx, name, a...)
	}
	_, err := build(context.Background(), tc, dir, outs, cfg.LinkerArgs, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"-lgdi32", "-lmsvcrt"}, args[len(args)-2:])
}
