// Package toolchain drives the external assembler and linker that turn
// generated assembly into executables.
package toolchain

import (
	"os"
	"os/exec"

	"tlog.app/go/errors"
)

// Tool describes where one external program may be found: an environment
// override, then fixed install paths, then bare command names on PATH.
type Tool struct {
	Name  string
	Env   string
	Paths []string
	Names []string
}

var (
	NASM = Tool{
		Name:  "nasm",
		Env:   "NASM_PATH",
		Paths: []string{`C:\msys64\usr\bin\nasm.exe`, `C:\Program Files\NASM\nasm.exe`},
		Names: []string{"nasm"},
	}
	GCC64 = Tool{
		Name:  "gcc (64-bit)",
		Env:   "GCC64_PATH",
		Paths: []string{`C:\msys64\mingw64\bin\gcc.exe`},
		Names: []string{"x86_64-w64-mingw32-gcc", "gcc"},
	}
	GCC32 = Tool{
		Name:  "gcc (32-bit)",
		Env:   "GCC32_PATH",
		Paths: []string{`C:\msys64\mingw32\bin\gcc.exe`},
		Names: []string{"i686-w64-mingw32-gcc"},
	}
	CC = Tool{
		Name:  "cc",
		Env:   "CC",
		Names: []string{"cc"},
	}
)

// Locator resolves a Tool to an executable path. The zero value uses the
// process environment, the filesystem and PATH.
type Locator struct {
	Getenv   func(string) string
	Exists   func(string) bool
	LookPath func(string) (string, error)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// Find returns the first candidate for t that exists.
func (l *Locator) Find(t Tool) (string, error) {
	getenv, exists, lookPath := os.Getenv, fileExists, exec.LookPath
	if l != nil {
		if l.Getenv != nil {
			getenv = l.Getenv
		}
		if l.Exists != nil {
			exists = l.Exists
		}
		if l.LookPath != nil {
			lookPath = l.LookPath
		}
	}

	if t.Env != "" {
		if p := getenv(t.Env); p != "" {
			// An explicit override is used as given, even if it is a bare name.
			return p, nil
		}
	}
	for _, p := range t.Paths {
		if exists(p) {
			return p, nil
		}
	}
	for _, n := range t.Names {
		if p, err := lookPath(n); err == nil {
			return p, nil
		}
	}
	if t.Env != "" {
		return "", errors.New("%v not found: set %v or add it to PATH", t.Name, t.Env)
	}
	return "", errors.New("%v not found in PATH", t.Name)
}
