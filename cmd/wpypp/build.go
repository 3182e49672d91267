package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/wnu/wpypp/pkg/codegen"
	"github.com/wnu/wpypp/pkg/compiler"
	"github.com/wnu/wpypp/pkg/toolchain"
	"tlog.app/go/errors"
)

// build assembles and links every output. A failure of the primary output is
// returned; a failed secondary 32-bit output is reported on log and the build
// goes on. The executables that were produced are returned in order.
func build(ctx context.Context, tc *toolchain.Toolchain, dir string, outs []compiler.Output, extra []string, log io.Writer) ([]string, error) {
	var exes []string
	for i, o := range outs {
		t := o.Target
		src := filepath.Join(dir, t.Artifacts.Asm)
		obj := filepath.Join(dir, t.Artifacts.Obj)
		exe := filepath.Join(dir, t.Artifacts.Exe)

		fmt.Fprintf(log, "Assembling '%s' (%s)...\n", src, t.Name)
		err := tc.Assemble(ctx, src, obj, t)
		if err == nil {
			fmt.Fprintf(log, "Linking to create '%s'...\n", exe)
			err = tc.Link(ctx, obj, exe, t, extra)
		}

		switch {
		case err == nil:
			exes = append(exes, exe)
		case softFailure(i, t):
			fmt.Fprintf(log, "warning: %s build failed, continuing without it: %v\n", t.Name, err)
		default:
			return exes, errors.Wrap(err, "%v build", t.Name)
		}
	}
	return exes, nil
}

// softFailure reports whether a failed build of output i leaves the run
// successful.
func softFailure(i int, t *codegen.Target) bool {
	return i > 0 && t.WordSize == 4
}
