package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/wnu/wpypp/pkg/ast"
	"github.com/wnu/wpypp/pkg/cli"
	"github.com/wnu/wpypp/pkg/codegen"
	"github.com/wnu/wpypp/pkg/compiler"
	"github.com/wnu/wpypp/pkg/config"
	"github.com/wnu/wpypp/pkg/token"
	"github.com/wnu/wpypp/pkg/toolchain"
	"github.com/wnu/wpypp/pkg/util"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

func main() {
	app := cli.NewApp("wpypp")
	app.Synopsis = "[options] <input.pypp>"
	app.Description = "A compiler for Python++ that emits NASM assembly for win64 and win32 and builds executables with nasm and MinGW gcc."
	app.Authors = []string{"wnu"}
	app.Repository = "<https://github.com/wnu/wpypp>"
	app.Since = 2025

	var (
		outDir       string
		target       string
		graphics     bool
		no32         bool
		emitOnly     bool
		dumpTokens   bool
		dumpAST      bool
		verbose      bool
		wall         bool
		modules      []string
		linkerArgs   []string
		compilerArgs []string
		libs         []string
	)

	fs := app.FlagSet
	fs.String(&outDir, "outdir", "o", ".", "Write assembly, objects and executables into <dir>.", "dir")
	fs.String(&target, "target", "t", "win64", "Select the primary target: win64, win32, gra64 or qbe.", "target")
	fs.Bool(&graphics, "win32", "", false, "Build a windowed graphics program (WinMain entry, graphics runtime calls).")
	fs.Bool(&no32, "no32", "", false, "Do not build the secondary 32-bit artifact.")
	fs.Bool(&emitOnly, "emit-only", "S", false, "Stop after writing assembly; do not assemble or link.")
	fs.Bool(&dumpTokens, "dump-tokens", "", false, "Print the token stream and exit.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Print the syntax tree and exit.")
	fs.Bool(&verbose, "verbose", "v", false, "Trace compiler stages.")
	fs.Bool(&wall, "Wall", "", false, "Enable all warnings.")
	fs.List(&modules, "module", "M", []string{}, "Treat <module> as included in every file.", "module")
	fs.List(&linkerArgs, "linker-arg", "L", []string{}, "Pass an argument to the linker.", "arg")
	fs.List(&compilerArgs, "compiler-arg", "C", []string{}, "Pass a compiler-specific argument (e.g., -C linker_args='-s').", "arg")
	fs.Special(&libs, "l", "Link with a library (e.g., -lgdi32).", "lib")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) != 1 {
			err := errors.New("expected exactly one input file, got %d", len(inputFiles))
			util.NewReporter(os.Stderr, cfg).Report(err)
			return err
		}
		input := inputFiles[0]

		if wall {
			cfg.SetAllWarnings(true)
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)

		if graphics {
			target = "gra64"
		}
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			util.NewReporter(os.Stderr, cfg).Report(err)
			return err
		}
		if no32 {
			cfg.SetFeature(config.FeatSecondary32, false)
		}
		if cfg.TargetName == "gra64" {
			cfg.ImplicitModules = append(cfg.ImplicitModules, cfg.GraphicsModule)
		}
		cfg.ImplicitModules = append(cfg.ImplicitModules, modules...)

		if err := addLinkerArgs(cfg, linkerArgs, compilerArgs, libs); err != nil {
			util.NewReporter(os.Stderr, cfg).Report(err)
			return err
		}

		ctx := context.Background()
		if verbose {
			ctx = tlog.ContextWithSpan(ctx, tlog.Root())
		}

		return run(ctx, cfg, input, options{
			outDir:     outDir,
			emitOnly:   emitOnly,
			dumpTokens: dumpTokens,
			dumpAST:    dumpAST,
		})
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// addLinkerArgs appends -L arguments, -C linker_args strings and -l libraries
// to cfg.LinkerArgs, in that order.
func addLinkerArgs(cfg *config.Config, linkerArgs, compilerArgs, libs []string) error {
	cfg.LinkerArgs = append(cfg.LinkerArgs, linkerArgs...)
	for _, carg := range compilerArgs {
		key, value, ok := strings.Cut(carg, "=")
		if !ok || key != "linker_args" {
			return errors.New("unknown compiler argument '%s'", carg)
		}
		parsed, err := config.ParseCLIString(value)
		if err != nil {
			return errors.Wrap(err, "invalid -C linker_args value")
		}
		cfg.LinkerArgs = append(cfg.LinkerArgs, parsed...)
	}
	for _, lib := range libs {
		cfg.LinkerArgs = append(cfg.LinkerArgs, "-l"+lib)
	}
	return nil
}

type options struct {
	outDir     string
	emitOnly   bool
	dumpTokens bool
	dumpAST    bool
}

func run(ctx context.Context, cfg *config.Config, input string, opts options) error {
	targets, err := compiler.Targets(cfg)
	if err != nil {
		util.NewReporter(os.Stderr, cfg).Report(err)
		return err
	}
	if opts.dumpTokens || opts.dumpAST {
		targets = nil
	}

	fmt.Println("----------------------")
	fmt.Printf("Compiling '%s' for %s...\n", input, targetNames(targets))
	res, rep, err := compiler.CompileFile(ctx, input, cfg, os.Stderr, targets...)
	if err != nil {
		if rep == nil {
			rep = util.NewReporter(os.Stderr, cfg)
		}
		rep.Report(err)
		return err
	}

	if opts.dumpTokens {
		dumpTokens(res.Tokens)
	}
	if opts.dumpAST {
		ast.Dump(os.Stdout, res.Program)
	}
	if opts.dumpTokens || opts.dumpAST {
		return nil
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		err = util.Errorf(util.KindIO, token.Token{FileIndex: -1}, "could not create '%s': %v", opts.outDir, err)
		rep.Report(err)
		return err
	}
	paths, err := compiler.WriteOutputs(opts.outDir, res.Outputs)
	for _, p := range paths {
		fmt.Printf("Assembly written to '%s'\n", p)
	}
	if err != nil {
		rep.Report(err)
		return err
	}
	if opts.emitOnly {
		fmt.Println("----------------------")
		fmt.Println("Done!")
		return nil
	}

	tc := toolchain.New(nil)
	exes, err := build(ctx, tc, opts.outDir, res.Outputs, cfg.LinkerArgs, os.Stdout)
	if err != nil {
		rep.Report(util.Errorf(util.KindToolchain, token.Token{FileIndex: -1}, "%v", err))
		return err
	}

	fmt.Println("----------------------")
	for _, exe := range exes {
		fmt.Printf("Built '%s'\n", exe)
	}
	fmt.Println("Done!")
	return nil
}

func targetNames(targets []*codegen.Target) string {
	if len(targets) == 0 {
		return "inspection"
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

func dumpTokens(toks []token.Token) {
	for _, tok := range toks {
		if tok.Value != "" {
			fmt.Printf("%d:%d\t%s\t%q\n", tok.Line, tok.Column, tok.Type, tok.Value)
		} else {
			fmt.Printf("%d:%d\t%s\n", tok.Line, tok.Column, tok.Type)
		}
	}
}
