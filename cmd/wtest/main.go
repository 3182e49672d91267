// wtest compiles every test program in-process and compares the emitted
// assembly per target against a golden JSON file stored next to it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/wnu/wpypp/pkg/codegen"
	"github.com/wnu/wpypp/pkg/compiler"
	"github.com/wnu/wpypp/pkg/config"
)

// Golden is the recorded result of compiling one source file.
type Golden struct {
	Hash     string            `json:"hash"`
	Error    string            `json:"error,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
	Outputs  map[string]string `json:"outputs,omitempty"`
}

type FileResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, SKIP, ERROR, UPDATED
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

var (
	testFiles  = flag.String("test-files", "testdata/*.pypp", "Glob pattern(s) for files to test (space-separated).")
	skipFiles  = flag.String("skip-files", "", "Files to skip (space-separated).")
	targetList = flag.String("targets", "win64 win32 gra64", "Targets to compile every file for (space-separated).")
	update     = flag.Bool("update", false, "Rewrite golden files from the current compiler output.")
	jsonDir    = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	outputJSON = flag.String("output", "", "Write a JSON report of all results to this file.")
	jobs       = flag.Int("j", runtime.NumCPU(), "Number of parallel test jobs.")
	verbose    = flag.Bool("v", false, "Print passing files too.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	results := runSuite(files, strings.Fields(*targetList), *update)
	printSummary(os.Stdout, results)

	if *outputJSON != "" {
		writeJSONReport(*outputJSON, results)
	}
	if hasFailures(results) {
		os.Exit(1)
	}
}

func runSuite(files, targets []string, update bool) []*FileResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- checkFile(file, targets, update)
			}
		}()
	}

	// Files with identical content are only checked once.
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var all []*FileResult
	for r := range resultsChan {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })
	return all
}

func goldenPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

// compileGolden compiles file once per target with a fresh config each time.
func compileGolden(file string, targets []string) (*Golden, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	g := &Golden{Hash: fmt.Sprintf("%x", xxhash.Sum64(src)), Outputs: make(map[string]string)}

	seenWarnings := make(map[string]bool)
	for _, name := range targets {
		cfg := config.NewConfig()
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, name); err != nil {
			return nil, err
		}
		t, err := codegen.LookupTarget(cfg.TargetName, cfg)
		if err != nil {
			return nil, err
		}
		if t.Surface != nil {
			cfg.ImplicitModules = append(cfg.ImplicitModules, cfg.GraphicsModule)
		}

		res, rep, err := compiler.Compile(context.Background(), filepath.Base(file), src, cfg, nil, t)
		for _, w := range rep.Warnings {
			msg := fmt.Sprintf("%d:%d: %s [-W%s]", w.Tok.Line, w.Tok.Column, w.Msg, cfg.Warnings[w.Warning].Name)
			if !seenWarnings[msg] {
				seenWarnings[msg] = true
				g.Warnings = append(g.Warnings, msg)
			}
		}
		if err != nil {
			g.Error = err.Error()
			g.Outputs = nil
			return g, nil
		}
		g.Outputs[name] = res.Outputs[0].Asm.String()
	}
	return g, nil
}

func checkFile(file string, targets []string, update bool) *FileResult {
	got, err := compileGolden(file, targets)
	if err != nil {
		return &FileResult{File: file, Status: "ERROR", Message: err.Error()}
	}

	path := goldenPath(file)
	if update {
		data, err := json.MarshalIndent(got, "", "  ")
		if err != nil {
			return &FileResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to marshal golden data: %v", err)}
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return &FileResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to write golden file %s: %v", path, err)}
		}
		return &FileResult{File: file, Status: "UPDATED", Message: "Golden file written to " + path}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &FileResult{File: file, Status: "SKIP", Message: "No golden file; run with -update to create one"}
	}
	var want Golden
	if err := json.Unmarshal(data, &want); err != nil {
		return &FileResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", path, err)}
	}

	if want.Hash != got.Hash {
		return &FileResult{File: file, Status: "FAIL", Message: "Source changed since the golden file was recorded; rerun with -update"}
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		return &FileResult{File: file, Status: "FAIL", Message: "Output differs from golden file (-want +got)", Diff: diff}
	}
	return &FileResult{File: file, Status: "PASS", Message: fmt.Sprintf("%d target(s) match", len(got.Outputs))}
}

func printSummary(w io.Writer, results []*FileResult) {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
		if r.Status == "PASS" && !*verbose {
			continue
		}
		fmt.Fprintln(w, "----------------------------------------------------------------------")
		fmt.Fprintf(w, "Testing %s%s%s...\n", cCyan, r.File, cNone)
		switch r.Status {
		case "PASS", "UPDATED":
			fmt.Fprintf(w, "  [%s%s%s] %s\n", cGreen, r.Status, cNone, r.Message)
		case "SKIP":
			fmt.Fprintf(w, "  [%sSKIP%s] %s\n", cYellow, cNone, r.Message)
		default:
			fmt.Fprintf(w, "  [%s%s%s] %s\n", cRed, r.Status, cNone, r.Message)
			fmt.Fprint(w, formatDiff(r.Diff))
		}
	}
	fmt.Fprintln(w, "----------------------------------------------------------------------")
	fmt.Fprintf(w, "Total: %d, %sPassed: %d%s, %sFailed: %d%s, %sSkipped: %d%s, Errors: %d, Updated: %d\n",
		len(results), cGreen, counts["PASS"], cNone, cRed, counts["FAIL"], cNone, cYellow, counts["SKIP"], cNone, counts["ERROR"], counts["UPDATED"])
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmed, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(path string, results []*FileResult) {
	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return
	}
	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, path, err)
		return
	}
	fmt.Printf("Full test report saved to %s\n", path)
}

func hasFailures(results []*FileResult) bool {
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			if seen[file] {
				continue
			}
			if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, file)
				seen[file] = true
			}
		}
	}
	return allFiles, nil
}
