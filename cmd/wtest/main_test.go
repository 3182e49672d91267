package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const program = `#include <pyppstdio>
func main() {
    pyppstdio.print("hi", 1);
    return 9999999999;
}
`

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestGoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	file := writeSource(t, dir, "hello.pypp", program)
	targets := []string{"win64", "win32", "gra64"}

	r := checkFile(file, targets, false)
	assert.Equal(t, "SKIP", r.Status)

	r = checkFile(file, targets, true)
	require.Equal(t, "UPDATED", r.Status, r.Message)
	assert.FileExists(t, filepath.Join(dir, ".hello.pypp.json"))

	r = checkFile(file, targets, false)
	assert.Equal(t, "PASS", r.Status, r.Message+r.Diff)
	assert.Equal(t, "3 target(s) match", r.Message)

	// Same source, fewer targets: the recorded outputs no longer match.
	r = checkFile(file, targets[:1], false)
	assert.Equal(t, "FAIL", r.Status)
	assert.NotEmpty(t, r.Diff)

	writeSource(t, dir, "hello.pypp", strings.Replace(program, "hi", "ho", 1))
	r = checkFile(file, targets, false)
	assert.Equal(t, "FAIL", r.Status)
	assert.Contains(t, r.Message, "Source changed")
}

func TestCompileGolden(t *testing.T) {
	dir := t.TempDir()
	file := writeSource(t, dir, "hello.pypp", program)

	g, err := compileGolden(file, []string{"win64", "win32"})
	require.NoError(t, err)
	assert.Empty(t, g.Error)
	require.Len(t, g.Outputs, 2)
	assert.Contains(t, g.Outputs["win64"], "global main\n")
	assert.Contains(t, g.Outputs["win32"], "global _main\n")
	// The overflow is reported once even though both targets lower it.
	assert.Equal(t, []string{"4:12: integer literal 9999999999 truncated to 32 bits [-Woverflow]"}, g.Warnings)

	bad := writeSource(t, dir, "bad.pypp", "func main() { graphics.Clear(\"x\"); }")
	g, err = compileGolden(bad, []string{"win64"})
	require.NoError(t, err)
	assert.Contains(t, g.Error, "module 'graphics' is not in scope")
	assert.Nil(t, g.Outputs)

	// Graphics targets bring the graphics module into scope.
	g, err = compileGolden(bad, []string{"gra64"})
	require.NoError(t, err)
	assert.Empty(t, g.Error)
	assert.Contains(t, g.Outputs["gra64"], "call graphics_Clear\n")

	_, err = compileGolden(file, []string{"vax"})
	assert.Error(t, err)
}

func TestRunSuiteSkipsDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.pypp", program)
	b := writeSource(t, dir, "b.pypp", program)

	results := runSuite([]string{a, b}, []string{"win64"}, true)
	require.Len(t, results, 2)
	assert.Equal(t, "UPDATED", results[0].Status)
	assert.Equal(t, "SKIP", results[1].Status)
	assert.Contains(t, results[1].Message, "identical")
	assert.False(t, hasFailures(results))

	results = runSuite([]string{a, filepath.Join(dir, "gone.pypp")}, []string{"win64"}, false)
	assert.Equal(t, "PASS", results[0].Status)
	assert.Equal(t, "ERROR", results[1].Status)
	assert.True(t, hasFailures(results))
}

func TestExpandGlobPatterns(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.pypp", "")
	writeSource(t, dir, "b.pypp", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.pypp"), 0o755))

	pat := filepath.Join(dir, "*.pypp")
	files, err := expandGlobPatterns(pat + " " + filepath.Join(dir, "a.pypp"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.pypp"), filepath.Join(dir, "b.pypp")}, files)

	_, err = expandGlobPatterns("[")
	assert.Error(t, err)
}

func TestFormatDiff(t *testing.T) {
	assert.Empty(t, formatDiff(""))
	out := formatDiff("-a\n+b")
	assert.Contains(t, out, cRed+"    -a"+cNone)
	assert.Contains(t, out, cGreen+"    +b"+cNone)
}

func TestTestdataMatchesGoldens(t *testing.T) {
	files, err := expandGlobPatterns(filepath.Join("..", "..", "testdata", "*.pypp"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, r := range runSuite(files, strings.Fields(*targetList), false) {
		assert.Equal(t, "PASS", r.Status, "%s: %s\n%s", r.File, r.Message, r.Diff)
	}
}
