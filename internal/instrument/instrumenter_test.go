package instrument

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwatch/callwatch/internal/testutil"
)

func applyToSource(t *testing.T, src string, deny []string, opts Options) (*Result, string) {
	t.Helper()

	pkg := loadTestPackage(t, src)
	scanner := NewScanner(deny, testutil.NewTestLogger(t))
	sites := scanner.Scan([]*Package{pkg})

	opts.Logger = testutil.NewTestLogger(t)
	res := NewInstrumenter(opts).Apply([]*Package{pkg}, sites)

	out, err := Render(ChangedFile{Path: "main.go", AST: pkg.Files[0].AST, Fset: pkg.Fset})
	require.NoError(t, err)
	return res, string(out)
}

func TestInstrumenter_InsertsLoggingCalls(t *testing.T) {
	res, out := applyToSource(t, srcBasic, []string{"unsafeCopy"}, Options{})

	assert.True(t, res.Modified)
	assert.Equal(t, 2, res.Sites)
	require.Len(t, res.Files, 1)

	// Exactly one logging call per matched site, none for other calls.
	logCall := `cwprofile.Log("example.com/fake.unsafeCopy", "example.com/fake.run")`
	assert.Equal(t, 2, strings.Count(out, logCall))
	assert.Equal(t, 2, strings.Count(out, "cwprofile.Log("))

	// Original calls keep their operands.
	assert.Contains(t, out, `unsafeCopy("a", "b")`)
	assert.Contains(t, out, `unsafeCopy("c", "d")`)

	// The logging call lands immediately before its site.
	idx := strings.Index(out, logCall)
	rest := out[idx+len(logCall):]
	assert.True(t, strings.HasPrefix(strings.TrimSpace(rest), `unsafeCopy("a", "b")`))
}

func TestInstrumenter_AddsRuntimeImport(t *testing.T) {
	_, out := applyToSource(t, srcBasic, []string{"unsafeCopy"}, Options{})

	assert.Contains(t, out, `cwprofile "github.com/callwatch/callwatch/pkg/profile"`)
}

func TestInstrumenter_RuntimeImportOverride(t *testing.T) {
	_, out := applyToSource(t, srcBasic, []string{"unsafeCopy"}, Options{
		RuntimeImport: "example.com/alt/profile",
	})

	assert.Contains(t, out, `cwprofile "example.com/alt/profile"`)
}

func TestInstrumenter_NoMatchesLeavesSourceAlone(t *testing.T) {
	res, out := applyToSource(t, srcBasic, []string{"nothingMatches"}, Options{})

	assert.False(t, res.Modified)
	assert.Zero(t, res.Sites)
	assert.Empty(t, res.Files)
	assert.NotContains(t, out, "cwprofile")
}

func TestInstrumenter_Idempotent(t *testing.T) {
	pkg := loadTestPackage(t, srcBasic)
	// Keep the per-site log trail in t.Log; it shows which sites the second
	// pass skipped when the assertion below fails.
	logger := testutil.NewTestLoggerWithOutput(t)
	deny := []string{"unsafeCopy"}

	scanner := NewScanner(deny, logger)
	ins := NewInstrumenter(Options{Logger: logger})

	first := ins.Apply([]*Package{pkg}, scanner.Scan([]*Package{pkg}))
	require.True(t, first.Modified)
	afterFirst, err := Render(ChangedFile{Path: "main.go", AST: pkg.Files[0].AST, Fset: pkg.Fset})
	require.NoError(t, err)

	// A second pass over the already-instrumented tree must change nothing.
	second := ins.Apply([]*Package{pkg}, scanner.Scan([]*Package{pkg}))
	assert.False(t, second.Modified)
	assert.Zero(t, second.Sites)

	afterSecond, err := Render(ChangedFile{Path: "main.go", AST: pkg.Files[0].AST, Fset: pkg.Fset})
	require.NoError(t, err)
	assert.Equal(t, string(afterFirst), string(afterSecond))
}

func TestInstrumenter_NestedSites(t *testing.T) {
	src := `package main

func unsafeCopy(dst, src string) string { return src }

func run() {
	if unsafeCopy("a", "b") == "a" {
		return
	}
}
`
	res, out := applyToSource(t, src, []string{"unsafeCopy"}, Options{})

	assert.Equal(t, 1, res.Sites)
	// The log precedes the enclosing if statement.
	logIdx := strings.Index(out, "cwprofile.Log(")
	ifIdx := strings.Index(out, "if unsafeCopy")
	require.GreaterOrEqual(t, logIdx, 0)
	assert.Less(t, logIdx, ifIdx)
}

func TestInstrumenter_MultipleCallsOneStatement(t *testing.T) {
	src := `package main

func unsafeCopy(dst, src string) string { return src }

func run() string {
	return unsafeCopy("a", unsafeCopy("b", "c"))
}
`
	res, out := applyToSource(t, src, []string{"unsafeCopy"}, Options{})

	assert.Equal(t, 2, res.Sites)
	assert.Equal(t, 2, strings.Count(out, "cwprofile.Log("))
	retIdx := strings.Index(out, "return unsafeCopy")
	assert.Less(t, strings.LastIndex(out[:retIdx], "cwprofile.Log("), retIdx)
}

func TestInstrumenter_IdempotentWithTwoCalleesInOneStatement(t *testing.T) {
	src := `package main

func unsafeCopy(dst, src string) string { return src }

func unsafeJoin(a, b string) string { return a + b }

func run() string {
	return unsafeJoin("a", unsafeCopy("b", "c"))
}
`
	pkg := loadTestPackage(t, src)
	logger := testutil.NewTestLogger(t)
	deny := []string{"unsafeCopy", "unsafeJoin"}

	scanner := NewScanner(deny, logger)
	ins := NewInstrumenter(Options{Logger: logger})

	first := ins.Apply([]*Package{pkg}, scanner.Scan([]*Package{pkg}))
	assert.Equal(t, 2, first.Sites)

	second := ins.Apply([]*Package{pkg}, scanner.Scan([]*Package{pkg}))
	assert.Zero(t, second.Sites)
	assert.False(t, second.Modified)
}

func TestInstrumenter_HookMain(t *testing.T) {
	res, out := applyToSource(t, srcBasic, []string{"unsafeCopy"}, Options{HookMain: true})

	assert.True(t, res.Modified)
	assert.Contains(t, out, "defer cwprofile.Flush()")

	// The flush defer is the first statement of main.
	mainIdx := strings.Index(out, "func main() {")
	require.GreaterOrEqual(t, mainIdx, 0)
	rest := strings.TrimSpace(out[mainIdx+len("func main() {"):])
	assert.True(t, strings.HasPrefix(rest, "defer cwprofile.Flush()"))
}

func TestInstrumenter_HookMainIdempotent(t *testing.T) {
	pkg := loadTestPackage(t, srcBasic)
	logger := testutil.NewTestLogger(t)
	scanner := NewScanner([]string{"unsafeCopy"}, logger)
	ins := NewInstrumenter(Options{Logger: logger, HookMain: true})

	ins.Apply([]*Package{pkg}, scanner.Scan([]*Package{pkg}))
	ins.Apply([]*Package{pkg}, scanner.Scan([]*Package{pkg}))

	out, err := Render(ChangedFile{Path: "main.go", AST: pkg.Files[0].AST, Fset: pkg.Fset})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "defer cwprofile.Flush()"))
}

func TestInstrumenter_HookMainSkippedWithoutSites(t *testing.T) {
	res, out := applyToSource(t, srcBasic, []string{"noMatch"}, Options{HookMain: true})

	assert.False(t, res.Modified)
	assert.NotContains(t, out, "cwprofile.Flush")
}

func TestWriteIfChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")

	wrote, err := WriteIfChanged(path, []byte("package main\n"))
	require.NoError(t, err)
	assert.True(t, wrote)

	// Identical content is detected and skipped.
	wrote, err = WriteIfChanged(path, []byte("package main\n"))
	require.NoError(t, err)
	assert.False(t, wrote)

	wrote, err = WriteIfChanged(path, []byte("package other\n"))
	require.NoError(t, err)
	assert.True(t, wrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package other\n", string(data))
}
