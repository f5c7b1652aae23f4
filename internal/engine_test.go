package internal

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/matchall/internal/rewrite"
	tt "github.com/gnolang/matchall/internal/types"
)

const greetTemplate = `//go:build matchall && !windows

// Package greet says hello.
package greet

// Greet lists every greeting that applies to v.
func Greet(v int) []string {
	var out []string
	//matchall
	switch v {
	case 3, 4:
		out = append(out, "Hello")
	case 4, 5:
		out = append(out, "Howdy")
	default:
		out = append(out, "No Match")
	}
	return out
}
`

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	engine, err := NewEngine(t.TempDir(), opts)
	require.NoError(t, err)
	return engine
}

func issueRules(issues []tt.Issue) []string {
	var out []string
	for _, issue := range issues {
		out = append(out, issue.Rule)
	}
	return out
}

func TestRunSourceTemplate(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, Options{})

	result, err := engine.RunSource("pkg/greet.go", []byte(greetTemplate))
	require.NoError(t, err)

	assert.True(t, result.Template)
	assert.False(t, result.Skipped)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 1, result.Expanded)
	assert.Equal(t, "pkg/greet_matchall.go", result.Output)

	out := string(result.Content)
	lines := strings.Split(out, "\n")
	require.Greater(t, len(lines), 3)
	assert.Equal(t, "// Code generated by matchall from greet.go. DO NOT EDIT.", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "//go:build !matchall && !windows", lines[2])
	assert.Contains(t, out, "// Package greet says hello.")
	assert.Contains(t, out, "// Greet lists every greeting")
	assert.NotContains(t, out, "//matchall")
	assert.NotContains(t, out, "go:build matchall")
	assert.Contains(t, out, "mallValue1 := v")

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, result.Output, result.Content, parser.ParseComments)
	require.NoError(t, err)
	assert.True(t, ast.IsGenerated(f))

	_, err = (&types.Config{}).Check("greet", fset, []*ast.File{f}, nil)
	assert.NoError(t, err)
}

func TestRunSourceTestTemplate(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, Options{OutputSuffix: "_gen"})

	result, err := engine.RunSource("greet_test.go", []byte(greetTemplate))
	require.NoError(t, err)
	assert.Equal(t, "greet_gen_test.go", result.Output)
}

func TestRunSourceCustomBuildTag(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, Options{BuildTag: "multi"})
	src := strings.Replace(greetTemplate, "matchall && !windows", "multi", 1)

	result, err := engine.RunSource("greet.go", []byte(src))
	require.NoError(t, err)

	assert.True(t, result.Template)
	assert.Equal(t, "greet_multi.go", result.Output)
	assert.Contains(t, string(result.Content), "//go:build !multi\n")
	assert.Equal(t, "multi", engine.BuildTag())
}

func TestRunSourceTemplateWithoutDirectives(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, Options{})
	src := "//go:build matchall\n\npackage p\n\nfunc f() {}\n"

	result, err := engine.RunSource("p.go", []byte(src))
	require.NoError(t, err)

	assert.True(t, result.Template)
	assert.Equal(t, 0, result.Expanded)
	assert.Equal(t, "p_matchall.go", result.Output)
	assert.Contains(t, string(result.Content), "//go:build !matchall")
}

func TestRunSourceSkipsPlainFiles(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, Options{})

	result, err := engine.RunSource("plain.go", []byte("package p\n\nfunc f() {}\n"))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Nil(t, result.Content)

	generated := rewrite.Header("greet.go") + "\n" + "//go:build !matchall\n\npackage p\n"
	result, err = engine.RunSource("greet_matchall.go", []byte(generated))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestRunSourceMissingBuildTag(t *testing.T) {
	t.Parallel()
	src := strings.Replace(greetTemplate, "//go:build matchall && !windows\n\n", "", 1)

	t.Run("warns", func(t *testing.T) {
		engine := newTestEngine(t, Options{})
		result, err := engine.RunSource("greet.go", []byte(src))
		require.NoError(t, err)

		assert.Equal(t, []string{rewrite.RuleMissingBuildTag}, issueRules(result.Issues))
		assert.Equal(t, tt.SeverityWarning, result.Issues[0].Severity)
		assert.Equal(t, "//go:build matchall", result.Issues[0].Suggestion)
		assert.Nil(t, result.Content)
		assert.Empty(t, result.Output)
	})

	t.Run("ignored", func(t *testing.T) {
		engine := newTestEngine(t, Options{})
		engine.IgnoreRule(rewrite.RuleMissingBuildTag)
		result, err := engine.RunSource("greet.go", []byte(src))
		require.NoError(t, err)
		assert.Empty(t, result.Issues)
		assert.Nil(t, result.Content)
	})

	t.Run("in place", func(t *testing.T) {
		engine := newTestEngine(t, Options{InPlace: true})
		result, err := engine.RunSource("greet.go", []byte(src))
		require.NoError(t, err)

		assert.Empty(t, result.Issues)
		assert.Equal(t, "greet.go", result.Output)
		assert.Equal(t, 1, result.Expanded)
		assert.NotContains(t, string(result.Content), "Code generated")
		assert.Contains(t, string(result.Content), "if !mallMatched1 {")
	})
}

func TestRunSourceErrorsBlockOutput(t *testing.T) {
	t.Parallel()
	src := strings.Replace(greetTemplate, `out = append(out, "Hello")`, `out = append(out, "Hello")
		fallthrough`, 1)

	engine := newTestEngine(t, Options{})
	result, err := engine.RunSource("greet.go", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{rewrite.RuleFallthroughInGroup}, issueRules(result.Issues))
	assert.True(t, tt.HasErrors(result.Issues))
	assert.Nil(t, result.Content)
	assert.Empty(t, result.Output)

	engine.IgnoreRule(rewrite.RuleFallthroughInGroup)
	result, err = engine.RunSource("greet.go", []byte(src))
	require.NoError(t, err)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 0, result.Expanded, "an ignored error still keeps the switch out of expansion")
}

func TestRunSourceRuleSeverityFromOptions(t *testing.T) {
	t.Parallel()
	src := strings.Replace(greetTemplate, "case 3, 4:", "case 3, 3, 4:", 1)

	engine := newTestEngine(t, Options{Rules: map[string]tt.ConfigRule{
		rewrite.RuleDuplicatePattern: {Severity: tt.SeverityError},
		"not-a-rule":                 {Severity: tt.SeverityOff},
	}})
	result, err := engine.RunSource("greet.go", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{rewrite.RuleDuplicatePattern}, issueRules(result.Issues))
	assert.Equal(t, tt.SeverityError, result.Issues[0].Severity)
	assert.Nil(t, result.Content)
}

func TestRunSourceRequireFallback(t *testing.T) {
	t.Parallel()
	src := strings.Replace(greetTemplate, `	default:
		out = append(out, "No Match")
`, "", 1)

	engine := newTestEngine(t, Options{RequireFallback: true})
	result, err := engine.RunSource("greet.go", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{rewrite.RuleMissingFallback}, issueRules(result.Issues))
	assert.True(t, tt.HasErrors(result.Issues))
}

func TestRunSourceParseError(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, Options{})
	_, err := engine.RunSource("broken.go", []byte("package p\n\nfunc {"))
	assert.Error(t, err)
}

func TestRunIgnoredPaths(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	engine, err := NewEngine(root, Options{Exclude: []string{"gen/**"}})
	require.NoError(t, err)
	engine.IgnorePath("**/skip_*.go")

	for _, rel := range []string{"gen/a.go", "pkg/skip_me.go"} {
		result, err := engine.Run(filepath.Join(root, rel))
		require.NoError(t, err, rel)
		assert.True(t, result.Skipped, rel)
	}

	_, err = engine.Run(filepath.Join(root, "missing.go"))
	assert.Error(t, err)
}

func TestNewEngineRejectsBadPattern(t *testing.T) {
	t.Parallel()
	_, err := NewEngine(t.TempDir(), Options{Exclude: []string{"[unterminated"}})
	assert.Error(t, err)
}

func TestReadSourceCode(t *testing.T) {
	t.Parallel()
	filename := filepath.Join(t.TempDir(), "a.go")
	writeTestFile(t, filename, "package a\n\nfunc f() {}\n")

	code, err := ReadSourceCode(filename)
	require.NoError(t, err)
	assert.Equal(t, []string{"package a", "", "func f() {}", ""}, code.Lines)
}
