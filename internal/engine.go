package internal

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnolang/matchall/internal/directive"
	"github.com/gnolang/matchall/internal/rewrite"
	tt "github.com/gnolang/matchall/internal/types"
)

// Options configures an Engine. The zero value is usable.
type Options struct {
	// BuildTag marks template files. Defaults to "matchall".
	BuildTag string
	// OutputSuffix is inserted before .go (or _test.go) in generated file names.
	OutputSuffix string
	// RequireFallback makes every marked switch require a default clause.
	RequireFallback bool
	// InPlace rewrites files that carry directives but no build tag.
	InPlace bool
	// Rules overrides rule severities.
	Rules map[string]tt.ConfigRule
	// Exclude lists doublestar patterns of paths to skip.
	Exclude []string
	// CacheDir enables the result cache when set.
	CacheDir string
}

// Result is the outcome of processing one file.
type Result struct {
	Source string
	// Output is where Content should be written. Empty when nothing
	// should be written.
	Output   string
	Content  []byte
	Issues   []tt.Issue
	Expanded int
	Template bool
	// Skipped is set for files that need no processing.
	Skipped bool
	// Cached is set when the result comes from the cache and the
	// output on disk is already current.
	Cached bool
}

// Engine expands matchall switches in Go source files.
type Engine struct {
	rootDir      string
	opts         Options
	severity     map[string]tt.Severity
	ignoredPaths []string
	cache        *Cache

	mu         sync.Mutex
	watcher    *fsnotify.Watcher
	isWatching bool
	watchDirs  []string
	onResult   func(*Result, error)
}

// NewEngine creates a new generation engine rooted at rootDir.
func NewEngine(rootDir string, opts Options) (*Engine, error) {
	if opts.BuildTag == "" {
		opts.BuildTag = rewrite.DefaultBuildTag
	}
	if opts.OutputSuffix == "" {
		opts.OutputSuffix = "_" + opts.BuildTag
	}
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	engine := &Engine{
		rootDir:      rootDir,
		opts:         opts,
		severity:     make(map[string]tt.Severity, len(opts.Rules)),
		ignoredPaths: append([]string(nil), opts.Exclude...),
	}
	for name, rule := range opts.Rules {
		if _, known := rewrite.DefaultSeverity[name]; !known {
			continue
		}
		engine.severity[name] = rule.Severity
	}

	if opts.CacheDir != "" {
		cache, err := NewCache(opts.CacheDir)
		if err != nil {
			return nil, err
		}
		engine.cache = cache
		cache.SetFingerprint(engine.fingerprint())
	}

	return engine, nil
}

// fingerprint summarises everything besides the input that changes the
// result of processing a file.
func (e *Engine) fingerprint() string {
	return fmt.Sprintf("%s|%s|%t|%t|%v", e.opts.BuildTag, e.opts.OutputSuffix,
		e.opts.RequireFallback, e.opts.InPlace, e.severity)
}

// BuildTag is the tag that marks template files.
func (e *Engine) BuildTag() string {
	return e.opts.BuildTag
}

// IgnoreRule turns a rule off, as if its severity were configured "off".
func (e *Engine) IgnoreRule(rule string) {
	e.severity[rule] = tt.SeverityOff
	if e.cache != nil {
		e.cache.SetFingerprint(e.fingerprint())
	}
}

// IgnorePath skips files matching a doublestar pattern, relative to the
// engine root.
func (e *Engine) IgnorePath(pattern string) {
	e.ignoredPaths = append(e.ignoredPaths, pattern)
}

func (e *Engine) isIgnored(path string) bool {
	rel := path
	if r, err := filepath.Rel(e.rootDir, path); err == nil {
		rel = r
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range e.ignoredPaths {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(path)); ok {
			return true
		}
	}
	return false
}

// Run processes the file at filename.
func (e *Engine) Run(filename string) (*Result, error) {
	if e.isIgnored(filename) {
		return &Result{Source: filename, Skipped: true}, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	if e.cache != nil {
		if entry, ok := e.cache.Get(filename, content); ok {
			return &Result{
				Source:   filename,
				Output:   entry.Output,
				Issues:   entry.Issues,
				Expanded: entry.Expanded,
				Template: entry.Template,
				Cached:   true,
			}, nil
		}
	}

	result, err := e.RunSource(filename, content)
	if err != nil {
		return nil, err
	}

	if e.cache != nil && !result.Skipped {
		if err := e.cache.Set(filename, content, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// RunSource processes an in-memory file. filename is used for positions
// and to derive the output path.
func (e *Engine) RunSource(filename string, source []byte) (*Result, error) {
	result := &Result{Source: filename}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("error parsing file: %w", err)
	}
	if ast.IsGenerated(f) {
		result.Skipped = true
		return result, nil
	}

	expr, err := rewrite.BuildConstraint(f)
	if err != nil {
		return nil, err
	}
	result.Template = rewrite.IsTemplate(expr, e.opts.BuildTag)

	set := directive.Parse(f, fset)
	if set.Len() == 0 && !result.Template {
		result.Skipped = true
		return result, nil
	}

	plan := rewrite.Analyze(f, set, rewrite.Options{
		RequireFallback: e.opts.RequireFallback,
		Severity:        e.severity,
	})
	result.Issues = plan.Issues(fset, filename)

	if !result.Template && !e.opts.InPlace {
		if issue, ok := e.missingBuildTag(fset, f, filename); ok && set.Len() > 0 {
			result.Issues = append(result.Issues, issue)
		}
		return result, nil
	}
	if plan.HasErrors() {
		return result, nil
	}

	result.Expanded = plan.Apply()

	var header string
	if result.Template {
		rewrite.StripBuildConstraints(f)
		header = rewrite.Header(filename) + "\n//go:build " +
			rewrite.NegateTag(expr, e.opts.BuildTag).String() + "\n\n"
		result.Output = rewrite.OutputName(filename, e.opts.OutputSuffix)
	} else {
		result.Output = filename
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	if err := format.Node(&buf, fset, f); err != nil {
		return nil, fmt.Errorf("error printing expanded file: %w", err)
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("error formatting expanded file: %w", err)
	}
	result.Content = formatted

	return result, nil
}

func (e *Engine) missingBuildTag(fset *token.FileSet, f *ast.File, filename string) (tt.Issue, bool) {
	severity, ok := e.severity[rewrite.RuleMissingBuildTag]
	if !ok {
		severity = rewrite.DefaultSeverity[rewrite.RuleMissingBuildTag]
	}
	if severity == tt.SeverityOff {
		return tt.Issue{}, false
	}
	d := rewrite.Diagnostic{
		Rule:     rewrite.RuleMissingBuildTag,
		Severity: severity,
		Pos:      f.Package,
		End:      f.Name.End(),
		Message: fmt.Sprintf("file has matchall directives but no //go:build %s constraint; "+
			"its switches compile with ordinary first-match semantics", e.opts.BuildTag),
		Suggestion: "//go:build " + e.opts.BuildTag,
	}
	return d.Issue(fset, filename), true
}

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads the content of a file and returns it as a `SourceCode` struct.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")
	return &SourceCode{Lines: lines}, nil
}
