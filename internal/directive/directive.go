package directive

import (
	"fmt"
	"go/ast"
	"go/token"
	"sort"
	"strings"
)

const Prefix = "//matchall"

// Option modifies how a single marked switch is checked.
type Option string

const (
	// Strict makes a missing default clause an error.
	Strict Option = "strict"
	// NoFallback acknowledges that the switch intentionally has no
	// default clause, even when it is used to produce a value.
	NoFallback Option = "nofallback"
)

var knownOptions = map[Option]struct{}{
	Strict:     {},
	NoFallback: {},
}

// Directive is one //matchall comment and the statement it is attached to.
type Directive struct {
	Comment *ast.Comment
	Pos     token.Position
	Options map[Option]bool
	// Stmt is the statement the comment applies to. It is nil when no
	// statement starts on the comment line or the line below it.
	Stmt ast.Stmt
	// Err is set when the comment itself is malformed.
	Err error
}

func (d *Directive) Has(opt Option) bool {
	return d.Options[opt]
}

// Set holds every directive of a single file.
type Set struct {
	list   []*Directive
	byStmt map[ast.Stmt]*Directive
}

// Parse collects the matchall directives in f.
func Parse(f *ast.File, fset *token.FileSet) *Set {
	set := &Set{byStmt: make(map[ast.Stmt]*Directive)}
	stmtMap := indexStatementsByLine(f, fset)

	for _, cg := range f.Comments {
		for _, comment := range cg.List {
			if !IsDirective(comment.Text) {
				continue
			}
			d := &Directive{
				Comment: comment,
				Pos:     fset.Position(comment.Slash),
			}
			d.Options, d.Err = parseOptions(comment.Text)
			d.Stmt = attachedStatement(fset, comment, stmtMap)
			set.list = append(set.list, d)
			if d.Stmt != nil {
				if _, dup := set.byStmt[d.Stmt]; !dup {
					set.byStmt[d.Stmt] = d
				}
			}
		}
	}

	sort.Slice(set.list, func(i, j int) bool {
		return set.list[i].Pos.Offset < set.list[j].Pos.Offset
	})
	return set
}

// IsDirective reports whether a raw comment text is a matchall directive.
// The marker must start the comment with no space, like //go: directives.
func IsDirective(text string) bool {
	if !strings.HasPrefix(text, Prefix) {
		return false
	}
	rest := text[len(Prefix):]
	return rest == "" || rest[0] == ':' || rest[0] == ' ' || rest[0] == '\t'
}

func parseOptions(text string) (map[Option]bool, error) {
	opts := make(map[Option]bool)
	rest := strings.TrimSpace(text[len(Prefix):])
	if rest == "" {
		return opts, nil
	}
	if rest[0] != ':' {
		// anything after a space is free-form commentary
		return opts, nil
	}

	rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return opts, fmt.Errorf("no options specified after colon")
	}

	for _, name := range strings.Split(rest, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		opt := Option(name)
		if _, ok := knownOptions[opt]; !ok {
			return opts, fmt.Errorf("unknown option %q", name)
		}
		opts[opt] = true
	}
	return opts, nil
}

// attachedStatement finds the statement a directive refers to: the
// statement on the same line for inline comments, otherwise the one on
// the following line.
func attachedStatement(fset *token.FileSet, comment *ast.Comment, stmtMap map[int]ast.Stmt) ast.Stmt {
	pos := fset.Position(comment.Slash)
	if stmt, ok := stmtMap[pos.Line]; ok {
		if fset.Position(stmt.Pos()).Offset < pos.Offset {
			return stmt
		}
	}
	if stmt, ok := stmtMap[pos.Line+1]; ok {
		return stmt
	}
	return nil
}

// indexStatementsByLine maps each line to the outermost statement starting on it.
func indexStatementsByLine(f *ast.File, fset *token.FileSet) map[int]ast.Stmt {
	stmtMap := make(map[int]ast.Stmt)
	ast.Inspect(f, func(n ast.Node) bool {
		if n == nil {
			return false
		}
		if stmt, ok := n.(ast.Stmt); ok {
			line := fset.Position(stmt.Pos()).Line
			if _, exists := stmtMap[line]; !exists {
				stmtMap[line] = stmt
			}
		}
		return true
	})
	return stmtMap
}

// All returns the directives in source order.
func (s *Set) All() []*Directive {
	return s.list
}

// For returns the directive attached to stmt.
func (s *Set) For(stmt ast.Stmt) (*Directive, bool) {
	d, ok := s.byStmt[stmt]
	return d, ok
}

func (s *Set) Len() int {
	return len(s.list)
}

// StripComments removes every directive comment from f so that the
// generated file does not carry them.
func (s *Set) StripComments(f *ast.File) {
	if len(s.list) == 0 {
		return
	}
	drop := make(map[*ast.Comment]struct{}, len(s.list))
	for _, d := range s.list {
		drop[d.Comment] = struct{}{}
	}

	groups := f.Comments[:0]
	for _, cg := range f.Comments {
		kept := cg.List[:0]
		for _, c := range cg.List {
			if _, ok := drop[c]; !ok {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			continue
		}
		cg.List = kept
		groups = append(groups, cg)
	}
	f.Comments = groups
}
