package rewrite

import (
	"fmt"
	"go/ast"
	"go/build/constraint"
	"path/filepath"
	"strings"
)

const DefaultBuildTag = "matchall"

// BuildConstraint returns the //go:build expression of f, or nil if the
// file has none.
func BuildConstraint(f *ast.File) (constraint.Expr, error) {
	for _, c := range headerComments(f) {
		if !constraint.IsGoBuild(c.Text) {
			continue
		}
		expr, err := constraint.Parse(c.Text)
		if err != nil {
			return nil, fmt.Errorf("invalid build constraint %q: %w", c.Text, err)
		}
		return expr, nil
	}
	return nil, nil
}

// IsTemplate reports whether expr needs tag to hold, which is what keeps
// the un-expanded switch out of normal builds. Other tags are tried all
// set and all unset.
func IsTemplate(expr constraint.Expr, tag string) bool {
	if expr == nil {
		return false
	}
	holds := false
	for _, others := range []bool{true, false} {
		if expr.Eval(func(t string) bool { return t != tag && others }) {
			return false
		}
		if expr.Eval(func(t string) bool { return t == tag || others }) {
			holds = true
		}
	}
	return holds
}

// NegateTag replaces every occurrence of tag with !tag, keeping the rest
// of the expression. The generated file then builds exactly when the
// template does not.
func NegateTag(expr constraint.Expr, tag string) constraint.Expr {
	switch e := expr.(type) {
	case *constraint.TagExpr:
		if e.Tag == tag {
			return &constraint.NotExpr{X: e}
		}
		return e
	case *constraint.NotExpr:
		if t, ok := e.X.(*constraint.TagExpr); ok && t.Tag == tag {
			return t
		}
		return &constraint.NotExpr{X: NegateTag(e.X, tag)}
	case *constraint.AndExpr:
		return &constraint.AndExpr{X: NegateTag(e.X, tag), Y: NegateTag(e.Y, tag)}
	case *constraint.OrExpr:
		return &constraint.OrExpr{X: NegateTag(e.X, tag), Y: NegateTag(e.Y, tag)}
	}
	return expr
}

// StripBuildConstraints drops //go:build and // +build lines from f.
func StripBuildConstraints(f *ast.File) {
	header := make(map[*ast.Comment]struct{})
	for _, c := range headerComments(f) {
		if constraint.IsGoBuild(c.Text) || constraint.IsPlusBuild(c.Text) {
			header[c] = struct{}{}
		}
	}
	if len(header) == 0 {
		return
	}

	groups := f.Comments[:0]
	for _, cg := range f.Comments {
		kept := cg.List[:0]
		for _, c := range cg.List {
			if _, drop := header[c]; !drop {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			cg.List = kept
			groups = append(groups, cg)
		}
	}
	f.Comments = groups
}

// headerComments lists the comments placed before the package clause.
func headerComments(f *ast.File) []*ast.Comment {
	var out []*ast.Comment
	for _, cg := range f.Comments {
		if cg.Pos() >= f.Package {
			break
		}
		out = append(out, cg.List...)
	}
	return out
}

// OutputName derives the generated file name from a template path, keeping
// _test.go files recognisable as tests.
func OutputName(path, suffix string) string {
	if suffix == "" {
		suffix = "_" + DefaultBuildTag
	}
	dir, base := filepath.Split(path)
	if strings.HasSuffix(base, "_test.go") {
		return dir + strings.TrimSuffix(base, "_test.go") + suffix + "_test.go"
	}
	return dir + strings.TrimSuffix(base, ".go") + suffix + ".go"
}

// Header is the first line of every generated file. It matches the
// pattern recognised by ast.IsGenerated and go vet.
func Header(source string) string {
	return fmt.Sprintf("// Code generated by matchall from %s. DO NOT EDIT.\n", filepath.Base(source))
}
