// Package rewrite expands switch statements marked with a //matchall
// directive into non-exclusive dispatch.
//
// A marked switch keeps Go's own case syntax, but instead of running the
// first matching clause it runs every clause whose patterns match, in
// source order. The default clause runs only when no clause matched.
// Expansion produces one single-clause switch per case group, all reading
// the same once-evaluated scrutinee, so the Go compiler keeps doing the
// actual pattern matching and type checking.
package rewrite

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/matchall/internal/directive"
	tt "github.com/gnolang/matchall/internal/types"
)

// Options configures the analysis of one file.
type Options struct {
	RequireFallback bool
	// Severity overrides DefaultSeverity per rule. SeverityOff drops the rule.
	Severity map[string]tt.Severity
}

func (o Options) severity(d Diagnostic) tt.Severity {
	if s, ok := o.Severity[d.Rule]; ok {
		// an explicit strict requirement is never downgraded to a warning
		if d.Rule == RuleMissingFallback && d.Severity == tt.SeverityError && s != tt.SeverityOff {
			return tt.SeverityError
		}
		return s
	}
	return d.Severity
}

// unexpandable lists the rules whose constructs are never expanded, even
// when the rule is turned off, because the result would not compile.
var unexpandable = map[string]bool{
	RuleFallthroughInGroup: true,
	RuleLabeledSwitch:      true,
}

// Plan is the result of analysing a file: every valid construct and the
// diagnostics collected along the way.
type Plan struct {
	File        *ast.File
	Directives  *directive.Set
	Constructs  map[ast.Stmt]*Construct
	Diagnostics []Diagnostic
}

// Analyze locates and checks every marked switch in f without modifying it.
func Analyze(f *ast.File, set *directive.Set, opts Options) *Plan {
	plan := &Plan{
		File:       f,
		Directives: set,
		Constructs: make(map[ast.Stmt]*Construct),
	}

	for _, d := range set.All() {
		if d.Err != nil {
			plan.add(opts, Diagnostic{
				Rule:     RuleInvalidDirective,
				Severity: DefaultSeverity[RuleInvalidDirective],
				Pos:      d.Comment.Pos(),
				End:      d.Comment.End(),
				Message:  "invalid matchall directive: " + d.Err.Error(),
			})
			continue
		}
		if owner, _ := set.For(d.Stmt); d.Stmt == nil || owner != d {
			plan.add(opts, orphan(d))
			continue
		}

		c, err := Extract(d.Stmt)
		if err != nil {
			plan.add(opts, orphan(d))
			continue
		}

		diags := Check(c, CheckOptions{
			RequireFallback: opts.RequireFallback || d.Has(directive.Strict),
			AllowNoFallback: d.Has(directive.NoFallback),
		})
		blocked := false
		for _, diag := range diags {
			if plan.add(opts, diag) == tt.SeverityError || unexpandable[diag.Rule] {
				blocked = true
			}
		}
		if !blocked {
			plan.Constructs[d.Stmt] = c
		}
	}
	return plan
}

func orphan(d *directive.Directive) Diagnostic {
	return Diagnostic{
		Rule:     RuleOrphanDirective,
		Severity: DefaultSeverity[RuleOrphanDirective],
		Pos:      d.Comment.Pos(),
		End:      d.Comment.End(),
		Message:  "matchall directive is not attached to a switch statement",
	}
}

func (p *Plan) add(opts Options, d Diagnostic) tt.Severity {
	d.Severity = opts.severity(d)
	if d.Severity == tt.SeverityOff {
		return d.Severity
	}
	p.Diagnostics = append(p.Diagnostics, d)
	return d.Severity
}

// HasErrors reports whether any diagnostic blocks generation.
func (p *Plan) HasErrors() bool {
	for _, d := range p.Diagnostics {
		if d.Severity == tt.SeverityError {
			return true
		}
	}
	return false
}

// Issues converts the diagnostics to positioned issues.
func (p *Plan) Issues(fset *token.FileSet, filename string) []tt.Issue {
	issues := make([]tt.Issue, 0, len(p.Diagnostics))
	for _, d := range p.Diagnostics {
		issues = append(issues, d.Issue(fset, filename))
	}
	return issues
}

// Apply expands every planned construct in place and removes the
// directive comments. Nested constructs are expanded before the switch
// that contains them. It returns the number of expanded constructs.
func (p *Plan) Apply() int {
	if len(p.Constructs) == 0 {
		p.Directives.StripComments(p.File)
		return 0
	}

	names := NewNamer(p.File)
	expanded := 0
	astutil.Apply(p.File, nil, func(cur *astutil.Cursor) bool {
		stmt, ok := cur.Node().(ast.Stmt)
		if !ok {
			return true
		}
		c, ok := p.Constructs[stmt]
		if !ok {
			return true
		}
		cur.Replace(Expand(c, names))
		expanded++
		return true
	})

	p.Directives.StripComments(p.File)
	return expanded
}
