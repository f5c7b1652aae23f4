package rewrite

import (
	"fmt"
	"go/ast"
	"go/token"

	tt "github.com/gnolang/matchall/internal/types"
)

const (
	RuleNoGroups           = "no-groups"
	RuleMultipleFallbacks  = "multiple-fallbacks"
	RuleBreakInGroup       = "break-in-group"
	RuleFallthroughInGroup = "fallthrough-in-group"
	RuleLabeledSwitch      = "labeled-switch"
	RuleMissingFallback    = "missing-fallback"
	RuleDuplicatePattern   = "duplicate-pattern"
	RuleOrphanDirective    = "orphan-directive"
	RuleInvalidDirective   = "invalid-directive"
	RuleMissingBuildTag    = "missing-build-tag"
)

// DefaultSeverity lists every rule with the severity it is reported at
// when no configuration overrides it.
var DefaultSeverity = map[string]tt.Severity{
	RuleNoGroups:           tt.SeverityError,
	RuleMultipleFallbacks:  tt.SeverityError,
	RuleBreakInGroup:       tt.SeverityError,
	RuleFallthroughInGroup: tt.SeverityError,
	RuleLabeledSwitch:      tt.SeverityError,
	RuleMissingFallback:    tt.SeverityWarning,
	RuleDuplicatePattern:   tt.SeverityWarning,
	RuleOrphanDirective:    tt.SeverityWarning,
	RuleInvalidDirective:   tt.SeverityError,
	RuleMissingBuildTag:    tt.SeverityWarning,
}

// Diagnostic is a construction-time problem with a marked switch.
type Diagnostic struct {
	Rule       string
	Severity   tt.Severity
	Pos        token.Pos
	End        token.Pos
	Message    string
	Suggestion string
	Note       string
}

// Issue converts the diagnostic to a positioned issue.
func (d Diagnostic) Issue(fset *token.FileSet, filename string) tt.Issue {
	start := fset.Position(d.Pos)
	end := fset.Position(d.End)
	if filename == "" {
		filename = start.Filename
	}
	return tt.Issue{
		Rule:       d.Rule,
		Category:   "matchall",
		Filename:   filename,
		Message:    d.Message,
		Suggestion: d.Suggestion,
		Note:       d.Note,
		Start:      start,
		End:        end,
		Severity:   d.Severity,
	}
}

// CheckOptions controls the fallback rules for a single construct.
type CheckOptions struct {
	// RequireFallback makes a missing default clause an error.
	RequireFallback bool
	// AllowNoFallback silences the value-producing missing-fallback warning.
	AllowNoFallback bool
}

// Check reports every construction-time problem with c. The construct may
// only be expanded when none of the returned diagnostics is an error.
func Check(c *Construct, opts CheckOptions) []Diagnostic {
	var diags []Diagnostic
	report := func(rule string, node ast.Node, format string, args ...any) *Diagnostic {
		diags = append(diags, Diagnostic{
			Rule:     rule,
			Severity: DefaultSeverity[rule],
			Pos:      node.Pos(),
			End:      node.End(),
			Message:  fmt.Sprintf(format, args...),
		})
		return &diags[len(diags)-1]
	}

	if c.Label != nil {
		report(RuleLabeledSwitch, c.Label, "matchall switch cannot be labeled: %s", c.Label.Name)
	}

	if len(c.Groups) == 0 {
		report(RuleNoGroups, c.Stmt, "matchall %s has no case groups", c.Kind)
	}

	for _, extra := range c.Fallbacks[min(1, len(c.Fallbacks)):] {
		report(RuleMultipleFallbacks, extra, "multiple default clauses in matchall switch")
	}

	for _, g := range c.Groups {
		checkDuplicatePatterns(g, report)
		checkBranches(g.Body(), "case group", report)
	}
	for _, fb := range c.Fallbacks {
		checkBranches(fb.Body, "default clause", report)
	}

	if c.Fallback() == nil {
		switch target, ok := valueTarget(c.Groups); {
		case opts.RequireFallback:
			d := report(RuleMissingFallback, c.Stmt, "matchall switch requires a default clause")
			d.Severity = tt.SeverityError
			d.Suggestion = "default:\n\t// runs only when no case group matched"
		case ok && !opts.AllowNoFallback:
			d := report(RuleMissingFallback, c.Stmt,
				"every case group assigns %s but there is no default clause; %s keeps its previous value when nothing matches", target, target)
			d.Note = "add a default clause, or mark the switch //matchall:nofallback if this is intended"
		}
	}

	return diags
}

func checkDuplicatePatterns(g *Group, report func(string, ast.Node, string, ...any) *Diagnostic) {
	seen := make(map[string]struct{}, len(g.Patterns))
	for _, p := range g.Patterns {
		key := exprKey(ast.Unparen(p))
		if _, dup := seen[key]; dup {
			report(RuleDuplicatePattern, p, "pattern %s appears more than once in the same case group", key)
			continue
		}
		seen[key] = struct{}{}
	}
}

// checkBranches flags break and fallthrough statements that would bind to
// the marked switch. Once the switch is expanded those statements would
// silently bind to something else.
func checkBranches(body []ast.Stmt, where string, report func(string, ast.Node, string, ...any) *Diagnostic) {
	for _, stmt := range body {
		ast.Inspect(stmt, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.ForStmt, *ast.RangeStmt, *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt, *ast.FuncLit:
				return false
			case *ast.BranchStmt:
				switch {
				case n.Tok == token.BREAK && n.Label == nil:
					d := report(RuleBreakInGroup, n, "unlabeled break inside a matchall %s", where)
					d.Note = "every case group runs independently; break would no longer leave the switch"
				case n.Tok == token.FALLTHROUGH:
					report(RuleFallthroughInGroup, n, "fallthrough is not allowed in a matchall %s", where)
				}
			}
			return true
		})
	}
}

// mentions reports whether any sub-expression of exprs has the source
// text target.
func mentions(exprs []ast.Expr, target string) bool {
	found := false
	for _, e := range exprs {
		ast.Inspect(e, func(n ast.Node) bool {
			if x, ok := n.(ast.Expr); ok && !found && exprKey(x) == target {
				found = true
			}
			return !found
		})
	}
	return found
}

// valueTarget reports the common assignment target when every group ends
// by assigning the same single expression, which is how a switch is used
// to produce a value.
func valueTarget(groups []*Group) (string, bool) {
	if len(groups) == 0 {
		return "", false
	}
	var target string
	for i, g := range groups {
		body := g.Body()
		if len(body) == 0 {
			return "", false
		}
		assign, ok := body[len(body)-1].(*ast.AssignStmt)
		if !ok || assign.Tok != token.ASSIGN || len(assign.Lhs) != 1 {
			return "", false
		}
		lhs := exprKey(assign.Lhs[0])
		// out = append(out, x) accumulates rather than produces a value
		if lhs == "_" || mentions(assign.Rhs, lhs) {
			return "", false
		}
		if i == 0 {
			target = lhs
		} else if lhs != target {
			return "", false
		}
	}
	return target, true
}
