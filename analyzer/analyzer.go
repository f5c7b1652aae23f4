// Package analyzer reports problems with //matchall switches as a
// go/analysis pass, so they show up in go vet and editors.
package analyzer

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"

	"github.com/gnolang/matchall/internal/directive"
	"github.com/gnolang/matchall/internal/rewrite"
)

const Name = "matchall"

var Analyzer = &analysis.Analyzer{
	Name: Name,
	Doc:  "checks switch statements marked //matchall for constructs that cannot be expanded",
	Run:  run,
}

var requireFallback bool

func init() {
	Analyzer.Flags.BoolVar(&requireFallback, "require-fallback", false,
		"report every marked switch without a default clause as an error")
}

func run(pass *analysis.Pass) (any, error) {
	opts := rewrite.Options{RequireFallback: requireFallback}
	for _, file := range pass.Files {
		// generated files are already expanded
		if ast.IsGenerated(file) {
			continue
		}
		set := directive.Parse(file, pass.Fset)
		if set.Len() == 0 {
			continue
		}
		plan := rewrite.Analyze(file, set, opts)
		for _, d := range plan.Diagnostics {
			pass.Report(analysis.Diagnostic{
				Pos:      d.Pos,
				End:      d.End,
				Category: d.Rule,
				Message:  d.Message,
			})
		}
	}
	return nil, nil
}
