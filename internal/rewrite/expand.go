package rewrite

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"go/types"
)

const (
	valueBase   = "mallValue"
	matchedBase = "mallMatched"
)

// Expand turns a construct into a block of independent guarded switches,
// one per case group, sharing a single evaluation of the scrutinee:
//
//	{
//		init
//		mallValue1 := scrutinee
//		mallMatched1 := false
//		switch mallValue1 { case p1, p2: mallMatched1 = true; body1 }
//		switch mallValue1 { case p3: mallMatched1 = true; body2 }
//		if !mallMatched1 { fallback }
//	}
//
// The matched flag only exists when there is a fallback clause.
func Expand(c *Construct, names *Namer) *ast.BlockStmt {
	reserved := names.Reserve(valueBase, matchedBase)
	valueName, matchedName := reserved[0], reserved[1]
	// generated statements borrow the positions of the clauses they come
	// from, so the printer keeps comments next to their groups
	head := c.Stmt.Pos()
	if c.Scrutinee != nil {
		head = c.Scrutinee.Pos()
	}

	var list []ast.Stmt
	if c.Init != nil {
		list = append(list, c.Init)
	}

	subject := func(pos token.Pos) ast.Expr {
		if lit, ok := c.Scrutinee.(*ast.BasicLit); ok {
			return &ast.BasicLit{ValuePos: pos, Kind: lit.Kind, Value: lit.Value}
		}
		return c.Scrutinee
	}
	if c.Kind != TaglessSwitch && needsBinding(c.Scrutinee) {
		if len(c.Groups) == 0 {
			// still evaluate the scrutinee once for its side effects
			list = append(list, &ast.AssignStmt{
				Lhs:    []ast.Expr{identAt("_", head)},
				TokPos: head,
				Tok:    token.ASSIGN,
				Rhs:    []ast.Expr{c.Scrutinee},
			})
		} else {
			list = append(list, define(valueName, c.Scrutinee, head))
			subject = func(pos token.Pos) ast.Expr { return identAt(valueName, pos) }
		}
	}

	fallback := c.Fallback()
	if fallback != nil {
		list = append(list, define(matchedName, identAt("false", head), head))
	}

	for _, g := range c.Groups {
		body := make([]ast.Stmt, 0, len(g.Body())+1)
		if fallback != nil {
			colon := g.Clause.Colon
			body = append(body, &ast.AssignStmt{
				Lhs:    []ast.Expr{identAt(matchedName, colon)},
				TokPos: colon,
				Tok:    token.ASSIGN,
				Rhs:    []ast.Expr{identAt("true", colon)},
			})
		}
		body = append(body, g.Body()...)
		clause := &ast.CaseClause{
			Case:  g.Clause.Case,
			List:  uniquePatterns(c.Kind, g.Patterns),
			Colon: g.Clause.Colon,
			Body:  body,
		}
		list = append(list, expandGroup(c, clause, subject))
	}

	if fallback != nil {
		body := fallback.Body
		if c.Kind == TypeSwitch && c.Binding != nil && refersTo(body, c.Binding.Name) {
			rebind := define(c.Binding.Name, subject(fallback.Colon), fallback.Colon)
			body = append([]ast.Stmt{rebind}, body...)
		}
		list = append(list, &ast.IfStmt{
			If:   fallback.Case,
			Cond: &ast.UnaryExpr{OpPos: fallback.Case, Op: token.NOT, X: identAt(matchedName, fallback.Case)},
			Body: &ast.BlockStmt{Lbrace: fallback.Colon, List: body, Rbrace: clauseEnd(fallback)},
		})
	}

	return &ast.BlockStmt{
		Lbrace: c.Stmt.Pos(),
		List:   list,
		Rbrace: c.Stmt.End() - 1,
	}
}

// expandGroup wraps one case clause in its own single-clause switch, so
// that the native switch still does the pattern matching.
func expandGroup(c *Construct, clause *ast.CaseClause, subject func(token.Pos) ast.Expr) ast.Stmt {
	at := clause.Case
	body := &ast.BlockStmt{Lbrace: at, List: []ast.Stmt{clause}, Rbrace: clauseEnd(clause)}

	if c.Kind != TypeSwitch {
		sw := &ast.SwitchStmt{Switch: at, Body: body}
		if c.Kind == ExprSwitch {
			sw.Tag = subject(at)
		}
		return sw
	}

	assert := &ast.TypeAssertExpr{X: subject(at), Lparen: at, Rparen: at}
	var guard ast.Stmt = &ast.ExprStmt{X: assert}
	// a clause variable nobody reads would not compile
	if c.Binding != nil && refersTo(clause.Body, c.Binding.Name) {
		guard = define(c.Binding.Name, assert, at)
	}
	return &ast.TypeSwitchStmt{Switch: at, Assign: guard, Body: body}
}

// clauseEnd is the position of the last character of a clause.
func clauseEnd(clause *ast.CaseClause) token.Pos {
	if n := len(clause.Body); n > 0 {
		return clause.Body[n-1].End()
	}
	return clause.Colon
}

// uniquePatterns drops repeated patterns of a group that the compiler
// would reject as duplicate cases: types in a type switch, constant
// shaped expressions otherwise. Anything that may have side effects is
// kept, since each occurrence is evaluated.
func uniquePatterns(kind Kind, patterns []ast.Expr) []ast.Expr {
	seen := make(map[string]struct{}, len(patterns))
	unique := make([]ast.Expr, 0, len(patterns))
	for _, p := range patterns {
		if kind != TypeSwitch && !isConstShaped(p) {
			unique = append(unique, p)
			continue
		}
		key := exprKey(ast.Unparen(p))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, p)
	}
	return unique
}

// exprKey is the full source text of an expression.
func exprKey(expr ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), expr); err != nil {
		return types.ExprString(expr)
	}
	return buf.String()
}

// isConstShaped reports whether expr is built only from literals, names
// and operators, so that repeating it can neither change behaviour nor be
// accepted by the compiler when it denotes a constant.
func isConstShaped(expr ast.Expr) bool {
	switch e := expr.(type) {
	case *ast.BasicLit, *ast.Ident:
		return true
	case *ast.SelectorExpr:
		_, ok := e.X.(*ast.Ident)
		return ok
	case *ast.ParenExpr:
		return isConstShaped(e.X)
	case *ast.UnaryExpr:
		return e.Op != token.ARROW && isConstShaped(e.X)
	case *ast.BinaryExpr:
		return isConstShaped(e.X) && isConstShaped(e.Y)
	}
	return false
}

// needsBinding reports whether the scrutinee must be stored in a variable
// to be evaluated only once. Literals can be repeated freely.
func needsBinding(expr ast.Expr) bool {
	switch e := expr.(type) {
	case nil:
		return false
	case *ast.BasicLit:
		return false
	case *ast.ParenExpr:
		return needsBinding(e.X)
	}
	return true
}

func define(name string, value ast.Expr, pos token.Pos) *ast.AssignStmt {
	return &ast.AssignStmt{
		Lhs:    []ast.Expr{identAt(name, pos)},
		TokPos: pos,
		Tok:    token.DEFINE,
		Rhs:    []ast.Expr{value},
	}
}

func identAt(name string, pos token.Pos) *ast.Ident {
	return &ast.Ident{Name: name, NamePos: pos}
}

// refersTo reports whether any statement mentions an identifier called
// name outside of a selector.
func refersTo(stmts []ast.Stmt, name string) bool {
	found := false
	var visit func(ast.Node) bool
	visit = func(n ast.Node) bool {
		if found {
			return false
		}
		switch n := n.(type) {
		case *ast.SelectorExpr:
			ast.Inspect(n.X, visit)
			return false
		case *ast.Ident:
			if n.Name == name {
				found = true
			}
		}
		return !found
	}
	for _, stmt := range stmts {
		ast.Inspect(stmt, visit)
		if found {
			return true
		}
	}
	return false
}
