package rewrite

import (
	"errors"
	"go/ast"
)

// Kind is the flavour of switch a construct was written as.
type Kind int

const (
	// ExprSwitch compares a tag value against each pattern: switch v { case 1: }
	ExprSwitch Kind = iota
	// TaglessSwitch treats every pattern as a boolean condition: switch { case x > 1: }
	TaglessSwitch
	// TypeSwitch matches the dynamic type of an interface value: switch x := v.(type) { case int: }
	TypeSwitch
)

func (k Kind) String() string {
	switch k {
	case ExprSwitch:
		return "expression switch"
	case TaglessSwitch:
		return "tagless switch"
	case TypeSwitch:
		return "type switch"
	}
	return "unknown"
}

var ErrNotSwitch = errors.New("matchall directive must precede a switch statement")

// Group is one case clause: a non-empty list of alternative patterns
// sharing a body.
type Group struct {
	Clause   *ast.CaseClause
	Patterns []ast.Expr
}

// Body returns the clause body. It is read from the clause each time so
// that nested constructs already expanded in place are picked up.
func (g *Group) Body() []ast.Stmt {
	return g.Clause.Body
}

// Construct is the model of one marked switch: the scrutinee, its pattern
// groups in declaration order and the optional fallback clause.
type Construct struct {
	Kind Kind
	// Stmt is the statement carrying the directive, either the switch
	// itself or a labeled statement wrapping it.
	Stmt  ast.Stmt
	Label *ast.Ident
	Init  ast.Stmt
	// Scrutinee is nil for tagless switches.
	Scrutinee ast.Expr
	// Binding is the type switch clause variable, if any.
	Binding   *ast.Ident
	Groups    []*Group
	Fallbacks []*ast.CaseClause
}

// Fallback returns the default clause, or nil when the switch has none.
func (c *Construct) Fallback() *ast.CaseClause {
	if len(c.Fallbacks) == 0 {
		return nil
	}
	return c.Fallbacks[0]
}

// Extract builds the construct model from a switch statement.
func Extract(stmt ast.Stmt) (*Construct, error) {
	c := &Construct{Stmt: stmt}

	inner := stmt
	if labeled, ok := stmt.(*ast.LabeledStmt); ok {
		c.Label = labeled.Label
		inner = labeled.Stmt
	}

	var body *ast.BlockStmt
	switch sw := inner.(type) {
	case *ast.SwitchStmt:
		c.Init = sw.Init
		c.Scrutinee = sw.Tag
		c.Kind = ExprSwitch
		if sw.Tag == nil {
			c.Kind = TaglessSwitch
		}
		body = sw.Body
	case *ast.TypeSwitchStmt:
		c.Kind = TypeSwitch
		c.Init = sw.Init
		assert, binding, err := typeSwitchGuard(sw.Assign)
		if err != nil {
			return nil, err
		}
		c.Scrutinee = assert.X
		c.Binding = binding
		body = sw.Body
	default:
		return nil, ErrNotSwitch
	}

	for _, s := range body.List {
		clause, ok := s.(*ast.CaseClause)
		if !ok {
			continue
		}
		if clause.List == nil {
			c.Fallbacks = append(c.Fallbacks, clause)
			continue
		}
		c.Groups = append(c.Groups, &Group{Clause: clause, Patterns: clause.List})
	}
	return c, nil
}

// typeSwitchGuard unpacks `x := v.(type)` or `v.(type)`.
func typeSwitchGuard(assign ast.Stmt) (*ast.TypeAssertExpr, *ast.Ident, error) {
	switch a := assign.(type) {
	case *ast.AssignStmt:
		if len(a.Lhs) != 1 || len(a.Rhs) != 1 {
			break
		}
		assert, ok := a.Rhs[0].(*ast.TypeAssertExpr)
		if !ok {
			break
		}
		ident, _ := a.Lhs[0].(*ast.Ident)
		if ident != nil && ident.Name == "_" {
			ident = nil
		}
		return assert, ident, nil
	case *ast.ExprStmt:
		if assert, ok := a.X.(*ast.TypeAssertExpr); ok {
			return assert, nil, nil
		}
	}
	return nil, nil, errors.New("malformed type switch guard")
}
