package tsfront

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"cinstr/pkg/csource"
)

// block converts a compound statement. Function bodies share the parameter
// scope, so they pass newScope=false.
func (cv *converter) block(n *sitter.Node, newScope bool) (*csource.BlockStmt, error) {
	if n == nil {
		return nil, &csource.ParseError{File: cv.file.Name, Msg: "missing compound statement"}
	}
	if n.Type() != "compound_statement" {
		return nil, cv.errorAt(n, "expected a compound statement, got %s", n.Type())
	}
	b := &csource.BlockStmt{
		LBrace: cv.loc(n.Child(0)),
		RBrace: cv.loc(n.Child(int(n.ChildCount()) - 1)),
	}
	if newScope {
		cv.syms.EnterScope()
		defer cv.syms.ExitScope()
	}
	stmts, err := cv.statements(named(n))
	if err != nil {
		return nil, err
	}
	b.Stmts = stmts
	return b, nil
}

func (cv *converter) statements(nodes []*sitter.Node) ([]csource.Stmt, error) {
	var out []csource.Stmt
	for _, n := range nodes {
		ss, err := cv.stmt(n)
		if err != nil {
			return nil, err
		}
		out = append(out, ss...)
	}
	return out, nil
}

// one converts a node that must yield exactly one statement.
func (cv *converter) one(n *sitter.Node) (csource.Stmt, error) {
	if n == nil {
		return nil, nil
	}
	ss, err := cv.stmt(n)
	if err != nil {
		return nil, err
	}
	switch len(ss) {
	case 0:
		return &csource.EmptyStmt{}, nil
	case 1:
		return ss[0], nil
	}
	return &csource.BlockStmt{Stmts: ss}, nil
}

// condition unwraps the parenthesized expression of an if, switch or while.
func (cv *converter) condition(n *sitter.Node) (csource.Expr, error) {
	inner := named(n)
	if n.Type() != "parenthesized_expression" || len(inner) != 1 {
		return nil, cv.errorAt(n, "expected a parenthesized condition")
	}
	return cv.expr(inner[0])
}

// stmt converts one statement node. A case label carries only its first
// statement; the ones after it become siblings, as in the native parser.
func (cv *converter) stmt(n *sitter.Node) ([]csource.Stmt, error) {
	switch n.Type() {
	case "compound_statement":
		b, err := cv.block(n, true)
		if err != nil {
			return nil, err
		}
		return []csource.Stmt{b}, nil

	case "declaration", "type_definition":
		var (
			decls []csource.Decl
			err   error
		)
		if n.Type() == "declaration" {
			decls, err = cv.declaration(n)
		} else {
			decls, err = cv.typedef(n)
		}
		if err != nil {
			return nil, err
		}
		return []csource.Stmt{&csource.DeclStmt{Decls: decls}}, nil

	case "expression_statement":
		inner := named(n)
		if len(inner) == 0 {
			return []csource.Stmt{&csource.EmptyStmt{}}, nil
		}
		if inner[0].Type() == "gnu_asm_expression" {
			return []csource.Stmt{&csource.AsmStmt{Text: cv.text(inner[0])}}, nil
		}
		e, err := cv.expr(inner[0])
		if err != nil {
			return nil, err
		}
		return []csource.Stmt{&csource.ExprStmt{Expr: e}}, nil

	case "if_statement":
		s, err := cv.ifStmt(n)
		if err != nil {
			return nil, err
		}
		return []csource.Stmt{s}, nil

	case "switch_statement":
		cond := n.ChildByFieldName("condition")
		target, err := cv.condition(cond)
		if err != nil {
			return nil, err
		}
		body, err := cv.one(n.ChildByFieldName("body"))
		if err != nil {
			return nil, err
		}
		return []csource.Stmt{&csource.SwitchStmt{
			Switch: cv.loc(n.Child(0)),
			LParen: cv.loc(cond.Child(0)),
			RParen: cv.loc(cond.Child(int(cond.ChildCount()) - 1)),
			Target: target,
			Body:   body,
		}}, nil

	case "case_statement":
		return cv.caseStmt(n)

	case "while_statement":
		cond, err := cv.condition(n.ChildByFieldName("condition"))
		if err != nil {
			return nil, err
		}
		body, err := cv.one(n.ChildByFieldName("body"))
		if err != nil {
			return nil, err
		}
		return []csource.Stmt{&csource.WhileStmt{Condition: cond, Body: body}}, nil

	case "do_statement":
		body, err := cv.one(n.ChildByFieldName("body"))
		if err != nil {
			return nil, err
		}
		cond, err := cv.condition(n.ChildByFieldName("condition"))
		if err != nil {
			return nil, err
		}
		return []csource.Stmt{&csource.DoStmt{Body: body, Condition: cond}}, nil

	case "for_statement":
		s, err := cv.forStmt(n)
		if err != nil {
			return nil, err
		}
		return []csource.Stmt{s}, nil

	case "return_statement":
		r := &csource.ReturnStmt{}
		if inner := named(n); len(inner) > 0 {
			e, err := cv.expr(inner[0])
			if err != nil {
				return nil, err
			}
			r.Expr = e
		}
		return []csource.Stmt{r}, nil

	case "break_statement":
		return []csource.Stmt{&csource.BreakStmt{}}, nil
	case "continue_statement":
		return []csource.Stmt{&csource.ContinueStmt{}}, nil
	case "goto_statement":
		return []csource.Stmt{&csource.GotoStmt{Label: cv.text(n.ChildByFieldName("label"))}}, nil

	case "labeled_statement":
		inner := named(n)
		body, err := cv.one(inner[len(inner)-1])
		if err != nil {
			return nil, err
		}
		return []csource.Stmt{&csource.LabelStmt{Label: cv.text(n.ChildByFieldName("label")), Body: body}}, nil

	case "attributed_statement":
		inner := named(n)
		return cv.stmt(inner[len(inner)-1])

	case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_elifdef":
		var body []*sitter.Node
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			field := n.FieldNameForChild(i)
			if !child.IsNamed() || field == "name" || field == "condition" || child.Type() == "comment" {
				continue
			}
			body = append(body, child)
		}
		return cv.statements(body)

	case "preproc_def", "preproc_function_def", "preproc_call", "preproc_include":
		return nil, nil
	}
	return nil, cv.unsupported(n, "statement")
}

func (cv *converter) ifStmt(n *sitter.Node) (*csource.IfStmt, error) {
	cond := n.ChildByFieldName("condition")
	test, err := cv.condition(cond)
	if err != nil {
		return nil, err
	}
	body, err := cv.one(n.ChildByFieldName("consequence"))
	if err != nil {
		return nil, err
	}
	s := &csource.IfStmt{
		If:        cv.loc(n.Child(0)),
		LParen:    cv.loc(cond.Child(0)),
		RParen:    cv.loc(cond.Child(int(cond.ChildCount()) - 1)),
		Condition: test,
		Body:      body,
	}
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		if alt.Type() == "else_clause" {
			inner := named(alt)
			alt = inner[len(inner)-1]
		}
		els, err := cv.one(alt)
		if err != nil {
			return nil, err
		}
		s.ElseBody = els
	}
	return s, nil
}

func (cv *converter) caseStmt(n *sitter.Node) ([]csource.Stmt, error) {
	var value csource.Expr
	valueNode := n.ChildByFieldName("value")
	if valueNode != nil {
		v, err := cv.expr(valueNode)
		if err != nil {
			return nil, err
		}
		value = v
	}

	var rest []*sitter.Node
	for _, child := range named(n) {
		if valueNode != nil && sameNode(child, valueNode) {
			continue
		}
		rest = append(rest, child)
	}
	stmts, err := cv.statements(rest)
	if err != nil {
		return nil, err
	}

	var body csource.Stmt
	if len(stmts) > 0 {
		body, stmts = stmts[0], stmts[1:]
	}
	var label csource.Stmt
	if strings.HasPrefix(cv.text(n), "default") {
		label = &csource.DefaultStmt{Body: body}
	} else {
		label = &csource.CaseStmt{Value: value, Body: body}
	}
	return append([]csource.Stmt{label}, stmts...), nil
}

func (cv *converter) forStmt(n *sitter.Node) (*csource.ForStmt, error) {
	cv.syms.EnterScope()
	defer cv.syms.ExitScope()

	f := &csource.ForStmt{}
	if init := n.ChildByFieldName("initializer"); init != nil {
		if init.Type() == "declaration" {
			decls, err := cv.declaration(init)
			if err != nil {
				return nil, err
			}
			f.Init = &csource.DeclStmt{Decls: decls}
		} else {
			e, err := cv.expr(init)
			if err != nil {
				return nil, err
			}
			f.Init = &csource.ExprStmt{Expr: e}
		}
	}
	if cond := n.ChildByFieldName("condition"); cond != nil {
		e, err := cv.expr(cond)
		if err != nil {
			return nil, err
		}
		f.Cond = e
	}
	if post := n.ChildByFieldName("update"); post != nil {
		e, err := cv.expr(post)
		if err != nil {
			return nil, err
		}
		f.Post = e
	}
	body, err := cv.one(n.ChildByFieldName("body"))
	if err != nil {
		return nil, err
	}
	f.Body = body
	return f, nil
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
