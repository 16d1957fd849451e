package tsfront

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"cinstr/pkg/csource"
)

func (cv *converter) operator(n *sitter.Node) (csource.TokenType, error) {
	op := n.ChildByFieldName("operator")
	if op == nil {
		return csource.ILLEGAL, cv.errorAt(n, "%s without an operator", n.Type())
	}
	tt, ok := csource.LookupOperator(op.Type())
	if !ok {
		return csource.ILLEGAL, cv.errorAt(op, "unknown operator %q", op.Type())
	}
	return tt, nil
}

// exprs converts a list of optional operands, stopping at the first error.
func (cv *converter) exprs(nodes ...*sitter.Node) ([]csource.Expr, error) {
	out := make([]csource.Expr, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		e, err := cv.expr(n)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (cv *converter) expr(n *sitter.Node) (csource.Expr, error) {
	if n == nil {
		return nil, cv.errorAt(nil, "missing expression")
	}
	switch n.Type() {
	case "identifier", "true", "false", "null":
		id := &csource.Ident{Name: cv.text(n), Loc: cv.loc(n)}
		if d, ok := cv.syms.Lookup(id.Name); ok {
			id.Binding = d
		}
		return id, nil

	case "number_literal":
		return &csource.Literal{Kind: numberKind(cv.text(n)), Raw: cv.text(n)}, nil
	case "char_literal":
		return &csource.Literal{Kind: csource.CHAR_LIT, Raw: cv.text(n)}, nil
	case "string_literal":
		return &csource.StringLiteral{Raw: []string{cv.text(n)}}, nil
	case "concatenated_string":
		s := &csource.StringLiteral{}
		for _, part := range named(n) {
			s.Raw = append(s.Raw, cv.text(part))
		}
		return s, nil

	case "parenthesized_expression":
		inner := named(n)
		if len(inner) != 1 {
			return nil, cv.errorAt(n, "malformed parenthesized expression")
		}
		if inner[0].Type() == "compound_statement" {
			body, err := cv.block(inner[0], true)
			if err != nil {
				return nil, err
			}
			return &csource.StmtExpr{Body: body}, nil
		}
		e, err := cv.expr(inner[0])
		if err != nil {
			return nil, err
		}
		return &csource.ParenExpr{Expr: e}, nil

	case "binary_expression":
		op, err := cv.operator(n)
		if err != nil {
			return nil, err
		}
		ops, err := cv.exprs(n.ChildByFieldName("left"), n.ChildByFieldName("right"))
		if err != nil {
			return nil, err
		}
		if op == csource.AND_LOGICAL || op == csource.OR_LOGICAL {
			return &csource.LogicalExpr{Op: op, Left: ops[0], Right: ops[1]}, nil
		}
		return &csource.BinaryExpr{Op: op, Left: ops[0], Right: ops[1]}, nil

	case "unary_expression", "pointer_expression":
		op, err := cv.operator(n)
		if err != nil {
			return nil, err
		}
		arg, err := cv.expr(n.ChildByFieldName("argument"))
		if err != nil {
			return nil, err
		}
		return &csource.UnaryExpr{Op: op, Right: arg}, nil

	case "update_expression":
		op, err := cv.operator(n)
		if err != nil {
			return nil, err
		}
		argNode := n.ChildByFieldName("argument")
		arg, err := cv.expr(argNode)
		if err != nil {
			return nil, err
		}
		if n.ChildByFieldName("operator").StartByte() < argNode.StartByte() {
			return &csource.UnaryExpr{Op: op, Right: arg}, nil
		}
		return &csource.PostfixExpr{Op: op, Left: arg}, nil

	case "assignment_expression":
		op, err := cv.operator(n)
		if err != nil {
			return nil, err
		}
		ops, err := cv.exprs(n.ChildByFieldName("left"), n.ChildByFieldName("right"))
		if err != nil {
			return nil, err
		}
		return &csource.AssignExpr{Op: op, Left: ops[0], Value: ops[1]}, nil

	case "conditional_expression":
		ops, err := cv.exprs(n.ChildByFieldName("condition"), n.ChildByFieldName("consequence"), n.ChildByFieldName("alternative"))
		if err != nil {
			return nil, err
		}
		return &csource.CondExpr{Cond: ops[0], Then: ops[1], Else: ops[2]}, nil

	case "comma_expression":
		ops, err := cv.exprs(n.ChildByFieldName("left"), n.ChildByFieldName("right"))
		if err != nil {
			return nil, err
		}
		list := &csource.CommaExpr{Exprs: []csource.Expr{ops[0]}}
		if rest, ok := ops[1].(*csource.CommaExpr); ok {
			list.Exprs = append(list.Exprs, rest.Exprs...)
		} else {
			list.Exprs = append(list.Exprs, ops[1])
		}
		return list, nil

	case "call_expression":
		fn, err := cv.expr(n.ChildByFieldName("function"))
		if err != nil {
			return nil, err
		}
		call := &csource.FunctionCall{Func: fn}
		if args := n.ChildByFieldName("arguments"); args != nil {
			list, err := cv.exprs(named(args)...)
			if err != nil {
				return nil, err
			}
			call.Args = list
		}
		return call, nil

	case "cast_expression":
		typ, err := cv.typeDescriptor(n.ChildByFieldName("type"))
		if err != nil {
			return nil, err
		}
		value, err := cv.expr(n.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		return &csource.CastExpr{Type: typ, Expr: value}, nil

	case "sizeof_expression", "alignof_expression":
		if t := n.ChildByFieldName("type"); t != nil {
			typ, err := cv.typeDescriptor(t)
			if err != nil {
				return nil, err
			}
			return &csource.SizeofExpr{Type: typ}, nil
		}
		value, err := cv.expr(n.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		return &csource.SizeofExpr{Expr: value}, nil

	case "subscript_expression":
		ops, err := cv.exprs(n.ChildByFieldName("argument"), n.ChildByFieldName("index"))
		if err != nil {
			return nil, err
		}
		return &csource.IndexExpr{Left: ops[0], Index: ops[1]}, nil

	case "field_expression":
		left, err := cv.expr(n.ChildByFieldName("argument"))
		if err != nil {
			return nil, err
		}
		op := n.ChildByFieldName("operator")
		return &csource.MemberExpr{
			Left:   left,
			Member: cv.text(n.ChildByFieldName("field")),
			Arrow:  op != nil && op.Type() == "->",
		}, nil

	case "initializer_list":
		return cv.initializerList(n)

	case "compound_literal_expression":
		typ, err := cv.typeDescriptor(n.ChildByFieldName("type"))
		if err != nil {
			return nil, err
		}
		init, err := cv.initializerList(n.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		return &csource.CompoundLiteral{Type: typ, Init: init}, nil
	}
	return nil, cv.unsupported(n, "expression")
}

func numberKind(raw string) csource.TokenType {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "0x") {
		if strings.ContainsAny(lower, ".p") {
			return csource.FLOAT
		}
		return csource.INTEGER
	}
	if strings.ContainsAny(lower, ".e") {
		return csource.FLOAT
	}
	return csource.INTEGER
}

func (cv *converter) initializerList(n *sitter.Node) (*csource.InitializerList, error) {
	if n == nil || n.Type() != "initializer_list" {
		return nil, cv.unsupported(n, "initializer")
	}
	list := &csource.InitializerList{}
	for _, el := range named(n) {
		if el.Type() != "initializer_pair" {
			e, err := cv.expr(el)
			if err != nil {
				return nil, err
			}
			list.Elements = append(list.Elements, e)
			continue
		}

		d := &csource.DesignatedInit{}
		for _, des := range fields(el, "designator") {
			switch des.Type() {
			case "field_designator":
				inner := named(des)
				d.Designators = append(d.Designators, csource.Designator{Field: cv.text(inner[0])})
			case "subscript_designator":
				inner := named(des)
				idx, err := cv.expr(inner[0])
				if err != nil {
					return nil, err
				}
				d.Designators = append(d.Designators, csource.Designator{Index: idx})
			case "field_identifier":
				// GNU "field: value"
				d.Designators = append(d.Designators, csource.Designator{Field: cv.text(des)})
			default:
				return nil, cv.unsupported(des, "designator")
			}
		}
		value, err := cv.expr(el.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		d.Value = value
		list.Elements = append(list.Elements, d)
	}
	return list, nil
}

// typeDescriptor converts the type name of a cast, sizeof or compound literal.
func (cv *converter) typeDescriptor(n *sitter.Node) (*csource.Type, error) {
	if n == nil {
		return nil, &csource.ParseError{File: cv.file.Name, Msg: "missing type name"}
	}
	s, err := cv.specifiers(n)
	if err != nil {
		return nil, err
	}
	_, _, t, err := cv.declarator(n.ChildByFieldName("declarator"), s.base)
	return t, err
}
