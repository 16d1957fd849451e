package csource

// Inspect traverses the tree rooted at node in depth-first pre-order: it
// calls f(node) and, if f returns true, visits each child in source order.
// Nil children are skipped.
func Inspect(node Node, f func(Node) bool) {
	if isNil(node) || !f(node) {
		return
	}
	for _, child := range Children(node) {
		Inspect(child, f)
	}
}

// Children returns the direct children of node in source order.
func Children(node Node) []Node {
	var out []Node
	add := func(ns ...Node) {
		for _, n := range ns {
			if !isNil(n) {
				out = append(out, n)
			}
		}
	}

	switch n := node.(type) {
	// Declarations
	case *FunctionDecl:
		for _, p := range n.Params {
			add(p)
		}
		if n.Body != nil {
			add(n.Body)
		}
	case *VariableDecl:
		add(n.Init)
	case *EnumConstDecl:
		add(n.Value)
	case *RecordDecl:
		for _, e := range n.Enumerators {
			add(e)
		}
	case *TypedefDecl:

	// Statements
	case *BlockStmt:
		for _, s := range n.Stmts {
			add(s)
		}
	case *IfStmt:
		add(n.Condition, n.Body, n.ElseBody)
	case *SwitchStmt:
		add(n.Target, n.Body)
	case *CaseStmt:
		add(n.Value, n.Body)
	case *DefaultStmt:
		add(n.Body)
	case *WhileStmt:
		add(n.Condition, n.Body)
	case *DoStmt:
		add(n.Body, n.Condition)
	case *ForStmt:
		add(n.Init, n.Cond, n.Post, n.Body)
	case *ReturnStmt:
		add(n.Expr)
	case *LabelStmt:
		add(n.Body)
	case *ExprStmt:
		add(n.Expr)
	case *DeclStmt:
		for _, d := range n.Decls {
			add(d)
		}
	case *BreakStmt, *ContinueStmt, *GotoStmt, *EmptyStmt, *AsmStmt:

	// Expressions
	case *BinaryExpr:
		add(n.Left, n.Right)
	case *LogicalExpr:
		add(n.Left, n.Right)
	case *AssignExpr:
		add(n.Left, n.Value)
	case *CondExpr:
		add(n.Cond, n.Then, n.Else)
	case *UnaryExpr:
		add(n.Right)
	case *PostfixExpr:
		add(n.Left)
	case *FunctionCall:
		add(n.Func)
		for _, a := range n.Args {
			add(a)
		}
	case *CastExpr:
		add(n.Expr)
	case *SizeofExpr:
		add(n.Expr)
	case *IndexExpr:
		add(n.Left, n.Index)
	case *MemberExpr:
		add(n.Left)
	case *CommaExpr:
		for _, e := range n.Exprs {
			add(e)
		}
	case *ParenExpr:
		add(n.Expr)
	case *InitializerList:
		for _, e := range n.Elements {
			add(e)
		}
	case *DesignatedInit:
		for _, d := range n.Designators {
			add(d.Index)
		}
		add(n.Value)
	case *CompoundLiteral:
		if n.Init != nil {
			add(n.Init)
		}
	case *StmtExpr:
		if n.Body != nil {
			add(n.Body)
		}
	case *Ident, *Literal, *StringLiteral:
	}
	return out
}

// isNil catches both untyped nil and typed nil pointers stored in an interface.
func isNil(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case Expr:
		return isNilExpr(v)
	case Stmt:
		return isNilStmt(v)
	case Decl:
		return isNilDecl(v)
	}
	return false
}

func isNilExpr(e Expr) bool {
	switch v := e.(type) {
	case *Ident:
		return v == nil
	case *InitializerList:
		return v == nil
	}
	return e == nil
}

func isNilStmt(s Stmt) bool {
	switch v := s.(type) {
	case *BlockStmt:
		return v == nil
	case *DeclStmt:
		return v == nil
	case *ExprStmt:
		return v == nil
	}
	return s == nil
}

func isNilDecl(d Decl) bool {
	switch v := d.(type) {
	case *FunctionDecl:
		return v == nil
	case *VariableDecl:
		return v == nil
	}
	return d == nil
}

// Calls collects the names of functions called by name anywhere under node.
func Calls(node Node) map[string]bool {
	calls := make(map[string]bool)
	Inspect(node, func(n Node) bool {
		if c, ok := n.(*FunctionCall); ok {
			if id, ok := unparen(c.Func).(*Ident); ok {
				calls[id.Name] = true
			}
		}
		return true
	})
	return calls
}

// Reachable returns the names of the functions defined in decls that can be
// reached from roots through direct calls, including the roots themselves.
// Calls made from file-scope initializers count as roots.
func Reachable(decls []Decl, roots ...string) map[string]bool {
	// 1. Map all function definitions by name
	funcs := make(map[string]*FunctionDecl)
	for _, d := range decls {
		if f, ok := d.(*FunctionDecl); ok && f.HasBody() {
			funcs[f.Name] = f
		}
	}

	reachable := make(map[string]bool)
	var worklist []string

	// Helper to mark a function as used and queue it for inspection
	addReachable := func(name string) {
		if !reachable[name] {
			reachable[name] = true
			worklist = append(worklist, name)
		}
	}

	for _, r := range roots {
		if _, ok := funcs[r]; ok {
			addReachable(r)
		}
	}

	// Global initializers might call functions (e.g., int x = init_x();)
	for _, d := range decls {
		if v, ok := d.(*VariableDecl); ok && v.Init != nil {
			for call := range Calls(v.Init) {
				addReachable(call)
			}
		}
	}

	// 2. Traverse the worklist to find all transitively reachable functions
	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]

		fDecl, exists := funcs[curr]
		if !exists {
			// Library function or defined elsewhere; skip it
			continue
		}
		for call := range Calls(fDecl.Body) {
			addReachable(call)
		}
	}
	return reachable
}

func unparen(e Expr) Expr {
	for {
		p, ok := e.(*ParenExpr)
		if !ok {
			return e
		}
		e = p.Expr
	}
}
