package csource

import (
	"fmt"
	"strings"
)

// Node is implemented by every AST node.
type Node interface {
	String() string
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Ident is a use of a name in an expression.
//
//	return x;
//	       ^  Ident{Name: "x", Binding: <the VarDecl x resolves to>}
//
// Binding is nil for names that were never declared (implicit functions,
// macros from unparsed system headers).
type Ident struct {
	Name    string
	Loc     Loc
	Binding Decl
}

func (*Ident) exprNode()        {}
func (i *Ident) String() string { return i.Name }

// Literal is a numeric or character constant, kept as written.
//
//	int x = 10u;
//	        ^^^  Literal{Kind: INTEGER, Raw: "10u"}
type Literal struct {
	Kind TokenType // INTEGER, FLOAT or CHAR_LIT
	Raw  string
}

func (*Literal) exprNode()        {}
func (l *Literal) String() string { return l.Raw }

// StringLiteral is one or more adjacent string tokens.
type StringLiteral struct {
	Raw []string
}

func (*StringLiteral) exprNode()        {}
func (s *StringLiteral) String() string { return strings.Join(s.Raw, " ") }

// BinaryExpr represents a binary operation: Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// LogicalExpr represents Left && Right or Left || Right.
// It is separate from BinaryExpr because its right operand is conditional.
type LogicalExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*LogicalExpr) exprNode() {}
func (l *LogicalExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Op, l.Right)
}

// AssignExpr represents Left Op Value for = and the compound assignments.
type AssignExpr struct {
	Op    TokenType
	Left  Expr
	Value Expr
}

func (*AssignExpr) exprNode() {}
func (a *AssignExpr) String() string {
	return fmt.Sprintf("Assign(%s %s %s)", a.Left, a.Op, a.Value)
}

// CondExpr represents Cond ? Then : Else.
type CondExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (*CondExpr) exprNode() {}
func (c *CondExpr) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", c.Cond, c.Then, c.Else)
}

// UnaryExpr represents Op Right (e.g., &x, *p, -n, ++i).
type UnaryExpr struct {
	Op    TokenType
	Right Expr
}

func (*UnaryExpr) exprNode()        {}
func (u *UnaryExpr) String() string { return fmt.Sprintf("(%s %s)", u.Op, u.Right) }

// PostfixExpr represents Left++ or Left--
type PostfixExpr struct {
	Op   TokenType
	Left Expr
}

func (*PostfixExpr) exprNode()        {}
func (p *PostfixExpr) String() string { return fmt.Sprintf("(%s %s)", p.Left, p.Op) }

// FunctionCall represents Func(args). Func is usually an *Ident.
type FunctionCall struct {
	Func Expr
	Args []Expr
}

func (*FunctionCall) exprNode() {}
func (c *FunctionCall) String() string {
	return fmt.Sprintf("FunctionCall(%s, args=%v)", c.Func, c.Args)
}

// CastExpr represents (Type) Expr
type CastExpr struct {
	Type *Type
	Expr Expr
}

func (*CastExpr) exprNode() {}
func (c *CastExpr) String() string {
	return fmt.Sprintf("Cast(%s, %s)", c.Type, c.Expr)
}

// SizeofExpr represents sizeof Expr or sizeof(Type); exactly one is set.
type SizeofExpr struct {
	Type *Type
	Expr Expr
}

func (*SizeofExpr) exprNode() {}
func (s *SizeofExpr) String() string {
	if s.Type != nil {
		return fmt.Sprintf("Sizeof(%s)", s.Type)
	}
	return fmt.Sprintf("Sizeof(%s)", s.Expr)
}

// IndexExpr represents Left[Index]
type IndexExpr struct {
	Left  Expr
	Index Expr
}

func (*IndexExpr) exprNode()        {}
func (e *IndexExpr) String() string { return fmt.Sprintf("(%s[%s])", e.Left, e.Index) }

// MemberExpr represents Left.Member or Left->Member
type MemberExpr struct {
	Left   Expr
	Member string
	Arrow  bool
}

func (*MemberExpr) exprNode() {}
func (e *MemberExpr) String() string {
	if e.Arrow {
		return fmt.Sprintf("(%s->%s)", e.Left, e.Member)
	}
	return fmt.Sprintf("(%s.%s)", e.Left, e.Member)
}

// CommaExpr represents e1, e2, ...
type CommaExpr struct {
	Exprs []Expr
}

func (*CommaExpr) exprNode()        {}
func (c *CommaExpr) String() string { return fmt.Sprintf("Comma%v", c.Exprs) }

// ParenExpr represents ( Expr ).
type ParenExpr struct {
	Expr Expr
}

func (*ParenExpr) exprNode()        {}
func (p *ParenExpr) String() string { return fmt.Sprintf("(%s)", p.Expr) }

// InitializerList represents { expr, expr, ... }
type InitializerList struct {
	Elements []Expr
}

func (*InitializerList) exprNode() {}
func (l *InitializerList) String() string {
	return fmt.Sprintf("InitializerList(len=%d, %v)", len(l.Elements), l.Elements)
}

// Designator is one step of a designated initializer: .Field or [Index].
type Designator struct {
	Field string
	Index Expr
}

// DesignatedInit represents .a.b[2] = Value inside an initializer list.
type DesignatedInit struct {
	Designators []Designator
	Value       Expr
}

func (*DesignatedInit) exprNode() {}
func (d *DesignatedInit) String() string {
	var sb strings.Builder
	for _, ds := range d.Designators {
		if ds.Index != nil {
			fmt.Fprintf(&sb, "[%s]", ds.Index)
		} else {
			sb.WriteString("." + ds.Field)
		}
	}
	return fmt.Sprintf("%s = %s", sb.String(), d.Value)
}

// CompoundLiteral represents (Type){ ... }.
type CompoundLiteral struct {
	Type *Type
	Init *InitializerList
}

func (*CompoundLiteral) exprNode() {}
func (c *CompoundLiteral) String() string {
	return fmt.Sprintf("CompoundLiteral(%s, %s)", c.Type, c.Init)
}

// StmtExpr is the GNU statement expression ({ ... }).
type StmtExpr struct {
	Body *BlockStmt
}

func (*StmtExpr) exprNode()        {}
func (s *StmtExpr) String() string { return fmt.Sprintf("StmtExpr(%s)", s.Body) }

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	Node
	stmtNode()
}

// BlockStmt represents { statement; ... }
type BlockStmt struct {
	LBrace Loc
	RBrace Loc
	Stmts  []Stmt
}

func (*BlockStmt) stmtNode() {}
func (b *BlockStmt) String() string {
	return fmt.Sprintf("BlockStmt(len=%d)", len(b.Stmts))
}

// IfStmt represents if (cond) body [else elseBody]. LParen and RParen locate
// the parentheses around the condition.
type IfStmt struct {
	If        Loc
	LParen    Loc
	RParen    Loc
	Condition Expr
	Body      Stmt
	ElseBody  Stmt // may be nil
}

func (*IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	if i.ElseBody != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", i.Condition, i.Body, i.ElseBody)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", i.Condition, i.Body)
}

// SwitchStmt represents switch (Target) Body. Case labels live in Body as
// CaseStmt and DefaultStmt nodes.
type SwitchStmt struct {
	Switch Loc
	LParen Loc
	RParen Loc
	Target Expr
	Body   Stmt
}

func (*SwitchStmt) stmtNode() {}
func (s *SwitchStmt) String() string {
	return fmt.Sprintf("SwitchStmt(target=%s, body=%s)", s.Target, s.Body)
}

// CaseStmt represents case Value: Body
type CaseStmt struct {
	Value Expr
	Body  Stmt
}

func (*CaseStmt) stmtNode()        {}
func (c *CaseStmt) String() string { return fmt.Sprintf("CaseStmt(%s: %s)", c.Value, c.Body) }

// DefaultStmt represents default: Body
type DefaultStmt struct {
	Body Stmt
}

func (*DefaultStmt) stmtNode()        {}
func (d *DefaultStmt) String() string { return fmt.Sprintf("DefaultStmt(%s)", d.Body) }

// WhileStmt represents while (cond) body
type WhileStmt struct {
	Condition Expr
	Body      Stmt
}

func (*WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", w.Condition, w.Body)
}

// DoStmt represents do body while (cond);
type DoStmt struct {
	Body      Stmt
	Condition Expr
}

func (*DoStmt) stmtNode() {}
func (d *DoStmt) String() string {
	return fmt.Sprintf("DoStmt(do %s while %s)", d.Body, d.Condition)
}

// ForStmt represents for (init; cond; post) body. Init is a *DeclStmt or an
// *ExprStmt; any part may be nil.
type ForStmt struct {
	Init Stmt
	Cond Expr
	Post Expr
	Body Stmt
}

func (*ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%s, cond=%s, post=%s, body=%s)", f.Init, f.Cond, f.Post, f.Body)
}

// ReturnStmt represents  return expr ;  (Expr may be nil)
type ReturnStmt struct {
	Expr Expr
}

func (*ReturnStmt) stmtNode() {}
func (r *ReturnStmt) String() string {
	return fmt.Sprintf("ReturnStmt(%s)", r.Expr)
}

// BreakStmt represents break;
type BreakStmt struct{}

func (*BreakStmt) stmtNode()        {}
func (s *BreakStmt) String() string { return "BreakStmt" }

// ContinueStmt represents continue;
type ContinueStmt struct{}

func (*ContinueStmt) stmtNode()        {}
func (s *ContinueStmt) String() string { return "ContinueStmt" }

// GotoStmt represents goto Label;
type GotoStmt struct {
	Label string
}

func (*GotoStmt) stmtNode()        {}
func (g *GotoStmt) String() string { return "GotoStmt(" + g.Label + ")" }

// LabelStmt represents Label: Body
type LabelStmt struct {
	Label string
	Body  Stmt
}

func (*LabelStmt) stmtNode()        {}
func (l *LabelStmt) String() string { return fmt.Sprintf("LabelStmt(%s: %s)", l.Label, l.Body) }

// ExprStmt represents an expression evaluated for its side effects.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode() {}
func (e *ExprStmt) String() string {
	return fmt.Sprintf("ExprStmt(%s)", e.Expr)
}

// EmptyStmt represents a lone ';'.
type EmptyStmt struct{}

func (*EmptyStmt) stmtNode()        {}
func (*EmptyStmt) String() string { return "EmptyStmt" }

// DeclStmt represents a declaration inside a block.
type DeclStmt struct {
	Decls []Decl
}

func (*DeclStmt) stmtNode() {}
func (d *DeclStmt) String() string {
	return fmt.Sprintf("DeclStmt(%v)", d.Decls)
}

// AsmStmt represents an inline assembly statement, kept as raw text.
type AsmStmt struct {
	Text string
}

func (*AsmStmt) stmtNode() {}
func (a *AsmStmt) String() string {
	return fmt.Sprintf("AsmStmt(%q)", a.Text)
}

//  Declaration nodes

// Decl is implemented by every named declaration; Ident.Binding points at one.
type Decl interface {
	Node
	declNode()
	DeclName() string
}

// StorageClass is the storage-class specifier of a declaration.
type StorageClass int

const (
	StorageNone StorageClass = iota
	StorageStatic
	StorageExtern
	StorageAuto
	StorageRegister
	StorageTypedef
)

var storageNames = [...]string{
	StorageNone:     "",
	StorageStatic:   "static",
	StorageExtern:   "extern",
	StorageAuto:     "auto",
	StorageRegister: "register",
	StorageTypedef:  "typedef",
}

func (s StorageClass) String() string {
	if int(s) >= 0 && int(s) < len(storageNames) {
		return storageNames[s]
	}
	return fmt.Sprintf("StorageClass(%d)", int(s))
}

// VariableDecl represents one declarator of  int name = expr;  at any scope,
// including function parameters.
type VariableDecl struct {
	Name    string
	NameLoc Loc
	Start   Loc // first token of the declaration specifiers
	Type    *Type
	Storage StorageClass
	Scope   ScopeType
	IsParam bool
	Init    Expr
}

func (*VariableDecl) declNode()          {}
func (d *VariableDecl) DeclName() string { return d.Name }
func (d *VariableDecl) String() string {
	prefix := ""
	if d.Storage != StorageNone {
		prefix = d.Storage.String() + " "
	}
	if d.Init != nil {
		return fmt.Sprintf("VariableDecl(%s%s = %s)", prefix, d.Type.Declare(d.Name), d.Init)
	}
	return fmt.Sprintf("VariableDecl(%s%s)", prefix, d.Type.Declare(d.Name))
}

// HasGlobalStorage reports static storage duration: every file-scope
// variable, and block-scope variables declared static or extern.
func (d *VariableDecl) HasGlobalStorage() bool {
	if d.IsParam {
		return false
	}
	return d.Scope == ScopeGlobal || d.Storage == StorageStatic || d.Storage == StorageExtern
}

// FunctionDecl represents a function prototype or definition.
type FunctionDecl struct {
	Name    string
	NameLoc Loc
	Start   Loc   // first token of the declaration specifiers
	Type    *Type // TypeFunc; Type.Elem is the return type
	Params  []*VariableDecl
	Storage StorageClass
	Body    *BlockStmt // nil for prototypes
}

func (*FunctionDecl) declNode()          {}
func (f *FunctionDecl) DeclName() string { return f.Name }
func (f *FunctionDecl) String() string {
	return fmt.Sprintf("FunctionDecl(%s, params=%v, body=%v)", f.Type.Declare(f.Name), f.Params, f.Body)
}

// ReturnType is the declared result type.
func (f *FunctionDecl) ReturnType() *Type {
	if f.Type == nil {
		return nil
	}
	return f.Type.Elem
}

// HasBody reports whether this is a definition.
func (f *FunctionDecl) HasBody() bool {
	return f.Body != nil
}

// TypedefDecl represents typedef Type Name;
type TypedefDecl struct {
	Name    string
	NameLoc Loc
	Type    *Type
}

func (*TypedefDecl) declNode()          {}
func (t *TypedefDecl) DeclName() string { return t.Name }
func (t *TypedefDecl) String() string {
	return fmt.Sprintf("TypedefDecl(%s)", t.Type.Declare(t.Name))
}

// FieldDecl is a member of a struct or union.
type FieldDecl struct {
	Name string
	Type *Type
}

// RecordDecl represents a struct, union or enum definition.
type RecordDecl struct {
	Kind        TokenType // STRUCT, UNION or ENUM
	Tag         string    // empty for anonymous records
	Loc         Loc
	Fields      []FieldDecl
	Enumerators []*EnumConstDecl
}

func (*RecordDecl) declNode()          {}
func (r *RecordDecl) DeclName() string { return r.Tag }
func (r *RecordDecl) String() string {
	kind := strings.ToLower(r.Kind.String())
	if r.Kind == ENUM {
		return fmt.Sprintf("RecordDecl(%s %s, enumerators=%d)", kind, r.Tag, len(r.Enumerators))
	}
	return fmt.Sprintf("RecordDecl(%s %s, fields=%d)", kind, r.Tag, len(r.Fields))
}

// EnumConstDecl is one enumerator; references to it bind here.
type EnumConstDecl struct {
	Name    string
	NameLoc Loc
	Value   Expr // may be nil
}

func (*EnumConstDecl) declNode()          {}
func (e *EnumConstDecl) DeclName() string { return e.Name }
func (e *EnumConstDecl) String() string {
	if e.Value != nil {
		return fmt.Sprintf("EnumConstDecl(%s = %s)", e.Name, e.Value)
	}
	return fmt.Sprintf("EnumConstDecl(%s)", e.Name)
}

// TranslationUnit is a parsed primary file with everything it included.
type TranslationUnit struct {
	Primary *File
	Files   []*File // every file read, primary first
	Decls   []Decl  // top-level declarations in source order, one per declarator

	// Skipped lists #include targets that could not be resolved and were
	// passed over (angle-bracket includes only).
	Skipped []string
}

// IsPrimary reports whether loc lies in the primary file's own text.
func (tu *TranslationUnit) IsPrimary(loc Loc) bool {
	return loc.File != nil && loc.File == tu.Primary
}

// PresumedPrimary reports whether loc's presumed file is the primary file.
func (tu *TranslationUnit) PresumedPrimary(loc Loc) bool {
	return loc.File != nil && loc.Presumed == tu.Primary.Path
}
