package transformer

import (
	"fmt"
	"strings"

	"github.com/Sayiza/orapgsync/metadata"
	"github.com/Sayiza/orapgsync/plsql"
)

// nodeKind keys the emit dispatch table.
type nodeKind int

const (
	kindQueryExpr nodeKind = iota
	kindQueryBlock
	kindColumnRef
	kindNumberLiteral
	kindStringLiteral
	kindNullLiteral
	kindDateTimeLiteral
	kindIntervalLiteral
	kindBindRef
	kindPrefixExpr
	kindBinaryExpr
	kindParenExpr
	kindIsNullExpr
	kindInExpr
	kindBetweenExpr
	kindLikeExpr
	kindExistsExpr
	kindFunctionCall
	kindCaseExpr
	kindSubqueryExpr
	kindStar
	kindPriorExpr
	kindSelectStmt
	kindInsertStmt
	kindUpdateStmt
	kindDeleteStmt
	kindAssignStmt
	kindIfStmt
	kindLoopStmt
	kindWhileStmt
	kindForStmt
	kindExitStmt
	kindContinueStmt
	kindReturnStmt
	kindNullStmt
	kindRaiseStmt
	kindCallStmt
	kindDeclareBlock
	kindBlock
	kindSubprogram
)

func kindOf(n plsql.Node) (nodeKind, bool) {
	switch n.(type) {
	case *plsql.QueryExpr:
		return kindQueryExpr, true
	case *plsql.QueryBlock:
		return kindQueryBlock, true
	case *plsql.ColumnRef:
		return kindColumnRef, true
	case *plsql.NumberLiteral:
		return kindNumberLiteral, true
	case *plsql.StringLiteral:
		return kindStringLiteral, true
	case *plsql.NullLiteral:
		return kindNullLiteral, true
	case *plsql.DateTimeLiteral:
		return kindDateTimeLiteral, true
	case *plsql.IntervalLiteral:
		return kindIntervalLiteral, true
	case *plsql.BindRef:
		return kindBindRef, true
	case *plsql.PrefixExpr:
		return kindPrefixExpr, true
	case *plsql.BinaryExpr:
		return kindBinaryExpr, true
	case *plsql.ParenExpr:
		return kindParenExpr, true
	case *plsql.IsNullExpr:
		return kindIsNullExpr, true
	case *plsql.InExpr:
		return kindInExpr, true
	case *plsql.BetweenExpr:
		return kindBetweenExpr, true
	case *plsql.LikeExpr:
		return kindLikeExpr, true
	case *plsql.ExistsExpr:
		return kindExistsExpr, true
	case *plsql.FunctionCall:
		return kindFunctionCall, true
	case *plsql.CaseExpr:
		return kindCaseExpr, true
	case *plsql.SubqueryExpr:
		return kindSubqueryExpr, true
	case *plsql.Star:
		return kindStar, true
	case *plsql.PriorExpr:
		return kindPriorExpr, true
	case *plsql.SelectStmt:
		return kindSelectStmt, true
	case *plsql.InsertStmt:
		return kindInsertStmt, true
	case *plsql.UpdateStmt:
		return kindUpdateStmt, true
	case *plsql.DeleteStmt:
		return kindDeleteStmt, true
	case *plsql.AssignStmt:
		return kindAssignStmt, true
	case *plsql.IfStmt:
		return kindIfStmt, true
	case *plsql.LoopStmt:
		return kindLoopStmt, true
	case *plsql.WhileStmt:
		return kindWhileStmt, true
	case *plsql.ForStmt:
		return kindForStmt, true
	case *plsql.ExitStmt:
		return kindExitStmt, true
	case *plsql.ContinueStmt:
		return kindContinueStmt, true
	case *plsql.ReturnStmt:
		return kindReturnStmt, true
	case *plsql.NullStmt:
		return kindNullStmt, true
	case *plsql.RaiseStmt:
		return kindRaiseStmt, true
	case *plsql.CallStmt:
		return kindCallStmt, true
	case *plsql.DeclareBlock:
		return kindDeclareBlock, true
	case *plsql.Block:
		return kindBlock, true
	case *plsql.Subprogram:
		return kindSubprogram, true
	}
	return 0, false
}

// emitFunc is one entry of the dispatch table. Every rewrite lives in one
// emit function per node kind; the table is the single extensibility point.
type emitFunc func(*emitter, plsql.Node) (string, error)

var emitTable map[nodeKind]emitFunc

func init() {
	emitTable = map[nodeKind]emitFunc{
		kindQueryExpr:       emitQueryExpr,
		kindQueryBlock:      emitQueryBlock,
		kindColumnRef:       emitColumnRef,
		kindNumberLiteral:   emitNumberLiteral,
		kindStringLiteral:   emitStringLiteral,
		kindNullLiteral:     emitNullLiteral,
		kindDateTimeLiteral: emitDateTimeLiteral,
		kindIntervalLiteral: emitIntervalLiteral,
		kindBindRef:         emitBindRef,
		kindPrefixExpr:      emitPrefixExpr,
		kindBinaryExpr:      emitBinaryExpr,
		kindParenExpr:       emitParenExpr,
		kindIsNullExpr:      emitIsNullExpr,
		kindInExpr:          emitInExpr,
		kindBetweenExpr:     emitBetweenExpr,
		kindLikeExpr:        emitLikeExpr,
		kindExistsExpr:      emitExistsExpr,
		kindFunctionCall:    emitFunctionCall,
		kindCaseExpr:        emitCaseExpr,
		kindSubqueryExpr:    emitSubqueryExpr,
		kindStar:            emitStar,
		kindPriorExpr:       emitPriorExpr,
		kindSelectStmt:      emitSelectStmt,
		kindInsertStmt:      emitInsertStmt,
		kindUpdateStmt:      emitUpdateStmt,
		kindDeleteStmt:      emitDeleteStmt,
		kindAssignStmt:      emitAssignStmt,
		kindIfStmt:          emitIfStmt,
		kindLoopStmt:        emitLoopStmt,
		kindWhileStmt:       emitWhileStmt,
		kindForStmt:         emitForStmt,
		kindExitStmt:        emitExitStmt,
		kindContinueStmt:    emitContinueStmt,
		kindReturnStmt:      emitReturnStmt,
		kindNullStmt:        emitNullStmt,
		kindRaiseStmt:       emitRaiseStmt,
		kindCallStmt:        emitCallStmt,
		kindDeclareBlock:    emitDeclareBlock,
		kindBlock:           emitBlock,
		kindSubprogram:      emitSubprogram,
	}
}

// emitter walks a parse tree producing PostgreSQL text. One emitter serves
// one entry-point invocation; the metadata index it reads is shared and
// frozen.
type emitter struct {
	schema string
	meta   *metadata.Index
	src    string // comment-stripped source, for raw-text extraction

	stack  *contextStack
	pkg    *packageContext // non-nil while inside a package body
	indent int

	// PL/SQL variable types of the subprogram being emitted, for
	// object-type method resolution on local variables.
	varTypes map[string]string

	warnings []TransformError
}

func newEmitter(schema string, meta *metadata.Index, src string) *emitter {
	return &emitter{
		schema:   strings.ToLower(schema),
		meta:     meta,
		src:      src,
		stack:    &contextStack{},
		varTypes: make(map[string]string),
	}
}

func (e *emitter) emit(n plsql.Node) (string, error) {
	k, ok := kindOf(n)
	if !ok {
		return "", ErrInternalInvariant.New(fmt.Sprintf("no emit entry for %T", n))
	}
	return emitTable[k](e, n)
}

func (e *emitter) indentStr() string {
	return strings.Repeat("  ", e.indent)
}

// pgIdent lowers an identifier for output, quoting only when the Oracle
// name requires it.
func pgIdent(name string) string {
	if len(name) >= 2 && name[0] == '"' {
		inner := name[1 : len(name)-1]
		if isPlainIdent(inner) {
			return strings.ToLower(inner)
		}
		return `"` + inner + `"`
	}
	return strings.ToLower(name)
}

func isPlainIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}

// ---------------------------------------------------------------------------
// Literals and simple expressions

func emitNumberLiteral(e *emitter, n plsql.Node) (string, error) {
	return n.(*plsql.NumberLiteral).Tok.Literal, nil
}

func emitStringLiteral(e *emitter, n plsql.Node) (string, error) {
	return n.(*plsql.StringLiteral).Tok.Literal, nil
}

func emitNullLiteral(e *emitter, n plsql.Node) (string, error) {
	return "NULL", nil
}

func emitDateTimeLiteral(e *emitter, n plsql.Node) (string, error) {
	lit := n.(*plsql.DateTimeLiteral)
	if lit.Timestamp {
		return "TIMESTAMP " + lit.Value.Literal, nil
	}
	return "DATE " + lit.Value.Literal, nil
}

func emitIntervalLiteral(e *emitter, n plsql.Node) (string, error) {
	return n.(*plsql.IntervalLiteral).Raw, nil
}

// emitBindRef keeps the colon form; the trigger rewriter strips colons
// from :NEW/:OLD in its own pass, preserving case.
func emitBindRef(e *emitter, n plsql.Node) (string, error) {
	b := n.(*plsql.BindRef)
	if b.Column != nil {
		return b.Name.Literal + "." + pgIdent(b.Column.Literal), nil
	}
	return b.Name.Literal, nil
}

func emitPrefixExpr(e *emitter, n plsql.Node) (string, error) {
	p := n.(*plsql.PrefixExpr)
	operand, err := e.emit(p.Operand)
	if err != nil {
		return "", err
	}
	if p.Op.Type == plsql.NOT {
		return "NOT " + operand, nil
	}
	return p.Op.Literal + operand, nil
}

func emitBinaryExpr(e *emitter, n plsql.Node) (string, error) {
	b := n.(*plsql.BinaryExpr)
	left, err := e.emit(b.Left)
	if err != nil {
		return "", err
	}
	right, err := e.emit(b.Right)
	if err != nil {
		return "", err
	}
	op := b.Op.Literal
	switch b.Op.Type {
	case plsql.NEQ:
		op = "<>"
	case plsql.AND:
		op = "AND"
	case plsql.OR:
		op = "OR"
	}
	return left + " " + op + " " + right, nil
}

func emitParenExpr(e *emitter, n plsql.Node) (string, error) {
	inner, err := e.emit(n.(*plsql.ParenExpr).Inner)
	if err != nil {
		return "", err
	}
	return "(" + inner + ")", nil
}

func emitIsNullExpr(e *emitter, n plsql.Node) (string, error) {
	x := n.(*plsql.IsNullExpr)
	operand, err := e.emit(x.Operand)
	if err != nil {
		return "", err
	}
	if x.Not {
		return operand + " IS NOT NULL", nil
	}
	return operand + " IS NULL", nil
}

func emitInExpr(e *emitter, n plsql.Node) (string, error) {
	x := n.(*plsql.InExpr)
	operand, err := e.emit(x.Operand)
	if err != nil {
		return "", err
	}
	var body string
	if x.Subquery != nil {
		body, err = e.emit(x.Subquery)
		if err != nil {
			return "", err
		}
	} else {
		var parts []string
		for _, item := range x.List {
			s, err := e.emit(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		body = strings.Join(parts, ", ")
	}
	if x.Not {
		return operand + " NOT IN (" + body + ")", nil
	}
	return operand + " IN (" + body + ")", nil
}

func emitBetweenExpr(e *emitter, n plsql.Node) (string, error) {
	x := n.(*plsql.BetweenExpr)
	operand, err := e.emit(x.Operand)
	if err != nil {
		return "", err
	}
	lo, err := e.emit(x.Lo)
	if err != nil {
		return "", err
	}
	hi, err := e.emit(x.Hi)
	if err != nil {
		return "", err
	}
	if x.Not {
		return operand + " NOT BETWEEN " + lo + " AND " + hi, nil
	}
	return operand + " BETWEEN " + lo + " AND " + hi, nil
}

func emitLikeExpr(e *emitter, n plsql.Node) (string, error) {
	x := n.(*plsql.LikeExpr)
	operand, err := e.emit(x.Operand)
	if err != nil {
		return "", err
	}
	pattern, err := e.emit(x.Pattern)
	if err != nil {
		return "", err
	}
	out := operand
	if x.Not {
		out += " NOT"
	}
	out += " LIKE " + pattern
	if x.Escape != nil {
		esc, err := e.emit(x.Escape)
		if err != nil {
			return "", err
		}
		out += " ESCAPE " + esc
	}
	return out, nil
}

func emitExistsExpr(e *emitter, n plsql.Node) (string, error) {
	x := n.(*plsql.ExistsExpr)
	sub, err := e.emit(x.Subquery)
	if err != nil {
		return "", err
	}
	return "EXISTS (" + sub + ")", nil
}

func emitSubqueryExpr(e *emitter, n plsql.Node) (string, error) {
	sub, err := e.emit(n.(*plsql.SubqueryExpr).Query)
	if err != nil {
		return "", err
	}
	return "(" + sub + ")", nil
}

func emitStar(e *emitter, n plsql.Node) (string, error) {
	s := n.(*plsql.Star)
	if s.Table != nil {
		return pgIdent(s.Table.Literal) + ".*", nil
	}
	return "*", nil
}

// emitPriorExpr only appears outside CONNECT BY on malformed input; the
// hierarchical rewriter consumes PRIOR before emission reaches it.
func emitPriorExpr(e *emitter, n plsql.Node) (string, error) {
	return "", ErrUnsupportedConstruct.New("PRIOR outside CONNECT BY")
}

func emitCaseExpr(e *emitter, n plsql.Node) (string, error) {
	c := n.(*plsql.CaseExpr)
	var out strings.Builder
	out.WriteString("CASE")
	if c.Operand != nil {
		s, err := e.emit(c.Operand)
		if err != nil {
			return "", err
		}
		out.WriteString(" " + s)
	}
	for _, w := range c.Whens {
		when, err := e.emit(w.When)
		if err != nil {
			return "", err
		}
		then, err := e.emit(w.Then)
		if err != nil {
			return "", err
		}
		out.WriteString(" WHEN " + when + " THEN " + then)
	}
	if c.Else != nil {
		s, err := e.emit(c.Else)
		if err != nil {
			return "", err
		}
		out.WriteString(" ELSE " + s)
	}
	out.WriteString(" END")
	return out.String(), nil
}

// emitColumnRef handles identifier rewrites: SYSDATE family, package
// variable reads, alias-qualified columns.
func emitColumnRef(e *emitter, n plsql.Node) (string, error) {
	ref := n.(*plsql.ColumnRef)

	if len(ref.Parts) == 1 {
		switch ref.Column() {
		case "sysdate", "systimestamp":
			return "CURRENT_TIMESTAMP", nil
		}
		// A bare name inside a package body may be a package variable;
		// locals and parameters shadow it.
		if e.pkg != nil {
			if _, isLocal := e.varTypes[ref.Column()]; !isLocal {
				if v, ok := e.pkg.variable(ref.Column()); ok {
					return e.packageVarGetter(v), nil
				}
			}
		}
		return pgIdent(ref.Parts[0].Literal), nil
	}

	// pkg.var reads become accessor calls.
	if len(ref.Parts) == 2 {
		qualifier := ref.Qualifier()
		if _, bound := e.stack.lookupAlias(qualifier); !bound {
			if e.pkg != nil && qualifier == e.pkg.name {
				if v, ok := e.pkg.variable(ref.Column()); ok {
					return e.packageVarGetter(v), nil
				}
			}
			for _, v := range e.meta.PackageVariables(e.schema, qualifier) {
				if v.Name == ref.Column() {
					return fmt.Sprintf("%s.%s__get_%s()", e.schema, qualifier, v.Name), nil
				}
			}
		}
	}

	parts := make([]string, len(ref.Parts))
	for i, p := range ref.Parts {
		parts[i] = pgIdent(p.Literal)
	}
	return strings.Join(parts, "."), nil
}

func (e *emitter) packageVarGetter(v *metadata.PackageVariable) string {
	return fmt.Sprintf("%s.%s__get_%s()", e.pkg.schema, e.pkg.name, v.Name)
}
